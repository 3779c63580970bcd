// Package mapping loads the URL mapping file that ties banks, products and
// criteria to the pages worth analyzing, and expands it into analysis tasks.
package mapping

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/benchmark-cli/internal/model"
)

// Config is the parsed mapping file. Each map goes slug → URLs.
type Config struct {
	BankMapping     map[string][]string `json:"bank_mapping" yaml:"bank_mapping"`
	ProductMapping  map[string][]string `json:"product_mapping" yaml:"product_mapping"`
	CriteriaMapping map[string][]string `json:"criteria_mapping" yaml:"criteria_mapping"`
}

// Load reads the mapping file, JSON or YAML by extension. A missing file is
// a hard error: without the mapping there is nothing to analyze.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "mapping: read %s", path)
	}

	var cfg Config
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &cfg)
	default:
		err = json.Unmarshal(raw, &cfg)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "mapping: parse %s", path)
	}

	if cfg.BankMapping == nil {
		cfg.BankMapping = map[string][]string{}
	}
	if cfg.ProductMapping == nil {
		cfg.ProductMapping = map[string][]string{}
	}
	if cfg.CriteriaMapping == nil {
		cfg.CriteriaMapping = map[string][]string{}
	}
	return &cfg, nil
}

// BankLinks returns the URLs mapped to a bank slug.
func (c *Config) BankLinks(bank string) []string { return c.BankMapping[bank] }

// ProductLinks returns the URLs mapped to a product slug.
func (c *Config) ProductLinks(product string) []string { return c.ProductMapping[product] }

// CriterionLinks returns the URLs mapped to a criterion slug.
func (c *Config) CriterionLinks(criterion string) []string { return c.CriteriaMapping[criterion] }

// GenerateTasks expands (banks × criteria) for one product into analysis
// tasks. Each task's URL list is the deduplicated union of the bank's, the
// product's and the criterion's links; pairs with no URLs are skipped.
// URLs are sorted so the expansion is deterministic.
func (c *Config) GenerateTasks(banks []string, product string, criteria []string) []model.Task {
	var tasks []model.Task
	now := time.Now().UTC()
	productLinks := c.ProductLinks(product)

	for _, criterion := range criteria {
		criterionLinks := c.CriterionLinks(criterion)
		for _, bank := range banks {
			urls := union(c.BankLinks(bank), productLinks, criterionLinks)
			if len(urls) == 0 {
				continue
			}
			tasks = append(tasks, model.Task{
				Competitor:  bank,
				Product:     product,
				Criterion:   criterion,
				URLs:        urls,
				GeneratedAt: now,
			})
		}
	}
	return tasks
}

func union(lists ...[]string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, list := range lists {
		for _, u := range list {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}
	sort.Strings(out)
	return out
}
