package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/sells-group/benchmark-cli/internal/extract"
	"github.com/sells-group/benchmark-cli/internal/fetcher"
	"github.com/sells-group/benchmark-cli/internal/mapping"
	"github.com/sells-group/benchmark-cli/internal/model"
)

// ParsedFeature is one criterion result from a bank parser.
type ParsedFeature struct {
	Present    bool            `json:"value"`
	Confidence *float64        `json:"confidence,omitempty"`
	SourceURL  string          `json:"source_url,omitempty"`
	RawData    json.RawMessage `json:"raw_data,omitempty"`
}

// Parser reads one bank's feature data from a domain-specific source.
// Implementations must be safe for concurrent use across banks.
type Parser interface {
	// Source names the origin the parser reads from, for audit logging.
	Source() (name, url string)

	// Parse returns criterion ID → feature for one bank. A failed bank is
	// logged and skipped; it never fails the batch.
	Parse(ctx context.Context, bank model.Bank, criteria []model.Criterion) (map[string]ParsedFeature, error)
}

// MockParser produces deterministic offline data: presence and confidence
// are derived from the (bank, criterion) pair, so reruns are reproducible.
type MockParser struct{}

func (MockParser) Source() (string, string) {
	return "Mock", "https://example.com"
}

func (MockParser) Parse(_ context.Context, bank model.Bank, criteria []model.Criterion) (map[string]ParsedFeature, error) {
	out := make(map[string]ParsedFeature, len(criteria))
	for _, c := range criteria {
		h := fnv.New32a()
		fmt.Fprintf(h, "%s/%s", bank.ID, c.ID)
		sum := h.Sum32()

		confidence := 0.6 + float64(sum%40)/100
		raw, _ := json.Marshal(map[string]any{"mock": true, "bank": bank.ID, "criterion": c.ID})
		out[c.ID] = ParsedFeature{
			Present:    sum%2 == 0,
			Confidence: &confidence,
			SourceURL:  "https://example.com/" + bank.ID,
			RawData:    raw,
		}
	}
	return out, nil
}

// KeywordParser fetches each bank's mapped pages and marks a criterion
// present when its name occurs in the cleaned page text. Crude, but it is
// an honest baseline that works against any bank site without per-site
// scraping code.
type KeywordParser struct {
	Fetcher fetcher.Fetcher
	Mapping *mapping.Config
}

const keywordConfidence = 0.6

func (p *KeywordParser) Source() (string, string) {
	return "Bank websites", ""
}

func (p *KeywordParser) Parse(ctx context.Context, bank model.Bank, criteria []model.Criterion) (map[string]ParsedFeature, error) {
	urls := p.Mapping.BankLinks(bank.ID)
	if len(urls) == 0 && bank.Website != "" {
		urls = []string{bank.Website}
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("keyword parser: no urls for bank %s", bank.ID)
	}

	// Page texts keyed by URL; failed pages are simply absent.
	texts := map[string]string{}
	var lastErr error
	for _, url := range urls {
		raw, err := p.Fetcher.Fetch(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}
		if text := extract.Clean(raw); text != "" {
			texts[url] = strings.ToLower(text)
		}
	}
	if len(texts) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, fmt.Errorf("keyword parser: no usable content for bank %s", bank.ID)
	}

	out := make(map[string]ParsedFeature, len(criteria))
	for _, c := range criteria {
		needle := strings.ToLower(c.Name)
		feature := ParsedFeature{}
		for url, text := range texts {
			if strings.Contains(text, needle) {
				confidence := keywordConfidence
				raw, _ := json.Marshal(map[string]any{"matched": c.Name, "url": url})
				feature = ParsedFeature{
					Present:    true,
					Confidence: &confidence,
					SourceURL:  url,
					RawData:    raw,
				}
				break
			}
		}
		out[c.ID] = feature
	}
	return out, nil
}
