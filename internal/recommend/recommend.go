// Package recommend derives textual recommendations from stored facts.
// Rule selection is a pure function over the fact value; only the final
// phrasing is delegated to the generative capability.
package recommend

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/benchmark-cli/internal/analyzer"
	"github.com/sells-group/benchmark-cli/internal/model"
)

// ErrEmptyValue is returned for facts with no usable value.
var ErrEmptyValue = eris.New("recommend: fact has no value")

// Generator phrases recommendations for facts via the analysis provider.
type Generator struct {
	provider analyzer.Provider
	rules    []Rule
}

// NewGenerator builds a generator over the default rule set.
func NewGenerator(provider analyzer.Provider) *Generator {
	return &Generator{provider: provider, rules: DefaultRules}
}

// Generate matches the fact against the business rules and asks the
// provider to phrase the matched category for the fact's subject.
func (g *Generator) Generate(ctx context.Context, fact *model.Fact) (string, error) {
	if strings.TrimSpace(fact.Value) == "" {
		return "", ErrEmptyValue
	}

	rule, ok := MatchRule(fact.Value, g.rules)
	if !ok {
		return "", ErrEmptyValue
	}

	text, err := g.provider.Generate(ctx, buildPrompt(fact, rule, g.rules))
	if err != nil {
		return "", eris.Wrap(err, "recommend: generate")
	}

	zap.L().Debug("generated recommendation",
		zap.String("competitor", fact.Competitor),
		zap.String("criterion", fact.Criterion),
		zap.String("rule", rule.ID),
	)

	return text, nil
}

// Rule exposes the deterministic half of generation for callers that need
// reproducible categorization without model output.
func (g *Generator) Rule(value string) (Rule, bool) {
	return MatchRule(value, g.rules)
}

func buildPrompt(fact *model.Fact, matched Rule, rules []Rule) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write one short product recommendation for our bank.\n\n")
	fmt.Fprintf(&b, "Competitor: %s\nProduct: %s\nCriterion: %s\nObserved value: %s\n\n", fact.Competitor, fact.Product, fact.Criterion, fact.Value)
	b.WriteString("Business rules, in priority order:\n")
	for _, r := range rules {
		fmt.Fprintf(&b, "- [%s] %s\n", r.ID, r.Hint)
	}
	fmt.Fprintf(&b, "\nThe matched rule is [%s]. Phrase the recommendation for that category in at most two sentences.", matched.ID)
	return b.String()
}
