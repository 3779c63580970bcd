package recommend

import (
	"regexp"
	"strconv"
	"strings"
)

// Rule is one deterministic business rule. Rules are evaluated in order and
// the first match wins; Hint is the category text handed to the generator
// as phrasing context.
type Rule struct {
	ID    string
	Hint  string
	Match func(value string) bool
}

// DefaultRules is the ordered rule set for retail banking criteria.
// Order is significant.
var DefaultRules = []Rule{
	{
		ID:   "free-of-charge",
		Hint: "The competitor offers this free of charge. Recommend reviewing whether our own fee is defensible.",
		Match: func(v string) bool {
			lower := strings.ToLower(v)
			return strings.Contains(lower, "free") || strings.Contains(lower, "бесплатно") || strings.Contains(lower, "0%")
		},
	},
	{
		ID:   "rate-aggressive",
		Hint: "The competitor's rate is aggressively low. Recommend evaluating a matching promotional offer.",
		Match: func(v string) bool {
			n, ok := firstNumber(v)
			return ok && n > 0 && n <= 5
		},
	},
	{
		ID:   "rate-high",
		Hint: "The competitor's rate is high. Recommend emphasizing our lower pricing in comparisons.",
		Match: func(v string) bool {
			n, ok := firstNumber(v)
			return ok && n >= 15
		},
	},
	{
		ID:   "rate-market",
		Hint: "The competitor's rate is in the usual market band. Recommend a neutral side-by-side comparison.",
		Match: func(v string) bool {
			_, ok := firstNumber(v)
			return ok
		},
	},
	{
		ID:   "qualitative",
		Hint: "No numeric value was extracted. Recommend a qualitative comparison of the stated terms.",
		Match: func(v string) bool {
			return strings.TrimSpace(v) != ""
		},
	},
}

// MatchRule evaluates the rules in order against the fact value and returns
// the first match. Pure: same value, same rule, every time.
func MatchRule(value string, rules []Rule) (Rule, bool) {
	for _, r := range rules {
		if r.Match(value) {
			return r, true
		}
	}
	return Rule{}, false
}

var numberPattern = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// firstNumber extracts the first numeric token from free text. Decimal
// commas are accepted since source pages mix locales.
func firstNumber(s string) (float64, bool) {
	match := numberPattern.FindString(s)
	if match == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
