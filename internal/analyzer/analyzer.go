// Package analyzer extracts structured facts from cleaned page text via a
// pluggable LLM capability. The real Anthropic-backed provider and the
// deterministic mock are interchangeable behind the Provider interface and
// selected by configuration.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/benchmark-cli/internal/config"
	"github.com/sells-group/benchmark-cli/internal/model"
	"github.com/sells-group/benchmark-cli/pkg/anthropic"
)

// Subject carries the metadata the provider analyzes the text against.
type Subject struct {
	Competitor string
	Product    string
	Criterion  string
}

// Result is one structured fact from the provider.
type Result struct {
	Value      string
	Confidence float64
}

// Provider is the pluggable fact-extraction capability.
type Provider interface {
	// Name identifies the provider ("anthropic", "mock").
	Name() string

	// ModelID identifies the underlying model for fact provenance.
	ModelID() string

	// Analyze extracts a fact about the subject from the text.
	Analyze(ctx context.Context, text string, s Subject) (*Result, error)

	// Generate produces free-form text for a prompt (recommendations).
	Generate(ctx context.Context, prompt string) (string, error)
}

// AnalysisError is the typed per-page failure: the provider failed and no
// usable fact was produced. The calling pipeline records it and continues.
type AnalysisError struct {
	Subject Subject
	Cause   error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analyze %s/%s/%s: %v", e.Subject.Competitor, e.Subject.Product, e.Subject.Criterion, e.Cause)
}

func (e *AnalysisError) Unwrap() error { return e.Cause }

// Analyzer turns page results into facts. It bounds the input length and
// never lets a provider failure escape as anything but an *AnalysisError.
type Analyzer struct {
	provider      Provider
	promptVersion string
	maxInputRunes int
}

// New creates an Analyzer around the given provider.
func New(cfg config.AnalyzerConfig, provider Provider) *Analyzer {
	maxRunes := cfg.MaxInputRunes
	if maxRunes <= 0 {
		maxRunes = 2000
	}
	version := cfg.PromptVersion
	if version == "" {
		version = "v1"
	}
	return &Analyzer{
		provider:      provider,
		promptVersion: version,
		maxInputRunes: maxRunes,
	}
}

// FromConfig builds the configured provider.
func FromConfig(cfg *config.Config) (Provider, error) {
	switch cfg.Analyzer.Provider {
	case "mock":
		return NewMock(), nil
	case "anthropic":
		if cfg.Anthropic.Key == "" {
			return nil, eris.New("analyzer: anthropic provider requires an API key")
		}
		return NewClaude(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic), nil
	default:
		return nil, eris.Errorf("analyzer: unknown provider %q", cfg.Analyzer.Provider)
	}
}

// Analyze extracts a fact from one cleaned page. The returned fact is
// append-only material for the analysis store; nothing is persisted here.
func (a *Analyzer) Analyze(ctx context.Context, page model.PageResult) (*model.Fact, error) {
	subject := Subject{
		Competitor: page.Competitor,
		Product:    page.Product,
		Criterion:  page.Criterion,
	}

	res, err := a.provider.Analyze(ctx, truncateRunes(page.CleanedText, a.maxInputRunes), subject)
	if err != nil {
		return nil, &AnalysisError{Subject: subject, Cause: err}
	}

	confidence := res.Confidence
	raw, _ := json.Marshal(res)

	fact := &model.Fact{
		Competitor:       page.Competitor,
		Product:          page.Product,
		Criterion:        page.Criterion,
		Value:            res.Value,
		SourceURL:        page.SourceURL,
		ParsedAt:         page.ParsedAt,
		AnalysisAt:       time.Now().UTC(),
		LLMModel:         a.provider.ModelID(),
		LLMPromptVersion: a.promptVersion,
		Confidence:       &confidence,
		RawResponse:      raw,
	}

	zap.L().Debug("analyzed page",
		zap.String("competitor", page.Competitor),
		zap.String("criterion", page.Criterion),
		zap.String("provider", a.provider.Name()),
		zap.Float64("confidence", confidence),
	)

	return fact, nil
}

// Provider returns the capability backing this analyzer, for the
// recommendation generator which shares it.
func (a *Analyzer) Provider() Provider { return a.provider }

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
