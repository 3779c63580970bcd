package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/benchmark-cli/internal/config"
	"github.com/sells-group/benchmark-cli/internal/resilience"
	"github.com/sells-group/benchmark-cli/pkg/anthropic"
)

const claudeSystemPrompt = `You are an expert analyst of retail banking products. ` +
	`You extract a single concrete fact about one product criterion from page text. ` +
	`Respond with JSON only, no prose around it.`

const fallbackConfidence = 0.7

// claudeResponse is the structured shape the prompt asks the model for.
type claudeResponse struct {
	Fact       string  `json:"fact"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Claude extracts facts with the Anthropic messages API.
type Claude struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	retry     resilience.RetryPolicy
}

// NewClaude wraps a messages client as an analysis provider.
func NewClaude(client anthropic.Client, cfg config.AnthropicConfig) *Claude {
	retry := resilience.Default()
	retry.ShouldRetry = resilience.IsTransient
	retry.OnRetry = resilience.RetryLogger("analyzer", "create message")
	return &Claude{
		client:    client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		retry:     retry,
	}
}

func (c *Claude) Name() string    { return "anthropic" }
func (c *Claude) ModelID() string { return c.model }

// Analyze asks the model for one fact about the subject and parses the
// structured reply. A reply that is not valid JSON is kept verbatim as the
// value at a reduced fixed confidence rather than discarded.
func (c *Claude) Analyze(ctx context.Context, text string, s Subject) (*Result, error) {
	prompt := buildFactPrompt(text, s)

	reply, err := c.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var parsed claudeResponse
	if err := json.Unmarshal([]byte(extractJSON(reply)), &parsed); err != nil || parsed.Value == "" {
		return &Result{Value: strings.TrimSpace(reply), Confidence: fallbackConfidence}, nil
	}
	if parsed.Confidence <= 0 || parsed.Confidence > 1 {
		parsed.Confidence = fallbackConfidence
	}
	return &Result{Value: parsed.Value, Confidence: parsed.Confidence}, nil
}

// Generate returns model prose for a free-form prompt.
func (c *Claude) Generate(ctx context.Context, prompt string) (string, error) {
	reply, err := c.complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

func (c *Claude) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return c.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     c.model,
			MaxTokens: c.maxTokens,
			System:    claudeSystemPrompt,
			Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
		})
	})
	if err != nil {
		return "", eris.Wrap(err, "analyzer: create message")
	}
	text := resp.FirstText()
	if text == "" {
		return "", eris.New("analyzer: empty model response")
	}
	return text, nil
}

func buildFactPrompt(text string, s Subject) string {
	return fmt.Sprintf(`Analyze the following page text from competitor %q about the product %q.

Extract the value of the criterion %q.

Respond with a single JSON object of the form:
{"fact": "<short name of the fact>", "value": "<the extracted value>", "confidence": <0..1>}

Page text:
%s`, s.Competitor, s.Product, s.Criterion, text)
}

// extractJSON pulls the outermost JSON object out of a reply that may wrap
// it in markdown fences or prose.
func extractJSON(reply string) string {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start == -1 || end == -1 || end < start {
		return reply
	}
	return reply[start : end+1]
}
