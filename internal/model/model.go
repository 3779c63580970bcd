// Package model holds the shared domain types for the benchmark pipeline.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ParsingStatus tracks the lifecycle of a snapshot's batch ingestion run.
type ParsingStatus string

const (
	ParsingPending    ParsingStatus = "pending"
	ParsingInProgress ParsingStatus = "in_progress"
	ParsingCompleted  ParsingStatus = "completed"
	ParsingFailed     ParsingStatus = "failed"
)

// Terminal reports whether no further status transitions are allowed.
func (s ParsingStatus) Terminal() bool {
	return s == ParsingCompleted || s == ParsingFailed
}

// LogStatus classifies a parse log entry.
type LogStatus string

const (
	LogSuccess LogStatus = "success"
	LogWarning LogStatus = "warning"
	LogError   LogStatus = "error"
)

// Bank is a competitor being benchmarked. The slug ID is its stable identity.
type Bank struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Website   string    `json:"website,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Product is a comparable product category such as "deposits" or "credits".
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Criterion is a comparison axis such as "cost" or "rate".
type Criterion struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Source is a named origin website. Feature values reference it weakly:
// deleting a source nulls the reference, it never cascades.
type Source struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot is an immutable point-in-time container for one product's
// comparison data. Once ParsingStatus reaches a terminal state its feature
// values are frozen; new data goes into a new snapshot.
type Snapshot struct {
	ID            string        `json:"id"`
	ProductID     string        `json:"product_id"`
	Note          string        `json:"note,omitempty"`
	IsActive      bool          `json:"is_active"`
	ParsingStatus ParsingStatus `json:"parsing_status"`
	CreatedAt     time.Time     `json:"created_at"`
}

// FeatureValue is the (bank, criterion) truth value within one snapshot.
// Unique per (snapshot, bank, criterion); writes are upserts.
type FeatureValue struct {
	ID         string          `json:"id"`
	SnapshotID string          `json:"snapshot_id"`
	BankID     string          `json:"bank_id"`
	CriterionID string         `json:"criterion_id"`
	Value      bool            `json:"value"`
	Confidence *float64        `json:"confidence,omitempty"`
	SourceID   *string         `json:"source_id,omitempty"`
	SourceURL  string          `json:"source_url,omitempty"`
	RawData    json.RawMessage `json:"raw_data,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ParseLog is an append-only audit record for one ingestion attempt.
type ParseLog struct {
	ID         string    `json:"id"`
	SourceID   string    `json:"source_id"`
	SnapshotID *string   `json:"snapshot_id,omitempty"`
	Status     LogStatus `json:"status"`
	Message    string    `json:"message"`
	ErrorTrace string    `json:"error_trace,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Fact is one extracted analysis result from the LLM pipeline. Rows are
// append-only: each analysis run inserts, never updates.
type Fact struct {
	ID               string          `json:"id"`
	Competitor       string          `json:"competitor"`
	Product          string          `json:"product"`
	Criterion        string          `json:"criterion"`
	Value            string          `json:"value"`
	SourceURL        string          `json:"source_url,omitempty"`
	ParsedAt         time.Time       `json:"parsed_at"`
	AnalysisAt       time.Time       `json:"analysis_at"`
	LLMModel         string          `json:"llm_model"`
	LLMPromptVersion string          `json:"llm_prompt_version"`
	Confidence       *float64        `json:"confidence_score,omitempty"`
	RawResponse      json.RawMessage `json:"raw_response,omitempty"`
}

// Recommendation is derived text for one fact. It is owned by the fact:
// deleting the fact cascades.
type Recommendation struct {
	ID        string    `json:"id"`
	FactID    string    `json:"fact_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// FactFilter narrows QueryFacts. Empty fields match everything.
type FactFilter struct {
	Competitor string `json:"competitor,omitempty"`
	Product    string `json:"product,omitempty"`
	Criterion  string `json:"criterion,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// Task describes one unit of analysis work handed to the LLM pipeline.
type Task struct {
	Competitor  string    `json:"competitor"`
	Product     string    `json:"product"`
	Criterion   string    `json:"criterion"`
	URLs        []string  `json:"urls"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ValidationError reports a task with missing required fields. It is fatal
// to that task only, never to the enclosing batch.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("task validation: missing required field %q", e.Field)
}

// Validate checks the task's required fields.
func (t Task) Validate() error {
	switch {
	case t.Competitor == "":
		return &ValidationError{Field: "competitor"}
	case t.Product == "":
		return &ValidationError{Field: "product"}
	case t.Criterion == "":
		return &ValidationError{Field: "criterion"}
	case len(t.URLs) == 0:
		return &ValidationError{Field: "urls"}
	}
	return nil
}

// PageResult is the fetch+clean output for one page, the analyzer's input.
// Err is set when the page failed; such pages are recorded and skipped.
type PageResult struct {
	Competitor  string    `json:"competitor"`
	Product     string    `json:"product"`
	Criterion   string    `json:"criterion"`
	SourceURL   string    `json:"source_url"`
	ParsedAt    time.Time `json:"parsed_at"`
	CleanedText string    `json:"cleaned_text,omitempty"`
	Err         string    `json:"error,omitempty"`
}

// ComparisonResult answers a "latest comparison" query. Data maps
// bank ID → criterion ID → presence; Confidence is keyed "bank.criterion".
type ComparisonResult struct {
	Date       time.Time                  `json:"date"`
	Sources    []Source                   `json:"sources"`
	Data       map[string]map[string]bool `json:"data"`
	Confidence map[string]float64         `json:"confidence"`
	Note       string                     `json:"note,omitempty"`
	Product    string                     `json:"product"`
	IsMock     bool                       `json:"is_mock"`
}
