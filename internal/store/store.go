// Package store persists analysis facts, recommendations and the versioned
// snapshot/comparison data. Postgres is the primary backend; SQLite backs
// local and dev runs, selected by configuration.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/benchmark-cli/internal/model"
)

var (
	// ErrProductNotFound is returned when a comparison targets an unknown product.
	ErrProductNotFound = eris.New("store: product not found")

	// ErrNoActiveSnapshot is returned when a product has no active completed snapshot.
	ErrNoActiveSnapshot = eris.New("store: no active completed snapshot")

	// ErrSnapshotNotFound is returned for operations against a missing snapshot.
	ErrSnapshotNotFound = eris.New("store: snapshot not found")

	// ErrSnapshotTerminal is returned when a write targets a completed or
	// failed snapshot. Terminal snapshots are frozen.
	ErrSnapshotTerminal = eris.New("store: snapshot is in a terminal state")

	// ErrFactNotFound is returned when a recommendation references a missing fact.
	ErrFactNotFound = eris.New("store: fact not found")
)

// RecommendationFilter narrows ListRecommendations. Empty fields match all.
type RecommendationFilter struct {
	Competitor string `json:"competitor,omitempty"`
	Product    string `json:"product,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// Counts summarizes stored entities for status reporting.
type Counts struct {
	Banks           int64 `json:"banks"`
	Products        int64 `json:"products"`
	Criteria        int64 `json:"criteria"`
	Sources         int64 `json:"sources"`
	Snapshots       int64 `json:"snapshots"`
	Facts           int64 `json:"facts"`
	Recommendations int64 `json:"recommendations"`
}

// AnalysisStore persists LLM pipeline output. Facts are append-only.
type AnalysisStore interface {
	InsertFact(ctx context.Context, fact *model.Fact) (string, error)
	QueryFacts(ctx context.Context, filter model.FactFilter) ([]model.Fact, error)
	InsertRecommendation(ctx context.Context, factID, text string) (string, error)
	ListRecommendations(ctx context.Context, filter RecommendationFilter) ([]model.Recommendation, error)
}

// BenchmarkStore is the versioned snapshot/comparison core plus the shared
// reference data it hangs off.
type BenchmarkStore interface {
	// Reference data. Get-or-create derives a display name from the slug
	// when the row does not exist yet; the Upsert variants take explicit
	// names and are used by seeding.
	UpsertBank(ctx context.Context, bank model.Bank) error
	UpsertProduct(ctx context.Context, product model.Product) error
	UpsertCriterion(ctx context.Context, criterion model.Criterion) error
	UpsertSource(ctx context.Context, source model.Source) error
	GetOrCreateBank(ctx context.Context, id string) (*model.Bank, error)
	GetOrCreateProduct(ctx context.Context, id string) (*model.Product, error)
	GetOrCreateCriterion(ctx context.Context, id string) (*model.Criterion, error)
	GetOrCreateSource(ctx context.Context, name, url string) (*model.Source, error)
	ListBanks(ctx context.Context) ([]model.Bank, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	ListCriteria(ctx context.Context) ([]model.Criterion, error)
	ListSources(ctx context.Context) ([]model.Source, error)

	// Snapshots.
	CreateSnapshot(ctx context.Context, productID, note string) (*model.Snapshot, error)
	GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error)
	// SetSnapshotStatus refuses transitions out of completed/failed.
	SetSnapshotStatus(ctx context.Context, id string, status model.ParsingStatus) error
	ListSnapshots(ctx context.Context, productID string, limit int) ([]model.Snapshot, error)
	// StuckSnapshots returns non-terminal snapshots older than the threshold.
	StuckSnapshots(ctx context.Context, olderThan time.Duration) ([]model.Snapshot, error)
	// CleanupSnapshots deletes inactive snapshots older than the threshold.
	// This is the only deletion path for snapshots.
	CleanupSnapshots(ctx context.Context, olderThan time.Duration) (int, error)

	// Feature values and audit trail.
	UpsertFeature(ctx context.Context, fv *model.FeatureValue) error
	AppendParseLog(ctx context.Context, entry *model.ParseLog) error

	// LatestComparison reads the newest active completed snapshot for the
	// product. Pairs without a stored value read as false.
	LatestComparison(ctx context.Context, productID string, banks, criteria []string) (*model.ComparisonResult, error)

	Counts(ctx context.Context) (*Counts, error)
}

// Store is the full persistence surface.
type Store interface {
	AnalysisStore
	BenchmarkStore

	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
