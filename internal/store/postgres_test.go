package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/benchmark-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetOrCreateBank_TitlesSlug(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO banks`).
		WithArgs("sber_bank", "Sber Bank").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "website", "created_at", "updated_at"}).
			AddRow("sber_bank", "Sber Bank", "", now, now))

	b, err := s.GetOrCreateBank(context.Background(), "sber_bank")
	require.NoError(t, err)
	assert.Equal(t, "Sber Bank", b.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetSnapshotStatus_TerminalGuard(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	// Guarded update matches no rows because the snapshot is completed.
	mock.ExpectExec(`UPDATE snapshots SET parsing_status = \$1 WHERE id = \$2 AND parsing_status NOT IN`).
		WithArgs("in_progress", "snap-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT id, product_id, note, is_active, parsing_status, created_at FROM snapshots`).
		WithArgs("snap-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "product_id", "note", "is_active", "parsing_status", "created_at"}).
			AddRow("snap-1", "deposits", "", true, "completed", now))

	err := s.SetSnapshotStatus(context.Background(), "snap-1", model.ParsingInProgress)
	assert.ErrorIs(t, err, ErrSnapshotTerminal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetSnapshotStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE snapshots SET parsing_status`).
		WithArgs("completed", "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT id, product_id, note, is_active, parsing_status, created_at FROM snapshots`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	err := s.SetSnapshotStatus(context.Background(), "missing", model.ParsingCompleted)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertFeature_RefusesTerminalSnapshot(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, product_id, note, is_active, parsing_status, created_at FROM snapshots`).
		WithArgs("snap-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "product_id", "note", "is_active", "parsing_status", "created_at"}).
			AddRow("snap-1", "deposits", "", true, "failed", now))

	err := s.UpsertFeature(context.Background(), &model.FeatureValue{
		SnapshotID:  "snap-1",
		BankID:      "sber",
		CriterionID: "cost",
	})
	assert.ErrorIs(t, err, ErrSnapshotTerminal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertFeature_ConflictOverwrites(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, product_id, note, is_active, parsing_status, created_at FROM snapshots`).
		WithArgs("snap-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "product_id", "note", "is_active", "parsing_status", "created_at"}).
			AddRow("snap-1", "deposits", "", true, "in_progress", now))
	mock.ExpectExec(`INSERT INTO feature_values .* ON CONFLICT \(snapshot_id, bank_id, criterion_id\) DO UPDATE`).
		WithArgs(pgxmock.AnyArg(), "snap-1", "sber", "cost", true, pgxmock.AnyArg(), pgxmock.AnyArg(), "https://sber.example", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertFeature(context.Background(), &model.FeatureValue{
		SnapshotID:  "snap-1",
		BankID:      "sber",
		CriterionID: "cost",
		Value:       true,
		SourceURL:   "https://sber.example",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestComparison_ProductNotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT name FROM products WHERE id = \$1`).
		WithArgs("unknown").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.LatestComparison(context.Background(), "unknown", nil, nil)
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestComparison_NoActiveSnapshot(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT name FROM products WHERE id = \$1`).
		WithArgs("deposits").
		WillReturnRows(pgxmock.NewRows([]string{"name"}).AddRow("Deposits"))
	mock.ExpectQuery(`SELECT id, note, created_at FROM snapshots`).
		WithArgs("deposits").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.LatestComparison(context.Background(), "deposits", []string{"sber"}, []string{"cost"})
	assert.ErrorIs(t, err, ErrNoActiveSnapshot)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestComparison_AbsentPairIsFalse(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT name FROM products WHERE id = \$1`).
		WithArgs("deposits").
		WillReturnRows(pgxmock.NewRows([]string{"name"}).AddRow("Deposits"))
	mock.ExpectQuery(`SELECT id, note, created_at FROM snapshots`).
		WithArgs("deposits").
		WillReturnRows(pgxmock.NewRows([]string{"id", "note", "created_at"}).AddRow("snap-1", "", now))
	mock.ExpectQuery(`SELECT fv\.bank_id, fv\.criterion_id`).
		WithArgs("snap-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"bank_id", "criterion_id", "value", "confidence",
			"id", "name", "url", "description", "created_at", "updated_at",
		}).AddRow("sber", "cost", true, ptr(0.9), nil, nil, nil, nil, nil, nil))

	result, err := s.LatestComparison(context.Background(), "deposits", []string{"sber", "alfa"}, []string{"cost", "rate"})
	require.NoError(t, err)
	assert.True(t, result.Data["sber"]["cost"])
	assert.False(t, result.Data["sber"]["rate"])
	assert.False(t, result.Data["alfa"]["cost"])
	assert.Equal(t, 0.9, result.Confidence["sber.cost"])
	_, hasAbsent := result.Confidence["alfa.cost"]
	assert.False(t, hasAbsent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertFact(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO llm_analysis`).
		WithArgs(pgxmock.AnyArg(), "alfa", "credits", "rate", "Rate is 7.9%", "http://x/1",
			pgxmock.AnyArg(), pgxmock.AnyArg(), "claude-sonnet-4-5-20250929", "v1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := s.InsertFact(context.Background(), &model.Fact{
		Competitor:       "alfa",
		Product:          "credits",
		Criterion:        "rate",
		Value:            "Rate is 7.9%",
		SourceURL:        "http://x/1",
		ParsedAt:         time.Now().UTC(),
		LLMModel:         "claude-sonnet-4-5-20250929",
		LLMPromptVersion: "v1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertRecommendation_MissingFact(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO recommendations`).
		WithArgs(pgxmock.AnyArg(), "missing-fact", "text", pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23503"})

	_, err := s.InsertRecommendation(context.Background(), "missing-fact", "text")
	assert.ErrorIs(t, err, ErrFactNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_QueryFacts_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .* FROM llm_analysis WHERE true AND competitor = \$1 AND criterion = \$2`).
		WithArgs("alfa", "rate", 100).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "competitor", "product", "criterion", "value", "source_url",
			"parsed_at", "analysis_at", "llm_model", "llm_prompt_version", "confidence_score", "raw_response",
		}).AddRow("f1", "alfa", "credits", "rate", "7.9%", "http://x/1", now, now, "mock", "v1", ptr(0.8), []byte(`{}`)))

	facts, err := s.QueryFacts(context.Background(), model.FactFilter{Competitor: "alfa", Criterion: "rate"})
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "alfa", facts[0].Competitor)
	require.NotNil(t, facts[0].Confidence)
	assert.Equal(t, 0.8, *facts[0].Confidence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CleanupSnapshots(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM snapshots WHERE is_active = false AND created_at < \$1`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := s.CleanupSnapshots(context.Background(), 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func ptr[T any](v T) *T { return &v }
