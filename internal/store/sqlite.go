package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/benchmark-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs local and
// development runs; Postgres remains the production backend.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sqlDB}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS banks (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	website    TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS products (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS criteria (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS sources (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	url         TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS snapshots (
	id             TEXT PRIMARY KEY,
	product_id     TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	note           TEXT NOT NULL DEFAULT '',
	is_active      BOOLEAN NOT NULL DEFAULT 1,
	parsing_status TEXT NOT NULL DEFAULT 'pending',
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_snapshots_product_created ON snapshots(product_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_snapshots_status ON snapshots(parsing_status);

CREATE TABLE IF NOT EXISTS feature_values (
	id           TEXT PRIMARY KEY,
	snapshot_id  TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	bank_id      TEXT NOT NULL REFERENCES banks(id) ON DELETE CASCADE,
	criterion_id TEXT NOT NULL REFERENCES criteria(id) ON DELETE CASCADE,
	value        BOOLEAN NOT NULL DEFAULT 0,
	confidence   REAL,
	source_id    TEXT REFERENCES sources(id) ON DELETE SET NULL,
	source_url   TEXT NOT NULL DEFAULT '',
	raw_data     TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (snapshot_id, bank_id, criterion_id)
);

CREATE INDEX IF NOT EXISTS idx_feature_values_snapshot ON feature_values(snapshot_id);

CREATE TABLE IF NOT EXISTS parse_logs (
	id          TEXT PRIMARY KEY,
	source_id   TEXT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
	snapshot_id TEXT REFERENCES snapshots(id) ON DELETE CASCADE,
	status      TEXT NOT NULL,
	message     TEXT NOT NULL DEFAULT '',
	error_trace TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_parse_logs_snapshot ON parse_logs(snapshot_id);

CREATE TABLE IF NOT EXISTS llm_analysis (
	id                 TEXT PRIMARY KEY,
	competitor         TEXT NOT NULL,
	product            TEXT NOT NULL,
	criterion          TEXT NOT NULL,
	value              TEXT NOT NULL DEFAULT '',
	source_url         TEXT NOT NULL DEFAULT '',
	parsed_at          DATETIME NOT NULL,
	analysis_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	llm_model          TEXT NOT NULL,
	llm_prompt_version TEXT NOT NULL,
	confidence_score   REAL,
	raw_response       TEXT
);

CREATE INDEX IF NOT EXISTS idx_llm_analysis_subject ON llm_analysis(competitor, product);
CREATE INDEX IF NOT EXISTS idx_llm_analysis_parsed_at ON llm_analysis(parsed_at);

CREATE TABLE IF NOT EXISTS recommendations (
	id         TEXT PRIMARY KEY,
	fact_id    TEXT NOT NULL REFERENCES llm_analysis(id) ON DELETE CASCADE,
	text       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_recommendations_fact ON recommendations(fact_id);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertBank(ctx context.Context, bank model.Bank) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO banks (id, name, website, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, website = excluded.website, updated_at = excluded.updated_at`,
		bank.ID, bank.Name, bank.Website, now, now,
	)
	return eris.Wrapf(err, "sqlite: upsert bank %s", bank.ID)
}

func (s *SQLiteStore) UpsertProduct(ctx context.Context, product model.Product) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, description = excluded.description, updated_at = excluded.updated_at`,
		product.ID, product.Name, product.Description, now, now,
	)
	return eris.Wrapf(err, "sqlite: upsert product %s", product.ID)
}

func (s *SQLiteStore) UpsertCriterion(ctx context.Context, criterion model.Criterion) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO criteria (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, description = excluded.description, updated_at = excluded.updated_at`,
		criterion.ID, criterion.Name, criterion.Description, now, now,
	)
	return eris.Wrapf(err, "sqlite: upsert criterion %s", criterion.ID)
}

func (s *SQLiteStore) UpsertSource(ctx context.Context, source model.Source) error {
	id := source.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sources (id, name, url, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET name = excluded.name, description = excluded.description, updated_at = excluded.updated_at`,
		id, source.Name, source.URL, source.Description, now, now,
	)
	return eris.Wrapf(err, "sqlite: upsert source %s", source.URL)
}

func (s *SQLiteStore) GetOrCreateBank(ctx context.Context, id string) (*model.Bank, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO banks (id, name, created_at, updated_at) VALUES (?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		id, displayName(id), now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: create bank %s", id)
	}

	var b model.Bank
	err = s.db.QueryRowContext(ctx,
		`SELECT id, name, website, created_at, updated_at FROM banks WHERE id = ?`, id,
	).Scan(&b.ID, &b.Name, &b.Website, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get bank %s", id)
	}
	return &b, nil
}

func (s *SQLiteStore) GetOrCreateProduct(ctx context.Context, id string) (*model.Product, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (id, name, created_at, updated_at) VALUES (?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		id, displayName(id), now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: create product %s", id)
	}

	var p model.Product
	err = s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM products WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get product %s", id)
	}
	return &p, nil
}

func (s *SQLiteStore) GetOrCreateCriterion(ctx context.Context, id string) (*model.Criterion, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO criteria (id, name, created_at, updated_at) VALUES (?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		id, displayName(id), now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: create criterion %s", id)
	}

	var c model.Criterion
	err = s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM criteria WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get criterion %s", id)
	}
	return &c, nil
}

func (s *SQLiteStore) GetOrCreateSource(ctx context.Context, name, url string) (*model.Source, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sources (id, name, url, created_at, updated_at) VALUES (?, ?, ?, ?, ?) ON CONFLICT(url) DO NOTHING`,
		uuid.New().String(), name, url, now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: create source %s", url)
	}

	var src model.Source
	err = s.db.QueryRowContext(ctx,
		`SELECT id, name, url, description, created_at, updated_at FROM sources WHERE url = ?`, url,
	).Scan(&src.ID, &src.Name, &src.URL, &src.Description, &src.CreatedAt, &src.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get source %s", url)
	}
	return &src, nil
}

func (s *SQLiteStore) ListBanks(ctx context.Context) ([]model.Bank, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, website, created_at, updated_at FROM banks ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list banks")
	}
	defer rows.Close()

	var banks []model.Bank
	for rows.Next() {
		var b model.Bank
		if err := rows.Scan(&b.ID, &b.Name, &b.Website, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan bank")
		}
		banks = append(banks, b)
	}
	return banks, eris.Wrap(rows.Err(), "sqlite: list banks")
}

func (s *SQLiteStore) ListProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM products ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list products")
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan product")
		}
		products = append(products, p)
	}
	return products, eris.Wrap(rows.Err(), "sqlite: list products")
}

func (s *SQLiteStore) ListCriteria(ctx context.Context) ([]model.Criterion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM criteria ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list criteria")
	}
	defer rows.Close()

	var criteria []model.Criterion
	for rows.Next() {
		var c model.Criterion
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan criterion")
		}
		criteria = append(criteria, c)
	}
	return criteria, eris.Wrap(rows.Err(), "sqlite: list criteria")
}

func (s *SQLiteStore) ListSources(ctx context.Context) ([]model.Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, url, description, created_at, updated_at FROM sources ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sources")
	}
	defer rows.Close()

	var sources []model.Source
	for rows.Next() {
		var src model.Source
		if err := rows.Scan(&src.ID, &src.Name, &src.URL, &src.Description, &src.CreatedAt, &src.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan source")
		}
		sources = append(sources, src)
	}
	return sources, eris.Wrap(rows.Err(), "sqlite: list sources")
}

func (s *SQLiteStore) CreateSnapshot(ctx context.Context, productID, note string) (*model.Snapshot, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, product_id, note, is_active, parsing_status, created_at) VALUES (?, ?, ?, 1, ?, ?)`,
		id, productID, note, string(model.ParsingPending), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: create snapshot for %s", productID)
	}

	return &model.Snapshot{
		ID:            id,
		ProductID:     productID,
		Note:          note,
		IsActive:      true,
		ParsingStatus: model.ParsingPending,
		CreatedAt:     now,
	}, nil
}

func (s *SQLiteStore) GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error) {
	var snap model.Snapshot
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, product_id, note, is_active, parsing_status, created_at FROM snapshots WHERE id = ?`, id,
	).Scan(&snap.ID, &snap.ProductID, &snap.Note, &snap.IsActive, &status, &snap.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get snapshot %s", id)
	}
	snap.ParsingStatus = model.ParsingStatus(status)
	return &snap, nil
}

func (s *SQLiteStore) SetSnapshotStatus(ctx context.Context, id string, status model.ParsingStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE snapshots SET parsing_status = ? WHERE id = ? AND parsing_status NOT IN ('completed', 'failed')`,
		string(status), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set snapshot status %s", id)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if affected == 0 {
		if _, err := s.GetSnapshot(ctx, id); err != nil {
			return err
		}
		return ErrSnapshotTerminal
	}
	return nil
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context, productID string, limit int) ([]model.Snapshot, error) {
	query := `SELECT id, product_id, note, is_active, parsing_status, created_at FROM snapshots WHERE 1=1`
	args := []any{}
	if productID != "" {
		query += ` AND product_id = ?`
		args = append(args, productID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list snapshots")
	}
	defer rows.Close()

	return scanSQLiteSnapshots(rows)
}

func (s *SQLiteStore) StuckSnapshots(ctx context.Context, olderThan time.Duration) ([]model.Snapshot, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, product_id, note, is_active, parsing_status, created_at FROM snapshots
		 WHERE parsing_status IN ('pending', 'in_progress') AND created_at < ?
		 ORDER BY created_at`,
		cutoff,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stuck snapshots")
	}
	defer rows.Close()

	return scanSQLiteSnapshots(rows)
}

func scanSQLiteSnapshots(rows *sql.Rows) ([]model.Snapshot, error) {
	var snaps []model.Snapshot
	for rows.Next() {
		var snap model.Snapshot
		var status string
		if err := rows.Scan(&snap.ID, &snap.ProductID, &snap.Note, &snap.IsActive, &status, &snap.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot")
		}
		snap.ParsingStatus = model.ParsingStatus(status)
		snaps = append(snaps, snap)
	}
	return snaps, eris.Wrap(rows.Err(), "sqlite: scan snapshots")
}

func (s *SQLiteStore) CleanupSnapshots(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE is_active = 0 AND created_at < ?`, cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: cleanup snapshots")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return int(affected), nil
}

func (s *SQLiteStore) UpsertFeature(ctx context.Context, fv *model.FeatureValue) error {
	snap, err := s.GetSnapshot(ctx, fv.SnapshotID)
	if err != nil {
		return err
	}
	if snap.ParsingStatus.Terminal() {
		return ErrSnapshotTerminal
	}

	now := time.Now().UTC()
	id := fv.ID
	if id == "" {
		id = uuid.New().String()
	}
	var rawData any
	if len(fv.RawData) > 0 {
		rawData = string(fv.RawData)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO feature_values (id, snapshot_id, bank_id, criterion_id, value, confidence, source_id, source_url, raw_data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (snapshot_id, bank_id, criterion_id) DO UPDATE SET
			value = excluded.value,
			confidence = excluded.confidence,
			source_id = excluded.source_id,
			source_url = excluded.source_url,
			raw_data = excluded.raw_data,
			updated_at = excluded.updated_at`,
		id, fv.SnapshotID, fv.BankID, fv.CriterionID, fv.Value, fv.Confidence, fv.SourceID, fv.SourceURL, rawData, now, now,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert feature %s/%s/%s", fv.SnapshotID, fv.BankID, fv.CriterionID)
	}
	return nil
}

func (s *SQLiteStore) AppendParseLog(ctx context.Context, entry *model.ParseLog) error {
	id := entry.ID
	if id == "" {
		id = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO parse_logs (id, source_id, snapshot_id, status, message, error_trace, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, entry.SourceID, entry.SnapshotID, string(entry.Status), entry.Message, entry.ErrorTrace, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: append parse log")
}

func (s *SQLiteStore) LatestComparison(ctx context.Context, productID string, banks, criteria []string) (*model.ComparisonResult, error) {
	var productName string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM products WHERE id = ?`, productID,
	).Scan(&productName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get product %s", productID)
	}

	var snap model.Snapshot
	err = s.db.QueryRowContext(ctx,
		`SELECT id, note, created_at FROM snapshots
		 WHERE product_id = ? AND is_active = 1 AND parsing_status = 'completed'
		 ORDER BY created_at DESC LIMIT 1`,
		productID,
	).Scan(&snap.ID, &snap.Note, &snap.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoActiveSnapshot
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest snapshot for %s", productID)
	}

	if len(banks) == 0 {
		if banks, err = s.ids(ctx, `SELECT id FROM banks ORDER BY id`); err != nil {
			return nil, err
		}
	}
	if len(criteria) == 0 {
		if criteria, err = s.ids(ctx, `SELECT id FROM criteria ORDER BY id`); err != nil {
			return nil, err
		}
	}

	result := &model.ComparisonResult{
		Date:       snap.CreatedAt,
		Data:       map[string]map[string]bool{},
		Confidence: map[string]float64{},
		Note:       snap.Note,
		Product:    productID,
	}
	wantBank := map[string]bool{}
	for _, b := range banks {
		wantBank[b] = true
		result.Data[b] = map[string]bool{}
		for _, c := range criteria {
			result.Data[b][c] = false
		}
	}
	wantCriterion := map[string]bool{}
	for _, c := range criteria {
		wantCriterion[c] = true
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT fv.bank_id, fv.criterion_id, fv.value, fv.confidence,
			src.id, src.name, src.url, src.description, src.created_at, src.updated_at
		 FROM feature_values fv
		 LEFT JOIN sources src ON src.id = fv.source_id
		 WHERE fv.snapshot_id = ?`,
		snap.ID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: comparison feature values")
	}
	defer rows.Close()

	seenSource := map[string]bool{}
	for rows.Next() {
		var (
			bankID, criterionID string
			value               bool
			confidence          sql.NullFloat64
			srcID, srcName      sql.NullString
			srcURL, srcDesc     sql.NullString
			srcCreated, srcUpd  sql.NullTime
		)
		if err := rows.Scan(&bankID, &criterionID, &value, &confidence,
			&srcID, &srcName, &srcURL, &srcDesc, &srcCreated, &srcUpd); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan feature value")
		}
		if !wantBank[bankID] || !wantCriterion[criterionID] {
			continue
		}

		result.Data[bankID][criterionID] = value
		if confidence.Valid {
			result.Confidence[bankID+"."+criterionID] = confidence.Float64
		}
		if srcID.Valid && !seenSource[srcID.String] {
			seenSource[srcID.String] = true
			result.Sources = append(result.Sources, model.Source{
				ID:          srcID.String,
				Name:        srcName.String,
				URL:         srcURL.String,
				Description: srcDesc.String,
				CreatedAt:   srcCreated.Time,
				UpdatedAt:   srcUpd.Time,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: comparison feature values")
	}
	return result, nil
}

func (s *SQLiteStore) ids(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: list ids")
}

func (s *SQLiteStore) Counts(ctx context.Context) (*Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx,
		`SELECT
			(SELECT count(*) FROM banks),
			(SELECT count(*) FROM products),
			(SELECT count(*) FROM criteria),
			(SELECT count(*) FROM sources),
			(SELECT count(*) FROM snapshots),
			(SELECT count(*) FROM llm_analysis),
			(SELECT count(*) FROM recommendations)`,
	).Scan(&c.Banks, &c.Products, &c.Criteria, &c.Sources, &c.Snapshots, &c.Facts, &c.Recommendations)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: counts")
	}
	return &c, nil
}

func (s *SQLiteStore) InsertFact(ctx context.Context, fact *model.Fact) (string, error) {
	id := fact.ID
	if id == "" {
		id = uuid.New().String()
	}
	analysisAt := fact.AnalysisAt
	if analysisAt.IsZero() {
		analysisAt = time.Now().UTC()
	}
	var rawResponse any
	if len(fact.RawResponse) > 0 {
		rawResponse = string(fact.RawResponse)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO llm_analysis (id, competitor, product, criterion, value, source_url, parsed_at, analysis_at, llm_model, llm_prompt_version, confidence_score, raw_response)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, fact.Competitor, fact.Product, fact.Criterion, fact.Value, fact.SourceURL,
		fact.ParsedAt, analysisAt, fact.LLMModel, fact.LLMPromptVersion, fact.Confidence, rawResponse,
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert fact")
	}
	return id, nil
}

func (s *SQLiteStore) QueryFacts(ctx context.Context, filter model.FactFilter) ([]model.Fact, error) {
	query := `SELECT id, competitor, product, criterion, value, source_url, parsed_at, analysis_at, llm_model, llm_prompt_version, confidence_score, raw_response
		 FROM llm_analysis WHERE 1=1`
	args := []any{}

	if filter.Competitor != "" {
		query += ` AND competitor = ?`
		args = append(args, filter.Competitor)
	}
	if filter.Product != "" {
		query += ` AND product = ?`
		args = append(args, filter.Product)
	}
	if filter.Criterion != "" {
		query += ` AND criterion = ?`
		args = append(args, filter.Criterion)
	}
	query += ` ORDER BY analysis_at DESC LIMIT ?`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query facts")
	}
	defer rows.Close()

	var facts []model.Fact
	for rows.Next() {
		var f model.Fact
		var confidence sql.NullFloat64
		var rawResponse sql.NullString
		if err := rows.Scan(&f.ID, &f.Competitor, &f.Product, &f.Criterion, &f.Value, &f.SourceURL,
			&f.ParsedAt, &f.AnalysisAt, &f.LLMModel, &f.LLMPromptVersion, &confidence, &rawResponse); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan fact")
		}
		if confidence.Valid {
			v := confidence.Float64
			f.Confidence = &v
		}
		if rawResponse.Valid {
			f.RawResponse = []byte(rawResponse.String)
		}
		facts = append(facts, f)
	}
	return facts, eris.Wrap(rows.Err(), "sqlite: query facts")
}

func (s *SQLiteStore) InsertRecommendation(ctx context.Context, factID, text string) (string, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM llm_analysis WHERE id = ?`, factID,
	).Scan(&exists)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: check fact")
	}
	if exists == 0 {
		return "", ErrFactNotFound
	}

	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO recommendations (id, fact_id, text, created_at) VALUES (?, ?, ?, ?)`,
		id, factID, text, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert recommendation")
	}
	return id, nil
}

func (s *SQLiteStore) ListRecommendations(ctx context.Context, filter RecommendationFilter) ([]model.Recommendation, error) {
	query := `SELECT r.id, r.fact_id, r.text, r.created_at
		 FROM recommendations r
		 JOIN llm_analysis a ON a.id = r.fact_id
		 WHERE 1=1`
	args := []any{}

	if filter.Competitor != "" {
		query += ` AND a.competitor = ?`
		args = append(args, filter.Competitor)
	}
	if filter.Product != "" {
		query += ` AND a.product = ?`
		args = append(args, filter.Product)
	}
	query += ` ORDER BY r.created_at DESC LIMIT ?`
	limit := filter.Limit
	if limit <= 0 {
		limit = 5
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list recommendations")
	}
	defer rows.Close()

	var recs []model.Recommendation
	for rows.Next() {
		var r model.Recommendation
		if err := rows.Scan(&r.ID, &r.FactID, &r.Text, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan recommendation")
		}
		recs = append(recs, r)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list recommendations")
}

var _ Store = (*SQLiteStore)(nil)
var _ Store = (*PostgresStore)(nil)
