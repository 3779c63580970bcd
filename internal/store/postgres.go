package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/benchmark-cli/internal/db"
	"github.com/sells-group/benchmark-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS banks (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	website    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS products (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS criteria (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sources (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name        TEXT NOT NULL,
	url         TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS snapshots (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	product_id     TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	note           TEXT NOT NULL DEFAULT '',
	is_active      BOOLEAN NOT NULL DEFAULT true,
	parsing_status TEXT NOT NULL DEFAULT 'pending',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_snapshots_product_created ON snapshots(product_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_snapshots_status ON snapshots(parsing_status);

CREATE TABLE IF NOT EXISTS feature_values (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	snapshot_id  TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	bank_id      TEXT NOT NULL REFERENCES banks(id) ON DELETE CASCADE,
	criterion_id TEXT NOT NULL REFERENCES criteria(id) ON DELETE CASCADE,
	value        BOOLEAN NOT NULL DEFAULT false,
	confidence   DOUBLE PRECISION,
	source_id    TEXT REFERENCES sources(id) ON DELETE SET NULL,
	source_url   TEXT NOT NULL DEFAULT '',
	raw_data     JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (snapshot_id, bank_id, criterion_id)
);

CREATE INDEX IF NOT EXISTS idx_feature_values_snapshot ON feature_values(snapshot_id);

CREATE TABLE IF NOT EXISTS parse_logs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source_id   TEXT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
	snapshot_id TEXT REFERENCES snapshots(id) ON DELETE CASCADE,
	status      TEXT NOT NULL,
	message     TEXT NOT NULL DEFAULT '',
	error_trace TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_parse_logs_snapshot ON parse_logs(snapshot_id);

CREATE TABLE IF NOT EXISTS llm_analysis (
	id                 TEXT PRIMARY KEY,
	competitor         TEXT NOT NULL,
	product            TEXT NOT NULL,
	criterion          TEXT NOT NULL,
	value              TEXT NOT NULL DEFAULT '',
	source_url         TEXT NOT NULL DEFAULT '',
	parsed_at          TIMESTAMPTZ NOT NULL,
	analysis_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	llm_model          TEXT NOT NULL,
	llm_prompt_version TEXT NOT NULL,
	confidence_score   DOUBLE PRECISION,
	raw_response       JSONB
);

CREATE INDEX IF NOT EXISTS idx_llm_analysis_subject ON llm_analysis(competitor, product);
CREATE INDEX IF NOT EXISTS idx_llm_analysis_parsed_at ON llm_analysis(parsed_at);

CREATE TABLE IF NOT EXISTS recommendations (
	id         TEXT PRIMARY KEY,
	fact_id    TEXT NOT NULL REFERENCES llm_analysis(id) ON DELETE CASCADE,
	text       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_recommendations_fact ON recommendations(fact_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

var slugTitler = cases.Title(language.English)

// displayName turns a slug into a readable default name ("sber_bank" → "Sber Bank").
func displayName(slug string) string {
	return slugTitler.String(strings.NewReplacer("_", " ", "-", " ").Replace(slug))
}

func (s *PostgresStore) UpsertBank(ctx context.Context, bank model.Bank) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO banks (id, name, website) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, website = EXCLUDED.website, updated_at = now()`,
		bank.ID, bank.Name, bank.Website,
	)
	return eris.Wrapf(err, "postgres: upsert bank %s", bank.ID)
}

func (s *PostgresStore) UpsertProduct(ctx context.Context, product model.Product) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO products (id, name, description) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description, updated_at = now()`,
		product.ID, product.Name, product.Description,
	)
	return eris.Wrapf(err, "postgres: upsert product %s", product.ID)
}

func (s *PostgresStore) UpsertCriterion(ctx context.Context, criterion model.Criterion) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO criteria (id, name, description) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description, updated_at = now()`,
		criterion.ID, criterion.Name, criterion.Description,
	)
	return eris.Wrapf(err, "postgres: upsert criterion %s", criterion.ID)
}

func (s *PostgresStore) UpsertSource(ctx context.Context, source model.Source) error {
	id := source.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sources (id, name, url, description) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (url) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description, updated_at = now()`,
		id, source.Name, source.URL, source.Description,
	)
	return eris.Wrapf(err, "postgres: upsert source %s", source.URL)
}

func (s *PostgresStore) GetOrCreateBank(ctx context.Context, id string) (*model.Bank, error) {
	var b model.Bank
	err := s.pool.QueryRow(ctx,
		`INSERT INTO banks (id, name) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		 RETURNING id, name, website, created_at, updated_at`,
		id, displayName(id),
	).Scan(&b.ID, &b.Name, &b.Website, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get or create bank %s", id)
	}
	return &b, nil
}

func (s *PostgresStore) GetOrCreateProduct(ctx context.Context, id string) (*model.Product, error) {
	var p model.Product
	err := s.pool.QueryRow(ctx,
		`INSERT INTO products (id, name) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		 RETURNING id, name, description, created_at, updated_at`,
		id, displayName(id),
	).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get or create product %s", id)
	}
	return &p, nil
}

func (s *PostgresStore) GetOrCreateCriterion(ctx context.Context, id string) (*model.Criterion, error) {
	var c model.Criterion
	err := s.pool.QueryRow(ctx,
		`INSERT INTO criteria (id, name) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		 RETURNING id, name, description, created_at, updated_at`,
		id, displayName(id),
	).Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get or create criterion %s", id)
	}
	return &c, nil
}

func (s *PostgresStore) GetOrCreateSource(ctx context.Context, name, url string) (*model.Source, error) {
	var src model.Source
	err := s.pool.QueryRow(ctx,
		`INSERT INTO sources (id, name, url) VALUES ($1, $2, $3)
		 ON CONFLICT (url) DO UPDATE SET url = EXCLUDED.url
		 RETURNING id, name, url, description, created_at, updated_at`,
		uuid.New().String(), name, url,
	).Scan(&src.ID, &src.Name, &src.URL, &src.Description, &src.CreatedAt, &src.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get or create source %s", url)
	}
	return &src, nil
}

func (s *PostgresStore) ListBanks(ctx context.Context) ([]model.Bank, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, website, created_at, updated_at FROM banks ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list banks")
	}
	defer rows.Close()

	var banks []model.Bank
	for rows.Next() {
		var b model.Bank
		if err := rows.Scan(&b.ID, &b.Name, &b.Website, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan bank")
		}
		banks = append(banks, b)
	}
	return banks, eris.Wrap(rows.Err(), "postgres: list banks")
}

func (s *PostgresStore) ListProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, description, created_at, updated_at FROM products ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list products")
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan product")
		}
		products = append(products, p)
	}
	return products, eris.Wrap(rows.Err(), "postgres: list products")
}

func (s *PostgresStore) ListCriteria(ctx context.Context) ([]model.Criterion, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, description, created_at, updated_at FROM criteria ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list criteria")
	}
	defer rows.Close()

	var criteria []model.Criterion
	for rows.Next() {
		var c model.Criterion
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan criterion")
		}
		criteria = append(criteria, c)
	}
	return criteria, eris.Wrap(rows.Err(), "postgres: list criteria")
}

func (s *PostgresStore) ListSources(ctx context.Context) ([]model.Source, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, url, description, created_at, updated_at FROM sources ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sources")
	}
	defer rows.Close()

	var sources []model.Source
	for rows.Next() {
		var src model.Source
		if err := rows.Scan(&src.ID, &src.Name, &src.URL, &src.Description, &src.CreatedAt, &src.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan source")
		}
		sources = append(sources, src)
	}
	return sources, eris.Wrap(rows.Err(), "postgres: list sources")
}

func (s *PostgresStore) CreateSnapshot(ctx context.Context, productID, note string) (*model.Snapshot, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO snapshots (id, product_id, note, is_active, parsing_status, created_at)
		 VALUES ($1, $2, $3, true, $4, $5)`,
		id, productID, note, string(model.ParsingPending), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: create snapshot for %s", productID)
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

func (s *PostgresStore) GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error) {
	var snap model.Snapshot
	err := s.pool.QueryRow(ctx,
		`SELECT id, product_id, note, is_active, parsing_status, created_at FROM snapshots WHERE id = $1`,
		id,
	).Scan(&snap.ID, &snap.ProductID, &snap.Note, &snap.IsActive, &snap.ParsingStatus, &snap.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get snapshot %s", id)
	}
	return &snap, nil
}

// SetSnapshotStatus transitions the snapshot's parsing status. The guard in
// the WHERE clause makes terminal states unreachable targets of an update,
// so a crashed run can never be resurrected by a late write.
func (s *PostgresStore) SetSnapshotStatus(ctx context.Context, id string, status model.ParsingStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE snapshots SET parsing_status = $1 WHERE id = $2 AND parsing_status NOT IN ('completed', 'failed')`,
		string(status), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set snapshot status %s", id)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetSnapshot(ctx, id); err != nil {
			return err
		}
		return ErrSnapshotTerminal
	}
	return nil
}

func (s *PostgresStore) ListSnapshots(ctx context.Context, productID string, limit int) ([]model.Snapshot, error) {
	query := `SELECT id, product_id, note, is_active, parsing_status, created_at FROM snapshots WHERE true`
	args := []any{}
	argIdx := 1

	if productID != "" {
		query += fmt.Sprintf(` AND product_id = $%d`, argIdx)
		args = append(args, productID)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list snapshots")
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

func (s *PostgresStore) StuckSnapshots(ctx context.Context, olderThan time.Duration) ([]model.Snapshot, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	rows, err := s.pool.Query(ctx,
		`SELECT id, product_id, note, is_active, parsing_status, created_at FROM snapshots
		 WHERE parsing_status IN ('pending', 'in_progress') AND created_at < $1
		 ORDER BY created_at`,
		cutoff,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stuck snapshots")
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

func scanSnapshots(rows pgx.Rows) ([]model.Snapshot, error) {
	var snaps []model.Snapshot
	for rows.Next() {
		var snap model.Snapshot
		if err := rows.Scan(&snap.ID, &snap.ProductID, &snap.Note, &snap.IsActive, &snap.ParsingStatus, &snap.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot")
		}
		snaps = append(snaps, snap)
	}
	return snaps, eris.Wrap(rows.Err(), "postgres: scan snapshots")
}

func (s *PostgresStore) CleanupSnapshots(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM snapshots WHERE is_active = false AND created_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: cleanup snapshots")
	}
	return int(tag.RowsAffected()), nil
}

// UpsertFeature writes one (bank, criterion) value into a snapshot. A second
// write with the same key overwrites the row. Writes to terminal snapshots
// are refused.
func (s *PostgresStore) UpsertFeature(ctx context.Context, fv *model.FeatureValue) error {
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

	_, err = s.pool.Exec(ctx,
		`INSERT INTO feature_values (id, snapshot_id, bank_id, criterion_id, value, confidence, source_id, source_url, raw_data, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (snapshot_id, bank_id, criterion_id) DO UPDATE SET
			value = EXCLUDED.value,
			confidence = EXCLUDED.confidence,
			source_id = EXCLUDED.source_id,
			source_url = EXCLUDED.source_url,
			raw_data = EXCLUDED.raw_data,
			updated_at = EXCLUDED.updated_at`,
		id, fv.SnapshotID, fv.BankID, fv.CriterionID, fv.Value, fv.Confidence, fv.SourceID, fv.SourceURL, fv.RawData, now, now,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert feature %s/%s/%s", fv.SnapshotID, fv.BankID, fv.CriterionID)
	}
	return nil
}

func (s *PostgresStore) AppendParseLog(ctx context.Context, entry *model.ParseLog) error {
	id := entry.ID
	if id == "" {
		id = uuid.New().String()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO parse_logs (id, source_id, snapshot_id, status, message, error_trace, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, entry.SourceID, entry.SnapshotID, string(entry.Status), entry.Message, entry.ErrorTrace, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: append parse log")
}

func (s *PostgresStore) LatestComparison(ctx context.Context, productID string, banks, criteria []string) (*model.ComparisonResult, error) {
	var productName string
	err := s.pool.QueryRow(ctx,
		`SELECT name FROM products WHERE id = $1`, productID,
	).Scan(&productName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get product %s", productID)
	}

	var snap model.Snapshot
	err = s.pool.QueryRow(ctx,
		`SELECT id, note, created_at FROM snapshots
		 WHERE product_id = $1 AND is_active = true AND parsing_status = 'completed'
		 ORDER BY created_at DESC LIMIT 1`,
		productID,
	).Scan(&snap.ID, &snap.Note, &snap.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoActiveSnapshot
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest snapshot for %s", productID)
	}

	if len(banks) == 0 {
		if banks, err = s.bankIDs(ctx); err != nil {
			return nil, err
		}
	}
	if len(criteria) == 0 {
		if criteria, err = s.criterionIDs(ctx); err != nil {
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

	rows, err := s.pool.Query(ctx,
		`SELECT fv.bank_id, fv.criterion_id, fv.value, fv.confidence,
			src.id, src.name, src.url, src.description, src.created_at, src.updated_at
		 FROM feature_values fv
		 LEFT JOIN sources src ON src.id = fv.source_id
		 WHERE fv.snapshot_id = $1`,
		snap.ID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: comparison feature values")
	}
	defer rows.Close()

	seenSource := map[string]bool{}
	for rows.Next() {
		var (
			bankID, criterionID string
			value               bool
			confidence          *float64
			srcID, srcName      *string
			srcURL, srcDesc     *string
			srcCreated, srcUpd  *time.Time
		)
		if err := rows.Scan(&bankID, &criterionID, &value, &confidence,
			&srcID, &srcName, &srcURL, &srcDesc, &srcCreated, &srcUpd); err != nil {
			return nil, eris.Wrap(err, "postgres: scan feature value")
		}
		if !wantBank[bankID] || !wantCriterion[criterionID] {
			continue
		}

		result.Data[bankID][criterionID] = value
		if confidence != nil {
			result.Confidence[bankID+"."+criterionID] = *confidence
		}
		if srcID != nil && !seenSource[*srcID] {
			seenSource[*srcID] = true
			result.Sources = append(result.Sources, model.Source{
				ID:          *srcID,
				Name:        *srcName,
				URL:         *srcURL,
				Description: *srcDesc,
				CreatedAt:   *srcCreated,
				UpdatedAt:   *srcUpd,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: comparison feature values")
	}
	return result, nil
}

func (s *PostgresStore) bankIDs(ctx context.Context) ([]string, error) {
	return s.ids(ctx, `SELECT id FROM banks ORDER BY id`)
}

func (s *PostgresStore) criterionIDs(ctx context.Context) ([]string, error) {
	return s.ids(ctx, `SELECT id FROM criteria ORDER BY id`)
}

func (s *PostgresStore) ids(ctx context.Context, query string) ([]string, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: list ids")
}

func (s *PostgresStore) Counts(ctx context.Context) (*Counts, error) {
	var c Counts
	err := s.pool.QueryRow(ctx,
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
		return nil, eris.Wrap(err, "postgres: counts")
	}
	return &c, nil
}

func (s *PostgresStore) InsertFact(ctx context.Context, fact *model.Fact) (string, error) {
	id := fact.ID
	if id == "" {
		id = uuid.New().String()
	}
	analysisAt := fact.AnalysisAt
	if analysisAt.IsZero() {
		analysisAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO llm_analysis (id, competitor, product, criterion, value, source_url, parsed_at, analysis_at, llm_model, llm_prompt_version, confidence_score, raw_response)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		id, fact.Competitor, fact.Product, fact.Criterion, fact.Value, fact.SourceURL,
		fact.ParsedAt, analysisAt, fact.LLMModel, fact.LLMPromptVersion, fact.Confidence, fact.RawResponse,
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert fact")
	}
	return id, nil
}

func (s *PostgresStore) QueryFacts(ctx context.Context, filter model.FactFilter) ([]model.Fact, error) {
	query := `SELECT id, competitor, product, criterion, value, source_url, parsed_at, analysis_at, llm_model, llm_prompt_version, confidence_score, raw_response
		 FROM llm_analysis WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Competitor != "" {
		query += fmt.Sprintf(` AND competitor = $%d`, argIdx)
		args = append(args, filter.Competitor)
		argIdx++
	}
	if filter.Product != "" {
		query += fmt.Sprintf(` AND product = $%d`, argIdx)
		args = append(args, filter.Product)
		argIdx++
	}
	if filter.Criterion != "" {
		query += fmt.Sprintf(` AND criterion = $%d`, argIdx)
		args = append(args, filter.Criterion)
		argIdx++
	}
	query += ` ORDER BY analysis_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query facts")
	}
	defer rows.Close()

	var facts []model.Fact
	for rows.Next() {
		var f model.Fact
		if err := rows.Scan(&f.ID, &f.Competitor, &f.Product, &f.Criterion, &f.Value, &f.SourceURL,
			&f.ParsedAt, &f.AnalysisAt, &f.LLMModel, &f.LLMPromptVersion, &f.Confidence, &f.RawResponse); err != nil {
			return nil, eris.Wrap(err, "postgres: scan fact")
		}
		facts = append(facts, f)
	}
	return facts, eris.Wrap(rows.Err(), "postgres: query facts")
}

func (s *PostgresStore) InsertRecommendation(ctx context.Context, factID, text string) (string, error) {
	id := uuid.New().String()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO recommendations (id, fact_id, text, created_at) VALUES ($1, $2, $3, $4)`,
		id, factID, text, time.Now().UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return "", ErrFactNotFound
		}
		return "", eris.Wrap(err, "postgres: insert recommendation")
	}
	return id, nil
}

func (s *PostgresStore) ListRecommendations(ctx context.Context, filter RecommendationFilter) ([]model.Recommendation, error) {
	query := `SELECT r.id, r.fact_id, r.text, r.created_at
		 FROM recommendations r
		 JOIN llm_analysis a ON a.id = r.fact_id
		 WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Competitor != "" {
		query += fmt.Sprintf(` AND a.competitor = $%d`, argIdx)
		args = append(args, filter.Competitor)
		argIdx++
	}
	if filter.Product != "" {
		query += fmt.Sprintf(` AND a.product = $%d`, argIdx)
		args = append(args, filter.Product)
		argIdx++
	}
	query += ` ORDER BY r.created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 5
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list recommendations")
	}
	defer rows.Close()

	var recs []model.Recommendation
	for rows.Next() {
		var r model.Recommendation
		if err := rows.Scan(&r.ID, &r.FactID, &r.Text, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan recommendation")
		}
		recs = append(recs, r)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list recommendations")
}
