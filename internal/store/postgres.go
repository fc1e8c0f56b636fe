package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/metrics-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store needs; pgxmock satisfies it
// for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore implements Store using pgxpool. Per-company serialization
// rides on the primary-key upsert; the keyed mutex keeps commit ordering
// deterministic within one process.
type PostgresStore struct {
	pool  Pool
	byKey *keyedMutex
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, byKey: newKeyedMutex()}, nil
}

// NewPostgresFromPool wraps an existing pool (used by tests).
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool, byKey: newKeyedMutex()}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS records (
	symbol         TEXT PRIMARY KEY,
	record         JSONB NOT NULL,
	schema_version INTEGER NOT NULL,
	committed_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	id       TEXT PRIMARY KEY,
	taken_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshot_records (
	snapshot_id    TEXT NOT NULL REFERENCES snapshots(id),
	symbol         TEXT NOT NULL,
	record         JSONB NOT NULL,
	schema_version INTEGER NOT NULL,
	PRIMARY KEY (snapshot_id, symbol)
);

CREATE TABLE IF NOT EXISTS raw_extracts (
	run_id      TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	source_id   TEXT NOT NULL,
	field       TEXT NOT NULL,
	raw_value   TEXT NOT NULL,
	observed_at TIMESTAMPTZ NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_raw_extracts_symbol ON raw_extracts(symbol);
CREATE INDEX IF NOT EXISTS idx_raw_extracts_observed_at ON raw_extracts(observed_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) UpsertRecord(ctx context.Context, rec *model.CanonicalRecord) error {
	unlock := s.byKey.Lock(rec.CompanySymbol)
	defer unlock()

	data, version, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO records (symbol, record, schema_version, committed_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (symbol) DO UPDATE SET record = EXCLUDED.record,
		 schema_version = EXCLUDED.schema_version, committed_at = EXCLUDED.committed_at`,
		rec.CompanySymbol, data, version, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert record %s", rec.CompanySymbol)
}

func (s *PostgresStore) GetRecord(ctx context.Context, symbol string) (*model.CanonicalRecord, error) {
	var data string
	var version int
	err := s.pool.QueryRow(ctx,
		`SELECT record::text, schema_version FROM records WHERE symbol = $1`, symbol,
	).Scan(&data, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get record %s", symbol)
	}
	return decodeRecord(data, version)
}

func (s *PostgresStore) ListRecords(ctx context.Context) ([]model.CanonicalRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT record::text, schema_version FROM records ORDER BY symbol`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var records []model.CanonicalRecord
	for rows.Next() {
		var data string
		var version int
		if err := rows.Scan(&data, &version); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		rec, err := decodeRecord(data, version)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list records iterate")
}

func (s *PostgresStore) TakeSnapshot(ctx context.Context) (*model.Snapshot, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin snapshot")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	id := uuid.New().String()
	takenAt := time.Now().UTC()

	if _, err := tx.Exec(ctx,
		`INSERT INTO snapshots (id, taken_at) VALUES ($1, $2)`, id, takenAt,
	); err != nil {
		return nil, eris.Wrap(err, "postgres: insert snapshot")
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO snapshot_records (snapshot_id, symbol, record, schema_version)
		 SELECT $1, symbol, record, schema_version FROM records`, id,
	); err != nil {
		return nil, eris.Wrap(err, "postgres: copy snapshot records")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit snapshot")
	}

	return s.GetSnapshot(ctx, id)
}

func (s *PostgresStore) ListSnapshots(ctx context.Context) ([]model.SnapshotInfo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT s.id, s.taken_at, COUNT(sr.symbol)
		 FROM snapshots s LEFT JOIN snapshot_records sr ON sr.snapshot_id = s.id
		 GROUP BY s.id, s.taken_at ORDER BY s.taken_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list snapshots")
	}
	defer rows.Close()

	var infos []model.SnapshotInfo
	for rows.Next() {
		var info model.SnapshotInfo
		if err := rows.Scan(&info.ID, &info.TakenAt, &info.RecordCount); err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot")
		}
		infos = append(infos, info)
	}
	return infos, eris.Wrap(rows.Err(), "postgres: list snapshots iterate")
}

func (s *PostgresStore) GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error) {
	snap := &model.Snapshot{ID: id}
	err := s.pool.QueryRow(ctx,
		`SELECT taken_at FROM snapshots WHERE id = $1`, id,
	).Scan(&snap.TakenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: snapshot not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get snapshot %s", id)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT record::text, schema_version FROM snapshot_records WHERE snapshot_id = $1 ORDER BY symbol`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get snapshot records %s", id)
	}
	defer rows.Close()

	for rows.Next() {
		var data string
		var version int
		if err := rows.Scan(&data, &version); err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot record")
		}
		rec, err := decodeRecord(data, version)
		if err != nil {
			return nil, err
		}
		snap.Records = append(snap.Records, *rec)
	}
	return snap, eris.Wrap(rows.Err(), "postgres: snapshot records iterate")
}

func (s *PostgresStore) SaveExtracts(ctx context.Context, runID string, extracts []model.RawExtract) error {
	if len(extracts) == 0 {
		return nil
	}
	for _, ex := range extracts {
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO raw_extracts (run_id, symbol, source_id, field, raw_value, observed_at, confidence)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			runID, ex.CompanySymbol, ex.SourceID, ex.Field, ex.RawValue,
			ex.ObservedAt.UTC(), ex.Confidence,
		); err != nil {
			return eris.Wrap(err, "postgres: insert extract")
		}
	}
	return nil
}

func (s *PostgresStore) PruneExtracts(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM raw_extracts WHERE observed_at < $1`, olderThan.UTC())
	if err != nil {
		return 0, eris.Wrap(err, "postgres: prune extracts")
	}
	return int(tag.RowsAffected()), nil
}
