package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/metrics-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db    *sql.DB
	byKey *keyedMutex
}

// NewSQLite opens a SQLite database at the given DSN, configures WAL mode
// and verifies integrity so a corrupted file fails with a diagnosable
// error instead of limping through a run.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}

	var check string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&check); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "sqlite: integrity check")
	}
	if check != "ok" {
		db.Close()
		return nil, eris.Errorf("sqlite: database failed integrity check: %s", check)
	}

	return &SQLiteStore{db: db, byKey: newKeyedMutex()}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS records (
	symbol         TEXT PRIMARY KEY,
	record         TEXT NOT NULL,
	schema_version INTEGER NOT NULL,
	committed_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	id       TEXT PRIMARY KEY,
	taken_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshot_records (
	snapshot_id    TEXT NOT NULL REFERENCES snapshots(id),
	symbol         TEXT NOT NULL,
	record         TEXT NOT NULL,
	schema_version INTEGER NOT NULL,
	PRIMARY KEY (snapshot_id, symbol)
);

CREATE TABLE IF NOT EXISTS raw_extracts (
	run_id      TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	source_id   TEXT NOT NULL,
	field       TEXT NOT NULL,
	raw_value   TEXT NOT NULL,
	observed_at DATETIME NOT NULL,
	confidence  REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_raw_extracts_symbol ON raw_extracts(symbol);
CREATE INDEX IF NOT EXISTS idx_raw_extracts_observed_at ON raw_extracts(observed_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertRecord(ctx context.Context, rec *model.CanonicalRecord) error {
	unlock := s.byKey.Lock(rec.CompanySymbol)
	defer unlock()

	data, version, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (symbol, record, schema_version, committed_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(symbol) DO UPDATE SET record = excluded.record,
		 schema_version = excluded.schema_version, committed_at = excluded.committed_at`,
		rec.CompanySymbol, data, version, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert record %s", rec.CompanySymbol)
}

func (s *SQLiteStore) GetRecord(ctx context.Context, symbol string) (*model.CanonicalRecord, error) {
	var data string
	var version int
	err := s.db.QueryRowContext(ctx,
		`SELECT record, schema_version FROM records WHERE symbol = ?`, symbol,
	).Scan(&data, &version)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get record %s", symbol)
	}
	return decodeRecord(data, version)
}

func (s *SQLiteStore) ListRecords(ctx context.Context) ([]model.CanonicalRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record, schema_version FROM records ORDER BY symbol`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close()

	var records []model.CanonicalRecord
	for rows.Next() {
		var data string
		var version int
		if err := rows.Scan(&data, &version); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		rec, err := decodeRecord(data, version)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}

func (s *SQLiteStore) TakeSnapshot(ctx context.Context) (*model.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin snapshot")
	}
	defer tx.Rollback() //nolint:errcheck

	id := uuid.New().String()
	takenAt := time.Now().UTC()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, taken_at) VALUES (?, ?)`, id, takenAt,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: insert snapshot")
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshot_records (snapshot_id, symbol, record, schema_version)
		 SELECT ?, symbol, record, schema_version FROM records`, id,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: copy snapshot records")
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit snapshot")
	}

	return s.GetSnapshot(ctx, id)
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context) ([]model.SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.taken_at, COUNT(sr.symbol)
		 FROM snapshots s LEFT JOIN snapshot_records sr ON sr.snapshot_id = s.id
		 GROUP BY s.id, s.taken_at ORDER BY s.taken_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list snapshots")
	}
	defer rows.Close()

	var infos []model.SnapshotInfo
	for rows.Next() {
		var info model.SnapshotInfo
		if err := rows.Scan(&info.ID, &info.TakenAt, &info.RecordCount); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot")
		}
		infos = append(infos, info)
	}
	return infos, eris.Wrap(rows.Err(), "sqlite: list snapshots iterate")
}

func (s *SQLiteStore) GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error) {
	snap := &model.Snapshot{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT taken_at FROM snapshots WHERE id = ?`, id,
	).Scan(&snap.TakenAt)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("sqlite: snapshot not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get snapshot %s", id)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT record, schema_version FROM snapshot_records WHERE snapshot_id = ? ORDER BY symbol`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get snapshot records %s", id)
	}
	defer rows.Close()

	for rows.Next() {
		var data string
		var version int
		if err := rows.Scan(&data, &version); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot record")
		}
		rec, err := decodeRecord(data, version)
		if err != nil {
			return nil, err
		}
		snap.Records = append(snap.Records, *rec)
	}
	return snap, eris.Wrap(rows.Err(), "sqlite: snapshot records iterate")
}

func (s *SQLiteStore) SaveExtracts(ctx context.Context, runID string, extracts []model.RawExtract) error {
	if len(extracts) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save extracts")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO raw_extracts (run_id, symbol, source_id, field, raw_value, observed_at, confidence)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare save extracts")
	}
	defer stmt.Close() //nolint:errcheck

	for _, ex := range extracts {
		if _, err := stmt.ExecContext(ctx,
			runID, ex.CompanySymbol, ex.SourceID, ex.Field, ex.RawValue,
			ex.ObservedAt.UTC(), ex.Confidence,
		); err != nil {
			return eris.Wrap(err, "sqlite: insert extract")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save extracts")
}

func (s *SQLiteStore) PruneExtracts(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM raw_extracts WHERE observed_at < ?`, olderThan.UTC())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prune extracts")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: prune rows affected")
}
