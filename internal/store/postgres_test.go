package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/metrics-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresFromPool(mock), mock
}

func TestPostgresStore_GetRecord_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT record::text, schema_version FROM records WHERE symbol = \$1`).
		WithArgs("NOPE").
		WillReturnError(pgx.ErrNoRows)

	rec, err := s.GetRecord(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRecord_Decodes(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	data, version, err := encodeRecord(testRecord("ACME", 100))
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT record::text, schema_version FROM records WHERE symbol = \$1`).
		WithArgs("ACME").
		WillReturnRows(pgxmock.NewRows([]string{"record", "schema_version"}).AddRow(data, version))

	rec, err := s.GetRecord(context.Background(), "ACME")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(100), rec.Fields["employee_count"].Value.Int)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertRecord(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO records`).
		WithArgs("ACME", pgxmock.AnyArg(), model.RecordSchemaVersion, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertRecord(context.Background(), testRecord("ACME", 100))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UnknownSchemaVersionFails(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT record::text, schema_version FROM records WHERE symbol = \$1`).
		WithArgs("ACME").
		WillReturnRows(pgxmock.NewRows([]string{"record", "schema_version"}).AddRow("{}", 99))

	_, err := s.GetRecord(context.Background(), "ACME")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema version")
}

func TestPostgresStore_TakeSnapshot(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	takenAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	data, version, err := encodeRecord(testRecord("ACME", 100))
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO snapshots`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO snapshot_records`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT taken_at FROM snapshots WHERE id = \$1`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"taken_at"}).AddRow(takenAt))
	mock.ExpectQuery(`SELECT record::text, schema_version FROM snapshot_records`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"record", "schema_version"}).AddRow(data, version))

	snap, err := s.TakeSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, takenAt, snap.TakenAt)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, "ACME", snap.Records[0].CompanySymbol)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PruneExtracts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`DELETE FROM raw_extracts WHERE observed_at < \$1`).
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := s.PruneExtracts(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveExtracts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	observed := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO raw_extracts`).
		WithArgs("run-1", "ACME", "statsapi", "revenue", "$1M", observed, 0.9).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveExtracts(context.Background(), "run-1", []model.RawExtract{
		{CompanySymbol: "ACME", SourceID: "statsapi", Field: "revenue", RawValue: "$1M", ObservedAt: observed, Confidence: 0.9},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
