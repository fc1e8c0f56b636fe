// Package store persists canonical records, snapshots and the raw-extract
// audit trail behind one keyed interface with sqlite and postgres drivers.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/metrics-cli/internal/model"
)

// Store is the dataset persistence interface. Upserts for different
// companies never block each other; concurrent upserts for the same
// company are serialized, last-committed-wins by commit wall-clock.
type Store interface {
	UpsertRecord(ctx context.Context, rec *model.CanonicalRecord) error
	// GetRecord returns (nil, nil) when no record exists for the symbol.
	GetRecord(ctx context.Context, symbol string) (*model.CanonicalRecord, error)
	ListRecords(ctx context.Context) ([]model.CanonicalRecord, error)

	// TakeSnapshot copies the current records into an immutable,
	// timestamped snapshot without blocking in-flight upserts beyond a
	// brief store lock.
	TakeSnapshot(ctx context.Context) (*model.Snapshot, error)
	ListSnapshots(ctx context.Context) ([]model.SnapshotInfo, error)
	GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error)

	// Raw extracts are retained for audit and pruned by retention policy.
	SaveExtracts(ctx context.Context, runID string, extracts []model.RawExtract) error
	PruneExtracts(ctx context.Context, olderThan time.Time) (int, error)

	Migrate(ctx context.Context) error
	Close() error
}

// encodeRecord serializes a record for storage at the current schema
// version.
func encodeRecord(rec *model.CanonicalRecord) (string, int, error) {
	cp := rec.Clone()
	cp.SchemaVersion = model.RecordSchemaVersion
	data, err := json.Marshal(cp)
	if err != nil {
		return "", 0, eris.Wrap(err, "store: marshal record")
	}
	return string(data), cp.SchemaVersion, nil
}

// decodeRecord deserializes a stored record, migrating older schema
// versions forward. Unknown future versions fail loudly.
func decodeRecord(data string, version int) (*model.CanonicalRecord, error) {
	switch version {
	case model.RecordSchemaVersion:
		var rec model.CanonicalRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal record")
		}
		if rec.Fields == nil {
			rec.Fields = make(map[string]model.FieldValue)
		}
		return &rec, nil
	default:
		return nil, eris.Errorf("store: unsupported record schema version %d", version)
	}
}
