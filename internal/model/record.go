package model

import "time"

// RecordSchemaVersion is stored alongside every persisted record so the
// store can migrate old rows forward on read.
const RecordSchemaVersion = 1

// FieldValue is one reconciled field of a canonical record, carrying the
// lineage back to the source observation that won reconciliation.
type FieldValue struct {
	Value      CanonicalValue `json:"value"`
	SourceID   string         `json:"source_id"`
	Confidence float64        `json:"confidence"`
	ObservedAt time.Time      `json:"observed_at"`
}

// CanonicalRecord is the merged, normalized record for one company. A field
// absent from all sources stays absent from Fields; absence is distinct
// from a zero value and is never defaulted.
type CanonicalRecord struct {
	CompanySymbol string                `json:"company_symbol"`
	Fields        map[string]FieldValue `json:"fields"`
	LastUpdated   time.Time             `json:"last_updated"`
	SchemaVersion int                   `json:"schema_version"`
}

// NewCanonicalRecord creates an empty record at the current schema version.
func NewCanonicalRecord(symbol string) *CanonicalRecord {
	return &CanonicalRecord{
		CompanySymbol: symbol,
		Fields:        make(map[string]FieldValue),
		SchemaVersion: RecordSchemaVersion,
	}
}

// Lineage maps each present field to the source that contributed its value.
func (r *CanonicalRecord) Lineage() map[string]string {
	lineage := make(map[string]string, len(r.Fields))
	for field, fv := range r.Fields {
		lineage[field] = fv.SourceID
	}
	return lineage
}

// Clone returns a deep copy so snapshot rows never alias the live record.
func (r *CanonicalRecord) Clone() *CanonicalRecord {
	cp := *r
	cp.Fields = make(map[string]FieldValue, len(r.Fields))
	for k, v := range r.Fields {
		cp.Fields[k] = v
	}
	return &cp
}

// ConflictValue is one competing observation inside a FieldConflict.
type ConflictValue struct {
	SourceID   string         `json:"source_id"`
	RawValue   string         `json:"raw_value,omitempty"`
	Value      CanonicalValue `json:"value"`
	Confidence float64        `json:"confidence"`
	ObservedAt time.Time      `json:"observed_at"`
}

// FieldConflict records normalized values for one (company, field) that
// disagree beyond tolerance. The winner is still written to the canonical
// record; the conflict and all competitors are retained for review.
type FieldConflict struct {
	CompanySymbol string          `json:"company_symbol"`
	Field         string          `json:"field"`
	WinnerSource  string          `json:"winner_source"`
	Values        []ConflictValue `json:"values"`
}

// Snapshot is an immutable, timestamped copy of the dataset.
type Snapshot struct {
	ID      string            `json:"id"`
	TakenAt time.Time         `json:"taken_at"`
	Records []CanonicalRecord `json:"records"`
}

// SnapshotInfo is snapshot metadata without the record payload.
type SnapshotInfo struct {
	ID          string    `json:"id"`
	TakenAt     time.Time `json:"taken_at"`
	RecordCount int       `json:"record_count"`
}
