package model

import "time"

// RawExtract is one untyped field observation produced by a source adapter.
// Extracts are immutable once produced; the same (company, field) pair may
// have many extracts from different sources or times.
type RawExtract struct {
	CompanySymbol string    `json:"company_symbol"`
	SourceID      string    `json:"source_id"`
	Field         string    `json:"field"`
	RawValue      string    `json:"raw_value"`
	ObservedAt    time.Time `json:"observed_at"`
	Confidence    float64   `json:"confidence"`
}

// OutcomeStatus reports how a (company, source) fetch ended.
type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeFailed    OutcomeStatus = "failed"
)

// FailureKind classifies a fetch failure for retry purposes.
type FailureKind string

const (
	FailureTransient FailureKind = "transient"
	FailurePermanent FailureKind = "permanent"
)

// FetchOutcome is the per-(company, source) result emitted by the scheduler:
// either a set of raw extracts or a classified failure. Failures are
// non-fatal; sibling fetches are unaffected.
type FetchOutcome struct {
	CompanySymbol string        `json:"company_symbol"`
	SourceID      string        `json:"source_id"`
	Status        OutcomeStatus `json:"status"`
	Extracts      []RawExtract  `json:"extracts,omitempty"`
	FailureKind   FailureKind   `json:"failure_kind,omitempty"`
	Error         string        `json:"error,omitempty"`
	Attempts      int           `json:"attempts"`
	Duration      time.Duration `json:"duration"`
}
