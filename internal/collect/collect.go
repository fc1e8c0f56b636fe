// Package collect orchestrates one harvesting run: dispatch fetches, merge
// extracts per company, upsert canonical records, and report a run summary.
package collect

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/metrics-cli/internal/adapter"
	"github.com/sells-group/metrics-cli/internal/model"
	"github.com/sells-group/metrics-cli/internal/reconcile"
	"github.com/sells-group/metrics-cli/internal/sched"
	"github.com/sells-group/metrics-cli/internal/store"
)

// Runner wires the pipeline components for a run. It is passed explicitly
// rather than held in globals so concurrent runs (different industries)
// never interfere.
type Runner struct {
	Scheduler *sched.Scheduler
	Registry  *adapter.Registry
	Engine    *reconcile.Engine
	Store     store.Store
}

// Options configure one run.
type Options struct {
	Industry  string
	Companies []model.Company
	RunID     string
}

// Warning is a non-fatal per-(company, source) fetch problem surfaced in
// the summary.
type Warning struct {
	SourceID string            `json:"source_id"`
	Kind     model.FailureKind `json:"kind"`
	Message  string            `json:"message"`
	Attempts int               `json:"attempts"`
}

// CompanyResult is the per-company completeness report.
type CompanyResult struct {
	Symbol        string                `json:"symbol"`
	FieldsPresent int                   `json:"fields_present"`
	Conflicts     []model.FieldConflict `json:"conflicts,omitempty"`
	Warnings      []Warning             `json:"warnings,omitempty"`
	StoreError    string                `json:"store_error,omitempty"`
}

// Summary is the user-visible run result: per-company completeness,
// unresolved conflicts and hard failures, never an opaque crash.
type Summary struct {
	RunID          string          `json:"run_id"`
	Industry       string          `json:"industry"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     time.Time       `json:"finished_at"`
	Companies      []CompanyResult `json:"companies"`
	Succeeded      int             `json:"succeeded"`
	Failed         int             `json:"failed"`
	TotalConflicts int             `json:"total_conflicts"`
}

// Run executes the pipeline for the given companies. Component-local
// failures never abort sibling work; only configuration errors are fatal.
// Partial results merged before a cancellation remain valid.
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	if len(opts.Companies) == 0 {
		return nil, eris.Errorf("collect: no companies configured for industry %q", opts.Industry)
	}
	adapters := r.Registry.All()
	if len(adapters) == 0 {
		return nil, eris.New("collect: no adapters registered")
	}
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}

	summary := &Summary{
		RunID:     opts.RunID,
		Industry:  opts.Industry,
		StartedAt: time.Now().UTC(),
	}

	log := zap.L().With(
		zap.String("run_id", opts.RunID),
		zap.String("industry", opts.Industry),
	)
	log.Info("collect: dispatching fetches",
		zap.Int("companies", len(opts.Companies)),
		zap.Int("adapters", len(adapters)),
	)

	outcomes := r.Scheduler.Dispatch(ctx, opts.Companies, adapters)

	byCompany := make(map[string][]model.FetchOutcome)
	for _, out := range outcomes {
		byCompany[out.CompanySymbol] = append(byCompany[out.CompanySymbol], out)
	}

	for _, company := range opts.Companies {
		cr := r.processCompany(ctx, opts.RunID, company, byCompany[company.Symbol])
		summary.Companies = append(summary.Companies, cr)
		summary.TotalConflicts += len(cr.Conflicts)
		if cr.StoreError == "" {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	summary.FinishedAt = time.Now().UTC()
	log.Info("collect: run complete",
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("conflicts", summary.TotalConflicts),
	)
	return summary, nil
}

// processCompany merges one company's outcomes and upserts its record. A
// store failure is fatal for this company only.
func (r *Runner) processCompany(ctx context.Context, runID string, company model.Company, outcomes []model.FetchOutcome) CompanyResult {
	cr := CompanyResult{Symbol: company.Symbol}

	var extracts []model.RawExtract
	for _, out := range outcomes {
		if out.Status == model.OutcomeSucceeded {
			extracts = append(extracts, out.Extracts...)
			continue
		}
		cr.Warnings = append(cr.Warnings, Warning{
			SourceID: out.SourceID,
			Kind:     out.FailureKind,
			Message:  out.Error,
			Attempts: out.Attempts,
		})
	}

	if err := r.Store.SaveExtracts(ctx, runID, extracts); err != nil {
		// Audit trail only; the canonical record can still be written.
		zap.L().Warn("collect: saving raw extracts failed",
			zap.String("company", company.Symbol),
			zap.Error(err),
		)
	}

	existing, err := r.Store.GetRecord(ctx, company.Symbol)
	if err != nil {
		cr.StoreError = err.Error()
		return cr
	}

	record, conflicts := r.Engine.Merge(company.Symbol, existing, extracts)
	cr.Conflicts = conflicts
	cr.FieldsPresent = len(record.Fields)

	if err := r.Store.UpsertRecord(ctx, record); err != nil {
		cr.StoreError = err.Error()
	}
	return cr
}
