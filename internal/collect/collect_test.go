package collect

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/metrics-cli/internal/adapter"
	"github.com/sells-group/metrics-cli/internal/model"
	"github.com/sells-group/metrics-cli/internal/normalize"
	"github.com/sells-group/metrics-cli/internal/reconcile"
	"github.com/sells-group/metrics-cli/internal/sched"
	"github.com/sells-group/metrics-cli/internal/store"
)

type stubAdapter struct {
	meta adapter.Metadata

	mu    sync.Mutex
	calls int
	fetch func(call int, company model.Company) ([]model.RawExtract, error)
}

func (s *stubAdapter) Metadata() adapter.Metadata { return s.meta }

func (s *stubAdapter) Fetch(ctx context.Context, company model.Company) ([]model.RawExtract, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()
	return s.fetch(call, company)
}

func extractsFor(source string, conf float64, company model.Company, observed time.Time, fields map[string]string) []model.RawExtract {
	var out []model.RawExtract
	for field, value := range fields {
		out = append(out, model.RawExtract{
			CompanySymbol: company.Symbol,
			SourceID:      source,
			Field:         field,
			RawValue:      value,
			ObservedAt:    observed,
			Confidence:    conf,
		})
	}
	return out
}

func newTestRunner(t *testing.T, adapters ...adapter.Adapter) *Runner {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	reg := adapter.NewRegistry()
	metas := make([]adapter.Metadata, 0, len(adapters))
	for _, a := range adapters {
		require.NoError(t, reg.Register(a))
		metas = append(metas, a.Metadata())
	}

	schedCfg := sched.Config{
		Workers:        4,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		CallTimeout:    time.Second,
		Sources:        map[string]sched.SourceLimits{},
	}
	for _, m := range metas {
		schedCfg.Sources[m.SourceID] = sched.SourceLimits{Concurrency: 4, MinInterval: time.Microsecond}
	}

	return &Runner{
		Scheduler: sched.New(schedCfg, nil),
		Registry:  reg,
		Engine:    reconcile.New(reconcile.Config{}, normalize.DefaultSpecs(), metas),
		Store:     st,
	}
}

func TestRun_EndToEnd(t *testing.T) {
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	alpha := &stubAdapter{
		meta: adapter.Metadata{SourceID: "alpha", BaseConfidence: 0.9, DateLayouts: []string{"2006-01-02"}, DefaultCurrency: "USD"},
		fetch: func(_ int, c model.Company) ([]model.RawExtract, error) {
			return extractsFor("alpha", 0.9, c, day, map[string]string{
				"market_cap":     "$1.2B",
				"employee_count": "164,000",
				"founded":        "2010-05-01",
			}), nil
		},
	}
	beta := &stubAdapter{
		meta: adapter.Metadata{SourceID: "beta", BaseConfidence: 0.7, DateLayouts: []string{"January 2006"}, DefaultCurrency: "USD"},
		fetch: func(_ int, c model.Company) ([]model.RawExtract, error) {
			return extractsFor("beta", 0.7, c, day, map[string]string{
				"market_cap": "1,150,000,000 USD",
				"founded":    "May 2010",
			}), nil
		},
	}

	r := newTestRunner(t, alpha, beta)
	summary, err := r.Run(context.Background(), Options{
		Industry:  "technology",
		Companies: []model.Company{{Symbol: "ACME"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 1, summary.TotalConflicts)
	require.Len(t, summary.Companies, 1)

	cr := summary.Companies[0]
	assert.Equal(t, "ACME", cr.Symbol)
	assert.Equal(t, 3, cr.FieldsPresent)
	require.Len(t, cr.Conflicts, 1)
	assert.Equal(t, "market_cap", cr.Conflicts[0].Field)
	assert.Equal(t, "alpha", cr.Conflicts[0].WinnerSource)

	rec, err := r.Store.GetRecord(context.Background(), "ACME")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(120_000_000_000), rec.Fields["market_cap"].Value.AmountMinor)
	assert.Equal(t, time.Date(2010, 5, 1, 0, 0, 0, 0, time.UTC), rec.Fields["founded"].Value.Date)
	assert.Equal(t, map[string]string{
		"market_cap":     "alpha",
		"employee_count": "alpha",
		"founded":        "alpha",
	}, rec.Lineage())
}

func TestRun_SourceTimeoutsSurfaceAsWarnings(t *testing.T) {
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	good := &stubAdapter{
		meta: adapter.Metadata{SourceID: "good", BaseConfidence: 0.9, DefaultCurrency: "USD"},
		fetch: func(_ int, c model.Company) ([]model.RawExtract, error) {
			return extractsFor("good", 0.9, c, day, map[string]string{"revenue": "$10M"}), nil
		},
	}
	flaky := &stubAdapter{
		meta: adapter.Metadata{SourceID: "flaky", BaseConfidence: 0.8},
		fetch: func(int, model.Company) ([]model.RawExtract, error) {
			return nil, adapter.Transient(eris.New("i/o timeout"), 0)
		},
	}

	r := newTestRunner(t, good, flaky)
	summary, err := r.Run(context.Background(), Options{
		Companies: []model.Company{{Symbol: "ACME"}},
	})
	require.NoError(t, err)

	// The run succeeds with the data it has; the flaky source's retries
	// are recorded as a warning, not a run failure.
	assert.Equal(t, 1, summary.Succeeded)
	require.Len(t, summary.Companies, 1)
	cr := summary.Companies[0]
	assert.Equal(t, 1, cr.FieldsPresent)
	require.Len(t, cr.Warnings, 1)
	assert.Equal(t, "flaky", cr.Warnings[0].SourceID)
	assert.Equal(t, model.FailureTransient, cr.Warnings[0].Kind)
	assert.Equal(t, 3, cr.Warnings[0].Attempts)
	assert.Equal(t, 3, flaky.calls)
}

func TestRun_SecondRunMergesWithExisting(t *testing.T) {
	d1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	observed := d1
	src := &stubAdapter{
		meta: adapter.Metadata{SourceID: "src", BaseConfidence: 0.9, DefaultCurrency: "USD"},
		fetch: func(_ int, c model.Company) ([]model.RawExtract, error) {
			return extractsFor("src", 0.9, c, observed, map[string]string{"employee_count": "100"}), nil
		},
	}

	r := newTestRunner(t, src)
	_, err := r.Run(context.Background(), Options{Companies: []model.Company{{Symbol: "ACME"}}})
	require.NoError(t, err)

	observed = d2
	_, err = r.Run(context.Background(), Options{Companies: []model.Company{{Symbol: "ACME"}}})
	require.NoError(t, err)

	rec, err := r.Store.GetRecord(context.Background(), "ACME")
	require.NoError(t, err)
	// Newer observation from the same source wins.
	assert.Equal(t, d2, rec.Fields["employee_count"].ObservedAt)
}

func TestRun_NoCompaniesIsConfigError(t *testing.T) {
	src := &stubAdapter{
		meta:  adapter.Metadata{SourceID: "src"},
		fetch: func(int, model.Company) ([]model.RawExtract, error) { return nil, nil },
	}
	r := newTestRunner(t, src)

	_, err := r.Run(context.Background(), Options{Industry: "ghosts"})
	assert.Error(t, err)
}

func TestFormatSummary(t *testing.T) {
	s := &Summary{
		RunID:      "run-1",
		Industry:   "technology",
		StartedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC),
		Succeeded:  1,
		Companies: []CompanyResult{{
			Symbol:        "ACME",
			FieldsPresent: 2,
			Warnings: []Warning{{
				SourceID: "flaky", Kind: model.FailureTransient,
				Message: "i/o timeout", Attempts: 3,
			}},
		}},
	}

	out := FormatSummary(s)
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "ACME: 2 fields")
	assert.Contains(t, out, "flaky")
	assert.Contains(t, out, "transient failure after 3 attempt(s)")
}
