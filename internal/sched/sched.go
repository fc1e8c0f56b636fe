// Package sched dispatches (company × source) fetch tasks through a
// bounded worker pool under per-source concurrency and courtesy rate
// limits, retrying classified-transient failures with exponential backoff.
// It is the only component that performs blocking I/O.
package sched

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/metrics-cli/internal/adapter"
	"github.com/sells-group/metrics-cli/internal/model"
)

// SourceLimits are the only two per-source tunables every source needs: a
// concurrency cap and a minimum inter-request interval.
type SourceLimits struct {
	Concurrency int           `yaml:"concurrency" mapstructure:"concurrency"`
	MinInterval time.Duration `yaml:"min_interval" mapstructure:"min_interval"`
}

// Config controls the scheduler.
type Config struct {
	Workers        int                     `yaml:"workers" mapstructure:"workers"`
	MaxAttempts    int                     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff time.Duration           `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration           `yaml:"max_backoff" mapstructure:"max_backoff"`
	JitterFraction float64                 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	CallTimeout    time.Duration           `yaml:"call_timeout" mapstructure:"call_timeout"`
	Sources        map[string]SourceLimits `yaml:"sources" mapstructure:"sources"`
}

// ApplyDefaults fills zero values with sensible defaults.
func (c Config) ApplyDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 30 * time.Second
	}
	return c
}

func (c Config) limitsFor(sourceID string) SourceLimits {
	l := c.Sources[sourceID]
	if l.Concurrency <= 0 {
		l.Concurrency = 2
	}
	if l.MinInterval <= 0 {
		l.MinInterval = 500 * time.Millisecond
	}
	return l
}

// Scheduler runs fetch tasks for one or more dispatches. Per-source
// limiters are shared across dispatches so courtesy limits hold even when
// two runs overlap.
type Scheduler struct {
	cfg     Config
	metrics *Metrics

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	slots    map[string]chan struct{}
}

// New creates a Scheduler. metrics may be nil.
func New(cfg Config, metrics *Metrics) *Scheduler {
	return &Scheduler{
		cfg:      cfg.ApplyDefaults(),
		metrics:  metrics,
		limiters: make(map[string]*rate.Limiter),
		slots:    make(map[string]chan struct{}),
	}
}

func (s *Scheduler) sourceControls(sourceID string) (*rate.Limiter, chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lim, ok := s.limiters[sourceID]
	if !ok {
		l := s.cfg.limitsFor(sourceID)
		lim = rate.NewLimiter(rate.Every(l.MinInterval), 1)
		s.limiters[sourceID] = lim
		s.slots[sourceID] = make(chan struct{}, l.Concurrency)
	}
	return lim, s.slots[sourceID]
}

// Dispatch fans (company × adapter) tasks through the worker pool and
// returns one outcome per started pair. Cancellation stops dispatching new
// tasks; in-flight tasks run to completion or timeout. A failure for one
// pair never aborts sibling work.
func (s *Scheduler) Dispatch(ctx context.Context, companies []model.Company, adapters []adapter.Adapter) []model.FetchOutcome {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	var mu sync.Mutex
	var outcomes []model.FetchOutcome

dispatch:
	for _, company := range companies {
		for _, a := range adapters {
			if ctx.Err() != nil {
				break dispatch
			}
			g.Go(func() error {
				if out := s.fetchOne(gctx, company, a); out != nil {
					mu.Lock()
					outcomes = append(outcomes, *out)
					mu.Unlock()
				}
				return nil
			})
		}
	}

	_ = g.Wait()
	return outcomes
}

// fetchOne runs the retry loop for a single (company, source) pair.
// Returns nil when the task never started because the run was canceled.
func (s *Scheduler) fetchOne(ctx context.Context, company model.Company, a adapter.Adapter) *model.FetchOutcome {
	meta := a.Metadata()
	lim, slot := s.sourceControls(meta.SourceID)

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil
	}
	defer func() { <-slot }()

	log := zap.L().With(
		zap.String("company", company.Symbol),
		zap.String("source", meta.SourceID),
	)

	start := time.Now()
	out := &model.FetchOutcome{
		CompanySymbol: company.Symbol,
		SourceID:      meta.SourceID,
		Status:        model.OutcomeFailed,
	}
	retry := newBackoff(s.cfg.InitialBackoff, s.cfg.MaxBackoff, s.cfg.JitterFraction)

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		out.Attempts = attempt

		if err := lim.Wait(ctx); err != nil {
			out.FailureKind = model.FailureTransient
			out.Error = err.Error()
			break
		}

		callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
		extracts, err := a.Fetch(callCtx, company)
		cancel()

		if err == nil {
			s.metrics.observeAttempt(meta.SourceID, "ok")
			out.Status = model.OutcomeSucceeded
			out.FailureKind = ""
			out.Error = ""
			out.Extracts = extracts
			break
		}

		kind := adapter.Classify(err)
		s.metrics.observeAttempt(meta.SourceID, string(kind))
		out.FailureKind = kind
		out.Error = err.Error()

		if kind == model.FailurePermanent {
			// Reported once, never retried.
			log.Warn("fetch failed permanently", zap.Error(err))
			break
		}
		if attempt == s.cfg.MaxAttempts || ctx.Err() != nil {
			log.Warn("fetch retries exhausted",
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			break
		}

		delay := retry.Next()
		log.Warn("transient fetch failure, backing off",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}

	out.Duration = time.Since(start)
	s.metrics.observeOutcome(meta.SourceID, string(out.Status), out.Duration.Seconds())
	return out
}
