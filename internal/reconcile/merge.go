// Package reconcile merges raw extracts from all sources for one company
// into its canonical record, resolving field-level conflicts by a
// deterministic policy.
package reconcile

import (
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/metrics-cli/internal/adapter"
	"github.com/sells-group/metrics-cli/internal/model"
	"github.com/sells-group/metrics-cli/internal/normalize"
)

// Engine reconciles extracts into canonical records.
type Engine struct {
	cfg         Config
	specs       map[string]normalize.Spec
	ctxBySource map[string]normalize.Context
}

// New creates an Engine. Source metadata supplies the per-source
// normalization context (declared date layouts, default currency). When the
// config declares no default priority, the order of sources (adapter
// registration order) becomes the tie-break ordering.
func New(cfg Config, specs map[string]normalize.Spec, sources []adapter.Metadata) *Engine {
	ctxs := make(map[string]normalize.Context, len(sources))
	for _, m := range sources {
		ctxs[m.SourceID] = normalize.Context{
			SourceID:        m.SourceID,
			DateLayouts:     m.DateLayouts,
			DefaultCurrency: m.DefaultCurrency,
		}
	}
	cfg = cfg.ApplyDefaults()
	if len(cfg.DefaultPriority) == 0 {
		for _, m := range sources {
			cfg.DefaultPriority = append(cfg.DefaultPriority, m.SourceID)
		}
	}
	return &Engine{cfg: cfg, specs: specs, ctxBySource: ctxs}
}

// candidate is one normalized observation competing for a field.
type candidate struct {
	sourceID   string
	raw        string
	value      model.CanonicalValue
	confidence float64
	observedAt time.Time
}

// Merge combines the existing canonical record (may be nil) with new raw
// extracts. Per field, every observation is normalized before comparison;
// if all normalized values agree within tolerance the highest-confidence
// source wins, ties broken by most-recent observedAt, then configured
// source priority. Disagreement beyond tolerance produces a FieldConflict;
// the winner is still written and every competitor retained. The merge is
// commutative and associative: extract arrival order never changes the
// result. Fields absent from all sources stay absent.
func (e *Engine) Merge(symbol string, existing *model.CanonicalRecord, extracts []model.RawExtract) (*model.CanonicalRecord, []model.FieldConflict) {
	byField := make(map[string][]candidate)

	if existing != nil {
		for field, fv := range existing.Fields {
			byField[field] = append(byField[field], candidate{
				sourceID:   fv.SourceID,
				value:      fv.Value,
				confidence: fv.Confidence,
				observedAt: fv.ObservedAt,
			})
		}
	}

	for _, ex := range extracts {
		spec, ok := e.specs[ex.Field]
		if !ok {
			zap.L().Debug("reconcile: unknown field skipped",
				zap.String("company", symbol),
				zap.String("field", ex.Field),
				zap.String("source", ex.SourceID),
			)
			continue
		}
		val, err := normalize.Value(spec, ex.RawValue, e.ctxBySource[ex.SourceID])
		if err != nil {
			// A value that cannot be normalized is excluded from merge
			// consideration, never crashes the run.
			zap.L().Warn("reconcile: normalization failed",
				zap.String("company", symbol),
				zap.String("field", ex.Field),
				zap.String("source", ex.SourceID),
				zap.String("raw_value", ex.RawValue),
				zap.Error(err),
			)
			continue
		}
		byField[ex.Field] = append(byField[ex.Field], candidate{
			sourceID:   ex.SourceID,
			raw:        ex.RawValue,
			value:      val,
			confidence: ex.Confidence,
			observedAt: ex.ObservedAt,
		})
	}

	record := model.NewCanonicalRecord(symbol)
	var conflicts []model.FieldConflict

	fields := make([]string, 0, len(byField))
	for f := range byField {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, field := range fields {
		cands := dedupe(byField[field])
		e.sortCandidates(field, cands)
		winner := cands[0]

		// Agreement is pairwise across all candidates, not just against the
		// winner: two losing values further apart than the tolerance raise a
		// conflict even when each sits within tolerance of the winner.
		tol := e.cfg.tolerance(field)
		agreed := true
	pairs:
		for i := 0; i < len(cands); i++ {
			for j := i + 1; j < len(cands); j++ {
				if !e.agree(cands[i].value, cands[j].value, tol) {
					agreed = false
					break pairs
				}
			}
		}

		if !agreed {
			conflict := model.FieldConflict{
				CompanySymbol: symbol,
				Field:         field,
				WinnerSource:  winner.sourceID,
			}
			for _, c := range cands {
				conflict.Values = append(conflict.Values, model.ConflictValue{
					SourceID:   c.sourceID,
					RawValue:   c.raw,
					Value:      c.value,
					Confidence: c.confidence,
					ObservedAt: c.observedAt,
				})
			}
			conflicts = append(conflicts, conflict)
			zap.L().Warn("reconcile: field conflict",
				zap.String("company", symbol),
				zap.String("field", field),
				zap.String("winner_source", winner.sourceID),
				zap.Int("competing_values", len(cands)),
			)
		}

		record.Fields[field] = model.FieldValue{
			Value:      winner.value,
			SourceID:   winner.sourceID,
			Confidence: winner.confidence,
			ObservedAt: winner.observedAt,
		}
		if winner.observedAt.After(record.LastUpdated) {
			record.LastUpdated = winner.observedAt
		}
	}

	return record, conflicts
}

// dedupe drops repeat observations of the same (source, time, value),
// which appear when a merge re-sees the extract behind the existing
// record's field. Re-merging is therefore idempotent.
func dedupe(cands []candidate) []candidate {
	seen := make(map[string]bool, len(cands))
	out := cands[:0]
	for _, c := range cands {
		key := fmt.Sprintf("%s|%d|%s", c.sourceID, c.observedAt.UnixNano(), c.value.String())
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// sortCandidates orders candidates by winning rank: confidence desc,
// observedAt desc, configured source priority, then source id and value as
// final keys so the order is total and the merge fully deterministic.
func (e *Engine) sortCandidates(field string, cands []candidate) {
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.confidence != b.confidence {
			return a.confidence > b.confidence
		}
		if !a.observedAt.Equal(b.observedAt) {
			return a.observedAt.After(b.observedAt)
		}
		pa, pb := e.cfg.priorityIndex(field, a.sourceID), e.cfg.priorityIndex(field, b.sourceID)
		if pa != pb {
			return pa < pb
		}
		if a.sourceID != b.sourceID {
			return a.sourceID < b.sourceID
		}
		return a.value.String() < b.value.String()
	})
}

// agree reports whether two normalized values match within tolerance.
// Enums, names, text and dates compare exactly; Money and numeric kinds
// use relative tolerance, Money after conversion to the base currency.
// The tolerance boundary is inclusive.
func (e *Engine) agree(a, b model.CanonicalValue, tol float64) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case model.KindMoney:
		fa, oka := e.toBase(a)
		fb, okb := e.toBase(b)
		if !oka || !okb {
			// No FX rate for one side: cannot compare, treat as conflict.
			return false
		}
		return withinRelative(fa, fb, tol)
	case model.KindInteger:
		return withinRelative(float64(a.Int), float64(b.Int), tol)
	case model.KindPercent, model.KindRatio:
		return withinRelative(a.Fraction, b.Fraction, tol)
	case model.KindDate:
		return a.Date.Equal(b.Date)
	case model.KindPerson:
		return a.Name == b.Name && a.Role == b.Role && a.Text == b.Text
	default:
		return a.Text == b.Text
	}
}

func (e *Engine) toBase(v model.CanonicalValue) (float64, bool) {
	rate, ok := e.cfg.FXRates[v.Currency]
	if !ok {
		return 0, false
	}
	return normalize.MajorUnits(v) * rate, true
}

func withinRelative(a, b, tol float64) bool {
	if a == b {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	const eps = 1e-9
	return math.Abs(a-b) <= tol*scale+eps
}
