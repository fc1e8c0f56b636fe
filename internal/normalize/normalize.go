// Package normalize converts raw adapter extracts into canonical typed
// values. Every function here is pure: the same (field spec, raw value,
// source context) always yields the same canonical value or the same
// failure. No network, no mutable state.
package normalize

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/metrics-cli/internal/model"
)

// Context carries the source-declared parsing hints an adapter registers:
// the only date layouts accepted for its extracts, and the currency assumed
// when an amount arrives without one (empty means "fail rather than guess").
type Context struct {
	SourceID        string
	DateLayouts     []string
	DefaultCurrency string
}

// Spec declares the canonical type of a metric field.
type Spec struct {
	Field string
	Kind  model.ValueKind
	Enum  []string // allowed values for KindEnum, in canonical casing
}

// DefaultSpecs returns the metric schema the pipeline collects.
func DefaultSpecs() map[string]Spec {
	specs := []Spec{
		{Field: "market_cap", Kind: model.KindMoney},
		{Field: "enterprise_value", Kind: model.KindMoney},
		{Field: "revenue", Kind: model.KindMoney},
		{Field: "funding_total", Kind: model.KindMoney},
		{Field: "employee_count", Kind: model.KindInteger},
		{Field: "founded", Kind: model.KindDate},
		{Field: "headquarters", Kind: model.KindText},
		{Field: "website", Kind: model.KindText},
		{Field: "ceo", Kind: model.KindPerson},
		{Field: "pe_ratio", Kind: model.KindRatio},
		{Field: "dividend_yield", Kind: model.KindPercent},
		{Field: "price_change_1y", Kind: model.KindPercent},
		{Field: "ownership_type", Kind: model.KindEnum, Enum: []string{"public", "private", "subsidiary"}},
	}
	out := make(map[string]Spec, len(specs))
	for _, s := range specs {
		out[s.Field] = s
	}
	return out
}

// Value normalizes one raw extract value according to its field spec.
func Value(spec Spec, raw string, ctx Context) (model.CanonicalValue, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.CanonicalValue{}, eris.Errorf("normalize: empty value for field %q", spec.Field)
	}

	switch spec.Kind {
	case model.KindMoney:
		return parseMoney(raw, ctx.DefaultCurrency)
	case model.KindDate:
		return parseDate(raw, ctx.DateLayouts)
	case model.KindInteger:
		return parseInteger(raw)
	case model.KindPercent:
		return parsePercent(raw)
	case model.KindRatio:
		return parseRatio(raw)
	case model.KindPerson:
		return parsePerson(raw), nil
	case model.KindEnum:
		return parseEnum(raw, spec.Enum)
	case model.KindText:
		return model.CanonicalValue{Kind: model.KindText, Text: raw}, nil
	default:
		return model.CanonicalValue{}, eris.Errorf("normalize: unknown kind %q for field %q", spec.Kind, spec.Field)
	}
}

func parseEnum(raw string, allowed []string) (model.CanonicalValue, error) {
	for _, a := range allowed {
		if strings.EqualFold(raw, a) {
			return model.CanonicalValue{Kind: model.KindEnum, Text: a}, nil
		}
	}
	return model.CanonicalValue{}, eris.Errorf("normalize: %q not in enum %v", raw, allowed)
}
