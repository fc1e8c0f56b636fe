package model

import (
	"fmt"
	"time"
)

// ValueKind tags the type of a CanonicalValue.
type ValueKind string

const (
	KindMoney   ValueKind = "money"
	KindDate    ValueKind = "date"
	KindInteger ValueKind = "integer"
	KindPerson  ValueKind = "person"
	KindPercent ValueKind = "percent"
	KindRatio   ValueKind = "ratio"
	KindEnum    ValueKind = "enum"
	KindText    ValueKind = "text"
)

// CanonicalValue is a typed, unit-carrying metric value. Money amounts are
// integer minor units (e.g. cents) with an ISO 4217 code attached; a bare
// number without unit context is never stored.
type CanonicalValue struct {
	Kind ValueKind `json:"kind"`

	// Money
	AmountMinor int64  `json:"amount_minor,omitempty"`
	Currency    string `json:"currency,omitempty"`

	// Date (UTC midnight)
	Date time.Time `json:"date,omitempty"`

	// Integer
	Int int64 `json:"int,omitempty"`

	// Percent / ratio, as a fraction. OutOfRange marks a percentage a
	// source reported above 100%; the value is kept, not clamped.
	Fraction   float64 `json:"fraction,omitempty"`
	OutOfRange bool    `json:"out_of_range,omitempty"`

	// Person. When a leadership blurb cannot be structured into role +
	// name, the trimmed blurb is retained in Text as a raw fallback.
	Role string `json:"role,omitempty"`
	Name string `json:"name,omitempty"`

	// Enum / text / person raw fallback
	Text string `json:"text,omitempty"`
}

// String renders the value for reports and conflict logs.
func (v CanonicalValue) String() string {
	switch v.Kind {
	case KindMoney:
		return fmt.Sprintf("%d %s (minor units)", v.AmountMinor, v.Currency)
	case KindDate:
		return v.Date.Format("2006-01-02")
	case KindInteger:
		return fmt.Sprintf("%d", v.Int)
	case KindPercent:
		return fmt.Sprintf("%.4f", v.Fraction)
	case KindRatio:
		return fmt.Sprintf("%.4f", v.Fraction)
	case KindPerson:
		if v.Name == "" {
			return v.Text
		}
		if v.Role == "" {
			return v.Name
		}
		return fmt.Sprintf("%s (%s)", v.Name, v.Role)
	default:
		return v.Text
	}
}
