package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalRecord_Clone(t *testing.T) {
	rec := NewCanonicalRecord("ACME")
	rec.Fields["revenue"] = FieldValue{
		Value:    CanonicalValue{Kind: KindMoney, AmountMinor: 100, Currency: "USD"},
		SourceID: "alpha",
	}

	cp := rec.Clone()
	cp.Fields["revenue"] = FieldValue{SourceID: "beta"}
	cp.Fields["employee_count"] = FieldValue{Value: CanonicalValue{Kind: KindInteger, Int: 5}}

	assert.Equal(t, "alpha", rec.Fields["revenue"].SourceID)
	assert.Len(t, rec.Fields, 1)
}

func TestCanonicalRecord_Lineage(t *testing.T) {
	rec := NewCanonicalRecord("ACME")
	rec.Fields["revenue"] = FieldValue{SourceID: "alpha"}
	rec.Fields["founded"] = FieldValue{SourceID: "beta"}

	assert.Equal(t, map[string]string{"revenue": "alpha", "founded": "beta"}, rec.Lineage())
}

func TestCanonicalValue_String(t *testing.T) {
	assert.Equal(t, "120000000000 USD (minor units)",
		CanonicalValue{Kind: KindMoney, AmountMinor: 120000000000, Currency: "USD"}.String())
	assert.Equal(t, "2010-05-01",
		CanonicalValue{Kind: KindDate, Date: time.Date(2010, 5, 1, 0, 0, 0, 0, time.UTC)}.String())
	assert.Equal(t, "Tim Cook (CEO)",
		CanonicalValue{Kind: KindPerson, Name: "Tim Cook", Role: "CEO"}.String())
	assert.Equal(t, "0.0450",
		CanonicalValue{Kind: KindPercent, Fraction: 0.045}.String())
}

func TestNewCompany_Normalizes(t *testing.T) {
	c := NewCompany(" acme ", "Acme Corp", "Technology")
	assert.Equal(t, "ACME", c.Symbol)
	assert.Equal(t, "Acme Corp", c.Name)
	assert.Equal(t, "technology", c.Industry)
}
