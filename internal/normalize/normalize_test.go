package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/metrics-cli/internal/model"
)

func TestParseMoney_Forms(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		defaultCur string
		wantMinor  int64
		wantCode   string
	}{
		{"dollar symbol with suffix", "$1.2B", "", 120_000_000_000, "USD"},
		{"trailing code", "1,150,000,000 USD", "", 115_000_000_000, "USD"},
		{"leading code with suffix", "USD 3.4M", "", 340_000_000, "USD"},
		{"suffix then code", "942.5M USD", "", 94_250_000_000, "USD"},
		{"euro symbol", "€500K", "", 50_000_000, "EUR"},
		{"default currency applied", "2,500,000", "USD", 250_000_000, "USD"},
		{"yen has no minor units", "¥1000", "", 1000, "JPY"},
		{"thousands suffix", "$75K", "", 7_500_000, "USD"},
		{"trillion suffix", "$2.1T", "", 210_000_000_000_000, "USD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseMoney(tt.raw, tt.defaultCur)
			require.NoError(t, err)
			assert.Equal(t, model.KindMoney, got.Kind)
			assert.Equal(t, tt.wantMinor, got.AmountMinor)
			assert.Equal(t, tt.wantCode, got.Currency)
		})
	}
}

func TestParseMoney_Failures(t *testing.T) {
	// No currency marker and no declared default: fail, never guess.
	_, err := parseMoney("1200000", "")
	assert.Error(t, err)

	// Conflicting markers.
	_, err = parseMoney("$500M EUR", "")
	assert.Error(t, err)

	// Unknown currency code is a failure, not a passthrough.
	_, err = parseMoney("500 XQZ", "USD")
	assert.Error(t, err)

	_, err = parseMoney("lots USD", "")
	assert.Error(t, err)
}

func TestParseMoney_Deterministic(t *testing.T) {
	a, err := parseMoney("$1.2B", "")
	require.NoError(t, err)
	b, err := parseMoney("$1.2B", "")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestMajorUnits(t *testing.T) {
	v, err := parseMoney("$12.34", "")
	require.NoError(t, err)
	assert.InDelta(t, 12.34, MajorUnits(v), 1e-9)
}

func TestParseDate_DeclaredLayoutsOnly(t *testing.T) {
	layouts := []string{"2006-01-02", "January 2006"}

	got, err := parseDate("2010-05-01", layouts)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2010, 5, 1, 0, 0, 0, 0, time.UTC), got.Date)

	got, err = parseDate("May 2010", layouts)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2010, 5, 1, 0, 0, 0, 0, time.UTC), got.Date)

	// A format the source never declared must fail, not best-effort.
	_, err = parseDate("05/01/2010", layouts)
	assert.Error(t, err)

	// A source that declared no layouts cannot normalize dates at all.
	_, err = parseDate("2010-05-01", nil)
	assert.Error(t, err)
}

func TestParseInteger(t *testing.T) {
	got, err := parseInteger("164,000")
	require.NoError(t, err)
	assert.Equal(t, int64(164000), got.Int)

	got, err = parseInteger("150K")
	require.NoError(t, err)
	assert.Equal(t, int64(150000), got.Int)

	_, err = parseInteger("many")
	assert.Error(t, err)
}

func TestParsePercent(t *testing.T) {
	got, err := parsePercent("4.5%")
	require.NoError(t, err)
	assert.InDelta(t, 0.045, got.Fraction, 1e-9)
	assert.False(t, got.OutOfRange)

	got, err = parsePercent("0.045")
	require.NoError(t, err)
	assert.InDelta(t, 0.045, got.Fraction, 1e-9)

	// 37 without a sign still reads as 37%.
	got, err = parsePercent("37")
	require.NoError(t, err)
	assert.InDelta(t, 0.37, got.Fraction, 1e-9)

	// Above 100%: kept, flagged, not clamped.
	got, err = parsePercent("140%")
	require.NoError(t, err)
	assert.InDelta(t, 1.4, got.Fraction, 1e-9)
	assert.True(t, got.OutOfRange)
}

func TestParseRatio(t *testing.T) {
	got, err := parseRatio("28.4")
	require.NoError(t, err)
	assert.InDelta(t, 28.4, got.Fraction, 1e-9)
	assert.False(t, got.OutOfRange)
}

func TestParsePerson_Patterns(t *testing.T) {
	tests := []struct {
		raw      string
		wantName string
		wantRole string
		wantText string
	}{
		{"CEO: Tim Cook", "Tim Cook", "CEO", ""},
		{"Tim Cook (CEO)", "Tim Cook", "CEO", ""},
		{"Jane Fraser, Chief Executive Officer", "Jane Fraser", "Chief Executive Officer", ""},
		{"Satya Nadella", "Satya Nadella", "", ""},
	}
	for _, tt := range tests {
		got := parsePerson(tt.raw)
		assert.Equal(t, model.KindPerson, got.Kind)
		assert.Equal(t, tt.wantName, got.Name, tt.raw)
		assert.Equal(t, tt.wantRole, got.Role, tt.raw)
		assert.Equal(t, tt.wantText, got.Text, tt.raw)
	}
}

func TestParsePerson_BlurbRetained(t *testing.T) {
	blurb := "The company is led by a management team with decades of combined retail experience"
	got := parsePerson(blurb)
	assert.Empty(t, got.Name)
	assert.Equal(t, blurb, got.Text)
}

func TestValue_EnumCanonicalCasing(t *testing.T) {
	spec := DefaultSpecs()["ownership_type"]

	got, err := Value(spec, "Public", Context{SourceID: "s"})
	require.NoError(t, err)
	assert.Equal(t, "public", got.Text)

	_, err = Value(spec, "cooperative", Context{SourceID: "s"})
	assert.Error(t, err)
}

func TestValue_EmptyFails(t *testing.T) {
	spec := DefaultSpecs()["revenue"]
	_, err := Value(spec, "   ", Context{SourceID: "s", DefaultCurrency: "USD"})
	assert.Error(t, err)
}
