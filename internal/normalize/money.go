package normalize

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/currency"

	"github.com/sells-group/metrics-cli/internal/model"
)

// symbolCurrencies maps unambiguous currency symbols to ISO codes. Longer
// prefixes are tried first so "US$" never matches as "$".
var symbolCurrencies = []struct {
	symbol string
	code   string
}{
	{"US$", "USD"},
	{"A$", "AUD"},
	{"C$", "CAD"},
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
}

var scaleSuffixes = map[string]float64{
	"K": 1e3,
	"M": 1e6,
	"B": 1e9,
	"T": 1e12,
}

// parseMoney parses magnitude + currency + scale suffix into integer minor
// units with an ISO code. Accepted shapes include "$1.2B", "942.5M USD",
// "USD 3.4M" and "1,150,000,000 USD". An amount with no currency marker
// uses defaultCurrency when set and fails otherwise; guessing is worse than
// a diagnosable failure.
func parseMoney(raw, defaultCurrency string) (model.CanonicalValue, error) {
	s := strings.TrimSpace(raw)
	code := ""

	for _, sc := range symbolCurrencies {
		if strings.HasPrefix(s, sc.symbol) {
			code = sc.code
			s = strings.TrimSpace(strings.TrimPrefix(s, sc.symbol))
			break
		}
	}

	var numeric string
	for _, tok := range strings.Fields(s) {
		if isCurrencyCode(tok) {
			tokCode := strings.ToUpper(tok)
			if code != "" && code != tokCode {
				return model.CanonicalValue{}, eris.Errorf("money: conflicting currencies %s and %s in %q", code, tokCode, raw)
			}
			code = tokCode
			continue
		}
		if numeric != "" {
			return model.CanonicalValue{}, eris.Errorf("money: unrecognized token %q in %q", tok, raw)
		}
		numeric = tok
	}
	if numeric == "" {
		return model.CanonicalValue{}, eris.Errorf("money: no amount in %q", raw)
	}

	if code == "" {
		if defaultCurrency == "" {
			return model.CanonicalValue{}, eris.Errorf("money: no currency in %q and no default declared", raw)
		}
		code = strings.ToUpper(defaultCurrency)
	}

	unit, err := currency.ParseISO(code)
	if err != nil {
		return model.CanonicalValue{}, eris.Wrapf(err, "money: bad currency %q", code)
	}

	numeric = strings.ReplaceAll(numeric, ",", "")
	multiplier := 1.0
	if len(numeric) > 0 {
		last := strings.ToUpper(numeric[len(numeric)-1:])
		if m, ok := scaleSuffixes[last]; ok {
			multiplier = m
			numeric = numeric[:len(numeric)-1]
		}
	}

	amount, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return model.CanonicalValue{}, eris.Errorf("money: unparseable amount %q", raw)
	}

	scale, _ := currency.Cash.Rounding(unit)
	minor := math.Round(amount * multiplier * math.Pow10(scale))

	return model.CanonicalValue{
		Kind:        model.KindMoney,
		AmountMinor: int64(minor),
		Currency:    unit.String(),
	}, nil
}

// MajorUnits converts a Money value back to major units (dollars, euros)
// for cross-currency comparison.
func MajorUnits(v model.CanonicalValue) float64 {
	unit, err := currency.ParseISO(v.Currency)
	if err != nil {
		return float64(v.AmountMinor)
	}
	scale, _ := currency.Cash.Rounding(unit)
	return float64(v.AmountMinor) / math.Pow10(scale)
}

// isCurrencyCode reports whether tok is a three-letter ISO 4217 code.
func isCurrencyCode(tok string) bool {
	if len(tok) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		c := tok[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	_, err := currency.ParseISO(strings.ToUpper(tok))
	return err == nil
}
