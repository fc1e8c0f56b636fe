package normalize

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/metrics-cli/internal/model"
)

// parseInteger handles plain integers, comma grouping and K/M/B scale
// suffixes ("164,000", "150K").
func parseInteger(raw string) (model.CanonicalValue, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	multiplier := 1.0
	if len(s) > 0 {
		last := strings.ToUpper(s[len(s)-1:])
		if m, ok := scaleSuffixes[last]; ok && last != "T" {
			multiplier = m
			s = s[:len(s)-1]
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return model.CanonicalValue{}, eris.Errorf("integer: unparseable %q", raw)
	}
	return model.CanonicalValue{Kind: model.KindInteger, Int: int64(math.Round(f * multiplier))}, nil
}

// parsePercent normalizes percentages and ratios in [0,1]. "4.5%" and
// "0.045" both yield 0.045. A bare number above 1 is read as a percentage;
// anything still above 100% after that keeps its value but is flagged
// out-of-range instead of being clamped.
func parsePercent(raw string) (model.CanonicalValue, error) {
	s := strings.TrimSpace(raw)
	hadSign := strings.HasSuffix(s, "%")
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	s = strings.ReplaceAll(s, ",", "")

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return model.CanonicalValue{}, eris.Errorf("percent: unparseable %q", raw)
	}

	frac := f
	if hadSign || math.Abs(f) > 1 {
		frac = f / 100
	}

	return model.CanonicalValue{
		Kind:       model.KindPercent,
		Fraction:   frac,
		OutOfRange: frac > 1,
	}, nil
}

// parseRatio parses a plain ratio (P/E and friends) without the [0,1]
// range expectation percentages carry.
func parseRatio(raw string) (model.CanonicalValue, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return model.CanonicalValue{}, eris.Errorf("ratio: unparseable %q", raw)
	}
	return model.CanonicalValue{Kind: model.KindRatio, Fraction: f}, nil
}
