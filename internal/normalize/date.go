package normalize

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/metrics-cli/internal/model"
)

// parseDate tries only the layouts the source adapter declared. Unknown
// formats fail; best-effort parsing silently reshuffles days and months.
func parseDate(raw string, layouts []string) (model.CanonicalValue, error) {
	if len(layouts) == 0 {
		return model.CanonicalValue{}, eris.Errorf("date: source declares no date layouts, cannot parse %q", raw)
	}
	for _, layout := range layouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return model.CanonicalValue{Kind: model.KindDate, Date: day}, nil
	}
	return model.CanonicalValue{}, eris.Errorf("date: %q matches none of the declared layouts %v", raw, layouts)
}
