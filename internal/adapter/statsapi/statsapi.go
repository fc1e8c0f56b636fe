// Package statsapi pulls metrics from a JSON company-stats API.
package statsapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/metrics-cli/internal/adapter"
	"github.com/sells-group/metrics-cli/internal/model"
)

const sourceID = "statsapi"

// Adapter fetches /v1/companies/{symbol} from a stats API.
type Adapter struct {
	client  *http.Client
	baseURL string
}

// New creates a stats API adapter rooted at baseURL.
func New(baseURL string, client *http.Client) *Adapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &Adapter{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (a *Adapter) Metadata() adapter.Metadata {
	return adapter.Metadata{
		SourceID:       sourceID,
		BaseConfidence: 0.9,
		DateLayouts:    []string{"2006-01-02"},
		// The API reports explicit ISO codes; no default currency, an
		// amount without one fails normalization.
	}
}

// payload is the API response shape: string-typed metric values with an
// observation timestamp.
type payload struct {
	Symbol  string            `json:"symbol"`
	Metrics map[string]string `json:"metrics"`
	AsOf    time.Time         `json:"as_of"`
}

func (a *Adapter) Fetch(ctx context.Context, company model.Company) ([]model.RawExtract, error) {
	url := a.baseURL + "/v1/companies/" + company.Symbol
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, adapter.Permanent(eris.Wrap(err, "statsapi: build request"), 0)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "metrics-cli/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "statsapi: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusOK:
	case adapter.IsTransientHTTPStatus(resp.StatusCode):
		return nil, adapter.Transient(eris.Errorf("statsapi: http %d for %s", resp.StatusCode, company.Symbol), resp.StatusCode)
	default:
		return nil, adapter.Permanent(eris.Errorf("statsapi: http %d for %s", resp.StatusCode, company.Symbol), resp.StatusCode)
	}

	var p payload
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, adapter.Permanent(eris.Wrap(err, "statsapi: malformed payload"), resp.StatusCode)
	}

	observedAt := p.AsOf
	if observedAt.IsZero() {
		observedAt = time.Now()
	}
	observedAt = observedAt.UTC()

	extracts := make([]model.RawExtract, 0, len(p.Metrics))
	for field, value := range p.Metrics {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		extracts = append(extracts, model.RawExtract{
			CompanySymbol: company.Symbol,
			SourceID:      sourceID,
			Field:         field,
			RawValue:      value,
			ObservedAt:    observedAt,
			Confidence:    a.Metadata().BaseConfidence,
		})
	}
	return extracts, nil
}
