// Package quotepage extracts metrics from an HTML quote page. The page
// contract is a DOM where metric cells carry a data-metric attribute; the
// whole page layout beyond that is the source's business.
package quotepage

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/metrics-cli/internal/adapter"
	"github.com/sells-group/metrics-cli/internal/model"
)

const sourceID = "quotepage"

// Adapter scrapes one quote page per company.
type Adapter struct {
	client  *http.Client
	baseURL string
}

// New creates a quote-page adapter rooted at baseURL. A nil client uses
// http.DefaultClient; the scheduler owns timeouts via ctx.
func New(baseURL string, client *http.Client) *Adapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &Adapter{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (a *Adapter) Metadata() adapter.Metadata {
	return adapter.Metadata{
		SourceID:        sourceID,
		BaseConfidence:  0.7,
		DateLayouts:     []string{"Jan 2, 2006", "January 2006", "2006"},
		DefaultCurrency: "USD",
	}
}

func (a *Adapter) Fetch(ctx context.Context, company model.Company) ([]model.RawExtract, error) {
	url := a.baseURL + "/quote/" + company.Symbol
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, adapter.Permanent(eris.Wrap(err, "quotepage: build request"), 0)
	}
	req.Header.Set("User-Agent", "metrics-cli/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "quotepage: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusOK:
	case adapter.IsTransientHTTPStatus(resp.StatusCode):
		return nil, adapter.Transient(eris.Errorf("quotepage: http %d for %s", resp.StatusCode, company.Symbol), resp.StatusCode)
	default:
		return nil, adapter.Permanent(eris.Errorf("quotepage: http %d for %s", resp.StatusCode, company.Symbol), resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, adapter.Permanent(eris.Wrap(err, "quotepage: parse html"), resp.StatusCode)
	}

	observedAt := time.Now().UTC()
	var extracts []model.RawExtract
	doc.Find("[data-metric]").Each(func(_ int, sel *goquery.Selection) {
		field, _ := sel.Attr("data-metric")
		value := strings.TrimSpace(sel.Text())
		if field == "" || value == "" {
			return
		}
		extracts = append(extracts, model.RawExtract{
			CompanySymbol: company.Symbol,
			SourceID:      sourceID,
			Field:         field,
			RawValue:      value,
			ObservedAt:    observedAt,
			Confidence:    a.Metadata().BaseConfidence,
		})
	})

	if len(extracts) == 0 {
		return nil, adapter.Permanent(eris.Errorf("quotepage: no metric cells in page for %s", company.Symbol), resp.StatusCode)
	}
	return extracts, nil
}
