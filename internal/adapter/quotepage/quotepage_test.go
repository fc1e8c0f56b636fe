package quotepage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/metrics-cli/internal/adapter"
	"github.com/sells-group/metrics-cli/internal/model"
)

const quotePage = `<!DOCTYPE html>
<html><body>
<div class="header">Acme Corp (ACME)</div>
<table>
  <tr><td data-metric="market_cap">$1.2B</td></tr>
  <tr><td data-metric="pe_ratio"> 28.4 </td></tr>
  <tr><td data-metric="dividend_yield">1.9%</td></tr>
  <tr><td data-metric="">ignored</td></tr>
</table>
</body></html>`

func TestFetch_ExtractsMetricCells(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote/ACME", r.URL.Path)
		assert.Equal(t, "metrics-cli/1.0", r.Header.Get("User-Agent"))
		w.Write([]byte(quotePage))
	}))
	defer srv.Close()

	a := New(srv.URL, srv.Client())
	extracts, err := a.Fetch(context.Background(), model.Company{Symbol: "ACME"})
	require.NoError(t, err)
	require.Len(t, extracts, 3)

	byField := make(map[string]model.RawExtract)
	for _, ex := range extracts {
		byField[ex.Field] = ex
	}
	assert.Equal(t, "$1.2B", byField["market_cap"].RawValue)
	assert.Equal(t, "28.4", byField["pe_ratio"].RawValue)
	assert.Equal(t, "quotepage", byField["market_cap"].SourceID)
	assert.Equal(t, 0.7, byField["market_cap"].Confidence)
}

func TestFetch_TransientStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := New(srv.URL, srv.Client())
	_, err := a.Fetch(context.Background(), model.Company{Symbol: "ACME"})
	require.Error(t, err)

	var fe *adapter.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, model.FailureTransient, fe.Kind)
	assert.Equal(t, 503, fe.StatusCode)
}

func TestFetch_NotFoundPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a := New(srv.URL, srv.Client())
	_, err := a.Fetch(context.Background(), model.Company{Symbol: "GONE"})
	require.Error(t, err)

	var fe *adapter.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, model.FailurePermanent, fe.Kind)
}

func TestFetch_NoMetricCellsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><p>under maintenance</p></body></html>"))
	}))
	defer srv.Close()

	a := New(srv.URL, srv.Client())
	_, err := a.Fetch(context.Background(), model.Company{Symbol: "ACME"})
	require.Error(t, err)
	assert.Equal(t, model.FailurePermanent, adapter.Classify(err))
}
