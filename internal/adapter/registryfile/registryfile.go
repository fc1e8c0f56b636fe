// Package registryfile reads company facts (founding date, funding,
// leadership) from a local registry export. CSV exports use symbol, field,
// value columns; YAML exports map symbol to a field/value table. It covers
// the slow-moving fields quote sources lack.
package registryfile

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/metrics-cli/internal/adapter"
	"github.com/sells-group/metrics-cli/internal/model"
)

const sourceID = "registryfile"

type row struct {
	field string
	value string
}

// Adapter serves extracts from a registry CSV, loaded once on first use.
type Adapter struct {
	path string

	once    sync.Once
	loadErr error
	rows    map[string][]row
	modTime time.Time
}

// New creates a registry-file adapter for the CSV at path.
func New(path string) *Adapter {
	return &Adapter{path: path}
}

func (a *Adapter) Metadata() adapter.Metadata {
	return adapter.Metadata{
		SourceID:        sourceID,
		BaseConfidence:  0.8,
		DateLayouts:     []string{"2006-01-02", "January 2006"},
		DefaultCurrency: "USD",
	}
}

func (a *Adapter) load() error {
	a.once.Do(func() {
		f, err := os.Open(a.path)
		if err != nil {
			a.loadErr = adapter.Permanent(eris.Wrapf(err, "registryfile: open %s", a.path), 0)
			return
		}
		defer f.Close() //nolint:errcheck

		if info, err := f.Stat(); err == nil {
			a.modTime = info.ModTime().UTC()
		} else {
			a.modTime = time.Now().UTC()
		}

		switch strings.ToLower(filepath.Ext(a.path)) {
		case ".yaml", ".yml":
			a.loadErr = a.loadYAML(f)
		default:
			a.loadErr = a.loadCSV(f)
		}
	})
	return a.loadErr
}

func (a *Adapter) loadCSV(f *os.File) error {
	r := csv.NewReader(f)
	r.FieldsPerRecord = 3
	records, err := r.ReadAll()
	if err != nil {
		return adapter.Permanent(eris.Wrapf(err, "registryfile: parse %s", a.path), 0)
	}

	a.rows = make(map[string][]row)
	for i, rec := range records {
		// Tolerate a header row.
		if i == 0 && strings.EqualFold(rec[0], "symbol") {
			continue
		}
		symbol := strings.ToUpper(strings.TrimSpace(rec[0]))
		a.rows[symbol] = append(a.rows[symbol], row{
			field: strings.TrimSpace(rec[1]),
			value: strings.TrimSpace(rec[2]),
		})
	}
	return nil
}

func (a *Adapter) loadYAML(f *os.File) error {
	var doc map[string]map[string]string
	if err := yaml.NewDecoder(f).Decode(&doc); err != nil {
		return adapter.Permanent(eris.Wrapf(err, "registryfile: parse %s", a.path), 0)
	}

	a.rows = make(map[string][]row)
	for symbol, fields := range doc {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		for field, value := range fields {
			a.rows[symbol] = append(a.rows[symbol], row{
				field: strings.TrimSpace(field),
				value: strings.TrimSpace(value),
			})
		}
	}
	return nil
}

func (a *Adapter) Fetch(_ context.Context, company model.Company) ([]model.RawExtract, error) {
	if err := a.load(); err != nil {
		return nil, err
	}

	rows := a.rows[company.Symbol]
	extracts := make([]model.RawExtract, 0, len(rows))
	for _, r := range rows {
		if r.field == "" || r.value == "" {
			continue
		}
		extracts = append(extracts, model.RawExtract{
			CompanySymbol: company.Symbol,
			SourceID:      sourceID,
			Field:         r.field,
			RawValue:      r.value,
			ObservedAt:    a.modTime,
			Confidence:    a.Metadata().BaseConfidence,
		})
	}
	return extracts, nil
}
