// Package adapter defines the source adapter contract. Adapters are the
// sole point of contact with any specific external source; the core never
// parses source-specific formats directly.
package adapter

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/metrics-cli/internal/model"
)

// Metadata is the static description an adapter declares about itself.
// DateLayouts are the only date formats the normalizer will accept for
// extracts from this source; DefaultCurrency, when set, is the currency
// assumed for amounts this source reports without one.
type Metadata struct {
	SourceID        string
	BaseConfidence  float64
	DateLayouts     []string
	DefaultCurrency string
}

// Adapter fetches raw typed field extracts for one company. Fetch must
// honor ctx for timeouts and cancellation and return a classified
// *FetchError (or a plain error, classified by heuristics) on failure.
type Adapter interface {
	Metadata() Metadata
	Fetch(ctx context.Context, company model.Company) ([]model.RawExtract, error)
}

// Registry holds the configured adapters, preserving registration order as
// the default source-priority ordering for reconciliation tie-breaks.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]Adapter
	order []string
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Adapter)}
}

// Register adds an adapter. Registering a duplicate source id is a
// configuration error.
func (r *Registry) Register(a Adapter) error {
	id := a.Metadata().SourceID
	if id == "" {
		return eris.New("adapter: empty source id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[id]; exists {
		return eris.Errorf("adapter: duplicate source id %q", id)
	}
	r.byID[id] = a
	r.order = append(r.order, id)
	return nil
}

// Get returns the adapter for id, or nil.
func (r *Registry) Get(id string) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// All returns the adapters in registration order.
func (r *Registry) All() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Adapter, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// SourceOrder returns registered source ids in registration order.
func (r *Registry) SourceOrder() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Require verifies every named source has a registered adapter. A missing
// adapter is a configuration error fatal to the whole run.
func (r *Registry) Require(sources []string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var missing []string
	for _, id := range sources {
		if _, ok := r.byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return eris.Errorf("adapter: no adapter registered for sources %v", missing)
	}
	return nil
}
