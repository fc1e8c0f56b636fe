package reconcile

// Config holds the reconciliation tunables. Tolerances and source priority
// are configuration, not hardcoded policy; the defaults here only apply
// when the config file is silent.
type Config struct {
	// DefaultTolerance is the relative tolerance for numeric and Money
	// agreement. The boundary is inclusive: values differing by exactly
	// the tolerance agree.
	DefaultTolerance float64 `yaml:"default_tolerance" mapstructure:"default_tolerance"`

	// FieldTolerance overrides DefaultTolerance per field.
	FieldTolerance map[string]float64 `yaml:"field_tolerance" mapstructure:"field_tolerance"`

	// SourcePriority is the per-field tie-break ordering of source ids,
	// consulted after confidence and recency. Fields not listed fall back
	// to DefaultPriority (normally adapter registration order).
	SourcePriority map[string][]string `yaml:"source_priority" mapstructure:"source_priority"`

	// DefaultPriority is the fallback source ordering.
	DefaultPriority []string `yaml:"default_priority" mapstructure:"default_priority"`

	// BaseCurrency and FXRates support cross-currency Money comparison.
	// FXRates maps an ISO code to how many base-currency units one unit of
	// that currency is worth.
	BaseCurrency string             `yaml:"base_currency" mapstructure:"base_currency"`
	FXRates      map[string]float64 `yaml:"fx_rates" mapstructure:"fx_rates"`
}

// ApplyDefaults fills zero values.
func (c Config) ApplyDefaults() Config {
	if c.DefaultTolerance <= 0 {
		c.DefaultTolerance = 0.01
	}
	if c.BaseCurrency == "" {
		c.BaseCurrency = "USD"
	}
	if c.FXRates == nil {
		c.FXRates = map[string]float64{}
	}
	if _, ok := c.FXRates[c.BaseCurrency]; !ok {
		c.FXRates[c.BaseCurrency] = 1
	}
	return c
}

func (c Config) tolerance(field string) float64 {
	if t, ok := c.FieldTolerance[field]; ok && t > 0 {
		return t
	}
	return c.DefaultTolerance
}

// priorityIndex returns the tie-break rank of a source for a field; sources
// absent from the configured ordering rank after all listed ones.
func (c Config) priorityIndex(field, sourceID string) int {
	order, ok := c.SourcePriority[field]
	if !ok {
		order = c.DefaultPriority
	}
	for i, id := range order {
		if id == sourceID {
			return i
		}
	}
	return len(order)
}
