package model

import "strings"

// Company identifies one entity across all sources. Symbol is the stable
// key (ticker or canonical slug) and is immutable once assigned for a run.
type Company struct {
	Symbol   string `json:"symbol" yaml:"symbol"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Industry string `json:"industry,omitempty" yaml:"industry,omitempty"`
}

// NewCompany builds a Company with a normalized symbol.
func NewCompany(symbol, name, industry string) Company {
	return Company{
		Symbol:   strings.ToUpper(strings.TrimSpace(symbol)),
		Name:     strings.TrimSpace(name),
		Industry: strings.ToLower(strings.TrimSpace(industry)),
	}
}
