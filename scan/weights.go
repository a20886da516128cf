package scan

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WeightTable maps module name to its positive aggregation weight. The sum
// is arbitrary; the aggregator normalizes over the included modules.
type WeightTable map[string]float64

// DefaultWeights reflects how much each signal is trusted. Reputation feeds
// dominate, a single user review barely nudges the verdict.
var DefaultWeights = WeightTable{
	ModuleCertificate: 0.6,
	ModuleProtocol:    0.8,
	ModulePattern:     0.8,
	ModuleHTML:        0.7,
	ModuleReputation:  2.0,
	ModuleReliability: 0.8,
	ModuleDomainAge:   1.0,
	ModuleAI:          1.5,
	ModuleReview:      0.1,
}

// Validate rejects unknown module names and non-positive weights.
func (w WeightTable) Validate() error {
	known := make(map[string]bool, len(ModuleNames))
	for _, name := range ModuleNames {
		known[name] = true
	}
	for name, weight := range w {
		if !known[name] {
			return fmt.Errorf("unknown module %q in weight table", name)
		}
		if weight <= 0 {
			return fmt.Errorf("weight for %q must be positive, got %v", name, weight)
		}
	}
	return nil
}

// Copy returns an independent copy so callers can layer overrides without
// touching the process-wide defaults.
func (w WeightTable) Copy() WeightTable {
	out := make(WeightTable, len(w))
	for name, weight := range w {
		out[name] = weight
	}
	return out
}

// LoadWeights reads a YAML file of module-name -> weight overrides and
// merges it over the defaults. Missing file path returns the defaults.
func LoadWeights(path string) (WeightTable, error) {
	table := DefaultWeights.Copy()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weights file: %w", err)
	}

	var overrides map[string]float64
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse weights file: %w", err)
	}

	for name, weight := range overrides {
		table[name] = weight
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}
