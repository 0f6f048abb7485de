package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed limits.yaml
var defaultLimits []byte

// defaultHistoryPlan is used when a subscription has no history entry.
const defaultHistoryPlan = "Free - member"

// Limit is the per-kind record ceiling of a subscription tier.
type Limit struct {
	Automatic int `yaml:"automatic"`
	Manual    int `yaml:"manual"`
}

// Limits maps subscription tiers to their quotas.
type Limits struct {
	Inventory map[string]Limit `yaml:"inventory"`
	Orders    map[string]Limit `yaml:"orders"`
	History   map[string]int   `yaml:"history"`
}

// LoadLimits reads the limits file at path, or the embedded defaults when path is empty.
func LoadLimits(path string) (*Limits, error) {
	data := defaultLimits
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read limits file: %w", err)
		}
		data = b
	}

	var l Limits
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("failed to parse limits: %w", err)
	}
	return &l, nil
}

// For returns the limit for a tier and kind ("inventory" or "orders").
func (l *Limits) For(kind, tier string) (Limit, bool) {
	table := l.Inventory
	if kind == "orders" {
		table = l.Orders
	}
	lim, ok := table[tier]
	return lim, ok
}

// HistoryLimit returns the first-lookup ceiling for a full plan name.
func (l *Limits) HistoryLimit(plan string) int {
	if n, ok := l.History[plan]; ok {
		return n
	}
	return l.History[defaultHistoryPlan]
}
