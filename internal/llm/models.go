package llm

import (
	"math"
	"strings"
)

// Models that reject the system role and only accept temperature 1.
var reasoningModels = map[string]bool{
	"o1":                    true,
	"o1-preview":            true,
	"o1-mini":               true,
	"o3-mini":               true,
	"o3-mini-high":          true,
	"o3-mini-2025-01-31":    true,
	"o1-preview-2024-09-12": true,
	"o1-mini-2024-09-12":    true,
	"o1-2024-12-17":         true,
}

// SupportsSystemRole reports whether model accepts a system-role entry.
func SupportsSystemRole(model string) bool {
	return !reasoningModels[strings.ToLower(strings.TrimSpace(model))]
}

// FixedTemperature reports whether model must be called with temperature 1.
func FixedTemperature(model string) bool {
	return reasoningModels[strings.ToLower(strings.TrimSpace(model))]
}

// EffectiveTemperature returns the temperature to send for model: 1 for the
// fixed class, otherwise t rounded to one decimal.
func EffectiveTemperature(model string, t float64) float64 {
	if FixedTemperature(model) {
		return 1
	}
	return math.Round(t*10) / 10
}
