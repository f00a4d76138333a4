package llm

import "testing"

func TestReasoningModelClass(t *testing.T) {
	for _, m := range []string{"o1", "o1-mini", "o3-mini-high", "o1-2024-12-17", " O1-Preview "} {
		if SupportsSystemRole(m) {
			t.Errorf("SupportsSystemRole(%q) = true, want false", m)
		}
		if !FixedTemperature(m) {
			t.Errorf("FixedTemperature(%q) = false, want true", m)
		}
	}
	for _, m := range []string{"gpt-4o", "claude-3-5-sonnet-latest", "o3", "llama3.1"} {
		if !SupportsSystemRole(m) {
			t.Errorf("SupportsSystemRole(%q) = false, want true", m)
		}
	}
}

func TestEffectiveTemperature(t *testing.T) {
	if got := EffectiveTemperature("o1-mini", 0.2); got != 1 {
		t.Errorf("fixed class temperature = %v, want 1", got)
	}
	if got := EffectiveTemperature("gpt-4o", 0.74); got != 0.7 {
		t.Errorf("rounded temperature = %v, want 0.7", got)
	}
	if got := EffectiveTemperature("gpt-4o", 0.66); got != 0.7 {
		t.Errorf("rounded temperature = %v, want 0.7", got)
	}
}
