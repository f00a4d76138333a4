package ui

import (
	"os"
	"strings"
)

// ParseBoolDefault parses a boolean-like environment value with a fallback default.
// True values: 1, true, yes, on, y
// False values: 0, false, no, off, n
// Empty/unknown values return defaultValue.
func ParseBoolDefault(raw string, defaultValue bool) bool {
	value := strings.TrimSpace(strings.ToLower(raw))
	if value == "" {
		return defaultValue
	}
	switch value {
	case "1", "true", "yes", "on", "y":
		return true
	case "0", "false", "no", "off", "n":
		return false
	default:
		return defaultValue
	}
}

// ColorEnabled reports whether styled output should be used on a terminal.
// NO_COLOR disables it; TERM_CHAT_COLOR forces either way.
func ColorEnabled(isTTY bool) bool {
	if v, ok := os.LookupEnv("TERM_CHAT_COLOR"); ok {
		return ParseBoolDefault(v, isTTY)
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isTTY
}
