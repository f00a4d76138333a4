package session

// ShortID returns a shortened conversation ID for display.
// Example: "3f2c9a1e-8d5b-4c1e-9a7f-0b6d2e4c8a10" -> "3f2c9a1e"
func ShortID(id string) string {
	if len(id) < 8 {
		return id
	}
	return id[:8]
}
