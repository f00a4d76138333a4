package chat

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// searchTriggers mark a message as a web search request when found anywhere
// in it, ignoring case.
var searchTriggers = []string{
	"погугли",
	"погуглить",
	"поищи",
	"найди в гугл",
	"найди информацию",
	"найди в интернете",
	"google",
	"search for",
	"look up",
	"find information about",
	"search the web for",
	"search online for",
}

// queryPrefixes are tried in order; the text after the first one found is
// the query.
var queryPrefixes = []string{
	"погугли ",
	"погуглить ",
	"поищи ",
	"найди в гугл ",
	"найди информацию о ",
	"найди в интернете ",
	"google ",
	"search for ",
	"look up ",
	"find information about ",
	"search the web for ",
	"search online for ",
}

// ShouldSearch reports whether message asks for a web search.
func ShouldSearch(message string) bool {
	for _, trigger := range searchTriggers {
		if _, _, ok := indexFold(message, trigger); ok {
			return true
		}
	}
	return false
}

// ExtractSearchQuery returns the text after the first matching trigger,
// trimmed. A message without a trigger is returned unchanged.
func ExtractSearchQuery(message string) string {
	for _, prefix := range queryPrefixes {
		if _, end, ok := indexFold(message, prefix); ok {
			return strings.TrimSpace(message[end:])
		}
	}
	return message
}

// indexFold finds the first case-insensitive occurrence of substr in s and
// returns its byte bounds within s.
func indexFold(s, substr string) (start, end int, ok bool) {
	if substr == "" {
		return 0, 0, true
	}
	for i := 0; i < len(s); {
		if j, matched := matchFoldAt(s, i, substr); matched {
			return i, j, true
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return 0, 0, false
}

func matchFoldAt(s string, i int, substr string) (int, bool) {
	for _, want := range substr {
		if i >= len(s) {
			return 0, false
		}
		got, size := utf8.DecodeRuneInString(s[i:])
		if got != want && unicode.ToLower(got) != unicode.ToLower(want) {
			return 0, false
		}
		i += size
	}
	return i, true
}
