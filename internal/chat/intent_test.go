package chat

import "testing"

func TestShouldSearch(t *testing.T) {
	cases := map[string]bool{
		"please google the weather":           true,
		"Search For cheap flights":            true,
		"can you LOOK UP the score":           true,
		"Погугли рецепт борща":                true,
		"найди информацию о Марсе":            true,
		"hello there":                         false,
		"what is the capital of France?":      false,
		"":                                    false,
		"search online for vegan restaurants": true,
	}
	for msg, want := range cases {
		if got := ShouldSearch(msg); got != want {
			t.Errorf("ShouldSearch(%q) = %v, want %v", msg, got, want)
		}
	}
}

func TestExtractSearchQuery(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"search for best pizza in town", "best pizza in town"},
		{"please google the weather ", "the weather"},
		{"Google   go generics", "go generics"},
		{"погугли рецепт борща", "рецепт борща"},
		{"найди информацию о Марсе", "Марсе"},
		// "google" without a trailing space does not count as a prefix.
		{"googled it already", "googled it already"},
		{"hello there", "hello there"},
	}
	for _, tc := range cases {
		if got := ExtractSearchQuery(tc.in); got != tc.want {
			t.Errorf("ExtractSearchQuery(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExtractSearchQueryTriggerOrder(t *testing.T) {
	// "google " precedes "search for " in the prefix list.
	got := ExtractSearchQuery("search for it, or google cats")
	if got != "cats" {
		t.Fatalf("got %q, want cats", got)
	}
}
