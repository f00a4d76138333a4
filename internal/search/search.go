package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxResults = 10
	maxSnippetRunes   = 300
)

// ErrEmptyQuery is returned for a blank query.
var ErrEmptyQuery = errors.New("empty query")

// Result is a single search result.
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// Searcher performs web searches.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// StatusError is returned when a search API answers with a non-200 status.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s http %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s http %d: %s", e.Provider, e.StatusCode, e.Body)
}

func statusError(provider string, code int, body []byte) *StatusError {
	text := strings.TrimSpace(string(body))
	if len(text) > 300 {
		text = text[:300] + "..."
	}
	return &StatusError{Provider: provider, StatusCode: code, Body: text}
}

func httpClient(c *http.Client) *http.Client {
	if c == nil {
		return &http.Client{Timeout: defaultTimeout}
	}
	return c
}

// resultCount applies the default and the provider's per-request ceiling.
func resultCount(n, ceiling int) int {
	if n <= 0 {
		n = defaultMaxResults
	}
	return min(n, ceiling)
}

// fetch runs req and returns the body of a 200 response. Other statuses
// become a *StatusError tagged with provider.
func fetch(client *http.Client, req *http.Request, provider string) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", provider, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(provider, resp.StatusCode, body)
	}
	return body, nil
}

// tidy collapses whitespace, trims long snippets, drops entries without a
// URL or repeating one already seen, and keeps at most limit results.
func tidy(results []Result, limit int) []Result {
	seen := make(map[string]bool, len(results))
	out := make([]Result, 0, len(results))
	for _, r := range results {
		r.URL = strings.TrimSpace(r.URL)
		if r.URL == "" || seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		r.Title = strings.Join(strings.Fields(r.Title), " ")
		if r.Title == "" {
			r.Title = r.URL
		}
		r.Snippet = clip(strings.Join(strings.Fields(r.Snippet), " "), maxSnippetRunes)
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// FormatMarkdown renders the first limit results as a markdown list under
// heading. An empty result set yields a short notice instead.
func FormatMarkdown(heading string, results []Result, limit int) string {
	if len(results) == 0 {
		return fmt.Sprintf("### %s:\n\nNo results found.", heading)
	}
	if limit <= 0 || limit > len(results) {
		limit = len(results)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "### %s:\n\n", heading)
	for i, r := range results[:limit] {
		fmt.Fprintf(&b, "**%d. [%s](%s)**\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			b.WriteString(r.Snippet)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "*Showing %d of %d results*", limit, len(results))
	return b.String()
}
