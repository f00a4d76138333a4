package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const braveMaxResults = 20

// BraveSearcher queries the Brave Search web endpoint.
type BraveSearcher struct {
	client  *http.Client
	apiKey  string
	baseURL string
}

func NewBraveSearcher(apiKey string, client *http.Client) *BraveSearcher {
	return &BraveSearcher{
		client:  httpClient(client),
		apiKey:  apiKey,
		baseURL: "https://api.search.brave.com/res/v1/web/search",
	}
}

// WithBaseURL overrides the API endpoint.
func (b *BraveSearcher) WithBaseURL(u string) *BraveSearcher {
	if u != "" {
		b.baseURL = u
	}
	return b
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title         string   `json:"title"`
			URL           string   `json:"url"`
			Description   string   `json:"description"`
			ExtraSnippets []string `json:"extra_snippets"`
		} `json:"results"`
	} `json:"web"`
}

func (b *BraveSearcher) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	n := resultCount(maxResults, braveMaxResults)

	params := url.Values{"q": {query}, "count": {strconv.Itoa(n)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	body, err := fetch(b.client, req, "brave")
	if err != nil {
		return nil, err
	}
	var parsed braveResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("brave: parse response: %w", err)
	}

	results := make([]Result, 0, len(parsed.Web.Results))
	for _, r := range parsed.Web.Results {
		snippet := r.Description
		if snippet == "" && len(r.ExtraSnippets) > 0 {
			snippet = r.ExtraSnippets[0]
		}
		results = append(results, Result{Title: stripTags(r.Title), URL: r.URL, Snippet: stripTags(snippet)})
	}
	return tidy(results, n), nil
}

// stripTags removes the <strong> highlighting Brave puts around matches.
func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>' && inTag:
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}
