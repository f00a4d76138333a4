package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const exaMaxResults = 100

// ExaSearcher queries the Exa neural search API.
type ExaSearcher struct {
	client  *http.Client
	apiKey  string
	baseURL string
}

func NewExaSearcher(apiKey string, client *http.Client) *ExaSearcher {
	return &ExaSearcher{
		client:  httpClient(client),
		apiKey:  apiKey,
		baseURL: "https://api.exa.ai/search",
	}
}

// WithBaseURL overrides the API endpoint.
func (e *ExaSearcher) WithBaseURL(u string) *ExaSearcher {
	if u != "" {
		e.baseURL = u
	}
	return e
}

type exaRequest struct {
	Query      string      `json:"query"`
	NumResults int         `json:"numResults"`
	Type       string      `json:"type"`
	Contents   exaContents `json:"contents"`
}

type exaContents struct {
	Highlights bool `json:"highlights"`
}

type exaResponse struct {
	Results []struct {
		Title      string   `json:"title"`
		URL        string   `json:"url"`
		Text       string   `json:"text"`
		Highlights []string `json:"highlights"`
	} `json:"results"`
}

func (e *ExaSearcher) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	n := resultCount(maxResults, exaMaxResults)

	payload, err := json.Marshal(exaRequest{
		Query:      query,
		NumResults: n,
		Type:       "auto",
		Contents:   exaContents{Highlights: true},
	})
	if err != nil {
		return nil, fmt.Errorf("exa: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", e.apiKey)

	body, err := fetch(e.client, req, "exa")
	if err != nil {
		return nil, err
	}
	var parsed exaResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("exa: parse response: %w", err)
	}

	results := make([]Result, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		snippet := strings.Join(r.Highlights, " ")
		if snippet == "" {
			snippet = r.Text
		}
		results = append(results, Result{Title: r.Title, URL: r.URL, Snippet: snippet})
	}
	return tidy(results, n), nil
}
