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

const googleEndpoint = "https://www.googleapis.com/customsearch/v1"

// googleMaxResults is the Custom Search per-request ceiling.
const googleMaxResults = 10

// GoogleSearcher queries a Google Programmable Search Engine.
type GoogleSearcher struct {
	client  *http.Client
	apiKey  string
	cx      string // engine id
	baseURL string
}

func NewGoogleSearcher(apiKey, cx string, client *http.Client) *GoogleSearcher {
	return &GoogleSearcher{
		client:  httpClient(client),
		apiKey:  apiKey,
		cx:      cx,
		baseURL: googleEndpoint,
	}
}

// WithBaseURL overrides the Custom Search endpoint.
func (g *GoogleSearcher) WithBaseURL(u string) *GoogleSearcher {
	if u != "" {
		g.baseURL = strings.TrimRight(u, "?")
	}
	return g
}

type googleResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (g *GoogleSearcher) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	n := resultCount(maxResults, googleMaxResults)

	params := url.Values{
		"key": {g.apiKey},
		"cx":  {g.cx},
		"q":   {query},
		"num": {strconv.Itoa(n)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	body, err := fetch(g.client, req, "google")
	if err != nil {
		return nil, err
	}

	var parsed googleResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("google: parse response: %w", err)
	}
	// Errors can also arrive inside a 200 body.
	if parsed.Error != nil {
		return nil, statusError("google", parsed.Error.Code, []byte(parsed.Error.Message))
	}

	results := make([]Result, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		results = append(results, Result{Title: item.Title, URL: item.Link, Snippet: item.Snippet})
	}
	return tidy(results, n), nil
}
