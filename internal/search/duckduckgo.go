package search

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// duckDuckGoMaxResults is roughly one lite results page.
const duckDuckGoMaxResults = 30

// DuckDuckGoLite implements Searcher using the DuckDuckGo lite HTML page.
type DuckDuckGoLite struct {
	client  *http.Client
	baseURL string
}

func NewDuckDuckGoLite(client *http.Client) *DuckDuckGoLite {
	return &DuckDuckGoLite{
		client:  httpClient(client),
		baseURL: "https://lite.duckduckgo.com/lite/",
	}
}

// WithBaseURL points the searcher at a different lite endpoint.
func (d *DuckDuckGoLite) WithBaseURL(u string) *DuckDuckGoLite {
	if u != "" {
		d.baseURL = u
	}
	return d
}

func (d *DuckDuckGoLite) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	params := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "term-chat")

	body, err := fetch(d.client, req, "duckduckgo")
	if err != nil {
		return nil, err
	}
	results, err := ParseDuckDuckGoLiteHTML(string(body), 0)
	if err != nil {
		return nil, err
	}
	return tidy(results, resultCount(maxResults, duckDuckGoMaxResults)), nil
}

// ParseDuckDuckGoLiteHTML parses results from DuckDuckGo lite HTML.
func ParseDuckDuckGoLiteHTML(htmlText string, maxResults int) ([]Result, error) {
	doc, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		return nil, err
	}

	var results []Result
	var lastResult *Result

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			class := getAttr(n, "class")
			if strings.Contains(class, "result-link") {
				href := getAttr(n, "href")
				title := strings.TrimSpace(textContent(n))
				if href != "" && title != "" {
					results = append(results, Result{Title: title, URL: normalizeDuckDuckGoURL(href)})
					lastResult = &results[len(results)-1]
				}
			}
		}

		if n.Type == html.ElementNode && n.Data == "span" {
			class := getAttr(n, "class")
			if strings.Contains(class, "result-snippet") && lastResult != nil && lastResult.Snippet == "" {
				lastResult.Snippet = strings.TrimSpace(textContent(n))
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)

	if maxResults <= 0 || maxResults > len(results) {
		maxResults = len(results)
	}
	return results[:maxResults], nil
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func normalizeDuckDuckGoURL(raw string) string {
	if !strings.HasPrefix(raw, "http") {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if parsed.Host != "duckduckgo.com" || !strings.HasPrefix(parsed.Path, "/l/") {
		return raw
	}
	params := parsed.Query()
	uddg := params.Get("uddg")
	if uddg == "" {
		return raw
	}
	decoded, err := url.QueryUnescape(uddg)
	if err != nil {
		return raw
	}
	return decoded
}
