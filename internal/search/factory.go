package search

import (
	"fmt"
	"net/http"
)

// Options carries the provider-specific settings needed to build a Searcher.
type Options struct {
	APIKey  string
	CX      string // Google Custom Search Engine ID
	BaseURL string
	Client  *http.Client
}

// NewSearcher creates a Searcher for the named provider.
// Returns DuckDuckGo as the default if no provider is specified.
func NewSearcher(provider string, opts Options) (Searcher, error) {
	if provider == "" {
		provider = "duckduckgo"
	}

	switch provider {
	case "exa":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("exa search requires an API key")
		}
		return NewExaSearcher(opts.APIKey, opts.Client).WithBaseURL(opts.BaseURL), nil

	case "brave":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("brave search requires an API key")
		}
		return NewBraveSearcher(opts.APIKey, opts.Client).WithBaseURL(opts.BaseURL), nil

	case "google", "googlesearch":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("google search requires an API key")
		}
		if opts.CX == "" {
			return nil, fmt.Errorf("google search requires a Custom Search Engine ID")
		}
		return NewGoogleSearcher(opts.APIKey, opts.CX, opts.Client).WithBaseURL(opts.BaseURL), nil

	case "duckduckgo":
		return NewDuckDuckGoLite(opts.Client).WithBaseURL(opts.BaseURL), nil

	default:
		return nil, fmt.Errorf("unknown search provider: %s (valid: exa, brave, google, duckduckgo)", provider)
	}
}
