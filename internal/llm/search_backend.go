package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samsaffron/term-chat/internal/search"
)

// searchResultLimit is how many results a search backend renders.
const searchResultLimit = 5

// SearchBackend exposes a web searcher through the Backend interface. The
// query is the most recent user message and the answer is a markdown list of
// results. Temperature is ignored.
type SearchBackend struct {
	id       string
	engine   string
	heading  string
	searcher search.Searcher
}

func newSearchBackend(cfg BackendConfig, secret string, opts FactoryOptions) (Backend, error) {
	provider := cfg.Type
	if provider == TypeGoogleSearch {
		provider = "google"
	}
	s, err := search.NewSearcher(provider, search.Options{
		APIKey:  secret,
		CX:      cfg.Model,
		BaseURL: cfg.URL,
		Client:  opts.HTTPClient,
	})
	if err != nil {
		return nil, NewError(KindNoBackendConfigured, cfg.ID, err)
	}
	return NewSearchBackend(cfg, s), nil
}

func NewSearchBackend(cfg BackendConfig, s search.Searcher) *SearchBackend {
	return &SearchBackend{
		id:       cfg.ID,
		engine:   cfg.Model,
		heading:  searchHeading(cfg.Type),
		searcher: s,
	}
}

func searchHeading(backendType string) string {
	switch backendType {
	case TypeGoogleSearch:
		return "Google Search Results"
	case TypeBrave:
		return "Brave Search Results"
	case TypeExa:
		return "Exa Search Results"
	case TypeDuckDuckGo:
		return "DuckDuckGo Search Results"
	default:
		return "Search Results"
	}
}

func (b *SearchBackend) Name() string {
	return fmt.Sprintf("%s (search)", b.id)
}

// ListModels returns the single configured engine id.
func (b *SearchBackend) ListModels(ctx context.Context) ([]string, error) {
	if b.engine == "" {
		return []string{b.id}, nil
	}
	return []string{b.engine}, nil
}

func (b *SearchBackend) Send(ctx context.Context, messages []ChatMessage, _ float64) (string, error) {
	query := lastUserContent(messages)
	if strings.TrimSpace(query) == "" {
		return "", NewError(KindInvalidResponse, "empty search query", nil)
	}
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	results, err := b.searcher.Search(ctx, query, 10)
	if err != nil {
		return "", classify(err, searchStatus)
	}
	return search.FormatMarkdown(b.heading, results, searchResultLimit), nil
}

// SendStreaming delivers the whole result page as one chunk.
func (b *SearchBackend) SendStreaming(ctx context.Context, messages []ChatMessage, temperature float64) (Stream, error) {
	text, err := b.Send(ctx, messages, temperature)
	if err != nil {
		return nil, err
	}
	return NewSliceStream([]string{text}, nil), nil
}

func lastUserContent(messages []ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

func searchStatus(err error) (int, bool) {
	var statusErr *search.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode, true
	}
	return 0, false
}
