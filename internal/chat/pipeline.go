package chat

import (
	"context"
	"fmt"

	"github.com/samsaffron/term-chat/internal/llm"
)

// Placeholder bodies shown while a search-augmented request is in progress.
const (
	PlaceholderSearching = "🔍 Searching the web for information..."
	PlaceholderFound     = "🔍 Found search results. Processing with AI..."
	placeholderFailed    = "❌ Search failed: %v. Trying to answer without search results..."
)

// searchTemperature is used for the search call.
const searchTemperature = 0.7

const searchProcessorSystem = `You are an AI assistant that analyzes search results from the web.
Your task is to:
1. Extract relevant information from the search results
2. Synthesize a comprehensive and accurate answer
3. Cite sources when providing factual information
4. Be objective and present multiple perspectives when relevant
5. Indicate clearly if information is missing or uncertain`

const searchPromptTemplate = "I searched the web for: \"%s\"\n\n" +
	"Here are the search results:\n%s\n\n" +
	"Based on these search results, please answer my original question in a comprehensive and helpful way. " +
	"Cite sources when appropriate."

// SearchFailedPlaceholder is the placeholder body after a failed search.
func SearchFailedPlaceholder(err error) string {
	return fmt.Sprintf(placeholderFailed, err)
}

// SearchPipeline routes a request through a search backend and prepares the
// follow-up LLM request.
type SearchPipeline struct {
	dir *llm.Directory
}

func NewSearchPipeline(dir *llm.Directory) *SearchPipeline {
	return &SearchPipeline{dir: dir}
}

// Search runs query on the configured search backend.
func (p *SearchPipeline) Search(ctx context.Context, query string) (string, error) {
	cfg, ok := p.dir.SearchConfig()
	if !ok {
		return "", llm.NewError(llm.KindNoBackendConfigured, "no search backend", nil)
	}
	backend, _, err := p.dir.Backend(cfg.ID, "")
	if err != nil {
		return "", err
	}
	return backend.Send(ctx, []llm.ChatMessage{{Role: llm.RoleUser, Content: query}}, searchTemperature)
}

// target identifies the backend and model a request is dispatched to.
type target struct {
	backendID string
	model     string
}

// synthesisTarget picks the LLM that turns search results into an answer:
// the conversation's own backend when it is a language model, otherwise the
// preferred configured one.
func (p *SearchPipeline) synthesisTarget(s Snapshot) (target, bool) {
	if p.dir.IsLLM(s.BackendID) {
		return target{backendID: s.BackendID, model: s.Model}, true
	}
	cfg, ok := p.dir.PreferredLLM()
	if !ok {
		return target{}, false
	}
	return target{backendID: cfg.ID, model: cfg.Model}, true
}

// SynthesisMessages is the request sent to model once search results are in.
func SynthesisMessages(model, original, results string) []llm.ChatMessage {
	s := Snapshot{SystemMessage: searchProcessorSystem, Model: model}
	return BuildContext(s, fmt.Sprintf(searchPromptTemplate, original, results), 1)
}
