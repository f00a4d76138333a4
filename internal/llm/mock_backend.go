package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MockTurn represents a single response from the mock backend.
type MockTurn struct {
	Text        string        // Text to return (chunked when streaming unless Chunks is set)
	Chunks      []string      // Explicit stream chunks
	Error       error         // Returned instead of responding
	StreamError error         // Returned by Recv after every chunk is delivered
	Delay       time.Duration // Optional delay before responding

	// ChunkDelay and Stall stream through a producer goroutine, like the
	// real adapters. ChunkDelay pauses before each chunk; Stall blocks after
	// the last chunk until the request context ends.
	ChunkDelay time.Duration
	Stall      bool
}

// MockRequest is one recorded call.
type MockRequest struct {
	Messages    []ChatMessage
	Temperature float64
	Streaming   bool
}

// MockBackend is a scripted Backend for tests. It records every request.
type MockBackend struct {
	name      string
	models    []string
	turns     []MockTurn
	turnIndex int
	Requests  []MockRequest

	// OnChunk, when set, runs inside Recv just before chunk index is
	// returned.
	OnChunk func(index int)

	mu sync.Mutex
}

func NewMockBackend(name string) *MockBackend {
	return &MockBackend{name: name}
}

func (m *MockBackend) Name() string { return m.name }

// WithModels sets the list returned by ListModels.
func (m *MockBackend) WithModels(models ...string) *MockBackend {
	m.models = models
	return m
}

func (m *MockBackend) AddTurn(t MockTurn) *MockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, t)
	return m
}

func (m *MockBackend) AddTextResponse(text string) *MockBackend {
	return m.AddTurn(MockTurn{Text: text})
}

func (m *MockBackend) AddError(err error) *MockBackend {
	return m.AddTurn(MockTurn{Error: err})
}

// RequestCount returns the number of recorded calls.
func (m *MockBackend) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// LastRequest returns the most recent call.
func (m *MockBackend) LastRequest() (MockRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return MockRequest{}, false
	}
	return m.Requests[len(m.Requests)-1], true
}

func (m *MockBackend) ListModels(ctx context.Context) ([]string, error) {
	return append([]string(nil), m.models...), nil
}

func (m *MockBackend) next(messages []ChatMessage, temperature float64, streaming bool) (MockTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, MockRequest{
		Messages:    append([]ChatMessage(nil), messages...),
		Temperature: temperature,
		Streaming:   streaming,
	})
	if m.turnIndex >= len(m.turns) {
		return MockTurn{}, fmt.Errorf("mock backend: no more turns configured (expected turn %d, have %d)", m.turnIndex, len(m.turns))
	}
	turn := m.turns[m.turnIndex]
	m.turnIndex++
	return turn, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func (m *MockBackend) Send(ctx context.Context, messages []ChatMessage, temperature float64) (string, error) {
	turn, err := m.next(messages, temperature, false)
	if err != nil {
		return "", err
	}
	if err := wait(ctx, turn.Delay); err != nil {
		return "", err
	}
	if turn.Error != nil {
		return "", turn.Error
	}
	if turn.Text == "" && len(turn.Chunks) > 0 {
		return strings.Join(turn.Chunks, ""), nil
	}
	return turn.Text, nil
}

func (m *MockBackend) SendStreaming(ctx context.Context, messages []ChatMessage, temperature float64) (Stream, error) {
	turn, err := m.next(messages, temperature, true)
	if err != nil {
		return nil, err
	}
	if err := wait(ctx, turn.Delay); err != nil {
		return nil, err
	}
	if turn.Error != nil {
		return nil, turn.Error
	}
	chunks := turn.Chunks
	if chunks == nil {
		chunks = chunkText(turn.Text, 10)
	}
	if turn.ChunkDelay > 0 || turn.Stall {
		return newChunkStream(ctx, func(ctx context.Context, emit func(string) bool) error {
			for _, c := range chunks {
				if err := wait(ctx, turn.ChunkDelay); err != nil {
					return err
				}
				if !emit(c) {
					return ctx.Err()
				}
			}
			if turn.Stall {
				<-ctx.Done()
				return ctx.Err()
			}
			return turn.StreamError
		}), nil
	}
	return &sliceStream{chunks: chunks, err: turn.StreamError, onRecv: m.OnChunk}, nil
}

// chunkText splits text into chunks of approximately the given size.
// It tries to break at word boundaries when possible.
func chunkText(text string, chunkSize int) []string {
	if len(text) == 0 {
		return nil
	}
	if len(text) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	for len(text) > 0 {
		if len(text) <= chunkSize {
			chunks = append(chunks, text)
			break
		}

		// Find a good break point (space) near the chunk size
		breakPoint := chunkSize
		for i := chunkSize; i > chunkSize/2; i-- {
			if text[i] == ' ' {
				breakPoint = i + 1 // include the space in current chunk
				break
			}
		}

		chunks = append(chunks, text[:breakPoint])
		text = text[breakPoint:]
	}
	return chunks
}
