package session

import (
	"context"

	"github.com/samsaffron/term-chat/internal/chat"
)

// NoopStore is a no-op implementation of Store used when persistence is
// disabled. It silently discards all writes and returns empty results for
// reads.
type NoopStore struct{}

func (s *NoopStore) SaveConversation(ctx context.Context, snap chat.Snapshot) error {
	return nil
}

func (s *NoopStore) Load(ctx context.Context, idOrPrefix string) (chat.Snapshot, error) {
	return chat.Snapshot{}, ErrNotFound
}

func (s *NoopStore) List(ctx context.Context, opts ListOptions) ([]Summary, error) {
	return nil, nil
}

func (s *NoopStore) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	return nil, nil
}

func (s *NoopStore) Rename(ctx context.Context, id, name string) error {
	return nil
}

func (s *NoopStore) Delete(ctx context.Context, id string) error {
	return nil
}

func (s *NoopStore) Close() error {
	return nil
}
