package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/samsaffron/term-chat/internal/chat"
)

// ErrNotFound is returned when no conversation matches an id.
var ErrNotFound = errors.New("conversation not found")

// Config controls conversation persistence.
type Config struct {
	Enabled    bool
	Path       string // database file, defaults to $XDG_DATA_HOME/term-chat/chats.db
	MaxAgeDays int    // delete conversations untouched for this long, 0 keeps all
	MaxCount   int    // keep at most this many conversations, 0 keeps all
}

func DefaultConfig() Config {
	return Config{Enabled: true}
}

// Summary is one row of a conversation listing.
type Summary struct {
	ID           string
	Name         string
	BackendID    string
	Model        string
	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SearchResult is a message matching a full-text query.
type SearchResult struct {
	ConversationID string
	Name           string
	Sequence       int
	Snippet        string
	CreatedAt      time.Time
}

// ListOptions filters List.
type ListOptions struct {
	BackendID string
	Limit     int
	Offset    int
}

// Store persists conversations.
type Store interface {
	chat.Persister
	Load(ctx context.Context, idOrPrefix string) (chat.Snapshot, error)
	List(ctx context.Context, opts ListOptions) ([]Summary, error)
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
	Rename(ctx context.Context, id, name string) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// NewStore opens the configured store, or a NoopStore when persistence is
// disabled.
func NewStore(cfg Config) (Store, error) {
	if !cfg.Enabled {
		return &NoopStore{}, nil
	}
	return NewSQLiteStore(cfg)
}

// GetDBPath returns the default database location.
func GetDBPath() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "term-chat", "chats.db"), nil
}
