package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileStore keeps backend credentials in a JSON object keyed by backend id.
// The file is written with owner-only permissions.
type FileStore struct {
	path string

	mu      sync.Mutex
	secrets map[string]string
	loaded  bool
}

// GetCredentialsPath returns the default credentials file location.
func GetCredentialsPath() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "term-chat", "credentials.json"), nil
}

// NewFileStore returns a store backed by path, or the default location when
// path is empty. The file is read lazily.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		p, err := GetCredentialsPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return &FileStore{path: path}, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) loadLocked() error {
	if s.loaded {
		return nil
	}
	s.secrets = map[string]string{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.loaded = true
			return nil
		}
		return fmt.Errorf("failed to read credentials: %w", err)
	}
	if err := json.Unmarshal(data, &s.secrets); err != nil {
		return fmt.Errorf("failed to parse credentials: %w", err)
	}
	s.loaded = true
	return nil
}

func (s *FileStore) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}
	data, err := json.MarshalIndent(s.secrets, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

// Get returns the credential stored for key. A missing or unreadable file
// reports absent.
func (s *FileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return "", false
	}
	v, ok := s.secrets[key]
	return v, ok && v != ""
}

// Set stores a credential and rewrites the file.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return err
	}
	s.secrets[key] = value
	return s.saveLocked()
}

// Delete removes a credential. Deleting an absent key is not an error.
func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return err
	}
	if _, ok := s.secrets[key]; !ok {
		return nil
	}
	delete(s.secrets, key)
	return s.saveLocked()
}

// Keys returns the stored keys, sorted.
func (s *FileStore) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(s.secrets))
	for k := range s.secrets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// StaticStore serves credentials resolved from config.
type StaticStore map[string]string

func (s StaticStore) Get(key string) (string, bool) {
	v, ok := s[key]
	return v, ok && v != ""
}

// Getter is the lookup every store implements.
type Getter interface {
	Get(key string) (string, bool)
}

// Chain consults each store in order and returns the first hit.
type Chain []Getter

func (c Chain) Get(key string) (string, bool) {
	for _, g := range c {
		if g == nil {
			continue
		}
		if v, ok := g.Get(key); ok {
			return v, true
		}
	}
	return "", false
}
