package usage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LogEntry is one settled request, written as a JSON line.
type LogEntry struct {
	Timestamp    time.Time `json:"timestamp"`
	BackendID    string    `json:"backend_id"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CostUSD      float64   `json:"cost_usd,omitempty"`
	Estimated    bool      `json:"estimated,omitempty"`
}

// Logger writes usage entries to daily JSONL files
type Logger struct {
	baseDir string
	mu      sync.Mutex
}

// NewLogger creates a Logger rooted at dir, or the XDG data directory when
// dir is empty.
func NewLogger(dir string) *Logger {
	if dir == "" {
		dir = getUsageDir()
	}
	return &Logger{baseDir: dir}
}

// Dir returns the directory daily files are written to.
func (l *Logger) Dir() string {
	return l.baseDir
}

// Log writes a usage entry to the appropriate daily file
func (l *Logger) Log(entry LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.baseDir, 0755); err != nil {
		return err
	}

	date := entry.Timestamp.Format("2006-01-02")
	filename := filepath.Join(l.baseDir, date+".jsonl")

	f, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := w.WriteString("\n"); err != nil {
		return err
	}
	return w.Flush()
}

// getUsageDir returns the XDG data directory for usage logs
func getUsageDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "term-chat", "usage")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".term-chat", "usage")
	}

	return filepath.Join(homeDir, ".local", "share", "term-chat", "usage")
}
