package usage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// LoadResult collects entries read from the usage directory.
type LoadResult struct {
	Entries []LogEntry
	Errors  []error
}

// Load reads every entry logged between since and until, inclusive by day.
// A zero since reads every file in the directory.
func (l *Logger) Load(since, until time.Time) LoadResult {
	var result LoadResult

	files, err := os.ReadDir(l.baseDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, err)
		}
		return result
	}

	var first, last string
	if !since.IsZero() {
		first = since.Format("2006-01-02")
	}
	if !until.IsZero() {
		last = until.Format("2006-01-02")
	}

	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		day := strings.TrimSuffix(name, ".jsonl")
		if (first != "" && day < first) || (last != "" && day > last) {
			continue
		}
		entries, errs := loadFile(filepath.Join(l.baseDir, name))
		result.Entries = append(result.Entries, entries...)
		result.Errors = append(result.Errors, errs...)
	}

	sort.SliceStable(result.Entries, func(i, j int) bool {
		return result.Entries[i].Timestamp.Before(result.Entries[j].Timestamp)
	})
	return result
}

func loadFile(path string) ([]LogEntry, []error) {
	var entries []LogEntry
	var errs []error

	file, err := os.Open(path)
	if err != nil {
		return nil, []error{err}
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 10*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		var entry LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue // skip invalid lines
		}
		if entry.InputTokens == 0 && entry.OutputTokens == 0 {
			continue
		}
		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		errs = append(errs, err)
	}
	return entries, errs
}

// ModelTotal aggregates usage for one backend/model pair.
type ModelTotal struct {
	BackendID    string
	Model        string
	Requests     int
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// Summarize totals entries per backend and model, most expensive first.
func Summarize(entries []LogEntry) []ModelTotal {
	byKey := make(map[string]*ModelTotal)
	for _, e := range entries {
		key := e.BackendID + "\x00" + e.Model
		t, ok := byKey[key]
		if !ok {
			t = &ModelTotal{BackendID: e.BackendID, Model: e.Model}
			byKey[key] = t
		}
		t.Requests++
		t.InputTokens += e.InputTokens
		t.OutputTokens += e.OutputTokens
		t.CostUSD += e.CostUSD
	}

	totals := make([]ModelTotal, 0, len(byKey))
	for _, t := range byKey {
		totals = append(totals, *t)
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].CostUSD != totals[j].CostUSD {
			return totals[i].CostUSD > totals[j].CostUSD
		}
		if totals[i].BackendID != totals[j].BackendID {
			return totals[i].BackendID < totals[j].BackendID
		}
		return totals[i].Model < totals[j].Model
	})
	return totals
}
