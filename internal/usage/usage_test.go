package usage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/samsaffron/term-chat/internal/chat"
	"github.com/samsaffron/term-chat/internal/llm"
	"github.com/stretchr/testify/require"
)

var _ chat.UsageRecorder = (*Tracker)(nil)

func TestPricingLookup(t *testing.T) {
	p := NewPricing(map[string]float64{"gpt-4o": 2.5}, nil)

	require.Equal(t, 2.5, p.InputPerMillion("gpt-4o"))
	require.Equal(t, 15.0, p.OutputPerMillion("gpt-4o"))
	require.Equal(t, 0.35, p.InputPerMillion("gemini-1.5-flash"))
	require.Equal(t, 1.0, p.InputPerMillion("some-new-model"))
	require.Equal(t, 1.0, p.OutputPerMillion("some-new-model"))

	p.SetOutput("some-new-model", 4)
	require.Equal(t, 4.0, p.OutputPerMillion("some-new-model"))
	require.Equal(t, 1.0, NewPricing(nil, nil).OutputPerMillion("some-new-model"))
}

func TestPricingCost(t *testing.T) {
	p := NewPricing(nil, nil)
	require.InDelta(t, 0.02, p.Cost("gpt-4o", 1000, 1000), 1e-9)
	require.Zero(t, p.Cost("gpt-4o", 0, 0))
}

func TestEstimateTokens(t *testing.T) {
	require.Equal(t, 0, EstimateTokens(""))
	require.Equal(t, 1, EstimateTokens("hi"))
	require.Equal(t, 1, EstimateTokens("four"))
	require.Equal(t, 2, EstimateTokens("fives"))
	require.Equal(t, 1, EstimateTokens("日本語"))
}

func TestTrackerRecordWritesDailyFile(t *testing.T) {
	dir := t.TempDir()
	logger := NewLogger(dir)
	tracker := NewTracker(NewPricing(nil, nil), logger, nil)
	fixed := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	tracker.now = func() time.Time { return fixed }

	prompt := []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: "12345678"},
		{Role: llm.RoleUser, Content: "1234"},
	}
	tracker.Record("openai", "gpt-4o", prompt, "12345678")

	_, err := os.Stat(filepath.Join(dir, "2026-03-14.jsonl"))
	require.NoError(t, err)

	res := logger.Load(time.Time{}, time.Time{})
	require.Empty(t, res.Errors)
	require.Len(t, res.Entries, 1)
	e := res.Entries[0]
	require.Equal(t, "openai", e.BackendID)
	require.Equal(t, 3, e.InputTokens)
	require.Equal(t, 2, e.OutputTokens)
	require.True(t, e.Estimated)
	require.InDelta(t, (3*5.0+2*15.0)/1e6, e.CostUSD, 1e-12)
}

func TestLoggerLoadDateRangeAndSummarize(t *testing.T) {
	dir := t.TempDir()
	logger := NewLogger(dir)
	day := func(d int) time.Time { return time.Date(2026, 5, d, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, logger.Log(LogEntry{Timestamp: day(1), BackendID: "openai", Model: "gpt-4o", InputTokens: 10, OutputTokens: 5, CostUSD: 0.5}))
	require.NoError(t, logger.Log(LogEntry{Timestamp: day(2), BackendID: "openai", Model: "gpt-4o", InputTokens: 20, OutputTokens: 5, CostUSD: 0.25}))
	require.NoError(t, logger.Log(LogEntry{Timestamp: day(2), BackendID: "local", Model: "llama3", InputTokens: 30, OutputTokens: 10}))
	require.NoError(t, logger.Log(LogEntry{Timestamp: day(3), BackendID: "claude", Model: "claude-3-opus-latest", InputTokens: 1, OutputTokens: 1, CostUSD: 9}))

	f, err := os.OpenFile(filepath.Join(dir, "2026-05-02.jsonl"), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("not json\n{\"backend_id\":\"empty\"}\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	res := logger.Load(day(1), day(2))
	require.Empty(t, res.Errors)
	require.Len(t, res.Entries, 3)

	totals := Summarize(res.Entries)
	require.Len(t, totals, 2)
	require.Equal(t, "openai", totals[0].BackendID)
	require.Equal(t, 2, totals[0].Requests)
	require.Equal(t, 30, totals[0].InputTokens)
	require.InDelta(t, 0.75, totals[0].CostUSD, 1e-9)
	require.Equal(t, "local", totals[1].BackendID)

	all := logger.Load(time.Time{}, time.Time{})
	require.Len(t, all.Entries, 4)
	require.Equal(t, "claude", all.Entries[3].BackendID)
}

func TestLoggerLoadMissingDir(t *testing.T) {
	res := NewLogger(filepath.Join(t.TempDir(), "none")).Load(time.Time{}, time.Time{})
	require.Empty(t, res.Entries)
	require.Empty(t, res.Errors)
}

func TestTrackerWithoutLogger(t *testing.T) {
	tracker := NewTracker(nil, nil, nil)
	tracker.Record("openai", "gpt-4o", nil, "done")
	e := tracker.Estimate("openai", "gpt-4o", nil, "done")
	require.Equal(t, 1, e.OutputTokens)
}
