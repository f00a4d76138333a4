package usage

import (
	"log/slog"
	"time"

	"github.com/samsaffron/term-chat/internal/llm"
)

// Tracker estimates tokens and cost for each completed request and appends
// an entry to the usage log.
type Tracker struct {
	pricing *Pricing
	logger  *Logger
	log     *slog.Logger
	now     func() time.Time
}

// NewTracker returns a Tracker. A nil log discards write failures.
func NewTracker(pricing *Pricing, logger *Logger, log *slog.Logger) *Tracker {
	if pricing == nil {
		pricing = NewPricing(nil, nil)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Tracker{pricing: pricing, logger: logger, log: log, now: time.Now}
}

// Estimate returns the entry Record would write.
func (t *Tracker) Estimate(backendID, model string, prompt []llm.ChatMessage, completion string) LogEntry {
	input := 0
	for _, m := range prompt {
		input += EstimateTokens(m.Content)
	}
	output := EstimateTokens(completion)
	return LogEntry{
		Timestamp:    t.now(),
		BackendID:    backendID,
		Model:        model,
		InputTokens:  input,
		OutputTokens: output,
		CostUSD:      t.pricing.Cost(model, input, output),
		Estimated:    true,
	}
}

// Record logs one request. Write failures are logged and dropped.
func (t *Tracker) Record(backendID, model string, prompt []llm.ChatMessage, completion string) {
	entry := t.Estimate(backendID, model, prompt, completion)
	if t.logger == nil {
		return
	}
	if err := t.logger.Log(entry); err != nil {
		t.log.Warn("usage log write failed", "backend", backendID, "error", err)
	}
}
