package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samsaffron/term-chat/internal/llm"
)

var (
	// ErrGenerationInProgress is returned when a conversation already has a
	// generation in flight.
	ErrGenerationInProgress = errors.New("generation already in progress")
	// ErrPersist wraps a final save that failed after every retry.
	ErrPersist = errors.New("persist conversation")
	// ErrEmptyResponse is returned when a backend produced no text.
	ErrEmptyResponse = errors.New("empty response")
)

const (
	DefaultUpdateInterval = 200 * time.Millisecond
	DefaultSaveAttempts   = 3
	DefaultContextSize    = 10
)

// Outcome is how a generation settled.
type Outcome int

const (
	Success Outcome = iota
	Failure
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Request is one user turn to generate a reply for.
type Request struct {
	Text          string
	ContextSize   int
	Stream        bool
	DisableSearch bool
}

// Result reports a settled generation.
type Result struct {
	Outcome   Outcome
	Text      string
	Sequence  int // sequence of the reply message, -1 when none was created
	Augmented bool
}

// Persister stores conversation state.
type Persister interface {
	SaveConversation(ctx context.Context, s Snapshot) error
}

// Notifier receives change events. Publish must not block.
type Notifier interface {
	Publish(topic string, payload any)
}

// UsageRecorder is told about every request that produced text.
type UsageRecorder interface {
	Record(backendID, model string, prompt []llm.ChatMessage, completion string)
}

// Options configure an Orchestrator. Directory is required.
type Options struct {
	Directory      *llm.Directory
	Store          Persister
	Notifier       Notifier
	Usage          UsageRecorder
	Logger         *slog.Logger
	UpdateInterval time.Duration
	SaveAttempts   int
	SaveBackoff    time.Duration
	SearchDisabled bool
}

// Orchestrator drives generations for any number of conversations.
type Orchestrator struct {
	dir            *llm.Directory
	pipeline       *SearchPipeline
	store          Persister
	notifier       Notifier
	usage          UsageRecorder
	logger         *slog.Logger
	updateInterval time.Duration
	saveAttempts   int
	saveBackoff    time.Duration
	searchEnabled  bool

	mu     sync.Mutex
	active map[string]*generation
}

func NewOrchestrator(opts Options) *Orchestrator {
	o := &Orchestrator{
		dir:            opts.Directory,
		pipeline:       NewSearchPipeline(opts.Directory),
		store:          opts.Store,
		notifier:       opts.Notifier,
		usage:          opts.Usage,
		logger:         opts.Logger,
		updateInterval: opts.UpdateInterval,
		saveAttempts:   opts.SaveAttempts,
		saveBackoff:    opts.SaveBackoff,
		searchEnabled:  !opts.SearchDisabled,
		active:         make(map[string]*generation),
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.updateInterval <= 0 {
		o.updateInterval = DefaultUpdateInterval
	}
	if o.saveAttempts <= 0 {
		o.saveAttempts = DefaultSaveAttempts
	}
	if o.saveBackoff <= 0 {
		o.saveBackoff = 100 * time.Millisecond
	}
	return o
}

// generation is the per-request cancellation token plus async save state.
type generation struct {
	ctx       context.Context
	cancel    context.CancelFunc
	cancelled atomic.Bool
	saving    atomic.Bool
	saves     sync.WaitGroup
}

func (g *generation) isCancelled() bool {
	return g.cancelled.Load() || g.ctx.Err() != nil
}

// Cancel stops the in-flight generation for a conversation. It reports
// whether one was running.
func (o *Orchestrator) Cancel(conversationID string) bool {
	o.mu.Lock()
	g, ok := o.active[conversationID]
	o.mu.Unlock()
	if !ok {
		return false
	}
	g.cancelled.Store(true)
	g.cancel()
	return true
}

// Active reports whether a generation is running for the conversation.
func (o *Orchestrator) Active(conversationID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.active[conversationID]
	return ok
}

// Send generates a reply with a single backend call.
func (o *Orchestrator) Send(ctx context.Context, conv *Conversation, text string, contextSize int) (Result, error) {
	return o.Generate(ctx, conv, Request{Text: text, ContextSize: contextSize})
}

// SendStreaming generates a reply, applying chunks to the conversation as
// they arrive.
func (o *Orchestrator) SendStreaming(ctx context.Context, conv *Conversation, text string, contextSize int) (Result, error) {
	return o.Generate(ctx, conv, Request{Text: text, ContextSize: contextSize, Stream: true})
}

// Generate runs one generation to settlement. The caller adds the user's own
// message to conv before calling. A nil error accompanies Success and
// Cancelled; Failure always carries the cause.
func (o *Orchestrator) Generate(ctx context.Context, conv *Conversation, req Request) (Result, error) {
	if !conv.beginGeneration() {
		return Result{Outcome: Failure, Sequence: -1}, ErrGenerationInProgress
	}
	id := conv.ID()
	genCtx, cancel := context.WithCancel(ctx)
	g := &generation{ctx: genCtx, cancel: cancel}

	o.mu.Lock()
	o.active[id] = g
	o.mu.Unlock()
	o.notify(id, ChangeWaiting, -1)

	defer func() {
		cancel()
		o.mu.Lock()
		delete(o.active, id)
		o.mu.Unlock()
		conv.endGeneration()
		o.notify(id, ChangeWaiting, -1)
	}()

	if req.ContextSize < 1 {
		req.ContextSize = 1
	}
	conv.appendRequestMessage(llm.ChatMessage{Role: llm.RoleUser, Content: req.Text})

	var (
		res Result
		err error
	)
	if o.searchEnabled && !req.DisableSearch && ShouldSearch(req.Text) {
		res, err = o.generateWithSearch(g, conv, req)
		res.Augmented = true
	} else {
		snap := conv.Snapshot()
		messages := BuildContext(snap, req.Text, req.ContextSize)
		res, err = o.dispatch(g, conv, target{backendID: snap.BackendID, model: snap.Model}, messages, req.Stream, dispatchState{seq: -1})
	}

	o.logger.Debug("generation settled",
		"conversation", id,
		"outcome", res.Outcome.String(),
		"augmented", res.Augmented,
		"chars", len(res.Text),
		"error", err)
	return res, err
}

func (o *Orchestrator) generateWithSearch(g *generation, conv *Conversation, req Request) (Result, error) {
	// Context is captured before the placeholder exists so it never reaches
	// the backend.
	snap := conv.Snapshot()
	id := snap.ID
	placeholder := conv.appendMessage(PlaceholderSearching, false, true)
	o.notify(id, ChangeMessageAdded, placeholder.Sequence)
	o.saveAsync(g, conv)

	results, err := o.pipeline.Search(g.ctx, ExtractSearchQuery(req.Text))
	if g.isCancelled() {
		return o.settle(g, conv, Cancelled, "", placeholder.Sequence, nil)
	}

	if err != nil {
		o.logger.Warn("search failed, answering without results", "conversation", id, "error", err)
		o.setBody(conv, placeholder.Sequence, SearchFailedPlaceholder(err))
		tgt, ok := o.pipeline.synthesisTarget(snap)
		if !ok {
			cause := llm.NewError(llm.KindNoBackendConfigured, "no language model to answer without search results", err)
			return o.failBeforeText(g, conv, dispatchState{seq: placeholder.Sequence}, cause)
		}
		fallback := snap
		fallback.Model = tgt.model
		messages := BuildContext(fallback, req.Text, req.ContextSize)
		return o.dispatch(g, conv, tgt, messages, req.Stream, dispatchState{seq: placeholder.Sequence})
	}

	o.setBody(conv, placeholder.Sequence, PlaceholderFound)

	tgt, ok := o.pipeline.synthesisTarget(snap)
	if !ok {
		o.setBody(conv, placeholder.Sequence, results)
		conv.appendRequestMessage(llm.ChatMessage{Role: llm.RoleAssistant, Content: results})
		return o.settle(g, conv, Success, results, placeholder.Sequence, nil)
	}

	messages := SynthesisMessages(tgt.model, req.Text, results)
	return o.dispatch(g, conv, tgt, messages, req.Stream, dispatchState{seq: placeholder.Sequence, fallback: results})
}

// dispatchState carries the message a reply takes over.
type dispatchState struct {
	seq      int    // existing placeholder, -1 for none
	fallback string // placeholder body if the backend fails before any text
}

func (o *Orchestrator) dispatch(g *generation, conv *Conversation, tgt target, messages []llm.ChatMessage, stream bool, st dispatchState) (Result, error) {
	backend, cfg, err := o.dir.Backend(tgt.backendID, tgt.model)
	if err != nil {
		return o.failBeforeText(g, conv, st, err)
	}
	temperature := llm.EffectiveTemperature(cfg.Model, conv.Temperature())

	if !stream {
		return o.sendOnce(g, conv, backend, cfg, messages, temperature, st)
	}
	return o.stream(g, conv, backend, cfg, messages, temperature, st)
}

func (o *Orchestrator) sendOnce(g *generation, conv *Conversation, backend llm.Backend, cfg llm.BackendConfig, messages []llm.ChatMessage, temperature float64, st dispatchState) (Result, error) {
	text, err := backend.Send(g.ctx, messages, temperature)
	if g.isCancelled() {
		return o.settle(g, conv, Cancelled, "", st.seq, nil)
	}
	if err != nil {
		return o.failBeforeText(g, conv, st, err)
	}
	if text == "" {
		return o.failBeforeText(g, conv, st, llm.NewError(llm.KindInvalidResponse, "", ErrEmptyResponse))
	}

	seq := o.writeReply(conv, st.seq, text)
	conv.appendRequestMessage(llm.ChatMessage{Role: llm.RoleAssistant, Content: text})
	o.recordUsage(cfg, messages, text)
	return o.settle(g, conv, Success, text, seq, nil)
}

func (o *Orchestrator) stream(g *generation, conv *Conversation, backend llm.Backend, cfg llm.BackendConfig, messages []llm.ChatMessage, temperature float64, st dispatchState) (Result, error) {
	s, err := backend.SendStreaming(g.ctx, messages, temperature)
	if err != nil {
		if g.isCancelled() {
			return o.settle(g, conv, Cancelled, "", st.seq, nil)
		}
		return o.failBeforeText(g, conv, st, err)
	}
	defer s.Close()

	var (
		buf       strings.Builder
		seq       = -1
		lastFlush time.Time
		outcome   = Success
		streamErr error
	)
	for {
		if g.isCancelled() {
			outcome = Cancelled
			break
		}
		chunk, err := s.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			if g.isCancelled() {
				outcome = Cancelled
			} else {
				outcome = Failure
				streamErr = err
			}
			break
		}
		if chunk == "" {
			continue
		}
		buf.WriteString(chunk)

		switch {
		case seq < 0:
			seq = o.writeReply(conv, st.seq, buf.String())
			lastFlush = time.Now()
			o.saveAsync(g, conv)
		case time.Since(lastFlush) >= o.updateInterval:
			o.setBody(conv, seq, buf.String())
			lastFlush = time.Now()
			o.saveAsync(g, conv)
		}
	}

	if seq < 0 {
		switch {
		case outcome == Cancelled:
			return o.settle(g, conv, Cancelled, "", st.seq, nil)
		case streamErr != nil:
			return o.failBeforeText(g, conv, st, streamErr)
		default:
			return o.failBeforeText(g, conv, st, llm.NewError(llm.KindInvalidResponse, "", ErrEmptyResponse))
		}
	}

	text := buf.String()
	o.setBody(conv, seq, text)
	conv.appendRequestMessage(llm.ChatMessage{Role: llm.RoleAssistant, Content: text})
	o.recordUsage(cfg, messages, text)
	if streamErr != nil {
		o.logger.Warn("stream ended with error", "conversation", conv.ID(), "chars", len(text), "error", streamErr)
	}
	return o.settle(g, conv, outcome, text, seq, streamErr)
}

// failBeforeText settles a generation that produced no reply text.
func (o *Orchestrator) failBeforeText(g *generation, conv *Conversation, st dispatchState, cause error) (Result, error) {
	if st.seq >= 0 && st.fallback != "" {
		o.setBody(conv, st.seq, st.fallback)
		conv.appendRequestMessage(llm.ChatMessage{Role: llm.RoleAssistant, Content: st.fallback})
	}
	return o.settle(g, conv, Failure, st.fallback, st.seq, cause)
}

// settle clears the waiting state, waits for any best-effort save and
// persists the final state with retry. A failed final save turns the outcome
// into Failure.
func (o *Orchestrator) settle(g *generation, conv *Conversation, outcome Outcome, text string, seq int, cause error) (Result, error) {
	conv.clearWaiting()
	o.notify(conv.ID(), ChangeWaiting, seq)

	g.saves.Wait()
	if err := o.saveWithRetry(context.WithoutCancel(g.ctx), conv); err != nil {
		o.logger.Error("final save failed", "conversation", conv.ID(), "error", err)
		if cause == nil {
			cause = err
		} else {
			cause = errors.Join(cause, err)
		}
		outcome = Failure
	}

	res := Result{Outcome: outcome, Text: text, Sequence: seq}
	if outcome == Failure {
		return res, cause
	}
	return res, nil
}

// writeReply puts text into the placeholder at seq, or appends a new reply
// message when seq is negative. It returns the reply's sequence.
func (o *Orchestrator) writeReply(conv *Conversation, seq int, text string) int {
	if seq >= 0 {
		o.setBody(conv, seq, text)
		return seq
	}
	m := conv.appendMessage(text, false, false)
	o.notify(conv.ID(), ChangeMessageAdded, m.Sequence)
	return m.Sequence
}

func (o *Orchestrator) setBody(conv *Conversation, seq int, body string) {
	if conv.updateMessage(seq, body, false) {
		o.notify(conv.ID(), ChangeMessageUpdated, seq)
	}
}

// saveAsync starts a best-effort save unless one is already running.
func (o *Orchestrator) saveAsync(g *generation, conv *Conversation) {
	if o.store == nil || !g.saving.CompareAndSwap(false, true) {
		return
	}
	snap := conv.Snapshot()
	g.saves.Add(1)
	go func() {
		defer g.saves.Done()
		defer g.saving.Store(false)
		if err := o.store.SaveConversation(context.WithoutCancel(g.ctx), snap); err != nil {
			o.logger.Warn("intermediate save failed", "conversation", snap.ID, "error", err)
		}
	}()
}

func (o *Orchestrator) saveWithRetry(ctx context.Context, conv *Conversation) error {
	if o.store == nil {
		return nil
	}
	return SaveWithRetry(ctx, o.store, conv, o.saveAttempts, o.saveBackoff)
}

// SaveWithRetry saves conv up to maxAttempts times, doubling backoff between
// attempts. The returned error wraps ErrPersist.
func SaveWithRetry(ctx context.Context, store Persister, conv *Conversation, maxAttempts int, backoff time.Duration) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = store.SaveConversation(ctx, conv.Snapshot()); err == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrPersist, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrPersist, maxAttempts, err)
}

func (o *Orchestrator) recordUsage(cfg llm.BackendConfig, prompt []llm.ChatMessage, completion string) {
	if o.usage != nil {
		o.usage.Record(cfg.ID, cfg.Model, prompt, completion)
	}
}

// ListModels returns the models offered by a configured backend.
func (o *Orchestrator) ListModels(ctx context.Context, backendID string) ([]string, error) {
	backend, _, err := o.dir.Backend(backendID, "")
	if err != nil {
		return nil, err
	}
	return backend.ListModels(ctx)
}

const (
	testSystemMessage = "You are a test assistant."
	testUserMessage   = "This is a test message."
)

// TestBackend sends a fixed message to a backend and returns its reply.
func (o *Orchestrator) TestBackend(ctx context.Context, backendID, model string) (string, error) {
	backend, cfg, err := o.dir.Backend(backendID, model)
	if err != nil {
		return "", err
	}
	var messages []llm.ChatMessage
	if llm.SupportsSystemRole(cfg.Model) && !llm.IsSearch(cfg.Type) {
		messages = append(messages, llm.ChatMessage{Role: llm.RoleSystem, Content: testSystemMessage})
	}
	messages = append(messages, llm.ChatMessage{Role: llm.RoleUser, Content: testUserMessage})
	return backend.Send(ctx, messages, llm.EffectiveTemperature(cfg.Model, 0.7))
}
