package chat

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samsaffron/term-chat/internal/llm"
)

// Message is one entry in a conversation. Own messages were written by the
// user and never change; the rest may be rewritten while a response streams.
type Message struct {
	Sequence  int
	Body      string
	Own       bool
	CreatedAt time.Time
	Waiting   bool
}

// Conversation is the mutable chat state. All access goes through its
// methods, which serialize on an internal lock.
type Conversation struct {
	mu sync.RWMutex

	id            string
	name          string
	systemMessage string
	model         string
	backendID     string
	temperature   float64
	waiting       bool
	generating    bool
	messages      []Message
	requestBuffer []llm.ChatMessage
	createdAt     time.Time
	updatedAt     time.Time
	nextSequence  int
}

// Settings configure a new conversation.
type Settings struct {
	ID            string
	Name          string
	SystemMessage string
	Model         string
	BackendID     string
	Temperature   float64
}

// NewConversation creates an empty conversation. A missing ID is generated.
func NewConversation(s Settings) *Conversation {
	now := time.Now()
	id := s.ID
	if id == "" {
		id = uuid.NewString()
	}
	return &Conversation{
		id:            id,
		name:          s.Name,
		systemMessage: s.SystemMessage,
		model:         s.Model,
		backendID:     s.BackendID,
		temperature:   s.Temperature,
		createdAt:     now,
		updatedAt:     now,
	}
}

// Snapshot is an immutable copy of a conversation.
type Snapshot struct {
	ID            string
	Name          string
	SystemMessage string
	Model         string
	BackendID     string
	Temperature   float64
	Waiting       bool
	Messages      []Message
	RequestBuffer []llm.ChatMessage
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Restore rebuilds a conversation from a snapshot, typically one loaded
// from storage.
func Restore(s Snapshot) *Conversation {
	c := &Conversation{
		id:            s.ID,
		name:          s.Name,
		systemMessage: s.SystemMessage,
		model:         s.Model,
		backendID:     s.BackendID,
		temperature:   s.Temperature,
		messages:      append([]Message(nil), s.Messages...),
		requestBuffer: append([]llm.ChatMessage(nil), s.RequestBuffer...),
		createdAt:     s.CreatedAt,
		updatedAt:     s.UpdatedAt,
	}
	if c.id == "" {
		c.id = uuid.NewString()
	}
	for i := range c.messages {
		c.messages[i].Waiting = false
		if c.messages[i].Sequence >= c.nextSequence {
			c.nextSequence = c.messages[i].Sequence + 1
		}
	}
	return c
}

func (c *Conversation) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		ID:            c.id,
		Name:          c.name,
		SystemMessage: c.systemMessage,
		Model:         c.model,
		BackendID:     c.backendID,
		Temperature:   c.temperature,
		Waiting:       c.waiting,
		Messages:      append([]Message(nil), c.messages...),
		RequestBuffer: append([]llm.ChatMessage(nil), c.requestBuffer...),
		CreatedAt:     c.createdAt,
		UpdatedAt:     c.updatedAt,
	}
}

func (c *Conversation) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

func (c *Conversation) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

func (c *Conversation) SetName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
	c.updatedAt = time.Now()
}

func (c *Conversation) SystemMessage() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.systemMessage
}

func (c *Conversation) Model() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

func (c *Conversation) BackendID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.backendID
}

// SetBackend switches the conversation to another backend and model.
func (c *Conversation) SetBackend(backendID, model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backendID = backendID
	c.model = model
}

func (c *Conversation) Temperature() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.temperature
}

// Waiting reports whether a response is pending.
func (c *Conversation) Waiting() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.waiting
}

func (c *Conversation) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}

// Messages returns a copy of the messages in insertion order.
func (c *Conversation) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Message(nil), c.messages...)
}

// Message returns the message with the given sequence.
func (c *Conversation) Message(seq int) (Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.messages {
		if m.Sequence == seq {
			return m, true
		}
	}
	return Message{}, false
}

// RequestBuffer returns a copy of the role/content pairs already sent.
func (c *Conversation) RequestBuffer() []llm.ChatMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]llm.ChatMessage(nil), c.requestBuffer...)
}

// AddUserMessage appends an own message and returns it.
func (c *Conversation) AddUserMessage(body string) Message {
	return c.appendMessage(body, true, false)
}

func (c *Conversation) appendMessage(body string, own, waiting bool) Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	m := Message{
		Sequence:  c.nextSequence,
		Body:      body,
		Own:       own,
		CreatedAt: now,
		Waiting:   waiting,
	}
	c.nextSequence++
	c.messages = append(c.messages, m)
	c.updatedAt = now
	return m
}

// updateMessage rewrites the body of a non-own message.
func (c *Conversation) updateMessage(seq int, body string, waiting bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.messages {
		if c.messages[i].Sequence != seq {
			continue
		}
		if c.messages[i].Own {
			return false
		}
		now := time.Now()
		c.messages[i].Body = body
		c.messages[i].CreatedAt = now
		c.messages[i].Waiting = waiting
		c.updatedAt = now
		return true
	}
	return false
}

func (c *Conversation) appendRequestMessage(m llm.ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestBuffer = append(c.requestBuffer, m)
}

// beginGeneration claims the conversation for one generation.
func (c *Conversation) beginGeneration() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generating {
		return false
	}
	c.generating = true
	c.waiting = true
	return true
}

func (c *Conversation) endGeneration() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generating = false
	c.clearWaitingLocked()
}

func (c *Conversation) clearWaiting() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearWaitingLocked()
}

func (c *Conversation) clearWaitingLocked() {
	c.waiting = false
	for i := range c.messages {
		c.messages[i].Waiting = false
	}
}

// lastMessages returns the n most recent messages by timestamp, oldest
// first. Ties keep insertion order.
func (s Snapshot) lastMessages(n int) []Message {
	out := append([]Message(nil), s.Messages...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if n < len(out) {
		out = out[len(out)-n:]
	}
	return out
}
