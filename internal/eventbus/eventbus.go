// Package eventbus is an in-memory publish/subscribe bus for conversation
// change events. Publish never blocks: a subscriber whose buffer is full
// misses the event.
package eventbus

import (
	"sync"
	"sync/atomic"
)

// Event is a single published message.
type Event struct {
	Topic   string
	Payload any
}

const defaultBufferSize = 100

// Subscription is one subscriber's view of a topic.
type Subscription struct {
	topic string
	ch    chan Event
	bus   *Bus
	once  sync.Once
}

// C returns the channel events arrive on. It is closed by Unsubscribe.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Unsubscribe stops delivery and closes the channel. Safe to call twice.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() { s.bus.remove(s) })
}

// Bus is the in-memory implementation.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]*Subscription
	bufferSize  int
	dropped     atomic.Int64
}

// New returns a Bus whose subscribers buffer the default number of events.
func New() *Bus {
	return NewWithBuffer(defaultBufferSize)
}

// NewWithBuffer returns a Bus with a custom per-subscriber buffer.
func NewWithBuffer(size int) *Bus {
	if size < 1 {
		size = 1
	}
	return &Bus{subscribers: make(map[string][]*Subscription), bufferSize: size}
}

// Subscribe registers a subscriber for topic. The caller must drain C or
// events are dropped.
func (b *Bus) Subscribe(topic string) *Subscription {
	sub := &Subscription{topic: topic, ch: make(chan Event, b.bufferSize), bus: b}
	b.mu.Lock()
	b.subscribers[topic] = append(b.subscribers[topic], sub)
	b.mu.Unlock()
	return sub
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[sub.topic]
	for i, s := range subs {
		if s == sub {
			b.subscribers[sub.topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subscribers[sub.topic]) == 0 {
		delete(b.subscribers, sub.topic)
	}
	close(sub.ch)
}

// Publish sends an Event to every subscriber of topic.
func (b *Bus) Publish(topic string, payload any) {
	evt := Event{Topic: topic, Payload: payload}
	// Held for the sends so remove cannot close a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers[topic] {
		select {
		case sub.ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns how many deliveries were skipped because a buffer was full.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}
