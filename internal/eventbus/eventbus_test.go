package eventbus

import (
	"sync"
	"testing"
	"time"

	"github.com/samsaffron/term-chat/internal/chat"
)

var _ chat.Notifier = (*Bus)(nil)

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case evt := <-sub.C():
		return evt
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
	return Event{}
}

func TestPublishAndSubscribe(t *testing.T) {
	bus := New()
	sub := bus.Subscribe("test.topic")

	bus.Publish("test.topic", "hello")

	evt := receive(t, sub)
	if evt.Topic != "test.topic" {
		t.Errorf("expected topic 'test.topic', got %q", evt.Topic)
	}
	if evt.Payload != "hello" {
		t.Errorf("expected payload 'hello', got %v", evt.Payload)
	}
}

func TestMultipleSubscribersAllReceive(t *testing.T) {
	bus := New()
	subs := []*Subscription{bus.Subscribe("multi"), bus.Subscribe("multi")}

	bus.Publish("multi", 42)

	for i, sub := range subs {
		if evt := receive(t, sub); evt.Payload != 42 {
			t.Errorf("subscriber %d: expected payload 42, got %v", i, evt.Payload)
		}
	}
}

func TestTopicsAreIsolated(t *testing.T) {
	bus := New()
	a := bus.Subscribe("topic.a")
	b := bus.Subscribe("topic.b")

	bus.Publish("topic.a", "for-a")
	receive(t, a)

	select {
	case evt := <-b.C():
		t.Errorf("topic.b should not receive events, got %v", evt)
	default:
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	bus := New()
	bus.Publish("nobody", "x")
	if bus.Dropped() != 0 {
		t.Fatalf("dropped=%d, want 0", bus.Dropped())
	}
}

func TestFullBufferDropsWithoutBlocking(t *testing.T) {
	bus := NewWithBuffer(2)
	sub := bus.Subscribe("t")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			bus.Publish("t", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full buffer")
	}
	if bus.Dropped() != 3 {
		t.Fatalf("dropped=%d, want 3", bus.Dropped())
	}
	if evt := receive(t, sub); evt.Payload != 0 {
		t.Fatalf("first payload=%v, want 0", evt.Payload)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New()
	sub := bus.Subscribe("t")
	other := bus.Subscribe("t")

	sub.Unsubscribe()
	sub.Unsubscribe()

	if _, ok := <-sub.C(); ok {
		t.Fatal("expected closed channel")
	}

	bus.Publish("t", "still delivered")
	if evt := receive(t, other); evt.Payload != "still delivered" {
		t.Fatalf("payload=%v", evt.Payload)
	}
}

func TestConcurrentPublishAndUnsubscribe(t *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := bus.Subscribe("c")
			for j := 0; j < 50; j++ {
				bus.Publish("c", chat.Change{Kind: chat.ChangeMessageUpdated, Sequence: j})
			}
			sub.Unsubscribe()
		}()
	}
	wg.Wait()
}
