package llm

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func collect(t *testing.T, s Stream) (string, error) {
	t.Helper()
	var b strings.Builder
	for {
		text, err := s.Recv()
		if err == io.EOF {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		b.WriteString(text)
	}
}

func TestChunkStreamDeliversInOrder(t *testing.T) {
	s := newChunkStream(context.Background(), func(ctx context.Context, emit func(string) bool) error {
		for _, c := range []string{"a", "b", "", "c"} {
			emit(c)
		}
		return nil
	})
	defer s.Close()

	got, err := collect(t, s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "abc" {
		t.Fatalf("got %q, want abc", got)
	}
}

func TestChunkStreamErrorAfterChunks(t *testing.T) {
	boom := NewError(KindServerError, "", nil)
	s := newChunkStream(context.Background(), func(ctx context.Context, emit func(string) bool) error {
		emit("partial")
		return boom
	})
	defer s.Close()

	got, err := collect(t, s)
	if got != "partial" {
		t.Fatalf("got %q, want partial", got)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestChunkStreamCloseStopsProducer(t *testing.T) {
	done := make(chan struct{})
	s := newChunkStream(context.Background(), func(ctx context.Context, emit func(string) bool) error {
		defer close(done)
		for emit("x") {
		}
		return nil
	})
	if _, err := s.Recv(); err != nil {
		t.Fatalf("first Recv: %v", err)
	}
	s.Close()
	<-done
}

func TestSliceStream(t *testing.T) {
	var seen []int
	s := &sliceStream{chunks: []string{"x", "y"}, onRecv: func(i int) { seen = append(seen, i) }}
	got, err := collect(t, s)
	if err != nil || got != "xy" {
		t.Fatalf("got %q, %v", got, err)
	}
	if len(seen) != 2 || seen[1] != 1 {
		t.Fatalf("hook indexes = %v", seen)
	}
}
