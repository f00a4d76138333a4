package llm

import (
	"context"
	"io"
)

type chunk struct {
	text string
	err  error
}

type channelStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	chunks <-chan chunk
}

// newChunkStream runs producer in its own goroutine. The producer emits text
// through emit; a non-nil return value is delivered to the reader after the
// chunks already emitted.
func newChunkStream(ctx context.Context, run func(ctx context.Context, emit func(string) bool) error) Stream {
	streamCtx, cancel := context.WithCancel(ctx)
	ch := make(chan chunk, 16)
	go func() {
		defer close(ch)
		emit := func(text string) bool {
			if text == "" {
				return true
			}
			select {
			case ch <- chunk{text: text}:
				return true
			case <-streamCtx.Done():
				return false
			}
		}
		if err := run(streamCtx, emit); err != nil {
			select {
			case ch <- chunk{err: err}:
			case <-streamCtx.Done():
			}
		}
	}()
	return &channelStream{ctx: streamCtx, cancel: cancel, chunks: ch}
}

func (s *channelStream) Recv() (string, error) {
	// Non-blocking drain: consume any buffered chunk before checking ctx.Done().
	// A terminal error queued behind the last chunk must still be observed.
	select {
	case c, ok := <-s.chunks:
		if !ok {
			return "", io.EOF
		}
		return c.text, c.err
	default:
	}

	select {
	case <-s.ctx.Done():
		return "", s.ctx.Err()
	case c, ok := <-s.chunks:
		if !ok {
			return "", io.EOF
		}
		return c.text, c.err
	}
}

func (s *channelStream) Close() error {
	s.cancel()
	return nil
}

// sliceStream replays a fixed sequence of chunks, then err (or io.EOF).
type sliceStream struct {
	chunks []string
	err    error
	pos    int
	closed bool
	onRecv func(index int)
}

// NewSliceStream returns a Stream over chunks that ends with err, or io.EOF
// when err is nil.
func NewSliceStream(chunks []string, err error) Stream {
	return &sliceStream{chunks: chunks, err: err}
}

func (s *sliceStream) Recv() (string, error) {
	if s.closed {
		return "", io.EOF
	}
	if s.pos < len(s.chunks) {
		text := s.chunks[s.pos]
		if s.onRecv != nil {
			s.onRecv(s.pos)
		}
		s.pos++
		return text, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}
