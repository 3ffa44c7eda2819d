package llm

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"
)

// EmitFunc hands one fragment to the consumer. It fails once the stream has
// been closed or its context is done.
type EmitFunc func(fragment string) error

// Producer pushes fragments through emit until the reply is complete. It
// must return when ctx is done.
type Producer func(ctx context.Context, emit EmitFunc) error

type fragment struct {
	text string
	err  error
}

// Stream is an ordered, single-producer single-consumer sequence of reply
// fragments. The producer runs in its own goroutine; Close stops it and
// releases the provider connection whether or not every fragment was read.
type Stream struct {
	ch     chan fragment
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	err    error
}

// NewStream starts produce in a goroutine. A positive timeout bounds the
// whole reply.
func NewStream(parent context.Context, timeout time.Duration, produce Producer) *Stream {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	s := &Stream{ch: make(chan fragment), ctx: ctx, cancel: cancel}

	go func() {
		defer close(s.ch)
		emit := func(text string) error {
			if text == "" {
				return nil
			}
			select {
			case s.ch <- fragment{text: text}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err := produce(ctx, emit)
		if err == nil {
			err = io.EOF
		}
		select {
		case s.ch <- fragment{err: err}:
		case <-ctx.Done():
		}
	}()
	return s
}

// Next returns the next fragment. It returns io.EOF after the last fragment
// of a complete reply, and any other error when the reply was cut short.
func (s *Stream) Next() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	f, ok := <-s.ch
	switch {
	case !ok:
		s.err = s.ctx.Err()
		if s.err == nil {
			s.err = io.ErrUnexpectedEOF
		}
	case f.err != nil:
		s.err = f.err
	default:
		return f.text, nil
	}
	return "", s.err
}

// Close cancels the producer. It is safe to call more than once.
func (s *Stream) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// Collect reads s to the end, calling onFragment for every piece, and
// returns the concatenated text. The stream is closed on return. On failure
// the text received so far is returned together with the error.
func Collect(s *Stream, onFragment func(string)) (string, error) {
	defer s.Close()
	var b strings.Builder
	for {
		frag, err := s.Next()
		if err == io.EOF {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		b.WriteString(frag)
		if onFragment != nil {
			onFragment(frag)
		}
	}
}
