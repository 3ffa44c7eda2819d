package llm

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func words(ws ...string) Producer {
	return func(ctx context.Context, emit EmitFunc) error {
		for _, w := range ws {
			if err := emit(w); err != nil {
				return err
			}
		}
		return nil
	}
}

func TestStream_DeliversInOrder(t *testing.T) {
	s := NewStream(context.Background(), 0, words("Block", "", "chain ", "is ", "a ledger"))
	var got []string
	text, err := Collect(s, func(f string) { got = append(got, f) })
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if text != "Blockchain is a ledger" {
		t.Fatalf("text = %q", text)
	}
	if len(got) != 4 {
		t.Fatalf("empty fragments should be skipped, got %q", got)
	}
	if _, err := s.Next(); err != io.EOF {
		t.Fatalf("Next after end = %v; want io.EOF", err)
	}
}

func TestStream_ProducerErrorKeepsPartialText(t *testing.T) {
	boom := errors.New("provider down")
	s := NewStream(context.Background(), 0, func(ctx context.Context, emit EmitFunc) error {
		_ = emit("partial ")
		return boom
	})
	text, err := Collect(s, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v; want %v", err, boom)
	}
	if text != "partial " {
		t.Fatalf("partial text = %q", text)
	}
}

func TestStream_CloseStopsProducer(t *testing.T) {
	exited := make(chan error, 1)
	s := NewStream(context.Background(), 0, func(ctx context.Context, emit EmitFunc) error {
		for i := 0; ; i++ {
			if err := emit("x"); err != nil {
				exited <- err
				return err
			}
		}
	})
	if f, err := s.Next(); err != nil || f != "x" {
		t.Fatalf("first fragment = %q, %v", f, err)
	}
	_ = s.Close()
	_ = s.Close()

	select {
	case err := <-exited:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("producer exit err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("producer did not stop after Close")
	}
}

func TestStream_Timeout(t *testing.T) {
	s := NewStream(context.Background(), 20*time.Millisecond, func(ctx context.Context, emit EmitFunc) error {
		<-ctx.Done()
		return ctx.Err()
	})
	_, err := Collect(s, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v; want deadline exceeded", err)
	}
}

func TestStream_ParentCancelIsNotEOF(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewStream(ctx, 0, func(ctx context.Context, emit EmitFunc) error {
		<-ctx.Done()
		return ctx.Err()
	})
	cancel()
	if _, err := Collect(s, nil); err == nil {
		t.Fatal("cancelled stream must not look complete")
	}
}
