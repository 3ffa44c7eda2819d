package observability

import (
	"context"
	"io"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/smartlang-chat/internal/config"
	"github.com/tbourn/smartlang-chat/internal/llm"
)

const completionTracer = "llm"

// TraceCompletions wraps c so every title and reply completion gets a client
// span. A reply span stays open until the stream ends and records how many
// fragments were delivered and whether the reply was cut short.
func TraceCompletions(c llm.Client, cfg config.LLMConfig) llm.Client {
	return &tracedClient{
		next: c,
		attrs: []attribute.KeyValue{
			attribute.String("gen_ai.system", cfg.Provider),
			attribute.String("gen_ai.request.model", modelName(cfg)),
		},
	}
}

type tracedClient struct {
	next  llm.Client
	attrs []attribute.KeyValue
}

func (t *tracedClient) start(ctx context.Context, name, prompt string) (context.Context, trace.Span) {
	return otel.Tracer(completionTracer).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(t.attrs, attribute.Int("gen_ai.prompt.chars", len(prompt)))...),
	)
}

func endWith(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (t *tracedClient) GenerateTitle(ctx context.Context, seed string) (string, error) {
	ctx, span := t.start(ctx, "llm.GenerateTitle", seed)
	title, err := t.next.GenerateTitle(ctx, seed)
	endWith(span, err)
	return title, err
}

func (t *tracedClient) StreamReply(ctx context.Context, prompt string) (*llm.Stream, error) {
	ctx, span := t.start(ctx, "llm.StreamReply", prompt)
	inner, err := t.next.StreamReply(ctx, prompt)
	if err != nil {
		endWith(span, err)
		return nil, err
	}

	var once sync.Once
	finish := func(n int, err error) {
		once.Do(func() {
			span.SetAttributes(attribute.Int("gen_ai.response.fragments", n))
			endWith(span, err)
		})
	}

	// The provider's own timeout already bounds inner.
	return llm.NewStream(ctx, 0, func(pctx context.Context, emit llm.EmitFunc) error {
		stop := context.AfterFunc(pctx, func() { _ = inner.Close() })
		defer stop()
		defer inner.Close()

		n := 0
		for {
			frag, err := inner.Next()
			if err == io.EOF {
				finish(n, nil)
				return nil
			}
			if err != nil {
				finish(n, err)
				return err
			}
			n++
			if err := emit(frag); err != nil {
				finish(n, err)
				return err
			}
		}
	}), nil
}

// Close releases the wrapped client when it holds resources.
func (t *tracedClient) Close() error {
	if c, ok := t.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
