package apm

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/fd1az/craftcalc/internal/logger"
)

func TestTraceID(t *testing.T) {
	if id := TraceID(context.Background()); id != "" {
		t.Errorf("no span: %q", id)
	}

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	if id := TraceID(ctx); len(id) != 32 || id != span.SpanContext().TraceID().String() {
		t.Errorf("TraceID = %q", id)
	}
}

func TestNewTraceProvider_Empty(t *testing.T) {
	for _, p := range []Provider{EmptyProvider, "jaeger"} {
		tp, err := NewTraceProvider(context.Background(), Config{Provider: p}, logger.NewNop())
		if err != nil {
			t.Fatalf("%s: %v", p, err)
		}
		if _, ok := tp.(emptyProvider); !ok {
			t.Errorf("%s: got %T", p, tp)
		}
		if err := tp.Stop(); err != nil {
			t.Error(err)
		}
	}
}
