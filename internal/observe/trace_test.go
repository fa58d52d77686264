package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// installTracer swaps in an in-memory tracer provider for the duration of
// the test and returns the exporter for span inspection.
func installTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

func TestCorrelationID(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID without a span = %q, want empty", got)
	}

	installTracer(t)
	ctx, span := StartSpan(context.Background(), "score utterance")
	defer span.End()

	cid := CorrelationID(ctx)
	if len(cid) != 32 {
		t.Fatalf("trace ID %q has length %d, want 32 hex chars", cid, len(cid))
	}
	if strings.Trim(cid, "0123456789abcdef") != "" {
		t.Errorf("trace ID %q contains non-hex characters", cid)
	}
}

func TestStartSpan_RecordsName(t *testing.T) {
	exp := installTracer(t)

	_, span := StartSpan(context.Background(), "generate answer")
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if spans[0].Name != "generate answer" {
		t.Errorf("span name = %q", spans[0].Name)
	}
	if spans[0].InstrumentationScope.Name != tracerName {
		t.Errorf("scope = %q, want %q", spans[0].InstrumentationScope.Name, tracerName)
	}
}

func TestLogger_AnnotatesWithSpanContext(t *testing.T) {
	installTracer(t)

	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })

	ctx, span := StartSpan(context.Background(), "classify utterance")
	defer span.End()

	Logger(ctx).Info("classified")
	out := buf.String()
	if !strings.Contains(out, "trace_id=") || !strings.Contains(out, "span_id=") {
		t.Errorf("annotated log output missing trace context: %s", out)
	}

	buf.Reset()
	Logger(context.Background()).Info("no span")
	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("spanless log output carries trace_id: %s", buf.String())
	}
}
