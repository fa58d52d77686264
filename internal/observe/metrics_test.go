package observe

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// collectMetric flushes the reader and returns the named metric, failing the
// test when it was never recorded.
func collectMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) *metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not recorded", name)
	}
	return met
}

// sumValue returns the int64 sum data point whose attributes contain
// key=value, and whether one exists.
func sumValue(t *testing.T, met *metricdata.Metrics, key, value string) (int64, bool) {
	t.Helper()
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not an int64 sum", met.Name)
	}
	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == key && kv.Value.AsString() == value {
				return dp.Value, true
			}
		}
	}
	return 0, false
}

// histogramCount totals the sample counts across all attribute sets.
func histogramCount(t *testing.T, met *metricdata.Metrics) uint64 {
	t.Helper()
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("metric %q is not a float64 histogram", met.Name)
	}
	var total uint64
	for _, dp := range hist.DataPoints {
		total += dp.Count
	}
	return total
}

func TestStageDurationHistograms(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	stages := map[string]metric.Float64Histogram{
		"sotto.stt.duration":      m.STTDuration,
		"sotto.classify.duration": m.ClassifyDuration,
		"sotto.generate.duration": m.GenerateDuration,
	}
	for _, h := range stages {
		h.Record(ctx, 0.123)
		h.Record(ctx, 0.456)
	}

	for name := range stages {
		t.Run(name, func(t *testing.T) {
			if got := histogramCount(t, collectMetric(t, reader, name)); got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
		})
	}
}

func TestUtteranceCounter_PerSpeaker(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.UtteranceFinalized(ctx, "Interviewer")
	m.UtteranceFinalized(ctx, "Interviewer")
	m.UtteranceFinalized(ctx, "Me")

	met := collectMetric(t, reader, "sotto.utterances")
	got, ok := sumValue(t, met, "speaker", "Interviewer")
	if !ok {
		t.Fatal("no data point for speaker=Interviewer")
	}
	if got != 2 {
		t.Errorf("Interviewer utterances = %d, want 2", got)
	}
}

func TestAnswerGenerated_RecordsCounterAndLatency(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.AnswerGenerated(ctx, "algorithmic", false, 800*time.Millisecond)
	m.AnswerGenerated(ctx, "algorithmic", true, 5*time.Millisecond)

	met := collectMetric(t, reader, "sotto.answers")
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("answers metric is not a sum")
	}
	// One attribute set per fallback flag, one count each.
	if len(sum.DataPoints) != 2 {
		t.Fatalf("data points = %d, want 2", len(sum.DataPoints))
	}

	if got := histogramCount(t, collectMetric(t, reader, "sotto.generate.duration")); got != 2 {
		t.Errorf("duration samples = %d, want 2", got)
	}
}

func TestFrameDropped_AggregatesPerStage(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.FrameDropped(ctx, "Me", "callback", 7)
	m.FrameDropped(ctx, "Me", "callback", 3)
	m.FrameDropped(ctx, "Me", "scheduler", 1)
	m.FrameDropped(ctx, "Me", "callback", 0) // no-op

	met := collectMetric(t, reader, "sotto.frame.drops")
	got, ok := sumValue(t, met, "stage", "callback")
	if !ok {
		t.Fatal("no data point for stage=callback")
	}
	if got != 10 {
		t.Errorf("callback drops = %d, want 10", got)
	}
}

func TestProviderErrorsCounter(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordProviderError(context.Background(), "deepgram", "stt")

	met := collectMetric(t, reader, "sotto.provider.errors")
	got, ok := sumValue(t, met, "provider", "deepgram")
	if !ok {
		t.Fatal("no data point for provider=deepgram")
	}
	if got != 1 {
		t.Errorf("provider errors = %d, want 1", got)
	}
}

func TestActiveSessionsGauge(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.SessionStarted(ctx)
	m.SessionStarted(ctx)
	m.SessionEnded(ctx)

	met := collectMetric(t, reader, "sotto.active_sessions")
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}
	if len(sum.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := sum.DataPoints[0].Value; got != 1 {
		t.Errorf("active sessions = %d, want 1", got)
	}
}

func TestHTTPRequestDuration_DirectRecord(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.HTTPRequestDuration.Record(context.Background(), 0.05,
		metric.WithAttributes(
			attribute.String("method", "GET"),
			attribute.String("path", "/healthz"),
		),
	)

	if got := histogramCount(t, collectMetric(t, reader, "sotto.http.request.duration")); got != 1 {
		t.Errorf("sample count = %d, want 1", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
