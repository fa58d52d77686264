// Package observe provides application-wide observability primitives for
// Sotto: OpenTelemetry metrics, tracing helpers, structured logging, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Sotto metrics.
const meterName = "github.com/sotto-ai/sotto"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// ClassifyDuration tracks utterance classification latency.
	ClassifyDuration metric.Float64Histogram

	// GenerateDuration tracks answer generation latency.
	GenerateDuration metric.Float64Histogram

	// --- Counters ---

	// Utterances counts finalized utterances. Use with attribute:
	//   attribute.String("speaker", ...)
	Utterances metric.Int64Counter

	// Answers counts generated answers. Use with attributes:
	//   attribute.String("intent", ...), attribute.Bool("fallback", ...)
	Answers metric.Int64Counter

	// FrameDrops counts audio frames dropped by the relay. Use with
	// attributes:
	//   attribute.String("speaker", ...), attribute.String("stage", ...)
	FrameDrops metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live capture sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.STTDuration, err = m.Float64Histogram("sotto.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ClassifyDuration, err = m.Float64Histogram("sotto.classify.duration",
		metric.WithDescription("Latency of utterance classification."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.GenerateDuration, err = m.Float64Histogram("sotto.generate.duration",
		metric.WithDescription("Latency of answer generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Utterances, err = m.Int64Counter("sotto.utterances",
		metric.WithDescription("Total finalized utterances by speaker."),
	); err != nil {
		return nil, err
	}
	if met.Answers, err = m.Int64Counter("sotto.answers",
		metric.WithDescription("Total generated answers by intent and fallback status."),
	); err != nil {
		return nil, err
	}
	if met.FrameDrops, err = m.Int64Counter("sotto.frame.drops",
		metric.WithDescription("Total audio frames dropped by the relay, by speaker and stage."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("sotto.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("sotto.active_sessions",
		metric.WithDescription("Number of live capture sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("sotto.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// UtteranceFinalized records one finalized utterance for speaker.
func (m *Metrics) UtteranceFinalized(ctx context.Context, speaker string) {
	m.Utterances.Add(ctx, 1,
		metric.WithAttributes(attribute.String("speaker", speaker)),
	)
}

// ClassificationDone records one classification with its outcome and latency.
func (m *Metrics) ClassificationDone(ctx context.Context, action string, d time.Duration) {
	m.ClassifyDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("action", action)),
	)
}

// AnswerGenerated records one answer with its intent, whether it came from a
// fallback script, and the generation latency.
func (m *Metrics) AnswerGenerated(ctx context.Context, intent string, fallback bool, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("intent", intent),
		attribute.Bool("fallback", fallback),
	)
	m.Answers.Add(ctx, 1, attrs)
	m.GenerateDuration.Record(ctx, d.Seconds(), attrs)
}

// FrameDropped records frames dropped at a relay stage ("callback" or
// "scheduler") for speaker.
func (m *Metrics) FrameDropped(ctx context.Context, speaker, stage string, n int64) {
	if n <= 0 {
		return
	}
	m.FrameDrops.Add(ctx, n,
		metric.WithAttributes(
			attribute.String("speaker", speaker),
			attribute.String("stage", stage),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// SessionStarted increments the live-session gauge.
func (m *Metrics) SessionStarted(ctx context.Context) {
	m.ActiveSessions.Add(ctx, 1)
}

// SessionEnded decrements the live-session gauge.
func (m *Metrics) SessionEnded(ctx context.Context) {
	m.ActiveSessions.Add(ctx, -1)
}
