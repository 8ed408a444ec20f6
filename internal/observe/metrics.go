// Package observe provides observability primitives for the recscore
// engine: OpenTelemetry metric instruments for the scoring pipeline and a
// provider initialiser that bridges them to Prometheus.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all recscore metrics.
const meterName = "github.com/asrlab/recscore"

// Metrics holds all OpenTelemetry metric instruments for the scoring
// engine. All fields are safe for concurrent use — the underlying OTel
// types handle their own synchronisation.
type Metrics struct {
	// DecodeDuration tracks external decode latency per batch. Use with
	// attribute.String("mode", "batch"|"streaming").
	DecodeDuration metric.Float64Histogram

	// UtterancesScored counts scored utterances. Use with
	// attribute.Int("rank", ...).
	UtterancesScored metric.Int64Counter

	// OOVTokens counts unknown-token markers seen in primary hypotheses.
	OOVTokens metric.Int64Counter

	// UNKResolutions counts unknown-token resolution attempts. Use with
	// attribute.String("status", "ok"|"fallback").
	UNKResolutions metric.Int64Counter

	// StageErrors counts per-stage failures. Use with
	// attribute.String("stage", "decode"|"align"|"merge"|"write").
	StageErrors metric.Int64Counter

	// ActiveEvaluations tracks the number of corpus passes currently
	// running.
	ActiveEvaluations metric.Int64UpDownCounter
}

// decodeLatencyBuckets defines histogram bucket boundaries (in seconds) for
// external decode calls, which may run anywhere from milliseconds (replay)
// to tens of seconds (on-device beam search).
var decodeLatencyBuckets = []float64{
	0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.DecodeDuration, err = m.Float64Histogram("recscore.decode.duration",
		metric.WithDescription("Latency of external decode calls per batch."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(decodeLatencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UtterancesScored, err = m.Int64Counter("recscore.utterances.scored",
		metric.WithDescription("Total utterances scored by rank."),
	); err != nil {
		return nil, err
	}
	if met.OOVTokens, err = m.Int64Counter("recscore.oov.tokens",
		metric.WithDescription("Total unknown-token markers in primary hypotheses."),
	); err != nil {
		return nil, err
	}
	if met.UNKResolutions, err = m.Int64Counter("recscore.unk.resolutions",
		metric.WithDescription("Total unknown-token resolution attempts by status."),
	); err != nil {
		return nil, err
	}
	if met.StageErrors, err = m.Int64Counter("recscore.stage.errors",
		metric.WithDescription("Total pipeline failures by stage."),
	); err != nil {
		return nil, err
	}
	if met.ActiveEvaluations, err = m.Int64UpDownCounter("recscore.active_evaluations",
		metric.WithDescription("Number of corpus passes currently running."),
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
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

// RecordStageError records a pipeline failure for the given stage.
func (m *Metrics) RecordStageError(ctx context.Context, stage string) {
	m.StageErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordUNKResolution records one unknown-token resolution attempt.
func (m *Metrics) RecordUNKResolution(ctx context.Context, status string) {
	m.UNKResolutions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
