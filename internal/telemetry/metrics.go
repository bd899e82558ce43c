// Package telemetry provides application-wide observability primitives for
// Halo: OpenTelemetry metrics, tracing, structured logging helpers, and the
// rolling latency monitor fed by the session loops.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped from the diagnostics server's /metrics endpoint. Tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Halo metrics.
const meterName = "github.com/voxhalo/halo"

// Metrics holds all OpenTelemetry metric instruments for the client.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// UploadDuration tracks heartbeat upload round-trip latency. Use with
	// attribute.String("media", "audio"|"image").
	UploadDuration metric.Float64Histogram

	// PacketGap tracks the per-packet arrival gap on the response stream,
	// averaged over the packets of the current turn.
	PacketGap metric.Float64Histogram

	// ProcessingDuration tracks server-side processing latency: the time
	// between [UNDER_PROCESSING] and the first content chunk of a turn.
	ProcessingDuration metric.Float64Histogram

	// PlaybackDuration tracks how long each voice clip played.
	PlaybackDuration metric.Float64Histogram

	// StageDelay tracks server-reported pipeline stage delays from the
	// stream's extra map. Use with attribute.String("stage", ...) — the
	// stage set is server-defined and open.
	StageDelay metric.Float64Histogram

	// --- Counters ---

	// StreamLines counts processed stream lines. Use with
	// attribute.String("kind", "content"|"command"|"user_echo"|"ignored"|"malformed"|"banned").
	StreamLines metric.Int64Counter

	// StreamReconnects counts stream connection attempts after the first.
	StreamReconnects metric.Int64Counter

	// Interrupts counts hot-word interrupts handled.
	Interrupts metric.Int64Counter

	// ClipsDropped counts voice clips discarded instead of played. Use with
	// attribute.String("reason", "interrupt"|"banned").
	ClipsDropped metric.Int64Counter

	// UploadErrors counts failed heartbeat uploads.
	UploadErrors metric.Int64Counter

	// --- Gauges ---

	// QueueDepth tracks the current depth of the pending voice-clip queue.
	QueueDepth metric.Int64UpDownCounter
}

// WithLineKind builds the "kind" attribute option for [Metrics.StreamLines].
func WithLineKind(kind string) metric.AddOption {
	return metric.WithAttributes(attribute.String("kind", kind))
}

// WithDropReason builds the "reason" attribute option for
// [Metrics.ClipsDropped].
func WithDropReason(reason string) metric.AddOption {
	return metric.WithAttributes(attribute.String("reason", reason))
}

// WithMedia builds the "media" attribute option for [Metrics.UploadDuration].
func WithMedia(media string) metric.RecordOption {
	return metric.WithAttributes(attribute.String("media", media))
}

// WithStage builds the "stage" attribute option for [Metrics.StageDelay].
func WithStage(stage string) metric.RecordOption {
	return metric.WithAttributes(attribute.String("stage", stage))
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for conversational round-trip latencies.
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
	if met.UploadDuration, err = m.Float64Histogram("halo.heartbeat.upload.duration",
		metric.WithDescription("Round-trip latency of heartbeat frame uploads."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PacketGap, err = m.Float64Histogram("halo.stream.packet_gap",
		metric.WithDescription("Average arrival gap between stream content packets of a turn."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProcessingDuration, err = m.Float64Histogram("halo.server.processing.duration",
		metric.WithDescription("Time between [UNDER_PROCESSING] and the first content chunk."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PlaybackDuration, err = m.Float64Histogram("halo.playback.duration",
		metric.WithDescription("Duration of voice clip playback."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StageDelay, err = m.Float64Histogram("halo.server.stage.delay",
		metric.WithDescription("Server-reported per-stage pipeline delay by stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.StreamLines, err = m.Int64Counter("halo.stream.lines",
		metric.WithDescription("Total response stream lines processed by kind."),
	); err != nil {
		return nil, err
	}
	if met.StreamReconnects, err = m.Int64Counter("halo.stream.reconnects",
		metric.WithDescription("Total response stream reconnection attempts."),
	); err != nil {
		return nil, err
	}
	if met.Interrupts, err = m.Int64Counter("halo.interrupts",
		metric.WithDescription("Total hot-word interrupts handled."),
	); err != nil {
		return nil, err
	}
	if met.ClipsDropped, err = m.Int64Counter("halo.playback.clips_dropped",
		metric.WithDescription("Voice clips discarded instead of played, by reason."),
	); err != nil {
		return nil, err
	}
	if met.UploadErrors, err = m.Int64Counter("halo.heartbeat.upload.errors",
		metric.WithDescription("Failed heartbeat uploads."),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.QueueDepth, err = m.Int64UpDownCounter("halo.playback.queue_depth",
		metric.WithDescription("Current depth of the pending voice-clip queue."),
	); err != nil {
		return nil, err
	}

	return met, nil
}
