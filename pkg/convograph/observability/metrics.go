package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records conversation engine metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordNodeExecution records one node execution with duration and
	// error status.
	RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, err error)

	// RecordRun records a completed (or failed) graph run.
	RecordRun(ctx context.Context, success bool, duration time.Duration)

	// RecordSnapshot records a state snapshot save.
	RecordSnapshot(ctx context.Context, nodeID string, sizeBytes int64)

	// RecordGeneration records a generation gateway call, including how
	// many attempts it took and how long the caller waited in total.
	RecordGeneration(ctx context.Context, duration time.Duration, attempts int, err error)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	nodeExecutions metric.Int64Counter
	nodeLatency    metric.Float64Histogram
	nodeErrors     metric.Int64Counter
	runs           metric.Int64Counter
	runLatency     metric.Float64Histogram
	snapshotSize   metric.Int64Histogram
	generations    metric.Int64Counter
	genLatency     metric.Float64Histogram
	genAttempts    metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// NewMetricsRecorder returns a MetricsRecorder backed by the global OTel
// meter provider. Configure the provider before recording; otherwise the
// default (no-op) provider swallows everything.
func NewMetricsRecorder() (MetricsRecorder, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	if defaultMetricsErr != nil {
		return nil, defaultMetricsErr
	}
	return defaultMetrics, nil
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("convograph")

	nodeExecutions, err := meter.Int64Counter("convograph.node.executions",
		metric.WithDescription("Number of node executions"),
	)
	if err != nil {
		return nil, err
	}

	nodeLatency, err := meter.Float64Histogram("convograph.node.latency_ms",
		metric.WithDescription("Node execution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	nodeErrors, err := meter.Int64Counter("convograph.node.errors",
		metric.WithDescription("Number of node execution errors"),
	)
	if err != nil {
		return nil, err
	}

	runs, err := meter.Int64Counter("convograph.run.count",
		metric.WithDescription("Number of graph runs"),
	)
	if err != nil {
		return nil, err
	}

	runLatency, err := meter.Float64Histogram("convograph.run.latency_ms",
		metric.WithDescription("Graph run latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	snapshotSize, err := meter.Int64Histogram("convograph.snapshot.size_bytes",
		metric.WithDescription("Snapshot size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	generations, err := meter.Int64Counter("convograph.generation.calls",
		metric.WithDescription("Number of generation gateway calls"),
	)
	if err != nil {
		return nil, err
	}

	genLatency, err := meter.Float64Histogram("convograph.generation.latency_ms",
		metric.WithDescription("Generation call latency in milliseconds, including slot wait and retries"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	genAttempts, err := meter.Int64Histogram("convograph.generation.attempts",
		metric.WithDescription("Attempts per generation call"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		nodeExecutions: nodeExecutions,
		nodeLatency:    nodeLatency,
		nodeErrors:     nodeErrors,
		runs:           runs,
		runLatency:     runLatency,
		snapshotSize:   snapshotSize,
		generations:    generations,
		genLatency:     genLatency,
		genAttempts:    genAttempts,
	}, nil
}

// RecordNodeExecution implements MetricsRecorder.
func (m *otelMetrics) RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("node_id", nodeID),
		attribute.Bool("success", err == nil),
	)
	m.nodeExecutions.Add(ctx, 1, attrs)
	m.nodeLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		m.nodeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("node_id", nodeID)))
	}
}

// RecordRun implements MetricsRecorder.
func (m *otelMetrics) RecordRun(ctx context.Context, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	m.runs.Add(ctx, 1, attrs)
	m.runLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordSnapshot implements MetricsRecorder.
func (m *otelMetrics) RecordSnapshot(ctx context.Context, nodeID string, sizeBytes int64) {
	m.snapshotSize.Record(ctx, sizeBytes, metric.WithAttributes(
		attribute.String("node_id", nodeID),
	))
}

// RecordGeneration implements MetricsRecorder.
func (m *otelMetrics) RecordGeneration(ctx context.Context, duration time.Duration, attempts int, err error) {
	attrs := metric.WithAttributes(attribute.Bool("success", err == nil))
	m.generations.Add(ctx, 1, attrs)
	m.genLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	m.genAttempts.Record(ctx, int64(attempts), attrs)
}
