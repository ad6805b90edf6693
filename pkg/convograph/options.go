package convograph

import (
	"log/slog"

	"github.com/dailysync/standup-bot/pkg/convograph/checkpoint"
	"github.com/dailysync/standup-bot/pkg/convograph/observability"
)

// runConfig holds per-run execution configuration.
type runConfig struct {
	maxSteps        int
	interruptBefore map[string]bool

	snapshotStore checkpoint.Store
	snapshotFatal bool
	sequence      int

	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool
}

// defaultRunConfig returns the default execution configuration.
func defaultRunConfig() runConfig {
	return runConfig{
		maxSteps: 100,
		metrics:  observability.NoopMetrics{},
		spans:    observability.NoopSpanManager{},
	}
}

// RunOption configures a single Run or RunFrom call.
type RunOption func(*runConfig)

// WithMaxSteps caps the number of node executions in one run. Default: 100.
//
// The budget guarantees termination even if node logic or edge wiring
// creates a cycle; exceeding it returns a BudgetExceededError.
func WithMaxSteps(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.maxSteps = n
		}
	}
}

// WithInterruptBefore registers nodes the run pauses in front of. When the
// resolved successor is one of these nodes, Run returns with
// Result.Interrupted set instead of executing it. This models a
// conversation waiting for the next user message; resume with RunFrom.
func WithInterruptBefore(nodes ...string) RunOption {
	return func(c *runConfig) {
		if c.interruptBefore == nil {
			c.interruptBefore = make(map[string]bool, len(nodes))
		}
		for _, n := range nodes {
			c.interruptBefore[n] = true
		}
	}
}

// WithSnapshots persists a state snapshot after every node execution.
// Snapshot failures are logged and ignored unless fatal is true.
func WithSnapshots(store checkpoint.Store, fatal bool) RunOption {
	return func(c *runConfig) {
		c.snapshotStore = store
		c.snapshotFatal = fatal
	}
}

// WithObservabilityLogger enables run/node lifecycle logging to the given
// logger. Without it the executor is silent; nodes still have the context
// logger.
func WithObservabilityLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics recorder for the run.
func WithMetrics(m observability.MetricsRecorder) RunOption {
	return func(c *runConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing enables OpenTelemetry spans for the run and each node.
func WithTracing() RunOption {
	return func(c *runConfig) {
		c.spans = observability.NewSpanManager()
		c.tracingEnabled = true
	}
}
