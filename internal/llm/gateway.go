package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/dailysync/standup-bot/pkg/convograph/observability"
)

// Gateway serializes and retries calls to a shared generation Client.
//
// All calls share one execution slot: at most one outstanding request to
// the underlying resource at any time, across all users and all nodes.
// The resource is rate- and cost-constrained; uncoordinated concurrent
// access would throttle every session at once.
type Gateway struct {
	client  Client
	slot    chan struct{}
	timeout time.Duration
	retry   RetryConfig
	logger  *slog.Logger
	metrics observability.MetricsRecorder
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithTimeout sets the per-attempt wall-clock budget. Default: 60s.
// Exceeding it counts as a transient failure for retry purposes.
func WithTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithRetry sets the retry configuration. Default: DefaultRetry.
func WithRetry(cfg RetryConfig) GatewayOption {
	return func(g *Gateway) {
		if cfg.MaxAttempts > 0 {
			g.retry = cfg
		}
	}
}

// WithGatewayLogger sets the logger for retry and call logging.
func WithGatewayLogger(logger *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithGatewayMetrics sets the metrics recorder for generation calls.
func WithGatewayMetrics(m observability.MetricsRecorder) GatewayOption {
	return func(g *Gateway) {
		if m != nil {
			g.metrics = m
		}
	}
}

// NewGateway wraps a Client with the single-slot serialization, timeout
// and retry policy.
func NewGateway(client Client, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		client:  client,
		slot:    make(chan struct{}, 1),
		timeout: 60 * time.Second,
		retry:   DefaultRetry,
		metrics: observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate performs one completion call. It blocks until the global slot
// is free (or ctx is cancelled), then runs the call with the configured
// timeout and retry policy, holding the slot across retries so backoff
// time is not handed to a competing caller mid-sequence.
//
// Returned errors are always *Error (or ctx errors wrapped in one).
func (g *Gateway) Generate(ctx context.Context, req Request) (string, error) {
	start := time.Now()

	select {
	case g.slot <- struct{}{}:
	case <-ctx.Done():
		return "", classified(ctx.Err(), 0)
	}
	defer func() { <-g.slot }()

	resp, attempts, err := withRetry(ctx, g.retry, g.logger, func(ctx context.Context) (*Response, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return g.client.Complete(callCtx, req)
	})

	duration := time.Since(start)
	g.metrics.RecordGeneration(ctx, duration, attempts, err)

	if err != nil {
		return "", err
	}

	if g.logger != nil {
		g.logger.Debug("generation call completed",
			slog.String("model", resp.Model),
			slog.Int("attempts", attempts),
			slog.Int64("duration_ms", duration.Milliseconds()),
			slog.Int("total_tokens", resp.Usage.TotalTokens),
		)
	}

	return resp.Content, nil
}
