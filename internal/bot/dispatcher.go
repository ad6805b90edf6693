// Package bot contains the dispatcher that turns inbound chat events into
// conversation graph runs and delivers the replies.
package bot

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dailysync/standup-bot/internal/session"
	"github.com/dailysync/standup-bot/internal/standup"
	"github.com/dailysync/standup-bot/pkg/convograph"
	"github.com/dailysync/standup-bot/pkg/convograph/checkpoint"
	"github.com/dailysync/standup-bot/pkg/convograph/observability"
)

// InboundEvent is a text event received from the transport adapter.
type InboundEvent struct {
	UserID    string
	Channel   string
	Text      string
	BotOrigin bool
}

// Transport is the outbound slice of the chat platform the dispatcher
// needs.
type Transport interface {
	// PostMessage delivers text to a reply destination. Failures are
	// logged by the caller, not retried.
	PostMessage(ctx context.Context, channel, text string) error

	// GetUserInfo resolves user metadata for a new session.
	GetUserInfo(ctx context.Context, userID string) (standup.UserInfo, error)
}

// User-visible fixed responses.
const (
	// apologyMessage is the single message a user sees when their run
	// fails for any unrecovered reason. The session is cleared so the
	// trigger keyword starts fresh.
	apologyMessage = "Sorry, something went wrong with your standup. Please say \"standup\" to start over."

	// inProgressMessage answers a start trigger while a conversation is
	// already active.
	inProgressMessage = "A standup conversation is already in progress - answer the open question or finish it first."
)

// Dispatcher routes inbound events: it starts or resumes sessions, runs
// the graph, and delivers outbound messages. All per-user work goes
// through the session manager's serial queue, so two events for one user
// can never interleave graph runs.
type Dispatcher struct {
	graph     *convograph.CompiledGraph[standup.State]
	sessions  *session.Manager
	transport Transport

	trigger   string
	maxSteps  int
	logger    *slog.Logger
	snapshots checkpoint.Store
	metrics   observability.MetricsRecorder
	tracing   bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTrigger sets the start keyword (matched case-insensitively as a
// substring). Default: "standup".
func WithTrigger(keyword string) Option {
	return func(d *Dispatcher) {
		if keyword != "" {
			d.trigger = strings.ToLower(keyword)
		}
	}
}

// WithMaxSteps caps node executions per run. Default: 25.
func WithMaxSteps(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxSteps = n
		}
	}
}

// WithLogger sets the dispatcher logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithSnapshots persists run state after each node.
func WithSnapshots(store checkpoint.Store) Option {
	return func(d *Dispatcher) {
		d.snapshots = store
	}
}

// WithMetrics records run metrics.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

// WithTracing enables OTel spans on graph runs.
func WithTracing() Option {
	return func(d *Dispatcher) {
		d.tracing = true
	}
}

// NewDispatcher wires the dispatcher.
func NewDispatcher(graph *convograph.CompiledGraph[standup.State], sessions *session.Manager, transport Transport, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		graph:     graph,
		sessions:  sessions,
		transport: transport,
		trigger:   "standup",
		maxSteps:  25,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HandleEvent accepts one inbound event. Bot-origin events are dropped;
// everything else is queued on the user's serial queue and processed in
// arrival order. HandleEvent itself returns immediately.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev InboundEvent) {
	if ev.BotOrigin || ev.UserID == "" {
		return
	}

	d.sessions.Enqueue(ev.UserID, func() {
		d.process(ctx, ev)
	})
}

// process decides whether the event starts, continues, or is ignored.
// Runs on the user's serial queue.
func (d *Dispatcher) process(ctx context.Context, ev InboundEvent) {
	_, active := d.sessions.Get(ev.UserID)
	triggered := strings.Contains(strings.ToLower(ev.Text), d.trigger)

	switch {
	case active && triggered:
		// Never silently discard an in-flight draft.
		d.post(ctx, ev.Channel, inProgressMessage)
	case active:
		d.resume(ctx, ev)
	case triggered:
		d.start(ctx, ev)
	default:
		d.logger.Debug("ignoring message without active session or trigger",
			"user_id", ev.UserID)
	}
}

// start creates a session and runs the graph from the entry node.
func (d *Dispatcher) start(ctx context.Context, ev InboundEvent) {
	user, err := d.transport.GetUserInfo(ctx, ev.UserID)
	if err != nil {
		d.logger.Error("user info lookup failed", "user_id", ev.UserID, "error", err)
		d.post(ctx, ev.Channel, apologyMessage)
		return
	}

	sess, created := d.sessions.GetOrCreate(ev.UserID, func() session.Session {
		return session.Session{
			Channel: ev.Channel,
			State:   standup.NewState(user),
		}
	})
	if !created {
		// Raced only if someone bypassed the serial queue.
		d.post(ctx, ev.Channel, inProgressMessage)
		return
	}

	d.logger.Info("standup started", "user_id", ev.UserID, "run_id", sess.RunID)
	d.runGraph(ctx, sess)
}

// resume appends the user's reply and continues from the paused node.
func (d *Dispatcher) resume(ctx context.Context, ev InboundEvent) {
	sess, ok := d.sessions.Get(ev.UserID)
	if !ok {
		return
	}

	sess.State = sess.State.AppendHuman(ev.Text)
	d.sessions.Update(sess)
	d.runGraph(ctx, sess)
}

// runGraph executes (or resumes) one graph run for the session, delivers
// the trailing assistant message, and updates or tears down the session.
// Any run error yields exactly one apology and clears the session.
func (d *Dispatcher) runGraph(ctx context.Context, sess session.Session) {
	runCtx := convograph.NewContext(ctx,
		convograph.WithLogger(d.logger.With("user_id", sess.UserID)),
		convograph.WithRunID(sess.RunID),
	)

	opts := []convograph.RunOption{
		convograph.WithMaxSteps(d.maxSteps),
		convograph.WithInterruptBefore(standup.StepAskFollowup),
		convograph.WithObservabilityLogger(d.logger),
	}
	if d.snapshots != nil {
		opts = append(opts, convograph.WithSnapshots(d.snapshots, false))
	}
	if d.metrics != nil {
		opts = append(opts, convograph.WithMetrics(d.metrics))
	}
	if d.tracing {
		opts = append(opts, convograph.WithTracing())
	}

	var (
		res convograph.Result[standup.State]
		err error
	)
	if sess.PausedAt == "" {
		res, err = d.graph.Run(runCtx, sess.State, opts...)
	} else {
		res, err = d.graph.RunFrom(runCtx, sess.State, sess.PausedAt, opts...)
	}

	if err != nil {
		d.logger.Error("run failed, clearing session",
			"user_id", sess.UserID, "run_id", sess.RunID, "error", err)
		d.teardown(sess)
		d.post(ctx, sess.Channel, apologyMessage)
		return
	}

	if reply, ok := res.State.LastAssistant(); ok {
		d.post(ctx, sess.Channel, reply)
	}

	if res.Interrupted {
		sess.State = res.State
		sess.PausedAt = res.NextNode
		d.sessions.Update(sess)
		return
	}

	d.logger.Info("standup completed", "user_id", sess.UserID, "run_id", sess.RunID)
	d.teardown(sess)
}

// teardown removes the session and its snapshot, if any.
func (d *Dispatcher) teardown(sess session.Session) {
	d.sessions.Delete(sess.UserID)
	if d.snapshots != nil {
		if err := d.snapshots.Delete(sess.RunID); err != nil {
			d.logger.Warn("snapshot cleanup failed", "run_id", sess.RunID, "error", err)
		}
	}
}

// post delivers text to a channel. Delivery failures are logged, never
// retried here.
func (d *Dispatcher) post(ctx context.Context, channel, text string) {
	if err := d.transport.PostMessage(ctx, channel, text); err != nil {
		d.logger.Error("outbound delivery failed", "channel", channel, "error", err)
	}
}
