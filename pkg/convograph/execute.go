package convograph

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/dailysync/standup-bot/pkg/convograph/checkpoint"
	"github.com/dailysync/standup-bot/pkg/convograph/observability"
)

// Result is the outcome of a Run or RunFrom call.
type Result[S any] struct {
	// State is the state after the last executed node. On error it is the
	// state at the point of failure.
	State S

	// NextNode is the node the run stopped in front of. END when the run
	// completed; an interrupt node when the run paused.
	NextNode string

	// Interrupted is true when the run paused in front of an interrupt
	// node instead of reaching END.
	Interrupted bool

	// Steps is the number of nodes executed.
	Steps int
}

// Run executes the graph from the entry point with the given initial state.
//
// The run proceeds node by node: execute the current node, resolve its
// successor (router first, otherwise the unconditional edge), repeat until
// END. If the resolved successor is registered via WithInterruptBefore the
// run returns early with Result.Interrupted set, leaving that node
// unexecuted until RunFrom resumes it.
func (cg *CompiledGraph[S]) Run(ctx Context, state S, opts ...RunOption) (Result[S], error) {
	return cg.run(ctx, state, cg.entryPoint, opts...)
}

// RunFrom resumes execution at a specific node, typically the interrupt
// node a previous Run paused in front of.
func (cg *CompiledGraph[S]) RunFrom(ctx Context, state S, startNode string, opts ...RunOption) (Result[S], error) {
	if startNode != END && !cg.HasNode(startNode) {
		return Result[S]{State: state, NextNode: startNode},
			fmt.Errorf("%w: %s", ErrNodeNotFound, startNode)
	}
	return cg.run(ctx, state, startNode, opts...)
}

func (cg *CompiledGraph[S]) run(ctx Context, state S, startNode string, opts ...RunOption) (res Result[S], runErr error) {
	res = Result[S]{State: state, NextNode: startNode}

	if ctx == nil {
		return res, ErrNilContext
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	runID := ctx.RunID()
	startTime := time.Now()

	observability.LogRunStart(cfg.logger, runID, startNode)

	var tracingCtx context.Context = ctx
	var runSpan trace.Span
	if cfg.tracingEnabled {
		tracingCtx, runSpan = cfg.spans.StartRunSpan(ctx, runID)
		defer func() {
			cfg.spans.EndSpanWithError(runSpan, runErr)
		}()
	}

	res, runErr = cg.loop(tracingCtx, ctx, state, startNode, &cfg)

	duration := time.Since(startTime)
	cfg.metrics.RecordRun(ctx, runErr == nil, duration)

	switch {
	case runErr != nil:
		observability.LogRunError(cfg.logger, runID, runErr, duration, lastNodeOf(runErr))
	case res.Interrupted:
		observability.LogRunPaused(cfg.logger, runID, res.NextNode, res.Steps)
	default:
		observability.LogRunComplete(cfg.logger, runID, duration, res.Steps)
	}

	return res, runErr
}

// loop drives node execution until END, an interrupt, the budget, or an
// error. tracingCtx carries span context; ec is the engine Context.
func (cg *CompiledGraph[S]) loop(tracingCtx context.Context, ec Context, state S, startNode string, cfg *runConfig) (Result[S], error) {
	current := startNode
	steps := 0

	for current != END {
		if steps >= cfg.maxSteps {
			return Result[S]{State: state, NextNode: current, Steps: steps}, &BudgetExceededError{
				Budget:     cfg.maxSteps,
				LastNodeID: current,
				State:      state,
			}
		}

		select {
		case <-ec.Done():
			return Result[S]{State: state, NextNode: current, Steps: steps}, &CancellationError{
				NodeID: current,
				Cause:  ec.Err(),
			}
		default:
		}

		observability.LogNodeStart(cfg.logger, current)

		nodeTracingCtx := tracingCtx
		var nodeSpan trace.Span
		if cfg.tracingEnabled {
			nodeTracingCtx, nodeSpan = cfg.spans.StartNodeSpan(tracingCtx, current)
		}

		nodeStart := time.Now()

		var nodeErr error
		state, nodeErr = cg.executeNode(ec, current, state)

		nodeDuration := time.Since(nodeStart)
		cfg.metrics.RecordNodeExecution(nodeTracingCtx, current, nodeDuration, nodeErr)

		if cfg.tracingEnabled {
			cfg.spans.EndSpanWithError(nodeSpan, nodeErr)
		}

		if nodeErr != nil {
			observability.LogNodeError(cfg.logger, current, nodeErr)
			return Result[S]{State: state, NextNode: current, Steps: steps}, nodeErr
		}
		observability.LogNodeComplete(cfg.logger, current, nodeDuration)
		steps++

		next, err := cg.nextNode(ec, state, current)
		if err != nil {
			return Result[S]{State: state, NextNode: current, Steps: steps}, err
		}

		if cfg.snapshotStore != nil {
			if err := cg.snapshot(ec, cfg, current, state, next); err != nil {
				return Result[S]{State: state, NextNode: next, Steps: steps}, err
			}
		}

		if next != END && cfg.interruptBefore[next] {
			return Result[S]{State: state, NextNode: next, Interrupted: true, Steps: steps}, nil
		}

		current = next
	}

	return Result[S]{State: state, NextNode: END, Steps: steps}, nil
}

// snapshot persists the state after a node execution. Failures are logged
// and swallowed unless the run was configured with fatal snapshots.
func (cg *CompiledGraph[S]) snapshot(ctx Context, cfg *runConfig, nodeID string, state S, nextNode string) error {
	stateBytes, err := json.Marshal(state)
	if err != nil {
		if cfg.snapshotFatal {
			return &SnapshotError{NodeID: nodeID, Op: "serialize", Err: err}
		}
		observability.LogSnapshotError(cfg.logger, nodeID, "serialize", err)
		return nil
	}

	cfg.sequence++
	snap := checkpoint.New(ctx.RunID(), nodeID, cfg.sequence, stateBytes, nextNode)

	if err := cfg.snapshotStore.Save(ctx.RunID(), snap); err != nil {
		if cfg.snapshotFatal {
			return &SnapshotError{NodeID: nodeID, Op: "save", Err: err}
		}
		observability.LogSnapshotError(cfg.logger, nodeID, "save", err)
		return nil
	}

	observability.LogSnapshot(cfg.logger, nodeID, len(stateBytes))
	cfg.metrics.RecordSnapshot(ctx, nodeID, int64(len(stateBytes)))
	return nil
}

// executeNode runs a single node with panic recovery.
func (cg *CompiledGraph[S]) executeNode(ctx Context, nodeID string, state S) (result S, err error) {
	fn, exists := cg.getNode(nodeID)
	if !exists {
		// Unreachable after a successful Compile.
		return state, &NodeError{
			NodeID: nodeID,
			Op:     "lookup",
			Err:    fmt.Errorf("node not found: %s", nodeID),
		}
	}

	nodeCtx := ctx
	if ec, ok := ctx.(*executionContext); ok {
		nodeCtx = ec.withNodeID(nodeID)
	}

	defer func() {
		if r := recover(); r != nil {
			result = state
			err = &PanicError{
				NodeID: nodeID,
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()

	result, err = fn(nodeCtx, state)
	if err != nil {
		return result, &NodeError{
			NodeID: nodeID,
			Op:     "execute",
			Err:    err,
		}
	}

	return result, nil
}

// nextNode resolves the successor of the node just executed.
func (cg *CompiledGraph[S]) nextNode(ctx Context, state S, current string) (string, error) {
	if router, exists := cg.getRouter(current); exists {
		routerCtx := ctx
		if ec, ok := ctx.(*executionContext); ok {
			routerCtx = ec.withNodeID(current)
		}

		next := router(routerCtx, state)

		if next == "" {
			return "", &RouterError{
				FromNode: current,
				Returned: next,
				Err:      ErrInvalidRouterResult,
			}
		}

		if next != END && !cg.HasNode(next) {
			return "", &RouterError{
				FromNode: current,
				Returned: next,
				Err:      ErrRouterTargetNotFound,
			}
		}

		return next, nil
	}

	to := cg.Successor(current)
	if to == "" {
		// Unreachable after a successful Compile.
		return "", &NodeError{
			NodeID: current,
			Op:     "routing",
			Err:    ErrNoSuccessor,
		}
	}

	return to, nil
}

// lastNodeOf extracts the failing node from a run error, if it carries one.
func lastNodeOf(err error) string {
	switch e := err.(type) {
	case *NodeError:
		return e.NodeID
	case *PanicError:
		return e.NodeID
	case *RouterError:
		return e.FromNode
	case *BudgetExceededError:
		return e.LastNodeID
	case *CancellationError:
		return e.NodeID
	}
	return ""
}
