package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/petal-labs/azresponses/core"
)

// DefaultMaxIterations bounds the number of tool rounds in Run.
const DefaultMaxIterations = 8

// ErrMaxIterations is returned by Run when the model keeps calling tools
// past the iteration limit.
var ErrMaxIterations = errors.New("tools: iteration limit reached")

// RunError is returned by Run when the loop stops on a response that still
// has function calls, either at the iteration limit or because a tool
// failed under WithFailOnToolError. Last is that response.
type RunError struct {
	Last *core.Envelope[*core.Response]
	Err  error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%v (last response %s)", e.Err, e.Last.Payload.ID)
}

func (e *RunError) Unwrap() error { return e.Err }

// Creator is the subset of core.Client used by the executor.
type Creator interface {
	Create(ctx context.Context, req *core.Request) (*core.Envelope[*core.Response], error)
}

// Executor runs the model's function calls against a registry and feeds
// the outputs back as the next turn.
type Executor struct {
	registry      *Registry
	parallelism   int
	maxIterations int
	logger        *slog.Logger
	failOnError   bool
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithParallelism caps how many calls of one turn run at once. Zero or
// less means no limit.
func WithParallelism(n int) ExecutorOption {
	return func(e *Executor) {
		e.parallelism = n
	}
}

// WithMaxIterations sets the maximum number of tool rounds in Run.
func WithMaxIterations(n int) ExecutorOption {
	return func(e *Executor) {
		e.maxIterations = n
	}
}

// WithExecutorLogger sets the structured logger. The default discards.
func WithExecutorLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithFailOnToolError makes a failing tool abort the turn instead of being
// reported to the model as an error output.
func WithFailOnToolError() ExecutorOption {
	return func(e *Executor) {
		e.failOnError = true
	}
}

// NewExecutor creates an executor over the registry.
func NewExecutor(r *Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry:      r,
		maxIterations: DefaultMaxIterations,
		logger:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.maxIterations < 1 {
		e.maxIterations = 1
	}
	return e
}

// ExecuteCalls runs every call concurrently and returns one tool output
// message per call, in call order. A tool error becomes an output of the
// form {"error":"..."} so the model can recover, unless WithFailOnToolError
// is set. Cancellation of ctx always aborts.
func (e *Executor) ExecuteCalls(ctx context.Context, calls []*core.FunctionCall) ([]core.Message, error) {
	outputs := make([]core.Message, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	if e.parallelism > 0 {
		g.SetLimit(e.parallelism)
	}
	for i, call := range calls {
		g.Go(func() error {
			out, err := e.execute(gctx, call)
			if err != nil {
				return err
			}
			outputs[i] = core.ToolOutputMessage(call.CallID, out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

func (e *Executor) execute(ctx context.Context, call *core.FunctionCall) (string, error) {
	result, err := e.registry.Execute(ctx, call)
	if err == nil {
		out, ferr := FormatResult(result)
		if ferr == nil {
			return out, nil
		}
		err = ferr
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if e.failOnError {
		return "", fmt.Errorf("tool %s (call %s): %w", call.Name, call.CallID, err)
	}
	e.logger.WarnContext(ctx, "tool returned error to model",
		"tool", call.Name,
		"call_id", call.CallID,
		"error", err,
	)
	return errorOutput(err), nil
}

func errorOutput(err error) string {
	out, ferr := FormatResult(map[string]string{"error": err.Error()})
	if ferr != nil {
		return `{"error":"tool failed"}`
	}
	return out
}

// Run sends req and keeps answering the model's function calls until it
// produces a response without any. Each round sends only the tool outputs,
// chained to the previous response through previous_response_id. When
// req.Tools is empty the registry's definitions are declared.
//
// Exactly one of the returned envelope and error is non-nil. When the loop
// stops early the error is a *RunError carrying the last response.
func (e *Executor) Run(ctx context.Context, c Creator, req *core.Request) (*core.Envelope[*core.Response], error) {
	next := req.Clone()
	if len(next.Tools) == 0 {
		next.Tools = e.registry.Definitions()
	}

	env, err := c.Create(ctx, next)
	if err != nil {
		return nil, err
	}

	for iteration := 1; env.Payload.HasFunctionCalls(); iteration++ {
		if iteration > e.maxIterations {
			return nil, &RunError{Last: env, Err: fmt.Errorf("%w (%d)", ErrMaxIterations, e.maxIterations)}
		}

		calls := env.Payload.FunctionCalls()
		e.logger.DebugContext(ctx, "executing tool calls",
			"response_id", env.Payload.ID,
			"calls", len(calls),
			"iteration", iteration,
		)

		ictx := ContextWithToolContext(ctx, &ToolContext{Iteration: iteration})
		outputs, err := e.ExecuteCalls(ictx, calls)
		if err != nil {
			return nil, &RunError{Last: env, Err: err}
		}

		turn := next.Clone()
		turn.Input = outputs
		turn.PreviousResponseID = env.Payload.ID
		turn.TraceID = ""

		env, err = c.Create(ctx, turn)
		if err != nil {
			return nil, err
		}
	}
	return env, nil
}
