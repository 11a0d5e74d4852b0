package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harrison/playcheck/internal/evaluator"
	"github.com/harrison/playcheck/internal/models"
)

// Logger receives verification progress events. Implementations must be safe
// for concurrent use because documents may be verified in parallel.
type Logger interface {
	LogDocumentStart(doc *models.Document)
	LogResult(result models.VerificationResult)
	LogDocumentComplete(run models.DocumentRun, duration time.Duration)
	LogWarn(message string)
}

// State is the lifecycle state of an Engine.
type State int

const (
	StateReady State = iota
	StateRunning
	StateDone
)

// String returns the string representation of the State
func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// DefaultSnippetTimeout bounds a single snippet evaluation.
const DefaultSnippetTimeout = 2 * time.Second

// defaultAbandonGrace is how long the engine waits for an adapter to honor
// an expired context before giving up on it.
const defaultAbandonGrace = 250 * time.Millisecond

// EngineOptions configures an Engine.
type EngineOptions struct {
	// Timeout bounds each snippet evaluation. Zero means DefaultSnippetTimeout.
	Timeout time.Duration
	// StrictWhitespace disables trimming of trailing whitespace before comparison.
	StrictWhitespace bool
	// AbandonGrace is the wait for an adapter that ignores its deadline.
	AbandonGrace time.Duration
}

// Engine verifies one document: it walks the blocks in order, threads the
// environment through the adapter and compares outputs with annotations.
// An Engine is single-use: Ready -> Running -> Done.
type Engine struct {
	factory evaluator.Factory
	opts    EngineOptions
	logger  Logger
	state   State
}

// NewEngine creates an Engine. The logger parameter is optional and can be nil.
func NewEngine(factory evaluator.Factory, opts EngineOptions, logger Logger) *Engine {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultSnippetTimeout
	}
	if opts.AbandonGrace <= 0 {
		opts.AbandonGrace = defaultAbandonGrace
	}
	return &Engine{factory: factory, opts: opts, logger: logger}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return e.state
}

// Verify runs every block of doc in source order. Faults and mismatches are
// recorded in the returned run; the error is reserved for setup failures
// (no adapter, engine reused). When ctx is canceled no further blocks are
// evaluated and the results gathered so far are returned with Canceled set.
func (e *Engine) Verify(ctx context.Context, doc *models.Document) (models.DocumentRun, error) {
	if e.state != StateReady {
		return models.DocumentRun{}, fmt.Errorf("engine is %s, want %s", e.state, StateReady)
	}
	if doc == nil {
		return models.DocumentRun{}, fmt.Errorf("document cannot be nil")
	}
	e.state = StateRunning
	defer func() { e.state = StateDone }()

	adapter, err := e.factory()
	if err != nil {
		return models.DocumentRun{}, fmt.Errorf("failed to create adapter for %s: %w", doc.Path, err)
	}

	startTime := time.Now()
	if e.logger != nil {
		e.logger.LogDocumentStart(doc)
		for _, a := range doc.Anomalies {
			e.logger.LogWarn(fmt.Sprintf("%s: %s", doc.Path, a))
		}
	}

	run := models.DocumentRun{Path: doc.Path, Anomalies: doc.Anomalies}
	env := models.NewEnvironment()

	for _, block := range doc.Blocks {
		if !block.IsCode() && !block.Disabled {
			continue
		}
		if ctx.Err() != nil {
			run.Canceled = true
			break
		}

		if block.Disabled {
			e.emit(&run, e.result(doc, block, models.StatusSkipped))
			continue
		}

		outcome, fault, abandoned := e.evaluate(ctx, adapter, evaluator.SnippetFromBlock(block), env)
		if abandoned {
			// the old adapter may still be running; never reuse it
			if adapter, err = e.factory(); err != nil {
				return run, fmt.Errorf("failed to recreate adapter for %s: %w", doc.Path, err)
			}
		}
		if fault != nil && fault.Kind == models.FaultCanceled && ctx.Err() != nil {
			// interrupted by the run, not by the snippet
			run.Canceled = true
			break
		}

		if fault != nil {
			res := e.result(doc, block, models.StatusFault)
			res.Fault = fault
			e.emit(&run, res)
			continue
		}

		res := e.result(doc, block, models.StatusPassed)
		res.ActualOutput = outcome.Output
		if block.HasExpectation() {
			if ok, diff := compareOutput(block.Expected(), outcome.Output, !e.opts.StrictWhitespace); !ok {
				res.Status = models.StatusFailed
				res.Diff = diff
			}
		}
		e.emit(&run, res)

		// committed whether or not the annotation matched
		env = outcome.Environment
	}

	if e.logger != nil {
		e.logger.LogDocumentComplete(run, time.Since(startTime))
	}
	return run, nil
}

func (e *Engine) result(doc *models.Document, block models.Block, status models.Status) models.VerificationResult {
	return models.VerificationResult{
		Document:       doc.Path,
		BlockID:        block.ID,
		Ordinal:        block.Ordinal,
		Lines:          block.Lines,
		Status:         status,
		ExpectedOutput: block.Expected(),
	}
}

func (e *Engine) emit(run *models.DocumentRun, res models.VerificationResult) {
	run.Results = append(run.Results, res)
	if e.logger != nil {
		e.logger.LogResult(res)
	}
}

type evalReply struct {
	outcome evaluator.Outcome
	err     error
}

// evaluate runs one snippet under the per-snippet timeout. abandoned is true
// when the adapter did not return within the grace period after its deadline.
func (e *Engine) evaluate(ctx context.Context, adapter evaluator.Adapter, snippet evaluator.Snippet, env *models.Environment) (evaluator.Outcome, *models.EvalFault, bool) {
	bctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	replies := make(chan evalReply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				replies <- evalReply{err: models.NewEvalFault(models.FaultPanic, fmt.Sprintf("adapter panic: %v", r), nil)}
			}
		}()
		out, err := adapter.Evaluate(bctx, snippet, env)
		replies <- evalReply{outcome: out, err: err}
	}()

	var reply evalReply
	select {
	case reply = <-replies:
	case <-bctx.Done():
		grace := time.NewTimer(e.opts.AbandonGrace)
		defer grace.Stop()
		select {
		case reply = <-replies:
		case <-grace.C:
			return evaluator.Outcome{}, e.deadlineFault(ctx, bctx), true
		}
	}

	if reply.err != nil {
		fault := models.AsEvalFault(reply.err)
		if bctx.Err() != nil && ctx.Err() == nil && fault.Kind != models.FaultTimeout {
			fault = e.deadlineFault(ctx, bctx)
		}
		return evaluator.Outcome{}, fault, false
	}
	if reply.outcome.Environment == nil {
		reply.outcome.Environment = env.Clone()
	}
	return reply.outcome, nil, false
}

func (e *Engine) deadlineFault(ctx, bctx context.Context) *models.EvalFault {
	if ctx.Err() != nil {
		return models.NewEvalFault(models.FaultCanceled, "evaluation canceled", ctx.Err())
	}
	if errors.Is(bctx.Err(), context.DeadlineExceeded) {
		return models.NewEvalFault(models.FaultTimeout,
			fmt.Sprintf("snippet did not finish within %s", e.opts.Timeout), bctx.Err())
	}
	return models.AsEvalFault(bctx.Err())
}
