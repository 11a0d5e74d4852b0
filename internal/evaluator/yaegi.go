package evaluator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/harrison/playcheck/internal/models"
)

// switchWriter lets one interpreter write to different sinks: replayed
// snippets go to io.Discard, the snippet under test to a buffer.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return len(p), nil
	}
	return s.w.Write(p)
}

func (s *switchWriter) set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

// YaegiAdapter evaluates Go snippets with the yaegi interpreter, in REPL mode:
// snippets are top-level statements and expressions, no package clause.
//
// Interpreter state cannot be rolled back, so the adapter keeps a live
// interpreter only while it matches the environment journal. Any mismatch
// (a fault, a timeout, a foreign environment) rebuilds the interpreter by
// replaying the journal with output discarded.
type YaegiAdapter struct {
	imports    []string
	echoValues bool

	live    *interp.Interpreter
	liveOut *switchWriter
	liveLog []string // journal the live interpreter has executed
}

// NewYaegiAdapter creates an adapter that imports the given packages before
// the first snippet.
func NewYaegiAdapter(imports []string, echoValues bool) *YaegiAdapter {
	return &YaegiAdapter{imports: imports, echoValues: echoValues}
}

// Evaluate runs snippet after the environment journal and captures stdout.
func (a *YaegiAdapter) Evaluate(ctx context.Context, snippet Snippet, env *models.Environment) (Outcome, error) {
	journal := env.Journal()

	if !a.matches(journal) {
		if err := a.rebuild(ctx, journal); err != nil {
			a.reset()
			return Outcome{}, err
		}
	}

	var buf bytes.Buffer
	a.liveOut.set(&buf)
	value, err := a.live.EvalWithContext(ctx, snippet.Source)
	a.liveOut.set(nil)
	if err != nil {
		// partial state from the failed snippet must not leak into the next one
		a.reset()
		return Outcome{}, classifyYaegiError(err)
	}

	output := splitOutput(buf.String())
	if output == nil && a.echoValues {
		if s, ok := renderValue(value); ok {
			output = []string{s}
		}
	}

	updated := env.Clone()
	updated.Record(snippet.Source)
	for _, name := range snippet.Bindings {
		v, err := a.live.EvalWithContext(ctx, name)
		if err != nil {
			continue
		}
		if s, ok := renderValue(v); ok {
			updated.Set(name, s)
		}
	}
	a.liveLog = updated.Journal()

	return Outcome{Output: output, Environment: updated}, nil
}

func (a *YaegiAdapter) matches(journal []string) bool {
	if a.live == nil || len(journal) != len(a.liveLog) {
		return false
	}
	for i := range journal {
		if journal[i] != a.liveLog[i] {
			return false
		}
	}
	return true
}

func (a *YaegiAdapter) reset() {
	a.live = nil
	a.liveOut = nil
	a.liveLog = nil
}

// rebuild creates a fresh interpreter and replays journal into it.
func (a *YaegiAdapter) rebuild(ctx context.Context, journal []string) error {
	out := &switchWriter{}
	i := interp.New(interp.Options{Stdout: out, Stderr: io.Discard})
	if err := i.Use(stdlib.Symbols); err != nil {
		return models.NewEvalFault(models.FaultRuntime, "failed to load stdlib symbols", err)
	}
	for _, pkg := range a.imports {
		if _, err := i.EvalWithContext(ctx, fmt.Sprintf("import %q", pkg)); err != nil {
			return models.NewEvalFault(models.FaultCompile, fmt.Sprintf("failed to import %s: %v", pkg, err), err)
		}
	}
	for n, src := range journal {
		if _, err := i.EvalWithContext(ctx, src); err != nil {
			fault := classifyYaegiError(err)
			if fault.Kind == models.FaultTimeout || fault.Kind == models.FaultCanceled {
				return fault
			}
			return models.NewEvalFault(models.FaultRuntime,
				fmt.Sprintf("replaying earlier snippet %d failed: %v", n+1, err), err)
		}
	}
	a.live = i
	a.liveOut = out
	a.liveLog = journal
	return nil
}

// classifyYaegiError maps interpreter errors onto fault kinds. Runtime
// failures surface from yaegi as panics; the remaining errors are raised
// while compiling the snippet.
func classifyYaegiError(err error) *models.EvalFault {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return models.AsEvalFault(err)
	}
	var p interp.Panic
	if errors.As(err, &p) {
		return models.NewEvalFault(models.FaultPanic, fmt.Sprintf("panic: %v", p.Value), err)
	}
	return models.NewEvalFault(models.FaultCompile, err.Error(), err)
}

// renderValue formats an interpreter value for display. Invalid values,
// nil and functions have no rendering.
func renderValue(v reflect.Value) (string, bool) {
	if !v.IsValid() || !v.CanInterface() {
		return "", false
	}
	switch v.Kind() {
	case reflect.Func:
		return "", false
	case reflect.Interface, reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan:
		if v.IsNil() {
			return "", false
		}
	}
	return fmt.Sprint(v.Interface()), true
}
