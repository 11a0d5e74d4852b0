// Package evaluator defines the capability the verification engine uses to
// run snippets, together with the concrete runtimes behind it.
//
// The engine depends only on Adapter. An adapter receives the snippet and the
// current Environment, and returns the printed output plus an updated copy of
// the Environment. Faults are returned as *models.EvalFault and abort only the
// snippet that raised them.
package evaluator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harrison/playcheck/internal/models"
)

// Snippet is the unit of evaluation handed to an adapter.
type Snippet struct {
	ID       string
	Source   string
	Bindings []string // names declared by the snippet
}

// SnippetFromBlock builds a Snippet from an extracted code block.
func SnippetFromBlock(b models.Block) Snippet {
	return Snippet{ID: b.ID, Source: b.Source, Bindings: b.DeclaredBindings}
}

// Outcome is the result of a successful evaluation.
type Outcome struct {
	Output      []string
	Environment *models.Environment
}

// Adapter evaluates snippets against an accumulated environment.
// Implementations must not mutate env; they return an updated copy.
// One adapter instance serves one document at a time.
type Adapter interface {
	Evaluate(ctx context.Context, snippet Snippet, env *models.Environment) (Outcome, error)
}

// Factory creates a fresh adapter for each document.
type Factory func() (Adapter, error)

// Kind names a concrete adapter.
type Kind string

const (
	KindYaegi   Kind = "yaegi"
	KindCommand Kind = "command"
)

// Options configures adapter construction.
type Options struct {
	Kind Kind

	// yaegi
	Imports    []string // packages imported before the first snippet
	EchoValues bool     // report the value of a trailing expression when nothing is printed

	// command
	Command          []string      // interpreter argv, reads the program on stdin
	SentinelTemplate string        // statement printing its %s argument, e.g. print("%s")
	WaitDelay        time.Duration // grace period for output pipes after the process is killed
}

// NewFactory returns a Factory for the configured adapter kind.
func NewFactory(opts Options) (Factory, error) {
	switch opts.Kind {
	case KindYaegi, "":
		return func() (Adapter, error) {
			return NewYaegiAdapter(opts.Imports, opts.EchoValues), nil
		}, nil
	case KindCommand:
		if len(opts.Command) == 0 {
			return nil, fmt.Errorf("command adapter requires a command")
		}
		if !strings.Contains(opts.SentinelTemplate, "%s") {
			return nil, fmt.Errorf("sentinel template %q must contain %%s", opts.SentinelTemplate)
		}
		return func() (Adapter, error) {
			return NewCommandAdapter(opts.Command, opts.SentinelTemplate, opts.WaitDelay), nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown adapter %q (supported: yaegi, command)", opts.Kind)
	}
}

// splitOutput turns captured output into lines. Empty output has no lines;
// a single trailing newline does not produce an extra empty line.
func splitOutput(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}
