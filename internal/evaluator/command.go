package evaluator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/playcheck/internal/models"
)

// CommandAdapter runs snippets through an external interpreter that reads a
// program on stdin (for example "swift -" or "python3 -").
//
// Each evaluation sends the journal, a statement printing a unique sentinel,
// and the snippet. Only the lines printed after the sentinel belong to the
// snippet. Binding values are not observable from outside the process, so
// declared names are recorded with an empty value.
type CommandAdapter struct {
	argv      []string
	sentinel  string
	statement string
	waitDelay time.Duration
}

// NewCommandAdapter creates an adapter for argv. template is a statement in
// the target language that prints its %s argument on a line of its own.
func NewCommandAdapter(argv []string, template string, waitDelay time.Duration) *CommandAdapter {
	sentinel := "--playcheck-" + uuid.NewString() + "--"
	return &CommandAdapter{
		argv:      argv,
		sentinel:  sentinel,
		statement: fmt.Sprintf(template, sentinel),
		waitDelay: waitDelay,
	}
}

// Evaluate runs the program and returns the snippet's share of stdout.
func (c *CommandAdapter) Evaluate(ctx context.Context, snippet Snippet, env *models.Environment) (Outcome, error) {
	var program strings.Builder
	for _, src := range env.Journal() {
		program.WriteString(src)
		program.WriteString("\n")
	}
	program.WriteString(c.statement)
	program.WriteString("\n")
	program.WriteString(snippet.Source)
	program.WriteString("\n")

	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	cmd.Stdin = strings.NewReader(program.String())
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if c.waitDelay > 0 {
		cmd.WaitDelay = c.waitDelay
	}

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Outcome{}, models.AsEvalFault(ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Outcome{}, models.NewEvalFault(models.FaultRuntime,
				fmt.Sprintf("exit status %d: %s", exitErr.ExitCode(), lastLines(stderr.String(), 5)), err)
		}
		return Outcome{}, models.NewEvalFault(models.FaultRuntime,
			fmt.Sprintf("failed to run %s: %v", c.argv[0], err), err)
	}

	lines := splitOutput(stdout.String())
	idx := -1
	for i, l := range lines {
		if l == c.sentinel {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Outcome{}, models.NewEvalFault(models.FaultRuntime,
			"interpreter output does not contain the sentinel line; earlier snippets failed to run", nil)
	}

	var output []string
	if rest := lines[idx+1:]; len(rest) > 0 {
		output = append(output, rest...)
	}

	updated := env.Clone()
	updated.Record(snippet.Source)
	for _, name := range snippet.Bindings {
		updated.Set(name, "")
	}
	return Outcome{Output: output, Environment: updated}, nil
}

// lastLines returns at most n trailing non-empty lines of s, joined by "; ".
func lastLines(s string, n int) string {
	var kept []string
	for _, l := range strings.Split(strings.TrimSpace(s), "\n") {
		if strings.TrimSpace(l) != "" {
			kept = append(kept, strings.TrimSpace(l))
		}
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return strings.Join(kept, "; ")
}
