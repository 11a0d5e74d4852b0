package evaluator

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/playcheck/internal/models"
)

func shellAdapter(t *testing.T) *CommandAdapter {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	return NewCommandAdapter([]string{"sh"}, `echo "%s"`, 100*time.Millisecond)
}

func TestCommandAdapterOutput(t *testing.T) {
	a := shellAdapter(t)

	env := models.NewEnvironment()
	env.Record("echo from an earlier snippet")

	out, err := a.Evaluate(context.Background(), Snippet{Source: "x=1\necho hi\necho $x", Bindings: []string{"x"}}, env)
	require.NoError(t, err)
	assert.Equal(t, []string{"hi", "1"}, out.Output)

	v, ok := out.Environment.Get("x")
	assert.True(t, ok)
	assert.Equal(t, "", v)
	assert.Len(t, out.Environment.Journal(), 2)
	assert.Len(t, env.Journal(), 1)
}

func TestCommandAdapterJournalState(t *testing.T) {
	a := shellAdapter(t)

	first, err := a.Evaluate(context.Background(), Snippet{Source: "greeting=hello"}, models.NewEnvironment())
	require.NoError(t, err)
	assert.Empty(t, first.Output)

	second, err := a.Evaluate(context.Background(), Snippet{Source: "echo $greeting"}, first.Environment)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, second.Output)
}

func TestCommandAdapterFaults(t *testing.T) {
	a := shellAdapter(t)

	t.Run("non-zero exit", func(t *testing.T) {
		_, err := a.Evaluate(context.Background(), Snippet{Source: "echo oops >&2\nexit 3"}, models.NewEnvironment())
		require.Error(t, err)
		fault := models.AsEvalFault(err)
		assert.Equal(t, models.FaultRuntime, fault.Kind)
		assert.Contains(t, fault.Message, "exit status 3")
		assert.Contains(t, fault.Message, "oops")
	})

	t.Run("journal stops before sentinel", func(t *testing.T) {
		env := models.NewEnvironment()
		env.Record("exit 0")
		_, err := a.Evaluate(context.Background(), Snippet{Source: "echo never"}, env)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sentinel")
	})

	t.Run("timeout", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_, err := a.Evaluate(ctx, Snippet{Source: "sleep 5"}, models.NewEnvironment())
		require.Error(t, err)
		assert.Equal(t, models.FaultTimeout, models.AsEvalFault(err).Kind)
	})

	t.Run("missing interpreter", func(t *testing.T) {
		missing := NewCommandAdapter([]string{"playcheck-no-such-interpreter"}, `print("%s")`, 0)
		_, err := missing.Evaluate(context.Background(), Snippet{Source: "1"}, models.NewEnvironment())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to run")
	})
}

func TestNewFactory(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{name: "default is yaegi", opts: Options{}},
		{name: "yaegi", opts: Options{Kind: KindYaegi, Imports: []string{"fmt"}}},
		{name: "command", opts: Options{Kind: KindCommand, Command: []string{"sh"}, SentinelTemplate: `echo "%s"`}},
		{name: "command without argv", opts: Options{Kind: KindCommand, SentinelTemplate: `echo "%s"`}, wantErr: "requires a command"},
		{name: "template without verb", opts: Options{Kind: KindCommand, Command: []string{"sh"}, SentinelTemplate: "echo"}, wantErr: "must contain %s"},
		{name: "unknown kind", opts: Options{Kind: "ruby"}, wantErr: "unknown adapter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory, err := NewFactory(tt.opts)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			adapter, err := factory()
			require.NoError(t, err)
			assert.NotNil(t, adapter)
		})
	}
}

func TestSplitOutput(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a\n", []string{"a"}},
		{"a\nb", []string{"a", "b"}},
		{"a\r\nb\r\n", []string{"a", "b"}},
		{"\n", []string{""}},
		{"a\n\n", []string{"a", ""}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitOutput(tt.in), "input %q", tt.in)
	}
}

func TestLastLines(t *testing.T) {
	assert.Equal(t, "c; d", lastLines("a\nb\n\nc\nd\n", 2))
	assert.Equal(t, "", lastLines("", 3))
}
