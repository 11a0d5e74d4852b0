package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/playcheck/internal/evaluator"
	"github.com/harrison/playcheck/internal/models"
	"github.com/harrison/playcheck/internal/parser"
)

func writeDocs(t *testing.T, contents ...string) []string {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for i, c := range contents {
		path := filepath.Join(dir, fmt.Sprintf("doc%02d.txt", i))
		require.NoError(t, os.WriteFile(path, []byte(c), 0644))
		paths = append(paths, path)
	}
	return paths
}

func letFactory() evaluator.Factory {
	return func() (evaluator.Adapter, error) {
		return &letAdapter{}, nil
	}
}

func TestRunnerLoad(t *testing.T) {
	r := NewRunner(parser.DefaultConventions(), letFactory(), EngineOptions{}, 1, nil)

	paths := writeDocs(t, "print(1) // 1\n", "//: prose\n")
	docs, err := r.Load(paths)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, paths[0], docs[0].Path)
	assert.Len(t, docs[0].CodeBlocks(), 1)

	_, err = r.Load(append(paths, filepath.Join(t.TempDir(), "missing.txt")))
	assert.Error(t, err)
}

func TestRunnerKeepsInputOrder(t *testing.T) {
	var contents []string
	for i := 0; i < 8; i++ {
		contents = append(contents, fmt.Sprintf("let n = %d\nprint(n + 1) // %d\n", i, i+1))
	}
	// one failing document in the middle
	contents[4] = "print(1) // 2\n"
	paths := writeDocs(t, contents...)

	for _, parallel := range []int{0, 1, 3, 8} {
		t.Run(fmt.Sprintf("parallel=%d", parallel), func(t *testing.T) {
			log := &recordingLogger{}
			r := NewRunner(parser.DefaultConventions(), letFactory(), EngineOptions{}, parallel, log)
			docs, err := r.Load(paths)
			require.NoError(t, err)

			runs, err := r.Run(context.Background(), docs)
			require.NoError(t, err)
			require.Len(t, runs, len(paths))

			for i, run := range runs {
				assert.Equal(t, paths[i], run.Path)
				assert.False(t, run.Canceled)
				if i == 4 {
					assert.Equal(t, []models.Status{models.StatusFailed}, statuses(run))
				} else {
					assert.Equal(t, []models.Status{models.StatusPassed, models.StatusPassed}, statuses(run))
				}
			}
			assert.Len(t, log.completed, len(paths))
		})
	}
}

func TestRunnerDocumentsAreIsolated(t *testing.T) {
	// b must not see the binding made by a
	paths := writeDocs(t, "let shared = 1\n", "print(shared) // 1\n")
	r := NewRunner(parser.DefaultConventions(), letFactory(), EngineOptions{}, 1, nil)
	docs, err := r.Load(paths)
	require.NoError(t, err)

	runs, err := r.VerifyDocuments(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, []models.Status{models.StatusFault}, statuses(runs[1]))
}

func TestRunnerCanceled(t *testing.T) {
	paths := writeDocs(t, "print(1) // 1\n", "print(2) // 2\n")
	r := NewRunner(parser.DefaultConventions(), letFactory(), EngineOptions{}, 1, nil)
	docs, err := r.Load(paths)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runs, err := r.VerifyDocuments(ctx, docs)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for i, run := range runs {
		assert.True(t, run.Canceled)
		assert.Equal(t, paths[i], run.Path)
		assert.Empty(t, run.Results)
	}
}

func TestRunnerSetupError(t *testing.T) {
	paths := writeDocs(t, "print(1) // 1\n")
	failing := func() (evaluator.Adapter, error) { return nil, fmt.Errorf("interpreter missing") }
	r := NewRunner(parser.DefaultConventions(), failing, EngineOptions{}, 2, nil)
	docs, err := r.Load(paths)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), docs)
	assert.ErrorContains(t, err, "interpreter missing")
}
