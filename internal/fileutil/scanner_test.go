package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeTree creates files (with parent directories) under root.
func makeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("//: doc\n"), 0644))
	}
}

func TestScanDirectory(t *testing.T) {
	root := t.TempDir()
	makeTree(t, root,
		"intro.go",
		"notes.md",
		"image.png",
		"guide/closures.go",
		"guide/deep/generics.swift",
		".hidden/secret.go",
		"vendor/lib.go",
	)

	tests := []struct {
		name string
		opts ScanOptions
		want []string
	}{
		{
			name: "recursive with defaults",
			opts: DefaultScanOptions([]string{".go", ".swift", ".md"}),
			want: []string{"guide/closures.go", "guide/deep/generics.swift", "intro.go", "notes.md"},
		},
		{
			name: "top level only",
			opts: ScanOptions{Extensions: []string{"go"}},
			want: []string{"intro.go"},
		},
		{
			name: "max depth",
			opts: ScanOptions{Extensions: []string{".go", ".swift"}, Recursive: true, MaxDepth: 2},
			want: []string{"guide/closures.go", "intro.go"},
		},
		{
			name: "pattern",
			opts: ScanOptions{Extensions: []string{".go"}, Recursive: true, Pattern: "^clo"},
			want: []string{"guide/closures.go"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ScanDirectory(root, tt.opts)
			require.NoError(t, err)
			assert.Empty(t, res.Errors)

			want := make([]string, len(tt.want))
			for i, w := range tt.want {
				want[i] = filepath.Join(root, filepath.FromSlash(w))
			}
			assert.Equal(t, want, res.Files)
		})
	}
}

func TestScanDirectoryErrors(t *testing.T) {
	_, err := ScanDirectory(filepath.Join(t.TempDir(), "missing"), ScanOptions{})
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "a.go")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	_, err = ScanDirectory(file, ScanOptions{})
	assert.ErrorContains(t, err, "not a directory")

	_, err = ScanDirectory(t.TempDir(), ScanOptions{Pattern: "("})
	assert.ErrorContains(t, err, "invalid pattern")
}

func TestExpandPaths(t *testing.T) {
	root := t.TempDir()
	makeTree(t, root, "b.go", "a.go", "dir/c.go", "dir/d.txt", "dir/e.md", "odd.data")
	opts := DefaultScanOptions([]string{".go", ".md"})
	p := func(rel string) string { return filepath.Join(root, filepath.FromSlash(rel)) }

	t.Run("files keep argument order", func(t *testing.T) {
		got, err := ExpandPaths([]string{p("b.go"), p("a.go")}, opts)
		require.NoError(t, err)
		assert.Equal(t, []string{p("b.go"), p("a.go")}, got)
	})

	t.Run("explicit file ignores extension filter", func(t *testing.T) {
		got, err := ExpandPaths([]string{p("odd.data")}, opts)
		require.NoError(t, err)
		assert.Equal(t, []string{p("odd.data")}, got)
	})

	t.Run("directory is scanned", func(t *testing.T) {
		got, err := ExpandPaths([]string{p("dir")}, opts)
		require.NoError(t, err)
		assert.Equal(t, []string{p("dir/c.go"), p("dir/e.md")}, got)
	})

	t.Run("glob is sorted and deduplicated", func(t *testing.T) {
		got, err := ExpandPaths([]string{p("a.go"), p("*.go")}, opts)
		require.NoError(t, err)
		assert.Equal(t, []string{p("a.go"), p("b.go")}, got)
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := ExpandPaths([]string{p("nope.go")}, opts)
		assert.ErrorContains(t, err, "cannot read")
	})

	t.Run("glob without matches", func(t *testing.T) {
		_, err := ExpandPaths([]string{p("*.swift")}, opts)
		assert.ErrorContains(t, err, "no documents match")
	})
}
