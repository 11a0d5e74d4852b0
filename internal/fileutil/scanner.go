// Package fileutil expands command-line paths into the list of literate
// documents to verify.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// ScanOptions configures the directory scanning behavior
type ScanOptions struct {
	// Pattern is a regex pattern to match filenames (without extension)
	Pattern string
	// Extensions is a list of file extensions to include (e.g., ".go", ".md")
	Extensions []string
	// Recursive enables recursive directory scanning
	Recursive bool
	// ExcludeDirs is a list of directory names to exclude (e.g., ".git", "node_modules")
	ExcludeDirs []string
	// MaxDepth limits recursion depth (0 = unlimited, 1 = current dir only)
	MaxDepth int
}

// DefaultScanOptions scans recursively for the given extensions, skipping
// vendored and hidden directories.
func DefaultScanOptions(extensions []string) ScanOptions {
	return ScanOptions{
		Extensions:  extensions,
		Recursive:   true,
		ExcludeDirs: []string{"vendor", "node_modules", "testdata"},
	}
}

// ScanResult contains the results of a directory scan
type ScanResult struct {
	// Files contains the matched paths, rooted at the scanned directory
	Files []string
	// Errors contains any errors encountered during scanning
	Errors []error
}

// ScanDirectory scans a directory for files matching the provided options.
// Paths keep the form of dir (relative stays relative) so reports do not
// depend on the working directory.
func ScanDirectory(dir string, opts ScanOptions) (*ScanResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	result := &ScanResult{
		Files:  make([]string, 0),
		Errors: make([]error, 0),
	}

	var patternRegex *regexp.Regexp
	if opts.Pattern != "" {
		patternRegex, err = regexp.Compile(opts.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
	}

	extMap := extensionSet(opts.Extensions)
	excludeMap := make(map[string]bool)
	for _, name := range opts.ExcludeDirs {
		excludeMap[name] = true
	}

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("error accessing %s: %w", path, err))
			return nil
		}
		if path == dir {
			return nil
		}

		if d.IsDir() {
			if excludeMap[d.Name()] || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if !opts.Recursive {
				return filepath.SkipDir
			}
			if opts.MaxDepth > 0 {
				relPath, _ := filepath.Rel(dir, path)
				depth := strings.Count(relPath, string(filepath.Separator)) + 1
				if depth >= opts.MaxDepth {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if !matchesExtension(d.Name(), extMap) {
			return nil
		}
		if patternRegex != nil {
			nameWithoutExt := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
			if !patternRegex.MatchString(nameWithoutExt) {
				return nil
			}
		}

		result.Files = append(result.Files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	sort.Strings(result.Files)
	return result, nil
}

// ExpandPaths turns command-line arguments into a document list. Each
// argument may be a file (taken as is, whatever its extension), a directory
// (scanned with opts) or a glob pattern. Arguments keep their order, the
// files found for one argument are sorted, and duplicates are dropped.
// A missing path or a glob matching nothing is an error.
func ExpandPaths(args []string, opts ScanOptions) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(path string) {
		key := filepath.Clean(path)
		if !seen[key] {
			seen[key] = true
			files = append(files, key)
		}
	}

	for _, arg := range args {
		if hasGlobMeta(arg) {
			matches, err := filepath.Glob(arg)
			if err != nil {
				return nil, fmt.Errorf("invalid glob %q: %w", arg, err)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("no documents match %q", arg)
			}
			sort.Strings(matches)
			for _, m := range matches {
				if info, err := os.Stat(m); err == nil && info.IsDir() {
					continue
				}
				add(m)
			}
			continue
		}

		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", arg, err)
		}
		if !info.IsDir() {
			add(arg)
			continue
		}

		res, err := ScanDirectory(arg, opts)
		if err != nil {
			return nil, err
		}
		if len(res.Errors) > 0 {
			return nil, res.Errors[0]
		}
		for _, f := range res.Files {
			add(f)
		}
	}

	return files, nil
}

func hasGlobMeta(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

// extensionSet normalizes extensions to lowercase with a leading dot.
func extensionSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, ext := range exts {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[strings.ToLower(ext)] = true
	}
	return set
}

func matchesExtension(name string, set map[string]bool) bool {
	if len(set) == 0 {
		return true
	}
	return set[strings.ToLower(filepath.Ext(name))]
}
