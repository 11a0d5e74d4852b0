package parser

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/harrison/playcheck/internal/models"
)

// Format represents the format of a literate document
type Format int

const (
	// FormatText is a plain-text document whose lines are classified directly
	FormatText Format = iota
	// FormatMarkdown is a markdown (.md, .markdown) document whose fenced
	// code blocks hold the snippets
	FormatMarkdown
)

// String returns the string representation of the Format
func (f Format) String() string {
	switch f {
	case FormatMarkdown:
		return "markdown"
	default:
		return "text"
	}
}

// Parser is the interface that all document parsers implement
type Parser interface {
	// Parse reads from an io.Reader and returns the extracted Document.
	// The only error is a read failure; malformed content degrades to prose.
	Parse(path string, r io.Reader) (*models.Document, error)

	// Extract extracts blocks from already loaded text. It never fails.
	Extract(path, text string) models.Document
}

// DetectFormat detects the document format based on file extension
// Supported extensions:
//   - .md, .markdown -> FormatMarkdown
//   - all others -> FormatText
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown":
		return FormatMarkdown
	default:
		return FormatText
	}
}

// NewParser creates a new parser instance for the specified format
func NewParser(format Format, conv Conventions) Parser {
	if format == FormatMarkdown {
		return NewMarkdownParser(conv)
	}
	return NewTextParser(conv)
}

// Extract detects the format from path and extracts text.
func Extract(path, text string, conv Conventions) models.Document {
	return NewParser(DetectFormat(path), conv).Extract(path, text)
}

// ParseFile opens path, detects its format and extracts its blocks.
// The document keeps the path as given so reports stay reproducible across
// working directories.
func ParseFile(path string, conv Conventions) (*models.Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	doc, err := NewParser(DetectFormat(path), conv).Parse(path, file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return doc, nil
}
