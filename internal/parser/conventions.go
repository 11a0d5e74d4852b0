package parser

import "fmt"

// Conventions is the line-marker grammar used to classify document lines.
// Every marker is configurable because literate documents differ in how they
// mark prose, commented-out examples and expected results.
type Conventions struct {
	// ProseMarker introduces a line of narrative text (e.g. "//:").
	ProseMarker string `yaml:"prose_marker"`

	// ResultMarker introduces a result annotation, either trailing a code
	// line or on the lines immediately following it (e.g. "//").
	ResultMarker string `yaml:"result_marker"`

	// DisableMarker, when immediately followed by a non-space character,
	// marks a commented-out example that must never run (e.g. "//x = 1").
	DisableMarker string `yaml:"disable_marker"`

	// PrintsKeyword is stripped from the start of an annotation, together
	// with one pair of surrounding double quotes (e.g. `// Prints "hi"`).
	PrintsKeyword string `yaml:"prints_keyword"`

	// BlockOpen and BlockClose delimit block comments.
	BlockOpen  string `yaml:"block_open"`
	BlockClose string `yaml:"block_close"`

	// NestedComments makes block comments nest, so BlockClose at depth > 1
	// does not end the comment.
	NestedComments bool `yaml:"nested_comments"`

	// FenceLanguage selects which markdown fenced code blocks are snippets.
	// Empty selects every fence.
	FenceLanguage string `yaml:"fence_language"`
}

// DefaultConventions returns the playground grammar: "//:" prose lines,
// "// result" annotations, nested "/* */" comments and "go" fences.
func DefaultConventions() Conventions {
	return Conventions{
		ProseMarker:    "//:",
		ResultMarker:   "//",
		DisableMarker:  "//",
		PrintsKeyword:  "Prints",
		BlockOpen:      "/*",
		BlockClose:     "*/",
		NestedComments: true,
		FenceLanguage:  "go",
	}
}

// Validate checks that the grammar is usable.
func (c Conventions) Validate() error {
	if c.BlockOpen == "" && c.BlockClose != "" || c.BlockOpen != "" && c.BlockClose == "" {
		return fmt.Errorf("block_open and block_close must be set together")
	}
	if c.BlockOpen != "" && c.BlockOpen == c.BlockClose {
		return fmt.Errorf("block_open and block_close must differ, both are %q", c.BlockOpen)
	}
	if c.ProseMarker != "" && c.ProseMarker == c.ResultMarker {
		return fmt.Errorf("prose_marker and result_marker must differ, both are %q", c.ProseMarker)
	}
	return nil
}
