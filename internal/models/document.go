package models

import "fmt"

// BlockKind distinguishes the variants of a Block.
type BlockKind int

const (
	// KindProse is narrative commentary. Disabled examples are prose too.
	KindProse BlockKind = iota
	// KindCode is an executable snippet.
	KindCode
)

// String returns the string representation of the BlockKind
func (k BlockKind) String() string {
	switch k {
	case KindProse:
		return "prose"
	case KindCode:
		return "code"
	default:
		return "unknown"
	}
}

// LineRange is an inclusive, 1-based range of source lines.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// String formats the range as "12" or "12-14".
func (r LineRange) String() string {
	if r.End <= r.Start {
		return fmt.Sprintf("%d", r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Block is one region of a literate document, either prose or code.
type Block struct {
	ID      string    // Stable identifier: "b<ordinal>"
	Ordinal int       // 1-based position among all blocks of the document
	Kind    BlockKind // Prose or code
	Lines   LineRange // Source lines covered by the block

	// Prose fields
	Text     string // Narrative text (prose blocks)
	Disabled bool   // Commented-out example; reported as skipped, never executed

	// Code fields
	Source           string    // Executable source (code blocks)
	DeclaredBindings []string  // Names declared by the snippet, in order of appearance
	ExpectedOutput   *[]string // nil when the snippet carries no result annotation
}

// IsCode reports whether the block is executable.
func (b Block) IsCode() bool {
	return b.Kind == KindCode
}

// HasExpectation reports whether the block carries a result annotation.
func (b Block) HasExpectation() bool {
	return b.Kind == KindCode && b.ExpectedOutput != nil
}

// Expected returns the expected output lines, or nil when there is none.
func (b Block) Expected() []string {
	if b.ExpectedOutput == nil {
		return nil
	}
	return *b.ExpectedOutput
}

// AnomalyKind names a recoverable extraction problem.
type AnomalyKind string

const (
	// AnomalyUnterminatedComment is a block comment still open at end of document.
	AnomalyUnterminatedComment AnomalyKind = "unterminated-comment"
	// AnomalyStrayTerminator is a block comment terminator with no open comment.
	AnomalyStrayTerminator AnomalyKind = "stray-terminator"
	// AnomalyUnterminatedFence is a markdown code fence that never closes.
	AnomalyUnterminatedFence AnomalyKind = "unterminated-fence"
)

// ExtractionAnomaly records a malformed region that degraded to prose.
type ExtractionAnomaly struct {
	Kind    AnomalyKind `json:"kind"`
	Line    int         `json:"line"`
	Message string      `json:"message"`
}

// String returns a human readable description of the anomaly.
func (a ExtractionAnomaly) String() string {
	return fmt.Sprintf("line %d: %s: %s", a.Line, a.Kind, a.Message)
}

// Document is an ordered, immutable sequence of blocks extracted from one file.
type Document struct {
	Path      string
	Blocks    []Block
	Anomalies []ExtractionAnomaly
}

// CodeBlocks returns the executable blocks in source order.
func (d *Document) CodeBlocks() []Block {
	var code []Block
	for _, b := range d.Blocks {
		if b.IsCode() {
			code = append(code, b)
		}
	}
	return code
}
