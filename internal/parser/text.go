package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/harrison/playcheck/internal/models"
)

// proseKind tracks what kind of non-executable region is being accumulated.
type proseKind int

const (
	proseNone proseKind = iota
	proseText
	proseComment
	proseDisabled
)

// TextParser extracts blocks from a plain-text literate document, one line at
// a time.
type TextParser struct {
	conv Conventions
}

// NewTextParser creates a TextParser using the given conventions.
func NewTextParser(conv Conventions) *TextParser {
	return &TextParser{conv: conv}
}

// Parse reads the whole document and extracts its blocks.
func (p *TextParser) Parse(path string, r io.Reader) (*models.Document, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	doc := p.Extract(path, string(content))
	return &doc, nil
}

// Extract is total: malformed regions degrade to prose and are recorded as
// anomalies on the returned document.
func (p *TextParser) Extract(path, text string) models.Document {
	b := newBuilder(path, p.conv)
	b.feed(splitLines(text), 1)
	b.endSegment()
	return b.document()
}

// splitLines normalizes line endings and splits text into lines. A trailing
// newline does not produce an empty last line.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// builder is the line classifier state machine shared by the text and
// markdown front-ends.
type builder struct {
	conv Conventions
	path string

	blocks    []models.Block
	anomalies []models.ExtractionAnomaly

	// open prose region
	prose      proseKind
	proseLines []string
	proseStart int
	proseEnd   int

	// open code group
	codeLines   []string
	codeStart   int
	codeEnd     int
	expected    *[]string
	annotatable bool // the previous line can be followed by an annotation line
	brackets    int  // unclosed ( [ { across the group's code lines

	// block comment nesting depth and the line it was opened on
	depth       int
	depthOpened int
}

func newBuilder(path string, conv Conventions) *builder {
	return &builder{conv: conv, path: path}
}

func (b *builder) document() models.Document {
	return models.Document{
		Path:      b.path,
		Blocks:    b.blocks,
		Anomalies: b.anomalies,
	}
}

// feed classifies lines; first is the 1-based number of lines[0].
func (b *builder) feed(lines []string, first int) {
	for i, line := range lines {
		b.line(first+i, line)
	}
}

func (b *builder) line(n int, raw string) {
	if b.depth > 0 {
		b.commentLine(n, raw)
		return
	}

	trimmed := strings.TrimSpace(raw)
	conv := b.conv

	switch {
	case trimmed == "":
		b.blank()

	case conv.ProseMarker != "" && strings.HasPrefix(trimmed, conv.ProseMarker):
		b.flushCode()
		text := strings.TrimPrefix(trimmed, conv.ProseMarker)
		b.addProse(proseText, n, strings.TrimPrefix(text, " "))

	case conv.BlockOpen != "" && strings.HasPrefix(trimmed, conv.BlockOpen):
		b.flushCode()
		b.flushProse()
		b.depthOpened = n
		b.commentLine(n, raw)

	case conv.BlockClose != "" && strings.HasPrefix(trimmed, conv.BlockClose):
		b.flushCode()
		b.anomalies = append(b.anomalies, models.ExtractionAnomaly{
			Kind:    models.AnomalyStrayTerminator,
			Line:    n,
			Message: fmt.Sprintf("%q without an open comment", conv.BlockClose),
		})
		b.addProse(proseText, n, trimmed)

	case isDisabledLine(trimmed, conv):
		b.flushCode()
		b.addProse(proseDisabled, n, raw)

	case conv.ResultMarker != "" && strings.HasPrefix(trimmed, conv.ResultMarker):
		b.commentOrAnnotation(n, raw, strings.TrimPrefix(trimmed, conv.ResultMarker))

	default:
		b.codeLine(n, raw)
	}
}

// commentLine consumes a line while inside (or opening) a block comment.
func (b *builder) commentLine(n int, raw string) {
	depth, end, strays := scanComment(raw, b.depth, b.conv)
	if strays > 0 {
		b.anomalies = append(b.anomalies, models.ExtractionAnomaly{
			Kind:    models.AnomalyStrayTerminator,
			Line:    n,
			Message: fmt.Sprintf("%q without an open comment", b.conv.BlockClose),
		})
	}
	b.depth = depth
	if end < 0 {
		b.addProse(proseComment, n, raw)
		return
	}

	b.addProse(proseComment, n, raw[:end])
	b.flushProse()
	if rest := raw[end:]; strings.TrimSpace(rest) != "" {
		b.line(n, rest)
	}
}

func (b *builder) blank() {
	if len(b.codeLines) > 0 {
		b.codeLines = append(b.codeLines, "")
		b.annotatable = false
		return
	}
	b.flushProse()
}

// commentOrAnnotation handles a line that starts with the result marker.
func (b *builder) commentOrAnnotation(n int, raw, text string) {
	if len(b.codeLines) > 0 && b.annotatable {
		b.appendExpected(normalizeAnnotation(text, b.conv))
		b.codeEnd = n
		return
	}
	if len(b.codeLines) > 0 {
		// ordinary comment inside a code group
		b.codeLines = append(b.codeLines, raw)
		return
	}
	b.addProse(proseText, n, strings.TrimSpace(text))
}

func (b *builder) codeLine(n int, raw string) {
	b.flushProse()
	split := splitCodeLine(raw, b.conv)
	code := strings.TrimRight(split.code, " \t")

	inGroup := len(b.codeLines) > 0 && b.brackets > 0

	if split.hasAnnotation && strings.TrimSpace(split.annotation) != "" && strings.TrimSpace(code) != "" {
		if !inGroup {
			// the annotated line forms its own block; earlier lines of the
			// group are verified separately
			b.flushCode()
			b.startCode(n)
		}
		// inside an open construct the annotation belongs to the whole group
		b.appendCode(n, code)
		b.appendExpected(normalizeAnnotation(split.annotation, b.conv))
		return
	}

	if b.expected != nil && !inGroup {
		b.flushCode()
	}
	if len(b.codeLines) == 0 {
		b.startCode(n)
	}
	if split.openDepth > 0 {
		b.appendCode(n, code)
		b.flushCode()
		b.depth = split.openDepth
		b.depthOpened = n
		b.addProse(proseComment, n, raw[len(split.code):])
		return
	}
	b.appendCode(n, raw)
}

// appendCode adds a code line to the open group and tracks its brackets.
func (b *builder) appendCode(n int, line string) {
	b.codeLines = append(b.codeLines, line)
	b.codeEnd = n
	b.annotatable = true
	b.brackets += bracketDelta(line, b.conv)
	if b.brackets < 0 {
		b.brackets = 0
	}
}

func (b *builder) startCode(n int) {
	b.codeStart = n
	b.codeEnd = n
}

func (b *builder) appendExpected(line string) {
	if b.expected == nil {
		b.expected = &[]string{}
	}
	*b.expected = append(*b.expected, line)
}

func (b *builder) addProse(kind proseKind, n int, text string) {
	if b.prose != kind {
		b.flushProse()
	}
	if b.prose == proseNone {
		b.prose = kind
		b.proseStart = n
	}
	b.proseLines = append(b.proseLines, text)
	b.proseEnd = n
}

func (b *builder) flushProse() {
	if b.prose == proseNone {
		return
	}
	b.appendBlock(models.Block{
		Kind:     models.KindProse,
		Lines:    models.LineRange{Start: b.proseStart, End: b.proseEnd},
		Text:     strings.Join(b.proseLines, "\n"),
		Disabled: b.prose == proseDisabled,
	})
	b.prose = proseNone
	b.proseLines = nil
}

func (b *builder) flushCode() {
	// trailing blank lines belong to no block
	for len(b.codeLines) > 0 && strings.TrimSpace(b.codeLines[len(b.codeLines)-1]) == "" {
		b.codeLines = b.codeLines[:len(b.codeLines)-1]
	}
	if len(b.codeLines) == 0 {
		b.resetCode()
		return
	}
	source := strings.Join(b.codeLines, "\n")
	b.appendBlock(models.Block{
		Kind:             models.KindCode,
		Lines:            models.LineRange{Start: b.codeStart, End: b.codeEnd},
		Source:           source,
		DeclaredBindings: declaredBindings(source),
		ExpectedOutput:   b.expected,
	})
	b.resetCode()
}

func (b *builder) resetCode() {
	b.codeLines = nil
	b.expected = nil
	b.annotatable = false
	b.brackets = 0
}

func (b *builder) appendBlock(block models.Block) {
	block.Ordinal = len(b.blocks) + 1
	block.ID = fmt.Sprintf("b%d", block.Ordinal)
	b.blocks = append(b.blocks, block)
}

// endSegment closes every open region. A block comment still open at this
// point is kept as prose and reported as an anomaly.
func (b *builder) endSegment() {
	if b.depth > 0 {
		b.anomalies = append(b.anomalies, models.ExtractionAnomaly{
			Kind:    models.AnomalyUnterminatedComment,
			Line:    b.depthOpened,
			Message: fmt.Sprintf("block comment still open at depth %d", b.depth),
		})
		b.depth = 0
	}
	b.flushCode()
	b.flushProse()
}
