package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/harrison/playcheck/internal/models"
)

// MarkdownParser extracts snippets from the fenced code blocks of a markdown
// document. Everything outside the selected fences is prose.
type MarkdownParser struct {
	markdown goldmark.Markdown
	conv     Conventions
}

// NewMarkdownParser creates a MarkdownParser using the given conventions.
func NewMarkdownParser(conv Conventions) *MarkdownParser {
	return &MarkdownParser{
		markdown: goldmark.New(),
		conv:     conv,
	}
}

// Parse reads the whole document and extracts its blocks.
func (p *MarkdownParser) Parse(path string, r io.Reader) (*models.Document, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	doc := p.Extract(path, string(content))
	return &doc, nil
}

// fence is a selected fenced code block, in 1-based markdown line numbers.
type fence struct {
	firstLine int // first content line
	lines     []string
	closeLine int // line of the closing fence, 0 when unterminated
	openLine  int
}

// Extract is total, like TextParser.Extract. Line numbers of the returned
// blocks refer to the markdown file.
func (p *MarkdownParser) Extract(path, content string) models.Document {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	source := []byte(content)
	lines := splitLines(content)
	starts := lineStarts(source)

	doc := p.markdown.Parser().Parse(text.NewReader(source))
	fences := p.collectFences(doc, source, starts, len(lines))

	b := newBuilder(path, p.conv)
	next := 1 // next markdown line not yet consumed
	for _, f := range fences {
		b.proseRegion(lines, next, f.openLine)
		if f.closeLine == 0 {
			b.anomalies = append(b.anomalies, models.ExtractionAnomaly{
				Kind:    models.AnomalyUnterminatedFence,
				Line:    f.openLine,
				Message: "code fence is never closed",
			})
		}
		b.feed(f.lines, f.firstLine)
		b.endSegment()
		if f.closeLine == 0 {
			next = len(lines) + 1
		} else {
			next = f.closeLine + 1
		}
	}
	b.proseRegion(lines, next, len(lines)+1)
	b.endSegment()
	return b.document()
}

// proseRegion adds lines [from, to) as one prose block, skipping blank-only
// regions.
func (b *builder) proseRegion(lines []string, from, to int) {
	if from >= to || from > len(lines) {
		return
	}
	if to > len(lines)+1 {
		to = len(lines) + 1
	}
	region := lines[from-1 : to-1]
	first, last := -1, -1
	for i, l := range region {
		if strings.TrimSpace(l) != "" {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return
	}
	b.flushCode()
	b.flushProse()
	b.appendBlock(models.Block{
		Kind:  models.KindProse,
		Lines: models.LineRange{Start: from + first, End: from + last},
		Text:  strings.Join(region[first:last+1], "\n"),
	})
}

func (p *MarkdownParser) collectFences(doc ast.Node, source []byte, starts []int, lineCount int) []fence {
	var fences []fence
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fcb, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		lang := string(fcb.Language(source))
		if p.conv.FenceLanguage != "" && !strings.EqualFold(lang, p.conv.FenceLanguage) {
			return ast.WalkSkipChildren, nil
		}

		f := fence{}
		segs := fcb.Lines()
		for i := 0; i < segs.Len(); i++ {
			seg := segs.At(i)
			line := lineOf(starts, seg.Start)
			if i == 0 {
				f.firstLine = line
			}
			f.lines = append(f.lines, strings.TrimRight(string(seg.Value(source)), "\n"))
		}

		// the opening fence is the line holding the info string, or the line
		// before the first content line
		if fcb.Info != nil {
			f.openLine = lineOf(starts, fcb.Info.Segment.Start)
		} else if f.firstLine > 0 {
			f.openLine = f.firstLine - 1
		}
		if f.openLine == 0 {
			return ast.WalkSkipChildren, nil
		}
		if f.firstLine == 0 {
			f.firstLine = f.openLine + 1
		}
		end := f.firstLine + len(f.lines)
		if end <= lineCount && isFenceLine(source, starts, end) {
			f.closeLine = end
		}
		fences = append(fences, f)
		return ast.WalkSkipChildren, nil
	})
	return fences
}

// lineStarts returns the byte offset of the start of every line.
func lineStarts(source []byte) []int {
	starts := []int{0}
	for i, c := range source {
		if c == '\n' && i+1 < len(source) {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineOf maps a byte offset to its 1-based line number.
func lineOf(starts []int, offset int) int {
	lo, hi := 0, len(starts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if starts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1
}

func isFenceLine(source []byte, starts []int, line int) bool {
	start := starts[line-1]
	end := len(source)
	if line < len(starts) {
		end = starts[line]
	}
	l := bytes.TrimSpace(source[start:end])
	return bytes.HasPrefix(l, []byte("```")) || bytes.HasPrefix(l, []byte("~~~"))
}
