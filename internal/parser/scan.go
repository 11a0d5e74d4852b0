package parser

import "strings"

// scanComment advances through s, which starts inside a block comment at the
// given depth (or at depth 0 right before an opening delimiter). It returns
// the depth at the end of s and, when the depth drops to zero, the index just
// past the closing delimiter. end is -1 when the comment stays open.
//
// strays counts closing delimiters seen at depth 0.
func scanComment(s string, depth int, conv Conventions) (newDepth, end, strays int) {
	i := 0
	for i < len(s) {
		switch {
		case strings.HasPrefix(s[i:], conv.BlockOpen) && (depth == 0 || conv.NestedComments):
			depth++
			i += len(conv.BlockOpen)
		case strings.HasPrefix(s[i:], conv.BlockClose):
			i += len(conv.BlockClose)
			if depth == 0 {
				strays++
				continue
			}
			depth--
			if depth == 0 {
				return 0, i, strays
			}
		default:
			i++
		}
	}
	return depth, -1, strays
}

// codeLine is a code line split into its executable part and an optional
// trailing result annotation.
type codeLine struct {
	code          string
	annotation    string
	hasAnnotation bool
	// openDepth is non-zero when a block comment opened on this line is
	// still open at its end.
	openDepth int
}

// splitCodeLine separates the code of a line from a trailing result
// annotation. String and rune literals are skipped so that markers inside
// them are not mistaken for comments; balanced inline block comments stay
// part of the code.
func splitCodeLine(s string, conv Conventions) codeLine {
	var quote byte
	i := 0
	for i < len(s) {
		c := s[i]
		if quote != 0 {
			if c == '\\' && quote != '`' {
				i += 2
				continue
			}
			if c == quote {
				quote = 0
			}
			i++
			continue
		}

		switch {
		case c == '"' || c == '`' || c == '\'':
			quote = c
			i++
		case conv.BlockOpen != "" && strings.HasPrefix(s[i:], conv.BlockOpen):
			depth, end, _ := scanComment(s[i:], 0, conv)
			if depth > 0 {
				return codeLine{code: s[:i], openDepth: depth}
			}
			i += end
		case conv.ResultMarker != "" && strings.HasPrefix(s[i:], conv.ResultMarker):
			return codeLine{
				code:          s[:i],
				annotation:    s[i+len(conv.ResultMarker):],
				hasAnnotation: true,
			}
		default:
			i++
		}
	}
	return codeLine{code: s}
}

// normalizeAnnotation turns the raw text after a result marker into an
// expected output line.
func normalizeAnnotation(text string, conv Conventions) string {
	text = strings.TrimSpace(text)
	if conv.PrintsKeyword != "" && strings.HasPrefix(text, conv.PrintsKeyword) {
		rest := text[len(conv.PrintsKeyword):]
		if rest == "" || rest[0] == ' ' || rest[0] == ':' {
			text = strings.TrimSpace(strings.TrimPrefix(rest, ":"))
		}
	}
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		text = text[1 : len(text)-1]
	}
	return text
}

// isDisabledLine reports whether trimmed is a commented-out example: the
// disable marker immediately followed by something other than whitespace,
// another comment character or the prose marker.
func isDisabledLine(trimmed string, conv Conventions) bool {
	if conv.DisableMarker == "" || !strings.HasPrefix(trimmed, conv.DisableMarker) {
		return false
	}
	if conv.ProseMarker != "" && strings.HasPrefix(trimmed, conv.ProseMarker) {
		return false
	}
	rest := trimmed[len(conv.DisableMarker):]
	if rest == "" {
		return false
	}
	switch rest[0] {
	case ' ', '\t', '/', '*', '!':
		return false
	}
	return true
}

// bracketDelta returns opened minus closed ( [ { in the code of a line.
// String and rune literals, block comments and a trailing line comment are
// not counted.
func bracketDelta(s string, conv Conventions) int {
	delta := 0
	var quote byte
	i := 0
	for i < len(s) {
		c := s[i]
		if quote != 0 {
			if c == '\\' && quote != '`' {
				i += 2
				continue
			}
			if c == quote {
				quote = 0
			}
			i++
			continue
		}

		switch {
		case c == '"' || c == '`' || c == '\'':
			quote = c
			i++
		case conv.BlockOpen != "" && strings.HasPrefix(s[i:], conv.BlockOpen):
			_, end, _ := scanComment(s[i:], 0, conv)
			if end < 0 {
				return delta
			}
			i += end
		case conv.ResultMarker != "" && strings.HasPrefix(s[i:], conv.ResultMarker):
			return delta
		default:
			switch c {
			case '(', '[', '{':
				delta++
			case ')', ']', '}':
				delta--
			}
			i++
		}
	}
	return delta
}
