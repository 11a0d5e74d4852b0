package parser

import (
	"regexp"
	"strings"
)

const identPattern = `[\p{L}_][\p{L}\p{N}_]*`

var (
	// let x, var x, var x, y, const x
	keywordDeclRegex = regexp.MustCompile(`^\s*(?:let|var|const)\s+(` + identPattern + `(?:\s*,\s*` + identPattern + `)*)`)
	// let (x, y) = ...
	tupleDeclRegex = regexp.MustCompile(`^\s*(?:let|var)\s*\(([^)]*)\)`)
	// x := ..., x, y := ...
	shortDeclRegex = regexp.MustCompile(`^\s*(` + identPattern + `(?:\s*,\s*` + identPattern + `)*)\s*:=`)
	identRegex     = regexp.MustCompile(`^` + identPattern + `$`)
	// var ( or const ( opening a grouped declaration
	groupOpenRegex = regexp.MustCompile(`^\s*(?:var|const)\s*\(\s*(?://.*)?$`)
	// x, y int = ... inside a group
	groupSpecRegex = regexp.MustCompile(`^\s*(` + identPattern + `(?:\s*,\s*` + identPattern + `)*)`)
)

// declaredBindings returns the names declared by source, in order of first
// appearance. The blank identifier is ignored.
func declaredBindings(source string) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(list string) {
		for _, part := range strings.Split(list, ",") {
			name := strings.TrimSpace(part)
			// drop type annotations: "x: Int"
			if idx := strings.IndexAny(name, ": "); idx > 0 {
				name = name[:idx]
			}
			if name == "" || name == "_" || !identRegex.MatchString(name) || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}

	inGroup := false
	for _, line := range strings.Split(source, "\n") {
		if inGroup {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, ")") {
				inGroup = false
				continue
			}
			if m := groupSpecRegex.FindStringSubmatch(line); m != nil {
				add(m[1])
			}
			continue
		}
		if groupOpenRegex.MatchString(line) {
			inGroup = true
			continue
		}
		for _, stmt := range strings.Split(line, ";") {
			if m := tupleDeclRegex.FindStringSubmatch(stmt); m != nil {
				add(m[1])
				continue
			}
			if m := keywordDeclRegex.FindStringSubmatch(stmt); m != nil {
				add(m[1])
				continue
			}
			if m := shortDeclRegex.FindStringSubmatch(stmt); m != nil {
				add(m[1])
			}
		}
	}
	return names
}
