package executor

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// normalizeLines trims trailing spaces and tabs from every line.
func normalizeLines(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.TrimRight(l, " \t")
	}
	return out
}

// compareOutput checks actual against expected as an ordered sequence of
// lines. On mismatch it returns a unified diff of the compared lines.
func compareOutput(expected, actual []string, normalize bool) (bool, string) {
	if normalize {
		expected = normalizeLines(expected)
		actual = normalizeLines(actual)
	}
	if equalLines(expected, actual) {
		return true, ""
	}
	return false, lineDiff(expected, actual)
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// lineDiff renders a unified diff from expected to actual.
func lineDiff(expected, actual []string) string {
	diff := difflib.UnifiedDiff{
		A:        withNewlines(expected),
		B:        withNewlines(actual),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil || text == "" {
		// difflib only fails on writer errors; fall back to a plain listing
		return "--- expected\n+++ actual\n-" + strings.Join(expected, "\n-") + "\n+" + strings.Join(actual, "\n+") + "\n"
	}
	return text
}

func withNewlines(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l + "\n"
	}
	return out
}
