package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/harrison/playcheck/internal/models"
)

// Format selects a renderer.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatText:
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown format %q (supported: json, text)", s)
	}
}

// Write renders rep in the given format.
func Write(w io.Writer, rep models.Report, format Format, useColor bool) error {
	if format == FormatText {
		return WriteText(w, rep, useColor)
	}
	return WriteJSON(w, rep)
}

type resultRecord struct {
	Type string `json:"type"`
	models.VerificationResult
}

type documentRecord struct {
	Type string `json:"type"`
	models.DocumentReport
}

type summaryRecord struct {
	Type      string        `json:"type"`
	Documents int           `json:"documents"`
	Totals    models.Counts `json:"totals"`
	OK        bool          `json:"ok"`
	Canceled  bool          `json:"canceled,omitempty"`
}

// WriteJSON writes one JSON record per result, one per document and a final
// summary record. The output holds no timestamps or durations, so identical
// reports render byte-for-byte identically.
func WriteJSON(w io.Writer, rep models.Report) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	for _, doc := range rep.Documents {
		for _, res := range doc.Results {
			if err := enc.Encode(resultRecord{Type: "result", VerificationResult: res}); err != nil {
				return fmt.Errorf("failed to encode result: %w", err)
			}
		}
		if err := enc.Encode(documentRecord{Type: "document", DocumentReport: doc}); err != nil {
			return fmt.Errorf("failed to encode document summary: %w", err)
		}
	}
	summary := summaryRecord{
		Type:      "summary",
		Documents: len(rep.Documents),
		Totals:    rep.Totals,
		OK:        rep.OK(),
		Canceled:  rep.Canceled,
	}
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	return nil
}

// palette holds the colors of the text renderer.
type palette struct {
	pass, fail, skip, fault, bold, dim *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		pass:  color.New(color.FgGreen),
		fail:  color.New(color.FgRed),
		skip:  color.New(color.FgYellow),
		fault: color.New(color.FgMagenta),
		bold:  color.New(color.Bold),
		dim:   color.New(color.FgHiBlack),
	}
	for _, c := range []*color.Color{p.pass, p.fail, p.skip, p.fault, p.bold, p.dim} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) status(s models.Status) string {
	switch s {
	case models.StatusPassed:
		return p.pass.Sprint("PASS ")
	case models.StatusFailed:
		return p.fail.Sprint("FAIL ")
	case models.StatusSkipped:
		return p.skip.Sprint("SKIP ")
	case models.StatusFault:
		return p.fault.Sprint("FAULT")
	default:
		return string(s)
	}
}

// WriteText writes one line per result, the diff or fault under each failure,
// and a final summary line.
func WriteText(w io.Writer, rep models.Report, useColor bool) error {
	p := newPalette(useColor)
	var sb strings.Builder

	for _, doc := range rep.Documents {
		fmt.Fprintf(&sb, "%s\n", p.bold.Sprint(doc.Path))
		for _, res := range doc.Results {
			fmt.Fprintf(&sb, "  %s %s (lines %s)\n", p.status(res.Status), res.BlockID, res.Lines)
			switch res.Status {
			case models.StatusFailed:
				writeDiff(&sb, res.Diff, p)
			case models.StatusFault:
				if res.Fault != nil {
					fmt.Fprintf(&sb, "        %s\n", p.fault.Sprint(res.Fault.Error()))
				}
			}
		}
		fmt.Fprintf(&sb, "  %s\n", p.dim.Sprintf("%d passed, %d failed, %d skipped, %d faults, pass rate %.0f%%",
			doc.Counts.Passed, doc.Counts.Failed, doc.Counts.Skipped, doc.Counts.Faults, doc.PassRate*100))
		if doc.Canceled {
			fmt.Fprintf(&sb, "  %s\n", p.skip.Sprint("canceled before the last block"))
		}
	}

	t := rep.Totals
	summary := fmt.Sprintf("Summary: %d passed, %d failed, %d skipped, %d faults in %d document(s)",
		t.Passed, t.Failed, t.Skipped, t.Faults, len(rep.Documents))
	if rep.OK() {
		fmt.Fprintf(&sb, "\n%s\n", p.pass.Sprint(summary))
	} else {
		fmt.Fprintf(&sb, "\n%s\n", p.fail.Sprint(summary))
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeDiff(sb *strings.Builder, diff string, p palette) {
	for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "@@"):
			fmt.Fprintf(sb, "        %s\n", p.dim.Sprint(line))
		case strings.HasPrefix(line, "-"):
			fmt.Fprintf(sb, "        %s\n", p.fail.Sprint(line))
		case strings.HasPrefix(line, "+"):
			fmt.Fprintf(sb, "        %s\n", p.pass.Sprint(line))
		default:
			fmt.Fprintf(sb, "        %s\n", line)
		}
	}
}
