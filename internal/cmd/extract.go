package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrison/playcheck/internal/models"
	"github.com/harrison/playcheck/internal/parser"
)

// NewExtractCommand creates the extract command
func NewExtractCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <path>",
		Short: "Show the blocks extracted from a document without running them",
		Long: `Extract classifies every line of a document and prints the resulting
prose and code blocks, their line ranges, declared bindings and
expected output. Use it to check how a document's annotations are
understood before verifying it.`,
		Args: cobra.ExactArgs(1),
		RunE: runExtract,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .playcheck/config.yaml)")
	cmd.Flags().String("format", "text", "Output format: text or json")
	cmd.Flags().Bool("code-only", false, "Omit prose blocks")

	return cmd
}

// runExtract implements the extract command logic
func runExtract(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Conventions.Validate(); err != nil {
		return configErr("conventions", err.Error(), nil)
	}

	doc, err := parser.ParseFile(args[0], cfg.Conventions)
	if err != nil {
		return configErr("paths", "cannot read document", err)
	}

	codeOnly, _ := cmd.Flags().GetBool("code-only")
	if codeOnly {
		doc.Blocks = doc.CodeBlocks()
	}

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(extractView(doc))
	case "text":
		return writeExtractText(cmd.OutOrStdout(), doc)
	default:
		return configErr("format", fmt.Sprintf("invalid value %q, must be one of: text, json", format), nil)
	}
}

type blockView struct {
	ID       string           `json:"id"`
	Kind     string           `json:"kind"`
	Lines    models.LineRange `json:"lines"`
	Disabled bool             `json:"disabled,omitempty"`
	Text     string           `json:"text,omitempty"`
	Source   string           `json:"source,omitempty"`
	Bindings []string         `json:"bindings,omitempty"`
	Expected *[]string        `json:"expected,omitempty"`
}

type documentView struct {
	Path      string                     `json:"path"`
	Blocks    []blockView                `json:"blocks"`
	Anomalies []models.ExtractionAnomaly `json:"anomalies,omitempty"`
}

func extractView(doc *models.Document) documentView {
	view := documentView{Path: doc.Path, Blocks: make([]blockView, 0, len(doc.Blocks)), Anomalies: doc.Anomalies}
	for _, b := range doc.Blocks {
		view.Blocks = append(view.Blocks, blockView{
			ID:       b.ID,
			Kind:     b.Kind.String(),
			Lines:    b.Lines,
			Disabled: b.Disabled,
			Text:     b.Text,
			Source:   b.Source,
			Bindings: b.DeclaredBindings,
			Expected: b.ExpectedOutput,
		})
	}
	return view
}

func writeExtractText(w io.Writer, doc *models.Document) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %d blocks\n", doc.Path, len(doc.Blocks))

	for _, b := range doc.Blocks {
		header := fmt.Sprintf("%s %s lines %s", b.ID, b.Kind, b.Lines)
		if b.Disabled {
			header += " (disabled)"
		}
		fmt.Fprintf(&sb, "\n%s\n", header)

		body := b.Text
		if b.IsCode() {
			body = b.Source
		}
		for _, line := range strings.Split(body, "\n") {
			fmt.Fprintf(&sb, "  | %s\n", line)
		}
		if len(b.DeclaredBindings) > 0 {
			fmt.Fprintf(&sb, "  bindings: %s\n", strings.Join(b.DeclaredBindings, ", "))
		}
		if b.HasExpectation() {
			for _, line := range b.Expected() {
				fmt.Fprintf(&sb, "  => %s\n", line)
			}
		}
	}

	for _, a := range doc.Anomalies {
		fmt.Fprintf(&sb, "\nwarning: %s\n", a)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
