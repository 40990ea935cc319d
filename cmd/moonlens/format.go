package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/moonlens"
	"github.com/jward/moonlens/internal/analysis"
)

// --- Conversions ---

func severityName(s int) string {
	return analysis.Severity(s).String()
}

func findingToCLI(file string, d analysis.Diagnostic, source string) CLIDiagnostic {
	return CLIDiagnostic{
		File:     file,
		Severity: d.Severity.String(),
		Code:     d.Code,
		Message:  d.Message,
		Source:   source,
		CLIRange: CLIRange{
			StartLine: d.Range.Start.Line,
			StartCol:  d.Range.Start.Character,
			EndLine:   d.Range.End.Line,
			EndCol:    d.Range.End.Character,
		},
	}
}

func diagnosticToCLI(file string, d *moonlens.Diagnostic) CLIDiagnostic {
	return CLIDiagnostic{
		File:     file,
		Severity: severityName(d.Severity),
		Code:     d.Code,
		Message:  d.Message,
		Source:   d.Source,
		CLIRange: CLIRange{d.StartLine, d.StartCol, d.EndLine, d.EndCol},
	}
}

func symbolNodesToCLI(nodes []*moonlens.SymbolNode) []CLISymbol {
	out := make([]CLISymbol, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, CLISymbol{
			ID:       n.ID,
			Name:     n.Name,
			Kind:     n.Kind,
			Detail:   n.Detail,
			Children: symbolNodesToCLI(n.Children),
			CLIRange: CLIRange{n.StartLine, n.StartCol, n.EndLine, n.EndCol},
		})
	}
	return out
}

func hoverToCLI(file string, h *moonlens.Hover) CLIHover {
	out := CLIHover{
		File:     file,
		Name:     h.Name,
		Type:     h.TypeExpr,
		Doc:      h.Doc,
		Scope:    h.ScopeTag,
		CLIRange: CLIRange{h.StartLine, h.StartCol, h.EndLine, h.EndCol},
	}
	for _, e := range h.History {
		out.History = append(out.History, CLIHistoryEntry{Scope: e.Scope, Type: e.Type})
	}
	return out
}

func scopeToCLI(res *moonlens.ScopeResult) CLIScope {
	sc := res.Scope
	out := CLIScope{
		Tag:      sc.Tag,
		Depth:    sc.Depth,
		CLIRange: CLIRange{sc.StartLine, sc.StartCol, sc.EndLine, sc.EndCol},
	}
	for _, p := range res.Chain {
		out.Enclosing = append(out.Enclosing, p.Tag)
	}
	return out
}

func fileToCLI(f *moonlens.File) CLIFile {
	return CLIFile{
		ID:          f.ID,
		Path:        f.Path,
		LineCount:   f.LineCount,
		LastIndexed: f.LastIndexed.UTC().Format(time.RFC3339),
	}
}

// --- Text formatters ---

// formatDiagnosticsText writes "file:line:col: severity: message" lines with
// 1-based positions, the way compilers print them.
func formatDiagnosticsText(w io.Writer, diags []CLIDiagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "%s:%d:%d: %s: %s", d.File, d.StartLine+1, d.StartCol+1, d.Severity, d.Message)
		if d.Code != "" {
			fmt.Fprintf(w, " [%s]", d.Code)
		}
		fmt.Fprintln(w)
	}
}

// formatSymbolsText writes the outline indented by depth.
func formatSymbolsText(w io.Writer, syms []CLISymbol) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tLINE\tDETAIL")
	var walk func(syms []CLISymbol, depth int)
	walk = func(syms []CLISymbol, depth int) {
		for _, s := range syms {
			fmt.Fprintf(tw, "%s%s\t%s\t%d\t%s\n", strings.Repeat("  ", depth), s.Name, s.Kind, s.StartLine, s.Detail)
			walk(s.Children, depth+1)
		}
	}
	walk(syms, 0)
	tw.Flush()
}

func formatHoverText(w io.Writer, h CLIHover) {
	fmt.Fprintf(w, "%s: %s\n", h.Name, h.Type)
	if h.Doc != "" {
		fmt.Fprintf(w, "\n%s\n", h.Doc)
	}
	if len(h.History) > 0 {
		fmt.Fprintln(w, "\nHistory:")
		for _, e := range h.History {
			fmt.Fprintf(w, "  %s: %s\n", e.Scope, e.Type)
		}
	}
}

func formatScopeText(w io.Writer, sc CLIScope) {
	fmt.Fprintf(w, "%s (depth %d)\n", sc.Tag, sc.Depth)
	for _, tag := range sc.Enclosing {
		fmt.Fprintf(w, "  in %s\n", tag)
	}
}

// formatFilesText formats CLIFile results as aligned columns.
func formatFilesText(w io.Writer, files []CLIFile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPATH\tLINES")
	for _, f := range files {
		fmt.Fprintf(tw, "%d\t%s\t%d\n", f.ID, f.Path, f.LineCount)
	}
	tw.Flush()
}

// --- Output ---

// outputResult marshals a CLIResult to the command's stdout in the selected
// format.
func outputResult(cmd *cobra.Command, result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(cmd.OutOrStdout(), result)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLIDiagnostic:
		formatDiagnosticsText(w, v)
	case []CLISymbol:
		formatSymbolsText(w, v)
	case CLIHover:
		formatHoverText(w, v)
	case CLIScope:
		formatScopeText(w, v)
	case []CLIFile:
		formatFilesText(w, v)
	case CLIType:
		fmt.Fprintln(w, v.Canonical)
	case nil:
		// No output for nil results (e.g., hover with no match).
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(cmd *cobra.Command, command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}

func count(n int) *int { return &n }
