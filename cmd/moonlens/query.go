package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jward/moonlens"
	"github.com/jward/moonlens/internal/types"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the index",
	Long:  "Run queries against an indexed project. All line and column numbers are 0-based.",
}

func init() {
	queryCmd.AddCommand(hoverCmd)
	queryCmd.AddCommand(symbolsCmd)
	queryCmd.AddCommand(diagnosticsCmd)
	queryCmd.AddCommand(scopeCmd)
	queryCmd.AddCommand(filesCmd)
}

// --- Helpers ---

// openIndex opens the existing index of the project around the working
// directory. No rules are loaded; queries only read.
func openIndex() (*moonlens.Engine, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	p, err := loadProject(cwd)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(p.dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'moonlens index' first)", p.dbPath)
	}
	return moonlens.New(p.dbPath)
}

// resolveFilePath converts a file argument to an absolute path.
// If the path is already absolute, it's returned as-is.
// Otherwise, it's resolved relative to the current working directory.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

// parseIntArg parses a positional argument as an integer with a clear error.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be non-negative", name, value)
	}
	return n, nil
}

// positionArgs parses <file> <line> <col>.
func positionArgs(args []string) (string, int, int, error) {
	file, err := resolveFilePath(args[0])
	if err != nil {
		return "", 0, 0, err
	}
	line, err := parseIntArg(args[1], "line")
	if err != nil {
		return "", 0, 0, err
	}
	col, err := parseIntArg(args[2], "col")
	if err != nil {
		return "", 0, 0, err
	}
	return file, line, col, nil
}

// --- Commands ---

var hoverCmd = &cobra.Command{
	Use:   "hover <file> <line> <col>",
	Short: "Show the type, doc and history of the variable at a position",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, line, col, err := positionArgs(args)
		if err != nil {
			return outputError(cmd, "hover", err)
		}
		engine, err := openIndex()
		if err != nil {
			return outputError(cmd, "hover", err)
		}
		defer engine.Close()

		h, err := engine.Query().HoverAt(file, line, col)
		if err != nil {
			return outputError(cmd, "hover", err)
		}
		result := CLIResult{Command: "hover"}
		if h != nil {
			result.Results = hoverToCLI(file, h)
		}
		return outputResult(cmd, result)
	},
}

var symbolsCmd = &cobra.Command{
	Use:   "symbols <file>",
	Short: "Show the outline of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := resolveFilePath(args[0])
		if err != nil {
			return outputError(cmd, "symbols", err)
		}
		engine, err := openIndex()
		if err != nil {
			return outputError(cmd, "symbols", err)
		}
		defer engine.Close()

		roots, err := engine.Query().Symbols(file)
		if err != nil {
			return outputError(cmd, "symbols", err)
		}
		syms := symbolNodesToCLI(roots)
		return outputResult(cmd, CLIResult{Command: "symbols", Results: syms, TotalCount: count(len(syms))})
	},
}

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics <file>",
	Short: "Show the stored diagnostics of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := resolveFilePath(args[0])
		if err != nil {
			return outputError(cmd, "diagnostics", err)
		}
		engine, err := openIndex()
		if err != nil {
			return outputError(cmd, "diagnostics", err)
		}
		defer engine.Close()

		diags, err := engine.Query().Diagnostics(file)
		if err != nil {
			return outputError(cmd, "diagnostics", err)
		}
		out := make([]CLIDiagnostic, 0, len(diags))
		for _, d := range diags {
			out = append(out, diagnosticToCLI(file, d))
		}
		return outputResult(cmd, CLIResult{Command: "diagnostics", Results: out, TotalCount: count(len(out))})
	},
}

var scopeCmd = &cobra.Command{
	Use:   "scope <file> <line> <col>",
	Short: "Show the innermost scope at a position and its enclosing scopes",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, line, col, err := positionArgs(args)
		if err != nil {
			return outputError(cmd, "scope", err)
		}
		engine, err := openIndex()
		if err != nil {
			return outputError(cmd, "scope", err)
		}
		defer engine.Close()

		res, err := engine.Query().ScopeAt(file, line, col)
		if err != nil {
			return outputError(cmd, "scope", err)
		}
		result := CLIResult{Command: "scope"}
		if res != nil {
			result.Results = scopeToCLI(res)
		}
		return outputResult(cmd, result)
	},
}

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List indexed files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openIndex()
		if err != nil {
			return outputError(cmd, "files", err)
		}
		defer engine.Close()

		files, err := engine.Query().Files()
		if err != nil {
			return outputError(cmd, "files", err)
		}
		out := make([]CLIFile, 0, len(files))
		for _, f := range files {
			out = append(out, fileToCLI(f))
		}
		return outputResult(cmd, CLIResult{Command: "files", Results: out, TotalCount: count(len(out))})
	},
}

var typeCmd = &cobra.Command{
	Use:   "type <annotation>",
	Short: "Parse a type annotation and print its canonical form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := types.Parse(args[0])
		if err != nil {
			return outputError(cmd, "type", err)
		}
		return outputResult(cmd, CLIResult{Command: "type", Results: CLIType{Input: args[0], Canonical: types.Represent(t)}})
	},
}
