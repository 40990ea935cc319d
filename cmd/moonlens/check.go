package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/moonlens"
)

var checkCmd = &cobra.Command{
	Use:   "check [path...]",
	Short: "Analyse files and print diagnostics without indexing",
	Long:  "Analyses the given Lua files, or every Lua file under the given directories, and prints analyzer and rule diagnostics. Exits 1 when any diagnostic has error severity.",
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		args = []string{"."}
	}
	start, err := filepath.Abs(args[0])
	if err != nil {
		return outputError(cmd, "check", err)
	}
	if info, err := os.Stat(start); err == nil && !info.IsDir() {
		start = filepath.Dir(start)
	}
	p, err := loadProject(start)
	if err != nil {
		return outputError(cmd, "check", err)
	}

	// check never writes the project index; the engine gets a scratch one.
	tmp, err := os.MkdirTemp("", "moonlens-check-")
	if err != nil {
		return outputError(cmd, "check", err)
	}
	defer os.RemoveAll(tmp)
	logger := newLogger(cmd)
	opts, err := p.engineOptions(logger)
	if err != nil {
		return outputError(cmd, "check", err)
	}
	engine, err := moonlens.New(filepath.Join(tmp, "check.db"), opts...)
	if err != nil {
		return outputError(cmd, "check", err)
	}
	defer engine.Close()

	files, err := expandPaths(engine, args)
	if err != nil {
		return outputError(cmd, "check", err)
	}

	ctx := context.Background()
	diags := []CLIDiagnostic{}
	failed := false
	for _, path := range files {
		src, err := os.ReadFile(path)
		if err != nil {
			return outputError(cmd, "check", err)
		}
		rep, err := engine.Analyze(ctx, path, src)
		if rep == nil {
			return outputError(cmd, "check", err)
		}
		if err != nil {
			logger.Warn("rules failed", "path", path, "err", err)
		}
		display := displayPath(p.root, path)
		for _, d := range rep.Result.Diagnostics {
			diags = append(diags, findingToCLI(display, d, "analysis"))
		}
		for _, d := range rep.Rules {
			diags = append(diags, findingToCLI(display, d, "rule"))
		}
		failed = failed || rep.HasErrors()
	}

	if err := outputResult(cmd, CLIResult{Command: "check", Results: diags, TotalCount: count(len(diags))}); err != nil {
		return err
	}
	if failed {
		return errDiagnostics
	}
	return nil
}

// expandPaths resolves args to absolute Lua file paths, listing directories
// through the engine so exclude patterns apply.
func expandPaths(engine *moonlens.Engine, args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("path not found: %s", abs)
		}
		if !info.IsDir() {
			files = append(files, abs)
			continue
		}
		listed, err := engine.ListFiles(abs)
		if err != nil {
			return nil, err
		}
		files = append(files, listed...)
	}
	return files, nil
}

// displayPath returns path relative to root when it lies inside it.
func displayPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}
