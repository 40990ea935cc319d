package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/moonlens"
	"github.com/jward/moonlens/internal/config"
	"github.com/jward/moonlens/rules"
)

var (
	flagDB      string
	flagFormat  string
	flagConfig  string
	flagVerbose bool
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

// errDiagnostics makes the process exit 1 without an error message when a
// check found error-severity diagnostics.
var errDiagnostics = errors.New("errors found")

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled && err != errDiagnostics {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "moonlens",
	Short:         "Scope-aware static analysis for Lua",
	Long:          "Moonlens analyses Lua sources with optional type annotations, producing diagnostics, outlines and hover data, and can keep them in a SQLite index.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		errorHandled = false
		return validateFormat(flagFormat)
	},
	// No Run; prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: db from moonlens.toml, relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: moonlens.toml in the repo root)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log per-file progress to stderr")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(typeCmd)
}

// newLogger returns the stderr logger for cmd and installs it as the
// default, which the rule runtime and the watcher log through.
func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// project is the resolved context of a command: where the repo is, which
// config applies and where the index lives.
type project struct {
	root   string
	dbPath string
	cfg    *config.Config
}

// loadProject resolves the repo root from startDir, loads the config and
// picks the database path.
func loadProject(startDir string) (*project, error) {
	root := findRepoRoot(startDir)

	cfgPath := flagConfig
	if cfgPath == "" {
		cfgPath = filepath.Join(root, config.FileName)
	}
	var cfg *config.Config
	var err error
	if flagConfig != "" {
		cfg, err = config.Load(cfgPath)
	} else {
		cfg, err = config.LoadOrDefault(cfgPath)
	}
	if err != nil {
		return nil, err
	}

	return &project{root: root, dbPath: resolveDBPath(root, cfg), cfg: cfg}, nil
}

// engineOptions builds Engine options from the project config. Without a
// configured rules directory the embedded default rules run.
func (p *project) engineOptions(logger *slog.Logger) ([]moonlens.Option, error) {
	opts, err := moonlens.OptionsFromConfig(p.cfg)
	if err != nil {
		return nil, err
	}
	if p.cfg.RulesDir == "" {
		opts = append(opts, moonlens.WithRulesFS(rules.FS))
	}
	return append(opts, moonlens.WithLogger(logger)), nil
}

// openEngine opens the project's index, creating its directory first.
func (p *project) openEngine(logger *slog.Logger) (*moonlens.Engine, error) {
	if err := os.MkdirAll(filepath.Dir(p.dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Dir(p.dbPath), err)
	}
	opts, err := p.engineOptions(logger)
	if err != nil {
		return nil, err
	}
	e, err := moonlens.New(p.dbPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return e, nil
}

var flagForce bool

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a directory into the database",
	Long:  "Analyses every Lua file under path, runs the rules and writes the results to the SQLite database. Unchanged files are skipped.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "clear the database and reindex from scratch")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	p, err := loadProject(targetDir)
	if err != nil {
		return err
	}
	logger := newLogger(cmd)

	engine, err := p.openEngine(logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := resetIfNeeded(cmd.ErrOrStderr(), engine, p.dbPath); err != nil {
		return err
	}

	if err := engine.IndexDirectory(context.Background(), targetDir); err != nil {
		return fmt.Errorf("indexing: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Indexed %s in %s\n", targetDir, time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(cmd.ErrOrStderr(), "Database: %s\n", p.dbPath)
	return nil
}

// resetIfNeeded clears the index for --force or when the rules changed
// since it was built.
func resetIfNeeded(w io.Writer, engine *moonlens.Engine, dbPath string) error {
	switch {
	case flagForce:
		fmt.Fprintf(w, "Cleared database: %s\n", dbPath)
	case engine.RulesChanged():
		fmt.Fprintln(w, "Rules changed; rebuilding index")
	default:
		return nil
	}
	if err := engine.Store().Reset(); err != nil {
		return fmt.Errorf("resetting database: %w", err)
	}
	return nil
}

// resolveTargetDir returns the absolute path of the directory to index.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory or a
// moonlens.toml. Returns that directory, or startDir if neither is found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		if _, err := os.Stat(filepath.Join(dir, config.FileName)); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root without finding either.
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from the --db flag, else from the
// config, relative to the repo root.
func resolveDBPath(repoRoot string, cfg *config.Config) string {
	db := cfg.DB
	if flagDB != "" {
		db = flagDB
	}
	if filepath.IsAbs(db) {
		return db
	}
	return filepath.Join(repoRoot, db)
}
