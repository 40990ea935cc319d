package moonlens

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jward/moonlens/internal/analysis"
	"github.com/jward/moonlens/internal/config"
	"github.com/jward/moonlens/internal/observability"
	"github.com/jward/moonlens/internal/runtime"
	"github.com/jward/moonlens/internal/store"
	"github.com/jward/moonlens/internal/types"
)

const rulesHashKey = "rules_hash"

// Engine orchestrates the moonlens pipeline: file discovery, change
// detection, analysis, rule scripts, persistence and query access.
type Engine struct {
	store    *store.Store
	runtime  *runtime.Runtime
	rulesDir string
	rulesFS  fs.FS
	exclude  *config.Matcher
	logger   *slog.Logger

	prelude  bool
	globals  map[string]types.Type
	severity map[string]analysis.Severity

	// useParallel enables the parallel indexing pipeline.
	useParallel bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithRulesDir loads rule scripts from dir on disk.
func WithRulesDir(dir string) Option {
	return func(e *Engine) {
		e.rulesDir = dir
	}
}

// WithRulesFS loads rule scripts from fsys instead of from disk. This
// enables embedding rules via go:embed. When set, the rules directory is
// ignored for loading.
func WithRulesFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.rulesFS = fsys
	}
}

// WithParallel controls parallel indexing. When true (default), IndexFiles
// uses a worker pool for parsing, analysis and rules, with a single writer
// committing each document to SQLite. Set to false for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithExclude skips directories and files matched by m during directory
// walks.
func WithExclude(m *config.Matcher) Option {
	return func(e *Engine) {
		e.exclude = m
	}
}

// WithGlobals declares extra globals in every analysed document.
func WithGlobals(globals map[string]types.Type) Option {
	return func(e *Engine) {
		for name, t := range globals {
			e.globals[name] = t
		}
	}
}

// WithoutPrelude leaves the global scope empty instead of seeding it with
// the standard library.
func WithoutPrelude() Option {
	return func(e *Engine) {
		e.prelude = false
	}
}

// WithSeverity overrides the severity of diagnostics by code. It applies to
// rule diagnostics as well as analyzer ones.
func WithSeverity(overrides map[string]analysis.Severity) Option {
	return func(e *Engine) {
		for code, s := range overrides {
			e.severity[code] = s
		}
	}
}

// WithLogger sets the logger used for per-file progress and rule failures.
// The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// OptionsFromConfig translates a loaded configuration into Engine options.
func OptionsFromConfig(cfg *config.Config) ([]Option, error) {
	m, err := cfg.Matcher()
	if err != nil {
		return nil, fmt.Errorf("moonlens: config: %w", err)
	}
	opts := []Option{WithExclude(m)}
	if cfg.RulesDir != "" {
		opts = append(opts, WithRulesDir(cfg.RulesDir))
	}
	if !cfg.PreludeEnabled() {
		opts = append(opts, WithoutPrelude())
	}

	globals := make(map[string]types.Type, len(cfg.Analysis.Globals))
	for name, text := range cfg.Analysis.Globals {
		t, err := types.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("moonlens: config: global %q: %w", name, err)
		}
		globals[name] = t
	}
	if len(globals) > 0 {
		opts = append(opts, WithGlobals(globals))
	}

	severity := make(map[string]analysis.Severity, len(cfg.Severity))
	for code, name := range cfg.Severity {
		s, err := analysis.ParseSeverity(name)
		if err != nil {
			return nil, fmt.Errorf("moonlens: config: severity of %q: %w", code, err)
		}
		severity[code] = s
	}
	if len(severity) > 0 {
		opts = append(opts, WithSeverity(severity))
	}
	return opts, nil
}

// New creates an Engine backed by a SQLite database at dbPath.
// Rule loading priority:
//  1. If WithRulesFS is set, use the provided fs.FS
//  2. Otherwise, use the WithRulesDir directory on disk
//
// With neither, no rules run.
func New(dbPath string, opts ...Option) (*Engine, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("moonlens: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("moonlens: migrate: %w", err)
	}

	e := &Engine{
		store:       s,
		prelude:     true,
		globals:     map[string]types.Type{},
		severity:    map[string]analysis.Severity{},
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		useParallel: true,
	}
	for _, opt := range opts {
		opt(e)
	}

	var rtOpts []runtime.RuntimeOption
	if e.rulesFS != nil {
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(e.rulesFS))
	}
	e.runtime = runtime.NewRuntime(e.rulesDir, rtOpts...)

	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Query returns a new QueryBuilder wrapping the Store.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.store}
}

func (e *Engine) analysisOptions() []analysis.Option {
	var opts []analysis.Option
	if !e.prelude {
		opts = append(opts, analysis.WithoutPrelude())
	}
	if len(e.globals) > 0 {
		opts = append(opts, analysis.WithGlobals(e.globals))
	}
	if len(e.severity) > 0 {
		opts = append(opts, analysis.WithSeverity(e.severity))
	}
	return opts
}

// rulesHash computes a SHA-256 hash over every rule script and module.
func (e *Engine) rulesHash() (string, error) {
	sources, err := e.runtime.Sources()
	if err != nil {
		return "", err
	}
	return store.RulesHash(sources), nil
}

// RulesChanged reports whether the rule scripts differ from the ones used
// to build the current database. Returns true if the DB has no stored hash
// (first run) or if the hash doesn't match. When true, the caller should
// reset the store and reindex from scratch, since unchanged files keep the
// rule diagnostics of the old scripts.
func (e *Engine) RulesChanged() bool {
	current, err := e.rulesHash()
	if err != nil {
		return true
	}
	stored, ok, err := e.store.Meta(rulesHashKey)
	if err != nil || !ok {
		return true
	}
	return current != stored
}

func (e *Engine) storeRulesHash() error {
	h, err := e.rulesHash()
	if err != nil {
		return err
	}
	return e.store.SetMeta(rulesHashKey, h)
}

// Report is the outcome of analysing one document.
type Report struct {
	Path   string
	Result *analysis.Result

	// Rules holds what the rule scripts reported.
	Rules []analysis.Diagnostic
}

// Diagnostics returns analyzer and rule diagnostics ordered by position.
func (r *Report) Diagnostics() []analysis.Diagnostic {
	out := make([]analysis.Diagnostic, 0, len(r.Result.Diagnostics)+len(r.Rules))
	out = append(out, r.Result.Diagnostics...)
	out = append(out, r.Rules...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Range.Start.Before(out[j].Range.Start)
	})
	return out
}

// HasErrors reports whether any diagnostic has error severity.
func (r *Report) HasErrors() bool {
	for _, d := range r.Diagnostics() {
		if d.Severity == analysis.SeverityError {
			return true
		}
	}
	return false
}

// Analyze parses and analyses src and runs the rules against it. It does
// not touch the store. A failing rule does not discard the report: the
// report comes back together with the joined rule errors.
func (e *Engine) Analyze(ctx context.Context, path string, src []byte) (*Report, error) {
	start := time.Now()
	res, err := analysis.AnalyzeSource(ctx, src, e.analysisOptions()...)
	observability.ObserveAnalysis(start)
	if err != nil {
		return nil, fmt.Errorf("moonlens: analyze %s: %w", path, err)
	}
	if res.SyntaxError != nil {
		observability.SyntaxErrors.Inc()
	}

	rep := &Report{Path: path, Result: res}
	rules, err := e.runtime.RunRules(ctx, &runtime.Document{Path: path, Source: src, Result: res})
	for i := range rules {
		if s, ok := e.severity[rules[i].Code]; ok {
			rules[i].Severity = s
		}
	}
	rep.Rules = rules
	return rep, err
}

// IndexFiles indexes the given file paths. When WithParallel is enabled,
// uses a worker pool for concurrent analysis with one writer committing to
// SQLite. Otherwise falls back to the serial path.
//
// For each file:
//  1. Skip non-Lua paths
//  2. Drop the file from the index when it no longer exists
//  3. Skip unchanged files (same content hash)
//  4. Analyze and run rules
//  5. Replace the file's rows in one transaction
//
// Errors on individual files are collected; processing continues. Rule
// failures are logged and do not fail the file.
func (e *Engine) IndexFiles(ctx context.Context, paths []string) error {
	var err error
	if e.useParallel {
		err = e.IndexFilesParallel(ctx, paths)
	} else {
		err = e.indexFilesSerial(ctx, paths)
	}
	if herr := e.storeRulesHash(); herr != nil {
		err = errors.Join(err, fmt.Errorf("moonlens: store rules hash: %w", herr))
	}
	return err
}

func (e *Engine) indexFilesSerial(ctx context.Context, paths []string) error {
	var errs []error
	for _, path := range paths {
		if err := e.indexFile(ctx, path); err != nil {
			errs = append(errs, fmt.Errorf("index %s: %w", path, err))
		}
	}
	return indexErrors(errs)
}

func (e *Engine) indexFile(ctx context.Context, path string) error {
	item, skip, err := e.prepareFile(path)
	if err != nil || skip {
		return err
	}
	if err := e.analyzeFile(ctx, &item); err != nil {
		return err
	}
	return e.commitFile(item)
}

func indexErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("moonlens: indexing had %d error(s): %w", len(errs), errors.Join(errs...))
}

// lineCount counts lines the way editors do: a trailing newline opens one
// more (empty) line.
func lineCount(src []byte) int {
	return bytes.Count(src, []byte{'\n'}) + 1
}

// IndexDirectory walks root and indexes all Lua files. Hidden directories
// and anything matched by the exclude globs are skipped.
func (e *Engine) IndexDirectory(ctx context.Context, root string) error {
	paths, err := e.ListFiles(root)
	if err != nil {
		return err
	}
	e.logger.Debug("indexing directory", "root", root, "files", len(paths))
	return e.IndexFiles(ctx, paths)
}

// ListFiles returns the Lua files under root that IndexDirectory would
// index, in walk order.
func (e *Engine) ListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") || e.exclude.ExcludeDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if runtime.IsSource(path) && !e.exclude.ExcludeFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("moonlens: walk directory: %w", err)
	}
	return paths, nil
}

// Remove drops a file and all of its rows from the index. Removing a file
// that was never indexed is not an error.
func (e *Engine) Remove(path string) error {
	f, err := e.store.FileByPath(path)
	if err != nil {
		return fmt.Errorf("moonlens: lookup file: %w", err)
	}
	if f == nil {
		return nil
	}
	return e.store.DeleteFile(f.ID)
}

// readSource reads path, reporting a missing file as (nil, false, nil).
func readSource(path string) ([]byte, bool, error) {
	src, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read file: %w", err)
	}
	return src, true, nil
}

func isLua(path string) bool {
	return runtime.IsSource(path)
}

func severityName(s int) string {
	return analysis.Severity(s).String()
}
