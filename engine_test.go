package moonlens

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/moonlens/internal/analysis"
	"github.com/jward/moonlens/internal/config"
	"github.com/jward/moonlens/internal/store"
	"github.com/jward/moonlens/internal/types"
)

const testSource = `local x = 1
local function greet(name)
  return "hello " .. name
end
function shout(s) return s end
break
`

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	e, err := New(dbPath, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

// writeFile creates name under dir with content and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func hasCode(diags []analysis.Diagnostic, code string) bool {
	for _, d := range diags {
		if d.Code == code {
			return true
		}
	}
	return false
}

// =============================================================================
// Construction
// =============================================================================

func TestNew_CreatesStoreAndRuntime(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	require.NotNil(t, e.store)
	require.NotNil(t, e.runtime)
	require.NotNil(t, e.Store())
	require.NotNil(t, e.Query())

	// Verify the DB is usable (migration ran).
	_, err := e.Store().InsertFile(&store.File{Path: "/tmp/a.lua", Hash: "abc", LastIndexed: time.Now()})
	require.NoError(t, err)
}

func TestNew_InvalidPath(t *testing.T) {
	t.Parallel()
	_, err := New("/nonexistent/dir/db.sqlite")
	require.Error(t, err)
}

func TestOptions(t *testing.T) {
	t.Parallel()
	m, err := config.NewMatcher([]string{"vendor"}, nil)
	require.NoError(t, err)
	e := newTestEngine(t,
		WithParallel(false),
		WithoutPrelude(),
		WithExclude(m),
		WithGlobals(map[string]types.Type{"vim": types.Number}),
		WithSeverity(map[string]analysis.Severity{"x": analysis.SeverityHint}),
		WithRulesDir("rules"),
	)

	assert.False(t, e.useParallel)
	assert.False(t, e.prelude)
	assert.Same(t, m, e.exclude)
	assert.Equal(t, types.Number, e.globals["vim"])
	assert.Equal(t, analysis.SeverityHint, e.severity["x"])
	assert.Equal(t, "rules", e.rulesDir)
	assert.Len(t, e.analysisOptions(), 3)
}

func TestOptionsFromConfig(t *testing.T) {
	t.Parallel()
	off := false
	cfg := config.Default()
	cfg.RulesDir = "rules"
	cfg.Analysis.Prelude = &off
	cfg.Analysis.Globals = map[string]string{"game": "{score: number}"}
	cfg.Severity = map[string]string{analysis.CodeRedefinedLocal: "error"}

	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	e := newTestEngine(t, opts...)

	assert.Equal(t, "rules", e.rulesDir)
	assert.False(t, e.prelude)
	assert.Contains(t, e.globals, "game")
	assert.Equal(t, analysis.SeverityError, e.severity[analysis.CodeRedefinedLocal])
	assert.NotNil(t, e.exclude)
}

func TestOptionsFromConfig_Errors(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Analysis.Globals = map[string]string{"bad": "{"}
	_, err := OptionsFromConfig(cfg)
	assert.ErrorContains(t, err, `global "bad"`)

	cfg = config.Default()
	cfg.Severity = map[string]string{"x": "fatal"}
	_, err = OptionsFromConfig(cfg)
	assert.ErrorContains(t, err, `severity of "x"`)
}

// =============================================================================
// Analyze
// =============================================================================

func TestAnalyze_DoesNotTouchStore(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	rep, err := e.Analyze(context.Background(), "main.lua", []byte(testSource))
	require.NoError(t, err)
	assert.Equal(t, "main.lua", rep.Path)
	assert.Len(t, rep.Result.Symbols, 3)
	assert.True(t, hasCode(rep.Diagnostics(), analysis.CodeBreakOutside))
	assert.True(t, rep.HasErrors())

	files, err := e.Query().Files()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestAnalyze_SyntaxError(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	rep, err := e.Analyze(context.Background(), "bad.lua", []byte("local x = 1\nlocal = 2\n"))
	require.NoError(t, err)
	require.NotNil(t, rep.Result.SyntaxError)
	diags := rep.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, analysis.CodeSyntax, diags[0].Code)
}

func TestAnalyze_RulesAndSeverityOverride(t *testing.T) {
	t.Parallel()
	rules := fstest.MapFS{
		"first_line.risor": {Data: []byte(`report({"message": "first line", "code": "first", "start_line": 0})`)},
	}
	e := newTestEngine(t,
		WithRulesFS(rules),
		WithSeverity(map[string]analysis.Severity{"first": analysis.SeverityError}),
	)

	rep, err := e.Analyze(context.Background(), "main.lua", []byte("local y = 2\n"))
	require.NoError(t, err)
	require.Len(t, rep.Rules, 1)
	assert.Equal(t, "first line", rep.Rules[0].Message)
	assert.Equal(t, analysis.SeverityError, rep.Rules[0].Severity)
	assert.True(t, rep.HasErrors())
}

func TestAnalyze_RuleFailureKeepsReport(t *testing.T) {
	t.Parallel()
	rules := fstest.MapFS{
		"broken.risor": {Data: []byte(`undefined_function()`)},
	}
	e := newTestEngine(t, WithRulesFS(rules))

	rep, err := e.Analyze(context.Background(), "main.lua", []byte("local y = 2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.risor")
	require.NotNil(t, rep)
	assert.Len(t, rep.Result.Symbols, 1)
}

func TestReport_DiagnosticsOrdered(t *testing.T) {
	t.Parallel()
	at := func(line int) analysis.Diagnostic {
		var d analysis.Diagnostic
		d.Range.Start.Line = line
		return d
	}
	rep := &Report{
		Result: &analysis.Result{Diagnostics: []analysis.Diagnostic{at(1), at(5)}},
		Rules:  []analysis.Diagnostic{at(3), at(0)},
	}
	var lines []int
	for _, d := range rep.Diagnostics() {
		lines = append(lines, d.Range.Start.Line)
	}
	assert.Equal(t, []int{0, 1, 3, 5}, lines)
	assert.False(t, rep.HasErrors())
}

// =============================================================================
// Indexing
// =============================================================================

func TestIndexFiles_SkipsNonLua(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	tmp := writeFile(t, t.TempDir(), "readme.txt", "hello")

	require.NoError(t, e.IndexFiles(context.Background(), []string{tmp}))

	f, err := e.Store().FileByPath(tmp)
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestIndexFiles_SkipsUnchangedFiles(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	content := "local a = 1\n"
	tmp := writeFile(t, t.TempDir(), "main.lua", content)

	// Pre-insert with the correct hash and no rows.
	_, err := e.Store().InsertFile(&store.File{
		Path: tmp, Hash: store.ContentHash([]byte(content)), LastIndexed: time.Now(),
	})
	require.NoError(t, err)

	require.NoError(t, e.IndexFiles(context.Background(), []string{tmp}))

	f, err := e.Store().FileByPath(tmp)
	require.NoError(t, err)
	syms, err := e.Store().SymbolsByFile(f.ID)
	require.NoError(t, err)
	assert.Empty(t, syms, "unchanged file must not be re-analysed")
}

func TestIndexFiles_StoresRows(t *testing.T) {
	t.Parallel()
	for _, parallel := range []bool{true, false} {
		e := newTestEngine(t, WithParallel(parallel))
		tmp := writeFile(t, t.TempDir(), "main.lua", testSource)

		require.NoError(t, e.IndexFiles(context.Background(), []string{tmp}))

		f, err := e.Store().FileByPath(tmp)
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, store.ContentHash([]byte(testSource)), f.Hash)
		assert.Equal(t, 7, f.LineCount)

		syms, err := e.Store().SymbolsByFile(f.ID)
		require.NoError(t, err)
		require.Len(t, syms, 3)
		assert.Equal(t, "greet", syms[1].Name)
		assert.Equal(t, "function", syms[1].Kind)

		diags, err := e.Store().DiagnosticsByFile(f.ID)
		require.NoError(t, err)
		var codes []string
		for _, d := range diags {
			codes = append(codes, d.Code)
			assert.Equal(t, "analysis", d.Source)
		}
		assert.Contains(t, codes, analysis.CodeBreakOutside)

		scopes, err := e.Store().ScopesByFile(f.ID)
		require.NoError(t, err)
		require.NotEmpty(t, scopes)
		assert.Equal(t, "global", scopes[0].Tag)
		assert.Nil(t, scopes[0].ParentScopeID)
	}
}

func TestIndexFiles_ReplacesChangedFile(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	tmp := writeFile(t, t.TempDir(), "main.lua", testSource)
	ctx := context.Background()

	require.NoError(t, e.IndexFiles(ctx, []string{tmp}))
	before, err := e.Store().FileByPath(tmp)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(tmp, []byte("local only = true\n"), 0o644))
	require.NoError(t, e.IndexFiles(ctx, []string{tmp}))

	after, err := e.Store().FileByPath(tmp)
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID)
	assert.NotEqual(t, before.Hash, after.Hash)

	syms, err := e.Store().SymbolsByFile(after.ID)
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "only", syms[0].Name)

	diags, err := e.Store().DiagnosticsByFile(after.ID)
	require.NoError(t, err)
	assert.Empty(t, diags)
}

func TestIndexFiles_RemovedFileIsDropped(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	tmp := writeFile(t, t.TempDir(), "gone.lua", "local a = 1\n")
	ctx := context.Background()

	require.NoError(t, e.IndexFiles(ctx, []string{tmp}))
	require.NoError(t, os.Remove(tmp))
	require.NoError(t, e.IndexFiles(ctx, []string{tmp}))

	f, err := e.Store().FileByPath(tmp)
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestIndexFiles_RuleDiagnosticsStored(t *testing.T) {
	t.Parallel()
	rules := fstest.MapFS{
		"every_file.risor": {Data: []byte(`report({"message": "seen", "severity": "info", "start_line": 0})`)},
	}
	e := newTestEngine(t, WithRulesFS(rules))
	tmp := writeFile(t, t.TempDir(), "main.lua", "local a = 1\n")

	require.NoError(t, e.IndexFiles(context.Background(), []string{tmp}))

	diags, err := e.Query().Diagnostics(tmp)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, "seen", diags[0].Message)
	assert.Equal(t, "rule", diags[0].Source)
	assert.Equal(t, "every_file", diags[0].Code)
	assert.Equal(t, int(analysis.SeverityInformation), diags[0].Severity)
}

func TestIndexFiles_BrokenRuleDoesNotFailIndexing(t *testing.T) {
	t.Parallel()
	rules := fstest.MapFS{
		"broken.risor": {Data: []byte(`undefined_function()`)},
	}
	e := newTestEngine(t, WithRulesFS(rules))
	tmp := writeFile(t, t.TempDir(), "main.lua", "local a = 1\n")

	require.NoError(t, e.IndexFiles(context.Background(), []string{tmp}))

	syms, err := e.Query().Symbols(tmp)
	require.NoError(t, err)
	assert.Len(t, syms, 1)
}

func TestIndexDirectory_HonoursExcludes(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	keep := writeFile(t, root, "src/main.lua", "local a = 1\n")
	writeFile(t, root, "vendor/lib.lua", "local b = 2\n")
	writeFile(t, root, ".hidden/x.lua", "local c = 3\n")
	writeFile(t, root, "src/main_spec.lua", "local d = 4\n")
	writeFile(t, root, "src/notes.txt", "not lua")
	rule := writeFile(t, root, "rules/r.risor", "")

	m, err := config.NewMatcher([]string{"vendor"}, []string{"*_spec.lua"})
	require.NoError(t, err)
	e := newTestEngine(t, WithExclude(m))

	paths, err := e.ListFiles(root)
	require.NoError(t, err)
	assert.Equal(t, []string{keep}, paths)
	assert.NotContains(t, paths, rule)

	require.NoError(t, e.IndexDirectory(context.Background(), root))
	files, err := e.Query().Files()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, keep, files[0].Path)
}

func TestIndexDirectory_MissingRoot(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	err := e.IndexDirectory(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

// =============================================================================
// Rules hash
// =============================================================================

func TestRulesChanged(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "a.risor", `a := 1`)
	e := newTestEngine(t, WithRulesDir(dir))
	src := writeFile(t, t.TempDir(), "main.lua", "local a = 1\n")

	assert.True(t, e.RulesChanged(), "first run has no stored hash")

	require.NoError(t, e.IndexFiles(context.Background(), []string{src}))
	assert.False(t, e.RulesChanged())

	writeFile(t, dir, "b.risor", `b := 2`)
	assert.True(t, e.RulesChanged())
}

func TestRemove(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	src := writeFile(t, t.TempDir(), "main.lua", "local a = 1\n")
	require.NoError(t, e.IndexFiles(context.Background(), []string{src}))

	require.NoError(t, e.Remove(src))
	require.NoError(t, e.Remove(src), "removing an unknown file is a no-op")

	files, err := e.Query().Files()
	require.NoError(t, err)
	assert.Empty(t, files)
}
