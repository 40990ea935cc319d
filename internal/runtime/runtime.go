// Package runtime runs user lint rules written in Risor over a finished
// analysis result. Each rule sees one document at a time and reports extra
// diagnostics through host functions.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/moonlens/internal/analysis"
)

const ruleExt = ".risor"

// Document is what a rule runs against.
type Document struct {
	Path   string
	Source []byte
	Result *analysis.Result
}

// Runtime embeds a Risor VM and exposes a document's analysis to rule
// scripts.
type Runtime struct {
	rulesDir string
	fsys     fs.FS
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load rules from an fs.FS
// instead of from disk. Also configures the Risor importer to use
// FSImporter for import statement resolution.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// NewRuntime creates a Runtime reading rules from rulesDir. An empty
// rulesDir with no fs.FS means there are no rules.
func NewRuntime(rulesDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{rulesDir: rulesDir}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runtime) source() fs.FS {
	if r.fsys != nil {
		return r.fsys
	}
	if r.rulesDir != "" {
		return os.DirFS(r.rulesDir)
	}
	return nil
}

// Rules lists the rule scripts, sorted by path. Scripts whose name starts
// with an underscore are library modules for import and never run as rules.
func (r *Runtime) Rules() ([]string, error) {
	fsys := r.source()
	if fsys == nil {
		return nil, nil
	}
	var rules []string
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ruleExt || strings.HasPrefix(d.Name(), "_") {
			return nil
		}
		rules = append(rules, path)
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("runtime: listing rules: %w", err)
	}
	sort.Strings(rules)
	return rules, nil
}

// Sources reads every script under the rules source, modules included,
// keyed by path. The engine hashes it to detect rule changes.
func (r *Runtime) Sources() (map[string][]byte, error) {
	fsys := r.source()
	out := map[string][]byte{}
	if fsys == nil {
		return out, nil
	}
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ruleExt {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		out[path] = data
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("runtime: reading rules: %w", err)
	}
	return out, nil
}

// RunRules runs every rule against doc and returns what they reported.
// A failing rule does not stop the others; all failures come back joined,
// each wrapped with its script path.
func (r *Runtime) RunRules(ctx context.Context, doc *Document) ([]analysis.Diagnostic, error) {
	rules, err := r.Rules()
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, nil
	}
	host := newHost(doc)
	defer host.close()

	var errs []error
	for _, rule := range rules {
		src, err := r.LoadScript(rule)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		host.rule = ruleName(rule)
		if err := r.eval(ctx, src, rule, host.globals(nil)); err != nil {
			errs = append(errs, err)
		}
	}
	return host.reported, errors.Join(errs...)
}

// RunSource executes Risor source directly against doc with all standard
// globals plus any extra globals. Useful for testing without script files.
func (r *Runtime) RunSource(ctx context.Context, source string, doc *Document, extraGlobals map[string]any) ([]analysis.Diagnostic, error) {
	host := newHost(doc)
	defer host.close()
	host.rule = "inline"
	err := r.eval(ctx, source, "<inline>", host.globals(extraGlobals))
	return host.reported, err
}

func (r *Runtime) eval(ctx context.Context, source, label string, globals map[string]any) error {
	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	// Wire importer so Risor import statements resolve correctly.
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	_, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return fmt.Errorf("runtime: rule %s: %w", label, err)
	}
	return nil
}

// buildImporter returns a Risor importer configured for the Runtime's rule source.
// Returns nil if neither fs.FS nor rulesDir is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{ruleExt},
		})
	}
	if r.rulesDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.rulesDir,
			Extensions:  []string{ruleExt},
		})
	}
	return nil
}

// LoadScript reads a .risor file and returns its source code.
// When an fs.FS is configured, uses fs.ReadFile on it.
// Otherwise, uses os.ReadFile with rulesDir as the base directory.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		// Paths inside an fs.FS are always relative ("/lint/x.risor" -> "lint/x.risor").
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading rule %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) {
		fullPath = filepath.Join(r.rulesDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading rule %s: %w", fullPath, err)
	}
	return string(data), nil
}

// ruleName is the default diagnostic code of a rule: its file name
// without the extension.
func ruleName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ruleExt)
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
