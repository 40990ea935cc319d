// Package analysis is the scope-tracking tree walker. One call to Analyze
// runs one traversal over one document and owns every piece of state it
// builds; results of different documents share nothing.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jward/moonlens/internal/ast"
	"github.com/jward/moonlens/internal/doc"
	"github.com/jward/moonlens/internal/position"
	"github.com/jward/moonlens/internal/scope"
	"github.com/jward/moonlens/internal/syntax"
	"github.com/jward/moonlens/internal/types"
)

// InternalError is a walker bug detected at run time, such as popping a
// context frame of the wrong kind.
type InternalError struct {
	Message string
}

func (e *InternalError) Error() string { return "analysis: internal error: " + e.Message }

func internal(format string, args ...any) {
	panic(&InternalError{Message: fmt.Sprintf(format, args...)})
}

type config struct {
	prelude  bool
	globals  map[string]types.Type
	severity map[string]Severity
}

// Option configures a traversal.
type Option func(*config)

// WithoutPrelude leaves the global scope empty instead of seeding it with
// the standard library.
func WithoutPrelude() Option {
	return func(c *config) { c.prelude = false }
}

// WithGlobals declares extra globals before the walk.
func WithGlobals(globals map[string]types.Type) Option {
	return func(c *config) {
		for name, t := range globals {
			c.globals[name] = t
		}
	}
}

// WithSeverity overrides the severity of diagnostics by code.
func WithSeverity(overrides map[string]Severity) Option {
	return func(c *config) {
		for code, s := range overrides {
			c.severity[code] = s
		}
	}
}

func newConfig(opts []Option) *config {
	c := &config{prelude: true, globals: map[string]types.Type{}, severity: map[string]Severity{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Analyze walks chunk. Walker invariant violations abort the traversal and
// come back as an error wrapping *scope.InvariantError or *InternalError;
// no partial result is returned for them.
func Analyze(chunk *ast.Chunk, comments []ast.Comment, opts ...Option) (*Result, error) {
	if chunk == nil {
		return nil, errors.New("analysis: nil chunk")
	}
	var res *Result
	err := guard(func() {
		w := newWalker(newConfig(opts), doc.Build(comments))
		chunk.Accept(w)
		res = w.result()
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// guard runs fn and turns the two walker panic types into an error. Any
// other panic keeps unwinding.
func guard(fn func()) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		switch e := r.(type) {
		case *scope.InvariantError:
			err = fmt.Errorf("analysis: %w", e)
		case *InternalError:
			err = e
		default:
			panic(r)
		}
	}()
	fn()
	return nil
}

// AnalyzeSource parses src and analyses it. A syntax error is not returned
// as an error: it becomes the only diagnostic of an otherwise empty result.
func AnalyzeSource(ctx context.Context, src []byte, opts ...Option) (*Result, error) {
	chunk, comments, err := syntax.Parse(ctx, src)
	if err != nil {
		var se *syntax.Error
		if !errors.As(err, &se) {
			return nil, err
		}
		return syntaxResult(se, newConfig(opts)), nil
	}
	return Analyze(chunk, comments, opts...)
}

func syntaxResult(se *syntax.Error, cfg *config) *Result {
	at := position.Position{Line: se.Line - 1, Character: se.Column}
	d := Diagnostic{
		Message:  se.Message,
		Range:    position.Range{Start: at, End: position.Position{Line: at.Line, Character: at.Character + 1}},
		Severity: SeverityError,
		Code:     CodeSyntax,
	}
	if s, ok := cfg.severity[CodeSyntax]; ok {
		d.Severity = s
	}
	return &Result{
		Diagnostics: []Diagnostic{d},
		LUT:         map[position.Position]*Info{},
		Global:      scope.New("global"),
		SyntaxError: se,
		types:       map[ast.Node]types.Type{},
		strings:     map[*ast.StringLiteral]string{},
	}
}

func sortInfos(infos []*Info) {
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Range.Start.Before(infos[j].Range.Start)
	})
}

func sortDiagnostics(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		return diags[i].Range.Start.Before(diags[j].Range.Start)
	})
}
