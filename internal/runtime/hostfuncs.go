package runtime

import (
	"context"
	"log/slog"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/moonlens/internal/analysis"
	"github.com/jward/moonlens/internal/position"
	"github.com/jward/moonlens/internal/syntax"
	"github.com/jward/moonlens/internal/types"
)

// host holds the per-document state behind the host functions. Rules of
// one document run one after another and share it.
type host struct {
	doc      *Document
	rule     string
	reported []analysis.Diagnostic

	// Parsed on first use by tree().
	tree *sitter.Tree
}

func newHost(doc *Document) *host {
	if doc == nil {
		doc = &Document{}
	}
	return &host{doc: doc}
}

func (h *host) close() {
	if h.tree != nil {
		h.tree.Close()
		h.tree = nil
	}
}

// globals constructs the full set of globals exposed to Risor scripts.
func (h *host) globals(extra map[string]any) map[string]any {
	globals := map[string]any{
		"file_path":   h.doc.Path,
		"source":      string(h.doc.Source),
		"diagnostics": h.makeDiagnosticsFn(),
		"symbols":     h.makeSymbolsFn(),
		"hover_at":    h.makeHoverAtFn(),
		"scope_at":    h.makeScopeAtFn(),
		"parse_type":  makeParseTypeFn(),
		"report":      h.makeReportFn(),
		"tree":        h.makeTreeFn(),
		"node_text":   h.makeNodeTextFn(),
		"node_child":  makeNodeChildFn(),
		"query":       h.makeQueryFn(),
		"log":         mustProxy(&logObject{prefix: "moonlens", path: h.doc.Path}),
	}
	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

// makeTreeFn creates the "tree" host function.
//
// tree() → root Node of the document's syntax tree
func (h *host) makeTreeFn() *object.Builtin {
	return object.NewBuiltin("tree", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("tree", 0, len(args))
		}
		if h.tree == nil {
			tree, err := syntax.ParseTree(ctx, h.doc.Source)
			if err != nil {
				return object.Errorf("tree: tree-sitter parse failed: %v", err)
			}
			h.tree = tree
		}
		proxy, err := object.NewProxy(h.tree.RootNode())
		if err != nil {
			return object.Errorf("tree: proxy error: %v", err)
		}
		return proxy
	})
}

func nodeArg(name string, obj object.Object) (*sitter.Node, *object.Error) {
	proxy, ok := obj.(*object.Proxy)
	if !ok {
		return nil, object.Errorf("%s: expected proxy (Node), got %s", name, obj.Type())
	}
	node, ok := proxy.Interface().(*sitter.Node)
	if !ok {
		return nil, object.Errorf("%s: expected *sitter.Node, got %T", name, proxy.Interface())
	}
	return node, nil
}

// makeNodeTextFn creates the "node_text" host function.
//
// node_text(node) → string
//
// Exists because Risor's proxy system cannot convert strings to []byte
// for node.Content([]byte).
func (h *host) makeNodeTextFn() *object.Builtin {
	return object.NewBuiltin("node_text", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_text", 1, len(args))
		}
		node, errObj := nodeArg("node_text", args[0])
		if errObj != nil {
			return errObj
		}
		return object.NewString(syntax.NodeText(node, h.doc.Source))
	})
}

// makeQueryFn creates the "query" host function.
//
// query(pattern, node) → []map[string]Node
//
// Each map has capture names as keys and proxied Nodes as values.
func (h *host) makeQueryFn() *object.Builtin {
	return object.NewBuiltin("query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("query", 2, len(args))
		}
		patternStr, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("query: pattern must be a string, got %s", args[0].Type())
		}
		node, errObj := nodeArg("query", args[1])
		if errObj != nil {
			return errObj
		}

		q, err := sitter.NewQuery([]byte(patternStr.Value()), syntax.Language())
		if err != nil {
			return object.Errorf("query: invalid pattern: %v", err)
		}
		defer q.Close()

		cursor := sitter.NewQueryCursor()
		defer cursor.Close()
		cursor.Exec(q, node)

		results := []object.Object{}
		for {
			match, ok := cursor.NextMatch()
			if !ok {
				break
			}
			match = cursor.FilterPredicates(match, h.doc.Source)

			matchMap := make(map[string]object.Object)
			for _, capture := range match.Captures {
				name := q.CaptureNameForId(capture.Index)
				nodeP, err := object.NewProxy(capture.Node)
				if err != nil {
					return object.Errorf("query: proxy error for capture %q: %v", name, err)
				}
				matchMap[name] = nodeP
			}
			results = append(results, object.NewMap(matchMap))
		}
		return object.NewList(results)
	})
}

// makeNodeChildFn creates "node_child", a safe wrapper for ChildByFieldName
// that returns Risor nil instead of a proxied Go nil pointer.
//
// node_child(node, fieldName) → Node or nil
func makeNodeChildFn() *object.Builtin {
	return object.NewBuiltin("node_child", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("node_child", 2, len(args))
		}
		node, errObj := nodeArg("node_child", args[0])
		if errObj != nil {
			return errObj
		}
		fieldStr, ok := args[1].(*object.String)
		if !ok {
			return object.Errorf("node_child: field must be a string, got %s", args[1].Type())
		}

		child := node.ChildByFieldName(fieldStr.Value())
		if child == nil {
			return object.Nil
		}
		p, err := object.NewProxy(child)
		if err != nil {
			return object.Errorf("node_child: proxy error: %v", err)
		}
		return p
	})
}

// makeParseTypeFn creates "parse_type".
//
// parse_type(text) → canonical string form of the type
func makeParseTypeFn() *object.Builtin {
	return object.NewBuiltin("parse_type", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("parse_type", 1, len(args))
		}
		text, err := toString(args[0])
		if err != nil {
			return object.Errorf("parse_type: %v", err)
		}
		t, err := types.Parse(text)
		if err != nil {
			return object.Errorf("parse_type: %v", err)
		}
		return object.NewString(types.Represent(t))
	})
}

// makeHoverAtFn creates "hover_at".
//
// hover_at(line, col) → map{name, type, doc, scope, start_line, ...} or nil
func (h *host) makeHoverAtFn() *object.Builtin {
	return object.NewBuiltin("hover_at", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("hover_at", 2, len(args))
		}
		pos, errObj := positionArgs("hover_at", args[0], args[1])
		if errObj != nil {
			return errObj
		}
		if h.doc.Result == nil {
			return object.Nil
		}
		info, ok := h.doc.Result.InfoAt(pos)
		if !ok {
			return object.Nil
		}
		return infoToMap(info)
	})
}

// makeScopeAtFn creates "scope_at".
//
// scope_at(line, col) → map{tag, depth, variables}
func (h *host) makeScopeAtFn() *object.Builtin {
	return object.NewBuiltin("scope_at", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("scope_at", 2, len(args))
		}
		pos, errObj := positionArgs("scope_at", args[0], args[1])
		if errObj != nil {
			return errObj
		}
		if h.doc.Result == nil || h.doc.Result.Global == nil {
			return object.Nil
		}
		sc := h.doc.Result.ScopeAt(pos)
		vars := []object.Object{}
		for _, v := range sc.Variables() {
			vars = append(vars, object.NewString(v.Name))
		}
		return object.NewMap(map[string]object.Object{
			"tag":       object.NewString(sc.Tag),
			"depth":     object.NewInt(int64(sc.Depth())),
			"variables": object.NewList(vars),
		})
	})
}

func positionArgs(name string, line, col object.Object) (position.Position, *object.Error) {
	l, err := toInt64(line)
	if err != nil {
		return position.Position{}, object.Errorf("%s: line: %v", name, err)
	}
	c, err := toInt64(col)
	if err != nil {
		return position.Position{}, object.Errorf("%s: col: %v", name, err)
	}
	return position.Position{Line: int(l), Character: int(c)}, nil
}

// logObject provides log.Info/Warn/Error methods for Risor scripts.
type logObject struct {
	prefix string
	path   string
}

func (l *logObject) Info(msg string) {
	slog.Info(msg, "source", l.prefix, "path", l.path)
}

func (l *logObject) Warn(msg string) {
	slog.Warn(msg, "source", l.prefix, "path", l.path)
}

func (l *logObject) Error(msg string) {
	slog.Error(msg, "source", l.prefix, "path", l.path)
}
