package runtime

import (
	"context"
	"fmt"

	"github.com/risor-io/risor/object"

	"github.com/jward/moonlens/internal/analysis"
	"github.com/jward/moonlens/internal/position"
	"github.com/jward/moonlens/internal/types"
)

// Result bridge functions. Risor scripts cannot construct Go structs, so
// results go out as maps of primitives and reports come back as maps.

// diagnostics() → []map{message, severity, code, start_line, ...}
func (h *host) makeDiagnosticsFn() *object.Builtin {
	return object.NewBuiltin("diagnostics", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("diagnostics", 0, len(args))
		}
		results := []object.Object{}
		if h.doc.Result != nil {
			for _, d := range h.doc.Result.Diagnostics {
				m := rangeMap(d.Range)
				m["message"] = object.NewString(d.Message)
				m["severity"] = object.NewString(d.Severity.String())
				m["code"] = object.NewString(d.Code)
				results = append(results, object.NewMap(m))
			}
		}
		return object.NewList(results)
	})
}

// symbols() → []map{name, kind, detail, start_line, ..., children}
func (h *host) makeSymbolsFn() *object.Builtin {
	return object.NewBuiltin("symbols", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("symbols", 0, len(args))
		}
		if h.doc.Result == nil {
			return object.NewList([]object.Object{})
		}
		return symbolsToList(h.doc.Result.Symbols)
	})
}

// report(map{message, severity, code, start_line, start_col, end_line, end_col})
//
// severity defaults to "warning", code to the rule's file name and the end
// position to the start position.
func (h *host) makeReportFn() *object.Builtin {
	return object.NewBuiltin("report", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("report", 1, len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("report: %v", err)
		}
		d, err := h.diagnosticFromMap(m)
		if err != nil {
			return object.Errorf("report: %v", err)
		}
		h.reported = append(h.reported, d)
		return object.Nil
	})
}

func (h *host) diagnosticFromMap(m map[string]object.Object) (analysis.Diagnostic, error) {
	msg := getString(m, "message")
	if msg == "" {
		return analysis.Diagnostic{}, fmt.Errorf("message is required")
	}
	sev, err := analysis.ParseSeverity(getStringDefault(m, "severity", "warning"))
	if err != nil {
		return analysis.Diagnostic{}, err
	}
	start := position.Position{Line: getInt(m, "start_line"), Character: getInt(m, "start_col")}
	end := start
	if _, ok := m["end_line"]; ok {
		end = position.Position{Line: getInt(m, "end_line"), Character: getInt(m, "end_col")}
	}
	if end.Before(start) {
		return analysis.Diagnostic{}, fmt.Errorf("range end %s before start %s", end, start)
	}
	return analysis.Diagnostic{
		Message:  msg,
		Range:    position.Range{Start: start, End: end},
		Severity: sev,
		Code:     getStringDefault(m, "code", h.rule),
	}, nil
}

func rangeMap(r position.Range) map[string]object.Object {
	return map[string]object.Object{
		"start_line": object.NewInt(int64(r.Start.Line)),
		"start_col":  object.NewInt(int64(r.Start.Character)),
		"end_line":   object.NewInt(int64(r.End.Line)),
		"end_col":    object.NewInt(int64(r.End.Character)),
	}
}

// symbolsToList converts an outline to a Risor list of maps, children nested.
func symbolsToList(syms []*analysis.Symbol) object.Object {
	results := []object.Object{}
	for _, sym := range syms {
		m := rangeMap(sym.Range)
		m["name"] = object.NewString(sym.Name)
		m["kind"] = object.NewString(sym.Kind.String())
		m["detail"] = object.NewString(sym.Detail)
		m["children"] = symbolsToList(sym.Children)
		results = append(results, object.NewMap(m))
	}
	return object.NewList(results)
}

func infoToMap(info *analysis.Info) object.Object {
	m := rangeMap(info.Range)
	m["name"] = object.NewString(info.Name)
	m["type"] = object.NewString(types.Represent(info.Type))
	if info.Doc != nil {
		m["doc"] = object.NewString(info.Doc.Body)
	} else {
		m["doc"] = object.Nil
	}
	if info.Scope != nil {
		m["scope"] = object.NewString(info.Scope.Tag)
	} else {
		m["scope"] = object.Nil
	}
	history := []object.Object{}
	for _, item := range info.History {
		history = append(history, object.NewMap(map[string]object.Object{
			"scope": object.NewString(item.ScopeTag),
			"type":  object.NewString(item.Type),
		}))
	}
	m["history"] = object.NewList(history)
	return object.NewMap(m)
}

// --- Map argument helpers ---

func extractMap(obj object.Object) (map[string]object.Object, error) {
	m, ok := obj.(*object.Map)
	if !ok {
		return nil, fmt.Errorf("expected map, got %s", obj.Type())
	}
	return m.Value(), nil
}

func getString(m map[string]object.Object, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	if s, ok := v.(*object.String); ok {
		return s.Value()
	}
	return ""
}

func getStringDefault(m map[string]object.Object, key, def string) string {
	v := getString(m, key)
	if v == "" {
		return def
	}
	return v
}

func getInt(m map[string]object.Object, key string) int {
	v, ok := m[key]
	if !ok {
		return 0
	}
	if i, ok := v.(*object.Int); ok {
		return int(i.Value())
	}
	if f, ok := v.(*object.Float); ok {
		return int(f.Value())
	}
	return 0
}

func toInt64(obj object.Object) (int64, error) {
	if i, ok := obj.(*object.Int); ok {
		return i.Value(), nil
	}
	if f, ok := obj.(*object.Float); ok {
		return int64(f.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}
