package moonlens

import (
	"fmt"

	"github.com/jward/moonlens/internal/analysis"
	"github.com/jward/moonlens/internal/position"
	"github.com/jward/moonlens/internal/scope"
	"github.com/jward/moonlens/internal/store"
	"github.com/jward/moonlens/internal/types"
)

// Diagnostic sources.
const (
	sourceAnalysis = "analysis"
	sourceRule     = "rule"
)

// record writes the rows of one report to ds. Parents are inserted before
// their children so the IDs that ds hands back can be used as references.
func record(ds store.DataStore, rep *Report, lines int) error {
	res := rep.Result

	symbolIDs := make(map[*analysis.Symbol]int64)
	var symErr error
	analysis.Walk(res.Symbols, func(s *analysis.Symbol) {
		if symErr != nil {
			return
		}
		row := &store.Symbol{
			Name:   s.Name,
			Kind:   s.Kind.String(),
			Detail: s.Detail,
		}
		row.StartLine, row.StartCol, row.EndLine, row.EndCol = unpack(s.Range)
		row.SelStartLine, row.SelStartCol, row.SelEndLine, row.SelEndCol = unpack(s.SelectionRange)
		if s.Parent != nil {
			if id, ok := symbolIDs[s.Parent]; ok {
				row.ParentSymbolID = &id
			}
		}
		id, err := ds.InsertSymbol(row)
		if err != nil {
			symErr = fmt.Errorf("symbol %q: %w", s.Name, err)
			return
		}
		symbolIDs[s] = id
	})
	if symErr != nil {
		return symErr
	}

	// The global scope covers the whole document.
	scopeIDs := make(map[*scope.Scope]int64)
	global := &store.Scope{Tag: res.Global.Tag, EndLine: lines}
	id, err := ds.InsertScope(global)
	if err != nil {
		return fmt.Errorf("scope %q: %w", global.Tag, err)
	}
	scopeIDs[res.Global] = id
	for _, entry := range res.Scopes {
		row := &store.Scope{Tag: entry.Scope.Tag, Depth: entry.Scope.Depth()}
		row.StartLine, row.StartCol, row.EndLine, row.EndCol = unpack(entry.Range)
		if parent, ok := scopeIDs[entry.Scope.Parent]; ok {
			row.ParentScopeID = &parent
		}
		id, err := ds.InsertScope(row)
		if err != nil {
			return fmt.Errorf("scope %q: %w", row.Tag, err)
		}
		scopeIDs[entry.Scope] = id
	}

	for _, d := range res.Diagnostics {
		if err := insertDiagnostic(ds, d, sourceAnalysis); err != nil {
			return err
		}
	}
	for _, d := range rep.Rules {
		if err := insertDiagnostic(ds, d, sourceRule); err != nil {
			return err
		}
	}

	for _, info := range res.Infos() {
		if _, err := ds.InsertHover(hoverRow(info)); err != nil {
			return fmt.Errorf("hover %q: %w", info.Name, err)
		}
	}
	return nil
}

func insertDiagnostic(ds store.DataStore, d analysis.Diagnostic, source string) error {
	row := &store.Diagnostic{
		Code:     d.Code,
		Severity: int(d.Severity),
		Message:  d.Message,
		Source:   source,
	}
	row.StartLine, row.StartCol, row.EndLine, row.EndCol = unpack(d.Range)
	if _, err := ds.InsertDiagnostic(row); err != nil {
		return fmt.Errorf("diagnostic %q: %w", d.Message, err)
	}
	return nil
}

func hoverRow(info *analysis.Info) *store.Hover {
	h := &store.Hover{
		Name:     info.Name,
		TypeExpr: types.Represent(info.Type),
	}
	if info.Doc != nil {
		h.Doc = info.Doc.Body
	}
	if info.Scope != nil {
		h.ScopeTag = info.Scope.Tag
	}
	for _, item := range info.History {
		h.History = append(h.History, store.HistoryEntry{Scope: item.ScopeTag, Type: item.Type})
	}
	h.StartLine, h.StartCol, h.EndLine, h.EndCol = unpack(info.Range)
	return h
}

func unpack(r position.Range) (startLine, startCol, endLine, endCol int) {
	return r.Start.Line, r.Start.Character, r.End.Line, r.End.Character
}
