package store

import (
	"database/sql"
	"fmt"
)

// --- File operations ---

func (s *Store) InsertFile(f *File) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO files (path, hash, line_count, last_indexed) VALUES (?, ?, ?, ?)",
		f.Path, f.Hash, f.LineCount, f.LastIndexed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return id, nil
}

// UpdateFile rewrites the hash, line count and index time of an existing file row.
func (s *Store) UpdateFile(f *File) error {
	_, err := s.db.Exec(
		"UPDATE files SET hash = ?, line_count = ?, last_indexed = ? WHERE id = ?",
		f.Hash, f.LineCount, f.LastIndexed, f.ID,
	)
	if err != nil {
		return fmt.Errorf("update file: %w", err)
	}
	return nil
}

const fileCols = `id, path, hash, line_count, last_indexed`

func scanFile(scanner rowScanner) (*File, error) {
	f := &File{}
	return f, scanner.Scan(&f.ID, &f.Path, &f.Hash, &f.LineCount, &f.LastIndexed)
}

func (s *Store) FileByPath(path string) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE path = ?", path))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

// Files returns every indexed file ordered by path.
func (s *Store) Files() ([]*File, error) {
	rows, err := s.db.Query("SELECT " + fileCols + " FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// --- Symbol operations ---

func (s *Store) InsertSymbol(sym *Symbol) (int64, error) {
	res, err := s.db.Exec(insertSymbolSQL, symbolArgs(sym)...)
	if err != nil {
		return 0, fmt.Errorf("insert symbol: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	sym.ID = id
	return id, nil
}

const insertSymbolSQL = `INSERT INTO symbols (file_id, name, kind, detail,
	start_line, start_col, end_line, end_col,
	sel_start_line, sel_start_col, sel_end_line, sel_end_col, parent_symbol_id)
 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func symbolArgs(sym *Symbol) []any {
	return []any{
		sym.FileID, sym.Name, sym.Kind, sym.Detail,
		sym.StartLine, sym.StartCol, sym.EndLine, sym.EndCol,
		sym.SelStartLine, sym.SelStartCol, sym.SelEndLine, sym.SelEndCol, sym.ParentSymbolID,
	}
}

// SymbolCols is the column list for symbol queries, exported for use by QueryBuilder.
const SymbolCols = `id, file_id, name, kind, detail,
	start_line, start_col, end_line, end_col,
	sel_start_line, sel_start_col, sel_end_line, sel_end_col, parent_symbol_id`

// ScanSymbolRow scans a single row into a Symbol. Exported for use by QueryBuilder.
func ScanSymbolRow(scanner rowScanner) (*Symbol, error) {
	sym := &Symbol{}
	var detail sql.NullString
	err := scanner.Scan(
		&sym.ID, &sym.FileID, &sym.Name, &sym.Kind, &detail,
		&sym.StartLine, &sym.StartCol, &sym.EndLine, &sym.EndCol,
		&sym.SelStartLine, &sym.SelStartCol, &sym.SelEndLine, &sym.SelEndCol, &sym.ParentSymbolID,
	)
	if err != nil {
		return nil, err
	}
	sym.Detail = detail.String
	return sym, nil
}

func (s *Store) querySymbols(query string, args ...any) ([]*Symbol, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var symbols []*Symbol
	for rows.Next() {
		sym, err := ScanSymbolRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// SymbolsByFile returns a file's symbols in insertion order, which is
// parent before child.
func (s *Store) SymbolsByFile(fileID int64) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE file_id = ? ORDER BY id", fileID)
}

func (s *Store) SymbolsByName(name string) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE name = ? ORDER BY id", name)
}

func (s *Store) SymbolChildren(symbolID int64) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE parent_symbol_id = ? ORDER BY id", symbolID)
}

// --- Diagnostic operations ---

func (s *Store) InsertDiagnostic(d *Diagnostic) (int64, error) {
	res, err := s.db.Exec(insertDiagnosticSQL, diagnosticArgs(d)...)
	if err != nil {
		return 0, fmt.Errorf("insert diagnostic: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	d.ID = id
	return id, nil
}

const insertDiagnosticSQL = `INSERT INTO diagnostics (file_id, code, severity, message, source,
	start_line, start_col, end_line, end_col)
 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func diagnosticArgs(d *Diagnostic) []any {
	source := d.Source
	if source == "" {
		source = "analysis"
	}
	return []any{
		d.FileID, d.Code, d.Severity, d.Message, source,
		d.StartLine, d.StartCol, d.EndLine, d.EndCol,
	}
}

const diagnosticCols = `id, file_id, code, severity, message, source, start_line, start_col, end_line, end_col`

func (s *Store) queryDiagnostics(query string, args ...any) ([]*Diagnostic, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var diags []*Diagnostic
	for rows.Next() {
		d := &Diagnostic{}
		var code sql.NullString
		if err := rows.Scan(
			&d.ID, &d.FileID, &code, &d.Severity, &d.Message, &d.Source,
			&d.StartLine, &d.StartCol, &d.EndLine, &d.EndCol,
		); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		d.Code = code.String
		diags = append(diags, d)
	}
	return diags, rows.Err()
}

// DiagnosticsByFile returns a file's diagnostics ordered by position.
func (s *Store) DiagnosticsByFile(fileID int64) ([]*Diagnostic, error) {
	return s.queryDiagnostics(
		"SELECT "+diagnosticCols+" FROM diagnostics WHERE file_id = ? ORDER BY start_line, start_col, id", fileID)
}

// DiagnosticsAtMost returns diagnostics across all files whose severity is
// at least as severe as sev (lower numbers are more severe).
func (s *Store) DiagnosticsAtMost(sev int) ([]*Diagnostic, error) {
	return s.queryDiagnostics(
		"SELECT "+diagnosticCols+" FROM diagnostics WHERE severity <= ? ORDER BY file_id, start_line, start_col, id", sev)
}

// --- Hover operations ---

func (s *Store) InsertHover(h *Hover) (int64, error) {
	res, err := s.db.Exec(insertHoverSQL, hoverArgs(h)...)
	if err != nil {
		return 0, fmt.Errorf("insert hover: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	h.ID = id
	return id, nil
}

const insertHoverSQL = `INSERT INTO hovers (file_id, name, type_expr, doc, scope_tag, history,
	start_line, start_col, end_line, end_col)
 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func hoverArgs(h *Hover) []any {
	return []any{
		h.FileID, h.Name, h.TypeExpr, h.Doc, h.ScopeTag, marshalHistory(h.History),
		h.StartLine, h.StartCol, h.EndLine, h.EndCol,
	}
}

const hoverCols = `id, file_id, name, type_expr, doc, scope_tag, history, start_line, start_col, end_line, end_col`

func scanHover(scanner rowScanner) (*Hover, error) {
	h := &Hover{}
	var doc, tag, history sql.NullString
	if err := scanner.Scan(
		&h.ID, &h.FileID, &h.Name, &h.TypeExpr, &doc, &tag, &history,
		&h.StartLine, &h.StartCol, &h.EndLine, &h.EndCol,
	); err != nil {
		return nil, err
	}
	h.Doc = doc.String
	h.ScopeTag = tag.String
	h.History = unmarshalHistory(history.String)
	return h, nil
}

func (s *Store) HoversByFile(fileID int64) ([]*Hover, error) {
	rows, err := s.db.Query("SELECT "+hoverCols+" FROM hovers WHERE file_id = ? ORDER BY start_line, start_col", fileID)
	if err != nil {
		return nil, fmt.Errorf("hovers by file: %w", err)
	}
	defer rows.Close()
	var hovers []*Hover
	for rows.Next() {
		h, err := scanHover(rows)
		if err != nil {
			return nil, fmt.Errorf("scan hover: %w", err)
		}
		hovers = append(hovers, h)
	}
	return hovers, rows.Err()
}

// HoverAt returns the hover starting exactly at (line, col), else the
// innermost hover whose range contains it. Nil when nothing matches.
func (s *Store) HoverAt(fileID int64, line, col int) (*Hover, error) {
	h, err := scanHover(s.db.QueryRow(
		"SELECT "+hoverCols+" FROM hovers WHERE file_id = ? AND start_line = ? AND start_col = ? LIMIT 1",
		fileID, line, col,
	))
	if err == nil {
		return h, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("hover at: %w", err)
	}
	h, err = scanHover(s.db.QueryRow(
		`SELECT `+hoverCols+` FROM hovers
		 WHERE file_id = ?`+containsClause+`
		 ORDER BY start_line DESC, start_col DESC LIMIT 1`,
		fileID, line, line, col, line, line, col,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hover at: %w", err)
	}
	return h, nil
}

// containsClause selects rows whose half-open range contains (line, col).
// It takes the position twice: line, line, col for the start bound and
// line, line, col for the end bound.
const containsClause = `
	AND (start_line < ? OR (start_line = ? AND start_col <= ?))
	AND (end_line > ? OR (end_line = ? AND end_col > ?))`

// --- Scope operations ---

func (s *Store) InsertScope(sc *Scope) (int64, error) {
	res, err := s.db.Exec(insertScopeSQL, scopeArgs(sc)...)
	if err != nil {
		return 0, fmt.Errorf("insert scope: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	sc.ID = id
	return id, nil
}

const insertScopeSQL = `INSERT INTO scopes (file_id, tag, depth, start_line, start_col, end_line, end_col, parent_scope_id)
 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func scopeArgs(sc *Scope) []any {
	return []any{
		sc.FileID, sc.Tag, sc.Depth,
		sc.StartLine, sc.StartCol, sc.EndLine, sc.EndCol, sc.ParentScopeID,
	}
}

const scopeCols = `id, file_id, tag, depth, start_line, start_col, end_line, end_col, parent_scope_id`

func scanScope(scanner rowScanner) (*Scope, error) {
	sc := &Scope{}
	return sc, scanner.Scan(
		&sc.ID, &sc.FileID, &sc.Tag, &sc.Depth,
		&sc.StartLine, &sc.StartCol, &sc.EndLine, &sc.EndCol, &sc.ParentScopeID,
	)
}

func (s *Store) ScopesByFile(fileID int64) ([]*Scope, error) {
	rows, err := s.db.Query("SELECT "+scopeCols+" FROM scopes WHERE file_id = ? ORDER BY id", fileID)
	if err != nil {
		return nil, fmt.Errorf("scopes by file: %w", err)
	}
	defer rows.Close()
	var scopes []*Scope
	for rows.Next() {
		sc, err := scanScope(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scope: %w", err)
		}
		scopes = append(scopes, sc)
	}
	return scopes, rows.Err()
}

// ScopeAt returns the deepest scope containing (line, col). Among equally
// deep scopes the one recorded last wins. Nil when no scope contains it.
func (s *Store) ScopeAt(fileID int64, line, col int) (*Scope, error) {
	sc, err := scanScope(s.db.QueryRow(
		`SELECT `+scopeCols+` FROM scopes
		 WHERE file_id = ?`+containsClause+`
		 ORDER BY depth DESC, id DESC LIMIT 1`,
		fileID, line, line, col, line, line, col,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scope at: %w", err)
	}
	return sc, nil
}

// ScopeChain walks up the parent_scope_id chain from scopeID to root.
func (s *Store) ScopeChain(scopeID int64) ([]*Scope, error) {
	var chain []*Scope
	currentID := &scopeID
	for currentID != nil {
		sc, err := scanScope(s.db.QueryRow("SELECT "+scopeCols+" FROM scopes WHERE id = ?", *currentID))
		if err == sql.ErrNoRows {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("scope chain: %w", err)
		}
		chain = append(chain, sc)
		currentID = sc.ParentScopeID
	}
	return chain, nil
}
