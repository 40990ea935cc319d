package store

// DataStore is the write side used while a document's results are being
// recorded. Store writes straight to SQLite; BatchedStore buffers rows so
// analysis workers never touch the database.
type DataStore interface {
	// Inserts return the assigned ID.
	InsertSymbol(sym *Symbol) (int64, error)
	InsertDiagnostic(d *Diagnostic) (int64, error)
	InsertHover(h *Hover) (int64, error)
	InsertScope(sc *Scope) (int64, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
