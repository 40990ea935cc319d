package store

import (
	"database/sql"
	"fmt"
)

// CommitBatch replaces everything stored for file f with the rows buffered
// in batch, in a single transaction. The file row is inserted when f.ID is
// zero and updated otherwise; its old analysis rows are deleted first.
//
// Buffered rows carry f's ID or zero as file_id; both are rewritten to the
// real ID. Fake (negative) IDs are remapped to real (positive) ones and the
// parent references within the batch are rewritten through fakeToReal.
//
// Insert order respects FK dependencies:
//  1. Symbols (parent_symbol_id points at an earlier symbol)
//  2. Scopes (parent_scope_id points at an earlier scope)
//  3. Diagnostics
//  4. Hovers
func (s *Store) CommitBatch(f *File, batch *BatchedStore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	if f.ID == 0 {
		res, err := tx.Exec(
			"INSERT INTO files (path, hash, line_count, last_indexed) VALUES (?, ?, ?, ?)",
			f.Path, f.Hash, f.LineCount, f.LastIndexed,
		)
		if err != nil {
			return fmt.Errorf("commit batch: file %q: %w", f.Path, err)
		}
		if f.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("commit batch: file %q: %w", f.Path, err)
		}
	} else {
		if err := deleteFileDataTx(tx, f.ID); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
		if _, err := tx.Exec(
			"UPDATE files SET hash = ?, line_count = ?, last_indexed = ? WHERE id = ?",
			f.Hash, f.LineCount, f.LastIndexed, f.ID,
		); err != nil {
			return fmt.Errorf("commit batch: file %q: %w", f.Path, err)
		}
	}

	fakeToReal := make(map[int64]int64)
	remap := func(id *int64, what string) (*int64, error) {
		if id == nil || *id >= 0 {
			return id, nil
		}
		realID, ok := fakeToReal[*id]
		if !ok {
			return nil, fmt.Errorf("commit batch: %s parent %d not in fakeToReal map", what, *id)
		}
		return &realID, nil
	}

	// 1. Symbols
	for _, sym := range batch.Symbols {
		sym.FileID = f.ID
		if sym.ParentSymbolID, err = remap(sym.ParentSymbolID, "symbol"); err != nil {
			return err
		}
		realID, err := insertTx(tx, insertSymbolSQL, symbolArgs(&sym))
		if err != nil {
			return fmt.Errorf("commit batch: symbol %q: %w", sym.Name, err)
		}
		fakeToReal[sym.ID] = realID
	}

	// 2. Scopes
	for _, sc := range batch.Scopes {
		sc.FileID = f.ID
		if sc.ParentScopeID, err = remap(sc.ParentScopeID, "scope"); err != nil {
			return err
		}
		realID, err := insertTx(tx, insertScopeSQL, scopeArgs(&sc))
		if err != nil {
			return fmt.Errorf("commit batch: scope %q: %w", sc.Tag, err)
		}
		fakeToReal[sc.ID] = realID
	}

	// 3. Diagnostics
	for _, d := range batch.Diagnostics {
		d.FileID = f.ID
		if _, err := insertTx(tx, insertDiagnosticSQL, diagnosticArgs(&d)); err != nil {
			return fmt.Errorf("commit batch: diagnostic %q: %w", d.Message, err)
		}
	}

	// 4. Hovers
	for _, h := range batch.Hovers {
		h.FileID = f.ID
		if _, err := insertTx(tx, insertHoverSQL, hoverArgs(&h)); err != nil {
			return fmt.Errorf("commit batch: hover %q: %w", h.Name, err)
		}
	}

	return tx.Commit()
}

func insertTx(tx *sql.Tx, query string, args []any) (int64, error) {
	res, err := tx.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
