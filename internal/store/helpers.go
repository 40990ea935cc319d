package store

import "encoding/json"

// marshalHistory converts a hover history to JSON text for storage.
func marshalHistory(h []HistoryEntry) string {
	if len(h) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(h)
	return string(b)
}

func unmarshalHistory(s string) []HistoryEntry {
	if s == "" || s == "null" {
		return nil
	}
	var h []HistoryEntry
	_ = json.Unmarshal([]byte(s), &h)
	return h
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface{ Scan(...any) error }
