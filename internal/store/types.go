package store

import "time"

// Persisted analysis rows. Positions are 0-based, exactly as the analyzer
// reports them.

type File struct {
	ID          int64
	Path        string
	Hash        string
	LineCount   int
	LastIndexed time.Time
}

type Symbol struct {
	ID             int64
	FileID         int64
	Name           string
	Kind           string
	Detail         string
	StartLine      int
	StartCol       int
	EndLine        int
	EndCol         int
	SelStartLine   int
	SelStartCol    int
	SelEndLine     int
	SelEndCol      int
	ParentSymbolID *int64
}

type Diagnostic struct {
	ID        int64
	FileID    int64
	Code      string
	Severity  int
	Message   string
	Source    string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// HistoryEntry is one step of a variable's event history as stored in a
// hover row.
type HistoryEntry struct {
	Scope string `json:"scope"`
	Type  string `json:"type"`
}

type Hover struct {
	ID        int64
	FileID    int64
	Name      string
	TypeExpr  string
	Doc       string
	ScopeTag  string
	History   []HistoryEntry
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

type Scope struct {
	ID            int64
	FileID        int64
	Tag           string
	Depth         int
	StartLine     int
	StartCol      int
	EndLine       int
	EndCol        int
	ParentScopeID *int64
}
