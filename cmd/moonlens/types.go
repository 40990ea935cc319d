package main

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIRange is a 0-based half-open range.
type CLIRange struct {
	StartLine int `json:"start_line"`
	StartCol  int `json:"start_col"`
	EndLine   int `json:"end_line"`
	EndCol    int `json:"end_col"`
}

// CLIDiagnostic is a JSON-friendly diagnostic.
type CLIDiagnostic struct {
	File     string `json:"file"`
	Severity string `json:"severity"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message"`
	Source   string `json:"source,omitempty"`
	CLIRange
}

// CLISymbol is a JSON-friendly outline entry.
type CLISymbol struct {
	ID       int64       `json:"id,omitempty"`
	Name     string      `json:"name"`
	Kind     string      `json:"kind"`
	Detail   string      `json:"detail,omitempty"`
	Children []CLISymbol `json:"children,omitempty"`
	CLIRange
}

// CLIHistoryEntry is one step of a variable's history.
type CLIHistoryEntry struct {
	Scope string `json:"scope"`
	Type  string `json:"type"`
}

// CLIHover is a JSON-friendly hover.
type CLIHover struct {
	File    string            `json:"file"`
	Name    string            `json:"name"`
	Type    string            `json:"type"`
	Doc     string            `json:"doc,omitempty"`
	Scope   string            `json:"scope,omitempty"`
	History []CLIHistoryEntry `json:"history,omitempty"`
	CLIRange
}

// CLIScope is a JSON-friendly scope with its enclosing scopes.
type CLIScope struct {
	Tag       string   `json:"tag"`
	Depth     int      `json:"depth"`
	Enclosing []string `json:"enclosing,omitempty"`
	CLIRange
}

// CLIFile is a JSON-friendly file representation.
type CLIFile struct {
	ID          int64  `json:"id"`
	Path        string `json:"path"`
	LineCount   int    `json:"line_count"`
	LastIndexed string `json:"last_indexed"`
}

// CLIType is the canonical form of a parsed type annotation.
type CLIType struct {
	Input     string `json:"input"`
	Canonical string `json:"canonical"`
}
