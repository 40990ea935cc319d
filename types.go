package moonlens

import (
	"github.com/jward/moonlens/internal/analysis"
	"github.com/jward/moonlens/internal/store"
)

// Public type aliases for the internal types used in the Engine and
// QueryBuilder APIs.

type Store = store.Store
type File = store.File
type Symbol = store.Symbol
type Diagnostic = store.Diagnostic
type Hover = store.Hover
type Scope = store.Scope

type Result = analysis.Result
type Finding = analysis.Diagnostic
type Severity = analysis.Severity
