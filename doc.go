// Package moonlens provides static analysis for a Lua dialect with optional
// type annotations in block comments. It walks each document once, tracking
// lexical scopes and a structural type for every name, and produces
// diagnostics, a document outline and a hover lookup table.
//
// # Pipeline
//
// Per document, moonlens operates in three steps:
//
//  1. Parse: tree-sitter builds the concrete tree, which is lowered to the
//     analyzer's own syntax tree together with the document's comments.
//
//  2. Analyze: one traversal declares, updates and references variables in
//     a chain of scopes, infers types and matches documentation comments to
//     the declarations they precede.
//
//  3. Rules: every Risor script in the rules directory runs against the
//     result and may report further diagnostics.
//
// # Usage
//
// Create an Engine, index source files and query the index:
//
//	e, err := moonlens.New(".moonlens/index.db", moonlens.WithRulesDir("rules"))
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	err = e.IndexDirectory(ctx, "path/to/project")
//
//	q := e.Query()
//	hover, err := q.HoverAt("main.lua", 10, 5)
//
// [Engine.Analyze] runs the same pipeline without touching the index.
//
// # Query API
//
//   - [QueryBuilder.HoverAt]: name, type, documentation and history of the
//     occurrence at a position.
//   - [QueryBuilder.Symbols]: the document outline as a tree.
//   - [QueryBuilder.Diagnostics]: analyzer and rule findings of a file.
//   - [QueryBuilder.ScopeAt]: the innermost scope at a position and its
//     enclosing scopes.
//   - [QueryBuilder.Files]: every indexed file.
//
// Positions are 0-based lines and columns throughout.
//
// # Incremental Indexing
//
// [Engine.IndexFiles] detects unchanged files via content hashing and skips
// them. A changed file has all of its rows replaced in one transaction.
// Rule scripts are hashed too; [Engine.RulesChanged] reports when the index
// was built with different rules and needs a full rebuild.
package moonlens
