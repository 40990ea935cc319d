// Package rules embeds the default rule scripts. The CLI runs them when a
// project configures no rules directory of its own.
package rules

import "embed"

// FS holds every default rule and the modules they import.
//
//go:embed *.risor
var FS embed.FS
