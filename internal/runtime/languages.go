package runtime

import (
	"path/filepath"
	"strings"
)

// extToLanguage maps file extensions to canonical language names. Rule
// scripts are listed so directory walks can tell them apart from sources.
var extToLanguage = map[string]string{
	".lua":  "lua",
	ruleExt: "risor",
}

// LanguageForFile returns the canonical language name for a file path based
// on its extension. Returns ("", false) if the extension is not recognized.
func LanguageForFile(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := extToLanguage[ext]
	return lang, ok
}

// IsSource reports whether path is a document the analyzer handles.
func IsSource(path string) bool {
	lang, ok := LanguageForFile(path)
	return ok && lang == "lua"
}
