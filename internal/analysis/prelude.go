package analysis

import (
	"sort"

	"github.com/jward/moonlens/internal/types"
)

// prelude is the standard library as seen by the analyzer, written in the
// type-annotation grammar.
var prelude = map[string]string{
	"print":        "(...) -> []",
	"tostring":     "(v) -> string",
	"tonumber":     "(v, base: number) -> [number | nil]",
	"type":         "(v) -> string",
	"ipairs":       "(t: {}) -> [(t: {}, i: number) -> [number, nil], {}, number]",
	"pairs":        "(t: {}) -> [(t: {}, k) -> [nil, nil], {}, nil]",
	"next":         "(t: {}, k) -> [nil, nil]",
	"select":       "(index, ...) -> [nil]",
	"error":        "(message, level: number) -> []",
	"assert":       "(v, message) -> [nil]",
	"pcall":        "(f, ...) -> [boolean, nil]",
	"require":      "(name: string) -> [nil]",
	"rawequal":     "(a, b) -> boolean",
	"rawget":       "(t: {}, k) -> [nil]",
	"rawset":       "(t: {}, k, v) -> {}",
	"rawlen":       "(v) -> number",
	"setmetatable": "(t: {}, mt: {}) -> {}",
	"getmetatable": "(v) -> [{} | nil]",
	"string": `{len: (s: string) -> number, sub: (s: string, i: number, j: number) -> string,
		upper: (s: string) -> string, lower: (s: string) -> string,
		rep: (s: string, n: number, sep: string) -> string, format: (fmt: string, ...) -> string,
		find: (s: string, pattern: string, init: number, plain: boolean) -> [number | nil, number | nil],
		match: (s: string, pattern: string, init: number) -> [string | nil],
		gsub: (s: string, pattern: string, repl, n: number) -> [string, number],
		byte: (s: string, i: number, j: number) -> number, char: (...) -> string,
		reverse: (s: string) -> string}`,
	"math": `{floor: (x: number) -> number, ceil: (x: number) -> number, abs: (x: number) -> number,
		max: (x: number, ...) -> number, min: (x: number, ...) -> number, sqrt: (x: number) -> number,
		random: (m: number, n: number) -> number, tointeger: (x) -> [number | nil],
		type: (x) -> [string | nil], huge: number, pi: number, maxinteger: number, mininteger: number}`,
	"table": `{insert: (t: {}, ...) -> [], remove: (t: {}, pos: number) -> [nil],
		concat: (t: {}, sep: string, i: number, j: number) -> string,
		unpack: (t: {}, i: number, j: number) -> [nil], sort: (t: {}, comp) -> [],
		pack: (...) -> {n: number}}`,
	"os": `{time: (t: {}) -> number, clock: () -> number, date: (format: string, time: number) -> string,
		getenv: (name: string) -> [string | nil]}`,
	"io": `{write: (...) -> {}, read: (...) -> [string | nil]}`,
}

// PreludeNames lists the builtin globals, sorted.
func PreludeNames() []string {
	names := make([]string, 0, len(prelude))
	for n := range prelude {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// PreludeType returns the type of a builtin global.
func PreludeType(name string) (types.Type, bool) {
	text, ok := prelude[name]
	if !ok {
		return nil, false
	}
	return types.MustParse(text), true
}
