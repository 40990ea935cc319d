package position

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoMatchingOpen is returned when a closing delimiter appears before
	// the opening delimiter it would pair with.
	ErrNoMatchingOpen = errors.New("no matching open")
	// ErrNoMatchingClose is returned when input ends inside a group.
	ErrNoMatchingClose = errors.New("no matching close")
)

var pairs = map[byte]byte{'(': ')', '[': ']', '{': '}'}

// FindGroup returns the byte offsets of the first balanced open...close group
// in s: start is the offset of open, end is one past the matching close.
// Delimiters inside double-quoted strings do not count. start is -1 when s
// contains no open delimiter and no stray close.
func FindGroup(s string, open, close byte) (start, end int, err error) {
	depth := 0
	start = -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			j, err := skipQuoted(s, i)
			if err != nil {
				return -1, -1, err
			}
			i = j
		case open:
			if depth == 0 {
				start = i
			}
			depth++
		case close:
			if depth == 0 {
				return -1, -1, fmt.Errorf("%w %q at offset %d", ErrNoMatchingOpen, open, i)
			}
			depth--
			if depth == 0 {
				return start, i + 1, nil
			}
		}
	}
	if depth > 0 {
		return -1, -1, fmt.Errorf("%w %q for offset %d", ErrNoMatchingClose, close, start)
	}
	return -1, -1, nil
}

// Wraps reports whether the whole of s (already trimmed) is one balanced
// open...close group.
func Wraps(s string, open, close byte) bool {
	if len(s) < 2 || s[0] != open || s[len(s)-1] != close {
		return false
	}
	start, end, err := FindGroup(s, open, close)
	return err == nil && start == 0 && end == len(s)
}

// IndexTopLevel returns the offset of the first sep in s that is not nested
// inside (), [], {} or a double-quoted string, or -1.
func IndexTopLevel(s string, sep byte) (int, error) {
	var stack []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			j, err := skipQuoted(s, i)
			if err != nil {
				return -1, err
			}
			i = j
		case pairs[c] != 0:
			stack = append(stack, pairs[c])
		case c == ')' || c == ']' || c == '}':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1, fmt.Errorf("%w for %q at offset %d", ErrNoMatchingOpen, c, i)
			}
			stack = stack[:len(stack)-1]
		case c == sep && len(stack) == 0:
			return i, nil
		}
	}
	if len(stack) > 0 {
		return -1, fmt.Errorf("%w %q", ErrNoMatchingClose, stack[len(stack)-1])
	}
	return -1, nil
}

// SplitTopLevel splits s on every sep that is not nested inside any bracket
// pair or quoted string. Blank input yields no parts.
func SplitTopLevel(s string, sep byte) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var parts []string
	rest := s
	for {
		i, err := IndexTopLevel(rest, sep)
		if err != nil {
			return nil, err
		}
		if i < 0 {
			parts = append(parts, rest)
			return parts, nil
		}
		parts = append(parts, rest[:i])
		rest = rest[i+1:]
	}
}

// skipQuoted returns the offset of the closing quote of the string that
// opens at s[i].
func skipQuoted(s string, i int) (int, error) {
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '"':
			return j, nil
		}
	}
	return -1, fmt.Errorf("%w '\"' for offset %d", ErrNoMatchingClose, i)
}
