package syntax

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrBadString is wrapped by every Unquote failure.
var ErrBadString = errors.New("malformed string literal")

// Unquote decodes the source text of a string literal: a short string in
// single or double quotes with escape sequences, or a long-bracket string
// such as [[...]] or [==[...]==].
func Unquote(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrBadString)
	}
	switch raw[0] {
	case '"', '\'':
		if len(raw) < 2 || raw[len(raw)-1] != raw[0] {
			return "", fmt.Errorf("%w: unterminated %s", ErrBadString, raw)
		}
		return unescape(raw[1 : len(raw)-1])
	case '[':
		body, ok := longBracket(raw)
		if !ok {
			return "", fmt.Errorf("%w: bad long bracket %s", ErrBadString, raw)
		}
		return body, nil
	}
	return "", fmt.Errorf("%w: %s", ErrBadString, raw)
}

// longLevel reports the level of an opening long bracket at the start of s
// ([[ is 0, [=[ is 1, ...) and whether s starts with one at all.
func longLevel(s string) (int, bool) {
	if len(s) < 2 || s[0] != '[' {
		return 0, false
	}
	i := 1
	for i < len(s) && s[i] == '=' {
		i++
	}
	if i >= len(s) || s[i] != '[' {
		return 0, false
	}
	return i - 1, true
}

// longBracket returns the body of a long-bracket string. A newline directly
// after the opening bracket is not part of the body.
func longBracket(s string) (string, bool) {
	level, ok := longLevel(s)
	if !ok {
		return "", false
	}
	closer := "]" + strings.Repeat("=", level) + "]"
	body := s[level+2:]
	if !strings.HasSuffix(body, closer) {
		return "", false
	}
	body = body[:len(body)-len(closer)]
	switch {
	case strings.HasPrefix(body, "\r\n"), strings.HasPrefix(body, "\n\r"):
		body = body[2:]
	case strings.HasPrefix(body, "\n"), strings.HasPrefix(body, "\r"):
		body = body[1:]
	}
	return body, true
}

var simpleEscapes = map[byte]byte{
	'a': '\a', 'b': '\b', 'f': '\f', 'n': '\n', 'r': '\r', 't': '\t', 'v': '\v',
	'\\': '\\', '"': '"', '\'': '\'', '\n': '\n', '\r': '\n',
}

func unescape(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("%w: trailing backslash", ErrBadString)
		}
		c = s[i]
		if r, ok := simpleEscapes[c]; ok {
			b.WriteByte(r)
			// \<CR><LF> and \<LF><CR> are one line break.
			if (c == '\r' || c == '\n') && i+1 < len(s) && (s[i+1] == '\r' || s[i+1] == '\n') && s[i+1] != c {
				i++
			}
			continue
		}
		switch {
		case c == 'z':
			for i+1 < len(s) && isSpace(s[i+1]) {
				i++
			}
		case c == 'x':
			if i+2 >= len(s) {
				return "", fmt.Errorf("%w: short \\x escape", ErrBadString)
			}
			hi, ok1 := hexVal(s[i+1])
			lo, ok2 := hexVal(s[i+2])
			if !ok1 || !ok2 {
				return "", fmt.Errorf("%w: bad \\x escape", ErrBadString)
			}
			b.WriteByte(byte(hi<<4 | lo))
			i += 2
		case c == 'u':
			end := strings.IndexByte(s[i:], '}')
			if i+1 >= len(s) || s[i+1] != '{' || end < 0 {
				return "", fmt.Errorf("%w: bad \\u escape", ErrBadString)
			}
			digits := s[i+2 : i+end]
			if digits == "" {
				return "", fmt.Errorf("%w: empty \\u escape", ErrBadString)
			}
			var r rune
			for j := 0; j < len(digits); j++ {
				v, ok := hexVal(digits[j])
				if !ok || r > utf8.MaxRune>>4 {
					return "", fmt.Errorf("%w: bad \\u escape", ErrBadString)
				}
				r = r<<4 | rune(v)
			}
			if r > utf8.MaxRune {
				return "", fmt.Errorf("%w: \\u escape out of range", ErrBadString)
			}
			b.WriteRune(r)
			i += end
		case c >= '0' && c <= '9':
			v := 0
			n := 0
			for n < 3 && i < len(s) && s[i] >= '0' && s[i] <= '9' {
				v = v*10 + int(s[i]-'0')
				i++
				n++
			}
			i--
			if v > 255 {
				return "", fmt.Errorf("%w: decimal escape too large", ErrBadString)
			}
			b.WriteByte(byte(v))
		default:
			return "", fmt.Errorf("%w: invalid escape \\%c", ErrBadString, c)
		}
	}
	return b.String(), nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func hexVal(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	}
	return 0, false
}
