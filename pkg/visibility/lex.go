package visibility

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokNumber
	tokOp
	tokNot
	tokAnd
	tokOr
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

var errUnterminated = errors.New("visibility: unterminated string")

func lex(src string) ([]token, error) {
	var out []token
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			out = append(out, token{tokLParen, "("})
			i++
		case c == ')':
			out = append(out, token{tokRParen, ")"})
			i++
		case strings.HasPrefix(src[i:], "&&"):
			out = append(out, token{tokAnd, "&&"})
			i += 2
		case strings.HasPrefix(src[i:], "||"):
			out = append(out, token{tokOr, "||"})
			i += 2
		case c == '=' || c == '!' || c == '<' || c == '>':
			if i+1 < len(src) && src[i+1] == '=' {
				out = append(out, token{tokOp, src[i : i+2]})
				i += 2
				continue
			}
			switch c {
			case '!':
				out = append(out, token{tokNot, "!"})
			case '<', '>':
				out = append(out, token{tokOp, string(c)})
			default:
				return nil, fmt.Errorf("visibility: unexpected '=' at %d, use '=='", i)
			}
			i++
		case c == '"' || c == '\'':
			text, n, err := lexString(src[i:])
			if err != nil {
				return nil, err
			}
			out = append(out, token{tokString, text})
			i += n
		default:
			start := i
			for i < len(src) && !strings.ContainsRune(" \t\n\r()=!<>&|\"'", rune(src[i])) {
				i++
			}
			if start == i {
				return nil, fmt.Errorf("visibility: unexpected %q at %d", c, i)
			}
			word := src[start:i]
			kind := tokIdent
			if _, err := strconv.ParseFloat(word, 64); err == nil {
				kind = tokNumber
			}
			out = append(out, token{kind, word})
		}
	}
	return out, nil
}

// lexString reads a quoted literal at the start of s and returns its value
// and length. Single quoted strings follow the double quoted escapes.
func lexString(s string) (string, int, error) {
	quote := s[0]
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case quote:
			body := s[1:i]
			if quote == '\'' {
				body = strings.ReplaceAll(body, `\'`, `'`)
				body = strings.ReplaceAll(body, `"`, `\"`)
			}
			text, err := strconv.Unquote(`"` + body + `"`)
			if err != nil {
				return "", 0, fmt.Errorf("visibility: invalid string %s: %w", s[:i+1], err)
			}
			return text, i + 1, nil
		}
	}
	return "", 0, errUnterminated
}
