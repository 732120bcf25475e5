package screener

import (
	"strings"
	"unicode"

	"github.com/aristath/sentinel/internal/errkind"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokAnd
	tokOr
	tokNot
	tokTrue
	tokFalse
	tokEq
	tokNeq
	tokLt
	tokLte
	tokGt
	tokGte
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokPercent
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

var keywords = map[string]tokenKind{
	"and":   tokAnd,
	"or":    tokOr,
	"not":   tokNot,
	"true":  tokTrue,
	"false": tokFalse,
}

// lex tokenizes a formula string. It is deliberately small: the formula
// language's surface syntax is a closed, boolean/arithmetic expression
// grammar, not general-purpose code.
func lex(src string) ([]token, error) {
	var tokens []token
	runes := []rune(src)
	i := 0
	n := len(runes)

	for i < n {
		c := runes[i]
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(':
			tokens = append(tokens, token{tokLParen, "("})
			i++
		case c == ')':
			tokens = append(tokens, token{tokRParen, ")"})
			i++
		case c == '+':
			tokens = append(tokens, token{tokPlus, "+"})
			i++
		case c == '-':
			tokens = append(tokens, token{tokMinus, "-"})
			i++
		case c == '*':
			tokens = append(tokens, token{tokStar, "*"})
			i++
		case c == '/':
			tokens = append(tokens, token{tokSlash, "/"})
			i++
		case c == '%':
			tokens = append(tokens, token{tokPercent, "%"})
			i++
		case c == '=':
			tokens = append(tokens, token{tokEq, "="})
			i++
		case c == '!':
			if i+1 < n && runes[i+1] == '=' {
				tokens = append(tokens, token{tokNeq, "!="})
				i += 2
				continue
			}
			return nil, errkind.New(errkind.Invalid, "invalid formula syntax: unexpected '!'")
		case c == '<':
			if i+1 < n && runes[i+1] == '=' {
				tokens = append(tokens, token{tokLte, "<="})
				i += 2
				continue
			}
			tokens = append(tokens, token{tokLt, "<"})
			i++
		case c == '>':
			if i+1 < n && runes[i+1] == '=' {
				tokens = append(tokens, token{tokGte, ">="})
				i += 2
				continue
			}
			tokens = append(tokens, token{tokGt, ">"})
			i++
		case c == '\'':
			j := i + 1
			var sb strings.Builder
			closed := false
			for j < n {
				if runes[j] == '\'' {
					if j+1 < n && runes[j+1] == '\'' {
						sb.WriteRune('\'')
						j += 2
						continue
					}
					closed = true
					break
				}
				sb.WriteRune(runes[j])
				j++
			}
			if !closed {
				return nil, errkind.New(errkind.Invalid, "invalid formula syntax: unterminated string literal")
			}
			tokens = append(tokens, token{tokString, sb.String()})
			i = j + 1
		case unicode.IsDigit(c):
			j := i
			sawDot := false
			for j < n && (unicode.IsDigit(runes[j]) || (runes[j] == '.' && !sawDot)) {
				if runes[j] == '.' {
					sawDot = true
				}
				j++
			}
			tokens = append(tokens, token{tokNumber, string(runes[i:j])})
			i = j
		case unicode.IsLetter(c) || c == '_':
			j := i
			for j < n && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			word := string(runes[i:j])
			lowered := strings.ToLower(word)
			if kind, ok := keywords[lowered]; ok {
				tokens = append(tokens, token{kind, lowered})
			} else {
				tokens = append(tokens, token{tokIdent, word})
			}
			i = j
		default:
			return nil, errkind.Newf(errkind.Invalid, "invalid formula syntax: unexpected character %q", c)
		}
	}

	tokens = append(tokens, token{tokEOF, ""})
	return tokens, nil
}
