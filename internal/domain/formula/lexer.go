package formula

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenType int

const (
	tokEOF tokenType = iota
	tokNumber
	tokIdent
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokLT
	tokLE
	tokGT
	tokGE
	tokEQ
	tokNE
	tokAnd
	tokOr
	tokNot
	tokQuestion
	tokColon
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	typ tokenType
	lit string
	pos int
}

// lex convierte la expresión en tokens. Cualquier carácter fuera de la
// gramática corta el análisis con error.
func lex(expr string) ([]token, error) {
	var toks []token
	runes := []rune(expr)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsDigit(r) || (r == '.' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			start := i
			seenDot := false
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				if runes[i] == '.' {
					if seenDot {
						return nil, fmt.Errorf("número mal formado en posición %d", start)
					}
					seenDot = true
				}
				i++
			}
			toks = append(toks, token{tokNumber, string(runes[start:i]), start})
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			toks = append(toks, token{tokIdent, string(runes[start:i]), start})
		default:
			two := ""
			if i+1 < len(runes) {
				two = string(runes[i : i+2])
			}
			switch {
			case two == ">=":
				toks = append(toks, token{tokGE, two, i})
				i += 2
			case two == "<=":
				toks = append(toks, token{tokLE, two, i})
				i += 2
			case two == "==":
				toks = append(toks, token{tokEQ, two, i})
				i += 2
			case two == "!=":
				toks = append(toks, token{tokNE, two, i})
				i += 2
			case two == "&&":
				toks = append(toks, token{tokAnd, two, i})
				i += 2
			case two == "||":
				toks = append(toks, token{tokOr, two, i})
				i += 2
			default:
				var tt tokenType
				switch r {
				case '+':
					tt = tokPlus
				case '-':
					tt = tokMinus
				case '*':
					tt = tokStar
				case '/':
					tt = tokSlash
				case '>':
					tt = tokGT
				case '<':
					tt = tokLT
				case '!':
					tt = tokNot
				case '?':
					tt = tokQuestion
				case ':':
					tt = tokColon
				case '(':
					tt = tokLParen
				case ')':
					tt = tokRParen
				case ',':
					tt = tokComma
				default:
					return nil, fmt.Errorf("carácter no permitido %q en posición %d", string(r), i)
				}
				toks = append(toks, token{tt, string(r), i})
				i++
			}
		}
	}
	toks = append(toks, token{tokEOF, "", len(runes)})
	return toks, nil
}

func (t token) describe() string {
	if t.typ == tokEOF {
		return "fin de expresión"
	}
	return strings.TrimSpace(t.lit)
}
