package ccl

import (
	"strings"
	"unicode"
)

// lexer turns condition source text into a token stream.
type lexer struct {
	src []rune
	pos int
}

func newLexer(src string) *lexer {
	return &lexer{src: []rune(src)}
}

// lex tokenizes the whole input. It returns a ParseError for characters
// that cannot start any token.
func (l *lexer) lex() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == TokenEOF {
			return tokens, nil
		}
	}
}

func (l *lexer) next() (Token, error) {
	l.skipSpace()
	if l.pos >= len(l.src) {
		return Token{Kind: TokenEOF, Pos: l.pos}, nil
	}

	start := l.pos
	r := l.src[l.pos]

	switch {
	case r == '(':
		l.pos++
		return Token{Kind: TokenLParen, Text: "(", Pos: start}, nil
	case r == ')':
		l.pos++
		return Token{Kind: TokenRParen, Text: ")", Pos: start}, nil
	case r == '[':
		l.pos++
		return Token{Kind: TokenLBracket, Text: "[", Pos: start}, nil
	case r == ']':
		l.pos++
		return Token{Kind: TokenRBracket, Text: "]", Pos: start}, nil
	case r == ',':
		l.pos++
		return Token{Kind: TokenComma, Text: ",", Pos: start}, nil
	case r == '"':
		return l.lexString(start)
	case r == '-' || unicode.IsDigit(r):
		return l.lexNumber(start)
	case r == '=' || r == '!' || r == '<' || r == '>':
		return l.lexOperator(start)
	case isIdentStart(r):
		return l.lexIdent(start)
	default:
		return Token{}, newParseError(start, string(r), "unexpected character")
	}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) && unicode.IsSpace(l.src[l.pos]) {
		l.pos++
	}
}

// lexString reads a double-quoted literal and strips the surrounding
// quotes. There is no escape syntax; quotes cannot appear inside values.
func (l *lexer) lexString(start int) (Token, error) {
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.src) && l.src[l.pos] != '"' {
		sb.WriteRune(l.src[l.pos])
		l.pos++
	}
	if l.pos >= len(l.src) {
		return Token{}, newParseError(start, sb.String(), "unterminated string literal")
	}
	l.pos++ // closing quote
	return Token{Kind: TokenString, Text: sb.String(), Pos: start}, nil
}

func (l *lexer) lexNumber(start int) (Token, error) {
	if l.src[l.pos] == '-' {
		l.pos++
		if l.pos >= len(l.src) || !unicode.IsDigit(l.src[l.pos]) {
			return Token{}, newParseError(start, "-", "expected digits after sign")
		}
	}
	for l.pos < len(l.src) && unicode.IsDigit(l.src[l.pos]) {
		l.pos++
	}
	return Token{Kind: TokenNumber, Text: string(l.src[start:l.pos]), Pos: start}, nil
}

func (l *lexer) lexOperator(start int) (Token, error) {
	r := l.src[l.pos]
	l.pos++
	hasEq := l.pos < len(l.src) && l.src[l.pos] == '='
	switch r {
	case '=':
		if !hasEq {
			return Token{}, newParseError(start, "=", "expected '=='")
		}
		l.pos++
		return Token{Kind: TokenOperator, Text: "==", Pos: start}, nil
	case '!':
		if !hasEq {
			return Token{}, newParseError(start, "!", "expected '!='")
		}
		l.pos++
		return Token{Kind: TokenOperator, Text: "!=", Pos: start}, nil
	default: // '<' or '>'
		if hasEq {
			l.pos++
			return Token{Kind: TokenOperator, Text: string(r) + "=", Pos: start}, nil
		}
		return Token{Kind: TokenOperator, Text: string(r), Pos: start}, nil
	}
}

// lexIdent reads an identifier. Dots are part of identifiers so dotted
// property paths arrive as a single token.
func (l *lexer) lexIdent(start int) (Token, error) {
	for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
		l.pos++
	}
	text := string(l.src[start:l.pos])
	if text == "true" || text == "false" {
		return Token{Kind: TokenBool, Text: text, Pos: start}, nil
	}
	return Token{Kind: TokenIdent, Text: text, Pos: start}, nil
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '-'
}
