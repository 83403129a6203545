// Package ccl implements the condition language used to author security
// rules: a lexer, a recursive-descent parser and an evaluable expression
// tree that walks an asset's property bag.
package ccl

import "fmt"

// TokenKind classifies a lexed token.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenIdent
	TokenString
	TokenNumber
	TokenBool
	TokenOperator
	TokenLParen
	TokenRParen
	TokenLBracket
	TokenRBracket
	TokenComma
)

// String returns a human-readable name for the token kind.
func (k TokenKind) String() string {
	switch k {
	case TokenEOF:
		return "end of input"
	case TokenIdent:
		return "identifier"
	case TokenString:
		return "string"
	case TokenNumber:
		return "number"
	case TokenBool:
		return "boolean"
	case TokenOperator:
		return "operator"
	case TokenLParen:
		return "'('"
	case TokenRParen:
		return "')'"
	case TokenLBracket:
		return "'['"
	case TokenRBracket:
		return "']'"
	case TokenComma:
		return "','"
	default:
		return "unknown"
	}
}

// Token is one lexical unit of a condition source line. Text holds the
// token's content with string quotes already stripped.
type Token struct {
	Kind TokenKind
	Text string
	Pos  int
}

func (t Token) String() string {
	if t.Kind == TokenEOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.Text)
}

// Keywords of the language. They are lexed as identifiers and recognized
// positionally by the parser, so property paths may reuse these words.
const (
	kwHas      = "has"
	kwNot      = "not"
	kwEmpty    = "empty"
	kwIn       = "in"
	kwAny      = "any"
	kwAll      = "all"
	kwWithin   = "within"
	kwContains = "contains"
	kwBefore   = "before"
	kwAfter    = "after"
	kwYounger  = "younger"
	kwOlder    = "older"
)
