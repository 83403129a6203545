package ccl

import "strconv"

// Parse compiles one condition source line into a Condition. The returned
// Condition keeps the source text verbatim so it round-trips through
// persistence byte for byte.
func Parse(source string) (*Condition, error) {
	tokens, err := newLexer(source).lex()
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}

	selector, err := p.parseSelector()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword(kwHas); err != nil {
		return nil, err
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}

	return &Condition{
		SourceText: source,
		AssetType:  selector,
		Expression: expr,
	}, nil
}

// ParseExpression compiles a bare expression without the asset-type
// selector. Used by tests and tooling.
func ParseExpression(source string) (Expression, error) {
	tokens, err := newLexer(source).lex()
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return expr, nil
}

// parser is a recursive-descent parser over the token stream.
type parser struct {
	tokens []Token
	pos    int
}

func (p *parser) peek() Token {
	return p.tokens[p.pos]
}

func (p *parser) advance() Token {
	tok := p.tokens[p.pos]
	if tok.Kind != TokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) peekKeyword(kw string) bool {
	tok := p.peek()
	return tok.Kind == TokenIdent && tok.Text == kw
}

func (p *parser) expectKeyword(kw string) error {
	tok := p.advance()
	if tok.Kind != TokenIdent || tok.Text != kw {
		return newParseError(tok.Pos, tok.Text, "expected %q", kw)
	}
	return nil
}

func (p *parser) expectKind(kind TokenKind) (Token, error) {
	tok := p.advance()
	if tok.Kind != kind {
		return tok, newParseError(tok.Pos, tok.Text, "expected %s", kind)
	}
	return tok, nil
}

func (p *parser) expectEOF() error {
	tok := p.peek()
	if tok.Kind != TokenEOF {
		return newParseError(tok.Pos, tok.Text, "unexpected trailing input")
	}
	return nil
}

// parseSelector parses the asset-type selector that precedes "has":
//
//	identifier                        simple
//	identifier "(" field ")" expr     filtered
//	identifier "[" field "]" expr     grouped
func (p *parser) parseSelector() (AssetTypeSelector, error) {
	name, err := p.expectKind(TokenIdent)
	if err != nil {
		return nil, err
	}

	var open, closing TokenKind
	switch p.peek().Kind {
	case TokenLParen:
		open, closing = TokenLParen, TokenRParen
	case TokenLBracket:
		open, closing = TokenLBracket, TokenRBracket
	default:
		return &SimpleSelector{TypeName: name.Text}, nil
	}

	p.advance() // open
	field, err := p.expectKind(TokenIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(closing); err != nil {
		return nil, err
	}
	filter, err := p.parseSelectorFilter()
	if err != nil {
		return nil, err
	}

	if open == TokenLBracket {
		return &GroupedSelector{TypeName: name.Text, Field: field.Text, Filter: filter}, nil
	}
	return &FilteredSelector{TypeName: name.Text, Field: field.Text, Filter: filter}, nil
}

// parseSelectorFilter parses the filter expression of a filtered/grouped
// selector. The filter ends where the top-level "has" begins, so "in"
// chaining is allowed but "has" is not consumed.
func (p *parser) parseSelectorFilter() (Expression, error) {
	return p.parseExpression()
}

// parseExpression parses:
//
//	expression := simpleExpr | "not" expression | inExpr
//	inExpr     := simpleExpr "in" ("any"|"all")? field
func (p *parser) parseExpression() (Expression, error) {
	if p.peekKeyword(kwNot) {
		p.advance()
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return &NotExpression{Inner: inner}, nil
	}

	expr, err := p.parseSimple()
	if err != nil {
		return nil, err
	}

	if p.peekKeyword(kwIn) {
		p.advance()
		scope := ScopeAny
		if p.peekKeyword(kwAny) {
			p.advance()
		} else if p.peekKeyword(kwAll) {
			p.advance()
			scope = ScopeAll
		}
		field, err := p.expectKind(TokenIdent)
		if err != nil {
			return nil, err
		}
		return &InExpression{Field: field.Text, Scope: scope, Inner: expr}, nil
	}

	return expr, nil
}

// parseSimple parses:
//
//	simpleExpr := "(" expression ")" | "empty" field | comparison | withinExpr
func (p *parser) parseSimple() (Expression, error) {
	tok := p.peek()

	switch {
	case tok.Kind == TokenLParen:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectKind(TokenRParen); err != nil {
			return nil, err
		}
		return expr, nil

	case tok.Kind == TokenIdent && tok.Text == kwEmpty:
		p.advance()
		field, err := p.expectKind(TokenIdent)
		if err != nil {
			return nil, err
		}
		return &EmptyExpression{Field: field.Text}, nil

	case tok.Kind == TokenIdent:
		return p.parseComparison()

	default:
		return nil, newParseError(tok.Pos, tok.Text, "expected expression")
	}
}

// parseComparison parses a field followed by a binary operator, a time
// operator, "contains" or "within".
func (p *parser) parseComparison() (Expression, error) {
	field := p.advance()
	tok := p.peek()

	switch {
	case tok.Kind == TokenOperator:
		p.advance()
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return &BinaryComparison{Field: field.Text, Operator: CompareOp(tok.Text), Value: value}, nil

	case tok.Kind == TokenIdent && tok.Text == kwContains:
		p.advance()
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return &BinaryComparison{Field: field.Text, Operator: OpContains, Value: value}, nil

	case tok.Kind == TokenIdent && isTimeOperator(tok.Text):
		p.advance()
		return p.parseTimeComparison(field.Text, TimeOp(tok.Text))

	case tok.Kind == TokenIdent && tok.Text == kwWithin:
		p.advance()
		return p.parseWithin(field.Text)

	default:
		return nil, newParseError(tok.Pos, tok.Text, "expected comparison operator after field %q", field.Text)
	}
}

// parseTimeComparison parses the optional "number unit" tail of a time
// comparison. When absent the bound is evaluation time itself.
func (p *parser) parseTimeComparison(field string, op TimeOp) (Expression, error) {
	expr := &TimeComparison{Field: field, Operator: op, Unit: UnitDays}

	if p.peek().Kind != TokenNumber {
		return expr, nil
	}

	num := p.advance()
	n, err := strconv.ParseInt(num.Text, 10, 64)
	if err != nil {
		return nil, newParseError(num.Pos, num.Text, "invalid number")
	}
	unit, err := p.expectKind(TokenIdent)
	if err != nil {
		return nil, err
	}
	if !TimeUnit(unit.Text).IsValid() {
		return nil, newParseError(unit.Pos, unit.Text, "invalid time unit")
	}

	expr.RelativeValue = n
	expr.Unit = TimeUnit(unit.Text)
	return expr, nil
}

// parseWithin parses the comma-separated literal list of a within
// expression. At least one value is required.
func (p *parser) parseWithin(field string) (Expression, error) {
	var values []any
	for {
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		values = append(values, value)
		if p.peek().Kind != TokenComma {
			break
		}
		p.advance()
	}
	return &WithinExpression{Field: field, Values: values}, nil
}

// parseValue parses a literal: quoted string, signed integer or boolean.
func (p *parser) parseValue() (any, error) {
	tok := p.advance()
	switch tok.Kind {
	case TokenString:
		return tok.Text, nil
	case TokenNumber:
		n, err := strconv.ParseInt(tok.Text, 10, 64)
		if err != nil {
			return nil, newParseError(tok.Pos, tok.Text, "invalid number")
		}
		return n, nil
	case TokenBool:
		return tok.Text == "true", nil
	default:
		return nil, newParseError(tok.Pos, tok.Text, "expected value literal")
	}
}

func isTimeOperator(text string) bool {
	switch text {
	case kwBefore, kwAfter, kwYounger, kwOlder:
		return true
	}
	return false
}
