package expr

import (
	"fmt"
	"math"
	"strconv"

	"statbench/internal/errors"
)

// MaxParserDepth bounds recursion on deeply nested input
const MaxParserDepth = 200

const (
	_ int = iota
	lowest
	precedenceOr
	precedenceAnd
	precedenceEquality
	precedenceRelational
	precedenceSum
	precedenceProduct
	precedencePower
	precedencePrefix
)

var precedences = map[TokenType]int{
	OR:        precedenceOr,
	AND:       precedenceAnd,
	EQ:        precedenceEquality,
	NEQ:       precedenceEquality,
	STRICTEQ:  precedenceEquality,
	STRICTNEQ: precedenceEquality,
	LT:        precedenceRelational,
	LTE:       precedenceRelational,
	GT:        precedenceRelational,
	GTE:       precedenceRelational,
	PLUS:      precedenceSum,
	MINUS:     precedenceSum,
	STAR:      precedenceProduct,
	SLASH:     precedenceProduct,
	POW:       precedencePower,
}

// Parser builds an expression tree from tokens using precedence climbing.
type Parser struct {
	l   *Lexer
	err error

	curToken  Token
	peekToken Token

	depth int
}

// NewParser returns a parser over src
func NewParser(src string) *Parser {
	p := &Parser{l: NewLexer(src)}
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a complete expression. Syntax errors carry the EVALUATION_ERROR code.
func Parse(src string) (Node, error) {
	p := NewParser(src)
	if p.curToken.Type == EOF {
		return nil, errors.EvaluationError("empty expression")
	}
	node := p.parseExpression(lowest)
	if p.err == nil && !p.peekTokenIs(EOF) {
		p.fail(p.peekToken, "unexpected %s", describe(p.peekToken))
	}
	if p.err != nil {
		return nil, p.err
	}
	return node, nil
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) peekTokenIs(t TokenType) bool { return p.peekToken.Type == t }

func (p *Parser) expectPeek(t TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.fail(p.peekToken, "expected %s, got %s", t, describe(p.peekToken))
	return false
}

// fail records the first syntax error; later ones are consequences of it
func (p *Parser) fail(tok Token, format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	p.err = errors.EvaluationError(fmt.Sprintf("syntax error at offset %d: %s", tok.Pos, msg))
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return lowest
}

func (p *Parser) parseExpression(precedence int) Node {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > MaxParserDepth {
		p.fail(p.curToken, "expression nesting too deep")
		return nil
	}

	left := p.parsePrefix()
	if p.err != nil {
		return nil
	}

	for !p.peekTokenIs(EOF) && precedence < p.peekPrecedence() {
		if _, unary := left.(*Unary); unary && p.peekTokenIs(POW) {
			p.fail(p.peekToken, "unary operator before ** must be parenthesized")
			return nil
		}
		p.nextToken()
		left = p.parseInfix(left)
		if p.err != nil {
			return nil
		}
	}
	return left
}

func (p *Parser) parsePrefix() Node {
	tok := p.curToken
	switch tok.Type {
	case NUMBER:
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			if numErr, ok := err.(*strconv.NumError); !ok || numErr.Err != strconv.ErrRange {
				p.fail(tok, "invalid number %q", tok.Literal)
				return nil
			}
		}
		return &Literal{Value: Number(f)}
	case STRING:
		return &Literal{Value: StringValue(tok.Literal)}
	case PLACEHOLDER:
		return &Placeholder{Name: tok.Literal}
	case IDENT:
		return p.parseIdentifier()
	case MINUS, PLUS, NOT:
		p.nextToken()
		operand := p.parseExpression(precedencePrefix)
		if operand == nil {
			return nil
		}
		return &Unary{Op: tok.Type, Operand: operand}
	case LPAREN:
		p.nextToken()
		inner := p.parseExpression(lowest)
		if inner == nil || !p.expectPeek(RPAREN) {
			return nil
		}
		return &Group{Inner: inner}
	case ILLEGAL:
		p.fail(tok, "illegal input %q", tok.Literal)
	default:
		p.fail(tok, "unexpected %s", describe(tok))
	}
	return nil
}

// parseIdentifier handles keyword literals and accessor(:::name:::) forms
func (p *Parser) parseIdentifier() Node {
	tok := p.curToken
	switch tok.Literal {
	case "true":
		return &Literal{Value: Boolean(true)}
	case "false":
		return &Literal{Value: Boolean(false)}
	case "null":
		return &Literal{Value: Null()}
	case "undefined":
		return &Literal{Value: Undefined()}
	case "NaN":
		return &Literal{Value: Number(math.NaN())}
	case "Infinity":
		return &Literal{Value: Number(math.Inf(1))}
	}

	if !isStatistic(tok.Literal) {
		p.fail(tok, "unknown identifier %q", tok.Literal)
		return nil
	}
	if !p.expectPeek(LPAREN) || !p.expectPeek(PLACEHOLDER) {
		return nil
	}
	name := p.curToken.Literal
	if !p.expectPeek(RPAREN) {
		return nil
	}
	return &Aggregate{Stat: tok.Literal, Name: name}
}

func (p *Parser) parseInfix(left Node) Node {
	op := p.curToken.Type
	prec := precedences[op]
	// ** is right-associative
	if op == POW {
		prec--
	}
	p.nextToken()
	right := p.parseExpression(prec)
	if right == nil {
		return nil
	}
	return &Binary{Op: op, Left: left, Right: right}
}

func describe(tok Token) string {
	switch tok.Type {
	case EOF:
		return "end of expression"
	case NUMBER, STRING, IDENT, PLACEHOLDER, ILLEGAL:
		return fmt.Sprintf("%s %q", tok.Type, tok.Literal)
	default:
		return fmt.Sprintf("%q", string(tok.Type))
	}
}
