package expr

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Lexer converts expression text into a stream of tokens.
type Lexer struct {
	input string
	pos   int
}

// NewLexer creates a lexer over input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// NextToken advances and returns the next token from the input.
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()
	if l.pos >= len(l.input) {
		return Token{Type: EOF, Pos: l.pos}
	}

	start := l.pos
	ch := l.input[l.pos]

	switch {
	case strings.HasPrefix(l.input[l.pos:], placeholderDelim):
		return l.readPlaceholder()
	case isDigit(ch) || (ch == '.' && l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1])):
		return l.readNumber()
	case ch == '\'' || ch == '"':
		return l.readString(ch)
	}

	if r, _ := utf8.DecodeRuneInString(l.input[l.pos:]); isIdentStart(r) {
		return l.readIdentifier()
	}

	switch ch {
	case '(':
		return l.simple(LPAREN, 1)
	case ')':
		return l.simple(RPAREN, 1)
	case '+':
		return l.simple(PLUS, 1)
	case '-':
		return l.simple(MINUS, 1)
	case '/':
		return l.simple(SLASH, 1)
	case '*':
		if l.peekIs("**") {
			return l.simple(POW, 2)
		}
		return l.simple(STAR, 1)
	case '&':
		if l.peekIs("&&") {
			return l.simple(AND, 2)
		}
	case '|':
		if l.peekIs("||") {
			return l.simple(OR, 2)
		}
	case '=':
		if l.peekIs("===") {
			return l.simple(STRICTEQ, 3)
		}
		if l.peekIs("==") {
			return l.simple(EQ, 2)
		}
	case '!':
		if l.peekIs("!==") {
			return l.simple(STRICTNEQ, 3)
		}
		if l.peekIs("!=") {
			return l.simple(NEQ, 2)
		}
		return l.simple(NOT, 1)
	case '<':
		if l.peekIs("<=") {
			return l.simple(LTE, 2)
		}
		return l.simple(LT, 1)
	case '>':
		if l.peekIs(">=") {
			return l.simple(GTE, 2)
		}
		return l.simple(GT, 1)
	}

	_, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size
	return Token{Type: ILLEGAL, Literal: l.input[start:l.pos], Pos: start}
}

// Tokenize returns every token up to and including EOF, stopping at the first ILLEGAL token.
func (l *Lexer) Tokenize() []Token {
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == EOF || tok.Type == ILLEGAL {
			return tokens
		}
	}
}

func (l *Lexer) simple(t TokenType, width int) Token {
	tok := Token{Type: t, Literal: l.input[l.pos : l.pos+width], Pos: l.pos}
	l.pos += width
	return tok
}

func (l *Lexer) peekIs(s string) bool {
	return strings.HasPrefix(l.input[l.pos:], s)
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		l.pos += size
	}
}

// readPlaceholder reads :::name::: where name is everything up to the next delimiter.
func (l *Lexer) readPlaceholder() Token {
	start := l.pos
	body := l.input[start+len(placeholderDelim):]
	end := strings.Index(body, placeholderDelim)
	if end < 0 {
		l.pos = len(l.input)
		return Token{Type: ILLEGAL, Literal: l.input[start:], Pos: start}
	}
	l.pos = start + len(placeholderDelim) + end + len(placeholderDelim)
	return Token{Type: PLACEHOLDER, Literal: body[:end], Pos: start}
}

func (l *Lexer) readNumber() Token {
	start := l.pos
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.input) && l.input[l.pos] == '.' {
		l.pos++
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	if l.pos < len(l.input) && (l.input[l.pos] == 'e' || l.input[l.pos] == 'E') {
		mark := l.pos
		l.pos++
		if l.pos < len(l.input) && (l.input[l.pos] == '+' || l.input[l.pos] == '-') {
			l.pos++
		}
		if l.pos >= len(l.input) || !isDigit(l.input[l.pos]) {
			l.pos = mark
			return Token{Type: ILLEGAL, Literal: l.input[start : mark+1], Pos: start}
		}
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	return Token{Type: NUMBER, Literal: l.input[start:l.pos], Pos: start}
}

func (l *Lexer) readString(quote byte) Token {
	start := l.pos
	l.pos++
	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch ch {
		case quote:
			l.pos++
			return Token{Type: STRING, Literal: sb.String(), Pos: start}
		case '\\':
			if l.pos+1 >= len(l.input) {
				l.pos = len(l.input)
				return Token{Type: ILLEGAL, Literal: l.input[start:], Pos: start}
			}
			l.pos++
			sb.WriteString(unescape(l.input[l.pos]))
			l.pos++
		case '\n':
			return Token{Type: ILLEGAL, Literal: l.input[start:l.pos], Pos: start}
		default:
			sb.WriteByte(ch)
			l.pos++
		}
	}
	return Token{Type: ILLEGAL, Literal: l.input[start:], Pos: start}
}

func (l *Lexer) readIdentifier() Token {
	start := l.pos
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !isIdentPart(r) {
			break
		}
		l.pos += size
	}
	return Token{Type: IDENT, Literal: l.input[start:l.pos], Pos: start}
}

func unescape(ch byte) string {
	switch ch {
	case 'n':
		return "\n"
	case 't':
		return "\t"
	case 'r':
		return "\r"
	case '0':
		return "\x00"
	default:
		return string(ch)
	}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}
