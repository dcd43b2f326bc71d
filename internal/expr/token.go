package expr

// TokenType identifies the lexical class of a token.
type TokenType string

// Token holds the type, literal text and byte offset of a lexeme.
type Token struct {
	Type    TokenType
	Literal string
	Pos     int
}

const (
	ILLEGAL TokenType = "ILLEGAL"
	EOF     TokenType = "EOF"

	NUMBER      TokenType = "NUMBER"
	STRING      TokenType = "STRING"
	IDENT       TokenType = "IDENT"
	PLACEHOLDER TokenType = "PLACEHOLDER"

	LPAREN TokenType = "("
	RPAREN TokenType = ")"

	PLUS  TokenType = "+"
	MINUS TokenType = "-"
	STAR  TokenType = "*"
	SLASH TokenType = "/"
	POW   TokenType = "**"
	NOT   TokenType = "!"

	AND TokenType = "&&"
	OR  TokenType = "||"

	EQ        TokenType = "=="
	NEQ       TokenType = "!="
	STRICTEQ  TokenType = "==="
	STRICTNEQ TokenType = "!=="
	LT        TokenType = "<"
	LTE       TokenType = "<="
	GT        TokenType = ">"
	GTE       TokenType = ">="
)

const placeholderDelim = ":::"
