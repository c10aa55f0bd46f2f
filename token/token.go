// Package token defines language keywords and tokens used when lexing source code.
package token

// Type describes the type of a token as a string.
type Type string

// Position points to a particular location in an input string.
type Position struct {
	Line   int // 0-indexed line
	Column int // 0-indexed column
	Char   int // rune offset in the input
}

// LineNumber returns the 1-indexed line number for this position in the input.
func (p Position) LineNumber() int {
	return p.Line + 1
}

// ColumnNumber returns the 1-indexed column number for this position in the input.
func (p Position) ColumnNumber() int {
	return p.Column + 1
}

// Token represents one token lexed from the input source code.
type Token struct {
	Type     Type
	Literal  string
	Position Position
}

// Token types
const (
	ILLEGAL = "ILLEGAL"
	EOF     = "EOF"

	IDENT  = "IDENT"
	NUMBER = "NUMBER"
	STRING = "STRING"

	ASSIGN   = "="
	PLUS     = "+"
	MINUS    = "-"
	ASTERISK = "*"
	SLASH    = "/"
	PERCENT  = "%"
	HASH     = "#"
	CONCAT   = ".."

	EQ     = "=="
	NOT_EQ = "~="
	LT     = "<"
	GT     = ">"
	LT_EQ  = "<="
	GT_EQ  = ">="

	COMMA     = ","
	SEMICOLON = ";"
	COLON     = ":"
	DOT       = "."

	LPAREN   = "("
	RPAREN   = ")"
	LBRACE   = "{"
	RBRACE   = "}"
	LBRACKET = "["
	RBRACKET = "]"

	AND      = "and"
	BREAK    = "break"
	DO       = "do"
	ELSE     = "else"
	ELSEIF   = "elseif"
	END      = "end"
	FALSE    = "false"
	FOR      = "for"
	FUNCTION = "function"
	IF       = "if"
	LOCAL    = "local"
	NIL      = "nil"
	NOT      = "not"
	OR       = "or"
	RETURN   = "return"
	THEN     = "then"
	TRUE     = "true"
	WHILE    = "while"
)

var keywords = map[string]Type{
	"and":      AND,
	"break":    BREAK,
	"do":       DO,
	"else":     ELSE,
	"elseif":   ELSEIF,
	"end":      END,
	"false":    FALSE,
	"for":      FOR,
	"function": FUNCTION,
	"if":       IF,
	"local":    LOCAL,
	"nil":      NIL,
	"not":      NOT,
	"or":       OR,
	"return":   RETURN,
	"then":     THEN,
	"true":     TRUE,
	"while":    WHILE,
}

// LookupIdentifier checks our keywords map for the scanned identifier.
// If a match is found the keyword token type is returned, otherwise IDENT.
func LookupIdentifier(identifier string) Type {
	if t, ok := keywords[identifier]; ok {
		return t
	}
	return IDENT
}
