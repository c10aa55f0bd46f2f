package parser

import (
	"fmt"
	"strings"

	"github.com/risor-io/lute/token"
)

// Lexer is used to tokenize source code written in the interpreter's
// input language.
type Lexer struct {
	input  []rune
	pos    int // current rune offset
	line   int
	column int
}

// NewLexer returns a Lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: []rune(input)}
}

func (l *Lexer) position() token.Position {
	return token.Position{Line: l.line, Column: l.column, Char: l.pos}
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) peekAt(offset int) rune {
	if l.pos+offset >= len(l.input) {
		return 0
	}
	return l.input[l.pos+offset]
}

func (l *Lexer) advance() rune {
	ch := l.input[l.pos]
	l.pos++
	if ch == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
	return ch
}

func (l *Lexer) skipSpaceAndComments() {
	for l.pos < len(l.input) {
		ch := l.peek()
		switch {
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			l.advance()
		case ch == '-' && l.peekAt(1) == '-':
			for l.pos < len(l.input) && l.peek() != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

// Next returns the next token from the input. After the input is
// exhausted it returns EOF tokens forever.
func (l *Lexer) Next() (token.Token, error) {
	l.skipSpaceAndComments()
	pos := l.position()
	if l.pos >= len(l.input) {
		return token.Token{Type: token.EOF, Position: pos}, nil
	}
	ch := l.peek()
	switch {
	case isDigit(ch), ch == '.' && isDigit(l.peekAt(1)):
		return l.readNumber(pos)
	case ch == '"' || ch == '\'':
		return l.readString(pos)
	case isIdentStart(ch):
		return l.readIdentifier(pos), nil
	}
	l.advance()
	mk := func(t token.Type, lit string) (token.Token, error) {
		return token.Token{Type: t, Literal: lit, Position: pos}, nil
	}
	switch ch {
	case '+':
		return mk(token.PLUS, "+")
	case '-':
		return mk(token.MINUS, "-")
	case '*':
		return mk(token.ASTERISK, "*")
	case '/':
		return mk(token.SLASH, "/")
	case '%':
		return mk(token.PERCENT, "%")
	case '#':
		return mk(token.HASH, "#")
	case ',':
		return mk(token.COMMA, ",")
	case ';':
		return mk(token.SEMICOLON, ";")
	case ':':
		return mk(token.COLON, ":")
	case '(':
		return mk(token.LPAREN, "(")
	case ')':
		return mk(token.RPAREN, ")")
	case '{':
		return mk(token.LBRACE, "{")
	case '}':
		return mk(token.RBRACE, "}")
	case '[':
		return mk(token.LBRACKET, "[")
	case ']':
		return mk(token.RBRACKET, "]")
	case '.':
		if l.peek() == '.' {
			l.advance()
			return mk(token.CONCAT, "..")
		}
		return mk(token.DOT, ".")
	case '=':
		if l.peek() == '=' {
			l.advance()
			return mk(token.EQ, "==")
		}
		return mk(token.ASSIGN, "=")
	case '~':
		if l.peek() == '=' {
			l.advance()
			return mk(token.NOT_EQ, "~=")
		}
		return token.Token{Type: token.ILLEGAL, Literal: "~", Position: pos},
			fmt.Errorf("unexpected character %q at line %d", '~', pos.LineNumber())
	case '<':
		if l.peek() == '=' {
			l.advance()
			return mk(token.LT_EQ, "<=")
		}
		return mk(token.LT, "<")
	case '>':
		if l.peek() == '=' {
			l.advance()
			return mk(token.GT_EQ, ">=")
		}
		return mk(token.GT, ">")
	}
	return token.Token{Type: token.ILLEGAL, Literal: string(ch), Position: pos},
		fmt.Errorf("unexpected character %q at line %d", ch, pos.LineNumber())
}

func (l *Lexer) readIdentifier(pos token.Position) token.Token {
	start := l.pos
	for l.pos < len(l.input) && isIdentPart(l.peek()) {
		l.advance()
	}
	literal := string(l.input[start:l.pos])
	return token.Token{
		Type:     token.LookupIdentifier(literal),
		Literal:  literal,
		Position: pos,
	}
}

func (l *Lexer) readNumber(pos token.Position) (token.Token, error) {
	start := l.pos
	seenDot := false
	seenExp := false
	for l.pos < len(l.input) {
		ch := l.peek()
		switch {
		case isDigit(ch):
			l.advance()
		case ch == '.' && !seenDot && !seenExp:
			seenDot = true
			l.advance()
		case (ch == 'e' || ch == 'E') && !seenExp &&
			(isDigit(l.peekAt(1)) ||
				((l.peekAt(1) == '+' || l.peekAt(1) == '-') && isDigit(l.peekAt(2)))):
			seenExp = true
			l.advance()
		case (ch == '+' || ch == '-') && seenExp &&
			(l.input[l.pos-1] == 'e' || l.input[l.pos-1] == 'E'):
			l.advance()
		default:
			goto done
		}
	}
done:
	literal := string(l.input[start:l.pos])
	return token.Token{Type: token.NUMBER, Literal: literal, Position: pos}, nil
}

func (l *Lexer) readString(pos token.Position) (token.Token, error) {
	quote := l.advance()
	var sb strings.Builder
	for {
		if l.pos >= len(l.input) {
			return token.Token{Type: token.ILLEGAL, Position: pos},
				fmt.Errorf("unterminated string at line %d", pos.LineNumber())
		}
		ch := l.advance()
		if ch == quote {
			break
		}
		if ch == '\n' {
			return token.Token{Type: token.ILLEGAL, Position: pos},
				fmt.Errorf("unterminated string at line %d", pos.LineNumber())
		}
		if ch == '\\' {
			if l.pos >= len(l.input) {
				return token.Token{Type: token.ILLEGAL, Position: pos},
					fmt.Errorf("unterminated string at line %d", pos.LineNumber())
			}
			esc := l.advance()
			switch esc {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 'r':
				sb.WriteRune('\r')
			case '\\', '"', '\'':
				sb.WriteRune(esc)
			default:
				return token.Token{Type: token.ILLEGAL, Position: pos},
					fmt.Errorf("invalid escape \\%c at line %d", esc, pos.LineNumber())
			}
			continue
		}
		sb.WriteRune(ch)
	}
	return token.Token{Type: token.STRING, Literal: sb.String(), Position: pos}, nil
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch rune) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch rune) bool {
	return isIdentStart(ch) || isDigit(ch)
}
