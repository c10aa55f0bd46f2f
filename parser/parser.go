// Package parser produces the abstract syntax tree for a chunk of source
// code written in the interpreter's input language, a small Lua subset.
//
// A parser is created by calling New with a lexer as input. The parser
// should then be used only once, by calling Parse to produce the AST.
package parser

import (
	"fmt"
	"strconv"

	"github.com/risor-io/lute/token"
)

// Error indicates that the provided source code failed to parse.
type Error struct {
	Msg string
	Pos token.Position
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at line %d, column %d",
		e.Msg, e.Pos.LineNumber(), e.Pos.ColumnNumber())
}

// Parse is a shorthand way to create a Lexer and Parser and then call
// Parse on that. The name is used in diagnostics only.
func Parse(name, input string) (*Chunk, error) {
	p, err := New(NewLexer(input))
	if err != nil {
		return nil, err
	}
	return p.Parse(name)
}

// Parser transforms a token stream into an AST.
type Parser struct {
	lexer *Lexer
	cur   token.Token
	peek  token.Token
}

// New returns a Parser reading from the given lexer.
func New(l *Lexer) (*Parser, error) {
	p := &Parser{lexer: l}
	// Prime cur and peek
	if err := p.next(); err != nil {
		return nil, err
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	return p, nil
}

// Parse consumes the whole token stream and returns the chunk.
func (p *Parser) Parse(name string) (chunk *Chunk, err error) {
	defer func() {
		if r := recover(); r != nil {
			if perr, ok := r.(*Error); ok {
				chunk, err = nil, perr
				return
			}
			panic(r)
		}
	}()
	body := p.parseBlock()
	if p.cur.Type != token.EOF {
		p.fail("unexpected %q", p.cur.Literal)
	}
	return &Chunk{Name: name, Body: body}, nil
}

func (p *Parser) next() error {
	p.cur = p.peek
	tok, err := p.lexer.Next()
	if err != nil {
		return &Error{Msg: err.Error(), Pos: tok.Position}
	}
	p.peek = tok
	return nil
}

func (p *Parser) advance() {
	if err := p.next(); err != nil {
		panic(err)
	}
}

func (p *Parser) fail(format string, args ...interface{}) {
	panic(&Error{Msg: fmt.Sprintf(format, args...), Pos: p.cur.Position})
}

func (p *Parser) expect(t token.Type) token.Token {
	if p.cur.Type != t {
		got := p.cur.Literal
		if p.cur.Type == token.EOF {
			got = "end of input"
		}
		p.fail("expected %q, found %q", string(t), got)
	}
	tok := p.cur
	p.advance()
	return tok
}

// blockEnd reports whether the current token terminates a block.
func (p *Parser) blockEnd() bool {
	switch p.cur.Type {
	case token.EOF, token.END, token.ELSE, token.ELSEIF:
		return true
	}
	return false
}

func (p *Parser) parseBlock() *Block {
	block := &Block{}
	for !p.blockEnd() {
		if p.cur.Type == token.SEMICOLON {
			p.advance()
			continue
		}
		stmt := p.parseStatement()
		block.Stmts = append(block.Stmts, stmt)
		// return must be the last statement of a block
		if _, ok := stmt.(*ReturnStmt); ok {
			for p.cur.Type == token.SEMICOLON {
				p.advance()
			}
			break
		}
	}
	return block
}

func (p *Parser) parseStatement() Stmt {
	switch p.cur.Type {
	case token.LOCAL:
		return p.parseLocal()
	case token.FUNCTION:
		return p.parseFunctionStmt(false)
	case token.RETURN:
		return p.parseReturn()
	case token.IF:
		return p.parseIf()
	case token.WHILE:
		return p.parseWhile()
	case token.FOR:
		return p.parseForNum()
	case token.BREAK:
		tok := p.cur
		p.advance()
		return &BreakStmt{Token: tok}
	case token.DO:
		p.fail("do blocks are not supported")
	}
	return p.parseExprStatement()
}

func (p *Parser) parseLocal() Stmt {
	tok := p.expect(token.LOCAL)
	if p.cur.Type == token.FUNCTION {
		return p.parseFunctionStmtLocal(tok)
	}
	stmt := &LocalStmt{Token: tok}
	stmt.Names = append(stmt.Names, p.expect(token.IDENT).Literal)
	for p.cur.Type == token.COMMA {
		p.advance()
		stmt.Names = append(stmt.Names, p.expect(token.IDENT).Literal)
	}
	if p.cur.Type == token.ASSIGN {
		p.advance()
		stmt.Values = p.parseExprList()
	}
	return stmt
}

func (p *Parser) parseFunctionStmtLocal(localTok token.Token) Stmt {
	p.expect(token.FUNCTION)
	name := p.expect(token.IDENT).Literal
	fn := p.parseFuncBody(localTok)
	return &FunctionStmt{Token: localTok, Name: name, Local: true, Func: fn}
}

func (p *Parser) parseFunctionStmt(local bool) Stmt {
	tok := p.expect(token.FUNCTION)
	name := p.expect(token.IDENT).Literal
	fn := p.parseFuncBody(tok)
	return &FunctionStmt{Token: tok, Name: name, Local: local, Func: fn}
}

func (p *Parser) parseFuncBody(tok token.Token) *FuncExpr {
	fn := &FuncExpr{Token: tok}
	p.expect(token.LPAREN)
	if p.cur.Type != token.RPAREN {
		fn.Params = append(fn.Params, p.expect(token.IDENT).Literal)
		for p.cur.Type == token.COMMA {
			p.advance()
			fn.Params = append(fn.Params, p.expect(token.IDENT).Literal)
		}
	}
	p.expect(token.RPAREN)
	fn.Body = p.parseBlock()
	p.expect(token.END)
	return fn
}

func (p *Parser) parseReturn() Stmt {
	tok := p.expect(token.RETURN)
	stmt := &ReturnStmt{Token: tok}
	if !p.blockEnd() && p.cur.Type != token.SEMICOLON {
		stmt.Values = p.parseExprList()
	}
	return stmt
}

func (p *Parser) parseIf() Stmt {
	tok := p.expect(token.IF)
	stmt := &IfStmt{Token: tok}
	stmt.Cond = p.parseExpr()
	p.expect(token.THEN)
	stmt.Then = p.parseBlock()
	switch p.cur.Type {
	case token.ELSEIF:
		// Treat "elseif" as an else block holding a nested if
		nested := p.parseElseif()
		stmt.Else = &Block{Stmts: []Stmt{nested}}
	case token.ELSE:
		p.advance()
		stmt.Else = p.parseBlock()
		p.expect(token.END)
	default:
		p.expect(token.END)
	}
	return stmt
}

func (p *Parser) parseElseif() Stmt {
	tok := p.expect(token.ELSEIF)
	stmt := &IfStmt{Token: tok}
	stmt.Cond = p.parseExpr()
	p.expect(token.THEN)
	stmt.Then = p.parseBlock()
	switch p.cur.Type {
	case token.ELSEIF:
		nested := p.parseElseif()
		stmt.Else = &Block{Stmts: []Stmt{nested}}
	case token.ELSE:
		p.advance()
		stmt.Else = p.parseBlock()
		p.expect(token.END)
	default:
		p.expect(token.END)
	}
	return stmt
}

func (p *Parser) parseWhile() Stmt {
	tok := p.expect(token.WHILE)
	stmt := &WhileStmt{Token: tok}
	stmt.Cond = p.parseExpr()
	p.expect(token.DO)
	stmt.Body = p.parseBlock()
	p.expect(token.END)
	return stmt
}

func (p *Parser) parseForNum() Stmt {
	tok := p.expect(token.FOR)
	stmt := &ForNumStmt{Token: tok}
	stmt.Name = p.expect(token.IDENT).Literal
	p.expect(token.ASSIGN)
	stmt.Start = p.parseExpr()
	p.expect(token.COMMA)
	stmt.Stop = p.parseExpr()
	if p.cur.Type == token.COMMA {
		p.advance()
		stmt.Step = p.parseExpr()
	}
	p.expect(token.DO)
	stmt.Body = p.parseBlock()
	p.expect(token.END)
	return stmt
}

// parseExprStatement handles assignments and call statements, which both
// begin with a suffixed expression.
func (p *Parser) parseExprStatement() Stmt {
	tok := p.cur
	expr := p.parseSuffixed()
	if p.cur.Type == token.ASSIGN || p.cur.Type == token.COMMA {
		targets := []Expr{expr}
		for p.cur.Type == token.COMMA {
			p.advance()
			targets = append(targets, p.parseSuffixed())
		}
		for _, t := range targets {
			switch t.(type) {
			case *NameExpr, *IndexExpr:
			default:
				p.fail("cannot assign to this expression")
			}
		}
		p.expect(token.ASSIGN)
		values := p.parseExprList()
		return &AssignStmt{Token: tok, Targets: targets, Values: values}
	}
	call, ok := expr.(*CallExpr)
	if !ok {
		p.fail("unexpected expression; only calls may stand alone")
	}
	return &CallStmt{Call: call}
}

func (p *Parser) parseExprList() []Expr {
	exprs := []Expr{p.parseExpr()}
	for p.cur.Type == token.COMMA {
		p.advance()
		exprs = append(exprs, p.parseExpr())
	}
	return exprs
}

// Binding powers, loosest first. Concatenation is right-associative.
const (
	precLowest = iota
	precOr
	precAnd
	precCompare
	precConcat
	precSum
	precProduct
	precUnary
)

func precedenceOf(t token.Type) int {
	switch t {
	case token.OR:
		return precOr
	case token.AND:
		return precAnd
	case token.LT, token.GT, token.LT_EQ, token.GT_EQ, token.EQ, token.NOT_EQ:
		return precCompare
	case token.CONCAT:
		return precConcat
	case token.PLUS, token.MINUS:
		return precSum
	case token.ASTERISK, token.SLASH, token.PERCENT:
		return precProduct
	}
	return precLowest
}

func (p *Parser) parseExpr() Expr {
	return p.parseBinary(precLowest)
}

func (p *Parser) parseBinary(minPrec int) Expr {
	left := p.parseUnary()
	for {
		prec := precedenceOf(p.cur.Type)
		if prec <= minPrec {
			return left
		}
		tok := p.cur
		p.advance()
		var right Expr
		if tok.Type == token.CONCAT {
			// right-associative
			right = p.parseBinary(prec - 1)
		} else {
			right = p.parseBinary(prec)
		}
		left = &BinaryExpr{Token: tok, Op: tok.Type, Left: left, Right: right}
	}
}

func (p *Parser) parseUnary() Expr {
	switch p.cur.Type {
	case token.MINUS, token.NOT, token.HASH:
		tok := p.cur
		p.advance()
		right := p.parseBinary(precUnary)
		return &UnaryExpr{Token: tok, Op: tok.Type, Right: right}
	}
	return p.parseSuffixed()
}

// parseSuffixed parses a primary expression followed by any chain of
// index, call, and method-call suffixes.
func (p *Parser) parseSuffixed() Expr {
	expr := p.parsePrimary()
	for {
		switch p.cur.Type {
		case token.DOT:
			tok := p.cur
			p.advance()
			key := p.expect(token.IDENT)
			expr = &IndexExpr{
				Token:  tok,
				Object: expr,
				Key:    &StringExpr{Token: key, Value: key.Literal},
			}
		case token.LBRACKET:
			tok := p.cur
			p.advance()
			key := p.parseExpr()
			p.expect(token.RBRACKET)
			expr = &IndexExpr{Token: tok, Object: expr, Key: key}
		case token.LPAREN:
			expr = p.parseCall(expr, "")
		case token.COLON:
			p.advance()
			method := p.expect(token.IDENT).Literal
			if p.cur.Type != token.LPAREN {
				p.fail("expected arguments after method name")
			}
			expr = p.parseCall(expr, method)
		case token.STRING:
			// f "literal" call sugar
			tok := p.cur
			p.advance()
			expr = &CallExpr{
				Token: tok,
				Fn:    expr,
				Args:  []Expr{&StringExpr{Token: tok, Value: tok.Literal}},
			}
		default:
			return expr
		}
	}
}

func (p *Parser) parseCall(fn Expr, method string) Expr {
	tok := p.expect(token.LPAREN)
	call := &CallExpr{Token: tok, Fn: fn, Method: method}
	if p.cur.Type != token.RPAREN {
		call.Args = p.parseExprList()
	}
	p.expect(token.RPAREN)
	return call
}

func (p *Parser) parsePrimary() Expr {
	tok := p.cur
	switch tok.Type {
	case token.NIL:
		p.advance()
		return &NilExpr{Token: tok}
	case token.TRUE:
		p.advance()
		return &BoolExpr{Token: tok, Value: true}
	case token.FALSE:
		p.advance()
		return &BoolExpr{Token: tok, Value: false}
	case token.NUMBER:
		p.advance()
		value, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.fail("invalid number %q", tok.Literal)
		}
		return &NumberExpr{Token: tok, Value: value}
	case token.STRING:
		p.advance()
		return &StringExpr{Token: tok, Value: tok.Literal}
	case token.IDENT:
		p.advance()
		return &NameExpr{Token: tok, Name: tok.Literal}
	case token.FUNCTION:
		p.advance()
		return p.parseFuncBody(tok)
	case token.LBRACE:
		return p.parseTable()
	case token.LPAREN:
		p.advance()
		expr := p.parseExpr()
		p.expect(token.RPAREN)
		return expr
	case token.EOF:
		p.fail("unexpected end of input")
	}
	p.fail("unexpected %q", tok.Literal)
	return nil
}

func (p *Parser) parseTable() Expr {
	tok := p.expect(token.LBRACE)
	table := &TableExpr{Token: tok}
	for p.cur.Type != token.RBRACE {
		var field TableField
		switch {
		case p.cur.Type == token.LBRACKET:
			p.advance()
			field.Key = p.parseExpr()
			p.expect(token.RBRACKET)
			p.expect(token.ASSIGN)
			field.Value = p.parseExpr()
		case p.cur.Type == token.IDENT && p.peek.Type == token.ASSIGN:
			key := p.cur
			p.advance()
			p.advance()
			field.Key = &StringExpr{Token: key, Value: key.Literal}
			field.Value = p.parseExpr()
		default:
			field.Value = p.parseExpr()
		}
		table.Fields = append(table.Fields, field)
		if p.cur.Type == token.COMMA || p.cur.Type == token.SEMICOLON {
			p.advance()
			continue
		}
		break
	}
	p.expect(token.RBRACE)
	return table
}
