package parser

import "github.com/risor-io/lute/token"

// Node is implemented by every AST node.
type Node interface {
	Pos() token.Position
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Block is a sequence of statements sharing one scope.
type Block struct {
	Stmts []Stmt
}

// Chunk is a parsed compilation unit.
type Chunk struct {
	Name string
	Body *Block
}

// LocalStmt declares local variables: local a, b = 1, 2
type LocalStmt struct {
	Token  token.Token
	Names  []string
	Values []Expr
}

// AssignStmt assigns to one or more assignable targets: a, t.x = 1, 2
type AssignStmt struct {
	Token   token.Token
	Targets []Expr // NameExpr or IndexExpr
	Values  []Expr
}

// CallStmt is a function or method call in statement position.
type CallStmt struct {
	Call *CallExpr
}

// FunctionStmt declares a named function: function foo(a, b) ... end
type FunctionStmt struct {
	Token token.Token
	Name  string
	Local bool
	Func  *FuncExpr
}

// ReturnStmt returns zero or more values from the enclosing function.
type ReturnStmt struct {
	Token  token.Token
	Values []Expr
}

// IfStmt is an if/elseif/else chain. Else may be nil or contain a single
// nested IfStmt for elseif.
type IfStmt struct {
	Token token.Token
	Cond  Expr
	Then  *Block
	Else  *Block
}

// WhileStmt loops while the condition is truthy.
type WhileStmt struct {
	Token token.Token
	Cond  Expr
	Body  *Block
}

// ForNumStmt is a numeric for loop: for i = start, stop [, step] do ... end
type ForNumStmt struct {
	Token token.Token
	Name  string
	Start Expr
	Stop  Expr
	Step  Expr // nil means 1
	Body  *Block
}

// BreakStmt exits the innermost loop.
type BreakStmt struct {
	Token token.Token
}

// NilExpr is the nil literal.
type NilExpr struct{ Token token.Token }

// BoolExpr is a true or false literal.
type BoolExpr struct {
	Token token.Token
	Value bool
}

// NumberExpr is a numeric literal.
type NumberExpr struct {
	Token token.Token
	Value float64
}

// StringExpr is a string literal.
type StringExpr struct {
	Token token.Token
	Value string
}

// NameExpr references a variable by name.
type NameExpr struct {
	Token token.Token
	Name  string
}

// IndexExpr indexes a value: t[k] or t.k (sugar for a string key).
type IndexExpr struct {
	Token  token.Token
	Object Expr
	Key    Expr
}

// CallExpr calls a function. If Method is non-empty the call is
// o:m(args) sugar, passing the object as the first argument.
type CallExpr struct {
	Token  token.Token
	Fn     Expr
	Method string
	Args   []Expr
}

// FuncExpr is a function literal.
type FuncExpr struct {
	Token  token.Token
	Params []string
	Body   *Block
}

// TableField is one entry of a table constructor. A nil Key means the
// value takes the next sequential 1-based index.
type TableField struct {
	Key   Expr
	Value Expr
}

// TableExpr is a table constructor: {1, 2, x = 3, [k] = v}
type TableExpr struct {
	Token  token.Token
	Fields []TableField
}

// BinaryExpr applies a binary operator.
type BinaryExpr struct {
	Token token.Token
	Op    token.Type
	Left  Expr
	Right Expr
}

// UnaryExpr applies a unary operator (-, not, #).
type UnaryExpr struct {
	Token token.Token
	Op    token.Type
	Right Expr
}

func (s *LocalStmt) Pos() token.Position    { return s.Token.Position }
func (s *AssignStmt) Pos() token.Position   { return s.Token.Position }
func (s *CallStmt) Pos() token.Position     { return s.Call.Pos() }
func (s *FunctionStmt) Pos() token.Position { return s.Token.Position }
func (s *ReturnStmt) Pos() token.Position   { return s.Token.Position }
func (s *IfStmt) Pos() token.Position       { return s.Token.Position }
func (s *WhileStmt) Pos() token.Position    { return s.Token.Position }
func (s *ForNumStmt) Pos() token.Position   { return s.Token.Position }
func (s *BreakStmt) Pos() token.Position    { return s.Token.Position }

func (s *LocalStmt) stmtNode()    {}
func (s *AssignStmt) stmtNode()   {}
func (s *CallStmt) stmtNode()     {}
func (s *FunctionStmt) stmtNode() {}
func (s *ReturnStmt) stmtNode()   {}
func (s *IfStmt) stmtNode()       {}
func (s *WhileStmt) stmtNode()    {}
func (s *ForNumStmt) stmtNode()   {}
func (s *BreakStmt) stmtNode()    {}

func (e *NilExpr) Pos() token.Position    { return e.Token.Position }
func (e *BoolExpr) Pos() token.Position   { return e.Token.Position }
func (e *NumberExpr) Pos() token.Position { return e.Token.Position }
func (e *StringExpr) Pos() token.Position { return e.Token.Position }
func (e *NameExpr) Pos() token.Position   { return e.Token.Position }
func (e *IndexExpr) Pos() token.Position  { return e.Token.Position }
func (e *CallExpr) Pos() token.Position   { return e.Token.Position }
func (e *FuncExpr) Pos() token.Position   { return e.Token.Position }
func (e *TableExpr) Pos() token.Position  { return e.Token.Position }
func (e *BinaryExpr) Pos() token.Position { return e.Token.Position }
func (e *UnaryExpr) Pos() token.Position  { return e.Token.Position }

func (e *NilExpr) exprNode()    {}
func (e *BoolExpr) exprNode()   {}
func (e *NumberExpr) exprNode() {}
func (e *StringExpr) exprNode() {}
func (e *NameExpr) exprNode()   {}
func (e *IndexExpr) exprNode()  {}
func (e *CallExpr) exprNode()   {}
func (e *FuncExpr) exprNode()   {}
func (e *TableExpr) exprNode()  {}
func (e *BinaryExpr) exprNode() {}
func (e *UnaryExpr) exprNode()  {}
