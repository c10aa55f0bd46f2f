package state

import (
	"fmt"
	"strings"

	"github.com/risor-io/lute/parser"
	"github.com/risor-io/lute/token"
)

// maxCallDepth bounds script recursion so runaway programs raise a
// catchable error instead of exhausting the Go stack.
const maxCallDepth = 250

// env is one lexical scope in the chain a closure captures.
type env struct {
	vars   map[string]value
	parent *env
}

func newEnv(parent *env) *env {
	return &env{vars: map[string]value{}, parent: parent}
}

func (e *env) lookup(name string) (value, bool) {
	for scope := e; scope != nil; scope = scope.parent {
		if v, ok := scope.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// assign updates an existing local and reports whether one was found.
func (e *env) assign(name string, v value) bool {
	for scope := e; scope != nil; scope = scope.parent {
		if _, ok := scope.vars[name]; ok {
			scope.vars[name] = v
			return true
		}
	}
	return false
}

func (e *env) define(name string, v value) {
	e.vars[name] = v
}

// raise aborts execution with a value catchable at the nearest PCall.
func raise(v value) {
	panic(scriptError{value: v})
}

func raisef(format string, args ...interface{}) {
	raise(str(fmt.Sprintf(format, args...)))
}

type ctrl int

const (
	ctrlNone ctrl = iota
	ctrlBreak
	ctrlReturn
)

// callValue invokes a function value with the given arguments and
// returns its results. Raised errors propagate as scriptError panics.
func (s *State) callValue(fn value, args []value) []value {
	s.depth++
	defer func() { s.depth-- }()
	if s.depth > maxCallDepth {
		raisef("stack overflow")
	}
	switch fn := fn.(type) {
	case *function:
		scope := newEnv(fn.env)
		for i, name := range fn.params {
			if i < len(args) {
				scope.define(name, args[i])
			} else {
				scope.define(name, nilValue{})
			}
		}
		c, results := s.execBlock(fn.body, scope)
		if c == ctrlReturn {
			return results
		}
		return nil
	case *goFunction:
		return s.callGo(fn, args)
	}
	raisef("attempt to call a %s value", fn.typeOf())
	return nil
}

// callGo runs a host function. Its arguments are pushed onto the shared
// stack so the host reads them the same way it reads any other slots;
// whatever the host pushes above that window becomes the results. The
// baseline is recorded per call, so a host callback re-entering the
// interpreter cannot disturb an outer call's accounting.
func (s *State) callGo(fn *goFunction, args []value) []value {
	base := len(s.stack)
	s.stack = append(s.stack, args...)
	nres, err := fn.fn(s, len(args))
	if err != nil {
		s.stack = s.stack[:base]
		raise(str(err.Error()))
	}
	if nres < 0 || base+len(args)+nres > len(s.stack) {
		s.stack = s.stack[:base]
		raisef("function %s misreported its result count", fn.name)
	}
	top := len(s.stack)
	results := make([]value, nres)
	copy(results, s.stack[top-nres:])
	s.stack = s.stack[:base]
	return results
}

// index reads t[key], following the __index metafield for missing keys.
func (s *State) index(t *table, key value) value {
	v := t.get(key)
	if _, isNil := v.(nilValue); !isNil {
		return v
	}
	if t.meta == nil {
		return nilValue{}
	}
	switch handler := t.meta.get(str("__index")).(type) {
	case *table:
		return s.index(handler, key)
	case *function, *goFunction:
		results := s.callValue(handler, []value{t, key})
		if len(results) == 0 {
			return nilValue{}
		}
		return results[0]
	}
	return nilValue{}
}

func (s *State) execBlock(block *parser.Block, scope *env) (ctrl, []value) {
	for _, stmt := range block.Stmts {
		c, results := s.execStmt(stmt, scope)
		if c != ctrlNone {
			return c, results
		}
	}
	return ctrlNone, nil
}

func (s *State) execStmt(stmt parser.Stmt, scope *env) (ctrl, []value) {
	switch stmt := stmt.(type) {
	case *parser.LocalStmt:
		values := s.evalExprList(stmt.Values, scope, len(stmt.Names))
		for i, name := range stmt.Names {
			scope.define(name, values[i])
		}
	case *parser.AssignStmt:
		values := s.evalExprList(stmt.Values, scope, len(stmt.Targets))
		for i, target := range stmt.Targets {
			s.assign(target, values[i], scope)
		}
	case *parser.CallStmt:
		s.evalCall(stmt.Call, scope)
	case *parser.FunctionStmt:
		fn := &function{
			name:   stmt.Name,
			params: stmt.Func.Params,
			body:   stmt.Func.Body,
			env:    scope,
		}
		if stmt.Local {
			scope.define(stmt.Name, fn)
		} else {
			s.globals.set(str(stmt.Name), fn)
		}
	case *parser.ReturnStmt:
		return ctrlReturn, s.evalMultiList(stmt.Values, scope)
	case *parser.IfStmt:
		if truthy(s.evalExpr(stmt.Cond, scope)) {
			return s.execBlock(stmt.Then, newEnv(scope))
		} else if stmt.Else != nil {
			return s.execBlock(stmt.Else, newEnv(scope))
		}
	case *parser.WhileStmt:
		for truthy(s.evalExpr(stmt.Cond, scope)) {
			c, results := s.execBlock(stmt.Body, newEnv(scope))
			if c == ctrlReturn {
				return c, results
			}
			if c == ctrlBreak {
				break
			}
		}
	case *parser.ForNumStmt:
		start := s.evalNumber(stmt.Start, scope, "'for' initial value")
		stop := s.evalNumber(stmt.Stop, scope, "'for' limit")
		step := 1.0
		if stmt.Step != nil {
			step = s.evalNumber(stmt.Step, scope, "'for' step")
		}
		if step == 0 {
			raisef("'for' step is zero")
		}
		for i := start; (step > 0 && i <= stop) || (step < 0 && i >= stop); i += step {
			body := newEnv(scope)
			body.define(stmt.Name, number(i))
			c, results := s.execBlock(stmt.Body, body)
			if c == ctrlReturn {
				return c, results
			}
			if c == ctrlBreak {
				break
			}
		}
	case *parser.BreakStmt:
		return ctrlBreak, nil
	default:
		raisef("unsupported statement %T", stmt)
	}
	return ctrlNone, nil
}

func (s *State) assign(target parser.Expr, v value, scope *env) {
	switch target := target.(type) {
	case *parser.NameExpr:
		if !scope.assign(target.Name, v) {
			s.globals.set(str(target.Name), v)
		}
	case *parser.IndexExpr:
		obj := s.evalExpr(target.Object, scope)
		t, ok := obj.(*table)
		if !ok {
			raisef("attempt to index a %s value", obj.typeOf())
		}
		key := s.evalExpr(target.Key, scope)
		if _, isNil := key.(nilValue); isNil {
			raisef("table index is nil")
		}
		t.set(key, v)
	default:
		raisef("cannot assign to %T", target)
	}
}

// evalExprList evaluates a right-hand side, expanding the final call's
// results and padding with nils up to want values.
func (s *State) evalExprList(exprs []parser.Expr, scope *env, want int) []value {
	values := s.evalMultiList(exprs, scope)
	for len(values) < want {
		values = append(values, nilValue{})
	}
	return values[:want]
}

// evalMultiList evaluates an expression list keeping every result of the
// final expression, per the language's multiple-value rules.
func (s *State) evalMultiList(exprs []parser.Expr, scope *env) []value {
	var values []value
	for i, expr := range exprs {
		if i == len(exprs)-1 {
			if call, ok := expr.(*parser.CallExpr); ok {
				values = append(values, s.evalCall(call, scope)...)
				continue
			}
		}
		values = append(values, s.evalExpr(expr, scope))
	}
	return values
}

func (s *State) evalNumber(expr parser.Expr, scope *env, what string) float64 {
	v := s.evalExpr(expr, scope)
	n, ok := v.(number)
	if !ok {
		raisef("%s must be a number", what)
	}
	return float64(n)
}

func (s *State) evalCall(call *parser.CallExpr, scope *env) []value {
	fn := s.evalExpr(call.Fn, scope)
	var args []value
	if call.Method != "" {
		obj := fn
		t, ok := obj.(*table)
		if !ok {
			raisef("attempt to index a %s value", obj.typeOf())
		}
		fn = s.index(t, str(call.Method))
		args = append(args, obj)
	}
	for i, argExpr := range call.Args {
		if i == len(call.Args)-1 {
			if inner, ok := argExpr.(*parser.CallExpr); ok {
				args = append(args, s.evalCall(inner, scope)...)
				continue
			}
		}
		args = append(args, s.evalExpr(argExpr, scope))
	}
	return s.callValue(fn, args)
}

func (s *State) evalExpr(expr parser.Expr, scope *env) value {
	switch expr := expr.(type) {
	case *parser.NilExpr:
		return nilValue{}
	case *parser.BoolExpr:
		return boolean(expr.Value)
	case *parser.NumberExpr:
		return number(expr.Value)
	case *parser.StringExpr:
		return str(expr.Value)
	case *parser.NameExpr:
		if v, ok := scope.lookup(expr.Name); ok {
			return v
		}
		return s.index(s.globals, str(expr.Name))
	case *parser.IndexExpr:
		obj := s.evalExpr(expr.Object, scope)
		t, ok := obj.(*table)
		if !ok {
			raisef("attempt to index a %s value", obj.typeOf())
		}
		return s.index(t, s.evalExpr(expr.Key, scope))
	case *parser.CallExpr:
		results := s.evalCall(expr, scope)
		if len(results) == 0 {
			return nilValue{}
		}
		return results[0]
	case *parser.FuncExpr:
		return &function{params: expr.Params, body: expr.Body, env: scope}
	case *parser.TableExpr:
		t := newTable()
		seq := 0
		for _, field := range expr.Fields {
			v := s.evalExpr(field.Value, scope)
			if field.Key == nil {
				seq++
				t.set(number(seq), v)
				continue
			}
			key := s.evalExpr(field.Key, scope)
			if _, isNil := key.(nilValue); isNil {
				raisef("table index is nil")
			}
			t.set(key, v)
		}
		return t
	case *parser.BinaryExpr:
		return s.evalBinary(expr, scope)
	case *parser.UnaryExpr:
		return s.evalUnary(expr, scope)
	}
	raisef("unsupported expression %T", expr)
	return nil
}

func (s *State) evalBinary(expr *parser.BinaryExpr, scope *env) value {
	// Short-circuit operators evaluate the right side lazily and return
	// one of the operands unchanged, as in Lua.
	switch expr.Op {
	case token.AND:
		left := s.evalExpr(expr.Left, scope)
		if !truthy(left) {
			return left
		}
		return s.evalExpr(expr.Right, scope)
	case token.OR:
		left := s.evalExpr(expr.Left, scope)
		if truthy(left) {
			return left
		}
		return s.evalExpr(expr.Right, scope)
	}

	left := s.evalExpr(expr.Left, scope)
	right := s.evalExpr(expr.Right, scope)

	switch expr.Op {
	case token.EQ:
		return boolean(valuesEqual(left, right))
	case token.NOT_EQ:
		return boolean(!valuesEqual(left, right))
	case token.CONCAT:
		return str(concatOperand(left) + concatOperand(right))
	case token.PLUS, token.MINUS, token.ASTERISK, token.SLASH, token.PERCENT:
		a, aok := left.(number)
		b, bok := right.(number)
		if !aok {
			raisef("attempt to perform arithmetic on a %s value", left.typeOf())
		}
		if !bok {
			raisef("attempt to perform arithmetic on a %s value", right.typeOf())
		}
		switch expr.Op {
		case token.PLUS:
			return a + b
		case token.MINUS:
			return a - b
		case token.ASTERISK:
			return a * b
		case token.SLASH:
			return number(float64(a) / float64(b))
		case token.PERCENT:
			return a - b*number(floorDiv(float64(a), float64(b)))
		}
	case token.LT, token.GT, token.LT_EQ, token.GT_EQ:
		return s.compare(expr.Op, left, right)
	}
	raisef("unsupported operator %s", expr.Op)
	return nil
}

func floorDiv(a, b float64) float64 {
	q := a / b
	f := float64(int64(q))
	if q < f {
		f--
	}
	return f
}

func concatOperand(v value) string {
	switch v := v.(type) {
	case str:
		return string(v)
	case number:
		return formatNumber(float64(v))
	}
	raisef("attempt to concatenate a %s value", v.typeOf())
	return ""
}

func (s *State) compare(op token.Type, left, right value) value {
	var cmp int
	switch a := left.(type) {
	case number:
		b, ok := right.(number)
		if !ok {
			raisef("attempt to compare number with %s", right.typeOf())
		}
		cmp = compareFloats(float64(a), float64(b))
	case str:
		b, ok := right.(str)
		if !ok {
			raisef("attempt to compare string with %s", right.typeOf())
		}
		cmp = strings.Compare(string(a), string(b))
	default:
		raisef("attempt to compare two %s values", left.typeOf())
	}
	switch op {
	case token.LT:
		return boolean(cmp < 0)
	case token.GT:
		return boolean(cmp > 0)
	case token.LT_EQ:
		return boolean(cmp <= 0)
	default:
		return boolean(cmp >= 0)
	}
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (s *State) evalUnary(expr *parser.UnaryExpr, scope *env) value {
	v := s.evalExpr(expr.Right, scope)
	switch expr.Op {
	case token.MINUS:
		n, ok := v.(number)
		if !ok {
			raisef("attempt to perform arithmetic on a %s value", v.typeOf())
		}
		return -n
	case token.NOT:
		return boolean(!truthy(v))
	case token.HASH:
		switch v := v.(type) {
		case *table:
			return number(v.length())
		case str:
			return number(len(v))
		}
		raisef("attempt to get length of a %s value", v.typeOf())
	}
	raisef("unsupported unary operator %s", expr.Op)
	return nil
}
