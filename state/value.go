// Package state implements the interpreter consumed by the binding layer:
// a dynamically typed value system, a shared value stack, and a narrow
// C-style primitive API (push, pop, index, table access, protected call).
//
// Host code is not expected to use this package directly; the root lute
// package wraps it in a typed marshalling protocol. The API here is
// deliberately low-level: indexes are 1-based, negative indexes count
// from the top of the stack, and misuse (an index outside the stack) is
// a programming error that panics rather than returning an error.
package state

import (
	"fmt"
	"strconv"

	"github.com/risor-io/lute/parser"
)

// Type identifies the dynamic type of a stack slot.
type Type int

// Dynamic types, in the order of their type tags.
const (
	TypeNone Type = iota - 1 // reading past the top of the stack
	TypeNil
	TypeBoolean
	TypeNumber
	TypeString
	TypeTable
	TypeFunction
)

// String returns the interpreter-facing name of the type.
func (t Type) String() string {
	switch t {
	case TypeNone:
		return "no value"
	case TypeNil:
		return "nil"
	case TypeBoolean:
		return "boolean"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeTable:
		return "table"
	case TypeFunction:
		return "function"
	}
	return "unknown"
}

// value is one dynamically typed interpreter value. Scalars are value
// types so they compare and hash naturally as table keys; tables and
// functions compare by identity.
type value interface {
	typeOf() Type
}

type nilValue struct{}

type boolean bool

type number float64

type str string

// function is a script closure: a function literal plus the environment
// it was defined in.
type function struct {
	name   string
	params []string
	body   *parser.Block
	env    *env
}

// GoFunc is a host function callable from the interpreter. At entry the
// top nargs stack slots are the call arguments; the function pushes its
// results above them and returns how many it pushed. A returned error is
// raised as an interpreter error, catchable at the nearest PCall.
type GoFunc func(s *State, nargs int) (int, error)

// goFunction wraps a GoFunc as a value.
type goFunction struct {
	name string
	fn   GoFunc
}

func (nilValue) typeOf() Type    { return TypeNil }
func (boolean) typeOf() Type     { return TypeBoolean }
func (number) typeOf() Type      { return TypeNumber }
func (str) typeOf() Type         { return TypeString }
func (*table) typeOf() Type      { return TypeTable }
func (*function) typeOf() Type   { return TypeFunction }
func (*goFunction) typeOf() Type { return TypeFunction }

// truthy follows Lua: only nil and false are falsey.
func truthy(v value) bool {
	switch v := v.(type) {
	case nilValue:
		return false
	case boolean:
		return bool(v)
	}
	return true
}

// display renders a value for diagnostics and tostring.
func display(v value) string {
	switch v := v.(type) {
	case nilValue:
		return "nil"
	case boolean:
		if v {
			return "true"
		}
		return "false"
	case number:
		return formatNumber(float64(v))
	case str:
		return string(v)
	case *table:
		return fmt.Sprintf("table: %p", v)
	case *function:
		return fmt.Sprintf("function: %p", v)
	case *goFunction:
		return fmt.Sprintf("function: %s", v.name)
	}
	return "unknown"
}

// formatNumber prints integers without a decimal point, like Lua's
// tostring.
func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', 14, 64)
}

// valuesEqual implements the == operator. Numbers compare by value,
// strings by content, tables and functions by identity.
func valuesEqual(a, b value) bool {
	return a == b
}
