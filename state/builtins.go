package state

import (
	"errors"
	"fmt"
	"strings"
)

// OpenBase registers the base builtins in the globals table: error,
// assert, type, tostring, print, setmetatable, getmetatable, rawget and
// rawset. A fresh State has no builtins at all.
func (s *State) OpenBase() {
	base := map[string]GoFunc{
		"error":        builtinError,
		"assert":       builtinAssert,
		"type":         builtinType,
		"tostring":     builtinTostring,
		"print":        builtinPrint,
		"setmetatable": builtinSetmetatable,
		"getmetatable": builtinGetmetatable,
		"rawget":       builtinRawget,
		"rawset":       builtinRawset,
	}
	for name, fn := range base {
		s.globals.set(str(name), &goFunction{name: name, fn: fn})
	}
}

// arg returns the i-th (1-based) argument of the current host call, or
// nil if the caller supplied fewer values.
func arg(s *State, nargs, i int) value {
	if i > nargs {
		return nilValue{}
	}
	return s.stack[len(s.stack)-nargs+i-1]
}

func builtinError(s *State, nargs int) (int, error) {
	raise(arg(s, nargs, 1))
	return 0, nil
}

func builtinAssert(s *State, nargs int) (int, error) {
	if v := arg(s, nargs, 1); truthy(v) {
		// assert passes its first argument through on success
		s.push(v)
		return 1, nil
	}
	if msg := arg(s, nargs, 2); truthy(msg) {
		raise(msg)
	}
	return 0, errors.New("assertion failed!")
}

func builtinType(s *State, nargs int) (int, error) {
	if nargs < 1 {
		return 0, errors.New("bad argument #1 to 'type' (value expected)")
	}
	s.push(str(arg(s, nargs, 1).typeOf().String()))
	return 1, nil
}

func builtinTostring(s *State, nargs int) (int, error) {
	if nargs < 1 {
		return 0, errors.New("bad argument #1 to 'tostring' (value expected)")
	}
	s.push(str(display(arg(s, nargs, 1))))
	return 1, nil
}

func builtinPrint(s *State, nargs int) (int, error) {
	parts := make([]string, nargs)
	for i := 1; i <= nargs; i++ {
		parts[i-1] = display(arg(s, nargs, i))
	}
	fmt.Fprintln(s.out, strings.Join(parts, "\t"))
	return 0, nil
}

func builtinSetmetatable(s *State, nargs int) (int, error) {
	t, ok := arg(s, nargs, 1).(*table)
	if !ok {
		return 0, errors.New("bad argument #1 to 'setmetatable' (table expected)")
	}
	switch mt := arg(s, nargs, 2).(type) {
	case *table:
		t.meta = mt
	case nilValue:
		t.meta = nil
	default:
		return 0, errors.New("bad argument #2 to 'setmetatable' (nil or table expected)")
	}
	s.push(t)
	return 1, nil
}

func builtinGetmetatable(s *State, nargs int) (int, error) {
	t, ok := arg(s, nargs, 1).(*table)
	if !ok || t.meta == nil {
		s.push(nilValue{})
		return 1, nil
	}
	s.push(t.meta)
	return 1, nil
}

func builtinRawget(s *State, nargs int) (int, error) {
	t, ok := arg(s, nargs, 1).(*table)
	if !ok {
		return 0, errors.New("bad argument #1 to 'rawget' (table expected)")
	}
	s.push(t.get(arg(s, nargs, 2)))
	return 1, nil
}

func builtinRawset(s *State, nargs int) (int, error) {
	t, ok := arg(s, nargs, 1).(*table)
	if !ok {
		return 0, errors.New("bad argument #1 to 'rawset' (table expected)")
	}
	key := arg(s, nargs, 2)
	if _, isNil := key.(nilValue); isNil {
		return 0, errors.New("table index is nil")
	}
	t.set(key, arg(s, nargs, 3))
	s.push(t)
	return 1, nil
}
