package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStackPrimitives(t *testing.T) {
	s := New()
	defer s.Close()
	require.Equal(t, 0, s.Top())

	s.PushNil()
	s.PushBool(true)
	s.PushNumber(42)
	s.PushString("hi")
	require.Equal(t, 4, s.Top())

	require.Equal(t, TypeNil, s.TypeAt(1))
	require.Equal(t, TypeBoolean, s.TypeAt(2))
	require.Equal(t, TypeNumber, s.TypeAt(3))
	require.Equal(t, TypeString, s.TypeAt(4))

	// negative indexes count from the top
	require.Equal(t, TypeString, s.TypeAt(-1))
	require.Equal(t, 4, s.AbsIndex(-1))
	require.Equal(t, 3, s.AbsIndex(-2))

	s.PushValue(2)
	require.Equal(t, TypeBoolean, s.TypeAt(5))

	s.Pop(2)
	require.Equal(t, 3, s.Top())
	s.SetTop(1)
	require.Equal(t, 1, s.Top())
	s.SetTop(3)
	require.Equal(t, 3, s.Top())
	require.Equal(t, TypeNil, s.TypeAt(3))
}

func TestTypePastTop(t *testing.T) {
	s := New()
	defer s.Close()
	s.PushNumber(1)
	require.Equal(t, TypeNone, s.TypeAt(2))
	require.Equal(t, "no value", s.TypeName(2))
}

func TestConversionsAreStrict(t *testing.T) {
	s := New()
	defer s.Close()
	s.PushString("42")
	s.PushNumber(42)
	s.PushBool(true)

	_, ok := s.ToNumber(1)
	require.False(t, ok)
	n, ok := s.ToNumber(2)
	require.True(t, ok)
	require.Equal(t, 42.0, n)

	_, ok = s.ToString(2)
	require.False(t, ok)
	v, ok := s.ToString(1)
	require.True(t, ok)
	require.Equal(t, "42", v)

	_, ok = s.ToBool(1)
	require.False(t, ok)
	b, ok := s.ToBool(3)
	require.True(t, ok)
	require.True(t, b)
}

func TestDisplay(t *testing.T) {
	s := New()
	defer s.Close()
	s.PushNumber(42)
	s.PushNumber(1.5)
	s.PushBool(false)
	s.PushNil()
	s.PushString("x")
	require.Equal(t, "42", s.Display(1))
	require.Equal(t, "1.5", s.Display(2))
	require.Equal(t, "false", s.Display(3))
	require.Equal(t, "nil", s.Display(4))
	require.Equal(t, "x", s.Display(5))
}

func TestTableGetSet(t *testing.T) {
	s := New()
	defer s.Close()
	s.NewTable()

	s.PushString("answer")
	s.PushNumber(42)
	s.SetTable(1)
	require.Equal(t, 1, s.Top())

	s.PushString("answer")
	require.NoError(t, s.GetTable(1))
	require.Equal(t, 2, s.Top())
	n, ok := s.ToNumber(-1)
	require.True(t, ok)
	require.Equal(t, 42.0, n)

	// missing keys read as nil
	s.Pop(1)
	s.PushString("missing")
	require.NoError(t, s.GetTable(1))
	require.Equal(t, TypeNil, s.TypeAt(-1))
}

func TestTableSetNilKeyPanics(t *testing.T) {
	s := New()
	defer s.Close()
	s.NewTable()
	s.PushNil()
	s.PushNumber(1)
	require.Panics(t, func() {
		s.SetTable(1)
	})
}

func TestTableNextInsertionOrder(t *testing.T) {
	s := New()
	defer s.Close()
	s.NewTable()
	for _, key := range []string{"c", "a", "b"} {
		s.PushString(key)
		s.PushNumber(1)
		s.SetTable(1)
	}
	var keys []string
	s.PushNil()
	for s.Next(1) {
		k, ok := s.ToString(-2)
		require.True(t, ok)
		keys = append(keys, k)
		s.Pop(1)
	}
	require.Equal(t, []string{"c", "a", "b"}, keys)
	require.Equal(t, 1, s.Top())
}

func TestTableNextUnknownKeyPanics(t *testing.T) {
	s := New()
	defer s.Close()
	s.NewTable()
	s.PushString("x")
	s.PushNumber(1)
	s.SetTable(1)
	s.PushString("never-a-key")
	require.Panics(t, func() {
		s.Next(1)
	})
}

func TestTableLenAndSize(t *testing.T) {
	s := New()
	defer s.Close()
	s.NewTable()
	for i := 1; i <= 3; i++ {
		s.PushNumber(float64(i))
		s.PushNumber(float64(i * 10))
		s.SetTable(1)
	}
	s.PushString("named")
	s.PushNumber(1)
	s.SetTable(1)
	require.Equal(t, 3, s.Len(1))
	require.Equal(t, 4, s.Size(1))

	s.PushString("abc")
	require.Equal(t, 3, s.Len(2))
}

func TestMetatableIndexFallback(t *testing.T) {
	s := New()
	defer s.Close()
	s.NewTable() // 1: the table
	s.NewTable() // 2: its metatable
	s.NewTable() // 3: the __index backing table

	s.PushString("x")
	s.PushNumber(5)
	s.SetTable(3)

	s.PushString("__index")
	s.PushValue(3)
	s.SetTable(2)

	s.SetTop(2)
	s.SetMetatable(1)
	require.Equal(t, 1, s.Top())

	s.PushString("x")
	require.NoError(t, s.GetTable(1))
	n, ok := s.ToNumber(-1)
	require.True(t, ok)
	require.Equal(t, 5.0, n)

	require.True(t, s.GetMetatable(1))
	require.Equal(t, TypeTable, s.TypeAt(-1))
}

func TestGetTableMetamethodError(t *testing.T) {
	s := New()
	defer s.Close()
	s.OpenBase()
	require.NoError(t, s.Load("chunk",
		"t = setmetatable({}, {__index = function() error('boom') end})"))
	require.NoError(t, s.PCall(0, 0))

	require.NoError(t, s.GetGlobal("t"))
	s.PushString("missing")
	err := s.GetTable(-2)
	require.Error(t, err)
	var rerr *RuntimeError
	require.True(t, errors.As(err, &rerr))
	require.Equal(t, "boom", rerr.Message)

	// the key was consumed and nothing was pushed in its place
	require.Equal(t, 1, s.Top())
	require.Equal(t, TypeTable, s.TypeAt(1))
}

func TestLoadSyntaxError(t *testing.T) {
	s := New()
	defer s.Close()
	err := s.Load("bad", "local = 5")
	require.Error(t, err)
	require.Equal(t, 0, s.Top())
}

func TestPCallResults(t *testing.T) {
	s := New()
	defer s.Close()
	require.NoError(t, s.Load("chunk", "return 1, 2, 3"))
	require.NoError(t, s.PCall(0, MultRet))
	require.Equal(t, 3, s.Top())
	s.SetTop(0)

	require.NoError(t, s.Load("chunk", "return 1, 2, 3"))
	require.NoError(t, s.PCall(0, 2))
	require.Equal(t, 2, s.Top())
	s.SetTop(0)

	// padding with nils up to nresults
	require.NoError(t, s.Load("chunk", "return 1"))
	require.NoError(t, s.PCall(0, 3))
	require.Equal(t, 3, s.Top())
	require.Equal(t, TypeNil, s.TypeAt(3))
}

func TestPCallError(t *testing.T) {
	s := New()
	defer s.Close()
	s.OpenBase()
	s.PushNumber(99) // ballast below the call
	require.NoError(t, s.Load("chunk", "error('boom')"))
	err := s.PCall(0, 0)
	require.Error(t, err)
	var rerr *RuntimeError
	require.True(t, errors.As(err, &rerr))
	require.Equal(t, "boom", rerr.Message)

	// one diagnostic slot above the preserved ballast
	require.Equal(t, 2, s.Top())
	require.Equal(t, TypeNumber, s.TypeAt(1))
	msg, ok := s.ToString(2)
	require.True(t, ok)
	require.Equal(t, "boom", msg)
}

func TestGoFuncCall(t *testing.T) {
	s := New()
	defer s.Close()
	s.PushGoFunc("double", func(s *State, nargs int) (int, error) {
		require.Equal(t, 1, nargs)
		n, ok := s.ToNumber(-1)
		require.True(t, ok)
		s.PushNumber(n * 2)
		return 1, nil
	})
	s.PushNumber(21)
	require.NoError(t, s.PCall(1, 1))
	n, ok := s.ToNumber(-1)
	require.True(t, ok)
	require.Equal(t, 42.0, n)
}

func TestGoFuncError(t *testing.T) {
	s := New()
	defer s.Close()
	s.PushGoFunc("fail", func(s *State, nargs int) (int, error) {
		return 0, errors.New("host failure")
	})
	err := s.PCall(0, 0)
	require.Error(t, err)
	var rerr *RuntimeError
	require.True(t, errors.As(err, &rerr))
	require.Equal(t, "host failure", rerr.Message)
}

func TestGlobals(t *testing.T) {
	s := New()
	defer s.Close()
	s.PushNumber(7)
	s.SetGlobal("lucky")
	require.Equal(t, 0, s.Top())

	require.NoError(t, s.GetGlobal("lucky"))
	n, ok := s.ToNumber(-1)
	require.True(t, ok)
	require.Equal(t, 7.0, n)
	s.Pop(1)

	require.NoError(t, s.GetGlobal("unset"))
	require.Equal(t, TypeNil, s.TypeAt(-1))
	s.Pop(1)

	// the globals table is reachable as a plain table
	s.PushGlobals()
	s.PushString("lucky")
	require.NoError(t, s.GetTable(-2))
	n, ok = s.ToNumber(-1)
	require.True(t, ok)
	require.Equal(t, 7.0, n)
}

func TestRefRegistry(t *testing.T) {
	s := New()
	defer s.Close()
	s.PushString("pinned")
	ref := s.Ref()
	require.Equal(t, 0, s.Top())

	s.PushRef(ref)
	v, ok := s.ToString(-1)
	require.True(t, ok)
	require.Equal(t, "pinned", v)
	s.Pop(1)

	s.Unref(ref)
	require.Panics(t, func() {
		s.PushRef(ref)
	})
}

func TestIndexMisusePanics(t *testing.T) {
	s := New()
	defer s.Close()
	s.PushNumber(1)
	require.Panics(t, func() { s.PushValue(3) })
	require.Panics(t, func() { s.PushValue(0) })
	require.Panics(t, func() { s.Pop(2) })
	require.Panics(t, func() { s.SetTop(-1) })
}
