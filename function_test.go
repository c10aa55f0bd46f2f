package lute

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAndCall(t *testing.T) {
	l := newLua(t)
	f, err := Load(l, "add", "return 2 + 3")
	require.NoError(t, err)
	n, err := Call[int](f)
	require.NoError(t, err)
	require.Equal(t, 5, n)

	// a loaded chunk can run more than once
	n, err = Call[int](f)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	f.Release()
	require.Equal(t, 0, l.RawState().Top())
}

func TestLoadSyntaxError(t *testing.T) {
	l := newLua(t)
	_, err := Load(l, "bad", "local = ")
	require.Error(t, err)
	var lerr *Error
	require.True(t, errors.As(err, &lerr))
	require.Equal(t, SyntaxError, lerr.Kind)
	require.Equal(t, 0, l.RawState().Top())
}

func TestLoadReader(t *testing.T) {
	l := newLua(t)
	f, err := LoadReader(l, "r", strings.NewReader("return 'from reader'"))
	require.NoError(t, err)
	defer f.Release()
	v, err := Call[string](f)
	require.NoError(t, err)
	require.Equal(t, "from reader", v)
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) {
	return 0, r.err
}

func TestLoadReaderFailure(t *testing.T) {
	l := newLua(t)
	cause := errors.New("disk went away")
	_, err := LoadReader(l, "r", failingReader{err: cause})
	require.Error(t, err)
	var lerr *Error
	require.True(t, errors.As(err, &lerr))
	require.Equal(t, ReadError, lerr.Kind)
	require.True(t, errors.Is(err, cause))
	require.Equal(t, 0, l.RawState().Top())
}

func TestCallWithArguments(t *testing.T) {
	l := newLua(t)
	require.NoError(t, l.Exec(`
		function describe(name, n)
			return name .. ' x' .. n
		end
	`))
	f, err := Global[Function](l, "describe")
	require.NoError(t, err)
	defer f.Release()

	v, err := Call[string](&f, "widget", 3)
	require.NoError(t, err)
	require.Equal(t, "widget x3", v)
}

func TestCallArgumentPushFailureUnwinds(t *testing.T) {
	l := newLua(t)
	require.NoError(t, l.Exec("function id(x) return x end"))
	f, err := Global[Function](l, "id")
	require.NoError(t, err)

	_, err = Call[int](&f, 1, struct{}{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "argument 2")
	f.Release()
	require.Equal(t, 0, l.RawState().Top())
}

func TestCallRaisedError(t *testing.T) {
	l := newLua(t)
	require.NoError(t, l.Exec("function boom() error('kaput') end"))
	f, err := Global[Function](l, "boom")
	require.NoError(t, err)

	_, err = Call[int](&f)
	var lerr *Error
	require.True(t, errors.As(err, &lerr))
	require.Equal(t, ExecutionError, lerr.Kind)
	require.Equal(t, "kaput", lerr.Message)
	f.Release()
	require.Equal(t, 0, l.RawState().Top())
}

func TestExecDiscardsResults(t *testing.T) {
	l := newLua(t)
	require.NoError(t, l.Exec(`
		calls = 0
		function bump()
			calls = calls + 1
			return 'ignored', function() end
		end
	`))
	f, err := Global[Function](l, "bump")
	require.NoError(t, err)

	require.NoError(t, Exec(&f))
	require.NoError(t, Exec(&f))
	f.Release()
	require.Equal(t, 0, l.RawState().Top())

	n, err := Global[int](l, "calls")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestCallReturnsFunctionHandle(t *testing.T) {
	l := newLua(t)
	require.NoError(t, l.Exec(`
		function adder(n)
			return function(m) return n + m end
		end
	`))
	adder, err := Global[Function](l, "adder")
	require.NoError(t, err)

	addFive, err := Call[Function](&adder, 5)
	require.NoError(t, err)
	n, err := Call[int](&addFive, 4)
	require.NoError(t, err)
	require.Equal(t, 9, n)

	addFive.Release()
	adder.Release()
	require.Equal(t, 0, l.RawState().Top())
}

func TestNestedHostReentry(t *testing.T) {
	l := newLua(t)
	// the host callback re-enters the interpreter mid-call
	require.NoError(t, l.Set("transform", func(n int) (int, error) {
		inner, err := Eval[int](l, "return 10")
		if err != nil {
			return 0, err
		}
		return n * inner, nil
	}))
	n, err := Eval[int](l, "return transform(4) + 2")
	require.NoError(t, err)
	require.Equal(t, 42, n)
	require.Equal(t, 0, l.RawState().Top())
}

func TestFunctionPushInto(t *testing.T) {
	l := newLua(t)
	require.NoError(t, l.Exec("function twice(n) return n * 2 end"))
	f, err := Global[Function](l, "twice")
	require.NoError(t, err)

	// store the same function under another global
	require.NoError(t, l.Set("double", f))
	f.Release()

	n, err := Eval[int](l, "return double(21)")
	require.NoError(t, err)
	require.Equal(t, 42, n)
	require.Equal(t, 0, l.RawState().Top())
}
