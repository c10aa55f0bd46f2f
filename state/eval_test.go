package state

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func run(t *testing.T, s *State, code string) {
	t.Helper()
	require.NoError(t, s.Load("test", code))
	require.NoError(t, s.PCall(0, MultRet))
}

func evalOne(t *testing.T, code string) *State {
	t.Helper()
	s := New()
	s.OpenBase()
	run(t, s, code)
	return s
}

func TestEvalExpressions(t *testing.T) {
	tests := []struct {
		code string
		want float64
	}{
		{"return 1 + 2", 3},
		{"return 10 - 4", 6},
		{"return 6 * 7", 42},
		{"return 7 / 2", 3.5},
		{"return 7 % 3", 1},
		{"return -7 % 3", 2}, // floored modulo, as in Lua
		{"return -(3 + 4)", -7},
		{"return 1 + 2 * 3", 7},
		{"return (1 + 2) * 3", 9},
		{"return 2 * 3 + 1", 7},
		{"return #'hello'", 5},
		{"return #{10, 20, 30}", 3},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			s := evalOne(t, tt.code)
			n, ok := s.ToNumber(-1)
			require.True(t, ok)
			require.Equal(t, tt.want, n)
		})
	}
}

func TestEvalBooleans(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"return 1 < 2", true},
		{"return 2 <= 2", true},
		{"return 3 > 4", false},
		{"return 'a' < 'b'", true},
		{"return 1 == 1", true},
		{"return 1 ~= 1", false},
		{"return 'x' == 'x'", true},
		{"return 1 == '1'", false}, // no coercion across types
		{"return not nil", true},
		{"return not 0", false}, // zero is truthy
		{"return nil == false", false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			s := evalOne(t, tt.code)
			b, ok := s.ToBool(-1)
			require.True(t, ok)
			require.Equal(t, tt.want, b)
		})
	}
}

func TestEvalAndOrReturnOperands(t *testing.T) {
	s := evalOne(t, "return 1 and 'yes'")
	v, ok := s.ToString(-1)
	require.True(t, ok)
	require.Equal(t, "yes", v)

	s = evalOne(t, "return nil or 42")
	n, ok := s.ToNumber(-1)
	require.True(t, ok)
	require.Equal(t, 42.0, n)

	s = evalOne(t, "return false and explode()")
	b, ok := s.ToBool(-1)
	require.True(t, ok)
	require.False(t, b)
}

func TestEvalConcat(t *testing.T) {
	s := evalOne(t, "return 'a' .. 'b' .. 'c'")
	v, ok := s.ToString(-1)
	require.True(t, ok)
	require.Equal(t, "abc", v)

	// numbers coerce in concatenation
	s = evalOne(t, "return 'n=' .. 42")
	v, ok = s.ToString(-1)
	require.True(t, ok)
	require.Equal(t, "n=42", v)
}

func TestEvalLocalsAndGlobals(t *testing.T) {
	s := evalOne(t, `
		local a, b = 1, 2
		c = a + b
		local a = a + 10
		return a, c
	`)
	require.Equal(t, 2, s.Top())
	n, _ := s.ToNumber(1)
	require.Equal(t, 11.0, n)
	n, _ = s.ToNumber(2)
	require.Equal(t, 3.0, n)

	s.SetTop(0)
	require.NoError(t, s.GetGlobal("c"))
	n, _ = s.ToNumber(-1)
	require.Equal(t, 3.0, n)
	require.NoError(t, s.GetGlobal("a"))
	require.Equal(t, TypeNil, s.TypeAt(-1))
}

func TestEvalMultipleAssignment(t *testing.T) {
	s := evalOne(t, `
		local function pair() return 1, 2 end
		local a, b, c = pair()
		local d, e = pair(), 10
		return a, b, c, d, e
	`)
	require.Equal(t, 5, s.Top())
	want := []float64{1, 2, 0, 1, 10}
	for i, w := range want {
		if i == 2 {
			require.Equal(t, TypeNil, s.TypeAt(3))
			continue
		}
		n, ok := s.ToNumber(i + 1)
		require.True(t, ok)
		require.Equal(t, w, n)
	}
}

func TestEvalIfChain(t *testing.T) {
	s := evalOne(t, `
		local function grade(n)
			if n >= 90 then
				return 'a'
			elseif n >= 80 then
				return 'b'
			else
				return 'c'
			end
		end
		return grade(95), grade(85), grade(10)
	`)
	for i, want := range []string{"a", "b", "c"} {
		v, ok := s.ToString(i + 1)
		require.True(t, ok)
		require.Equal(t, want, v)
	}
}

func TestEvalLoops(t *testing.T) {
	s := evalOne(t, `
		local sum = 0
		for i = 1, 10 do sum = sum + i end
		local down = 0
		for i = 3, 1, -1 do down = down + i end
		local n = 0
		while true do
			n = n + 1
			if n == 5 then break end
		end
		return sum, down, n
	`)
	n, _ := s.ToNumber(1)
	require.Equal(t, 55.0, n)
	n, _ = s.ToNumber(2)
	require.Equal(t, 6.0, n)
	n, _ = s.ToNumber(3)
	require.Equal(t, 5.0, n)
}

func TestEvalClosures(t *testing.T) {
	s := evalOne(t, `
		local function counter()
			local n = 0
			return function()
				n = n + 1
				return n
			end
		end
		local c = counter()
		c()
		c()
		return c(), counter()()
	`)
	n, _ := s.ToNumber(1)
	require.Equal(t, 3.0, n)
	n, _ = s.ToNumber(2)
	require.Equal(t, 1.0, n)
}

func TestEvalTables(t *testing.T) {
	s := evalOne(t, `
		local t = {10, 20, x = 'marks', ['the'] = 'spot'}
		t.y = t.x
		t[3] = 30
		return t[1] + t[2] + t[3], t.y, t['the']
	`)
	n, _ := s.ToNumber(1)
	require.Equal(t, 60.0, n)
	v, _ := s.ToString(2)
	require.Equal(t, "marks", v)
	v, _ = s.ToString(3)
	require.Equal(t, "spot", v)
}

func TestEvalMethodCall(t *testing.T) {
	s := evalOne(t, `
		local account = {balance = 100}
		account.deposit = function(self, amount)
			self.balance = self.balance + amount
		end
		account:deposit(50)
		return account.balance
	`)
	n, _ := s.ToNumber(-1)
	require.Equal(t, 150.0, n)
}

func TestEvalMetatables(t *testing.T) {
	s := evalOne(t, `
		local base = {greeting = 'hello'}
		local obj = setmetatable({}, {__index = base})
		local raw = rawget(obj, 'greeting')
		return obj.greeting, raw == nil, getmetatable(obj) ~= nil
	`)
	v, _ := s.ToString(1)
	require.Equal(t, "hello", v)
	b, _ := s.ToBool(2)
	require.True(t, b)
	b, _ = s.ToBool(3)
	require.True(t, b)
}

func TestEvalBuiltins(t *testing.T) {
	s := evalOne(t, `
		return type(nil), type(true), type(1), type('s'), type({}), type(print)
	`)
	want := []string{"nil", "boolean", "number", "string", "table", "function"}
	for i, w := range want {
		v, ok := s.ToString(i + 1)
		require.True(t, ok)
		require.Equal(t, w, v)
	}

	s = evalOne(t, "return tostring(1.5), tostring(nil), assert(42)")
	v, _ := s.ToString(1)
	require.Equal(t, "1.5", v)
	v, _ = s.ToString(2)
	require.Equal(t, "nil", v)
	n, _ := s.ToNumber(3)
	require.Equal(t, 42.0, n)
}

func TestEvalPrint(t *testing.T) {
	s := New()
	defer s.Close()
	s.OpenBase()
	var buf bytes.Buffer
	s.SetOutput(&buf)
	run(t, s, "print('a', 1, nil, true)")
	require.Equal(t, "a\t1\tnil\ttrue\n", buf.String())
}

func TestEvalRuntimeErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"raised string", "error('oops')", "oops"},
		{"raised number", "error(7)", "7"},
		{"assert failure", "assert(false, 'broken')", "broken"},
		{"assert default", "assert(nil)", "assertion failed!"},
		{"add nil", "return 1 + nil", "attempt to perform arithmetic"},
		{"call number", "local x = 5 x()", "attempt to call a number value"},
		{"compare mixed", "return 1 < 'x'", "attempt to compare"},
		{"undefined call", "nosuch()", "attempt to call a nil value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			defer s.Close()
			s.OpenBase()
			require.NoError(t, s.Load("test", tt.code))
			err := s.PCall(0, 0)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEvalRecursionLimit(t *testing.T) {
	s := New()
	defer s.Close()
	s.OpenBase()
	require.NoError(t, s.Load("test", `
		local function loop() return loop() end
		loop()
	`))
	err := s.PCall(0, 0)
	require.Error(t, err)
	require.Contains(t, strings.ToLower(err.Error()), "stack")
}

func TestEvalRecursion(t *testing.T) {
	s := evalOne(t, `
		local function fib(n)
			if n < 2 then return n end
			return fib(n - 1) + fib(n - 2)
		end
		return fib(15)
	`)
	n, _ := s.ToNumber(-1)
	require.Equal(t, 610.0, n)
}

func TestEvalGoFuncReentry(t *testing.T) {
	s := New()
	defer s.Close()
	s.OpenBase()
	s.PushGoFunc("sum", func(s *State, nargs int) (int, error) {
		total := 0.0
		for i := 1; i <= nargs; i++ {
			n, ok := s.ToNumber(s.Top() - nargs + i)
			require.True(t, ok)
			total += n
		}
		s.PushNumber(total)
		return 1, nil
	})
	s.SetGlobal("sum")
	run(t, s, "return sum(1, 2, 3) + sum(sum(4, 5), 6)")
	n, _ := s.ToNumber(-1)
	require.Equal(t, 21.0, n)
}
