package state

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/risor-io/lute/parser"
)

// MultRet requests all results from a protected call instead of a fixed
// count.
const MultRet = -1

var errInvalidNextKey = errors.New("invalid key to next")

// RuntimeError is returned by PCall when the called function raised an
// error. The raised value itself is left on the stack as the single
// diagnostic slot; Message holds its string form.
type RuntimeError struct {
	Message string
}

func (e *RuntimeError) Error() string {
	return e.Message
}

// scriptError carries a raised interpreter value up to the nearest
// protected-call boundary. It never crosses into host code.
type scriptError struct {
	value value
}

// State is one interpreter instance: a shared value stack, a globals
// table, and a registry of pinned references. A State must only be used
// from one goroutine at a time; it performs no internal locking.
type State struct {
	stack   []value
	globals *table
	refs    map[int]value
	nextRef int
	depth   int
	out     io.Writer
}

// New creates an empty interpreter instance. The globals table starts
// empty; call OpenBase to register the base builtins.
func New() *State {
	return &State{
		globals: newTable(),
		refs:    map[int]value{},
		out:     os.Stdout,
	}
}

// Close releases the interpreter. The State must not be used afterwards.
func (s *State) Close() {
	s.stack = nil
	s.globals = nil
	s.refs = nil
}

// SetOutput redirects the print builtin. The default is os.Stdout.
func (s *State) SetOutput(w io.Writer) {
	s.out = w
}

// Top returns the current stack height.
func (s *State) Top() int {
	return len(s.stack)
}

// SetTop grows the stack with nils or shrinks it by discarding slots so
// that its height becomes n.
func (s *State) SetTop(n int) {
	if n < 0 {
		panic(fmt.Sprintf("state: invalid stack height %d", n))
	}
	for len(s.stack) < n {
		s.stack = append(s.stack, nilValue{})
	}
	s.stack = s.stack[:n]
}

// Pop discards the top n slots.
func (s *State) Pop(n int) {
	if n < 0 || n > len(s.stack) {
		panic(fmt.Sprintf("state: cannot pop %d of %d slots", n, len(s.stack)))
	}
	s.stack = s.stack[:len(s.stack)-n]
}

// AbsIndex converts a possibly-relative index into an absolute one
// against the current stack height.
func (s *State) AbsIndex(idx int) int {
	if idx > 0 {
		return idx
	}
	if idx == 0 {
		panic("state: index 0 is not a stack slot")
	}
	return len(s.stack) + idx + 1
}

// mustIndex resolves idx and panics unless it names a live slot.
func (s *State) mustIndex(idx int) int {
	abs := s.AbsIndex(idx)
	if abs < 1 || abs > len(s.stack) {
		panic(fmt.Sprintf("state: index %d outside stack of height %d", idx, len(s.stack)))
	}
	return abs
}

func (s *State) valueAt(idx int) value {
	return s.stack[s.mustIndex(idx)-1]
}

func (s *State) push(v value) {
	s.stack = append(s.stack, v)
}

// PushValue pushes a copy of the slot at idx.
func (s *State) PushValue(idx int) {
	s.push(s.valueAt(idx))
}

// PushNil pushes the nil value.
func (s *State) PushNil() { s.push(nilValue{}) }

// PushBool pushes a boolean.
func (s *State) PushBool(b bool) { s.push(boolean(b)) }

// PushNumber pushes a number.
func (s *State) PushNumber(f float64) { s.push(number(f)) }

// PushString pushes a string.
func (s *State) PushString(v string) { s.push(str(v)) }

// NewTable pushes a fresh empty table.
func (s *State) NewTable() { s.push(newTable()) }

// PushGoFunc pushes a host function. The name appears in diagnostics.
func (s *State) PushGoFunc(name string, fn GoFunc) {
	s.push(&goFunction{name: name, fn: fn})
}

// TypeAt returns the dynamic type of the slot at idx, or TypeNone if the
// index is past the top of the stack.
func (s *State) TypeAt(idx int) Type {
	abs := s.AbsIndex(idx)
	if abs < 1 || abs > len(s.stack) {
		return TypeNone
	}
	return s.stack[abs-1].typeOf()
}

// TypeName returns the name of the dynamic type at idx.
func (s *State) TypeName(idx int) string {
	return s.TypeAt(idx).String()
}

// ToBool reads the slot at idx as a boolean. The second return is false
// when the slot holds another type; no coercion is applied.
func (s *State) ToBool(idx int) (bool, bool) {
	if b, ok := s.valueAt(idx).(boolean); ok {
		return bool(b), true
	}
	return false, false
}

// ToNumber reads the slot at idx as a number, without coercion.
func (s *State) ToNumber(idx int) (float64, bool) {
	if n, ok := s.valueAt(idx).(number); ok {
		return float64(n), true
	}
	return 0, false
}

// ToString reads the slot at idx as a string, without coercion.
func (s *State) ToString(idx int) (string, bool) {
	if v, ok := s.valueAt(idx).(str); ok {
		return string(v), true
	}
	return "", false
}

// Display renders the slot at idx for diagnostics, coercing any type to
// text the way the interpreter's tostring does.
func (s *State) Display(idx int) string {
	return display(s.valueAt(idx))
}

// Len returns the sequence length of a table or the byte length of a
// string at idx.
func (s *State) Len(idx int) int {
	switch v := s.valueAt(idx).(type) {
	case *table:
		return v.length()
	case str:
		return len(v)
	}
	panic(fmt.Sprintf("state: length of a %s value", s.TypeName(idx)))
}

// Size returns the total entry count of the table at idx, counting
// non-sequence keys as well.
func (s *State) Size(idx int) int {
	if t, ok := s.valueAt(idx).(*table); ok {
		return t.size()
	}
	panic(fmt.Sprintf("state: size of a %s value", s.TypeName(idx)))
}

// protect runs fn, converting a raised script error into a returned
// *RuntimeError instead of letting it unwind into the caller. The stack
// is restored to its height at entry when an error is caught.
func (s *State) protect(fn func()) (err error) {
	top := len(s.stack)
	defer func() {
		if r := recover(); r != nil {
			raised, ok := r.(scriptError)
			if !ok {
				panic(r)
			}
			s.stack = s.stack[:top]
			err = &RuntimeError{Message: display(raised.value)}
		}
	}()
	fn()
	return nil
}

// GetTable pops a key from the top of the stack and pushes the value
// stored under it in the table at idx, following the table's __index
// metafield for missing keys. An error raised by an __index metamethod
// is returned as a *RuntimeError; nothing is pushed in that case.
func (s *State) GetTable(idx int) error {
	t := s.tableAt(idx)
	key := s.valueAt(-1)
	s.Pop(1)
	var v value
	if err := s.protect(func() { v = s.index(t, key) }); err != nil {
		return err
	}
	s.push(v)
	return nil
}

// SetTable pops a value and then a key from the top of the stack and
// stores key = value in the table at idx.
func (s *State) SetTable(idx int) {
	t := s.tableAt(idx)
	val := s.valueAt(-1)
	key := s.valueAt(-2)
	s.Pop(2)
	if _, isNil := key.(nilValue); isNil {
		panic("state: table key is nil")
	}
	t.set(key, val)
}

// Next pops a key from the top of the stack and pushes the next key and
// value of the table at idx. It returns false, pushing nothing, when the
// traversal is complete. The popped key must be nil (to start) or a key
// previously returned by Next; anything else means the caller lost track
// of the traversal, which is unrecoverable.
func (s *State) Next(idx int) bool {
	t := s.tableAt(idx)
	key := s.valueAt(-1)
	s.Pop(1)
	k, v, ok, err := t.next(key)
	if err != nil {
		panic(fmt.Sprintf("state: %v", err))
	}
	if !ok {
		return false
	}
	s.push(k)
	s.push(v)
	return true
}

// GetMetatable pushes the metatable of the table at idx and returns
// true, or pushes nothing and returns false if there is none.
func (s *State) GetMetatable(idx int) bool {
	t := s.tableAt(idx)
	if t.meta == nil {
		return false
	}
	s.push(t.meta)
	return true
}

// SetMetatable pops a table (or nil) from the top of the stack and
// installs it as the metatable of the table at idx.
func (s *State) SetMetatable(idx int) {
	t := s.tableAt(idx)
	switch m := s.valueAt(-1).(type) {
	case *table:
		t.meta = m
	case nilValue:
		t.meta = nil
	default:
		panic(fmt.Sprintf("state: metatable must be a table, got %s", s.TypeName(-1)))
	}
	s.Pop(1)
}

func (s *State) tableAt(idx int) *table {
	t, ok := s.valueAt(idx).(*table)
	if !ok {
		panic(fmt.Sprintf("state: slot %d holds a %s, not a table", idx, s.TypeName(idx)))
	}
	return t
}

// PushGlobals pushes the globals table.
func (s *State) PushGlobals() {
	s.push(s.globals)
}

// GetGlobal pushes the value of the named global variable. As with
// GetTable, a raised __index metamethod error is returned instead of
// pushed through.
func (s *State) GetGlobal(name string) error {
	var v value
	if err := s.protect(func() { v = s.index(s.globals, str(name)) }); err != nil {
		return err
	}
	s.push(v)
	return nil
}

// SetGlobal pops the top of the stack into the named global variable.
func (s *State) SetGlobal(name string) {
	v := s.valueAt(-1)
	s.Pop(1)
	s.globals.set(str(name), v)
}

// Load compiles source code and pushes the resulting chunk as a
// zero-argument function. On a syntax error nothing is pushed and the
// parse error is returned.
func (s *State) Load(name, source string) error {
	chunk, err := parser.Parse(name, source)
	if err != nil {
		return err
	}
	s.push(&function{name: name, body: chunk.Body})
	return nil
}

// PCall calls a function in protected mode. The function and its nargs
// arguments must be on the top of the stack, function first. They are
// consumed. On success the function's results are pushed, adjusted to
// nresults unless nresults is MultRet. On failure the stack is restored
// to its height before the function slot, the raised value is pushed as
// a single diagnostic slot, and a *RuntimeError is returned.
//
// Errors raised by the callee (including by host functions it calls)
// never unwind past this boundary.
func (s *State) PCall(nargs, nresults int) (err error) {
	if nargs < 0 {
		panic("state: negative argument count")
	}
	fnIdx := len(s.stack) - nargs
	if fnIdx < 1 {
		panic("state: not enough stack slots for call")
	}
	base := fnIdx - 1
	fn := s.stack[fnIdx-1]

	defer func() {
		if r := recover(); r != nil {
			raised, ok := r.(scriptError)
			if !ok {
				panic(r)
			}
			s.stack = s.stack[:base]
			s.push(raised.value)
			err = &RuntimeError{Message: display(raised.value)}
		}
	}()

	args := make([]value, nargs)
	copy(args, s.stack[fnIdx:])
	s.stack = s.stack[:base]

	results := s.callValue(fn, args)
	if nresults != MultRet {
		for len(results) < nresults {
			results = append(results, nilValue{})
		}
		results = results[:nresults]
	}
	s.stack = append(s.stack, results...)
	return nil
}

// Ref pops the top of the stack and pins it in the reference registry,
// returning an identifier that stays valid until Unref.
func (s *State) Ref() int {
	v := s.valueAt(-1)
	s.Pop(1)
	s.nextRef++
	s.refs[s.nextRef] = v
	return s.nextRef
}

// Unref releases a pinned reference.
func (s *State) Unref(ref int) {
	delete(s.refs, ref)
}

// PushRef pushes the value pinned under ref.
func (s *State) PushRef(ref int) {
	v, ok := s.refs[ref]
	if !ok {
		panic(fmt.Sprintf("state: unknown reference %d", ref))
	}
	s.push(v)
}
