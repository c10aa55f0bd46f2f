package lute

import (
	"fmt"
	"io"

	"github.com/risor-io/lute/state"
)

// Lua is an owned execution context: a fresh interpreter with its own
// stack, globals and reference registry. It is not safe for concurrent
// use; one goroutine drives a context at a time.
type Lua struct {
	st *state.State
}

// New creates an empty context. No builtins are registered; call
// OpenBase for the base set.
func New() *Lua {
	return &Lua{st: state.New()}
}

// OpenBase registers the base builtins (error, assert, type, tostring,
// print, setmetatable, getmetatable, rawget, rawset) in the globals.
func (l *Lua) OpenBase() {
	l.st.OpenBase()
}

// Close releases the context. The context and every handle derived
// from it are invalid afterwards.
func (l *Lua) Close() {
	l.st.Close()
}

// RawState implements Context.
func (l *Lua) RawState() *state.State {
	return l.st
}

// SetOutput redirects the output of print, which defaults to stdout.
func (l *Lua) SetOutput(w io.Writer) {
	l.st.SetOutput(w)
}

// Exec compiles and runs code, discarding any results.
func (l *Lua) Exec(code string) error {
	f, err := Load(l, "chunk", code)
	if err != nil {
		return err
	}
	defer f.Release()
	return Exec(f)
}

// ExecFrom reads code from r, then compiles and runs it.
func (l *Lua) ExecFrom(r io.Reader) error {
	f, err := LoadReader(l, "chunk", r)
	if err != nil {
		return err
	}
	defer f.Release()
	return Exec(f)
}

// Eval compiles and runs code, decoding its results into a T under the
// same rules as Call.
func Eval[T any](l *Lua, code string) (T, error) {
	f, err := Load(l, "chunk", code)
	if err != nil {
		var zero T
		return zero, err
	}
	defer f.Release()
	return Call[T](f)
}

// EvalFrom is Eval reading its code from r.
func EvalFrom[T any](l *Lua, r io.Reader) (T, error) {
	f, err := LoadReader(l, "chunk", r)
	if err != nil {
		var zero T
		return zero, err
	}
	defer f.Release()
	return Call[T](f)
}

// Global reads the named global variable into a T. An unset global
// reads as nil. When T is a handle type (Table, Function) the handle
// owns a stack slot and must be released.
func Global[T any](l *Lua, name string) (T, error) {
	if err := l.st.GetGlobal(name); err != nil {
		var zero T
		return zero, newExecutionError(err.Error())
	}
	return readOwnedTop[T](l)
}

// Set stores v in the named global variable.
func (l *Lua) Set(name string, v any) error {
	g, err := TryPush(l, v)
	if err != nil {
		return err
	}
	if g.Size() != 1 {
		n := g.Size()
		g.Release()
		return fmt.Errorf("lute: global %q: pushed %d slots, want 1", name, n)
	}
	g.Forget()
	l.st.SetGlobal(name)
	return nil
}

// Globals returns an owning handle to the globals table.
func (l *Lua) Globals() *Table {
	l.st.PushGlobals()
	g := newGuard(l, 1)
	return &Table{ctx: l, idx: StackIndex(l.st.Top()), guard: g}
}

// CreateTable installs a fresh empty table in the named global
// variable, replacing any previous value, and returns an owning handle
// to it.
func (l *Lua) CreateTable(name string) *Table {
	l.st.NewTable()
	l.st.PushValue(-1)
	l.st.SetGlobal(name)
	g := newGuard(l, 1)
	return &Table{ctx: l, idx: StackIndex(l.st.Top()), guard: g}
}

// Ref is a value pinned in the context's reference registry. Unlike a
// stack handle it survives arbitrary stack movement, so it is the form
// for host-side storage that outlives the current call.
type Ref struct {
	st       *state.State
	id       int
	released bool
}

// Pin copies the slot at idx into the reference registry.
func Pin(ctx Context, idx int) (*Ref, error) {
	s := ctx.RawState()
	abs := s.AbsIndex(idx)
	if abs < 1 || abs > s.Top() {
		return nil, fmt.Errorf("lute: cannot pin index %d on a stack of height %d", idx, s.Top())
	}
	s.PushValue(abs)
	return &Ref{st: s, id: s.Ref()}, nil
}

// Push copies the pinned value back onto the stack.
func (r *Ref) Push(ctx Context) *Guard {
	if r.released {
		panic("lute: push of a released reference")
	}
	ctx.RawState().PushRef(r.id)
	return newGuard(ctx, 1)
}

// Release drops the pin. Idempotent.
func (r *Ref) Release() {
	if r.released {
		return
	}
	r.released = true
	r.st.Unref(r.id)
}
