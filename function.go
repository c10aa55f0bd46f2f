package lute

import (
	"fmt"
	"io"

	"github.com/risor-io/lute/state"
)

// Function is a live handle to a callable slot on the stack. Handles
// from Load and LoadReader own their slot and must be released; one
// obtained by reading an existing slot borrows it.
type Function struct {
	ctx   Context
	idx   StackIndex
	guard *Guard
}

// Load compiles source into a callable chunk and returns an owning
// handle to it. name labels the chunk in error positions. A parse
// failure yields a SyntaxError and pushes nothing.
func Load(ctx Context, name, source string) (*Function, error) {
	s := ctx.RawState()
	if err := s.Load(name, source); err != nil {
		return nil, newSyntaxError(err.Error())
	}
	g := newGuard(ctx, 1)
	return &Function{ctx: ctx, idx: StackIndex(s.Top()), guard: g}, nil
}

// LoadReader reads source from r and compiles it. A failure of the
// reader itself yields a ReadError; a parse failure a SyntaxError.
func LoadReader(ctx Context, name string, r io.Reader) (*Function, error) {
	source, err := io.ReadAll(r)
	if err != nil {
		return nil, newReadError(err)
	}
	return Load(ctx, name, string(source))
}

// ReadFrom implements Reader, borrowing the slot at idx.
func (f *Function) ReadFrom(ctx Context, idx StackIndex) error {
	if ctx.RawState().TypeAt(int(idx)) != state.TypeFunction {
		return wrongTypeAt(ctx, "lute.Function", idx, 1)
	}
	*f = Function{ctx: ctx, idx: idx}
	return nil
}

// PushInto implements Pusher, pushing a second slot holding the same
// function.
func (f Function) PushInto(ctx Context) (*Guard, error) {
	if ctx.RawState() != f.RawState() {
		return nil, fmt.Errorf("lute: function pushed into a different interpreter")
	}
	ctx.RawState().PushValue(int(f.idx))
	return newGuard(ctx, 1), nil
}

// RawState implements Context.
func (f *Function) RawState() *state.State {
	return f.ctx.RawState()
}

func (f *Function) adoptGuard(g *Guard) {
	f.guard = g
}

// Release pops the function's slot if this handle owns it.
func (f *Function) Release() {
	if f.guard != nil {
		f.guard.Release()
	}
}

// Call invokes the function in protected mode with the given arguments
// and decodes its results into a T.
//
// Scalar targets read the first result and ignore any extras; a tuple
// target must match the result count exactly, and on any mismatch the
// WrongType error describes every result the call produced. A raised
// error becomes an ExecutionError carrying the raised value's text.
// Whatever happens, the stack is back at its prior height on return.
func Call[T any](f *Function, args ...any) (T, error) {
	var zero T
	s := f.RawState()
	base := s.Top()
	s.PushValue(int(f.idx))
	for i, a := range args {
		if _, err := TryPush(f, a); err != nil {
			s.SetTop(base)
			return zero, fmt.Errorf("argument %d: %w", i+1, err)
		}
	}
	nargs := s.Top() - base - 1
	if err := s.PCall(nargs, state.MultRet); err != nil {
		// the raised value sits in a single diagnostic slot
		s.SetTop(base)
		return zero, newExecutionError(err.(*state.RuntimeError).Message)
	}
	count := s.Top() - base

	var out T
	if rr, ok := any(&out).(resultReader); ok {
		err := rr.readResults(f, StackIndex(base), count)
		s.SetTop(base)
		if err != nil {
			return zero, err
		}
		return out, nil
	}
	out, err := ReadAt[T](f, StackIndex(base+1))
	if err != nil {
		s.SetTop(base)
		return zero, err
	}
	if owner, ok := any(&out).(slotOwner); ok {
		// keep the first result for the handle, drop any surplus
		s.SetTop(base + 1)
		owner.adoptGuard(newGuard(f.ctx, 1))
		return out, nil
	}
	s.SetTop(base)
	return out, nil
}

// Exec invokes the function for its effects, discarding any results.
func Exec(f *Function, args ...any) error {
	s := f.RawState()
	base := s.Top()
	s.PushValue(int(f.idx))
	for i, a := range args {
		if _, err := TryPush(f, a); err != nil {
			s.SetTop(base)
			return fmt.Errorf("argument %d: %w", i+1, err)
		}
	}
	nargs := s.Top() - base - 1
	if err := s.PCall(nargs, 0); err != nil {
		s.SetTop(base)
		return newExecutionError(err.(*state.RuntimeError).Message)
	}
	s.SetTop(base)
	return nil
}
