package lute

import (
	"fmt"

	"github.com/risor-io/lute/state"
)

// Context is the capability to reach an interpreter's stack. It is
// implemented by *Lua (the owned context), *Guard, *Table and *Function,
// so any of them can serve as the anchor for further pushes and reads.
//
// Holding a Context by interface is the borrowed form: many holders may
// share one underlying state, provided they respect the stack's LIFO
// discipline (release guards in the reverse order they were created).
type Context interface {
	RawState() *state.State
}

// rawContext adapts a bare state into a Context. Used by trampolines,
// which receive the state directly from the interpreter.
type rawContext struct {
	st *state.State
}

func (r rawContext) RawState() *state.State { return r.st }

// StackIndex is an absolute, 1-based stack position. A relative index is
// only meaningful at the instant it is resolved against the current
// stack height, so resolution happens exactly once and the result is
// immutable afterwards.
type StackIndex int

// ResolveIndex fixes a possibly-relative index against the current
// stack height. It panics if idx is zero or outside the stack; that is
// a programming error, not a recoverable condition.
func ResolveIndex(ctx Context, idx int) StackIndex {
	s := ctx.RawState()
	abs := s.AbsIndex(idx)
	if abs < 1 || abs > s.Top() {
		panic(fmt.Sprintf("lute: index %d outside stack of height %d", idx, s.Top()))
	}
	return StackIndex(abs)
}

// Guard owns a contiguous range of slots at the top of the stack.
// Releasing it pops exactly the owned count; forgetting it transfers
// that ownership to an enclosing guard. The zero-slot guard is a valid
// no-op.
//
// Guards must be released in the reverse order of their creation. The
// usual pattern is:
//
//	g, err := lute.TryPush(ctx, v)
//	if err != nil { ... }
//	defer g.Release()
type Guard struct {
	ctx      Context
	size     int
	base     int // stack height below the owned slots, for balance checks
	released bool
}

func newGuard(ctx Context, size int) *Guard {
	top := ctx.RawState().Top()
	if size < 0 || size > top {
		panic(fmt.Sprintf("lute: guard of %d slots on stack of height %d", size, top))
	}
	return &Guard{ctx: ctx, size: size, base: top - size}
}

// RawState implements Context, letting a Guard anchor nested pushes.
func (g *Guard) RawState() *state.State {
	return g.ctx.RawState()
}

// Size returns the number of slots this guard owns.
func (g *Guard) Size() int {
	return g.size
}

// Forget gives up ownership without popping and returns the abandoned
// slot count. The caller takes responsibility for those slots, normally
// by folding them into an enclosing guard.
func (g *Guard) Forget() int {
	size := g.size
	g.size = 0
	g.released = true
	return size
}

// Release pops the owned slots. It is idempotent, so it is safe to both
// defer it and call it explicitly on an early exit path.
func (g *Guard) Release() {
	if g.released {
		return
	}
	g.released = true
	if g.size == 0 {
		return
	}
	s := g.ctx.RawState()
	if s.Top() < g.base+g.size {
		panic(fmt.Sprintf("lute: stack shrank below guard: height %d, expected at least %d",
			s.Top(), g.base+g.size))
	}
	s.Pop(g.size)
	g.size = 0
}

// mergeGuards folds the slots owned by parts into one new guard on ctx.
// Each part is forgotten, so the physical slots change owner exactly
// once and can never be double-popped.
func mergeGuards(ctx Context, parts ...*Guard) *Guard {
	total := 0
	for _, part := range parts {
		total += part.Forget()
	}
	return newGuard(ctx, total)
}
