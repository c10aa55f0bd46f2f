package lute

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/risor-io/lute/state"
)

// ErrNoSuchMethod is returned by CallMethod when the table has no
// function stored under the requested name. Use errors.Is to tell it
// apart from a failure of the method itself.
var ErrNoSuchMethod = errors.New("lute: no such method")

// Table is a live handle to a table slot on the stack. A handle
// obtained from Globals, CreateTable or Metatable owns its slot and
// must be released; one obtained by reading an existing slot borrows
// it and Release is a no-op.
//
// A Table is also a Context, so values can be pushed and read through
// it; while nested work is on the stack above the table's slot, the
// handle itself must not be released.
type Table struct {
	ctx   Context
	idx   StackIndex
	guard *Guard
}

// ReadFrom implements Reader, borrowing the slot at idx.
func (t *Table) ReadFrom(ctx Context, idx StackIndex) error {
	if ctx.RawState().TypeAt(int(idx)) != state.TypeTable {
		return wrongTypeAt(ctx, "lute.Table", idx, 1)
	}
	*t = Table{ctx: ctx, idx: idx}
	return nil
}

// PushInto implements Pusher, pushing a second slot holding this table.
// Both slots refer to the same table; mutations through either are
// visible through both.
func (t Table) PushInto(ctx Context) (*Guard, error) {
	if ctx.RawState() != t.RawState() {
		return nil, errors.New("lute: table pushed into a different interpreter")
	}
	ctx.RawState().PushValue(int(t.idx))
	return newGuard(ctx, 1), nil
}

// RawState implements Context.
func (t *Table) RawState() *state.State {
	return t.ctx.RawState()
}

func (t *Table) adoptGuard(g *Guard) {
	t.guard = g
}

// Release pops the table's slot if this handle owns it. Borrowed
// handles ignore it, so releasing unconditionally is always safe.
func (t *Table) Release() {
	if t.guard != nil {
		t.guard.Release()
	}
}

// Len returns the table's sequence length: the number of entries under
// the keys 1..n before the first gap.
func (t *Table) Len() int {
	return t.RawState().Len(int(t.idx))
}

// Size returns the total entry count, non-sequence keys included.
func (t *Table) Size() int {
	return t.RawState().Size(int(t.idx))
}

// Get reads the value stored under key into a T. A missing entry reads
// as nil, so it fails with WrongType unless T tolerates nil; use an
// Option to distinguish "absent" from "present with the wrong type".
func Get[T any](t *Table, key any) (T, error) {
	var zero T
	s := t.RawState()
	kg, err := TryPush(t, key)
	if err != nil {
		return zero, fmt.Errorf("table key: %w", err)
	}
	if kg.Size() != 1 {
		n := kg.Size()
		kg.Release()
		return zero, fmt.Errorf("table key: pushed %d slots, want 1", n)
	}
	kg.Forget()
	if err := s.GetTable(int(t.idx)); err != nil {
		return zero, newExecutionError(err.Error())
	}
	return readOwnedTop[T](t)
}

// Set stores key = value in the table. Serialization failures of
// either part are reported with the failing side named, and leave both
// the table and the stack untouched.
func (t *Table) Set(key, value any) error {
	s := t.RawState()
	kg, err := TryPush(t, key)
	if err != nil {
		return fmt.Errorf("table key: %w", err)
	}
	if kg.Size() != 1 {
		n := kg.Size()
		kg.Release()
		return fmt.Errorf("table key: pushed %d slots, want 1", n)
	}
	if s.TypeAt(s.Top()) == state.TypeNil {
		kg.Release()
		return errors.New("lute: table key is nil")
	}
	vg, err := TryPush(t, value)
	if err != nil {
		kg.Release()
		return fmt.Errorf("table value: %w", err)
	}
	if vg.Size() != 1 {
		n := vg.Size()
		vg.Release()
		kg.Release()
		return fmt.Errorf("table value: pushed %d slots, want 1", n)
	}
	kg.Forget()
	vg.Forget()
	s.SetTable(int(t.idx))
	return nil
}

// Metatable returns the table's metatable, creating and installing an
// empty one first if the table has none. The returned handle owns its
// slot and must be released before this table's own slot is.
func (t *Table) Metatable() *Table {
	s := t.RawState()
	if !s.GetMetatable(int(t.idx)) {
		s.NewTable()
		s.PushValue(-1)
		s.SetMetatable(int(t.idx))
	}
	g := newGuard(t.ctx, 1)
	return &Table{ctx: t.ctx, idx: StackIndex(s.Top()), guard: g}
}

// SequenceOf reads the entries under the keys 1..Len into a slice. All
// entries are attempted; failures are collected per index into one
// aggregate error, and the slice holds the entries that did decode
// (zero values at failed positions).
func SequenceOf[T any](t *Table) ([]T, error) {
	s := t.RawState()
	n := t.Len()
	out := make([]T, n)
	var errs *multierror.Error
	for i := 1; i <= n; i++ {
		s.PushNumber(float64(i))
		if err := s.GetTable(int(t.idx)); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("index %d: %w", i, newExecutionError(err.Error())))
			continue
		}
		v, err := ReadAt[T](t, StackIndex(s.Top()))
		s.Pop(1)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("index %d: %w", i, err))
			continue
		}
		out[i-1] = v
	}
	return out, errs.ErrorOrNil()
}

// CreateTable installs a fresh empty table under key, replacing any
// previous value, and returns an owning handle to the installed table.
func (t *Table) CreateTable(key any) (*Table, error) {
	s := t.RawState()
	kg, err := TryPush(t, key)
	if err != nil {
		return nil, fmt.Errorf("table key: %w", err)
	}
	if kg.Size() != 1 {
		n := kg.Size()
		kg.Release()
		return nil, fmt.Errorf("table key: pushed %d slots, want 1", n)
	}
	if s.TypeAt(s.Top()) == state.TypeNil {
		kg.Release()
		return nil, errors.New("lute: table key is nil")
	}
	// a second key copy: one for the store, one for the reload
	s.PushValue(-1)
	s.NewTable()
	s.SetTable(int(t.idx))
	kg.Forget()
	if err := s.GetTable(int(t.idx)); err != nil {
		return nil, newExecutionError(err.Error())
	}
	g := newGuard(t.ctx, 1)
	return &Table{ctx: t.ctx, idx: StackIndex(s.Top()), guard: g}, nil
}

// CallMethod looks up a function stored under name and calls it with
// the table itself as the first argument, followed by args. A missing
// or non-function entry yields ErrNoSuchMethod; a failure inside the
// method is an ExecutionError, as with any call.
func CallMethod[T any](t *Table, name string, args ...any) (T, error) {
	var zero T
	s := t.RawState()
	s.PushString(name)
	if err := s.GetTable(int(t.idx)); err != nil {
		return zero, newExecutionError(err.Error())
	}
	if s.TypeAt(s.Top()) != state.TypeFunction {
		s.Pop(1)
		return zero, fmt.Errorf("%w: %q", ErrNoSuchMethod, name)
	}
	fn := &Function{ctx: t.ctx, idx: StackIndex(s.Top()), guard: newGuard(t.ctx, 1)}
	defer fn.Release()
	selfArgs := append([]any{t}, args...)
	return Call[T](fn, selfArgs...)
}

// Iterator walks a table entry by entry without committing to decoding
// every entry successfully. See Iter.
type Iterator[K, V any] struct {
	t        *Table
	expect   int // stack height while positioned on a key
	key      K
	val      V
	entryErr error
	errs     *multierror.Error
	done     bool
}

// Iter starts a traversal of the table's entries in insertion order.
// Next advances, Entry returns the current pair, and Close releases
// the traversal's stack slot; Close must be called if the traversal is
// abandoned before Next returns false.
//
// Between Next calls the iterator keeps its position on the stack, so
// anything pushed through the table's context must be popped again
// before the next advance; Next panics on an unbalanced stack rather
// than silently corrupting the traversal.
func Iter[K, V any](t *Table) *Iterator[K, V] {
	t.RawState().PushNil()
	return &Iterator[K, V]{t: t, expect: t.RawState().Top()}
}

// Next advances to the next entry, returning false when the table is
// exhausted. Entries that fail to decode are still visited: Next
// returns true and Entry reports the failure.
func (it *Iterator[K, V]) Next() bool {
	if it.done {
		return false
	}
	s := it.t.RawState()
	if s.Top() != it.expect {
		panic("lua stack is corrupt")
	}
	if !s.Next(int(it.t.idx)) {
		it.done = true
		return false
	}
	var key K
	var val V
	it.entryErr = nil
	if err := readReflectInto(it.t, StackIndex(s.Top()-1), &key); err != nil {
		it.entryErr = fmt.Errorf("key: %w", err)
	} else if err := readReflectInto(it.t, StackIndex(s.Top()), &val); err != nil {
		it.entryErr = fmt.Errorf("value for %v: %w", key, err)
	}
	if it.entryErr != nil {
		it.errs = multierror.Append(it.errs, it.entryErr)
	}
	it.key = key
	it.val = val
	s.Pop(1)
	return true
}

// Entry returns the current pair. The error is non-nil when the entry
// did not decode into K and V; the pair then holds zero values.
func (it *Iterator[K, V]) Entry() (K, V, error) {
	return it.key, it.val, it.entryErr
}

// Err returns every entry failure seen so far, aggregated.
func (it *Iterator[K, V]) Err() error {
	return it.errs.ErrorOrNil()
}

// Close abandons the traversal. Idempotent, and a no-op after Next has
// returned false.
func (it *Iterator[K, V]) Close() {
	if it.done {
		return
	}
	it.done = true
	it.t.RawState().Pop(1)
}

// readReflectInto decodes a slot into an existing typed variable.
func readReflectInto[T any](ctx Context, idx StackIndex, dst *T) error {
	v, err := ReadAt[T](ctx, idx)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}
