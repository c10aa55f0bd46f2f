package lute

import (
	"fmt"
	"reflect"

	"github.com/risor-io/lute/state"
)

// typeName returns the Go name of T, used in WrongType diagnostics.
func typeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}

// resultReader is implemented by targets that decode an entire
// protected-call result window rather than a single slot. base is the
// stack height below the first result; count is the number of results.
type resultReader interface {
	readResults(ctx Context, base StackIndex, count int) error
	expected() string
}

// Option is a decode target that tolerates absence: a nil slot, or an
// index past the top of the stack, reads as an invalid Option instead
// of failing. A present value of the wrong type still fails.
type Option[T any] struct {
	Value T
	Valid bool
}

// Some returns a present Option.
func Some[T any](v T) Option[T] {
	return Option[T]{Value: v, Valid: true}
}

// None returns an absent Option.
func None[T any]() Option[T] {
	return Option[T]{}
}

// ReadFrom implements Reader.
func (o *Option[T]) ReadFrom(ctx Context, idx StackIndex) error {
	switch ctx.RawState().TypeAt(int(idx)) {
	case state.TypeNone, state.TypeNil:
		*o = Option[T]{}
		return nil
	}
	v, err := ReadAt[T](ctx, idx)
	if err != nil {
		return err
	}
	*o = Option[T]{Value: v, Valid: true}
	return nil
}

// PushInto implements Pusher: a present Option pushes its value, an
// absent one pushes nil.
func (o Option[T]) PushInto(ctx Context) (*Guard, error) {
	if !o.Valid {
		ctx.RawState().PushNil()
		return newGuard(ctx, 1), nil
	}
	return TryPush(ctx, o.Value)
}

// Either decodes a slot that may hold one of two host types. The first
// alternative is tried first, so order the more specific type first
// when the alternatives overlap (a number slot satisfies both float64
// and string, for example).
type Either[A, B any] struct {
	First   A
	Second  B
	IsFirst bool
}

// ReadFrom implements Reader.
func (e *Either[A, B]) ReadFrom(ctx Context, idx StackIndex) error {
	if a, err := ReadAt[A](ctx, idx); err == nil {
		*e = Either[A, B]{First: a, IsFirst: true}
		return nil
	}
	if b, err := ReadAt[B](ctx, idx); err == nil {
		*e = Either[A, B]{Second: b}
		return nil
	}
	return wrongTypeAt(ctx, typeName[A]()+" or "+typeName[B](), idx, 1)
}

// PushInto implements Pusher, pushing whichever alternative is active.
func (e Either[A, B]) PushInto(ctx Context) (*Guard, error) {
	if e.IsFirst {
		return TryPush(ctx, e.First)
	}
	return TryPush(ctx, e.Second)
}

func (e *Either[A, B]) expected() string {
	return armName[A]() + " or " + armName[B]()
}

// readResults tries each alternative over the whole result window, so an
// Either of tuple alternatives can decode calls whose result shape
// depends on a condition in the script.
func (e *Either[A, B]) readResults(ctx Context, base StackIndex, count int) error {
	var a A
	if err := decodeResults(ctx, &a, base, count); err == nil {
		*e = Either[A, B]{First: a, IsFirst: true}
		return nil
	}
	var b B
	if err := decodeResults(ctx, &b, base, count); err == nil {
		*e = Either[A, B]{Second: b}
		return nil
	}
	return newWrongType(e.expected(), typeNames(ctx, base+1, count))
}

// armName prefers the window form of an alternative when it has one.
func armName[T any]() string {
	var v T
	if rr, ok := any(&v).(resultReader); ok {
		return rr.expected()
	}
	return typeName[T]()
}

// decodeResults decodes a call's result window into dst: window-shaped
// targets take the whole window, anything else reads the first result.
func decodeResults(ctx Context, dst any, base StackIndex, count int) error {
	if rr, ok := dst.(resultReader); ok {
		return rr.readResults(ctx, base, count)
	}
	return readReflect(ctx, base+1, reflect.ValueOf(dst).Elem())
}

// Tuple2 through Tuple5 decode a full protected-call result window with
// strict arity: the call must produce exactly as many results as the
// tuple has fields, and every field must match, or the decode fails
// with WrongType describing every observed result type. As push values
// they occupy one slot per field, which makes them the way to return
// multiple values from a host callable handle.

type Tuple2[A, B any] struct {
	A A
	B B
}

type Tuple3[A, B, C any] struct {
	A A
	B B
	C C
}

type Tuple4[A, B, C, D any] struct {
	A A
	B B
	C C
	D D
}

type Tuple5[A, B, C, D, E any] struct {
	A A
	B B
	C C
	D D
	E E
}

// readTuple decodes count results starting above base into the fields
// of dst, enforcing arity. Any failure reports the whole window.
func readTuple(ctx Context, base StackIndex, count int, expected string, fields ...reflect.Value) error {
	if count != len(fields) {
		return newWrongType(expected, typeNames(ctx, base+1, count))
	}
	for i, f := range fields {
		if err := readReflect(ctx, base+StackIndex(i+1), f); err != nil {
			return newWrongType(expected, typeNames(ctx, base+1, count))
		}
	}
	return nil
}

func tupleName(parts ...string) string {
	out := "(" + parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out + ")"
}

func (t *Tuple2[A, B]) expected() string {
	return tupleName(typeName[A](), typeName[B]())
}

func (t *Tuple2[A, B]) readResults(ctx Context, base StackIndex, count int) error {
	rv := reflect.ValueOf(t).Elem()
	return readTuple(ctx, base, count, t.expected(), rv.Field(0), rv.Field(1))
}

func (t Tuple2[A, B]) PushInto(ctx Context) (*Guard, error) {
	return pushParts(ctx, t.A, t.B)
}

func (t *Tuple3[A, B, C]) expected() string {
	return tupleName(typeName[A](), typeName[B](), typeName[C]())
}

func (t *Tuple3[A, B, C]) readResults(ctx Context, base StackIndex, count int) error {
	rv := reflect.ValueOf(t).Elem()
	return readTuple(ctx, base, count, t.expected(), rv.Field(0), rv.Field(1), rv.Field(2))
}

func (t Tuple3[A, B, C]) PushInto(ctx Context) (*Guard, error) {
	return pushParts(ctx, t.A, t.B, t.C)
}

func (t *Tuple4[A, B, C, D]) expected() string {
	return tupleName(typeName[A](), typeName[B](), typeName[C](), typeName[D]())
}

func (t *Tuple4[A, B, C, D]) readResults(ctx Context, base StackIndex, count int) error {
	rv := reflect.ValueOf(t).Elem()
	return readTuple(ctx, base, count, t.expected(),
		rv.Field(0), rv.Field(1), rv.Field(2), rv.Field(3))
}

func (t Tuple4[A, B, C, D]) PushInto(ctx Context) (*Guard, error) {
	return pushParts(ctx, t.A, t.B, t.C, t.D)
}

func (t *Tuple5[A, B, C, D, E]) expected() string {
	return tupleName(typeName[A](), typeName[B](), typeName[C](), typeName[D](), typeName[E]())
}

func (t *Tuple5[A, B, C, D, E]) readResults(ctx Context, base StackIndex, count int) error {
	rv := reflect.ValueOf(t).Elem()
	return readTuple(ctx, base, count, t.expected(),
		rv.Field(0), rv.Field(1), rv.Field(2), rv.Field(3), rv.Field(4))
}

func (t Tuple5[A, B, C, D, E]) PushInto(ctx Context) (*Guard, error) {
	return pushParts(ctx, t.A, t.B, t.C, t.D, t.E)
}

// pushParts pushes each part in order and merges the guards, unwinding
// everything if any part fails.
func pushParts(ctx Context, parts ...any) (*Guard, error) {
	guards := make([]*Guard, 0, len(parts))
	for i, p := range parts {
		g, err := TryPush(ctx, p)
		if err != nil {
			for j := len(guards) - 1; j >= 0; j-- {
				guards[j].Release()
			}
			return nil, fmt.Errorf("tuple field %d: %w", i+1, err)
		}
		guards = append(guards, g)
	}
	return mergeGuards(ctx, guards...), nil
}
