package lute

import (
	"fmt"
	"reflect"

	"github.com/risor-io/lute/state"
)

// Reader is implemented by types that decode themselves from a stack
// slot. ReadFrom inspects the slot at idx without consuming it; on a
// type mismatch it returns a WrongType error and leaves the receiver
// unchanged, so the caller may retry with a different target.
type Reader interface {
	ReadFrom(ctx Context, idx StackIndex) error
}

// Read decodes the slot at idx into a T. The index may be relative
// (negative, counted from the top) or absolute; either way the slot is
// inspected, never consumed. On a mismatch the returned error has kind
// WrongType and names both the requested Go type and the observed
// dynamic type.
func Read[T any](ctx Context, idx int) (T, error) {
	return ReadAt[T](ctx, StackIndex(ctx.RawState().AbsIndex(idx)))
}

// ReadTop decodes the top slot.
func ReadTop[T any](ctx Context) (T, error) {
	return Read[T](ctx, -1)
}

// ReadAt decodes the slot at an absolute index. An index past the top
// of the stack reads as "no value" and fails with WrongType, except for
// targets that tolerate absence such as Option.
func ReadAt[T any](ctx Context, idx StackIndex) (T, error) {
	var out T
	if r, ok := any(&out).(Reader); ok {
		err := r.ReadFrom(ctx, idx)
		return out, err
	}
	if err := readReflect(ctx, idx, reflect.ValueOf(&out).Elem()); err != nil {
		return out, err
	}
	return out, nil
}

// slotOwner is implemented by handle types (Table, Function) that can
// take ownership of the stack slot they were decoded from, instead of
// borrowing it.
type slotOwner interface {
	adoptGuard(g *Guard)
}

// readOwnedTop decodes the top slot and settles its ownership: a
// handle adopts the slot and must be released by the caller, anything
// else is copied out and the slot popped.
func readOwnedTop[T any](ctx Context) (T, error) {
	s := ctx.RawState()
	out, err := ReadAt[T](ctx, StackIndex(s.Top()))
	if err != nil {
		s.Pop(1)
		return out, err
	}
	if owner, ok := any(&out).(slotOwner); ok {
		owner.adoptGuard(newGuard(ctx, 1))
	} else {
		s.Pop(1)
	}
	return out, nil
}

// readReflect is the non-generic decode core shared by ReadAt, the
// callable trampoline, and the sequence and mapping readers. dst must
// be addressable.
func readReflect(ctx Context, idx StackIndex, dst reflect.Value) error {
	if dst.CanAddr() {
		if r, ok := dst.Addr().Interface().(Reader); ok {
			return r.ReadFrom(ctx, idx)
		}
	}
	s := ctx.RawState()
	t := s.TypeAt(int(idx))
	switch dst.Kind() {
	case reflect.Bool:
		if t != state.TypeBoolean {
			return wrongTypeAt(ctx, "bool", idx, 1)
		}
		b, _ := s.ToBool(int(idx))
		dst.SetBool(b)
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if t != state.TypeNumber {
			return wrongTypeAt(ctx, dst.Type().String(), idx, 1)
		}
		f, _ := s.ToNumber(int(idx))
		n := int64(f)
		if float64(n) != f || dst.OverflowInt(n) {
			return wrongTypeAt(ctx, dst.Type().String(), idx, 1)
		}
		dst.SetInt(n)
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if t != state.TypeNumber {
			return wrongTypeAt(ctx, dst.Type().String(), idx, 1)
		}
		f, _ := s.ToNumber(int(idx))
		if f < 0 {
			return wrongTypeAt(ctx, dst.Type().String(), idx, 1)
		}
		n := uint64(f)
		if float64(n) != f || dst.OverflowUint(n) {
			return wrongTypeAt(ctx, dst.Type().String(), idx, 1)
		}
		dst.SetUint(n)
		return nil

	case reflect.Float32, reflect.Float64:
		if t != state.TypeNumber {
			return wrongTypeAt(ctx, dst.Type().String(), idx, 1)
		}
		f, _ := s.ToNumber(int(idx))
		dst.SetFloat(f)
		return nil

	case reflect.String:
		if t != state.TypeString {
			return wrongTypeAt(ctx, "string", idx, 1)
		}
		v, _ := s.ToString(int(idx))
		dst.SetString(v)
		return nil

	case reflect.Interface:
		if dst.NumMethod() != 0 {
			return fmt.Errorf("lute: unsupported read target %s", dst.Type())
		}
		v, err := readAnyValue(ctx, idx)
		if err != nil {
			return err
		}
		if v == nil {
			dst.Set(reflect.Zero(dst.Type()))
		} else {
			dst.Set(reflect.ValueOf(v))
		}
		return nil

	case reflect.Slice:
		return readSequence(ctx, idx, t, dst)

	case reflect.Map:
		return readMapping(ctx, idx, t, dst)
	}
	return fmt.Errorf("lute: unsupported read target %s", dst.Type())
}

// readSequence decodes a table with keys 1..n into a slice.
func readSequence(ctx Context, idx StackIndex, t state.Type, dst reflect.Value) error {
	s := ctx.RawState()
	if t != state.TypeTable {
		return wrongTypeAt(ctx, dst.Type().String(), idx, 1)
	}
	n := s.Len(int(idx))
	out := reflect.MakeSlice(dst.Type(), n, n)
	for i := 1; i <= n; i++ {
		s.PushNumber(float64(i))
		if err := s.GetTable(int(idx)); err != nil {
			return fmt.Errorf("sequence index %d: %w", i, newExecutionError(err.Error()))
		}
		err := readReflect(ctx, StackIndex(s.Top()), out.Index(i-1))
		s.Pop(1)
		if err != nil {
			return fmt.Errorf("sequence index %d: %w", i, err)
		}
	}
	dst.Set(out)
	return nil
}

// readMapping decodes a table into a map, visiting every entry.
func readMapping(ctx Context, idx StackIndex, t state.Type, dst reflect.Value) error {
	s := ctx.RawState()
	if t != state.TypeTable {
		return wrongTypeAt(ctx, dst.Type().String(), idx, 1)
	}
	out := reflect.MakeMap(dst.Type())
	s.PushNil()
	for s.Next(int(idx)) {
		key := reflect.New(dst.Type().Key()).Elem()
		if err := readReflect(ctx, StackIndex(s.Top()-1), key); err != nil {
			s.Pop(2)
			return fmt.Errorf("map key: %w", err)
		}
		val := reflect.New(dst.Type().Elem()).Elem()
		if err := readReflect(ctx, StackIndex(s.Top()), val); err != nil {
			s.Pop(2)
			return fmt.Errorf("map value for %v: %w", key, err)
		}
		out.SetMapIndex(key, val)
		s.Pop(1)
	}
	dst.Set(out)
	return nil
}

// readAnyValue decodes a slot into the natural Go representation: nil,
// bool, float64, string, or map[any]any for tables. Functions have no
// natural Go form and fail.
func readAnyValue(ctx Context, idx StackIndex) (any, error) {
	s := ctx.RawState()
	switch s.TypeAt(int(idx)) {
	case state.TypeNil:
		return nil, nil
	case state.TypeBoolean:
		b, _ := s.ToBool(int(idx))
		return b, nil
	case state.TypeNumber:
		f, _ := s.ToNumber(int(idx))
		return f, nil
	case state.TypeString:
		v, _ := s.ToString(int(idx))
		return v, nil
	case state.TypeTable:
		out := map[any]any{}
		s.PushNil()
		for s.Next(int(idx)) {
			k, err := readAnyValue(ctx, StackIndex(s.Top()-1))
			if err != nil {
				s.Pop(2)
				return nil, fmt.Errorf("map key: %w", err)
			}
			if _, isMap := k.(map[any]any); isMap {
				s.Pop(2)
				return nil, fmt.Errorf("lute: table key is itself a table")
			}
			v, err := readAnyValue(ctx, StackIndex(s.Top()))
			if err != nil {
				s.Pop(2)
				return nil, fmt.Errorf("map value for %v: %w", k, err)
			}
			out[k] = v
			s.Pop(1)
		}
		return out, nil
	}
	return nil, wrongTypeAt(ctx, "interface {}", idx, 1)
}
