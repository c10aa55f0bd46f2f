package lute

import (
	"fmt"
	"reflect"

	"github.com/risor-io/lute/state"
)

// Pusher is implemented by types that know how to serialize themselves
// onto the stack. PushInto returns a guard sized to the slots written.
// On failure the implementation must leave the stack at the height it
// found it; the caller keeps its context and may retry or clean up.
type Pusher interface {
	PushInto(ctx Context) (*Guard, error)
}

// TryPush serializes a Go value onto the stack and returns a guard
// owning the slots written (one slot for every supported value except
// pushers that choose otherwise). On failure the stack is unchanged.
//
// Supported values: nil, booleans, integers, floats, strings, []byte,
// slices and arrays (pushed as a 1-based sequence table), maps (pushed
// as a table), Go functions (pushed as a callable, see the package
// documentation), and any Pusher.
func TryPush(ctx Context, v any) (*Guard, error) {
	s := ctx.RawState()
	switch v := v.(type) {
	case nil:
		s.PushNil()
		return newGuard(ctx, 1), nil
	case bool:
		s.PushBool(v)
		return newGuard(ctx, 1), nil
	case int:
		s.PushNumber(float64(v))
		return newGuard(ctx, 1), nil
	case int8:
		s.PushNumber(float64(v))
		return newGuard(ctx, 1), nil
	case int16:
		s.PushNumber(float64(v))
		return newGuard(ctx, 1), nil
	case int32:
		s.PushNumber(float64(v))
		return newGuard(ctx, 1), nil
	case int64:
		s.PushNumber(float64(v))
		return newGuard(ctx, 1), nil
	case uint:
		s.PushNumber(float64(v))
		return newGuard(ctx, 1), nil
	case uint8:
		s.PushNumber(float64(v))
		return newGuard(ctx, 1), nil
	case uint16:
		s.PushNumber(float64(v))
		return newGuard(ctx, 1), nil
	case uint32:
		s.PushNumber(float64(v))
		return newGuard(ctx, 1), nil
	case uint64:
		s.PushNumber(float64(v))
		return newGuard(ctx, 1), nil
	case float32:
		s.PushNumber(float64(v))
		return newGuard(ctx, 1), nil
	case float64:
		s.PushNumber(v)
		return newGuard(ctx, 1), nil
	case string:
		s.PushString(v)
		return newGuard(ctx, 1), nil
	case []byte:
		s.PushString(string(v))
		return newGuard(ctx, 1), nil
	case Pusher:
		return v.PushInto(ctx)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return pushSequence(ctx, rv)
	case reflect.Map:
		return pushMapping(ctx, rv)
	case reflect.Func:
		return pushCallable(ctx, rv)
	case reflect.Ptr:
		if rv.IsNil() {
			s.PushNil()
			return newGuard(ctx, 1), nil
		}
		return TryPush(ctx, rv.Elem().Interface())
	}
	return nil, fmt.Errorf("lute: cannot push a value of type %T", v)
}

// Push is the infallible variant of TryPush, for values whose
// serialization cannot fail: scalars, strings, functions, and
// composites built from them. It panics if the push turns out to be
// fallible after all; use TryPush when the value contains a Pusher
// whose failure you need to observe.
func Push(ctx Context, v any) *Guard {
	g, err := TryPush(ctx, v)
	if err != nil {
		panic(fmt.Sprintf("lute: Push of %T failed: %v", v, err))
	}
	return g
}

// pushSequence writes a slice or array as a fresh table with 1-based
// integer keys, occupying one stack slot. Any element failure unwinds
// everything this call pushed before returning.
func pushSequence(ctx Context, rv reflect.Value) (*Guard, error) {
	s := ctx.RawState()
	s.NewTable()
	tableGuard := newGuard(ctx, 1)
	tableIdx := s.Top()
	for i := 0; i < rv.Len(); i++ {
		s.PushNumber(float64(i + 1))
		keyGuard := newGuard(ctx, 1)
		elemGuard, err := TryPush(ctx, rv.Index(i).Interface())
		if err != nil {
			keyGuard.Release()
			tableGuard.Release()
			return nil, fmt.Errorf("sequence index %d: %w", i+1, err)
		}
		if elemGuard.Size() != 1 {
			n := elemGuard.Size()
			elemGuard.Release()
			keyGuard.Release()
			tableGuard.Release()
			return nil, fmt.Errorf("sequence index %d: pushed %d slots, want 1", i+1, n)
		}
		keyGuard.Forget()
		elemGuard.Forget()
		s.SetTable(tableIdx)
	}
	return tableGuard, nil
}

// pushMapping writes a map as a fresh table, occupying one stack slot.
// The returned error names the failing component (key or value), and
// the stack is restored to its pre-call height on any failure.
func pushMapping(ctx Context, rv reflect.Value) (*Guard, error) {
	s := ctx.RawState()
	s.NewTable()
	tableGuard := newGuard(ctx, 1)
	tableIdx := s.Top()
	iter := rv.MapRange()
	for iter.Next() {
		keyGuard, err := TryPush(ctx, iter.Key().Interface())
		if err != nil {
			tableGuard.Release()
			return nil, fmt.Errorf("map key %v: %w", iter.Key(), err)
		}
		if keyGuard.Size() != 1 {
			n := keyGuard.Size()
			keyGuard.Release()
			tableGuard.Release()
			return nil, fmt.Errorf("map key %v: pushed %d slots, want 1", iter.Key(), n)
		}
		valGuard, err := TryPush(ctx, iter.Value().Interface())
		if err != nil {
			keyGuard.Release()
			tableGuard.Release()
			return nil, fmt.Errorf("map value for %v: %w", iter.Key(), err)
		}
		if valGuard.Size() != 1 {
			n := valGuard.Size()
			valGuard.Release()
			keyGuard.Release()
			tableGuard.Release()
			return nil, fmt.Errorf("map value for %v: pushed %d slots, want 1", iter.Key(), n)
		}
		keyGuard.Forget()
		valGuard.Forget()
		s.SetTable(tableIdx)
	}
	return tableGuard, nil
}

var errorInterface = reflect.TypeOf((*error)(nil)).Elem()

// pushCallable wraps a Go function as an interpreter callable. When the
// script calls it, the trampoline decodes each argument off the stack,
// invokes the function, and pushes its results back; each result is one
// slot, so multiple Go returns become multiple script results. If the
// function's last return is an error and it is non-nil, the call raises
// an interpreter error instead of returning values; the protected-call
// boundary converts it back into data on the script side.
func pushCallable(ctx Context, fn reflect.Value) (*Guard, error) {
	fnType := fn.Type()
	if fnType.IsVariadic() {
		return nil, fmt.Errorf("lute: cannot push variadic function %s", fnType)
	}
	hasError := fnType.NumOut() > 0 &&
		fnType.Out(fnType.NumOut()-1) == errorInterface
	name := fnType.String()

	trampoline := func(st *state.State, nargs int) (int, error) {
		tctx := rawContext{st: st}
		base := st.Top() - nargs
		numIn := fnType.NumIn()
		args := make([]reflect.Value, numIn)
		for i := 0; i < numIn; i++ {
			argPtr := reflect.New(fnType.In(i))
			if err := readReflect(tctx, StackIndex(base+1+i), argPtr.Elem()); err != nil {
				return 0, fmt.Errorf("bad argument #%d to %s: %w", i+1, name, err)
			}
			args[i] = argPtr.Elem()
		}
		results := fn.Call(args)
		if hasError {
			last := results[len(results)-1]
			if !last.IsNil() {
				return 0, last.Interface().(error)
			}
			results = results[:len(results)-1]
		}
		pushed := 0
		for _, res := range results {
			g, err := TryPush(tctx, res.Interface())
			if err != nil {
				st.Pop(pushed)
				return 0, fmt.Errorf("push result of %s: %w", name, err)
			}
			pushed += g.Forget()
		}
		return pushed, nil
	}

	ctx.RawState().PushGoFunc(name, trampoline)
	return newGuard(ctx, 1), nil
}
