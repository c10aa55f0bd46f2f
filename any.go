package lute

import (
	"fmt"

	"github.com/risor-io/lute/state"
)

// AnyKind tags the variant held by an AnyValue.
type AnyKind int

const (
	AnyNil AnyKind = iota
	AnyBool
	AnyNumber
	AnyString
	AnyTable
)

// AnyValue mirrors a dynamically typed value on the host side, for code
// that must accept or produce "whatever the script has" without
// committing to a Go type. Tables are captured eagerly as an ordered
// pair list, so an AnyValue is a snapshot, not a live handle; use Table
// for a live handle.
type AnyValue struct {
	Kind   AnyKind
	Bool   bool
	Number float64
	Str    string
	Pairs  []AnyPair
}

// AnyPair is one table entry, in the table's iteration order.
type AnyPair struct {
	Key   AnyValue
	Value AnyValue
}

// AnyOf wraps a plain Go scalar in its AnyValue form. Tables are built
// by filling Pairs directly.
func AnyOf(v any) (AnyValue, error) {
	switch v := v.(type) {
	case nil:
		return AnyValue{}, nil
	case bool:
		return AnyValue{Kind: AnyBool, Bool: v}, nil
	case int:
		return AnyValue{Kind: AnyNumber, Number: float64(v)}, nil
	case float64:
		return AnyValue{Kind: AnyNumber, Number: v}, nil
	case string:
		return AnyValue{Kind: AnyString, Str: v}, nil
	}
	return AnyValue{}, fmt.Errorf("lute: no AnyValue form for %T", v)
}

// String renders the value for diagnostics.
func (v AnyValue) String() string {
	switch v.Kind {
	case AnyNil:
		return "nil"
	case AnyBool:
		return fmt.Sprintf("%t", v.Bool)
	case AnyNumber:
		return fmt.Sprintf("%v", v.Number)
	case AnyString:
		return fmt.Sprintf("%q", v.Str)
	case AnyTable:
		return fmt.Sprintf("table with %d entries", len(v.Pairs))
	}
	return "invalid"
}

// PushInto implements Pusher.
func (v AnyValue) PushInto(ctx Context) (*Guard, error) {
	s := ctx.RawState()
	switch v.Kind {
	case AnyNil:
		s.PushNil()
	case AnyBool:
		s.PushBool(v.Bool)
	case AnyNumber:
		s.PushNumber(v.Number)
	case AnyString:
		s.PushString(v.Str)
	case AnyTable:
		s.NewTable()
		tableGuard := newGuard(ctx, 1)
		tableIdx := s.Top()
		for i, pair := range v.Pairs {
			kg, err := pair.Key.PushInto(ctx)
			if err != nil {
				tableGuard.Release()
				return nil, fmt.Errorf("table entry %d key: %w", i+1, err)
			}
			vg, err := pair.Value.PushInto(ctx)
			if err != nil {
				kg.Release()
				tableGuard.Release()
				return nil, fmt.Errorf("table entry %d value: %w", i+1, err)
			}
			kg.Forget()
			vg.Forget()
			s.SetTable(tableIdx)
		}
		return tableGuard, nil
	default:
		return nil, fmt.Errorf("lute: cannot push an AnyValue of kind %d", v.Kind)
	}
	return newGuard(ctx, 1), nil
}

// ReadFrom implements Reader. Every readable slot has an AnyValue form
// except functions, which have no data representation.
func (v *AnyValue) ReadFrom(ctx Context, idx StackIndex) error {
	s := ctx.RawState()
	switch s.TypeAt(int(idx)) {
	case state.TypeNil:
		*v = AnyValue{}
		return nil
	case state.TypeBoolean:
		b, _ := s.ToBool(int(idx))
		*v = AnyValue{Kind: AnyBool, Bool: b}
		return nil
	case state.TypeNumber:
		f, _ := s.ToNumber(int(idx))
		*v = AnyValue{Kind: AnyNumber, Number: f}
		return nil
	case state.TypeString:
		str, _ := s.ToString(int(idx))
		*v = AnyValue{Kind: AnyString, Str: str}
		return nil
	case state.TypeTable:
		var pairs []AnyPair
		s.PushNil()
		for s.Next(int(idx)) {
			var key, val AnyValue
			if err := key.ReadFrom(ctx, StackIndex(s.Top()-1)); err != nil {
				s.Pop(2)
				return fmt.Errorf("table key: %w", err)
			}
			if err := val.ReadFrom(ctx, StackIndex(s.Top())); err != nil {
				s.Pop(2)
				return fmt.Errorf("table value for %s: %w", key, err)
			}
			pairs = append(pairs, AnyPair{Key: key, Value: val})
			s.Pop(1)
		}
		*v = AnyValue{Kind: AnyTable, Pairs: pairs}
		return nil
	}
	return wrongTypeAt(ctx, "lute.AnyValue", idx, 1)
}
