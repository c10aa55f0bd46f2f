package lute

import "github.com/risor-io/lute/state"

// Nil is the explicit nil value. Reading it succeeds only on a nil
// slot, which distinguishes "the script returned nil" from "the read
// failed"; pushing it writes a nil slot.
type Nil struct{}

// ReadFrom implements Reader.
func (Nil) ReadFrom(ctx Context, idx StackIndex) error {
	if ctx.RawState().TypeAt(int(idx)) != state.TypeNil {
		return wrongTypeAt(ctx, "nil", idx, 1)
	}
	return nil
}

// PushInto implements Pusher.
func (Nil) PushInto(ctx Context) (*Guard, error) {
	ctx.RawState().PushNil()
	return newGuard(ctx, 1), nil
}

// True reads only the boolean true; any other slot fails with
// WrongType. Pushing it writes true.
type True struct{}

// ReadFrom implements Reader.
func (True) ReadFrom(ctx Context, idx StackIndex) error {
	s := ctx.RawState()
	if s.TypeAt(int(idx)) != state.TypeBoolean {
		return wrongTypeAt(ctx, "true", idx, 1)
	}
	if b, _ := s.ToBool(int(idx)); !b {
		return wrongTypeAt(ctx, "true", idx, 1)
	}
	return nil
}

// PushInto implements Pusher.
func (True) PushInto(ctx Context) (*Guard, error) {
	ctx.RawState().PushBool(true)
	return newGuard(ctx, 1), nil
}

// False is the counterpart of True for the boolean false.
type False struct{}

// ReadFrom implements Reader.
func (False) ReadFrom(ctx Context, idx StackIndex) error {
	s := ctx.RawState()
	if s.TypeAt(int(idx)) != state.TypeBoolean {
		return wrongTypeAt(ctx, "false", idx, 1)
	}
	if b, _ := s.ToBool(int(idx)); b {
		return wrongTypeAt(ctx, "false", idx, 1)
	}
	return nil
}

// PushInto implements Pusher.
func (False) PushInto(ctx Context) (*Guard, error) {
	ctx.RawState().PushBool(false)
	return newGuard(ctx, 1), nil
}

// Typename reads the dynamic type name of any slot without touching the
// value itself. It never fails, except on an index past the top of the
// stack where it reads "no value".
type Typename string

// ReadFrom implements Reader.
func (t *Typename) ReadFrom(ctx Context, idx StackIndex) error {
	*t = Typename(ctx.RawState().TypeName(int(idx)))
	return nil
}
