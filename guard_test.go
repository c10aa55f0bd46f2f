package lute

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGuardReleasePopsExactly(t *testing.T) {
	l := newLua(t)
	s := l.RawState()

	g1 := Push(l, 1)
	g2 := Push(l, "two")
	require.Equal(t, 2, s.Top())
	require.Equal(t, 1, g1.Size())
	require.Equal(t, 1, g2.Size())

	g2.Release()
	require.Equal(t, 1, s.Top())
	g1.Release()
	require.Equal(t, 0, s.Top())
}

func TestGuardReleaseIsIdempotent(t *testing.T) {
	l := newLua(t)
	s := l.RawState()
	g := Push(l, true)
	g.Release()
	g.Release()
	require.Equal(t, 0, s.Top())
}

func TestGuardForgetTransfersOwnership(t *testing.T) {
	l := newLua(t)
	s := l.RawState()
	g := Push(l, 7)
	require.Equal(t, 1, g.Forget())
	g.Release() // now a no-op
	require.Equal(t, 1, s.Top())
	s.Pop(1)
}

func TestGuardIsAContext(t *testing.T) {
	l := newLua(t)
	s := l.RawState()
	outer := Push(l, "below")
	inner := Push(outer, "above")
	require.Equal(t, 2, s.Top())
	inner.Release()
	outer.Release()
	require.Equal(t, 0, s.Top())
}

func TestGuardDetectsShrunkenStack(t *testing.T) {
	l := newLua(t)
	g := Push(l, 1)
	l.RawState().Pop(1)
	require.Panics(t, func() {
		g.Release()
	})
}

func TestResolveIndex(t *testing.T) {
	l := newLua(t)
	g1 := Push(l, "a")
	g2 := Push(l, "b")
	defer g1.Release()
	defer g2.Release()

	require.Equal(t, StackIndex(2), ResolveIndex(l, -1))
	require.Equal(t, StackIndex(1), ResolveIndex(l, -2))
	require.Equal(t, StackIndex(1), ResolveIndex(l, 1))

	// a resolved index stays fixed as the stack grows
	idx := ResolveIndex(l, -1)
	g3 := Push(l, "c")
	v, err := ReadAt[string](l, idx)
	require.NoError(t, err)
	require.Equal(t, "b", v)
	g3.Release()
}

func TestResolveIndexMisusePanics(t *testing.T) {
	l := newLua(t)
	require.Panics(t, func() { ResolveIndex(l, 0) })
	require.Panics(t, func() { ResolveIndex(l, 1) })  // empty stack
	require.Panics(t, func() { ResolveIndex(l, -1) }) // empty stack
}
