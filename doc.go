// Package lute embeds a small dynamically typed scripting interpreter
// and marshals values between it and Go across a shared value stack.
//
// A Lua is an execution context. Go values move onto its stack with
// Push and TryPush and come back with Read, Eval, Global and friends;
// every slot written is owned by a Guard that pops it on Release, so a
// balanced stack is a matter of pairing each push with a deferred
// release. Tables and functions are manipulated through live handles
// (Table, Function) that borrow or own a slot.
//
//	l := lute.New()
//	defer l.Close()
//	l.OpenBase()
//
//	if err := l.Exec(`function add(a, b) return a + b end`); err != nil {
//		log.Fatal(err)
//	}
//	add, _ := lute.Global[lute.Function](l, "add")
//	defer add.Release()
//	sum, err := lute.Call[int](&add, 2, 3) // 5
//
// Decoding is strict: the dynamic type tag of a slot is inspected
// before any conversion, numbers must be exactly representable in the
// requested width, and a mismatch is a WrongType error naming both
// sides. A failed read leaves the slot in place, so the same slot can
// be re-read as a different type; Option, Either and the TupleN types
// compose these retries into optional, alternative and multi-value
// decodes.
//
// All errors crossing the boundary are *Error values tagged with a
// Kind: SyntaxError from compilation, ExecutionError from a raised
// script error, ReadError from a failing code source, and WrongType
// from decoding. Index misuse and stack-discipline violations are
// programmer errors and panic instead.
//
// A context is single-threaded: nothing in the package locks, and a
// context must not be shared between goroutines without external
// synchronization. Distinct contexts are fully independent.
package lute
