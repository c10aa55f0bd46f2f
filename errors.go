package lute

import "fmt"

// ErrorKind categorizes an Error.
type ErrorKind int

const (
	// SyntaxError indicates that source code failed to parse. It is
	// fatal to that load attempt only.
	SyntaxError ErrorKind = iota
	// ExecutionError indicates that a protected call raised an error.
	// Message holds the stringified raised value.
	ExecutionError
	// ReadError indicates that the byte source supplying code failed.
	// The underlying I/O error is available via Unwrap.
	ReadError
	// WrongType indicates that the dynamic type of a slot did not match
	// the requested host type. The caller may retry the same slot with
	// a different target type.
	WrongType
)

// String returns the name of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case SyntaxError:
		return "syntax error"
	case ExecutionError:
		return "execution error"
	case ReadError:
		return "read error"
	case WrongType:
		return "wrong type"
	}
	return "error"
}

// Error is the error type for every operation crossing the interpreter
// boundary. Errors are plain values: the interpreter never unwinds into
// host code, and a failed operation always leaves the stack at the
// height it had before the operation started.
type Error struct {
	Kind     ErrorKind
	Message  string // syntax and execution diagnostics
	Expected string // WrongType: requested host type
	Actual   string // WrongType: observed interpreter type(s)
	Cause    error  // ReadError: the underlying I/O failure
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch e.Kind {
	case SyntaxError:
		return fmt.Sprintf("syntax error: %s", e.Message)
	case ExecutionError:
		return fmt.Sprintf("execution error: %s", e.Message)
	case ReadError:
		return fmt.Sprintf("read error: %v", e.Cause)
	case WrongType:
		return fmt.Sprintf("wrong type: %s expected, got %s", e.Expected, e.Actual)
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

func newSyntaxError(msg string) *Error {
	return &Error{Kind: SyntaxError, Message: msg}
}

func newExecutionError(msg string) *Error {
	return &Error{Kind: ExecutionError, Message: msg}
}

func newReadError(cause error) *Error {
	return &Error{Kind: ReadError, Cause: cause}
}

func newWrongType(expected, actual string) *Error {
	return &Error{Kind: WrongType, Expected: expected, Actual: actual}
}

// wrongTypeAt builds a WrongType error describing count slots starting
// at the given absolute index.
func wrongTypeAt(ctx Context, expected string, start StackIndex, count int) *Error {
	return newWrongType(expected, typeNames(ctx, start, count))
}

// typeNames joins the dynamic type names of count slots starting at the
// given absolute index: "()" for zero, a bare name for one, and a
// parenthesized comma-separated list otherwise. Slots past the top of
// the stack read as "no value".
func typeNames(ctx Context, start StackIndex, count int) string {
	s := ctx.RawState()
	switch count {
	case 0:
		return "()"
	case 1:
		return s.TypeName(int(start))
	}
	names := make([]string, count)
	for i := 0; i < count; i++ {
		names[i] = s.TypeName(int(start) + i)
	}
	out := names[0]
	for _, name := range names[1:] {
		out += ", " + name
	}
	return "(" + out + ")"
}
