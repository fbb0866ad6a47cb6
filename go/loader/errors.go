package loader

import (
	"fmt"

	"github.com/pkg/errors"
)

type ErrorKind int

const (
	OpenFailure ErrorKind = iota + 1
	FormatFailure
	AllocFailure
	ReadFailure
)

func (k ErrorKind) String() string {
	switch k {
	case OpenFailure:
		return "open failure"
	case FormatFailure:
		return "bad format"
	case AllocFailure:
		return "alloc failure"
	case ReadFailure:
		return "read failure"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is returned by every failed load. Compare against the Err* values
// with errors.Is to test the kind.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

var (
	ErrFailedOpen = &Error{Kind: OpenFailure, Msg: "failed to open binary"}
	ErrBadFormat  = &Error{Kind: FormatFailure, Msg: "bad binary format"}
	ErrAllocFail  = &Error{Kind: AllocFailure, Msg: "out of memory"}
	ErrReadFail   = &Error{Kind: ReadFailure, Msg: "failed to read binary"}
)

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind ErrorKind, err error, format string, a ...interface{}) error {
	return errors.WithStack(&Error{Kind: kind, Msg: fmt.Sprintf(format, a...), Err: err})
}
