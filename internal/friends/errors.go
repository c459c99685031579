package friends

import (
	"errors"
	"fmt"
)

// Error kinds returned by the resolver, engine and query service. Match them
// with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrNotFoundOrForbidden = errors.New("not found or forbidden")
	ErrInternal            = errors.New("internal error")
)

// Error describes a failed operation. Kind is one of the sentinel kinds above;
// Err carries the underlying cause when there is one.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Kind)
}

// Is reports whether target is the error's kind.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

func fail(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

func internal(op string, err error) error {
	return &Error{Op: op, Kind: ErrInternal, Err: err}
}

// KindOf returns the sentinel kind carried by err, or ErrInternal for errors
// that did not originate here.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrInternal
}
