package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrKindMismatch is matched by [*KindMismatchError].
	ErrKindMismatch = errors.New("variable already defined with a different kind")

	// ErrDuplicateResponder is matched by [*DuplicateResponderError].
	ErrDuplicateResponder = errors.New("action already has a responder")

	// ErrUnsupportedValue indicates a value whose kind cannot be inferred.
	ErrUnsupportedValue = errors.New("unsupported value")

	// ErrEmptyName is returned when a variable, action or id is blank.
	ErrEmptyName = errors.New("name must not be empty")

	// ErrClosed is returned by outbound calls after [Bridge.Close].
	ErrClosed = errors.New("bridge closed")
)

// KindMismatchError reports a redefinition of a variable under another kind.
type KindMismatchError struct {
	Name     string
	Existing Kind
	Wanted   Kind
}

func (e *KindMismatchError) Error() string {
	return fmt.Sprintf("variable %q: defined as %s, requested as %s", e.Name, e.Existing, e.Wanted)
}

func (e *KindMismatchError) Is(target error) bool { return target == ErrKindMismatch }

// DuplicateResponderError reports a second first-responder for an action.
type DuplicateResponderError struct {
	Action string
}

func (e *DuplicateResponderError) Error() string {
	return fmt.Sprintf("action %q: responder already defined", e.Action)
}

func (e *DuplicateResponderError) Is(target error) bool { return target == ErrDuplicateResponder }

// PanicError carries a value recovered from a handler.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// protect runs fn, converting a panic into a *PanicError.
func protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return fn()
}
