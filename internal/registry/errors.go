package registry

import (
	"errors"
	"fmt"
)

// Registry-specific errors.
var (
	// ErrMalformedReference indicates a reference without a container part.
	ErrMalformedReference = errors.New("reference must be of the form container.Symbol")

	// ErrUnknownContainer indicates that no container is bound under the path.
	ErrUnknownContainer = errors.New("unknown container")

	// ErrUnknownSymbol indicates that the container has no such symbol.
	ErrUnknownSymbol = errors.New("unknown symbol")

	// ErrNotCallable indicates that a resolved symbol is not a callable.
	ErrNotCallable = errors.New("symbol is not callable")
)

// ResolutionError reports a failure to resolve a textual reference to a
// registered symbol. It is fatal to the registration or call that triggered
// it and never corrupts other registrations.
type ResolutionError struct {
	// Ref is the reference that failed to resolve.
	Ref string

	// Err is the underlying cause (ErrUnknownContainer, ErrUnknownSymbol,
	// or ErrMalformedReference).
	Err error
}

// Error returns the formatted resolution failure message.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %q: %v", e.Ref, e.Err)
}

// Unwrap returns the underlying cause for errors.Is / errors.As.
func (e *ResolutionError) Unwrap() error { return e.Err }

// InvocationError tags a failure raised by an invoked symbol. The underlying
// error is the one the symbol returned (or the panic it raised), preserved
// for errors.Is / errors.As inspection.
type InvocationError struct {
	// Ref is the reference of the symbol that failed.
	Ref string

	// Err is the error propagated from the invocation.
	Err error
}

// Error returns the formatted invocation failure message.
func (e *InvocationError) Error() string {
	return fmt.Sprintf("call %q: %v", e.Ref, e.Err)
}

// Unwrap returns the propagated error for errors.Is / errors.As.
func (e *InvocationError) Unwrap() error { return e.Err }
