// Package errs defines the error kinds shared by the lattice, engine and
// estimator packages.
//
// Callers match kinds with [errors.Is]:
//
//	if errors.Is(err, errs.ErrInvalidParameter) {
//	    // reject the configuration
//	}
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds.
var (
	// ErrInvalidParameter indicates a non-positive temperature or dimension,
	// or an unrecognized lattice initialization mode.
	ErrInvalidParameter = errors.New("ising: invalid parameter")

	// ErrIndexOutOfRange indicates a lattice access outside its bounds.
	ErrIndexOutOfRange = errors.New("ising: index out of range")

	// ErrInsufficientData indicates a series shorter than the smoothing window.
	ErrInsufficientData = errors.New("ising: insufficient data")
)

// Error attaches the component and operation that failed to an error kind.
type Error struct {
	Component string
	Operation string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Component != "" {
		b.WriteString(e.Component)
	}
	if e.Operation != "" {
		if b.Len() > 0 {
			b.WriteString(".")
		}
		b.WriteString(e.Operation)
	}
	if e.Message != "" {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an *Error wrapping kind with a formatted message.
func E(component, op string, kind error, format string, args ...any) *Error {
	return &Error{
		Component: component,
		Operation: op,
		Message:   fmt.Sprintf(format, args...),
		Err:       kind,
	}
}
