package dynamo

import (
	"errors"
	"fmt"
)

// ErrCanceled indicates a run stopped because its context was done.
var ErrCanceled = errors.New("dynamo: run canceled")

// WorkerFailure aborts a sweep. It names the temperature whose run failed and
// unwraps to the cause, so errors.Is still matches the underlying error kind.
type WorkerFailure struct {
	Temperature float64
	Err         error
}

func (e *WorkerFailure) Error() string {
	return fmt.Sprintf("dynamo: worker failed at T=%g: %v", e.Temperature, e.Err)
}

func (e *WorkerFailure) Unwrap() error {
	return e.Err
}

// canceledError keeps both ErrCanceled and the context's own error in the chain.
type canceledError struct {
	step  int
	cause error
}

func (e *canceledError) Error() string {
	return fmt.Sprintf("%v after %d steps: %v", ErrCanceled, e.step, e.cause)
}

func (e *canceledError) Unwrap() []error {
	return []error{ErrCanceled, e.cause}
}
