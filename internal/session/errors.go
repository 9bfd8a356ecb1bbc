// internal/session/errors.go
package session

import (
	"errors"
	"fmt"
)

var (
	ErrWalletNotConnected = errors.New("wallet not connected")
	ErrEngineDisposed     = errors.New("engine disposed")
)

// PreconditionError means the operation was invoked in a state that does not
// allow it. It is never retried.
type PreconditionError struct {
	Op  string
	Err error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

func precondition(op string, err error) error {
	return &PreconditionError{Op: op, Err: err}
}
