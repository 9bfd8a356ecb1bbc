// internal/ledger/errors.go
package ledger

import (
	"errors"
	"fmt"
)

// ErrUnsuccessful is wrapped by a RemoteError whose HTTP status was 2xx but
// whose envelope carried success=false.
var ErrUnsuccessful = errors.New("ledger: request was not successful")

// NetworkError is a transport failure or timeout.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("ledger %s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RemoteError means the ledger was reachable but rejected the request.
type RemoteError struct {
	Op      string
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("ledger %s: status %d: %s", e.Op, e.Status, e.Message)
}

func (e *RemoteError) Unwrap() error {
	if e.Status >= 200 && e.Status < 300 {
		return ErrUnsuccessful
	}
	return nil
}

// IsUnavailable reports whether err came from the ledger, either as a
// transport failure or as a rejection.
func IsUnavailable(err error) bool {
	var netErr *NetworkError
	var remoteErr *RemoteError
	return errors.As(err, &netErr) || errors.As(err, &remoteErr)
}

// retryable reports whether repeating an idempotent read may help.
func retryable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var remoteErr *RemoteError
	return errors.As(err, &remoteErr) && remoteErr.Status >= 500
}
