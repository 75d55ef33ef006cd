package guard

import (
	"errors"
	"fmt"
)

// ErrReleased is returned by Start on a guard whose release handle has run.
var ErrReleased = errors.New("guard: released")

// TransportError reports that the source refused or failed a subscription.
// The guard is left not live; retrying is up to the caller or the transport.
type TransportError struct {
	Key string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("guard: subscribe %q: %v", e.Key, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is or wraps a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
