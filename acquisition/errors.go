package acquisition

import (
	"errors"
	"fmt"
)

// Sentinel errors for acquisition operations. These enable reliable error
// classification using errors.Is().

var (
	// ErrInvalidState indicates the operation is not valid for the
	// session's current state (for example starting while acquiring, or
	// waiting while idle).
	ErrInvalidState = errors.New("operation not valid in current state")

	// ErrConfiguration indicates the session is misconfigured: a queue
	// length below one, or changing the queue length mid-acquisition.
	ErrConfiguration = errors.New("acquisition configuration error")

	// ErrQueueLengthUnset indicates acquisition was started before any
	// queue length was configured. It matches ErrConfiguration under
	// errors.Is.
	ErrQueueLengthUnset = fmt.Errorf("%w: queue length not set", ErrConfiguration)
)
