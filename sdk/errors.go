package sdk

import (
	"errors"
	"fmt"
)

// Status is an SDK status code. The values mirror the vendor header so a
// production driver can pass codes through unchanged.
type Status int

const (
	StatusSuccess Status = iota
	StatusNotInitialised
	StatusNotImplemented
	StatusReadOnly
	StatusNotReadable
	StatusNotWritable
	StatusOutOfRange
	StatusIndexNotAvailable
	StatusIndexNotImplemented
	StatusExceededMaxStringLength
	StatusConnection
	StatusNoData
	StatusInvalidHandle
	StatusTimedOut
)

// StatusNoMemory is reported when the device-side driver cannot allocate.
const StatusNoMemory Status = 38

// String returns the vendor-style name of the status code.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusNotInitialised:
		return "ERR_NOTINITIALISED"
	case StatusNotImplemented:
		return "ERR_NOTIMPLEMENTED"
	case StatusReadOnly:
		return "ERR_READONLY"
	case StatusNotReadable:
		return "ERR_NOTREADABLE"
	case StatusNotWritable:
		return "ERR_NOTWRITABLE"
	case StatusOutOfRange:
		return "ERR_OUTOFRANGE"
	case StatusIndexNotAvailable:
		return "ERR_INDEXNOTAVAILABLE"
	case StatusIndexNotImplemented:
		return "ERR_INDEXNOTIMPLEMENTED"
	case StatusExceededMaxStringLength:
		return "ERR_EXCEEDEDMAXSTRINGLENGTH"
	case StatusConnection:
		return "ERR_CONNECTION"
	case StatusNoData:
		return "ERR_NODATA"
	case StatusInvalidHandle:
		return "ERR_INVALIDHANDLE"
	case StatusTimedOut:
		return "ERR_TIMEDOUT"
	case StatusNoMemory:
		return "ERR_NOMEMORY"
	default:
		return fmt.Sprintf("unknown code %d", int(s))
	}
}

// Sentinel errors for classification with errors.Is.
var (
	// ErrTimedOut indicates a WaitBuffer call elapsed without a completed
	// frame. It is not a hardware fault; callers typically retry.
	ErrTimedOut = errors.New("wait buffer timed out")

	// ErrNotImplemented indicates the feature does not exist on this
	// camera.
	ErrNotImplemented = errors.New("feature not implemented")

	// ErrInvalidHandle indicates the session handle is not valid.
	ErrInvalidHandle = errors.New("invalid device handle")
)

// StatusError is a hardware-level failure: an SDK call that returned a
// non-success status. It records the operation (SDK call name plus the
// feature or command argument) so log lines and wrapped errors identify
// the failing call.
type StatusError struct {
	Op   string
	Code Status
}

// Error formats the failure the way the SDK's own diagnostics do.
func (e *StatusError) Error() string {
	return fmt.Sprintf("failure in %s (%s)", e.Op, e.Code)
}

// Is maps well-known status codes onto the package sentinels so callers
// can classify with errors.Is without inspecting codes.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrTimedOut:
		return e.Code == StatusTimedOut
	case ErrNotImplemented:
		return e.Code == StatusNotImplemented
	case ErrInvalidHandle:
		return e.Code == StatusInvalidHandle
	}
	return false
}

// Fail constructs a *StatusError for the given operation and code.
func Fail(op string, code Status) error {
	return &StatusError{Op: op, Code: code}
}
