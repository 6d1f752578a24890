package camnotify

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error taxonomy shared by the scheduler, the capture path and the upload path.
// Callers match with errors.Is; wrapped errors keep the sentinel in the chain.
var (
	// ErrInvalidConfig rejects a start attempt; the scheduler stays idle.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrNotIdle rejects a start attempt while a run is active or stopping.
	ErrNotIdle = errors.New("scheduler is not idle")

	ErrDeviceUnavailable = errors.New("capture device unavailable")
	ErrFrameRead         = errors.New("capture frame read failed")

	ErrAuthRejected       = errors.New("upload credential rejected")
	ErrDestinationInvalid = errors.New("upload destination invalid")
	ErrTransportFailure   = errors.New("upload transport failure")
	ErrRemote             = errors.New("upload remote error")

	// ErrPersistence marks a settings save failure. It is reported as a
	// warning and never blocks a start.
	ErrPersistence = errors.New("settings persistence failure")
)

// RemoteError is a remote-side failure that is neither an auth nor a
// destination problem. It matches ErrRemote.
type RemoteError struct {
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("upload remote error code=%d: %s", e.Code, e.Message)
	}
	return "upload remote error: " + e.Message
}

func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}

// ErrorKind names the taxonomy member err belongs to, for the error_kind log field.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, ErrNotIdle):
		return "not_idle"
	case errors.Is(err, ErrDeviceUnavailable):
		return "device_unavailable"
	case errors.Is(err, ErrFrameRead):
		return "frame_read_error"
	case errors.Is(err, ErrAuthRejected):
		return "auth_rejected"
	case errors.Is(err, ErrDestinationInvalid):
		return "destination_invalid"
	case errors.Is(err, ErrTransportFailure):
		return "transport_failure"
	case errors.Is(err, ErrRemote):
		return "remote_error"
	case errors.Is(err, ErrPersistence):
		return "persistence_failure"
	default:
		return "unknown"
	}
}
