package media

import (
	"errors"
	"fmt"
)

// Sentinel errors. Device failures are reported as *DeviceError and match one
// of the four device sentinels with errors.Is.
var (
	// ErrEmptyInput is returned when a selected file has no bytes.
	ErrEmptyInput = errors.New("media: empty input")

	// ErrNoActiveSession is returned when a frame is requested from a session
	// that is closed, superseded, or has no frame yet.
	ErrNoActiveSession = errors.New("media: no active capture session")

	// ErrPermissionDenied means the user or OS refused camera access.
	ErrPermissionDenied = errors.New("media: camera permission denied")

	// ErrDeviceNotFound means no camera matched the request.
	ErrDeviceNotFound = errors.New("media: camera not found")

	// ErrDeviceBusy means the camera exists but could not be read, usually
	// because another process holds it.
	ErrDeviceBusy = errors.New("media: camera busy")

	// ErrCameraUnavailable covers every other acquisition failure.
	ErrCameraUnavailable = errors.New("media: camera unavailable")

	// ErrShutdown is returned by an Acquirer after Shutdown.
	ErrShutdown = errors.New("media: acquirer shut down")
)

// DeviceError is an acquisition failure classified into one of the device
// sentinels.
type DeviceError struct {
	// Reason is ErrPermissionDenied, ErrDeviceNotFound, ErrDeviceBusy or
	// ErrCameraUnavailable.
	Reason error

	// Err is the underlying device error, if any.
	Err error
}

// Error implements the error interface.
func (e *DeviceError) Error() string {
	if e.Err == nil {
		return e.Reason.Error()
	}
	return fmt.Sprintf("%v: %v", e.Reason, e.Err)
}

// Unwrap exposes both the reason sentinel and the underlying error.
func (e *DeviceError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}

// classify maps a raw Device.Open failure onto a *DeviceError.
func classify(err error) *DeviceError {
	var de *DeviceError
	if errors.As(err, &de) {
		return de
	}

	reason := ErrCameraUnavailable
	var ae *DeviceAccessError
	if errors.As(err, &ae) {
		switch ae.Kind {
		case AccessPermissionDenied:
			reason = ErrPermissionDenied
		case AccessNotFound:
			reason = ErrDeviceNotFound
		case AccessNotReadable:
			reason = ErrDeviceBusy
		}
	}
	return &DeviceError{Reason: reason, Err: err}
}

// UserMessage returns the text to show a person for err. Transfer errors and
// anything unknown get a generic notice.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyInput):
		return "The selected file is empty. Please choose another image."
	case errors.Is(err, ErrPermissionDenied):
		return "Camera access was denied. Allow camera access and try again."
	case errors.Is(err, ErrDeviceNotFound):
		return "No camera was found on this device."
	case errors.Is(err, ErrDeviceBusy):
		return "The camera is in use by another application."
	case errors.Is(err, ErrCameraUnavailable):
		return "The camera could not be started."
	case errors.Is(err, ErrNoActiveSession):
		return "The camera is not ready yet. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}
