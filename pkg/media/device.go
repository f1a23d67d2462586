package media

import (
	"context"
	"fmt"
	"image"
)

// Facing is the preferred camera direction.
type Facing string

const (
	FacingEnvironment Facing = "environment"
	FacingUser        Facing = "user"
)

// Constraints describe the stream a caller would like. Devices treat them as
// preferences and may deliver a different resolution.
type Constraints struct {
	Facing Facing `json:"facing"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// MobileConstraints asks for the rear camera at 1280x720.
func MobileConstraints() Constraints {
	return Constraints{Facing: FacingEnvironment, Width: 1280, Height: 720}
}

// DesktopConstraints asks for the front camera at 640x480.
func DesktopConstraints() Constraints {
	return Constraints{Facing: FacingUser, Width: 640, Height: 480}
}

// ConstraintsFor picks the mobile or desktop constraints.
func ConstraintsFor(preferMobile bool) Constraints {
	if preferMobile {
		return MobileConstraints()
	}
	return DesktopConstraints()
}

// Device opens live video streams.
type Device interface {
	// Open starts a stream matching c. Failures should be, or wrap, a
	// *DeviceAccessError so they can be classified.
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is an open video stream.
type Stream interface {
	// Tracks returns every track of the stream. Stopping all of them
	// releases the hardware.
	Tracks() []Track

	// Frame returns the current frame. A frame that is not available yet is
	// reported as a nil or zero-sized image.
	Frame(ctx context.Context) (image.Image, error)
}

// Track is one media track of a stream.
type Track interface {
	Kind() string

	// Stop releases the track. It must be safe to call more than once.
	Stop()
}

// AccessKind classifies a device access failure.
type AccessKind string

const (
	AccessPermissionDenied AccessKind = "permission-denied"
	AccessNotFound         AccessKind = "not-found"
	AccessNotReadable      AccessKind = "not-readable"
	AccessOther            AccessKind = "other"
)

// DeviceAccessError is the typed failure a Device returns from Open.
type DeviceAccessError struct {
	Kind AccessKind
	Err  error
}

// Error implements the error interface.
func (e *DeviceAccessError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("device access: %s", e.Kind)
	}
	return fmt.Sprintf("device access: %s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *DeviceAccessError) Unwrap() error {
	return e.Err
}

// NewAccessError returns a *DeviceAccessError of the given kind.
func NewAccessError(kind AccessKind, err error) error {
	return &DeviceAccessError{Kind: kind, Err: err}
}
