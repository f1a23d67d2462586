package recognize

import (
	"errors"
	"fmt"
)

// GenericMessage is the only failure text shown to users. Transfer details
// are logged, not displayed.
const GenericMessage = "Error recognizing fish. Please try again."

// Sentinel errors for common conditions.
var (
	// ErrTransferFailed is the Kind of a TransferError raised by a failed
	// request or a non-2xx status.
	ErrTransferFailed = errors.New("recognize: transfer failed")

	// ErrEmptyResponse is the Kind of a TransferError raised when the
	// service answered but returned no text.
	ErrEmptyResponse = errors.New("recognize: empty response")

	// ErrNoAPIKey is returned when the Gemini transport has no key.
	ErrNoAPIKey = errors.New("recognize: API key required")

	// ErrNoRemoteURL is returned when the HTTP transport has no server URL.
	ErrNoRemoteURL = errors.New("recognize: remote URL required")
)

// TransferError is a failed recognition round trip.
type TransferError struct {
	// Kind is ErrTransferFailed or ErrEmptyResponse.
	Kind error

	// StatusCode is the HTTP status, 0 when no response was received.
	StatusCode int

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *TransferError) Error() string {
	msg := e.Kind.Error()
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap lets errors.Is match both the kind and the cause.
func (e *TransferError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsRateLimited returns true if the service answered 429.
func (e *TransferError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsUnauthorized returns true if the service rejected the credentials.
func (e *TransferError) IsUnauthorized() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// IsServerError returns true for a 5xx status.
func (e *TransferError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsEmpty reports whether the service answered without any text.
func (e *TransferError) IsEmpty() bool {
	return errors.Is(e.Kind, ErrEmptyResponse)
}

// UserMessage returns the text to show for a recognition failure.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return GenericMessage
}

func failed(status int, err error) *TransferError {
	return &TransferError{Kind: ErrTransferFailed, StatusCode: status, Err: err}
}

func empty(status int) *TransferError {
	return &TransferError{Kind: ErrEmptyResponse, StatusCode: status}
}
