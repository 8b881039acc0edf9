package push

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingContents is wrapped by the ValidationError for a message without a body.
	ErrMissingContents = errors.New("message contents are required")
	// ErrMissingAudience is wrapped by the ValidationError for a message with no target.
	ErrMissingAudience = errors.New("at least one target audience must be specified (external user IDs, filters, or segments)")
)

// ConfigurationError reports settings that make the client unusable.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid onesignal configuration: %s %s", e.Field, e.Reason)
}

// ValidationError is returned by Send before any network access when the
// built payload cannot be delivered. It is returned regardless of the
// throw-on-failure setting.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "invalid push message: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// DeliveryFailedError carries the provider's error list and status code, or
// the transport failure in Cause (StatusCode is then 0).
type DeliveryFailedError struct {
	Errors     []any
	StatusCode int
	Cause      error
}

func (e *DeliveryFailedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to send onesignal notification: %v", e.Cause)
	}
	return fmt.Sprintf("failed to send onesignal notification: status %d: %v", e.StatusCode, e.Errors)
}

func (e *DeliveryFailedError) Unwrap() error {
	return e.Cause
}

// IsValidationError reports whether err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// AsDeliveryFailed returns the DeliveryFailedError wrapped by err, if any.
func AsDeliveryFailed(err error) (*DeliveryFailedError, bool) {
	var de *DeliveryFailedError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
