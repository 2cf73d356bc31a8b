// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package eventprocessor

import "errors"

var (
	// ErrInvalidEvent is wrapped by every decode failure.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrInvalidConfig is returned when transport configuration is unusable.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrPublisherClosed is returned by Publish after Close.
	ErrPublisherClosed = errors.New("publisher is closed")
)

// PermanentError marks a message that can never succeed. Handlers ack it
// instead of asking for redelivery.
type PermanentError struct {
	Message string
	Cause   error
}

// NewPermanentError creates a PermanentError.
func NewPermanentError(message string, cause error) *PermanentError {
	return &PermanentError{Message: message, Cause: cause}
}

func (e *PermanentError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *PermanentError) Unwrap() error {
	return e.Cause
}

// IsPermanentError reports whether err is or wraps a *PermanentError.
func IsPermanentError(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
