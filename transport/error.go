package transport

import (
	"errors"

	"github.com/dogmatiq/courier/message"
)

// RetryableError is an error indicating that a send failed in a way that may
// succeed if attempted again.
type RetryableError struct {
	Cause error
}

func (e RetryableError) Error() string {
	return e.Cause.Error()
}

func (e RetryableError) Unwrap() error {
	return e.Cause
}

// FatalError is an error indicating that a send failed in a way that will
// never succeed, regardless of how many times it is attempted.
type FatalError struct {
	Cause error
}

func (e FatalError) Error() string {
	return e.Cause.Error()
}

func (e FatalError) Unwrap() error {
	return e.Cause
}

// Retryable marks err as retryable. It returns nil if err is nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}

	return RetryableError{err}
}

// Fatal marks err as fatal. It returns nil if err is nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}

	return FatalError{err}
}

// IsFatal returns true if err must not be retried.
//
// Errors marked with Fatal() and conversation resolution errors are fatal. If
// err has been marked with both Fatal() and Retryable() the outermost marking
// takes precedence.
func IsFatal(err error) bool {
	for err != nil {
		switch err.(type) {
		case FatalError:
			return true
		case RetryableError:
			return false
		case message.ConversationResolutionError:
			return true
		}

		err = errors.Unwrap(err)
	}

	return false
}
