package services

import (
	"errors"
	"fmt"
)

// Error kinds. Use errors.Is against these on any error a service returns.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrGateway    = errors.New("payment gateway error")
	ErrConflict   = errors.New("already processed")
	// ErrUnauthorized covers bad credentials and invalid tokens.
	ErrUnauthorized = errors.New("unauthorized")
)

// Error is a classified failure with a caller-facing message.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func validationError(format string, args ...interface{}) error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

func notFoundError(format string, args ...interface{}) error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func gatewayError(cause error, format string, args ...interface{}) error {
	return &Error{Kind: ErrGateway, Message: fmt.Sprintf(format, args...), Err: cause}
}

func conflictError(format string, args ...interface{}) error {
	return &Error{Kind: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

func unauthorizedError(format string, args ...interface{}) error {
	return &Error{Kind: ErrUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// Message returns the caller-facing message of err.
func Message(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}
