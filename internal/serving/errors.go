package serving

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a serving failure
type Kind string

const (
	KindClientInput Kind = "client_input" // malformed or unusable request
	KindModel       Kind = "model"        // no model, or the model rejected the input
	KindInternal    Kind = "internal"
)

// Error is a serving failure with its kind
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Status is the HTTP status of the kind
func (e *Error) Status() int {
	switch e.Kind {
	case KindClientInput:
		return http.StatusBadRequest
	case KindModel:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func clientError(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindClientInput, Message: fmt.Sprintf(format, args...), Err: err}
}

func modelError(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindModel, Message: fmt.Sprintf(format, args...), Err: err}
}

// AsError returns err as a serving error; anything else becomes internal
func AsError(err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}
