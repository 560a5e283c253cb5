package calendar

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrApiRequest       = errors.New("calendar api request failed")
)

// ApiRequestError is returned when the calendar API cannot be reached,
// answers with a non-success status or sends a body that cannot be mapped.
// It matches ErrApiRequest with errors.Is.
type ApiRequestError struct {
	// StatusCode is the http status of the response, or zero when no response
	// was received.
	StatusCode int

	// Code and Message come from the API's error body, when there is one.
	Code    string
	Message string

	// Body is the raw response body.
	Body []byte

	// Wrapped is the underlying transport or decoding error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *ApiRequestError) Error() string {
	var b strings.Builder
	b.WriteString(ErrApiRequest.Error())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, ": %s", e.Code)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Wrapped != nil {
		fmt.Fprintf(&b, ": %s", e.Wrapped)
	}
	return b.String()
}

// Is matches ErrApiRequest.
func (e *ApiRequestError) Is(target error) bool {
	return target == ErrApiRequest
}

// Unwrap returns the underlying error.
func (e *ApiRequestError) Unwrap() error {
	return e.Wrapped
}

// newStatusError builds the error for a non-success response, picking up the
// API's {"error":{"code":..,"message":..}} body when present.
func newStatusError(statusCode int, body []byte) *ApiRequestError {
	e := &ApiRequestError{StatusCode: statusCode, Body: body}
	var errBody struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errBody); err == nil {
		e.Code = errBody.Error.Code
		e.Message = errBody.Error.Message
	}
	return e
}
