package api

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport wraps failures that happened before a status code was read.
	ErrTransport = errors.New("api: transport failure")
	// ErrMalformedResponse is returned when a body does not match its contract.
	ErrMalformedResponse = errors.New("api: malformed response")
)

// StatusError is a response whose status the client does not accept.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string // server-provided, may be empty
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %s %s: status %d: %s", e.Method, e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("api: %s %s: status %d", e.Method, e.Path, e.Code)
}

// errorBody is the error envelope the API uses:
// {"data": null, "error": {"status": 404, "name": "NotFoundError", "message": "Not Found"}}
type errorBody struct {
	Error struct {
		Status  int    `json:"status"`
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error"`
}
