package daemon

import (
	"errors"
	"fmt"
)

// HTTPError is returned when the daemon answers a command with a non-2xx status
type HTTPError struct {
	Op         string // what was attempted, e.g. "create new CFD take request"
	StatusCode int
	Status     string // status text, e.g. "Internal Server Error"

	// Problem details, when the body carried them
	Title  string
	Detail string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("failed to %s: %d, %s", e.Op, e.StatusCode, e.Status)
	switch {
	case e.Title != "" && e.Detail != "":
		msg += fmt.Sprintf(" (%s: %s)", e.Title, e.Detail)
	case e.Title != "":
		msg += fmt.Sprintf(" (%s)", e.Title)
	case e.Detail != "":
		msg += fmt.Sprintf(" (%s)", e.Detail)
	}
	return msg
}

// Temporary reports whether resubmitting may succeed
func (e *HTTPError) Temporary() bool {
	return e.StatusCode >= 500
}

// IsHTTPError unwraps err to an *HTTPError
func IsHTTPError(err error) (*HTTPError, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}

// problem is the error body written by the daemon
type problem struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}
