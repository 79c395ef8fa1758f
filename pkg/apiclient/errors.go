package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// StatusAuthTimeout is the Laravel-style "authentication timeout" status the
// backend returns alongside 401/403 for dead sessions.
const StatusAuthTimeout = 419

// User-facing messages for the broad failure classes. Screens show these
// verbatim, so they stay short and free of protocol detail.
const (
	MsgNetwork  = "Network issue. Please check your connection."
	MsgServer   = "Server error. Please try again later."
	MsgNotFound = "Not found."
)

// Error is the transport error surfaced to callers. Message is whatever the
// backend said; UserMessage is always safe to put on a screen.
type Error struct {
	// Status is the HTTP status code, or 0 when the request never got a
	// response (connectivity, timeout, cancellation).
	Status int

	Message     string
	UserMessage string
	Err         error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("apiclient: %s (status %d)", e.Message, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("apiclient: %v", e.Err)
	default:
		return fmt.Sprintf("apiclient: request failed (status %d)", e.Status)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func isAuthStatus(status int) bool {
	return status == http.StatusUnauthorized ||
		status == http.StatusForbidden ||
		status == StatusAuthTimeout
}

// IsAuthError reports whether err is an unauthorized-class response
// (401, 403, or 419). These mean the credential is no longer valid.
func IsAuthError(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && isAuthStatus(apiErr.Status)
}

// classifyTransport wraps an error that occurred before any response
// arrived. Timeouts, connectivity loss, and cancellation all read the same
// to a user, so they share one message.
func classifyTransport(err error) *Error {
	return &Error{Err: err, UserMessage: MsgNetwork}
}

// errorFromResponse builds an Error from a non-2xx response body. The
// backend usually ships {"message": "..."}, but nothing is guaranteed.
func errorFromResponse(status int, body []byte) *Error {
	e := &Error{Status: status}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			e.Message = payload.Message
		} else if payload.Error != "" {
			e.Message = payload.Error
		}
	}

	switch {
	case status >= http.StatusInternalServerError:
		e.UserMessage = MsgServer
	case status == http.StatusNotFound:
		e.UserMessage = MsgNotFound
	case e.Message != "":
		e.UserMessage = e.Message
	default:
		e.UserMessage = MsgServer
	}

	return e
}
