package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a transport failure.
type Kind string

const (
	KindNetworkUnreachable Kind = "network_unreachable"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindServerError        Kind = "server_error"
	KindValidationError    Kind = "validation_error"
	KindUnknown            Kind = "unknown"
	// KindSessionExpired means the access token could not be renewed and
	// the session has been cleared. A new login is required.
	KindSessionExpired Kind = "session_expired"
)

const fallbackMessage = "Something went wrong. Please try again."

var ErrSessionExpired = errors.New("session expired")

// Error is the single error shape produced at the transport boundary.
type Error struct {
	Kind      Kind
	Status    int
	Message   string
	Code      string
	RequestID string
	Err       error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("%s [request %s]", msg, e.RequestID)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

func IsKind(err error, kind Kind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// DisplayMessage is the text shown to the user for a failed request.
func DisplayMessage(err error) string {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		if err == nil || err.Error() == "" {
			return fallbackMessage
		}
		return err.Error()
	}
	if apiErr.Status == http.StatusForbidden {
		return "No permission for this area"
	}
	if apiErr.Message != "" {
		return apiErr.Message
	}
	return fallbackMessage
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusBadRequest,
		status == http.StatusConflict,
		status == http.StatusUnprocessableEntity:
		return KindValidationError
	case status >= 500:
		return KindServerError
	default:
		return KindUnknown
	}
}

// transportError classifies a failure that produced no HTTP response.
// Timeouts and dial failures both count as the network being unreachable;
// only a caller-side cancellation is reported as unknown.
func transportError(err error) *Error {
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindUnknown, Message: "request canceled", Err: err}
	}
	return &Error{Kind: KindNetworkUnreachable, Message: "network unreachable", Err: err}
}

func sessionExpired(requestID string) *Error {
	return &Error{
		Kind:      KindSessionExpired,
		Status:    http.StatusUnauthorized,
		Message:   "Session expired, please log in again",
		RequestID: requestID,
		Err:       ErrSessionExpired,
	}
}
