// Package apierr defines the error taxonomy shared by the Confluence tools.
//
// Every failure coming back from the remote content API is reduced to one
// of a closed set of kinds by Classify. The retry engine decides what to do
// from the classification alone, and the tool layer turns any error into a
// stable, human-readable message with UserMessage.
package apierr

import (
	"fmt"
	"time"
)

// Kind is the semantic category of a remote failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindAuthenticationFailed
	KindPermissionDenied
	KindRateLimited
	KindServerError
	KindClientError
	KindTransientNetwork
)

// Kinds lists every classification kind, in declaration order.
var Kinds = []Kind{
	KindUnknown,
	KindNotFound,
	KindAuthenticationFailed,
	KindPermissionDenied,
	KindRateLimited,
	KindServerError,
	KindClientError,
	KindTransientNetwork,
}

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAuthenticationFailed:
		return "authentication_failed"
	case KindPermissionDenied:
		return "permission_denied"
	case KindRateLimited:
		return "rate_limited"
	case KindServerError:
		return "server_error"
	case KindClientError:
		return "client_error"
	case KindTransientNetwork:
		return "transient_network"
	default:
		return "unknown"
	}
}

// Error is a classified failure from the remote content API.
type Error struct {
	Kind Kind
	// Status is the HTTP status code, 0 when the failure never got a response.
	Status int
	// RetryAfter is the server-requested wait. Zero means absent.
	RetryAfter time.Duration
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound reports a missing resource such as a page.
func NotFound(resource, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// Authentication reports rejected credentials.
func Authentication(message string) *Error {
	if message == "" {
		message = "Authentication failed"
	}
	return &Error{Kind: KindAuthenticationFailed, Status: 401, Message: message}
}

// Permission reports an authenticated caller without access.
func Permission(message string) *Error {
	if message == "" {
		message = "Permission denied"
	}
	return &Error{Kind: KindPermissionDenied, Status: 403, Message: message}
}

// RateLimited reports throttling by the remote API.
func RateLimited(retryAfter time.Duration) *Error {
	return &Error{
		Kind:       KindRateLimited,
		Status:     429,
		RetryAfter: retryAfter,
		Message:    "Rate limit exceeded",
	}
}

// FromStatus builds an Error for an HTTP response status.
func FromStatus(status int, message string, retryAfter time.Duration) *Error {
	e := &Error{Kind: kindForStatus(status), Status: status, Message: message}
	if e.Kind == KindRateLimited {
		e.RetryAfter = retryAfter
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("Confluence API returned HTTP %d", status)
	}
	return e
}

// Network wraps a transport failure that never produced a response.
func Network(err error) *Error {
	return &Error{Kind: KindTransientNetwork, Message: "network error", Err: err}
}

func kindForStatus(status int) Kind {
	switch {
	case status == 401:
		return KindAuthenticationFailed
	case status == 403:
		return KindPermissionDenied
	case status == 404:
		return KindNotFound
	case status == 429:
		return KindRateLimited
	case status >= 500:
		return KindServerError
	case status >= 400:
		return KindClientError
	default:
		return KindUnknown
	}
}
