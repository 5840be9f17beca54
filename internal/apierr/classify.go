package apierr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Classification is the verdict Classify reaches about a failure.
type Classification struct {
	Kind       Kind
	Status     int
	RetryAfter time.Duration
	Retryable  bool
}

// retryableStatus are HTTP statuses that are always worth another attempt.
var retryableStatus = map[int]bool{429: true, 500: true, 502: true, 503: true, 504: true}

// transientIndicators are matched against the lowercased error message when
// the failure carries no status code.
var transientIndicators = []string{
	"connection",
	"timeout",
	"temporary failure",
	"service unavailable",
	"too many requests",
}

// Classify maps any error to a Kind and a retry verdict.
//
// Authentication and permission failures are never retryable. Rate limits
// always are. With no usable signal the verdict is retryable.
func Classify(err error) Classification {
	if err == nil {
		return Classification{}
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		return Classification{Kind: KindClientError, Retryable: false}
	}

	var aerr *Error
	if errors.As(err, &aerr) {
		c := Classification{Kind: aerr.Kind, Status: aerr.Status, RetryAfter: aerr.RetryAfter}
		if c.Kind == KindUnknown && c.Status != 0 {
			c.Kind = kindForStatus(c.Status)
		}
		if c.Kind == KindUnknown && c.Status == 0 && hasTransientIndicator(aerr.Error()) {
			c.Kind = KindTransientNetwork
		}
		c.Retryable = retryableVerdict(c)
		return c
	}

	var netErr net.Error
	if errors.As(err, &netErr) || hasTransientIndicator(err.Error()) {
		return Classification{Kind: KindTransientNetwork, Retryable: true}
	}

	return Classification{Kind: KindUnknown, Retryable: true}
}

func retryableVerdict(c Classification) bool {
	switch c.Kind {
	case KindAuthenticationFailed, KindPermissionDenied:
		return false
	case KindRateLimited, KindServerError, KindTransientNetwork, KindUnknown:
		return true
	}
	return retryableStatus[c.Status]
}

func hasTransientIndicator(msg string) bool {
	msg = strings.ToLower(msg)
	for _, p := range transientIndicators {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsRetryable reports the default classifier's retry verdict for err.
func IsRetryable(err error) bool {
	return Classify(err).Retryable
}

// IsAborted reports whether err is a cancellation or deadline from the
// caller's context rather than a remote failure.
func IsAborted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Code returns a stable machine-readable code for err.
func Code(err error) string {
	if err == nil {
		return ""
	}
	var mre *MaxRetriesExceededError
	var verr *ValidationError
	switch {
	case errors.As(err, &mre):
		return "MAX_RETRIES_EXCEEDED"
	case errors.As(err, &verr):
		return "VALIDATION_ERROR"
	case IsAborted(err):
		return "ABORTED"
	}
	switch Classify(err).Kind {
	case KindNotFound:
		return "NOT_FOUND_ERROR"
	case KindAuthenticationFailed:
		return "AUTHENTICATION_ERROR"
	case KindPermissionDenied:
		return "PERMISSION_ERROR"
	case KindRateLimited:
		return "RATE_LIMIT_ERROR"
	case KindServerError:
		return "SERVER_ERROR"
	case KindClientError:
		return "CLIENT_ERROR"
	case KindTransientNetwork:
		return "NETWORK_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

// UserMessage renders err as the message shown to tool callers. Each kind
// maps to its own wording so automated callers can branch on it.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var mre *MaxRetriesExceededError
	if errors.As(err, &mre) {
		return "Error: Operation failed after multiple attempts. Please try again later."
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return "Error: " + verr.Message
	}
	if errors.Is(err, context.Canceled) {
		return "Error: Operation was cancelled."
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Error: Operation timed out."
	}

	c := Classify(err)
	switch c.Kind {
	case KindNotFound:
		var aerr *Error
		if errors.As(err, &aerr) && aerr.Message != "" {
			return "Error: " + aerr.Message
		}
		return "Error: Resource not found."
	case KindAuthenticationFailed:
		return "Error: Authentication failed. Please check your credentials."
	case KindPermissionDenied:
		return "Error: Permission denied. You don't have access to this resource."
	case KindRateLimited:
		if c.RetryAfter > 0 {
			return fmt.Sprintf("Error: Rate limit exceeded. Please try again in %d seconds.",
				int(c.RetryAfter.Round(time.Second)/time.Second))
		}
		return "Error: Rate limit exceeded. Please try again later."
	case KindServerError:
		return fmt.Sprintf("Error: Confluence server error (HTTP %d). Please try again later.", c.Status)
	case KindClientError:
		return fmt.Sprintf("Error: Confluence rejected the request (HTTP %d).", c.Status)
	case KindTransientNetwork:
		return "Error: Could not reach Confluence. Please try again later."
	default:
		return "Error: An unexpected error occurred: " + err.Error()
	}
}
