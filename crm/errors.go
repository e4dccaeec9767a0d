package crm

import (
	"errors"
	"fmt"
)

// ErrorClass classifies a CRM call failure so callers (the coordinator's
// error sink, the credential refresher, the API's status-code mapper) can
// react without parsing error strings.
type ErrorClass string

const (
	ClassAuthentication ErrorClass = "authentication"
	ClassAuthorization  ErrorClass = "authorization"
	ClassRateLimit      ErrorClass = "rate_limit"
	ClassServerError    ErrorClass = "server_error"
	ClassTimeout        ErrorClass = "timeout"
	ClassNetwork        ErrorClass = "network"
	ClassUnknown        ErrorClass = "unknown"
)

// Error is a structured CRM call failure. It preserves the underlying cause
// for errors.Is/As while carrying the classification every caller needs.
type Error struct {
	Class      ErrorClass
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("crm: %s (%s, status %d): %v", e.Message, e.Class, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("crm: %s (%s, status %d)", e.Message, e.Class, e.StatusCode)
}

func (e *Error) Unwrap() error { return e.Cause }

// ClassOf extracts the ErrorClass from err, returning ClassUnknown if err is
// not (or does not wrap) a *Error.
func ClassOf(err error) ErrorClass {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Class
	}
	return ClassUnknown
}

// IsRetryable reports whether err represents a transient failure worth
// retrying on an idempotent read. Authentication failures are excluded here
// on purpose: Client.call already reacts to a 401 by force-refreshing the
// credential and replaying the call exactly once (see WithSessionID), so by
// the time IsRetryable sees a ClassAuthentication error the reactive path
// has already run and failed — looping withRetry over it again wouldn't
// help. Authorization (403) failures are a permission problem no refresh
// fixes, so they're excluded unconditionally.
func IsRetryable(err error) bool {
	switch ClassOf(err) {
	case ClassTimeout, ClassNetwork, ClassRateLimit, ClassServerError:
		return true
	default:
		return false
	}
}

// classify maps an HTTP status code (and, for transport failures, a nil
// status with cause set) to an ErrorClass.
func classify(statusCode int, cause error) ErrorClass {
	switch {
	case cause != nil && statusCode == 0:
		return ClassNetwork
	case statusCode == 401:
		return ClassAuthentication
	case statusCode == 403:
		return ClassAuthorization
	case statusCode == 429:
		return ClassRateLimit
	case statusCode >= 500:
		return ClassServerError
	default:
		return ClassUnknown
	}
}
