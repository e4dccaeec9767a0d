package crm

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestIsRetryableProperty exercises IsRetryable/ClassOf across every status
// code class the CRM can return, mirroring how the teacher's a2a/retry
// package property-tests its own IsRetryable against the full HTTP status
// range rather than a handful of fixed cases.
func TestIsRetryableProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("401 classifies as authentication and is never retryable", prop.ForAll(
		func(msg string) bool {
			err := &Error{Class: classify(401, nil), StatusCode: 401, Message: msg}
			return ClassOf(err) == ClassAuthentication && !IsRetryable(err)
		},
		gen.AlphaString(),
	))

	properties.Property("403 classifies as authorization and is never retryable", prop.ForAll(
		func(msg string) bool {
			err := &Error{Class: classify(403, nil), StatusCode: 403, Message: msg}
			return ClassOf(err) == ClassAuthorization && !IsRetryable(err)
		},
		gen.AlphaString(),
	))

	properties.Property("429 is always retryable", prop.ForAll(
		func(msg string) bool {
			err := &Error{Class: classify(429, nil), StatusCode: 429, Message: msg}
			return IsRetryable(err)
		},
		gen.AlphaString(),
	))

	properties.Property("5xx is always retryable", prop.ForAll(
		func(status int, msg string) bool {
			err := &Error{Class: classify(status, nil), StatusCode: status, Message: msg}
			return IsRetryable(err)
		},
		gen.IntRange(500, 599),
		gen.AlphaString(),
	))

	properties.Property("successful status codes never produce a retryable error", prop.ForAll(
		func(status int, msg string) bool {
			err := &Error{Class: classify(status, nil), StatusCode: status, Message: msg}
			return !IsRetryable(err)
		},
		gen.IntRange(200, 299),
		gen.AlphaString(),
	))

	properties.Property("nil error is never retryable", prop.ForAll(
		func(_ int) bool {
			return !IsRetryable(nil)
		},
		gen.Int(),
	))

	properties.TestingRun(t)
}
