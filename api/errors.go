package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// writeJSON writes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeInputError reports a 400: missing session/org, or a query outside
// the accepted length range. Never retried by a well-behaved client.
func writeInputError(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error": msg,
	})
}

// writeAuthError reports a 401 with requiresReauth: no token, an expired
// token whose refresh failed, or two consecutive 401s from the CRM.
func writeAuthError(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnauthorized, map[string]any{
		"error":          msg,
		"requiresReauth": true,
	})
}

// writeRateLimited reports a 429 with the client's suggested backoff.
func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	w.Header().Set("Retry-After", formatRetryAfterSeconds(retryAfter))
	writeJSON(w, http.StatusTooManyRequests, map[string]any{
		"error":      "rate limit exceeded",
		"retryAfter": retryAfter.Seconds(),
	})
}

// writeSessionUnrecoverable reports a 422: a resume arrived for a thread
// with no checkpoint, so the Coordinator has nothing to resume from and
// the client must restart the conversation.
func writeSessionUnrecoverable(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"error":           msg,
		"requiresRestart": true,
	})
}

// writeServerError reports an unexpected server-side failure.
func writeServerError(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"error": msg,
	})
}

func formatRetryAfterSeconds(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
