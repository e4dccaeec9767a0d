package crm

import "context"

type sessionIDKey struct{}

// WithSessionID attaches the coordinator session id that owns this call to
// ctx. Client.call reads it back to drive the reactive 401 refresh-and-retry
// path, since Envelope itself only carries the token and organization id the
// CRM expects on the wire.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, sessionID)
}

func sessionIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(sessionIDKey{}).(string)
	return v
}
