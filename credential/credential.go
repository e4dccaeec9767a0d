// Package credential manages the lifecycle of the opaque CRM access token a
// session authenticates with: storage, expiry tracking, and refresh.
package credential

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no credential exists for a session.
var ErrNotFound = errors.New("credential: not found")

// ErrRefreshFailed is returned when a refresh attempt is rejected by the
// CRM's OAuth endpoint (distinct from a transport error, which callers
// should retry).
var ErrRefreshFailed = errors.New("credential: refresh rejected")

// Credential is the token a session's CRM calls authenticate with, plus the
// bookkeeping needed to refresh it before it expires.
type Credential struct {
	SessionID    string
	UserID       string
	Token        string
	RefreshToken string
	ExpiresAt    time.Time
	UpdatedAt    time.Time
}

// ExpiresWithin reports whether the credential expires within d of now.
// The refresher proactively refreshes credentials within five minutes of
// expiry so a mutation mid-flight never hits a hard 401.
func (c Credential) ExpiresWithin(now time.Time, d time.Duration) bool {
	return !c.ExpiresAt.After(now.Add(d))
}

// Store persists credentials, keyed by session id.
type Store interface {
	Get(ctx context.Context, sessionID string) (Credential, error)
	Put(ctx context.Context, cred Credential) error
	Delete(ctx context.Context, sessionID string) error
}

// Exchanger performs the OAuth calls that mint and refresh credentials
// against the CRM's authorization server. Implementations wrap the actual
// HTTP calls to BASE_URL's /oauth/token endpoint.
type Exchanger interface {
	// ExchangeCode trades an authorization code from the OAuth callback for
	// a fresh Credential.
	ExchangeCode(ctx context.Context, userID, code, redirectURI string) (Credential, error)
	// Refresh trades a refresh token for a new access token, preserving
	// UserID and SessionID from the prior credential.
	Refresh(ctx context.Context, cred Credential) (Credential, error)
}
