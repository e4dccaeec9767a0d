package api

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// stateEntry binds an OAuth state token back to the session that started
// the flow, so /auth/callback knows whose credential to store.
type stateEntry struct {
	sessionID string
	createdAt time.Time
}

var (
	stateMu    sync.Mutex
	oauthState = map[string]stateEntry{}
)

const stateTTL = 10 * time.Minute

func putState(state, sessionID string) {
	stateMu.Lock()
	defer stateMu.Unlock()
	oauthState[state] = stateEntry{sessionID: sessionID, createdAt: time.Now()}
	for s, e := range oauthState {
		if time.Since(e.createdAt) > stateTTL {
			delete(oauthState, s)
		}
	}
}

func takeState(state string) (string, bool) {
	stateMu.Lock()
	defer stateMu.Unlock()
	e, ok := oauthState[state]
	if ok {
		delete(oauthState, state)
	}
	return e.sessionID, ok
}

// handleAuthStart begins the OAuth flow: mint a state token bound to the
// session and redirect to the provider's authorize endpoint.
func (rt *Runtime) handleAuthStart(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeInputError(w, "session_id is required")
		return
	}
	state := newStateToken()
	putState(state, sessionID)
	http.Redirect(w, r, rt.OAuthAuthorizeURL(state), http.StatusFound)
}

// handleAuthCallback exchanges the authorization code for a credential in
// the background and redirects the browser back to the CRM immediately;
// the client polls /auth/status to learn when the exchange completes.
func (rt *Runtime) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	sessionID, ok := takeState(state)
	if !ok {
		writeInputError(w, "unknown or expired state")
		return
	}
	if code == "" {
		writeInputError(w, "code is required")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		cred, err := rt.Exchanger.ExchangeCode(ctx, sessionID, code, "")
		if err != nil {
			rt.logWarn(ctx, "[AUTH:callback] code exchange failed", "session_id", sessionID, "error", err)
			return
		}
		cred.SessionID = sessionID
		if err := rt.CredentialStore.Put(ctx, cred); err != nil {
			rt.logWarn(ctx, "[AUTH:callback] storing credential failed", "session_id", sessionID, "error", err)
		}
	}()

	http.Redirect(w, r, rt.crmRedirectURL(), http.StatusFound)
}

// handleAuthStatus reports whether the session currently holds a usable
// credential, refreshing it proactively if it is near expiry.
func (rt *Runtime) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeInputError(w, "session_id is required")
		return
	}
	_, err := rt.Credentials.Get(r.Context(), sessionID)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "requiresReauth": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (rt *Runtime) crmRedirectURL() string {
	return "/"
}

func (rt *Runtime) logWarn(ctx context.Context, msg string, kv ...any) {
	if rt.Logger == nil {
		return
	}
	rt.Logger.Warn(ctx, msg, kv...)
}
