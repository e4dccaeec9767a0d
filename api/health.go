package api

import (
	"net/http"

	"goa.design/clue/health"

	"github.com/nexacrm/coordinator/crm"
)

// handleHealth reports whether every durable backend this Runtime depends on
// is reachable, using the same goa.design/clue/health.Pinger contract the
// teacher's Mongo clients implement. Stores that don't carry a live backing
// connection (an in-memory fallback used in tests) simply aren't Pingers and
// are skipped rather than failing the check.
func (rt *Runtime) handleHealth(w http.ResponseWriter, r *http.Request) {
	var pingers []health.Pinger
	if p, ok := rt.Checkpoints.(health.Pinger); ok {
		pingers = append(pingers, p)
	}
	if p, ok := rt.CredentialStore.(health.Pinger); ok {
		pingers = append(pingers, p)
	}
	if p, ok := rt.Sessions.(health.Pinger); ok {
		pingers = append(pingers, p)
	}
	if rt.Pull != nil {
		pingers = append(pingers, rt.Pull)
	}
	health.NewChecker(pingers...).Handler().ServeHTTP(w, r)
}

func (rt *Runtime) handleHealthMemory(w http.ResponseWriter, r *http.Request) {
	if rt.Memory == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "disabled"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"breakerState": rt.Memory.BreakerState(),
	})
}

// handleMetrics serves the Prometheus exposition format scraped by the
// deployment's collector. Metrics is disabled (telemetry.NewNoopMetrics) in
// tests and single-process runs that never build a registry, in which case
// this reports the feature is off rather than erroring.
func (rt *Runtime) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if rt.MetricsHandler == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "disabled"})
		return
	}
	rt.MetricsHandler.ServeHTTP(w, r)
}

// handleListOrgs passes through to the CRM's own organization listing so the
// client can populate an org picker before a session has selected one.
func (rt *Runtime) handleListOrgs(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeInputError(w, "session_id is required")
		return
	}
	cred, err := rt.Credentials.Get(r.Context(), sessionID)
	if err != nil {
		writeAuthError(w, "no valid credential for session")
		return
	}
	if rt.CRM == nil {
		writeServerError(w, "crm client is not configured")
		return
	}
	resp, err := rt.CRM.Read(r.Context(), "/organizations/list", crm.Envelope{Token: cred.Token}, nil)
	if err != nil {
		if crm.ClassOf(err) == crm.ClassAuthentication {
			writeAuthError(w, "crm rejected the session's credential")
			return
		}
		writeServerError(w, "crm: list organizations failed")
		return
	}
	orgs, _ := resp.Data["organizations"].([]any)
	writeJSON(w, http.StatusOK, map[string]any{"Organizations": orgs})
}

func (rt *Runtime) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeInputError(w, "session_id is required")
		return
	}
	if rt.Hub == nil {
		writeServerError(w, "push transport is not configured")
		return
	}
	rt.Hub.HandleWS(sessionID)(w, r)
}
