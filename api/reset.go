package api

import (
	"encoding/json"
	"net/http"
)

// handleResetConversation wipes every checkpoint for the session's thread,
// plus any pending pull-mode interrupt, so the next turn starts a fresh
// lineage per spec.
func (rt *Runtime) handleResetConversation(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeInputError(w, "session_id is required")
		return
	}

	threadID, ok := rt.threadFor(r.Context(), req.SessionID)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "deleted": map[string]bool{"checkpoints": false, "pendingInterrupt": false}})
		return
	}
	deleted := map[string]bool{"checkpoints": false, "pendingInterrupt": false}

	if err := rt.Checkpoints.Reset(r.Context(), threadID); err != nil {
		writeServerError(w, "reset failed: "+err.Error())
		return
	}
	deleted["checkpoints"] = true

	if rt.Pull != nil {
		if err := rt.Pull.Resolve(r.Context(), req.SessionID); err == nil {
			deleted["pendingInterrupt"] = true
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deleted": deleted})
}
