package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nexacrm/coordinator/checkpoint"
	"github.com/nexacrm/coordinator/coordinator"
	"github.com/nexacrm/coordinator/interrupt"
	"github.com/nexacrm/coordinator/transport"
)

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

type interruptApproveRequest struct {
	SessionID    string         `json:"session_id"`
	ApprovalData map[string]any `json:"approval_data"`
}

func (rt *Runtime) handleInterruptPoll(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeInputError(w, "session_id is required")
		return
	}
	if rt.Pull == nil {
		writeJSON(w, http.StatusOK, map[string]any{"hasInterrupt": false})
		return
	}
	pending, err := rt.Pull.Poll(r.Context(), req.SessionID)
	if errors.Is(err, transport.ErrNotPending) {
		writeJSON(w, http.StatusOK, map[string]any{"hasInterrupt": false})
		return
	}
	if err != nil {
		writeServerError(w, "poll failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hasInterrupt": true, "interrupt": pending})
}

func (rt *Runtime) handleInterruptAcknowledge(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeInputError(w, "session_id is required")
		return
	}
	if rt.Pull == nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}
	if err := rt.Pull.Acknowledge(r.Context(), req.SessionID); err != nil && !errors.Is(err, transport.ErrNotPending) {
		writeServerError(w, "acknowledge failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleInterruptApprove is the pull-mode decision endpoint. Unlike
// /api/agent/approve, the client here only knows its session id and a
// loosely-typed approval payload; the pending interrupt (loaded from the
// pull store) supplies the thread id and action ids to resolve.
func (rt *Runtime) handleInterruptApprove(w http.ResponseWriter, r *http.Request) {
	var req interruptApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeInputError(w, "session_id is required")
		return
	}
	if rt.Pull == nil {
		writeInputError(w, "pull-mode interrupts are not configured")
		return
	}
	pending, err := rt.Pull.Poll(r.Context(), req.SessionID)
	if errors.Is(err, transport.ErrNotPending) {
		writeInputError(w, "no pending interrupt for session")
		return
	}
	if err != nil {
		writeServerError(w, "approve failed: "+err.Error())
		return
	}

	decisions := interrupt.Decisions{}
	approved, _ := req.ApprovalData["approved"].(bool)
	selection, _ := req.ApprovalData["selection"].(map[string]any)
	for _, request := range pending.Requests {
		decisions[request.ActionID] = interrupt.ApprovalDecision{
			ActionID:  request.ActionID,
			Approved:  approved,
			Selection: selection,
		}
	}

	in := coordinator.TurnInput{
		SessionID: req.SessionID,
		ThreadID:  pending.ThreadID,
		Decisions: decisions,
	}

	out, err := rt.executeTurn(r.Context(), in)
	if errors.Is(err, checkpoint.ErrNotFound) {
		writeSessionUnrecoverable(w, "no checkpoint found for thread "+in.ThreadID)
		return
	}
	if err != nil {
		writeServerError(w, "approve failed: "+err.Error())
		return
	}
	if out.RequiresReauth {
		writeAuthError(w, "credential refresh failed, reauthorization required")
		return
	}
	if out.Interrupt == nil {
		_ = rt.Pull.Resolve(r.Context(), req.SessionID)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"result":  out.FinalResponse,
	})
}
