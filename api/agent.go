package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/nexacrm/coordinator/checkpoint"
	"github.com/nexacrm/coordinator/coordinator"
	"github.com/nexacrm/coordinator/domain"
	"github.com/nexacrm/coordinator/engine"
	"github.com/nexacrm/coordinator/interrupt"
)

const (
	minQueryLen = 1
	maxQueryLen = 2000
)

type executeRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
	OrgID     string `json:"org_id"`
	TimeZone  string `json:"time_zone"`
	ThreadID  string `json:"thread_id"`
}

type approveRequest struct {
	SessionID string                   `json:"session_id"`
	OrgID     string                   `json:"org_id"`
	ThreadID  string                   `json:"thread_id"`
	Approvals map[string]approvalBody `json:"approvals"`
	Decision  *approvalBody            `json:"decision"`
	ContactID string                   `json:"contact_id"`
}

type approvalBody struct {
	Approved  bool           `json:"approved"`
	Selection map[string]any `json:"selection"`
}

type resolveContactRequest struct {
	SessionID   string         `json:"session_id"`
	OrgID       string         `json:"org_id"`
	ThreadID    string         `json:"thread_id"`
	ContactID   string         `json:"contact_id"`
	ContactData map[string]any `json:"contact_data"`
}

type turnResponse struct {
	Status         string   `json:"status"`
	Response       string   `json:"response,omitempty"`
	ThreadID       string   `json:"thread_id,omitempty"`
	Previews       []string `json:"previews,omitempty"`
	Message        string   `json:"message,omitempty"`
	Domains        []string `json:"domains,omitempty"`
	RequiresReauth bool     `json:"requiresReauth,omitempty"`
}

func (rt *Runtime) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInputError(w, "malformed request body")
		return
	}
	if req.SessionID == "" || req.OrgID == "" {
		writeInputError(w, "session_id and org_id are required")
		return
	}
	if len(req.Query) < minQueryLen || len(req.Query) > maxQueryLen {
		writeInputError(w, "query must be between 1 and 2000 characters")
		return
	}
	if !rt.checkRateLimit(w, req.SessionID) {
		return
	}

	threadID := req.ThreadID
	if threadID == "" {
		threadID = rt.NewThreadID(req.SessionID, req.OrgID)
	}

	in := coordinator.TurnInput{
		SessionID: req.SessionID,
		OrgID:     req.OrgID,
		ThreadID:  threadID,
		Timezone:  req.TimeZone,
		Messages:  []domain.Message{{Role: "user", Text: req.Query}},
	}
	rt.runTurn(w, r.Context(), in)
}

func (rt *Runtime) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInputError(w, "malformed request body")
		return
	}
	if req.SessionID == "" || req.OrgID == "" || req.ThreadID == "" {
		writeInputError(w, "session_id, org_id, and thread_id are required")
		return
	}
	if !rt.checkRateLimit(w, req.SessionID) {
		return
	}

	decisions := interrupt.Decisions{}
	for actionID, body := range req.Approvals {
		decisions[actionID] = interrupt.ApprovalDecision{ActionID: actionID, Approved: body.Approved, Selection: body.Selection}
	}
	if req.Decision != nil {
		decisions["__v2"] = interrupt.ApprovalDecision{ActionID: "__v2", Approved: req.Decision.Approved, Selection: req.Decision.Selection}
	}
	if req.ContactID != "" {
		decisions["__contact"] = interrupt.ApprovalDecision{ActionID: "__contact", Approved: true, Selection: map[string]any{"contact_id": req.ContactID}}
	}
	if len(decisions) == 0 {
		writeInputError(w, "at least one decision is required")
		return
	}

	in := coordinator.TurnInput{
		SessionID: req.SessionID,
		OrgID:     req.OrgID,
		ThreadID:  req.ThreadID,
		Decisions: decisions,
	}
	rt.runTurn(w, r.Context(), in)
}

func (rt *Runtime) handleResolveContact(w http.ResponseWriter, r *http.Request) {
	var req resolveContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInputError(w, "malformed request body")
		return
	}
	if req.SessionID == "" || req.OrgID == "" || req.ThreadID == "" {
		writeInputError(w, "session_id, org_id, and thread_id are required")
		return
	}
	if req.ContactID == "" && req.ContactData == nil {
		writeInputError(w, "contact_id or contact_data is required")
		return
	}
	if !rt.checkRateLimit(w, req.SessionID) {
		return
	}

	selection := map[string]any{}
	if req.ContactID != "" {
		selection["contact_id"] = req.ContactID
	}
	if req.ContactData != nil {
		selection["contact_data"] = req.ContactData
	}

	in := coordinator.TurnInput{
		SessionID: req.SessionID,
		OrgID:     req.OrgID,
		ThreadID:  req.ThreadID,
		Decisions: interrupt.Decisions{
			"__contact_resolution": {ActionID: "__contact_resolution", Approved: true, Selection: selection},
		},
	}
	rt.runTurn(w, r.Context(), in)
}

// executeTurn starts one workflow execution for in and returns its
// outcome. A resume against a thread with no checkpoint is reported as
// checkpoint.ErrNotFound rather than letting the Coordinator fail the
// turn outright; callers translate that into the 422 requiresRestart
// response.
func (rt *Runtime) executeTurn(ctx context.Context, in coordinator.TurnInput) (coordinator.TurnOutput, error) {
	rt.rememberThread(ctx, in.SessionID, in.ThreadID)
	if len(in.Decisions) > 0 {
		if _, err := rt.Checkpoints.GetTuple(ctx, in.ThreadID, ""); errors.Is(err, checkpoint.ErrNotFound) {
			return coordinator.TurnOutput{}, err
		}
	}

	handle, err := rt.Engine.StartWorkflow(ctx, engine.WorkflowStartRequest{
		ID:        uuid.NewString(),
		Workflow:  coordinator.WorkflowName,
		TaskQueue: rt.TaskQueue,
		Input:     in,
	})
	if err != nil {
		return coordinator.TurnOutput{}, err
	}

	var out coordinator.TurnOutput
	if err := handle.Wait(ctx, &out); err != nil {
		return coordinator.TurnOutput{}, err
	}

	if out.Interrupt != nil {
		if rt.Pull != nil {
			_ = rt.Pull.Put(ctx, in.SessionID, out.Interrupt)
		}
		if rt.Hub != nil {
			rt.Hub.Deliver(in.SessionID, out.Interrupt)
		}
	}
	return out, nil
}

// runTurn drives executeTurn and serializes its outcome per the /execute
// and /approve response shapes.
func (rt *Runtime) runTurn(w http.ResponseWriter, ctx context.Context, in coordinator.TurnInput) {
	out, err := rt.executeTurn(ctx, in)
	if errors.Is(err, checkpoint.ErrNotFound) {
		writeSessionUnrecoverable(w, "no checkpoint found for thread "+in.ThreadID)
		return
	}
	if err != nil {
		writeServerError(w, "turn failed: "+err.Error())
		return
	}
	if out.RequiresReauth {
		writeAuthError(w, "credential refresh failed, reauthorization required")
		return
	}

	if out.Interrupt != nil {
		writeJSON(w, http.StatusAccepted, turnResponse{
			Status:   "PENDING_APPROVAL",
			ThreadID: in.ThreadID,
			Previews: out.Interrupt.Previews,
			Message:  out.Interrupt.Message,
		})
		return
	}

	writeJSON(w, http.StatusOK, turnResponse{
		Status:   "COMPLETED",
		Response: out.FinalResponse,
		ThreadID: in.ThreadID,
		Domains:  out.Domains,
	})
}
