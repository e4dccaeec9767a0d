package coordinator

import (
	"github.com/nexacrm/coordinator/domain"
	"github.com/nexacrm/coordinator/interrupt"
	"github.com/nexacrm/coordinator/memory"
	"github.com/nexacrm/coordinator/planner"
)

// state is the Coordinator's own graph state, owned exclusively by the
// Coordinator. Domain subgraphs never see it directly; execute_subgraphs
// projects the fields each subgraph needs into a domain.Input.
type state struct {
	SessionID string
	OrgID     string
	UserID    string
	ThreadID  string
	Timezone  string

	Messages      []domain.Message
	MemoryContext memory.Context
	Entities      []domain.Entity

	Plan *planner.Plan

	// Results accumulates one domain.Result per domain executed this turn,
	// across both the parallel batch and the sequential steps.
	Results map[domain.Name]domain.Result

	// Pending is non-nil once any result in Results carries
	// RequiresApproval; it is cleared by the resume that applies decisions
	// to it. A request the resume carries no decision for is dropped
	// without its domain being re-run.
	Pending *pendingApproval

	Error string

	FinalResponse string
}

// pendingApproval mirrors the spec's `state.pendingApproval` block: the
// domains awaiting a decision, the results gathered so far (so a resume
// does not re-run already-completed domains), and the consolidated
// requests themselves.
type pendingApproval struct {
	Domains   []domain.Name
	Results   map[domain.Name]domain.Result
	Requests  []interrupt.ApprovalRequest
	Processed bool
}

func newState(in TurnInput) *state {
	return &state{
		SessionID: in.SessionID,
		OrgID:     in.OrgID,
		UserID:    in.UserID,
		ThreadID:  in.ThreadID,
		Timezone:  in.Timezone,
		Messages:  in.Messages,
		Results:   map[domain.Name]domain.Result{},
	}
}
