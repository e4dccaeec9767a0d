package interrupt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConsolidateSingleContactDisambiguation(t *testing.T) {
	i := Consolidate("sess1", "sess1:org1", []ApprovalRequest{
		{ActionID: "a1", Domain: "contact", Action: "contact_disambiguation", Preview: "Which Jane?"},
	}, time.Now())
	require.Equal(t, TypeContactDisambiguate, i.Type)
	require.Len(t, i.Previews, 1)
}

func TestConsolidateMultipleRequestsUsesApprovalRequired(t *testing.T) {
	i := Consolidate("sess1", "sess1:org1", []ApprovalRequest{
		{ActionID: "a1", Domain: "calendar", Action: "create_appointment", Preview: "Create appt"},
		{ActionID: "a2", Domain: "task", Action: "create_task", Preview: "Create task"},
	}, time.Now())
	require.Equal(t, TypeApprovalRequired, i.Type)
	require.ElementsMatch(t, []string{"calendar", "task"}, i.Domains)
}

func TestConsolidateEmptyReturnsNil(t *testing.T) {
	require.Nil(t, Consolidate("sess1", "t1", nil, time.Now()))
}

func TestAllDecidedRequiresEveryActionID(t *testing.T) {
	i := Consolidate("sess1", "t1", []ApprovalRequest{
		{ActionID: "a1", Domain: "task", Action: "create_task", Preview: "x"},
		{ActionID: "a2", Domain: "calendar", Action: "create_appointment", Preview: "y"},
	}, time.Now())
	decisions := Decisions{"a1": {ActionID: "a1", Approved: true}}
	require.False(t, i.AllDecided(decisions))
	decisions["a2"] = ApprovalDecision{ActionID: "a2", Approved: false}
	require.True(t, i.AllDecided(decisions))
}

func TestSuspendAndCompleteOutcomes(t *testing.T) {
	c := Complete(map[string]any{"x": 1})
	require.False(t, c.IsSuspend())
	s := Suspend(&Interrupt{SessionID: "s1"})
	require.True(t, s.IsSuspend())
}
