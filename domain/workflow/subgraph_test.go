package workflow

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexacrm/coordinator/domain"
)

type fakeClient struct {
	shellID    string
	failOn     map[int]bool
	appendedTo []int
}

func (f *fakeClient) CreateShell(context.Context, string, string, string) (string, error) {
	return f.shellID, nil
}

func (f *fakeClient) AppendStep(_ context.Context, _, _, _ string, step Step) error {
	f.appendedTo = append(f.appendedTo, step.Sequence)
	if f.failOn[step.Sequence] {
		return errors.New("crm: append failed")
	}
	return nil
}

func baseInput(text string) domain.Input {
	return domain.Input{
		Messages:  []domain.Message{{Role: "user", Text: text}},
		OrgID:     "org1",
		SessionID: "sess1",
		GetToken:  func(context.Context) (string, error) { return "tok", nil },
	}
}

func TestWorkflowProposesStepsFromDescription(t *testing.T) {
	sg := Subgraph(NewHeuristicParser(), &fakeClient{})
	result, err := sg(context.Background(), baseInput("1. Call the client\n2. Send the contract"))
	require.NoError(t, err)
	require.True(t, result.RequiresApproval)
	steps, _ := result.ApprovalRequest.Data["steps"].([]map[string]any)
	require.Len(t, steps, 2)
}

func TestWorkflowAppliesDecisionWithPartialFailure(t *testing.T) {
	client := &fakeClient{shellID: "w1", failOn: map[int]bool{2: true}}
	sg := Subgraph(NewHeuristicParser(), client)
	in := baseInput("")
	in.ApprovalDecision = &domain.ApprovalDecision{
		ActionID: "a1",
		Approved: true,
		Selection: map[string]any{
			"name": "Onboarding",
			"steps": []any{
				map[string]any{"sequence": 1, "subject": "Call client", "activityType": "Appointment", "dayOffset": 0, "assigneeType": "owner", "allDay": true},
				map[string]any{"sequence": 2, "subject": "Send contract", "activityType": "Task", "dayOffset": 1, "assigneeType": "owner", "allDay": true},
			},
		},
	}
	result, err := sg(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, 1, result.Data["stepsAdded"])
	require.Equal(t, 2, result.Data["totalSteps"])
	require.Equal(t, "w1", result.Data["workflow_id"])
}

func TestWorkflowDeclinedSkipsCreation(t *testing.T) {
	client := &fakeClient{}
	sg := Subgraph(NewHeuristicParser(), client)
	in := baseInput("")
	in.ApprovalDecision = &domain.ApprovalDecision{ActionID: "a1", Approved: false}
	result, err := sg(context.Background(), in)
	require.NoError(t, err)
	require.Contains(t, result.Response, "declined")
	require.Nil(t, client.appendedTo)
}

func TestWorkflowEmptyDescriptionReturnsPlainResponse(t *testing.T) {
	sg := Subgraph(NewHeuristicParser(), &fakeClient{})
	result, err := sg(context.Background(), baseInput("   "))
	require.NoError(t, err)
	require.False(t, result.RequiresApproval)
}

func TestWorkflowRejectsDescriptionOverStepCap(t *testing.T) {
	var description string
	for i := 1; i <= MaxSteps+1; i++ {
		description += strconv.Itoa(i) + ". step\n"
	}
	sg := Subgraph(NewHeuristicParser(), &fakeClient{})
	result, err := sg(context.Background(), baseInput(description))
	require.NoError(t, err)
	require.False(t, result.RequiresApproval)
	require.Contains(t, result.Error, "exceeds the 22-step cap")
}

func TestWorkflowRejectsApprovedSelectionOverStepCap(t *testing.T) {
	client := &fakeClient{shellID: "w1"}
	sg := Subgraph(NewHeuristicParser(), client)
	var rawSteps []any
	for i := 1; i <= MaxSteps+1; i++ {
		rawSteps = append(rawSteps, map[string]any{"sequence": i, "subject": "step", "activityType": "Task", "dayOffset": i - 1, "assigneeType": "owner", "allDay": true})
	}
	in := baseInput("")
	in.ApprovalDecision = &domain.ApprovalDecision{
		ActionID: "a1",
		Approved: true,
		Selection: map[string]any{
			"name":  "Too Big",
			"steps": rawSteps,
		},
	}
	result, err := sg(context.Background(), in)
	require.NoError(t, err)
	require.Contains(t, result.Error, "exceeds the 22-step cap")
	require.Nil(t, client.appendedTo)
}
