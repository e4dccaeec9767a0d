package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexacrm/coordinator/dateparse"
	"github.com/nexacrm/coordinator/domain"
)

type fakeClient struct {
	tasks         []Task
	createdID     string
	completedID   string
	deletedID     string
	linkedContact string
}

func (f *fakeClient) FetchTasks(context.Context, string, string, dateparse.Window) ([]Task, error) {
	return f.tasks, nil
}

func (f *fakeClient) CreateTask(context.Context, string, string, Task) (string, error) {
	return f.createdID, nil
}

func (f *fakeClient) UpdateTask(context.Context, string, string, string, map[string]any) error {
	return nil
}

func (f *fakeClient) CompleteTask(_ context.Context, _, _, taskID string) error {
	f.completedID = taskID
	return nil
}

func (f *fakeClient) DeleteTask(_ context.Context, _, _, taskID string) error {
	f.deletedID = taskID
	return nil
}

func (f *fakeClient) LinkContact(_ context.Context, _, _, _, contactID string) error {
	f.linkedContact = contactID
	return nil
}

func baseInput(text string) domain.Input {
	return domain.Input{
		Messages:  []domain.Message{{Role: "user", Text: text}},
		OrgID:     "org1",
		SessionID: "sess1",
		Timezone:  "UTC",
		GetToken:  func(context.Context) (string, error) { return "tok", nil },
	}
}

func TestTaskFetchesForDefaultWindowWhenNoneSpecified(t *testing.T) {
	client := &fakeClient{tasks: []Task{{ID: "t1", Subject: "Follow up"}}}
	sg := Subgraph(client, "UTC")
	result, err := sg(context.Background(), baseInput("what are my tasks"))
	require.NoError(t, err)
	require.False(t, result.RequiresApproval)
	require.Contains(t, result.Response, "1 tasks")
}

func TestTaskProposesCreateWithFullDayDue(t *testing.T) {
	client := &fakeClient{}
	sg := Subgraph(client, "UTC")
	result, err := sg(context.Background(), baseInput("add a task to follow up tomorrow"))
	require.NoError(t, err)
	require.True(t, result.RequiresApproval)
	require.Equal(t, "create_task", result.ApprovalRequest.Action)
}

func TestTaskProposesCompleteMutation(t *testing.T) {
	client := &fakeClient{}
	sg := Subgraph(client, "UTC")
	result, err := sg(context.Background(), baseInput("mark the follow up task done"))
	require.NoError(t, err)
	require.True(t, result.RequiresApproval)
	require.Equal(t, "complete_task", result.ApprovalRequest.Action)
}

func TestTaskAppliesCreateDecisionAndLinksContact(t *testing.T) {
	client := &fakeClient{createdID: "t9"}
	sg := Subgraph(client, "UTC")
	in := baseInput("")
	in.ApprovalDecision = &domain.ApprovalDecision{
		ActionID: "a1",
		Approved: true,
		Selection: map[string]any{
			"subject":  "Follow up",
			"due":      time.Now(),
			"contacts": []any{"c1"},
		},
	}
	result, err := sg(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "t9", result.Data["task_id"])
	require.Equal(t, "c1", client.linkedContact)
}

func TestTaskAppliesCompleteDecision(t *testing.T) {
	client := &fakeClient{}
	sg := Subgraph(client, "UTC")
	in := baseInput("")
	in.ApprovalDecision = &domain.ApprovalDecision{
		ActionID: "a1",
		Approved: true,
		Selection: map[string]any{
			"action":  "complete_task",
			"task_id": "t5",
		},
	}
	result, err := sg(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "t5", client.completedID)
	require.Contains(t, result.Response, "complete")
}
