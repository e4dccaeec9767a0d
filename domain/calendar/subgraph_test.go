package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexacrm/coordinator/dateparse"
	"github.com/nexacrm/coordinator/domain"
)

type fakeClient struct {
	activities    []Activity
	fetchErr      error
	createdID     string
	createErr     error
	linkedTargets []string
}

func (f *fakeClient) FetchActivities(context.Context, string, string, dateparse.Window) ([]Activity, error) {
	return f.activities, f.fetchErr
}

func (f *fakeClient) CreateAppointment(context.Context, string, string, Appointment) (string, error) {
	return f.createdID, f.createErr
}

func (f *fakeClient) LinkAttendee(_ context.Context, _, _, _, targetID, _ string) error {
	f.linkedTargets = append(f.linkedTargets, targetID)
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

func TestCalendarFetchesActivitiesForResolvedWindow(t *testing.T) {
	client := &fakeClient{activities: []Activity{{ID: "a1", Subject: "Standup"}}}
	sg := Subgraph(client, "UTC")
	result, err := sg(context.Background(), baseInput("what's on my calendar tomorrow"))
	require.NoError(t, err)
	require.False(t, result.RequiresApproval)
	require.Contains(t, result.Response, "1 activities")
}

func TestCalendarProposesAppointmentWhenCreationRequested(t *testing.T) {
	client := &fakeClient{}
	sg := Subgraph(client, "UTC")
	result, err := sg(context.Background(), baseInput("schedule a meeting with Jane tomorrow"))
	require.NoError(t, err)
	require.True(t, result.RequiresApproval)
	require.Equal(t, "create_appointment", result.ApprovalRequest.Action)
}

func TestCalendarAppliesApprovedDecisionAndLinksAttendees(t *testing.T) {
	client := &fakeClient{createdID: "appt1"}
	sg := Subgraph(client, "UTC")
	in := baseInput("")
	in.ApprovalDecision = &domain.ApprovalDecision{
		ActionID: "a1",
		Approved: true,
		Selection: map[string]any{
			"subject": "Call with Jane",
			"start":   time.Now(),
			"end":     time.Now().Add(30 * time.Minute),
			"attendees": []any{
				map[string]any{"id": "c1", "kind": "contact"},
			},
		},
	}
	result, err := sg(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "appt1", result.Data["appointment_id"])
	require.Equal(t, []string{"c1"}, client.linkedTargets)
}

func TestCalendarDeclinedDecisionSkipsCreation(t *testing.T) {
	client := &fakeClient{}
	sg := Subgraph(client, "UTC")
	in := baseInput("")
	in.ApprovalDecision = &domain.ApprovalDecision{ActionID: "a1", Approved: false}
	result, err := sg(context.Background(), in)
	require.NoError(t, err)
	require.Contains(t, result.Response, "declined")
}
