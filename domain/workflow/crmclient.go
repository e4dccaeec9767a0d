package workflow

import (
	"context"

	"github.com/nexacrm/coordinator/crm"
)

// CRMClient implements Client against the CRM's workflow endpoints.
type CRMClient struct {
	Client *crm.Client
}

func (c *CRMClient) CreateShell(ctx context.Context, token, orgID, name string) (string, error) {
	resp, err := c.Client.Mutate(ctx, "/workflows/create", crm.Envelope{Token: token, OrganizationID: orgID}, map[string]any{
		"name": name,
	})
	if err != nil {
		return "", err
	}
	id, _ := resp.Data["id"].(string)
	return id, nil
}

func (c *CRMClient) AppendStep(ctx context.Context, token, orgID, workflowID string, step Step) error {
	_, err := c.Client.Mutate(ctx, "/workflows/steps/append", crm.Envelope{Token: token, OrganizationID: orgID}, map[string]any{
		"workflowId":   workflowID,
		"sequence":     step.Sequence,
		"subject":      step.Subject,
		"activityType": string(step.ActivityType),
		"dayOffset":    step.DayOffset,
		"assigneeType": string(step.AssigneeType),
		"rollOver":     step.RollOver,
		"allDay":       step.AllDay,
	})
	return err
}
