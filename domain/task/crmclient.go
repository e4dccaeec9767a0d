package task

import (
	"context"
	"fmt"
	"time"

	"github.com/nexacrm/coordinator/crm"
	"github.com/nexacrm/coordinator/dateparse"
)

// CRMClient implements Client against the CRM's task endpoints.
type CRMClient struct {
	Client *crm.Client
}

func (c *CRMClient) FetchTasks(ctx context.Context, token, orgID string, window dateparse.Window) ([]Task, error) {
	resp, err := c.Client.Read(ctx, "/tasks/search", crm.Envelope{Token: token, OrganizationID: orgID}, map[string]any{
		"start": window.Start.Format(time.RFC3339),
		"end":   window.End.Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	raw, _ := resp.Data["tasks"].([]any)
	out := make([]Task, 0, len(raw))
	for _, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		subject, _ := m["subject"].(string)
		due, _ := time.Parse(time.RFC3339, fmt.Sprint(m["due"]))
		done, _ := m["done"].(bool)
		out = append(out, Task{ID: id, Subject: subject, Due: due, Done: done})
	}
	return out, nil
}

func (c *CRMClient) CreateTask(ctx context.Context, token, orgID string, t Task) (string, error) {
	resp, err := c.Client.Mutate(ctx, "/tasks/create", crm.Envelope{Token: token, OrganizationID: orgID}, map[string]any{
		"subject": t.Subject,
		"due":     t.Due.Format(time.RFC3339),
	})
	if err != nil {
		return "", err
	}
	id, _ := resp.Data["id"].(string)
	return id, nil
}

func (c *CRMClient) UpdateTask(ctx context.Context, token, orgID, taskID string, fields map[string]any) error {
	body := map[string]any{"id": taskID}
	for k, v := range fields {
		body[k] = v
	}
	_, err := c.Client.Mutate(ctx, "/tasks/update", crm.Envelope{Token: token, OrganizationID: orgID}, body)
	return err
}

func (c *CRMClient) CompleteTask(ctx context.Context, token, orgID, taskID string) error {
	_, err := c.Client.Mutate(ctx, "/tasks/complete", crm.Envelope{Token: token, OrganizationID: orgID}, map[string]any{
		"id": taskID,
	})
	return err
}

func (c *CRMClient) DeleteTask(ctx context.Context, token, orgID, taskID string) error {
	_, err := c.Client.Mutate(ctx, "/tasks/delete", crm.Envelope{Token: token, OrganizationID: orgID}, map[string]any{
		"id": taskID,
	})
	return err
}

func (c *CRMClient) LinkContact(ctx context.Context, token, orgID, taskID, contactID string) error {
	_, err := c.Client.Mutate(ctx, "/links/create", crm.Envelope{Token: token, OrganizationID: orgID}, map[string]any{
		"sourceId":   taskID,
		"sourceKind": "task",
		"targetId":   contactID,
		"targetKind": "contact",
	})
	return err
}
