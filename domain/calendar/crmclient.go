package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/nexacrm/coordinator/crm"
	"github.com/nexacrm/coordinator/dateparse"
)

// CRMClient implements Client against the CRM's activity endpoints.
type CRMClient struct {
	Client *crm.Client
}

func (c *CRMClient) FetchActivities(ctx context.Context, token, orgID string, window dateparse.Window) ([]Activity, error) {
	resp, err := c.Client.Read(ctx, "/activities/search", crm.Envelope{Token: token, OrganizationID: orgID}, map[string]any{
		"start": window.Start.Format(time.RFC3339),
		"end":   window.End.Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	raw, _ := resp.Data["activities"].([]any)
	out := make([]Activity, 0, len(raw))
	for _, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		subject, _ := m["subject"].(string)
		start, _ := time.Parse(time.RFC3339, fmt.Sprint(m["start"]))
		end, _ := time.Parse(time.RFC3339, fmt.Sprint(m["end"]))
		out = append(out, Activity{ID: id, Subject: subject, Start: start, End: end})
	}
	return out, nil
}

func (c *CRMClient) CreateAppointment(ctx context.Context, token, orgID string, appt Appointment) (string, error) {
	resp, err := c.Client.Mutate(ctx, "/appointments/create", crm.Envelope{Token: token, OrganizationID: orgID}, map[string]any{
		"subject": appt.Subject,
		"start":   appt.Start.Format(time.RFC3339),
		"end":     appt.End.Format(time.RFC3339),
	})
	if err != nil {
		return "", err
	}
	id, _ := resp.Data["id"].(string)
	return id, nil
}

func (c *CRMClient) LinkAttendee(ctx context.Context, token, orgID, appointmentID, targetID, targetKind string) error {
	_, err := c.Client.Mutate(ctx, "/links/create", crm.Envelope{Token: token, OrganizationID: orgID}, map[string]any{
		"sourceId":   appointmentID,
		"sourceKind": "appointment",
		"targetId":   targetID,
		"targetKind": targetKind,
	})
	return err
}
