// Package calendar implements the calendar domain subgraph: fetching
// activities for a date window and proposing (never silently creating)
// appointments and attendee links.
package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nexacrm/coordinator/dateparse"
	"github.com/nexacrm/coordinator/domain"
)

// Client is the subset of CRM calendar operations this subgraph calls.
type Client interface {
	FetchActivities(ctx context.Context, token, orgID string, window dateparse.Window) ([]Activity, error)
	CreateAppointment(ctx context.Context, token, orgID string, appt Appointment) (string, error)
	LinkAttendee(ctx context.Context, token, orgID, appointmentID, targetID, targetKind string) error
}

// Activity is one fetched calendar item.
type Activity struct {
	ID      string
	Subject string
	Start   time.Time
	End     time.Time
}

// Appointment is a proposed calendar mutation.
type Appointment struct {
	Subject   string
	Start     time.Time
	End       time.Time
	Attendees []Attendee
}

// Attendee links an appointment to a contact, company, or user record.
type Attendee struct {
	TargetID   string
	TargetKind string // "contact", "company", or "user"
}

// Subgraph builds the calendar domain's Subgraph function.
func Subgraph(client Client, defaultTimezone string) domain.Subgraph {
	return func(ctx context.Context, in domain.Input) (domain.Result, error) {
		if in.ApprovalDecision != nil {
			return applyDecision(ctx, client, in)
		}

		tz := in.Timezone
		if tz == "" {
			tz = defaultTimezone
		}

		query := latestUserText(in.Messages)
		window, found := dateparse.Parse(query, tz, time.Now())
		if found {
			window = dateparse.Widen(window)
			token, err := in.GetToken(ctx)
			if err != nil {
				return domain.Result{Error: fmt.Sprintf("calendar: %v", err)}, nil
			}
			activities, err := client.FetchActivities(ctx, token, in.OrgID, window)
			if err != nil {
				return domain.Result{Error: fmt.Sprintf("calendar: fetch failed: %v", err)}, nil
			}
			if wantsCreation(query) {
				return proposeAppointment(in, query, window)
			}
			return domain.Result{
				Response: summarizeActivities(activities),
				Data:     map[string]any{"activities": activities},
			}, nil
		}

		return proposeAppointment(in, query, dateparse.Window{})
	}
}

func wantsCreation(query string) bool {
	lower := strings.ToLower(query)
	for _, kw := range []string{"schedule", "set up", "book", "create"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func proposeAppointment(in domain.Input, subject string, window dateparse.Window) (domain.Result, error) {
	var attendees []map[string]any
	for _, e := range in.Entities {
		if e.Category == "person" {
			attendees = append(attendees, map[string]any{"name": e.Value, "kind": "contact"})
		}
	}
	start := window.Start
	end := window.End
	if start.IsZero() {
		start = time.Now().Add(24 * time.Hour)
		end = start.Add(30 * time.Minute)
	}
	return domain.Result{
		RequiresApproval: true,
		ApprovalRequest: &domain.ApprovalRequest{
			ActionID: uuid.NewString(),
			Domain:   domain.Calendar,
			Action:   "create_appointment",
			Preview:  fmt.Sprintf("Create appointment %q from %s to %s", subject, start.Format(time.RFC3339), end.Format(time.RFC3339)),
			Data: map[string]any{
				"subject":   subject,
				"start":     start,
				"end":       end,
				"attendees": attendees,
			},
		},
	}, nil
}

func applyDecision(ctx context.Context, client Client, in domain.Input) (domain.Result, error) {
	dec := in.ApprovalDecision
	if !dec.Approved {
		return domain.Result{Response: "Appointment creation was declined."}, nil
	}
	subject, _ := dec.Selection["subject"].(string)
	start, _ := dec.Selection["start"].(time.Time)
	end, _ := dec.Selection["end"].(time.Time)
	token, err := in.GetToken(ctx)
	if err != nil {
		return domain.Result{Error: fmt.Sprintf("calendar: %v", err)}, nil
	}
	id, err := client.CreateAppointment(ctx, token, in.OrgID, Appointment{Subject: subject, Start: start, End: end})
	if err != nil {
		return domain.Result{Error: fmt.Sprintf("calendar: create failed: %v", err)}, nil
	}
	attendeesRaw, _ := dec.Selection["attendees"].([]any)
	for _, raw := range attendeesRaw {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		targetID, _ := m["id"].(string)
		kind, _ := m["kind"].(string)
		if targetID == "" {
			continue
		}
		if err := client.LinkAttendee(ctx, token, in.OrgID, id, targetID, kind); err != nil {
			return domain.Result{Error: fmt.Sprintf("calendar: link attendee failed: %v", err)}, nil
		}
	}
	return domain.Result{
		Response: fmt.Sprintf("Created appointment %q.", subject),
		Data:     map[string]any{"appointment_id": id},
	}, nil
}

func summarizeActivities(activities []Activity) string {
	if len(activities) == 0 {
		return "No activities found for that period."
	}
	return fmt.Sprintf("Found %d activities.", len(activities))
}

func latestUserText(messages []domain.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Text
		}
	}
	return ""
}
