// Package task implements the task domain subgraph: fetching, creating,
// completing, and deleting tasks, with bare dates widened into full-day
// fetch windows and contacts linked through the task-contact linker. The
// subgraph proposes no task updates; it never calls Client.UpdateTask.
package task

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nexacrm/coordinator/dateparse"
	"github.com/nexacrm/coordinator/domain"
)

// Client is the subset of CRM task operations this subgraph calls.
type Client interface {
	FetchTasks(ctx context.Context, token, orgID string, window dateparse.Window) ([]Task, error)
	CreateTask(ctx context.Context, token, orgID string, t Task) (string, error)
	UpdateTask(ctx context.Context, token, orgID, taskID string, fields map[string]any) error
	CompleteTask(ctx context.Context, token, orgID, taskID string) error
	DeleteTask(ctx context.Context, token, orgID, taskID string) error
	LinkContact(ctx context.Context, token, orgID, taskID, contactID string) error
}

// Task is a single CRM task record.
type Task struct {
	ID      string
	Subject string
	Due     time.Time
	Done    bool
}

// Subgraph builds the task domain's Subgraph function.
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
		lower := strings.ToLower(query)

		window, found := dateparse.Parse(query, tz, time.Now())

		switch {
		case strings.Contains(lower, "complete") || strings.Contains(lower, "done"):
			return proposeMutation(domain.Task, "complete_task", fmt.Sprintf("Mark task %q complete", query), map[string]any{"subject": query})
		case strings.Contains(lower, "delete") || strings.Contains(lower, "remove"):
			return proposeMutation(domain.Task, "delete_task", fmt.Sprintf("Delete task %q", query), map[string]any{"subject": query})
		case strings.Contains(lower, "add") || strings.Contains(lower, "create") || strings.Contains(lower, "remind"):
			due := fullDayWindow(window, found)
			return proposeCreate(in, query, due)
		default:
			if !found {
				window, _ = dateparse.Parse("today", tz, time.Now())
			}
			token, err := in.GetToken(ctx)
			if err != nil {
				return domain.Result{Error: fmt.Sprintf("task: %v", err)}, nil
			}
			tasks, err := client.FetchTasks(ctx, token, in.OrgID, window)
			if err != nil {
				return domain.Result{Error: fmt.Sprintf("task: fetch failed: %v", err)}, nil
			}
			return domain.Result{
				Response: summarizeTasks(tasks),
				Data:     map[string]any{"tasks": tasks},
			}, nil
		}
	}
}

// fullDayWindow returns the due time for a new task: the start of the
// parsed day in the caller's timezone, or 24 hours from now when no date
// was found. It returns a single instant; no end-of-day bound is produced.
func fullDayWindow(w dateparse.Window, found bool) time.Time {
	if !found {
		return time.Now().Add(24 * time.Hour)
	}
	return w.Start
}

func proposeCreate(in domain.Input, subject string, due time.Time) (domain.Result, error) {
	var contactIDs []string
	for _, e := range in.Entities {
		if e.Category == "person" {
			contactIDs = append(contactIDs, e.Value)
		}
	}
	return domain.Result{
		RequiresApproval: true,
		ApprovalRequest: &domain.ApprovalRequest{
			ActionID: uuid.NewString(),
			Domain:   domain.Task,
			Action:   "create_task",
			Preview:  fmt.Sprintf("Create task %q due %s", subject, due.Format("2006-01-02")),
			Data: map[string]any{
				"subject":  subject,
				"due":      due,
				"contacts": contactIDs,
			},
		},
	}, nil
}

func proposeMutation(_ domain.Name, action, preview string, data map[string]any) (domain.Result, error) {
	data["action"] = action
	return domain.Result{
		RequiresApproval: true,
		ApprovalRequest: &domain.ApprovalRequest{
			ActionID: uuid.NewString(),
			Domain:   domain.Task,
			Action:   action,
			Preview:  preview,
			Data:     data,
		},
	}, nil
}

func applyDecision(ctx context.Context, client Client, in domain.Input) (domain.Result, error) {
	dec := in.ApprovalDecision
	if !dec.Approved {
		return domain.Result{Response: "Task change was declined."}, nil
	}
	token, err := in.GetToken(ctx)
	if err != nil {
		return domain.Result{Error: fmt.Sprintf("task: %v", err)}, nil
	}

	taskID, _ := dec.Selection["task_id"].(string)

	switch actionOf(dec) {
	case "complete_task":
		if err := client.CompleteTask(ctx, token, in.OrgID, taskID); err != nil {
			return domain.Result{Error: fmt.Sprintf("task: complete failed: %v", err)}, nil
		}
		return domain.Result{Response: "Task marked complete."}, nil
	case "delete_task":
		if err := client.DeleteTask(ctx, token, in.OrgID, taskID); err != nil {
			return domain.Result{Error: fmt.Sprintf("task: delete failed: %v", err)}, nil
		}
		return domain.Result{Response: "Task deleted."}, nil
	default:
		subject, _ := dec.Selection["subject"].(string)
		due, _ := dec.Selection["due"].(time.Time)
		id, err := client.CreateTask(ctx, token, in.OrgID, Task{Subject: subject, Due: due})
		if err != nil {
			return domain.Result{Error: fmt.Sprintf("task: create failed: %v", err)}, nil
		}
		contacts, _ := dec.Selection["contacts"].([]any)
		for _, c := range contacts {
			cid, ok := c.(string)
			if !ok || cid == "" {
				continue
			}
			if err := client.LinkContact(ctx, token, in.OrgID, id, cid); err != nil {
				return domain.Result{Error: fmt.Sprintf("task: link contact failed: %v", err)}, nil
			}
		}
		return domain.Result{
			Response: fmt.Sprintf("Created task %q.", subject),
			Data:     map[string]any{"task_id": id},
		}, nil
	}
}

// actionOf recovers which mutation this decision resumes from the
// selection's own "action" field, set when the approval was proposed.
func actionOf(dec *domain.ApprovalDecision) string {
	v, _ := dec.Selection["action"].(string)
	return v
}

func summarizeTasks(tasks []Task) string {
	if len(tasks) == 0 {
		return "No tasks found for that period."
	}
	return fmt.Sprintf("Found %d tasks.", len(tasks))
}

func latestUserText(messages []domain.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Text
		}
	}
	return ""
}
