package workflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nexacrm/coordinator/domain"
)

// Client is the subset of CRM workflow operations this subgraph calls.
type Client interface {
	CreateShell(ctx context.Context, token, orgID, name string) (string, error)
	AppendStep(ctx context.Context, token, orgID, workflowID string, step Step) error
}

// Subgraph builds the workflow domain's Subgraph function.
func Subgraph(parser StepParser, client Client) domain.Subgraph {
	return func(ctx context.Context, in domain.Input) (domain.Result, error) {
		if in.ApprovalDecision != nil {
			return applyDecision(ctx, client, in)
		}

		description := latestUserText(in.Messages)
		steps := parser.Parse(ctx, description)
		if len(steps) == 0 {
			return domain.Result{Response: "I couldn't find any steps in that workflow description."}, nil
		}
		if len(steps) > MaxSteps {
			return domain.Result{Error: fmt.Sprintf(
				"workflow: description has %d steps, which exceeds the %d-step cap; split it into multiple workflows",
				len(steps), MaxSteps,
			)}, nil
		}

		stepData := make([]map[string]any, len(steps))
		for i, s := range steps {
			stepData[i] = map[string]any{
				"sequence":     s.Sequence,
				"subject":      s.Subject,
				"activityType": string(s.ActivityType),
				"dayOffset":    s.DayOffset,
				"assigneeType": string(s.AssigneeType),
				"rollOver":     s.RollOver,
				"allDay":       s.AllDay,
			}
		}

		return domain.Result{
			RequiresApproval: true,
			ApprovalRequest: &domain.ApprovalRequest{
				ActionID: uuid.NewString(),
				Domain:   domain.Workflow,
				Action:   "create_workflow",
				Preview:  fmt.Sprintf("Create workflow with %d steps", len(steps)),
				Data: map[string]any{
					"name":  description,
					"steps": stepData,
				},
			},
		}, nil
	}
}

func applyDecision(ctx context.Context, client Client, in domain.Input) (domain.Result, error) {
	dec := in.ApprovalDecision
	if !dec.Approved {
		return domain.Result{Response: "Workflow creation was declined."}, nil
	}
	name, _ := dec.Selection["name"].(string)
	rawSteps, _ := dec.Selection["steps"].([]any)

	if len(rawSteps) > MaxSteps {
		return domain.Result{Error: fmt.Sprintf(
			"workflow: approved selection has %d steps, which exceeds the %d-step cap",
			len(rawSteps), MaxSteps,
		)}, nil
	}

	token, err := in.GetToken(ctx)
	if err != nil {
		return domain.Result{Error: fmt.Sprintf("workflow: %v", err)}, nil
	}

	workflowID, err := client.CreateShell(ctx, token, in.OrgID, name)
	if err != nil {
		return domain.Result{Error: fmt.Sprintf("workflow: shell creation failed: %v", err)}, nil
	}

	total := len(rawSteps)
	added := 0
	var breakdown []map[string]any
	for _, raw := range rawSteps {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		step := stepFromMap(m)
		err := client.AppendStep(ctx, token, in.OrgID, workflowID, step)
		status := "added"
		if err != nil {
			status = "failed"
		} else {
			added++
		}
		breakdown = append(breakdown, map[string]any{
			"sequence": step.Sequence,
			"subject":  step.Subject,
			"status":   status,
		})
	}

	return domain.Result{
		Response: fmt.Sprintf("Created workflow %q: %d of %d steps added.", name, added, total),
		Data: map[string]any{
			"workflow_id": workflowID,
			"stepsAdded":  added,
			"totalSteps":  total,
			"steps":       breakdown,
		},
	}, nil
}

func stepFromMap(m map[string]any) Step {
	seq, _ := m["sequence"].(int)
	if seq == 0 {
		if f, ok := m["sequence"].(float64); ok {
			seq = int(f)
		}
	}
	subject, _ := m["subject"].(string)
	activityType, _ := m["activityType"].(string)
	dayOffset, _ := m["dayOffset"].(int)
	if dayOffset == 0 {
		if f, ok := m["dayOffset"].(float64); ok {
			dayOffset = int(f)
		}
	}
	assigneeType, _ := m["assigneeType"].(string)
	rollOver, _ := m["rollOver"].(bool)
	allDay, _ := m["allDay"].(bool)

	at := ActivityTask
	if activityType == string(ActivityAppointment) {
		at = ActivityAppointment
	}
	asg := AssigneeOwner
	if assigneeType == string(AssigneeAssistant) {
		asg = AssigneeAssistant
	}

	return Step{
		Sequence:     seq,
		Subject:      subject,
		ActivityType: at,
		DayOffset:    dayOffset,
		AssigneeType: asg,
		RollOver:     rollOver,
		AllDay:       allDay,
	}
}

func latestUserText(messages []domain.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Text
		}
	}
	return ""
}
