package workflow

import (
	"context"
	"encoding/json"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
)

// MessagesClient is the subset of the Anthropic SDK this package calls.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams) (*sdk.Message, error)
}

// StepParser resolves a natural-language workflow description into steps.
type StepParser interface {
	Parse(ctx context.Context, description string) []Step
}

// heuristicParser wraps StepPlanner, the pure ordered-heuristic function,
// so it satisfies StepParser without any call-site needing an LLM.
type heuristicParser struct{}

// NewHeuristicParser returns a StepParser backed only by StepPlanner.
func NewHeuristicParser() StepParser { return heuristicParser{} }

func (heuristicParser) Parse(_ context.Context, description string) []Step {
	return StepPlanner(description)
}

type llmStepResponse struct {
	Steps []struct {
		Subject      string `json:"subject"`
		ActivityType string `json:"activityType"`
	} `json:"steps"`
}

type llmParser struct {
	client   MessagesClient
	model    string
	fallback StepParser
}

// NewLLMParser returns a StepParser that asks model to segment the
// description into steps, falling back to StepPlanner's heuristics on any
// failure or empty result.
func NewLLMParser(client MessagesClient, model string) StepParser {
	return &llmParser{client: client, model: model, fallback: NewHeuristicParser()}
}

const parsePrompt = `Break this workflow description into an ordered list of discrete steps. Respond with only JSON of the form {"steps": [{"subject": "...", "activityType": "Task"|"Appointment"}]}. Do not include any other text.`

func (p *llmParser) Parse(ctx context.Context, description string) []Step {
	steps, ok := p.parseViaLLM(ctx, description)
	if ok && len(steps) > 0 {
		return steps
	}
	return p.fallback.Parse(ctx, description)
}

func (p *llmParser) parseViaLLM(ctx context.Context, description string) ([]Step, bool) {
	if p.client == nil {
		return nil, false
	}
	resp, err := p.client.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(p.model),
		MaxTokens: 1024,
		System: []sdk.TextBlockParam{
			{Text: parsePrompt},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(description)),
		},
	})
	if err != nil {
		return nil, false
	}
	var parsed llmStepResponse
	if err := json.Unmarshal([]byte(concatText(resp)), &parsed); err != nil {
		return nil, false
	}
	if len(parsed.Steps) == 0 {
		return nil, false
	}
	// MaxSteps is enforced by the subgraph, not here, so an overlong
	// description is rejected outright instead of silently truncated.
	out := make([]Step, len(parsed.Steps))
	for i, s := range parsed.Steps {
		activity := ActivityTask
		if s.ActivityType == string(ActivityAppointment) {
			activity = ActivityAppointment
		}
		out[i] = Step{
			Sequence:     i + 1,
			Subject:      s.Subject,
			ActivityType: activity,
			DayOffset:    i,
			AssigneeType: AssigneeOwner,
			AllDay:       true,
		}
	}
	return out, true
}

func concatText(msg *sdk.Message) string {
	var sb strings.Builder
	for _, block := range msg.Content {
		if text := block.AsText(); text.Text != "" {
			sb.WriteString(text.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}
