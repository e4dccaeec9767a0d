// Package workflow implements the workflow domain subgraph: creating a
// workflow shell and appending a bounded sequence of steps parsed from a
// natural-language description.
package workflow

import (
	"regexp"
	"strings"
)

// MaxSteps is the hard cap on steps a single workflow can carry.
const MaxSteps = 22

// ActivityType is the kind of CRM activity a step produces.
type ActivityType string

const (
	ActivityTask        ActivityType = "Task"
	ActivityAppointment ActivityType = "Appointment"
)

// AssigneeType is who a step is assigned to.
type AssigneeType string

const (
	AssigneeOwner     AssigneeType = "owner"
	AssigneeAssistant AssigneeType = "assistant"
)

// Step is one entry in a workflow's sequential step list.
type Step struct {
	Sequence     int
	Subject      string
	ActivityType ActivityType
	DayOffset    int
	AssigneeType AssigneeType
	RollOver     bool
	AllDay       bool
}

var numberedLine = regexp.MustCompile(`(?m)^\s*\d+[.)]\s*(.+)$`)
var bulletLine = regexp.MustCompile(`(?m)^\s*[-*•]\s*(.+)$`)
var sequencingAdverb = regexp.MustCompile(`(?i)\b(first|then|next|after that|finally|afterwards)\b[,:]?\s*`)

// StepPlanner turns a free-form workflow description into a capped,
// sequenced list of steps. It is a pure function with no CRM or LLM calls,
// so the 22-step cap and step-shape rules can be tested in isolation from
// any call that actually hits the CRM.
//
// Ordered heuristics, first match wins:
//  1. Numbered list ("1. Call client", "2) Send contract")
//  2. Bullet list ("- Call client")
//  3. Sequencing adverbs ("First call the client, then send the contract")
//  4. Fallback: the whole description becomes a single step.
func StepPlanner(description string) []Step {
	var subjects []string

	if matches := numberedLine.FindAllStringSubmatch(description, -1); len(matches) > 0 {
		subjects = subjectsFrom(matches)
	} else if matches := bulletLine.FindAllStringSubmatch(description, -1); len(matches) > 0 {
		subjects = subjectsFrom(matches)
	} else if sequencingAdverb.MatchString(description) {
		parts := sequencingAdverb.Split(description, -1)
		for _, p := range parts {
			p = strings.TrimSpace(strings.Trim(p, ",. "))
			if p != "" {
				subjects = append(subjects, p)
			}
		}
	}

	if len(subjects) == 0 {
		trimmed := strings.TrimSpace(description)
		if trimmed == "" {
			return nil
		}
		subjects = []string{trimmed}
	}

	// MaxSteps is enforced by the subgraph, which rejects the whole request
	// rather than silently dropping the tail of a description the caller
	// didn't ask to have truncated.
	steps := make([]Step, len(subjects))
	for i, s := range subjects {
		steps[i] = Step{
			Sequence:     i + 1,
			Subject:      s,
			ActivityType: classifyActivity(s),
			DayOffset:    i,
			AssigneeType: AssigneeOwner,
			AllDay:       true,
		}
	}
	return steps
}

func subjectsFrom(matches [][]string) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		s := strings.TrimSpace(m[1])
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func classifyActivity(subject string) ActivityType {
	lower := strings.ToLower(subject)
	for _, kw := range []string{"meet", "call", "appointment", "demo"} {
		if strings.Contains(lower, kw) {
			return ActivityAppointment
		}
	}
	return ActivityTask
}
