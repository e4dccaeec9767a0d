package workflow

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStepPlannerParsesNumberedList(t *testing.T) {
	steps := StepPlanner("1. Call the client\n2. Send the contract\n3. Schedule a demo")
	require.Len(t, steps, 3)
	require.Equal(t, "Call the client", steps[0].Subject)
	require.Equal(t, ActivityAppointment, steps[2].ActivityType)
}

func TestStepPlannerParsesBulletList(t *testing.T) {
	steps := StepPlanner("- Call the client\n- Send the contract")
	require.Len(t, steps, 2)
	require.Equal(t, 2, steps[1].Sequence)
	require.Equal(t, 2, steps[1].DayOffset-steps[0].DayOffset+1)
}

func TestStepPlannerParsesSequencingAdverbs(t *testing.T) {
	steps := StepPlanner("First call the client, then send the contract, finally schedule the demo")
	require.Len(t, steps, 3)
}

func TestStepPlannerFallsBackToSingleStep(t *testing.T) {
	steps := StepPlanner("Follow up with the prospect about renewal")
	require.Len(t, steps, 1)
	require.Equal(t, "Follow up with the prospect about renewal", steps[0].Subject)
}

// StepPlanner itself does not enforce MaxSteps: it's a pure parser, and
// capping belongs to the subgraph, which rejects an overlong description
// outright rather than silently handing the caller a truncated workflow.
func TestStepPlannerDoesNotTruncateOverlongDescriptions(t *testing.T) {
	var lines []string
	for i := 1; i <= 30; i++ {
		lines = append(lines, "step")
	}
	numbered := ""
	for i, l := range lines {
		numbered += strconv.Itoa(i+1) + ". " + l + "\n"
	}
	steps := StepPlanner(numbered)
	require.Len(t, steps, 30)
}

func TestStepPlannerEmptyDescriptionYieldsNoSteps(t *testing.T) {
	require.Empty(t, StepPlanner("   "))
}

func TestClassifyActivityDetectsAppointmentKeywords(t *testing.T) {
	steps := StepPlanner("1. Call the client\n2. File the paperwork")
	require.True(t, strings.Contains(string(steps[0].ActivityType), "Appointment"))
	require.Equal(t, ActivityTask, steps[1].ActivityType)
}
