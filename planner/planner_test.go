package planner

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlanDetectsContactCalendarDependency(t *testing.T) {
	plan, err := Plan("schedule a meeting with John Smith tomorrow at 3pm", nil)
	require.NoError(t, err)
	require.Contains(t, plan.Parallel, DomainContact)

	var sequencedCalendar *SequentialStep
	for i := range plan.Sequential {
		if plan.Sequential[i].Domain == DomainCalendar {
			sequencedCalendar = &plan.Sequential[i]
		}
	}
	require.NotNil(t, sequencedCalendar)
	require.Contains(t, sequencedCalendar.DependsOn, DomainContact)
}

func TestPlanChainsCalendarToTask(t *testing.T) {
	plan, err := Plan("schedule a call with Jane Doe and set a reminder for after the call", nil)
	require.NoError(t, err)

	domains := map[Domain]bool{}
	for _, d := range plan.Parallel {
		domains[d] = true
	}
	for _, s := range plan.Sequential {
		domains[s.Domain] = true
	}
	require.True(t, domains[DomainContact])
	require.True(t, domains[DomainCalendar])
	require.True(t, domains[DomainTask])
}

func TestPlanIndependentDomainsAreParallel(t *testing.T) {
	plan, err := Plan("start a new onboarding workflow and add a task to follow up", nil)
	require.NoError(t, err)
	require.Contains(t, plan.Parallel, DomainWorkflow)
	require.Contains(t, plan.Parallel, DomainTask)
	require.Empty(t, plan.Sequential)
}

func TestPlanExtractsPersonEntityWithoutContactKeyword(t *testing.T) {
	// "with Jane Doe" matches the person pattern although the query has no
	// contact keyword or calendar verb; the person entity alone brings in
	// the contact domain, so this plan carries no missing-contact warning.
	plan, err := Plan("send the quarterly report with Jane Doe attached", nil)
	require.NoError(t, err)
	require.NotEmpty(t, plan.Metadata.EntityCount)
}

func TestPlanEmptyQueryYieldsEmptyPlan(t *testing.T) {
	plan, err := Plan("hello there", nil)
	require.NoError(t, err)
	require.Empty(t, plan.Parallel)
	require.Empty(t, plan.Sequential)
	require.Equal(t, 0, plan.Metadata.DomainCount)
}

func TestTopologicalLayersDetectsCycle(t *testing.T) {
	domains := map[Domain]bool{DomainContact: true, DomainCalendar: true}
	edges := []edge{
		{from: DomainContact, to: DomainCalendar},
		{from: DomainCalendar, to: DomainContact},
	}
	_, err := topologicalLayers(domains, edges)
	require.Error(t, err)
	var cycleErr *ErrCycle
	require.ErrorAs(t, err, &cycleErr)
}
