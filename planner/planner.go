// Package planner implements the deterministic, rule-based analyzer that
// maps a user turn to an ExecutionPlan: the set of domains it touches, their
// dependency order, and the entities extracted from the query text. It is a
// pure function with no I/O and no LLM call, so identical inputs always
// yield identical plans.
package planner

import (
	"fmt"
	"sort"
)

// Domain is one of the closed set of domains the coordinator routes to.
type Domain string

const (
	DomainContact  Domain = "contact"
	DomainCalendar Domain = "calendar"
	DomainTask     Domain = "task"
	DomainWorkflow Domain = "workflow"
)

var knownDomains = map[Domain]bool{
	DomainContact:  true,
	DomainCalendar: true,
	DomainTask:     true,
	DomainWorkflow: true,
}

// EntityCategory classifies an extracted entity.
type EntityCategory string

const (
	CategoryPerson   EntityCategory = "person"
	CategoryDate     EntityCategory = "date"
	CategoryTime     EntityCategory = "time"
	CategoryDuration EntityCategory = "duration"
)

// Entity is a span of the query text recognized as a planning-relevant
// value.
type Entity struct {
	Type     string
	Value    string
	Category EntityCategory
	Position int
}

// SequentialStep is one domain in the plan's ordered tail, gated on the
// results of the domains it depends on.
type SequentialStep struct {
	Domain     Domain
	DependsOn  []Domain
	Reason     string
}

// Analysis summarizes what the planner observed before building the plan,
// surfaced for diagnostics and for the memory-synthesis step.
type Analysis struct {
	Domains      []Domain
	Entities     []Entity
	Dependencies []string
}

// Metadata accompanies a Plan with counts useful to callers that don't want
// to re-derive them.
type Metadata struct {
	EntityCount            int
	RequiresEntityResolution bool
	DomainCount             int
}

// Plan is the planner's output: a parallel batch of independent domains,
// followed by a sequential tail of domains gated on dependencies.
type Plan struct {
	Parallel   []Domain
	Sequential []SequentialStep
	Analysis   Analysis
	Metadata   Metadata
	Warnings   []string
}

// MemoryContext is advisory context recalled before planning. Plan accepts
// it but does not read it: domains, dependencies, and entities come from the
// query text alone.
type MemoryContext struct {
	RecencyHints map[string]float64
}

// Plan builds an ExecutionPlan for query. memory may be nil.
func Plan(query string, memory *MemoryContext) (*Plan, error) {
	entities := extractEntities(query)
	domains := detectDomains(query, entities)
	deps := dependencyEdges(query, domains)

	layers, err := topologicalLayers(domains, deps)
	if err != nil {
		return nil, err
	}

	var warnings []string
	if hasContactEntity(entities) && !domains[DomainContact] {
		warnings = append(warnings, "query mentions a person but contact domain was not detected")
	}

	plan := &Plan{
		Parallel:   layers.parallel,
		Sequential: layers.sequential,
		Analysis: Analysis{
			Domains:      sortedDomains(domains),
			Entities:     entities,
			Dependencies: edgeStrings(deps),
		},
		Metadata: Metadata{
			EntityCount:              len(entities),
			RequiresEntityResolution: hasContactEntity(entities),
			DomainCount:              len(domains),
		},
		Warnings: warnings,
	}
	return plan, nil
}

func hasContactEntity(entities []Entity) bool {
	for _, e := range entities {
		if e.Category == CategoryPerson {
			return true
		}
	}
	return false
}

func sortedDomains(set map[Domain]bool) []Domain {
	out := make([]Domain, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func edgeStrings(edges []edge) []string {
	out := make([]string, 0, len(edges))
	for _, e := range edges {
		out = append(out, fmt.Sprintf("%s->%s", e.from, e.to))
	}
	return out
}
