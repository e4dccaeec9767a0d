package planner

import (
	"fmt"
	"sort"
)

// ErrCycle is returned when the dependency graph for a turn contains a
// cycle; the planner refuses to build a plan rather than guess an order.
type ErrCycle struct {
	Domains []Domain
}

func (e *ErrCycle) Error() string {
	return fmt.Sprintf("planner: dependency cycle among domains %v", e.Domains)
}

type layers struct {
	parallel   []Domain
	sequential []SequentialStep
}

// topologicalLayers partitions domains into a parallel batch (in-degree
// zero) and a sequential tail ordered by dependency resolution. Unknown
// domains are dropped with no error (the spec treats that as a warning
// surfaced by the caller, not a hard failure); a cycle among known domains
// is a hard failure since there is no safe execution order to fall back to.
func topologicalLayers(domains map[Domain]bool, edges []edge) (layers, error) {
	nodes := make(map[Domain]bool, len(domains))
	for d := range domains {
		if knownDomains[d] {
			nodes[d] = true
		}
	}

	inDegree := make(map[Domain]int, len(nodes))
	dependsOn := make(map[Domain][]Domain, len(nodes))
	for d := range nodes {
		inDegree[d] = 0
	}
	for _, e := range edges {
		if !nodes[e.from] || !nodes[e.to] {
			continue
		}
		inDegree[e.to]++
		dependsOn[e.to] = append(dependsOn[e.to], e.from)
	}

	var parallel []Domain
	var sequential []SequentialStep
	remaining := make(map[Domain]bool, len(nodes))
	for d := range nodes {
		remaining[d] = true
	}

	// First layer: every domain with no dependency, in deterministic
	// (sorted) order so plans are reproducible for identical inputs.
	var first []Domain
	for d := range remaining {
		if inDegree[d] == 0 {
			first = append(first, d)
		}
	}
	sort.Slice(first, func(i, j int) bool { return first[i] < first[j] })
	for _, d := range first {
		parallel = append(parallel, d)
		delete(remaining, d)
	}

	// Remaining layers flatten into the sequential tail in dependency
	// order; a domain enters once every domain it depends on has already
	// been placed.
	for len(remaining) > 0 {
		var ready []Domain
		for d := range remaining {
			satisfied := true
			for _, dep := range dependsOn[d] {
				if remaining[dep] {
					satisfied = false
					break
				}
			}
			if satisfied {
				ready = append(ready, d)
			}
		}
		if len(ready) == 0 {
			return layers{}, &ErrCycle{Domains: sortedRemaining(remaining)}
		}
		sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
		for _, d := range ready {
			sequential = append(sequential, SequentialStep{
				Domain:    d,
				DependsOn: dependsOn[d],
			})
			delete(remaining, d)
		}
	}

	return layers{parallel: parallel, sequential: sequential}, nil
}

func sortedRemaining(set map[Domain]bool) []Domain {
	out := make([]Domain, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
