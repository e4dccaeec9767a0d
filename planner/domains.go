package planner

import "regexp"

var domainKeywords = map[Domain]*regexp.Regexp{
	DomainCalendar: regexp.MustCompile(`(?i)\b(meeting|schedule|appointment|event)\b`),
	DomainTask:     regexp.MustCompile(`(?i)\b(task|todo|to-do|reminder|action item)\b`),
	DomainWorkflow: regexp.MustCompile(`(?i)\b(workflow|process|automation|procedure)\b`),
	DomainContact:  regexp.MustCompile(`(?i)\b(contact|client|prospect)\b`),
}

var calendarVerb = regexp.MustCompile(`(?i)\b(meet|schedule|call|appointment)\b`)
var taskFromMeeting = regexp.MustCompile(`(?i)\b(from|after|for)\b.*\b(meeting|call|appointment)\b`)

// detectDomains returns the set of domains a query touches: the union of
// keyword matches and any domain a person entity implies. The domains that
// dependency rules require are added to the set later, by dependencyEdges.
func detectDomains(query string, entities []Entity) map[Domain]bool {
	domains := make(map[Domain]bool)
	for d, re := range domainKeywords {
		if re.MatchString(query) {
			domains[d] = true
		}
	}
	for _, e := range entities {
		if e.Category == CategoryPerson {
			domains[DomainContact] = true
		}
	}
	return domains
}

type edge struct {
	from Domain
	to   Domain
}

// dependencyEdges evaluates the closed set of dependency rules in order,
// adding both endpoints to the caller's domain set when a rule fires even
// if one endpoint's own keyword was absent (e.g. "set up a reminder for
// after my call with Jane" implies task without the word "task").
func dependencyEdges(query string, domains map[Domain]bool) []edge {
	var edges []edge

	hasPerson := domains[DomainContact]
	if hasPerson && calendarVerb.MatchString(query) {
		domains[DomainCalendar] = true
		edges = append(edges, edge{from: DomainContact, to: DomainCalendar})
	}
	if domains[DomainCalendar] && taskFromMeeting.MatchString(query) {
		domains[DomainTask] = true
		edges = append(edges, edge{from: DomainCalendar, to: DomainTask})
	}
	// Workflow subsumes its own coordination: it never appears as a
	// dependency source or target for another domain.
	return edges
}
