package planner

import "regexp"

// entityPattern pairs a fixed-order regex with the category it produces.
// Patterns run in this exact order, each over the whole query; no match
// consumes text, so the order fixes only the order of the output.
type entityPattern struct {
	typ      string
	category EntityCategory
	re       *regexp.Regexp
}

var entityPatterns = []entityPattern{
	{
		typ:      "person",
		category: CategoryPerson,
		re:       regexp.MustCompile(`(?:with|meet|call|email|contact)\s+((?:[A-Z][a-z]+\s*){1,3})`),
	},
	{
		typ:      "date_absolute",
		category: CategoryDate,
		re:       regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{2,4})\b`),
	},
	{
		typ:      "date_relative",
		category: CategoryDate,
		re:       regexp.MustCompile(`(?i)\b(today|tomorrow|yesterday|next week|next monday|next tuesday|next wednesday|next thursday|next friday|next saturday|next sunday|this week|this weekend)\b`),
	},
	{
		typ:      "time",
		category: CategoryTime,
		re:       regexp.MustCompile(`(?i)\b(\d{1,2}(:\d{2})?\s?(am|pm))\b`),
	},
	{
		typ:      "duration",
		category: CategoryDuration,
		re:       regexp.MustCompile(`(?i)\b(\d+\s?(minutes?|mins?|hours?|hrs?))\b`),
	},
}

// extractEntities runs every pattern against query in a fixed order and
// returns one Entity per match, annotated with its byte position so
// downstream disambiguation can reason about proximity between entities.
func extractEntities(query string) []Entity {
	var out []Entity
	for _, p := range entityPatterns {
		for _, loc := range p.re.FindAllStringSubmatchIndex(query, -1) {
			start, end := loc[2], loc[3]
			if start < 0 || end < 0 {
				start, end = loc[0], loc[1]
			}
			out = append(out, Entity{
				Type:     p.typ,
				Value:    query[start:end],
				Category: p.category,
				Position: start,
			})
		}
	}
	return out
}
