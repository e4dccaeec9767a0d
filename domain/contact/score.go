package contact

import "strings"

// Candidate is one CRM contact search result.
type Candidate struct {
	ID    string
	Name  string
	Title string
}

// scored pairs a Candidate with its computed weight.
type scored struct {
	Candidate Candidate
	Score     float64
}

const (
	weightNameExact    = 1.0
	weightNameSubstr   = 0.9
	weightNamePartial  = 0.5
	weightTitleMatch   = 0.2
	weightRecencyBonus = 0.15

	// autoSelectRatio is the minimum ratio of the top score to the
	// runner-up required to auto-select instead of asking the user to
	// disambiguate.
	autoSelectRatio = 2.0
)

// score blends name similarity, a title hint, and a recency hint from
// memory into a single candidate weight.
func score(query string, c Candidate, titleHint string, recency float64) float64 {
	s := nameSimilarity(query, c.Name)
	if titleHint != "" && c.Title != "" && strings.EqualFold(titleHint, c.Title) {
		s += weightTitleMatch
	}
	s += recency * weightRecencyBonus
	return s
}

func nameSimilarity(query, candidate string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	c := strings.ToLower(strings.TrimSpace(candidate))
	if q == "" || c == "" {
		return 0
	}
	if q == c {
		return weightNameExact
	}
	if strings.Contains(c, q) || strings.Contains(q, c) {
		return weightNameSubstr
	}
	qWords := strings.Fields(q)
	cWords := strings.Fields(c)
	if len(qWords) == 0 {
		return 0
	}
	matches := 0
	for _, qw := range qWords {
		for _, cw := range cWords {
			if qw == cw {
				matches++
				break
			}
		}
	}
	if matches == 0 {
		return 0
	}
	return weightNamePartial * float64(matches) / float64(len(qWords))
}

// rank scores every candidate and returns them sorted best-first.
func rank(query string, candidates []Candidate, titleHint string, recencyOf func(Candidate) float64) []scored {
	out := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		var recency float64
		if recencyOf != nil {
			recency = recencyOf(c)
		}
		out = append(out, scored{Candidate: c, Score: score(query, c, titleHint, recency)})
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Score > out[j-1].Score; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// autoSelects reports whether the top-ranked candidate is decisively best:
// its score exceeds twice the runner-up's.
func autoSelects(ranked []scored) bool {
	if len(ranked) == 1 {
		return true
	}
	if len(ranked) < 2 {
		return false
	}
	if ranked[1].Score == 0 {
		return ranked[0].Score > 0
	}
	return ranked[0].Score > autoSelectRatio*ranked[1].Score
}
