// Package contact implements the contact domain subgraph: resolving a
// person's name from the query into a CRM contact, either by confident
// auto-selection or by asking the human to disambiguate among candidates.
package contact

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nexacrm/coordinator/domain"
)

const maxDisambiguationCandidates = 5

// Searcher looks up CRM contacts by name. Implementations wrap the domain
// tool layer's Client.
type Searcher interface {
	SearchContacts(ctx context.Context, token, orgID, query string) ([]Candidate, error)
}

// Subgraph builds the contact domain's Subgraph function.
func Subgraph(extractor Extractor, searcher Searcher) domain.Subgraph {
	return func(ctx context.Context, in domain.Input) (domain.Result, error) {
		// Re-entry after a disambiguation decision: the decision's
		// Selection carries the chosen contact id directly, no further
		// search or scoring needed.
		if in.ApprovalDecision != nil {
			return resolveFromDecision(in)
		}

		query := latestUserText(in.Messages)
		extracted, found, err := extractor.Extract(ctx, query)
		if err != nil {
			return domain.Result{Error: fmt.Sprintf("contact: name extraction failed: %v", err)}, nil
		}
		if !found {
			return domain.Result{Error: "contact: no person name found in query"}, nil
		}

		token, err := in.GetToken(ctx)
		if err != nil {
			return domain.Result{Error: fmt.Sprintf("contact: %v", err)}, nil
		}

		candidates, err := searcher.SearchContacts(ctx, token, in.OrgID, extracted.Name)
		if err != nil {
			return domain.Result{Error: fmt.Sprintf("contact: search failed: %v", err)}, nil
		}
		if len(candidates) == 0 {
			return domain.Result{Response: fmt.Sprintf("No contact found matching %q.", extracted.Name)}, nil
		}

		recencyOf := recencyScorer(in.MemoryContext)
		ranked := rank(extracted.Name, candidates, "", recencyOf)

		if autoSelects(ranked) {
			top := ranked[0].Candidate
			return domain.Result{
				Response: fmt.Sprintf("Resolved contact %q.", top.Name),
				Data:     map[string]any{"contact_id": top.ID, "contact_name": top.Name},
			}, nil
		}

		if len(ranked) > maxDisambiguationCandidates {
			ranked = ranked[:maxDisambiguationCandidates]
		}
		previewCandidates := make([]map[string]any, 0, len(ranked))
		for _, r := range ranked {
			previewCandidates = append(previewCandidates, map[string]any{
				"id":    r.Candidate.ID,
				"name":  r.Candidate.Name,
				"title": r.Candidate.Title,
				"score": r.Score,
			})
		}

		return domain.Result{
			RequiresApproval: true,
			ApprovalRequest: &domain.ApprovalRequest{
				ActionID: uuid.NewString(),
				Domain:   domain.Contact,
				Action:   "contact_disambiguation",
				Preview:  fmt.Sprintf("Multiple contacts match %q; please choose one.", extracted.Name),
				Data:     map[string]any{"candidates": previewCandidates, "query": extracted.Name},
			},
		}, nil
	}
}

func resolveFromDecision(in domain.Input) (domain.Result, error) {
	if !in.ApprovalDecision.Approved {
		return domain.Result{Response: "Contact selection was declined."}, nil
	}
	id, _ := in.ApprovalDecision.Selection["id"].(string)
	name, _ := in.ApprovalDecision.Selection["name"].(string)
	if id == "" {
		return domain.Result{Error: "contact: approval decision is missing a selected contact id"}, nil
	}
	return domain.Result{
		Response: fmt.Sprintf("Resolved contact %q.", name),
		Data:     map[string]any{"contact_id": id, "contact_name": name},
	}, nil
}

func latestUserText(messages []domain.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Text
		}
	}
	return ""
}

// recencyScorer builds a per-candidate recency hint from memory context,
// matching recalled item text against a candidate's name. score adds at
// most weightRecencyBonus times the best matching item's relevance, which
// can be enough to lift a close top candidate over the auto-select
// threshold.
func recencyScorer(mem domain.MemoryContext) func(Candidate) float64 {
	return func(c Candidate) float64 {
		var best float64
		for _, item := range mem.Items {
			if item.Relevance > best && c.Name != "" && strings.Contains(strings.ToLower(item.Text), strings.ToLower(c.Name)) {
				best = item.Relevance
			}
		}
		return best
	}
}
