package contact

import (
	"context"
	"fmt"

	"github.com/nexacrm/coordinator/crm"
)

// CRMSearcher implements Searcher against the CRM's contact search
// endpoint.
type CRMSearcher struct {
	Client *crm.Client
}

func (s *CRMSearcher) SearchContacts(ctx context.Context, token, orgID, query string) ([]Candidate, error) {
	resp, err := s.Client.Read(ctx, "/contacts/search", crm.Envelope{Token: token, OrganizationID: orgID}, map[string]any{
		"query": query,
	})
	if err != nil {
		return nil, err
	}
	rawContacts, _ := resp.Data["contacts"].([]any)
	out := make([]Candidate, 0, len(rawContacts))
	for _, raw := range rawContacts {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		name, _ := m["name"].(string)
		title, _ := m["title"].(string)
		if id == "" || name == "" {
			continue
		}
		out = append(out, Candidate{ID: id, Name: name, Title: title})
	}
	if len(out) == 0 && resp.Error != nil {
		return nil, fmt.Errorf("contact: crm search error: %s", resp.Error.Message)
	}
	return out, nil
}
