package contact

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexacrm/coordinator/domain"
)

type fakeExtractor struct {
	name  string
	found bool
	err   error
}

func (f fakeExtractor) Extract(context.Context, string) (Extracted, bool, error) {
	return Extracted{Name: f.name}, f.found, f.err
}

type fakeSearcher struct {
	candidates []Candidate
	err        error
}

func (f fakeSearcher) SearchContacts(context.Context, string, string, string) ([]Candidate, error) {
	return f.candidates, f.err
}

func baseInput(text string) domain.Input {
	return domain.Input{
		Messages:  []domain.Message{{Role: "user", Text: text}},
		OrgID:     "org1",
		SessionID: "sess1",
		GetToken:  func(context.Context) (string, error) { return "tok", nil },
	}
}

func TestContactAutoSelectsDecisiveMatch(t *testing.T) {
	sg := Subgraph(fakeExtractor{name: "Jane Doe", found: true}, fakeSearcher{candidates: []Candidate{
		{ID: "c1", Name: "Jane Doe"},
		{ID: "c2", Name: "Janet Smith"},
	}})
	result, err := sg(context.Background(), baseInput("meet with Jane Doe"))
	require.NoError(t, err)
	require.False(t, result.RequiresApproval)
	require.Equal(t, "c1", result.Data["contact_id"])
}

func TestContactRequestsDisambiguationOnCloseScores(t *testing.T) {
	sg := Subgraph(fakeExtractor{name: "Smith", found: true}, fakeSearcher{candidates: []Candidate{
		{ID: "c1", Name: "John Smith"},
		{ID: "c2", Name: "Jane Smith"},
		{ID: "c3", Name: "Smithson Corp Contact"},
	}})
	result, err := sg(context.Background(), baseInput("email Smith"))
	require.NoError(t, err)
	require.True(t, result.RequiresApproval)
	require.Equal(t, "contact_disambiguation", result.ApprovalRequest.Action)
	candidates, _ := result.ApprovalRequest.Data["candidates"].([]map[string]any)
	require.LessOrEqual(t, len(candidates), maxDisambiguationCandidates)
}

func TestContactResolvesFromApprovalDecision(t *testing.T) {
	sg := Subgraph(fakeExtractor{}, fakeSearcher{})
	in := baseInput("")
	in.ApprovalDecision = &domain.ApprovalDecision{
		ActionID: "a1",
		Approved: true,
		Selection: map[string]any{"id": "c9", "name": "Chosen One"},
	}
	result, err := sg(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "c9", result.Data["contact_id"])
}

func TestContactNoCandidatesReturnsPlainResponse(t *testing.T) {
	sg := Subgraph(fakeExtractor{name: "Nobody", found: true}, fakeSearcher{})
	result, err := sg(context.Background(), baseInput("call Nobody"))
	require.NoError(t, err)
	require.False(t, result.RequiresApproval)
	require.Contains(t, result.Response, "No contact found")
}

func TestRankOrdersByScoreDescending(t *testing.T) {
	ranked := rank("Jane", []Candidate{
		{ID: "weak", Name: "J. Someone"},
		{ID: "strong", Name: "Jane"},
	}, "", nil)
	require.Equal(t, "strong", ranked[0].Candidate.ID)
}
