package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	checkpointinmem "github.com/nexacrm/coordinator/checkpoint/inmem"
	"github.com/nexacrm/coordinator/credential"
	"github.com/nexacrm/coordinator/domain"
	"github.com/nexacrm/coordinator/engine"
	"github.com/nexacrm/coordinator/engine/inmem"
	"github.com/nexacrm/coordinator/interrupt"
	"github.com/nexacrm/coordinator/planner"
)

type fakeCredStore struct {
	creds map[string]credential.Credential
}

func (f *fakeCredStore) Get(_ context.Context, sessionID string) (credential.Credential, error) {
	c, ok := f.creds[sessionID]
	if !ok {
		return credential.Credential{}, credential.ErrNotFound
	}
	return c, nil
}

func (f *fakeCredStore) Put(_ context.Context, cred credential.Credential) error {
	f.creds[cred.SessionID] = cred
	return nil
}

func (f *fakeCredStore) Delete(_ context.Context, sessionID string) error {
	delete(f.creds, sessionID)
	return nil
}

type fakeExchanger struct{}

func (fakeExchanger) ExchangeCode(context.Context, string, string, string) (credential.Credential, error) {
	return credential.Credential{}, nil
}

func (fakeExchanger) Refresh(_ context.Context, cred credential.Credential) (credential.Credential, error) {
	cred.ExpiresAt = time.Now().Add(time.Hour)
	return cred, nil
}

func newTestCoordinator(subgraphs map[domain.Name]domain.Subgraph) (*Coordinator, *fakeCredStore, *checkpointinmem.Store) {
	credStore := &fakeCredStore{creds: map[string]credential.Credential{
		"sess1": {SessionID: "sess1", Token: "tok", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	refresher := credential.NewRefresher(credStore, fakeExchanger{}, nil)
	cps := checkpointinmem.New()
	c := New(subgraphs, refresher, nil, cps, nil, nil)
	c.Plan = func(query string, _ *planner.MemoryContext) (*planner.Plan, error) {
		return &planner.Plan{Parallel: []planner.Domain{planner.DomainTask}}, nil
	}
	return c, credStore, cps
}

func autoSubgraph(result domain.Result) domain.Subgraph {
	return func(context.Context, domain.Input) (domain.Result, error) {
		return result, nil
	}
}

func TestRunTurnCompletesWithoutApproval(t *testing.T) {
	subgraphs := map[domain.Name]domain.Subgraph{
		domain.Task: autoSubgraph(domain.Result{Response: "3 tasks due today"}),
	}
	c, _, _ := newTestCoordinator(subgraphs)
	eng := inmem.New()
	require.NoError(t, c.RegisterWorkflow(context.Background(), eng, "coordinator"))

	handle, err := eng.StartWorkflow(context.Background(), engine.WorkflowStartRequest{
		ID:       "sess1:org1",
		Workflow: WorkflowName,
		Input: TurnInput{
			SessionID: "sess1", OrgID: "org1", ThreadID: "sess1:org1",
			Messages: []domain.Message{{Role: "user", Text: "what are my tasks"}},
		},
	})
	require.NoError(t, err)

	var out TurnOutput
	require.NoError(t, handle.Wait(context.Background(), &out))
	require.Nil(t, out.Interrupt)
	require.Contains(t, out.FinalResponse, "3 tasks due today")
}

func TestRunTurnSuspendsOnApprovalThenResumes(t *testing.T) {
	subgraphs := map[domain.Name]domain.Subgraph{
		domain.Task: func(_ context.Context, in domain.Input) (domain.Result, error) {
			if in.ApprovalDecision != nil {
				return domain.Result{Response: "Task created"}, nil
			}
			return domain.Result{
				RequiresApproval: true,
				ApprovalRequest:  &domain.ApprovalRequest{ActionID: "a1", Domain: domain.Task, Action: "create_task", Preview: "Create task X"},
			}, nil
		},
	}
	c, _, _ := newTestCoordinator(subgraphs)
	eng := inmem.New()
	require.NoError(t, c.RegisterWorkflow(context.Background(), eng, "coordinator"))

	handle, err := eng.StartWorkflow(context.Background(), engine.WorkflowStartRequest{
		ID:       "sess1:org1:turn1",
		Workflow: WorkflowName,
		Input: TurnInput{
			SessionID: "sess1", OrgID: "org1", ThreadID: "sess1:org1",
			Messages: []domain.Message{{Role: "user", Text: "add a task"}},
		},
	})
	require.NoError(t, err)

	var out TurnOutput
	require.NoError(t, handle.Wait(context.Background(), &out))
	require.NotNil(t, out.Interrupt)
	require.Len(t, out.Interrupt.Requests, 1)

	resumeHandle, err := eng.StartWorkflow(context.Background(), engine.WorkflowStartRequest{
		ID:       "sess1:org1:turn2",
		Workflow: WorkflowName,
		Input: TurnInput{
			SessionID: "sess1", OrgID: "org1", ThreadID: "sess1:org1",
			Decisions: interrupt.Decisions{
				"a1": {ActionID: "a1", Approved: true},
			},
		},
	})
	require.NoError(t, err)

	var resumed TurnOutput
	require.NoError(t, resumeHandle.Wait(context.Background(), &resumed))
	require.Nil(t, resumed.Interrupt)
	require.Contains(t, resumed.FinalResponse, "Task created")
}
