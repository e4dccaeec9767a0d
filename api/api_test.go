package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	checkpointinmem "github.com/nexacrm/coordinator/checkpoint/inmem"
	"github.com/nexacrm/coordinator/coordinator"
	"github.com/nexacrm/coordinator/credential"
	"github.com/nexacrm/coordinator/domain"
	"github.com/nexacrm/coordinator/engine/inmem"
	"github.com/nexacrm/coordinator/planner"
	"github.com/nexacrm/coordinator/ratelimit"
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

func newTestRuntime(t *testing.T, subgraphs map[domain.Name]domain.Subgraph) *Runtime {
	t.Helper()
	credStore := &fakeCredStore{creds: map[string]credential.Credential{
		"sess1": {SessionID: "sess1", Token: "tok", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	refresher := credential.NewRefresher(credStore, fakeExchanger{}, nil)
	cps := checkpointinmem.New()
	coord := coordinator.New(subgraphs, refresher, nil, cps, nil, nil)
	coord.Plan = func(query string, _ *planner.MemoryContext) (*planner.Plan, error) {
		return &planner.Plan{Parallel: []planner.Domain{planner.DomainTask}}, nil
	}
	eng := inmem.New()
	require.NoError(t, coord.RegisterWorkflow(context.Background(), eng, "coordinator"))

	return &Runtime{
		Engine:          eng,
		TaskQueue:       "coordinator",
		Checkpoints:     cps,
		CredentialStore: credStore,
		Credentials:     refresher,
		Exchanger:       fakeExchanger{},
		RateLimit:       ratelimit.New(time.Minute),
	}
}

func postJSON(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestExecuteRejectsMissingSessionID(t *testing.T) {
	rt := newTestRuntime(t, nil)
	r := NewRouter(rt)
	rec := postJSON(t, r, "/api/agent/execute", map[string]any{"query": "hi", "org_id": "org1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExecuteRejectsQueryTooLong(t *testing.T) {
	rt := newTestRuntime(t, nil)
	r := NewRouter(rt)
	longQuery := make([]byte, 2001)
	for i := range longQuery {
		longQuery[i] = 'a'
	}
	rec := postJSON(t, r, "/api/agent/execute", map[string]any{
		"query": string(longQuery), "session_id": "sess1", "org_id": "org1",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExecuteCompletesWithoutApproval(t *testing.T) {
	subgraphs := map[domain.Name]domain.Subgraph{
		domain.Task: func(context.Context, domain.Input) (domain.Result, error) {
			return domain.Result{Response: "3 tasks due today"}, nil
		},
	}
	rt := newTestRuntime(t, subgraphs)
	r := NewRouter(rt)

	rec := postJSON(t, r, "/api/agent/execute", map[string]any{
		"query": "what are my tasks", "session_id": "sess1", "org_id": "org1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var out turnResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "COMPLETED", out.Status)
	require.Contains(t, out.Response, "3 tasks due today")
}

func TestExecuteSuspendsThenApproveResumes(t *testing.T) {
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
	rt := newTestRuntime(t, subgraphs)
	r := NewRouter(rt)

	rec := postJSON(t, r, "/api/agent/execute", map[string]any{
		"query": "add a task", "session_id": "sess1", "org_id": "org1",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var pending turnResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pending))
	require.Equal(t, "PENDING_APPROVAL", pending.Status)
	require.NotEmpty(t, pending.ThreadID)

	approveRec := postJSON(t, r, "/api/agent/approve", map[string]any{
		"session_id": "sess1", "org_id": "org1", "thread_id": pending.ThreadID,
		"approvals": map[string]any{"a1": map[string]any{"approved": true}},
	})
	require.Equal(t, http.StatusOK, approveRec.Code)

	var resumed turnResponse
	require.NoError(t, json.Unmarshal(approveRec.Body.Bytes(), &resumed))
	require.Equal(t, "COMPLETED", resumed.Status)
	require.Contains(t, resumed.Response, "Task created")
}

func TestApproveOnUnknownThreadReportsSessionUnrecoverable(t *testing.T) {
	rt := newTestRuntime(t, nil)
	r := NewRouter(rt)
	rec := postJSON(t, r, "/api/agent/approve", map[string]any{
		"session_id": "sess1", "org_id": "org1", "thread_id": "ghost-thread",
		"approvals": map[string]any{"a1": map[string]any{"approved": true}},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestResetConversationWithoutPriorTurnIsANoop(t *testing.T) {
	rt := newTestRuntime(t, nil)
	r := NewRouter(rt)
	rec := postJSON(t, r, "/api/reset-conversation", map[string]any{"session_id": "sess1"})
	require.Equal(t, http.StatusOK, rec.Code)
}
