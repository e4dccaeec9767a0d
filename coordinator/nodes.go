package coordinator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nexacrm/coordinator/crm"
	"github.com/nexacrm/coordinator/domain"
	"github.com/nexacrm/coordinator/engine"
	"github.com/nexacrm/coordinator/interrupt"
	"github.com/nexacrm/coordinator/memory"
	"github.com/nexacrm/coordinator/planner"
)

// recallMemory is best-effort and never blocks the turn on failure; the
// memory.Client itself owns the timeout and circuit breaker.
func (c *Coordinator) recallMemory(ctx context.Context, st *state) {
	if c.Memory == nil {
		return
	}
	query := latestUserText(st.Messages)
	st.MemoryContext = c.Memory.Recall(ctx, st.SessionID, query)
}

// routeDomains invokes the planner and stores its plan and entities onto
// state. A planner error routes the turn to handle_error.
func (c *Coordinator) routeDomains(st *state) error {
	query := latestUserText(st.Messages)

	var memHints *planner.MemoryContext
	if len(st.MemoryContext.Items) > 0 {
		hints := map[string]float64{}
		for _, item := range st.MemoryContext.Items {
			hints[item.Text] = item.Relevance
		}
		memHints = &planner.MemoryContext{RecencyHints: hints}
	}

	plan, err := c.Plan(query, memHints)
	if err != nil {
		return fmt.Errorf("planner: %w", err)
	}
	st.Plan = plan

	for _, e := range plan.Analysis.Entities {
		st.Entities = append(st.Entities, domain.Entity{
			Type:     e.Type,
			Value:    e.Value,
			Category: string(e.Category),
			Position: e.Position,
		})
	}
	return nil
}

// executeSubgraphs is the central engine: it validates the session,
// acquires a CRM credential up front, runs the parallel batch then the
// sequential steps (or, on resume, re-runs only the domains awaiting a
// decision), and collects any approvals into state.Pending. It returns a
// non-nil *TurnOutput when the turn is suspending or failing outright, and
// requiresReauth when the credential store could not produce a token —
// per spec.md §4.6 step 2, acquisition happens before any subgraph runs,
// not lazily inside one.
func (c *Coordinator) executeSubgraphs(wfCtx engine.WorkflowContext, st *state, decisions interrupt.Decisions, resuming bool) (*TurnOutput, bool) {
	ctx := wfCtx.Context()

	if st.SessionID == "" || st.OrgID == "" {
		st.Error = "missing session or organization id"
		out := c.handleError(ctx, st)
		return &out, false
	}

	hasWork := st.Plan != nil || (resuming && st.Pending != nil)
	if !hasWork {
		return nil, false
	}

	token, err := c.acquireToken(ctx, st.SessionID)
	if err != nil {
		c.logWarn(ctx, "[COORDINATOR:execute_subgraphs] credential acquisition failed", "error", err.Error())
		return nil, true
	}
	getToken := func(context.Context) (string, error) { return token, nil }

	if resuming && st.Pending != nil {
		for domainName, decision := range decisionsFor(st.Pending, decisions) {
			in := c.inputFor(st, domainName, getToken, &decision)
			result := c.invokeSubgraph(ctx, domainName, in)
			st.Results[domainName] = result
		}
		// Approved/rejected domains are resolved; nothing further to
		// collect this round since re-entry never reopens new approvals
		// for the same batch.
		for name, result := range st.Results {
			result.RequiresApproval = false
			st.Results[name] = result
		}
		st.Pending = nil
		return nil, false
	}

	if st.Plan == nil {
		return nil, false
	}

	// Parallel batch: settle-all, no peer is cancelled by another's error.
	if len(st.Plan.Parallel) > 0 {
		var wg sync.WaitGroup
		var mu sync.Mutex
		for _, d := range st.Plan.Parallel {
			d := d
			wg.Add(1)
			go func() {
				defer wg.Done()
				in := c.inputFor(st, d, getToken, nil)
				result := c.invokeSubgraph(ctx, d, in)
				mu.Lock()
				st.Results[d] = result
				st.Entities = append(st.Entities, result.Entities...)
				mu.Unlock()
			}()
		}
		wg.Wait()
	}

	// Sequential steps, honoring depends_on order (the planner already
	// sorted st.Plan.Sequential into a satisfiable order).
	for _, step := range st.Plan.Sequential {
		deps := map[domain.Name]domain.Result{}
		for _, dep := range step.DependsOn {
			if r, ok := st.Results[domain.Name(dep)]; ok {
				deps[domain.Name(dep)] = r
			}
		}
		in := c.inputFor(st, domain.Name(step.Domain), getToken, nil)
		in.Dependencies = deps
		result := c.invokeSubgraph(ctx, domain.Name(step.Domain), in)
		st.Results[domain.Name(step.Domain)] = result
		st.Entities = append(st.Entities, result.Entities...)
	}

	// Approval collection.
	var requests []interrupt.ApprovalRequest
	var domains []domain.Name
	for name, result := range st.Results {
		if result.RequiresApproval && result.ApprovalRequest != nil {
			domains = append(domains, name)
			requests = append(requests, interrupt.ApprovalRequest{
				ActionID: result.ApprovalRequest.ActionID,
				Domain:   string(result.ApprovalRequest.Domain),
				Action:   result.ApprovalRequest.Action,
				Preview:  result.ApprovalRequest.Preview,
				Data:     result.ApprovalRequest.Data,
			})
		}
	}
	sort.Slice(domains, func(i, j int) bool { return domains[i] < domains[j] })

	outcome := c.approvalHandler(ctx, wfCtx, st, requests, domains)
	if !outcome.IsSuspend() {
		return nil, false
	}
	return &TurnOutput{Interrupt: outcome.Payload}, false
}

// approvalHandler is the single point where the turn suspends. It returns
// an interrupt.NodeOutcome rather than a TurnOutput directly: Complete when
// this batch raised no approval requests, so the caller falls through to
// finalize_response; Suspend, carrying the consolidated interrupt, once it
// has persisted a checkpoint a later resume can reload st.Pending from.
func (c *Coordinator) approvalHandler(ctx context.Context, wfCtx engine.WorkflowContext, st *state, requests []interrupt.ApprovalRequest, domains []domain.Name) interrupt.NodeOutcome {
	if len(requests) == 0 {
		return interrupt.Complete(nil)
	}
	st.Pending = &pendingApproval{
		Domains:  domains,
		Results:  cloneResults(st.Results),
		Requests: requests,
	}
	i := interrupt.Consolidate(st.SessionID, st.ThreadID, st.Pending.Requests, wfCtx.Now())
	if err := c.saveCheckpoint(ctx, st); err != nil {
		c.logWarn(ctx, "[COORDINATOR:approval_handler] checkpoint write failed", "error", err.Error())
	}
	return interrupt.Suspend(i)
}

// finalize_response aggregates every domain result into one user-visible
// message and fires memory synthesis best-effort.
func (c *Coordinator) finalizeResponse(ctx context.Context, st *state) TurnOutput {
	names := make([]string, 0, len(st.Results))
	for name := range st.Results {
		names = append(names, string(name))
	}
	sort.Strings(names)

	var response string
	for _, name := range names {
		result := st.Results[domain.Name(name)]
		if result.Error != "" {
			response += fmt.Sprintf("%s: Error — %s\n", name, result.Error)
			continue
		}
		if result.Response != "" {
			response += result.Response + "\n"
		} else if len(result.Data) > 0 {
			response += fmt.Sprintf("%s: %v\n", name, result.Data)
		}
	}

	if c.Memory != nil {
		messages := make([]memory.Message, 0, len(st.Messages)+1)
		for _, m := range st.Messages {
			messages = append(messages, memory.Message{Role: m.Role, Text: m.Text})
		}
		messages = append(messages, memory.Message{Role: "assistant", Text: response})
		go c.Memory.Synthesize(context.Background(), st.SessionID, messages)
	}

	return TurnOutput{
		FinalResponse: response,
		Entities:      st.Entities,
		Domains:       names,
	}
}

// handle_error converts state.Error into a user-visible apology; it never
// throws.
func (c *Coordinator) handleError(ctx context.Context, st *state) TurnOutput {
	c.logWarn(ctx, "[COORDINATOR:handle_error]", "error", st.Error)
	return TurnOutput{
		FinalResponse: fmt.Sprintf("Sorry, something went wrong handling that request: %s", st.Error),
	}
}

// acquireToken fetches a usable CRM token for sessionID through the
// credential refresher, refreshing proactively if it's near expiry.
func (c *Coordinator) acquireToken(ctx context.Context, sessionID string) (string, error) {
	if c.Credentials == nil {
		return "", fmt.Errorf("credential: no refresher configured")
	}
	cred, err := c.Credentials.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return cred.Token, nil
}

func (c *Coordinator) inputFor(st *state, d domain.Name, getToken func(context.Context) (string, error), decision *domain.ApprovalDecision) domain.Input {
	return domain.Input{
		Messages: st.Messages,
		MemoryContext: domain.MemoryContext{
			Items: memItemsToDomain(st.MemoryContext),
		},
		Entities:         st.Entities,
		Timezone:         st.Timezone,
		SessionID:        st.SessionID,
		OrgID:            st.OrgID,
		UserID:           st.UserID,
		ThreadID:         st.ThreadID,
		GetToken:         getToken,
		ApprovalDecision: decision,
	}
}

func (c *Coordinator) invokeSubgraph(ctx context.Context, d domain.Name, in domain.Input) domain.Result {
	sg, ok := c.Subgraphs[d]
	if !ok {
		return domain.Result{Error: fmt.Sprintf("no subgraph registered for domain %q", d)}
	}
	// Stamped onto ctx (rather than threaded through every CRMClient method
	// signature) so crm.Client.call can reactively force-refresh the
	// session's credential on a 401 without every domain adapter knowing
	// about the credential store.
	ctx = crm.WithSessionID(ctx, in.SessionID)
	result, err := sg(ctx, in)
	if err != nil {
		return domain.Result{Error: err.Error()}
	}
	return result
}

func decisionsFor(p *pendingApproval, decisions interrupt.Decisions) map[domain.Name]domain.ApprovalDecision {
	byDomain := map[domain.Name]domain.ApprovalDecision{}
	for _, req := range p.Requests {
		dec, ok := decisions[req.ActionID]
		if !ok {
			continue
		}
		byDomain[domain.Name(req.Domain)] = domain.ApprovalDecision{
			ActionID:  dec.ActionID,
			Approved:  dec.Approved,
			Selection: dec.Selection,
		}
	}
	return byDomain
}

func cloneResults(results map[domain.Name]domain.Result) map[domain.Name]domain.Result {
	out := make(map[domain.Name]domain.Result, len(results))
	for k, v := range results {
		out[k] = v
	}
	return out
}

func memItemsToDomain(ctx memory.Context) []domain.MemoryItem {
	out := make([]domain.MemoryItem, 0, len(ctx.Items))
	for _, item := range ctx.Items {
		out = append(out, domain.MemoryItem{Text: item.Text, Relevance: item.Relevance, Metadata: item.Metadata})
	}
	return out
}

func latestUserText(messages []domain.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Text
		}
	}
	return ""
}
