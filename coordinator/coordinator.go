// Package coordinator implements the Coordinator graph: the stateful
// orchestrator that turns one user turn into a coordinated run of domain
// subgraphs, consolidating any human-approval needs into a single
// interrupt and resuming from a checkpoint once a decision arrives.
//
// Each turn maps to one engine workflow execution. A turn that needs human
// input does not block inside that execution waiting for a reply — per
// the spec's resume contract, it persists a checkpoint and returns a
// Suspend outcome; the next turn (carrying the client's decision) starts a
// fresh execution that loads that checkpoint and continues. Nothing about
// this package blocks a goroutine on a signal across HTTP requests.
package coordinator

import (
	"context"
	"fmt"

	"github.com/nexacrm/coordinator/checkpoint"
	"github.com/nexacrm/coordinator/credential"
	"github.com/nexacrm/coordinator/domain"
	"github.com/nexacrm/coordinator/engine"
	"github.com/nexacrm/coordinator/interrupt"
	"github.com/nexacrm/coordinator/memory"
	"github.com/nexacrm/coordinator/planner"
	"github.com/nexacrm/coordinator/telemetry"
)

// WorkflowName is the name this package registers its workflow under.
const WorkflowName = "coordinator_turn"

// TurnInput is what the API layer hands the Coordinator for one turn: a
// fresh query, or a resume carrying decisions for a prior interrupt.
type TurnInput struct {
	SessionID string
	OrgID     string
	UserID    string
	ThreadID  string
	Timezone  string
	Messages  []domain.Message
	Decisions interrupt.Decisions
}

// TurnOutput is what one turn produces: either a completed response or a
// suspended interrupt, never both.
type TurnOutput struct {
	FinalResponse  string
	Entities       []domain.Entity
	Domains        []string
	Interrupt      *interrupt.Interrupt
	RequiresReauth bool
}

// Coordinator holds every dependency the graph's nodes call out to.
// Subgraphs are keyed by the domain name the planner can produce.
type Coordinator struct {
	Subgraphs   map[domain.Name]domain.Subgraph
	Credentials *credential.Refresher
	Memory      *memory.Client
	Checkpoints checkpoint.Store
	Logger      telemetry.Logger
	Metrics     telemetry.Metrics

	// Plan is the planner entry point, a field rather than a direct
	// package call so tests can substitute a deterministic stub plan.
	Plan func(query string, mem *planner.MemoryContext) (*planner.Plan, error)
}

// New builds a Coordinator, defaulting Plan to planner.Plan.
func New(subgraphs map[domain.Name]domain.Subgraph, credentials *credential.Refresher, mem *memory.Client, checkpoints checkpoint.Store, logger telemetry.Logger, metrics telemetry.Metrics) *Coordinator {
	return &Coordinator{
		Subgraphs:   subgraphs,
		Credentials: credentials,
		Memory:      mem,
		Checkpoints: checkpoints,
		Logger:      logger,
		Metrics:     metrics,
		Plan:        planner.Plan,
	}
}

// RegisterWorkflow registers the Coordinator's turn handler with eng under
// WorkflowName.
func (c *Coordinator) RegisterWorkflow(ctx context.Context, eng engine.Engine, taskQueue string) error {
	return eng.RegisterWorkflow(ctx, engine.WorkflowDefinition{
		Name:      WorkflowName,
		TaskQueue: taskQueue,
		Handler: func(wfCtx engine.WorkflowContext, input any) (any, error) {
			in, ok := input.(TurnInput)
			if !ok {
				return nil, fmt.Errorf("coordinator: unexpected input type %T", input)
			}
			return c.RunTurn(wfCtx, in)
		},
	})
}

// RunTurn executes the graph's node sequence for one turn.
func (c *Coordinator) RunTurn(wfCtx engine.WorkflowContext, in TurnInput) (TurnOutput, error) {
	ctx := wfCtx.Context()
	st := newState(in)

	resuming := len(in.Decisions) > 0
	if resuming {
		if err := c.loadCheckpoint(ctx, st); err != nil {
			st.Error = fmt.Sprintf("resume failed: %v", err)
			return c.handleError(ctx, st), nil
		}
	}

	c.recallMemory(ctx, st)

	if !resuming {
		if err := c.routeDomains(st); err != nil {
			st.Error = err.Error()
			return c.handleError(ctx, st), nil
		}
	}

	out, requiresReauth := c.executeSubgraphs(wfCtx, st, in.Decisions, resuming)
	if requiresReauth {
		return TurnOutput{RequiresReauth: true}, nil
	}
	if out != nil {
		return *out, nil
	}

	return c.finalizeResponse(ctx, st), nil
}

func (c *Coordinator) logInfo(ctx context.Context, msg string, kv ...any) {
	if c.Logger != nil {
		c.Logger.Info(ctx, msg, kv...)
	}
}

func (c *Coordinator) logWarn(ctx context.Context, msg string, kv ...any) {
	if c.Logger != nil {
		c.Logger.Warn(ctx, msg, kv...)
	}
}
