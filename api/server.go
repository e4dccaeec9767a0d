// Package api wires the HTTP surface spec.md's external interfaces section
// defines onto the Coordinator engine, credential refresher, and transport
// layer, replacing the re-architecture notes' "globals/singletons" with a
// single explicit Runtime constructed once per process.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/nexacrm/coordinator/checkpoint"
	"github.com/nexacrm/coordinator/credential"
	"github.com/nexacrm/coordinator/crm"
	"github.com/nexacrm/coordinator/engine"
	"github.com/nexacrm/coordinator/memory"
	"github.com/nexacrm/coordinator/ratelimit"
	"github.com/nexacrm/coordinator/session"
	"github.com/nexacrm/coordinator/telemetry"
	"github.com/nexacrm/coordinator/transport"
)

// Runtime bundles every dependency the HTTP handlers need, constructed
// once at process start and passed explicitly to the router rather than
// held in package-level variables.
type Runtime struct {
	Engine          engine.Engine
	TaskQueue       string
	Checkpoints     checkpoint.Store
	CredentialStore credential.Store
	Credentials     *credential.Refresher
	Exchanger       credential.Exchanger
	CRM         *crm.Client
	Memory      *memory.Client
	RateLimit   *ratelimit.Limiter
	Hub         *transport.Hub
	Pull        *transport.Store
	Logger      telemetry.Logger
	Metrics     telemetry.Metrics

	// MetricsHandler serves the Prometheus exposition format at
	// /api/metrics. Nil disables the endpoint (it reports disabled rather
	// than erroring), which is the default for tests and deployments that
	// haven't enabled telemetry.NewPrometheusMetrics.
	MetricsHandler http.Handler

	// OAuthAuthorizeURL builds the provider redirect target for a given
	// state token.
	OAuthAuthorizeURL func(state string) string

	// NewThreadID derives a thread id for a fresh conversation from the
	// session and org. Exposed as a field so tests can supply a
	// deterministic generator.
	NewThreadID func(sessionID, orgID string) string

	// Sessions persists the session-to-thread association durably. When
	// nil, Runtime falls back to an in-process map, which is fine for
	// tests and single-process deployments but does not survive restarts.
	Sessions session.Store

	threadsMu sync.Mutex
	threads   map[string]string // session_id -> last-used thread_id
}

// rememberThread records the thread id most recently used by sessionID, so
// /api/reset-conversation (which only receives a session_id) knows which
// checkpoint lineage to wipe.
func (rt *Runtime) rememberThread(ctx context.Context, sessionID, threadID string) {
	if rt.Sessions != nil {
		if err := rt.Sessions.Touch(ctx, sessionID, threadID); err == nil {
			return
		}
		// Fall through to the in-process map on a store error so a
		// degraded session backend never blocks a turn from completing.
	}
	rt.threadsMu.Lock()
	defer rt.threadsMu.Unlock()
	if rt.threads == nil {
		rt.threads = make(map[string]string)
	}
	rt.threads[sessionID] = threadID
}

func (rt *Runtime) threadFor(ctx context.Context, sessionID string) (string, bool) {
	if rt.Sessions != nil {
		if id, ok, err := rt.Sessions.ThreadFor(ctx, sessionID); err == nil {
			return id, ok
		}
	}
	rt.threadsMu.Lock()
	defer rt.threadsMu.Unlock()
	id, ok := rt.threads[sessionID]
	return id, ok
}

// NewRouter builds the chi router for every endpoint in the external
// interfaces table.
func NewRouter(rt *Runtime) http.Handler {
	if rt.NewThreadID == nil {
		rt.NewThreadID = func(sessionID, orgID string) string { return sessionID + ":" + orgID }
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/auth/start", rt.handleAuthStart)
	r.Get("/auth/callback", rt.handleAuthCallback)
	r.Get("/auth/status", rt.handleAuthStatus)

	r.Get("/api/orgs", rt.handleListOrgs)

	r.Post("/api/agent/execute", rt.handleExecute)
	r.Post("/api/agent/approve", rt.handleApprove)
	r.Post("/api/agent/resolve-contact", rt.handleResolveContact)

	r.Post("/api/interrupts/poll", rt.handleInterruptPoll)
	r.Post("/api/interrupts/acknowledge", rt.handleInterruptAcknowledge)
	r.Post("/api/interrupts/approve", rt.handleInterruptApprove)

	r.Post("/api/reset-conversation", rt.handleResetConversation)

	r.Get("/health", rt.handleHealth)
	r.Get("/api/health/memory", rt.handleHealthMemory)
	r.Get("/api/metrics", rt.handleMetrics)

	r.Get("/ws", rt.handleWebsocket)

	return r
}

// checkRateLimit applies the per-session budget to sessionID, writing a 429
// and returning false if it is exceeded. Handlers call this once they know
// the session id, since most endpoints carry it in a JSON body rather than
// a query string.
func (rt *Runtime) checkRateLimit(w http.ResponseWriter, sessionID string) bool {
	if rt.RateLimit == nil || sessionID == "" {
		return true
	}
	if rt.RateLimit.Allow(sessionID) {
		return true
	}
	writeRateLimited(w, time.Minute/ratelimit.PerMinute)
	return false
}

func newStateToken() string {
	return uuid.NewString()
}
