// Command server runs the Coordinator's HTTP API. It starts Temporal
// workflow executions but never registers or runs the coordinator
// workflow itself; cmd/worker owns execution.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/nexacrm/coordinator/api"
	checkpointmongo "github.com/nexacrm/coordinator/checkpoint/mongo"
	"github.com/nexacrm/coordinator/config"
	"github.com/nexacrm/coordinator/credential"
	credentialmongo "github.com/nexacrm/coordinator/credential/mongo"
	"github.com/nexacrm/coordinator/credential/oauth"
	"github.com/nexacrm/coordinator/crm"
	"github.com/nexacrm/coordinator/engine/temporal"
	"github.com/nexacrm/coordinator/interrupt"
	"github.com/nexacrm/coordinator/memory"
	"github.com/nexacrm/coordinator/memory/httpservice"
	"github.com/nexacrm/coordinator/ratelimit"
	sessionmongo "github.com/nexacrm/coordinator/session/mongo"
	"github.com/nexacrm/coordinator/telemetry"
	"github.com/nexacrm/coordinator/transport"
)

const mongoDatabase = "coordinator"

func main() {
	cfg, err := config.Load(os.Getenv("DEPLOY_CONFIG_PATH"))
	if err != nil {
		log.Fatalf("[SERVER:init] config load failed: %v", err)
	}

	logger := telemetry.NewNoopLogger()
	if cfg.TracingEnabled {
		logger = telemetry.NewOtelLogger(func(ctx context.Context, level, msg string, kv ...any) {
			log.Printf("[%s] %s %v", level, msg, kv)
		})
	}

	ctx, cancelInit := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelInit()

	mongoClient, err := mongodriver.Connect(options.Client().ApplyURI(cfg.CheckpointDBURL))
	// v2 driver's Connect no longer takes a context; it only builds the
	// client and starts background topology monitoring.
	if err != nil {
		log.Fatalf("[SERVER:init] mongo connect: %v", err)
	}

	credStore, err := credentialmongo.New(ctx, credentialmongo.Options{Client: mongoClient, Database: mongoDatabase})
	if err != nil {
		log.Fatalf("[SERVER:init] credential store: %v", err)
	}
	checkpoints, err := checkpointmongo.New(ctx, checkpointmongo.Options{Client: mongoClient, Database: mongoDatabase})
	if err != nil {
		log.Fatalf("[SERVER:init] checkpoint store: %v", err)
	}
	sessions, err := sessionmongo.New(ctx, sessionmongo.Options{Client: mongoClient, Database: mongoDatabase})
	if err != nil {
		log.Fatalf("[SERVER:init] session store: %v", err)
	}

	eng, err := temporal.New(temporal.Options{
		ClientOptions:          &client.Options{HostPort: client.DefaultHostPort},
		WorkerOptions:          temporal.WorkerOptions{TaskQueue: cfg.Deploy.TaskQueue},
		DisableWorkerAutoStart: true,
		Logger:                 logger,
	})
	if err != nil {
		log.Fatalf("[SERVER:init] temporal client: %v", err)
	}
	defer eng.Close()

	exchanger := oauth.New(cfg.BaseURL, cfg.ClientID, cfg.ClientSecret, nil)
	refresher := credential.NewRefresher(credStore, exchanger, logger)

	var metrics telemetry.Metrics
	var metricsHandler http.Handler
	if cfg.TracingEnabled {
		m, h, err := telemetry.NewPrometheusMetrics("coordinator")
		if err != nil {
			log.Fatalf("[SERVER:init] prometheus metrics: %v", err)
		}
		metrics, metricsHandler = m, h
	}

	crmClient, err := crm.New(crm.Options{BaseURL: cfg.BaseURL, Logger: logger, Metrics: metrics, Refresher: refresher})
	if err != nil {
		log.Fatalf("[SERVER:init] crm client: %v", err)
	}

	var mem *memory.Client
	if cfg.MemoryEnabled() {
		svc := httpservice.New(httpservice.Options{BaseURL: cfg.BaseURL, APIKey: cfg.MemoryAPIKey})
		mem = memory.New(memory.Options{Service: svc})
	}

	pull, err := transport.NewStore(os.Getenv("REDIS_URL"), logger)
	if err != nil {
		log.Fatalf("[SERVER:init] interrupt store: %v", err)
	}
	hub := transport.NewHub(logger, func(ctx context.Context, sessionID string) (*interrupt.Interrupt, error) {
		i, err := pull.Poll(ctx, sessionID)
		if err == transport.ErrNotPending {
			return nil, nil
		}
		return i, err
	})
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			if err := pull.Sweep(context.Background()); err != nil {
				logger.Warn(context.Background(), "[SERVER:sweep] interrupt sweep failed", "error", err)
			}
		}
	}()

	rt := &api.Runtime{
		Engine:          eng,
		TaskQueue:       cfg.Deploy.TaskQueue,
		Checkpoints:     checkpoints,
		CredentialStore: credStore,
		Credentials:     refresher,
		Exchanger:       exchanger,
		CRM:             crmClient,
		Memory:          mem,
		RateLimit:       ratelimit.New(10 * time.Minute),
		Hub:             hub,
		Pull:            pull,
		Sessions:        sessions,
		Logger:          logger,
		Metrics:         metrics,
		MetricsHandler:  metricsHandler,
		OAuthAuthorizeURL: func(state string) string {
			return cfg.BaseURL + "/oauth/authorize?client_id=" + cfg.ClientID + "&redirect_uri=" + cfg.RedirectURI + "&state=" + state
		},
	}

	srv := &http.Server{
		Addr:    addr(),
		Handler: api.NewRouter(rt),
	}

	go func() {
		log.Printf("[SERVER:listen] listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[SERVER:listen] %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func addr() string {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		return v
	}
	return ":8080"
}
