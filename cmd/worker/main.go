// Command worker registers the coordinator workflow and runs the Temporal
// worker loop that actually executes turns. cmd/server only starts
// workflow executions; this process is where they run.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.temporal.io/sdk/client"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	checkpointmongo "github.com/nexacrm/coordinator/checkpoint/mongo"
	"github.com/nexacrm/coordinator/config"
	"github.com/nexacrm/coordinator/coordinator"
	"github.com/nexacrm/coordinator/credential"
	credentialmongo "github.com/nexacrm/coordinator/credential/mongo"
	"github.com/nexacrm/coordinator/credential/oauth"
	"github.com/nexacrm/coordinator/crm"
	"github.com/nexacrm/coordinator/domain"
	"github.com/nexacrm/coordinator/domain/calendar"
	"github.com/nexacrm/coordinator/domain/contact"
	"github.com/nexacrm/coordinator/domain/task"
	"github.com/nexacrm/coordinator/domain/workflow"
	"github.com/nexacrm/coordinator/engine/temporal"
	"github.com/nexacrm/coordinator/memory"
	"github.com/nexacrm/coordinator/memory/httpservice"
	"github.com/nexacrm/coordinator/telemetry"
)

const (
	mongoDatabase  = "coordinator"
	extractorModel = "claude-haiku-4-5"
)

func main() {
	cfg, err := config.Load(os.Getenv("DEPLOY_CONFIG_PATH"))
	if err != nil {
		log.Fatalf("[WORKER:init] config load failed: %v", err)
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
	if err != nil {
		log.Fatalf("[WORKER:init] mongo connect: %v", err)
	}

	credStore, err := credentialmongo.New(ctx, credentialmongo.Options{Client: mongoClient, Database: mongoDatabase})
	if err != nil {
		log.Fatalf("[WORKER:init] credential store: %v", err)
	}
	checkpoints, err := checkpointmongo.New(ctx, checkpointmongo.Options{Client: mongoClient, Database: mongoDatabase})
	if err != nil {
		log.Fatalf("[WORKER:init] checkpoint store: %v", err)
	}

	exchanger := oauth.New(cfg.BaseURL, cfg.ClientID, cfg.ClientSecret, nil)
	refresher := credential.NewRefresher(credStore, exchanger, logger)

	crmClient, err := crm.New(crm.Options{BaseURL: cfg.BaseURL, Logger: logger, Refresher: refresher})
	if err != nil {
		log.Fatalf("[WORKER:init] crm client: %v", err)
	}

	var mem *memory.Client
	if cfg.MemoryEnabled() {
		svc := httpservice.New(httpservice.Options{BaseURL: cfg.BaseURL, APIKey: cfg.MemoryAPIKey})
		mem = memory.New(memory.Options{Service: svc})
	}

	subgraphs := map[domain.Name]domain.Subgraph{
		domain.Contact:  contact.Subgraph(contactExtractor(cfg), &contact.CRMSearcher{Client: crmClient}),
		domain.Calendar: calendar.Subgraph(&calendar.CRMClient{Client: crmClient}, "UTC"),
		domain.Task:     task.Subgraph(&task.CRMClient{Client: crmClient}, "UTC"),
		domain.Workflow: workflow.Subgraph(workflowParser(cfg), &workflow.CRMClient{Client: crmClient}),
	}

	coord := coordinator.New(subgraphs, refresher, mem, checkpoints, logger, nil)

	eng, err := temporal.New(temporal.Options{
		ClientOptions: &client.Options{HostPort: client.DefaultHostPort},
		WorkerOptions: temporal.WorkerOptions{TaskQueue: cfg.Deploy.TaskQueue},
		Logger:        logger,
	})
	if err != nil {
		log.Fatalf("[WORKER:init] temporal client: %v", err)
	}
	defer eng.Close()

	if err := coord.RegisterWorkflow(ctx, eng, cfg.Deploy.TaskQueue); err != nil {
		log.Fatalf("[WORKER:init] register workflow: %v", err)
	}

	eng.Worker().Start()
	log.Printf("[WORKER:listen] polling task queue %q", cfg.Deploy.TaskQueue)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	eng.Worker().Stop()
}

func contactExtractor(cfg config.Config) contact.Extractor {
	if cfg.AnthropicAPIKey == "" {
		return contact.NewRegexExtractor()
	}
	ac := sdk.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey))
	return contact.NewLLMExtractor(&ac.Messages, extractorModel)
}

func workflowParser(cfg config.Config) workflow.StepParser {
	if cfg.AnthropicAPIKey == "" {
		return workflow.NewHeuristicParser()
	}
	ac := sdk.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey))
	return workflow.NewLLMParser(&ac.Messages, extractorModel)
}
