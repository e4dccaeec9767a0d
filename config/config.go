// Package config loads the Coordinator runtime's environment-driven
// configuration, following the pack's godotenv-for-local-dev /
// env-for-production split.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the runtime's resolved configuration, assembled once at process
// start and passed explicitly to every component that needs it (no package
// globals, no singletons).
type Config struct {
	// BaseURL is the domain-API base the crm.Client issues requests against.
	BaseURL string

	// OAuth exchange parameters for the CRM's authorization-code flow.
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// CheckpointDBURL is the Mongo connection string backing the
	// checkpoint, credential, and session-metadata stores.
	CheckpointDBURL string

	// MemoryAPIKey authenticates calls to the external memory service.
	// Memory is disabled entirely when this is empty.
	MemoryAPIKey string

	// AnthropicAPIKey enables the LLM-backed contact extractor and workflow
	// step parser. Absent, the worker falls back to their regex/heuristic
	// counterparts.
	AnthropicAPIKey string

	// UseV2Architecture records USE_V2_ARCHITECTURE (default true). Only the
	// Coordinator graph path exists and nothing reads this flag, so setting
	// it to false changes nothing.
	UseV2Architecture bool

	// TracingEnabled and TracingProject configure the otel exporter.
	TracingEnabled bool
	TracingProject string

	// Deploy holds static deployment settings loaded from YAML, layered
	// under the environment variables above.
	Deploy Deploy
}

// Deploy is the static, rarely-changed portion of configuration: task queue
// names and retry policy settings that operators tune per environment
// without touching env vars. The retry settings are loaded but crm.Client
// does not read them; it applies its own fixed backoff policy.
type Deploy struct {
	TaskQueue    string        `yaml:"task_queue"`
	RetryMaxAttempts int       `yaml:"retry_max_attempts"`
	RetryInitialBackoff time.Duration `yaml:"retry_initial_backoff"`
}

func defaultDeploy() Deploy {
	return Deploy{
		TaskQueue:           "coordinator",
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 500 * time.Millisecond,
	}
}

// Load reads .env (if present, without overwriting already-set variables),
// then resolves Config from the process environment, then layers deployYAMLPath
// on top if it is non-empty and exists.
func Load(deployYAMLPath string) (Config, error) {
	loadDotEnvIfExists(".env")

	cfg := Config{
		BaseURL:           os.Getenv("BASE_URL"),
		ClientID:          os.Getenv("CLIENT_ID"),
		ClientSecret:      os.Getenv("CLIENT_SECRET"),
		RedirectURI:        os.Getenv("REDIRECT_URI"),
		CheckpointDBURL:   os.Getenv("CHECKPOINT_DB_URL"),
		MemoryAPIKey:      os.Getenv("MEMORY_API_KEY"),
		AnthropicAPIKey:   os.Getenv("ANTHROPIC_API_KEY"),
		UseV2Architecture: parseBool(os.Getenv("USE_V2_ARCHITECTURE"), true),
		TracingEnabled:    parseBool(os.Getenv("TRACING_ENABLED"), false),
		TracingProject:    os.Getenv("TRACING_PROJECT"),
		Deploy:            defaultDeploy(),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	if deployYAMLPath == "" {
		return cfg, nil
	}
	if _, err := os.Stat(deployYAMLPath); os.IsNotExist(err) {
		return cfg, nil
	}
	raw, err := os.ReadFile(deployYAMLPath)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading deploy yaml: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg.Deploy); err != nil {
		return Config{}, fmt.Errorf("config: parsing deploy yaml: %w", err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("config: BASE_URL is required")
	}
	if c.CheckpointDBURL == "" {
		return fmt.Errorf("config: CHECKPOINT_DB_URL is required")
	}
	if c.ClientID == "" || c.ClientSecret == "" || c.RedirectURI == "" {
		return fmt.Errorf("config: CLIENT_ID, CLIENT_SECRET, and REDIRECT_URI are required")
	}
	return nil
}

// MemoryEnabled reports whether the memory service should be wired up at
// all; per spec, absence of the API key disables memory rather than erroring.
func (c Config) MemoryEnabled() bool {
	return c.MemoryAPIKey != ""
}

func loadDotEnvIfExists(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	if _, err := os.Stat(abs); os.IsNotExist(err) {
		return
	}
	_ = godotenv.Load(abs)
}

func parseBool(v string, def bool) bool {
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
