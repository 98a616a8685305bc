package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the service configuration.
type Config struct {
	Port string

	// Auth
	APIKey string

	// Completion backend
	LLMProvider      string
	AnthropicAPIKey  string
	AnthropicModel   string
	AnthropicBaseURL string
	OpenAIAPIKey     string
	OpenAIModel      string
	OpenAIBaseURL    string

	// Storage
	DatabasePath string

	// Extraction config overrides
	ExtractionConfigDir string
	DefaultDomain       string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	StatsWindow time.Duration
}

// Providers for LLMProvider.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// settings maps config keys to their accepted environment variables and
// defaults. EDUGEST_-prefixed names win over the plain ones.
var settings = []struct {
	key      string
	envs     []string
	fallback any
}{
	{"port", []string{"EDUGEST_PORT", "PORT"}, "8090"},
	{"api_key", []string{"EDUGEST_API_KEY"}, ""},
	{"llm_provider", []string{"EDUGEST_LLM_PROVIDER", "LLM_PROVIDER"}, ProviderAnthropic},
	{"anthropic_api_key", []string{"EDUGEST_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"}, ""},
	{"anthropic_model", []string{"EDUGEST_ANTHROPIC_MODEL", "ANTHROPIC_MODEL"}, "claude-sonnet-4-5-20250929"},
	{"anthropic_base_url", []string{"EDUGEST_ANTHROPIC_BASE_URL", "ANTHROPIC_BASE_URL"}, ""},
	{"openai_api_key", []string{"EDUGEST_OPENAI_API_KEY", "OPENAI_API_KEY"}, ""},
	{"openai_model", []string{"EDUGEST_OPENAI_MODEL", "OPENAI_MODEL"}, "gpt-4o-mini"},
	{"openai_base_url", []string{"EDUGEST_OPENAI_BASE_URL", "OPENAI_BASE_URL"}, ""},
	{"database_path", []string{"EDUGEST_DATABASE_PATH", "DATABASE_PATH"}, "edugest.db"},
	{"extraction_config_dir", []string{"EDUGEST_EXTRACTION_CONFIG_DIR", "EXTRACTION_CONFIG_DIR"}, ""},
	{"default_domain", []string{"EDUGEST_DEFAULT_DOMAIN", "DEFAULT_DOMAIN"}, ""},
	{"worker_count", []string{"EDUGEST_WORKER_COUNT", "WORKER_COUNT"}, 4},
	{"max_queue_size", []string{"EDUGEST_MAX_QUEUE_SIZE", "MAX_QUEUE_SIZE"}, 100},
	{"max_upload_bytes", []string{"EDUGEST_MAX_UPLOAD_BYTES", "MAX_UPLOAD_BYTES"}, int64(52428800)}, // 50MB
	{"job_ttl", []string{"EDUGEST_JOB_TTL", "JOB_TTL"}, time.Hour},
	{"stats_window", []string{"EDUGEST_STATS_WINDOW", "STATS_WINDOW"}, time.Hour},
}

// Bind registers defaults and environment bindings on v. Call it before
// reading a config file so file values sit between defaults and env.
func Bind(v *viper.Viper) {
	for _, s := range settings {
		v.SetDefault(s.key, s.fallback)
		_ = v.BindEnv(append([]string{s.key}, s.envs...)...)
	}
}

// Load reads the service configuration from v, falling back to the
// defaults for non-positive numeric values.
func Load(v *viper.Viper) Config {
	Bind(v)

	cfg := Config{
		Port:   v.GetString("port"),
		APIKey: v.GetString("api_key"),

		LLMProvider:      v.GetString("llm_provider"),
		AnthropicAPIKey:  v.GetString("anthropic_api_key"),
		AnthropicModel:   v.GetString("anthropic_model"),
		AnthropicBaseURL: v.GetString("anthropic_base_url"),
		OpenAIAPIKey:     v.GetString("openai_api_key"),
		OpenAIModel:      v.GetString("openai_model"),
		OpenAIBaseURL:    v.GetString("openai_base_url"),

		DatabasePath: v.GetString("database_path"),

		ExtractionConfigDir: v.GetString("extraction_config_dir"),
		DefaultDomain:       v.GetString("default_domain"),

		WorkerCount:  v.GetInt("worker_count"),
		MaxQueueSize: v.GetInt("max_queue_size"),

		MaxUploadBytes: v.GetInt64("max_upload_bytes"),

		JobTTL:      v.GetDuration("job_ttl"),
		StatsWindow: v.GetDuration("stats_window"),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = time.Hour
	}
	if cfg.StatsWindow <= 0 {
		cfg.StatsWindow = time.Hour
	}

	return cfg
}

// Validate checks the settings needed to call the completion backend.
func (c Config) Validate() error {
	switch c.LLMProvider {
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required")
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	return nil
}

// ValidateServer additionally requires the API key guarding the HTTP surface.
func (c Config) ValidateServer() error {
	if c.APIKey == "" {
		return fmt.Errorf("EDUGEST_API_KEY is required")
	}
	return c.Validate()
}
