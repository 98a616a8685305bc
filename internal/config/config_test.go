package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load(viper.New())
	if cfg.Port != "8090" {
		t.Errorf("expected default port 8090, got %q", cfg.Port)
	}
	if cfg.LLMProvider != ProviderAnthropic {
		t.Errorf("expected anthropic provider, got %q", cfg.LLMProvider)
	}
	if cfg.WorkerCount != 4 || cfg.MaxQueueSize != 100 {
		t.Errorf("unexpected pool defaults: workers=%d queue=%d", cfg.WorkerCount, cfg.MaxQueueSize)
	}
	if cfg.JobTTL != time.Hour {
		t.Errorf("expected 1h job ttl, got %v", cfg.JobTTL)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("EDUGEST_WORKER_COUNT", "7")
	t.Setenv("JOB_TTL", "30m")
	t.Setenv("ANTHROPIC_API_KEY", "plain")
	t.Setenv("EDUGEST_ANTHROPIC_API_KEY", "prefixed")

	cfg := Load(viper.New())
	if cfg.Port != "9000" {
		t.Errorf("expected port from PORT, got %q", cfg.Port)
	}
	if cfg.WorkerCount != 7 {
		t.Errorf("expected 7 workers, got %d", cfg.WorkerCount)
	}
	if cfg.JobTTL != 30*time.Minute {
		t.Errorf("expected 30m ttl, got %v", cfg.JobTTL)
	}
	if cfg.AnthropicAPIKey != "prefixed" {
		t.Errorf("expected prefixed key to win, got %q", cfg.AnthropicAPIKey)
	}
}

func TestLoadClampsNonPositive(t *testing.T) {
	v := viper.New()
	v.Set("worker_count", 0)
	v.Set("max_queue_size", -1)
	cfg := Load(v)
	if cfg.WorkerCount != 4 || cfg.MaxQueueSize != 100 {
		t.Errorf("expected clamped defaults, got workers=%d queue=%d", cfg.WorkerCount, cfg.MaxQueueSize)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		server  bool
		wantErr bool
	}{
		{"anthropic ok", Config{LLMProvider: ProviderAnthropic, AnthropicAPIKey: "k"}, false, false},
		{"anthropic missing key", Config{LLMProvider: ProviderAnthropic}, false, true},
		{"openai ok", Config{LLMProvider: ProviderOpenAI, OpenAIAPIKey: "k"}, false, false},
		{"unknown provider", Config{LLMProvider: "local", AnthropicAPIKey: "k"}, false, true},
		{"server needs api key", Config{LLMProvider: ProviderAnthropic, AnthropicAPIKey: "k"}, true, true},
		{"server ok", Config{APIKey: "s", LLMProvider: ProviderAnthropic, AnthropicAPIKey: "k"}, true, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var err error
			if tc.server {
				err = tc.cfg.ValidateServer()
			} else {
				err = tc.cfg.Validate()
			}
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
