package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgallion1/edugest/internal/classify"
	"github.com/dgallion1/edugest/internal/config"
	"github.com/dgallion1/edugest/internal/extract"
	"github.com/dgallion1/edugest/internal/llm"
	"github.com/dgallion1/edugest/internal/pipeline"
	"github.com/dgallion1/edugest/internal/segment"
	"github.com/dgallion1/edugest/internal/store"
)

// app holds the components every command shares.
type app struct {
	cfg     config.Config
	log     *slog.Logger
	store   *store.Store
	stats   *llm.LLMStats
	gateway *llm.Gateway
	configs *config.ExtractionStore
	model   string
	closers []func()
}

// newApp loads configuration and wires the gateway. The store is opened
// unless noStore is set; the gateway records calls into it when open.
func newApp(cmd *cobra.Command, noStore bool) (*app, error) {
	a := &app{
		cfg: config.Load(viper.GetViper()),
		log: newLogger(cmd),
	}
	if err := a.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	configs, err := config.NewExtractionStore(a.cfg.ExtractionConfigDir)
	if err != nil {
		return nil, err
	}
	a.configs = configs

	var recorder llm.CallRecorder
	if !noStore {
		st, err := store.Open(a.cfg.DatabasePath, a.log)
		if err != nil {
			return nil, err
		}
		a.store = st
		a.closers = append(a.closers, func() { st.Close() })
		recorder = st
	}

	completer, err := a.completer()
	if err != nil {
		a.close()
		return nil, err
	}
	a.stats = llm.NewLLMStats(a.cfg.StatsWindow)
	a.gateway = llm.NewGateway(completer, a.stats, recorder, a.log)
	return a, nil
}

func (a *app) completer() (llm.Completer, error) {
	switch a.cfg.LLMProvider {
	case config.ProviderAnthropic:
		c := llm.NewClaudeClient(a.cfg.AnthropicAPIKey, a.cfg.AnthropicModel, a.cfg.AnthropicBaseURL)
		a.closers = append(a.closers, c.Close)
		a.model = a.cfg.AnthropicModel
		return c, nil
	case config.ProviderOpenAI:
		c := llm.NewOpenAIClient(a.cfg.OpenAIAPIKey, a.cfg.OpenAIModel, a.cfg.OpenAIBaseURL)
		a.closers = append(a.closers, c.Close)
		a.model = a.cfg.OpenAIModel
		return c, nil
	}
	return nil, fmt.Errorf("unknown LLM_PROVIDER %q", a.cfg.LLMProvider)
}

// deps wires the ingest pipeline onto the shared gateway.
func (a *app) deps() pipeline.Deps {
	d := pipeline.Deps{
		Classifier: classify.New(a.gateway, a.log),
		Segmenter:  segment.New(a.gateway, a.log),
		Extractors: extract.NewRegistry(a.gateway, a.log),
		Configs:    a.configs,
	}
	if a.store != nil {
		d.Corrections = a.store
		d.Store = a.store
	}
	return d
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
