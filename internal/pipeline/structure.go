package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/edugest/internal/llm"
	"github.com/dgallion1/edugest/internal/pyramid"
	"github.com/dgallion1/edugest/internal/store"
)

// FactStore is what structuring reads from and writes to.
type FactStore interface {
	GetSource(ctx context.Context, id string) (*store.Source, error)
	Facts(ctx context.Context, sourceID string) ([]pyramid.Fact, map[string]string, error)
	ApplyPyramid(ctx context.Context, plan pyramid.Plan) error
}

// StructureOutcome reports one structuring run.
type StructureOutcome struct {
	SourceID string            `json:"source_id"`
	Facts    int               `json:"facts"`
	Stats    pyramid.PlanStats `json:"stats"`
	Report   *pyramid.Report   `json:"report"`
}

// Structurer builds and persists the topic hierarchy over a stored
// source's assertions.
type Structurer struct {
	store   FactStore
	configs ConfigResolver
	llm     llm.Invoker
	log     *slog.Logger
}

func NewStructurer(fs FactStore, configs ConfigResolver, inv llm.Invoker, log *slog.Logger) *Structurer {
	return &Structurer{store: fs, configs: configs, llm: inv, log: log}
}

// Structure runs the pyramid engine for sourceID and applies the plan.
// Levels and model hints come from the config for the source's domain and
// document type. An unknown source wraps store.ErrNotFound.
func (s *Structurer) Structure(ctx context.Context, sourceID string) (*StructureOutcome, error) {
	log := s.log.With("source_id", sourceID)

	src, err := s.store.GetSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	cfg, err := s.configs.Resolve(src.Domain, src.DocumentType)
	if err != nil {
		return nil, err
	}
	facts, ids, err := s.store.Facts(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	engine := pyramid.New(s.llm, cfg.ModelFor(llm.CallStructure), log)
	report, err := engine.Structure(ctx, facts, cfg.Pyramid.Levels)
	if err != nil {
		return nil, fmt.Errorf("structure %s: %w", sourceID, err)
	}

	plan := pyramid.NewPlan(sourceID, report.Root, ids)
	if err := s.store.ApplyPyramid(ctx, plan); err != nil {
		return nil, err
	}

	out := &StructureOutcome{
		SourceID: sourceID,
		Facts:    len(facts),
		Stats:    plan.Stats(),
		Report:   report,
	}
	log.Info("source structured",
		"facts", out.Facts,
		"nodes", out.Stats.NodesCreated,
		"linked", out.Stats.AssertionsLinked,
		"orphans", len(report.Orphans),
	)
	return out, nil
}
