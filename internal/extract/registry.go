package extract

import (
	"context"
	"log/slog"

	"github.com/dgallion1/edugest/internal/classify"
	"github.com/dgallion1/edugest/internal/config"
	"github.com/dgallion1/edugest/internal/llm"
)

// typeStrategies maps document types to their specialist strategy. Types not
// listed use Generic.
var typeStrategies = map[string]Strategy{
	classify.TypeCurriculum:    Curriculum,
	classify.TypeSyllabus:      Curriculum,
	classify.TypeComprehension: Comprehension,
	classify.TypeWorksheet:     Comprehension,
	classify.TypeAssessment:    Assessment,
	classify.TypePastPaper:     Assessment,
}

// StrategyFor returns the strategy used for a document type.
func StrategyFor(docType string) Strategy {
	if t, ok := classify.Normalize(docType); ok {
		docType = t
	}
	if s, ok := typeStrategies[docType]; ok {
		return s
	}
	return Generic
}

// Registry hands out extractors by document type.
type Registry struct {
	extractors map[Strategy]*Extractor
}

func NewRegistry(inv llm.Invoker, log *slog.Logger) *Registry {
	r := &Registry{extractors: make(map[Strategy]*Extractor, len(strategies))}
	for s, spec := range strategies {
		r.extractors[s] = &Extractor{
			strategy: s,
			spec:     spec,
			llm:      inv,
			log:      log.With("strategy", s.String()),
		}
	}
	return r
}

// Get returns the extractor for docType, never nil.
func (r *Registry) Get(docType string) *Extractor {
	return r.extractors[StrategyFor(docType)]
}

// Extractor runs one strategy over document text.
type Extractor struct {
	strategy Strategy
	spec     strategySpec
	llm      llm.Invoker
	log      *slog.Logger
}

func (e *Extractor) Strategy() Strategy {
	return e.strategy
}

// Extract chunks text and extracts from every chunk. Failed chunks degrade to
// warnings; the error is non-nil only for an invalid config or a cancelled
// context, in which case the partial result is still returned.
func (e *Extractor) Extract(ctx context.Context, text string, opts Options, cfg *config.ExtractionConfig) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return e.run(ctx, text, opts, cfg)
}
