package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgallion1/edugest/internal/classify"
	"github.com/dgallion1/edugest/internal/config"
	"github.com/dgallion1/edugest/internal/extract"
	"github.com/dgallion1/edugest/internal/segment"
	"github.com/dgallion1/edugest/internal/source"
	"github.com/dgallion1/edugest/internal/store"
)

// ConfigResolver resolves the layered extraction config for a run.
type ConfigResolver interface {
	Resolve(domain, docType string) (*config.ExtractionConfig, error)
}

// ResultStore persists what a job produced.
type ResultStore interface {
	UpsertSource(ctx context.Context, src *store.Source) error
	SaveResult(ctx context.Context, sourceID, runID string, res *extract.Result) (store.SaveStats, error)
}

// Deps are the components a worker runs a job through.
type Deps struct {
	Classifier  *classify.Classifier
	Segmenter   *segment.Segmenter
	Extractors  *extract.Registry
	Configs     ConfigResolver
	Corrections classify.CorrectionSource
	Store       ResultStore
}

// Worker processes a single document job. Sections and chunks run
// sequentially: one completion call at a time per document.
type Worker struct {
	deps Deps
	log  *slog.Logger
}

func NewWorker(deps Deps, log *slog.Logger) *Worker {
	return &Worker{deps: deps, log: log}
}

// Process runs the full ingest pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "source_id", job.SourceID, "filename", job.Filename)

	// Phase 1: Load
	job.SetStatus(StatusLoading, "loading")
	doc, err := source.LoadBytes(job.FileData(), job.Filename)
	if err != nil {
		log.Error("load failed", "error", err)
		job.AddError(fmt.Sprintf("load: %s", err))
		job.SetStatus(StatusFailed, "loading")
		return
	}
	job.releaseFile()
	doc.DeclaredType = job.DeclaredType
	doc.Qualification = job.Qualification
	doc.Domain = job.Domain
	log.Info("document loaded", "format", doc.Format, "chars", len(doc.Text), "pages", doc.PageCount)

	if len(doc.Text) == 0 {
		job.AddError("no extractable text")
		job.SetStatus(StatusFailed, "loading")
		return
	}

	base, err := w.deps.Configs.Resolve(doc.Domain, "")
	if err != nil {
		w.fail(job, log, "config", err)
		return
	}

	// Phase 2: Classify, unless the caller declared the type.
	job.SetStatus(StatusClassifying, "classifying")
	cls := w.classify(ctx, doc, base, log)
	job.SetClassification(cls)

	cfg, err := w.deps.Configs.Resolve(doc.Domain, cls.DocumentType)
	if err != nil {
		w.fail(job, log, "config", err)
		return
	}

	// Phase 3: Segment and filter.
	job.SetStatus(StatusSegmenting, "segmenting")
	seg := w.deps.Segmenter.Segment(ctx, doc.Text, doc.FileName, cfg)
	job.AddWarnings(seg.Warnings...)
	filtered, err := segment.Filter(doc.Text, seg.Sections, cfg.Filter)
	if err != nil {
		w.fail(job, log, "filter", err)
		return
	}
	job.AddWarnings(filtered.Warnings...)
	sections := filtered.Extractable()
	job.SetSections(len(sections), len(filtered.Skipped))
	log.Info("document segmented",
		"composite", seg.IsComposite,
		"sections", len(seg.Sections),
		"extractable", len(sections),
		"skipped", len(filtered.Skipped),
	)

	// Phase 4: Extract each section with the strategy for its type. The
	// document's max_assertions is one budget shared by all sections.
	job.SetStatus(StatusExtracting, "extracting")
	total := &extract.Result{Strategy: extract.StrategyFor(cls.DocumentType).String()}
	for i, sec := range sections {
		remaining := cfg.MaxAssertions - len(total.Assertions)
		if remaining <= 0 {
			job.AddWarnings(fmt.Sprintf("max assertions (%d) reached, skipped %d of %d sections",
				cfg.MaxAssertions, len(sections)-i, len(sections)))
			break
		}
		docType := sectionType(sec, cls.DocumentType)
		secCfg := cfg
		if docType != cls.DocumentType {
			if secCfg, err = w.deps.Configs.Resolve(doc.Domain, docType); err != nil {
				w.fail(job, log, "config", err)
				return
			}
		}
		secCfg = withBudget(secCfg, remaining)
		res, err := w.deps.Extractors.Get(docType).Extract(ctx, sec.Text(doc.Text), extract.Options{
			SourceID:      job.SourceID,
			FileName:      doc.FileName,
			Qualification: doc.Qualification,
			Focus:         job.Focus,
			Section:       sec.Title,
		}, secCfg)
		if err != nil {
			if res != nil {
				job.AddSection(res)
			}
			w.fail(job, log, fmt.Sprintf("section %d", i+1), err)
			return
		}
		job.AddSection(res)
		job.AddWarnings(prefixed(sec.Title, res.Warnings)...)
		res.Warnings = nil
		total.Merge(res)
	}
	if len(sections) > 1 {
		if n := extract.Dedupe(total); n > 0 {
			log.Info("cross-section duplicates removed", "count", n)
			job.AddWarnings(total.Warnings...)
		}
	}
	job.SetResult(total)

	// Phase 5: Persist.
	job.SetStatus(StatusStoring, "storing")
	hadErrors := total.FailedChunks > 0
	if w.deps.Store != nil {
		err := w.deps.Store.UpsertSource(ctx, &store.Source{
			ID:            job.SourceID,
			FileName:      doc.FileName,
			Format:        doc.Format,
			Domain:        doc.Domain,
			Qualification: doc.Qualification,
			DocumentType:  cls.DocumentType,
			Confidence:    cls.Confidence,
			LastRunID:     job.ID,
		})
		if err == nil {
			var saved store.SaveStats
			saved, err = w.deps.Store.SaveResult(ctx, job.SourceID, job.ID, total)
			job.SetSaved(saved)
		}
		if err != nil {
			log.Error("store failed", "error", err)
			job.AddError(fmt.Sprintf("store: %s", err))
			hadErrors = true
		}
	}

	items := len(total.Assertions) + len(total.Questions) + len(total.Vocabulary)
	switch {
	case hadErrors && items == 0:
		job.SetStatus(StatusFailed, "done")
	case hadErrors:
		job.SetStatus(StatusPartial, "done")
	default:
		job.SetStatus(StatusCompleted, "done")
	}
	log.Info("job finished",
		"assertions", len(total.Assertions),
		"questions", len(total.Questions),
		"vocabulary", len(total.Vocabulary),
		"failed_chunks", total.FailedChunks,
	)
}

func (w *Worker) classify(ctx context.Context, doc *source.SourceDocument, cfg *config.ExtractionConfig, log *slog.Logger) classify.Classification {
	if t, ok := classify.Normalize(doc.DeclaredType); ok {
		return classify.Classification{DocumentType: t, Confidence: 1, Reasoning: "declared by caller"}
	}
	fewShot := classify.FewShot(ctx, w.deps.Corrections, doc.Domain, cfg.Classification.FewShotMax, log)
	cls := w.deps.Classifier.Classify(ctx, doc.Text, doc.FileName, cfg, fewShot)
	log.Info("document classified", "type", cls.DocumentType, "confidence", cls.Confidence, "examples", len(fewShot))
	return cls
}

func (w *Worker) fail(job *Job, log *slog.Logger, phase string, err error) {
	if errors.Is(err, config.ErrConfiguration) {
		log.Error("configuration error", "phase", phase, "error", err)
	} else {
		log.Error("job failed", "phase", phase, "error", err)
	}
	job.AddError(fmt.Sprintf("%s: %s", phase, err))
	job.SetStatus(StatusFailed, phase)
}

// withBudget caps a section's assertion limit at what the document has left.
func withBudget(cfg *config.ExtractionConfig, remaining int) *config.ExtractionConfig {
	if cfg.MaxAssertions <= remaining {
		return cfg
	}
	c := *cfg
	c.MaxAssertions = remaining
	return &c
}

// sectionType picks the extraction type for a section: its own sectionType
// when that names a known document type, else the document's.
func sectionType(sec segment.Section, docType string) string {
	if t, ok := classify.Normalize(sec.SectionType); ok {
		return t
	}
	return docType
}

func prefixed(title string, ws []string) []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, fmt.Sprintf("%s: %s", title, w))
	}
	return out
}
