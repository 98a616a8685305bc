package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgallion1/edugest/internal/chunker"
	"github.com/dgallion1/edugest/internal/config"
	"github.com/dgallion1/edugest/internal/dedupe"
	"github.com/dgallion1/edugest/internal/llm"
	"github.com/dgallion1/edugest/internal/textnorm"
)

// run is the loop shared by every strategy.
func (e *Extractor) run(ctx context.Context, text string, opts Options, cfg *config.ExtractionConfig) (*Result, error) {
	res := &Result{Strategy: e.strategy.String()}
	spans := e.spec.chunk(text, cfg.ChunkSize)
	system := buildSystemPrompt(e.spec, cfg)
	params := cfg.ModelFor(llm.CallExtract)
	v := &validator{cfg: cfg}

	for i, span := range spans {
		if len(res.Assertions) >= cfg.MaxAssertions {
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"max assertions (%d) reached, skipped %d of %d chunks", cfg.MaxAssertions, len(spans)-i, len(spans)))
			break
		}
		chunk := span.Trimmed()
		c := Context{
			ChunkIndex:    i,
			ChunkTotal:    len(spans),
			SourceID:      opts.SourceID,
			Qualification: opts.Qualification,
			Focus:         opts.Focus,
			HasOutcomes:   chunker.HasOutcomeMarker(chunk),
		}

		out, err := e.callChunk(ctx, system, buildChunkPrompt(e.spec, opts, c, chunk), params, cfg)
		res.ChunksProcessed++
		if err != nil {
			if ctx.Err() != nil {
				return res, fmt.Errorf("extract chunk %d/%d: %w", i+1, len(spans), ctx.Err())
			}
			res.FailedChunks++
			e.log.Warn("chunk extraction failed",
				"chunk", i+1,
				"chunks", len(spans),
				"source", opts.SourceID,
				"error", err,
			)
			res.Warnings = append(res.Warnings, fmt.Sprintf("chunk %d/%d failed: %v", i+1, len(spans), err))
			continue
		}
		if len(out.Fixes) > 0 {
			e.log.Debug("recovered malformed chunk response", "chunk", i+1, "fixes", out.Fixes)
		}
		e.accumulate(res, out, opts, v)
	}

	if e.spec.finish != nil {
		e.spec.finish(res)
	}
	Dedupe(res)

	if len(res.Assertions) > cfg.MaxAssertions {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"trimmed %d assertions over the limit of %d", len(res.Assertions)-cfg.MaxAssertions, cfg.MaxAssertions))
		res.Assertions = res.Assertions[:cfg.MaxAssertions]
	}
	if v.categoryFallbacks > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"%d assertions had an unknown category, set to %q", v.categoryFallbacks, cfg.DefaultCategory))
	}
	if n := v.rejectedAssertions + v.rejectedQuestions + v.rejectedVocabulary; n > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"rejected %d invalid items (%d assertions, %d questions, %d vocabulary)",
			n, v.rejectedAssertions, v.rejectedQuestions, v.rejectedVocabulary))
	}
	if res.FailedChunks > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d of %d chunks failed", res.FailedChunks, res.ChunksProcessed))
	}

	e.log.Info("extraction complete",
		"source", opts.SourceID,
		"chunks", res.ChunksProcessed,
		"failed_chunks", res.FailedChunks,
		"assertions", len(res.Assertions),
		"questions", len(res.Questions),
		"vocabulary", len(res.Vocabulary),
	)
	return res, nil
}

// callChunk invokes the gateway for one chunk. Gateway exhaustion and
// unrecoverable output are retried with backoff; other errors are final.
func (e *Extractor) callChunk(ctx context.Context, system, user string, params llm.Params, cfg *config.ExtractionConfig) (chunkOutput, error) {
	var lastErr error
	for attempt := 0; attempt <= cfg.ChunkRetries; attempt++ {
		if attempt > 0 {
			if err := llm.Sleep(ctx, llm.Backoff(cfg.ChunkRetryBase, attempt-1)); err != nil {
				return chunkOutput{}, err
			}
		}
		raw, err := e.llm.Invoke(ctx, system, user, llm.CallExtract, params)
		if err != nil {
			if !errors.Is(err, llm.ErrExhausted) {
				return chunkOutput{}, err
			}
			lastErr = err
			continue
		}
		out, err := parseChunk(raw)
		if err != nil {
			e.log.Warn("chunk response unparseable", "attempt", attempt+1, "error", err)
			lastErr = err
			continue
		}
		return out, nil
	}
	return chunkOutput{}, lastErr
}

func (e *Extractor) accumulate(res *Result, out chunkOutput, opts Options, v *validator) {
	for _, a := range out.Assertions {
		if a.Chapter == "" {
			a.Chapter = opts.Chapter
		}
		if a.Section == "" {
			a.Section = opts.Section
		}
		if v.assertion(&a) {
			res.Assertions = append(res.Assertions, a)
		}
	}
	if e.spec.keepQuestions {
		for _, q := range out.Questions {
			if v.question(&q) {
				res.Questions = append(res.Questions, q)
			}
		}
	}
	if e.spec.keepVocabulary {
		for _, w := range out.Vocabulary {
			if v.vocabulary(&w) {
				res.Vocabulary = append(res.Vocabulary, w)
			}
		}
	}
}

// Dedupe removes duplicates from r in place, first occurrence winning, and
// records a warning per list that shrank. It returns the number removed.
func Dedupe(r *Result) int {
	var removed [3]int
	r.Assertions, removed[0] = dedupe.Dedupe(r.Assertions, func(a Assertion) string { return a.ContentHash })
	r.Questions, removed[1] = dedupe.Dedupe(r.Questions, func(q Question) string { return q.ContentHash })
	r.Vocabulary, removed[2] = dedupe.Dedupe(r.Vocabulary, func(w Vocabulary) string { return textnorm.TermKey(w.Term) })

	for i, kind := range []string{"assertions", "questions", "vocabulary"} {
		if removed[i] > 0 {
			r.Warnings = append(r.Warnings, fmt.Sprintf("removed %d duplicate %s", removed[i], kind))
		}
	}
	return removed[0] + removed[1] + removed[2]
}
