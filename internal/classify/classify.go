// Package classify assigns a pedagogical document type from a head, middle,
// and tail sample of the text plus worked examples from human corrections.
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/edugest/internal/config"
	"github.com/dgallion1/edugest/internal/jsonrepair"
	"github.com/dgallion1/edugest/internal/llm"
	"github.com/dgallion1/edugest/internal/sampler"
	"github.com/dgallion1/edugest/internal/textnorm"
)

// Classification is the classifier's verdict.
type Classification struct {
	DocumentType string  `json:"documentType"`
	Confidence   float64 `json:"confidence"`
	Reasoning    string  `json:"reasoning"`
}

// Example is a prior human correction used as a worked example.
type Example struct {
	ID            string
	Sample        string
	FileName      string
	CorrectedType string
	OriginalType  string
}

// CorrectionSource returns prior corrections, newest first. An empty domain
// means any domain.
type CorrectionSource interface {
	Examples(ctx context.Context, domain string, limit int) ([]Example, error)
}

// exampleSampleChars bounds each worked example in the prompt.
const exampleSampleChars = 600

// Classifier calls the completion gateway to classify documents.
type Classifier struct {
	llm llm.Invoker
	log *slog.Logger
}

func New(inv llm.Invoker, log *slog.Logger) *Classifier {
	return &Classifier{llm: inv, log: log}
}

// Classify never fails: any error degrades to the configured default type
// with zero confidence and the reason in Reasoning.
func (c *Classifier) Classify(ctx context.Context, text, fileName string, cfg *config.ExtractionConfig, fewShot []Example) Classification {
	defaultType := TypeTextbook
	budget := sampler.DefaultBudget
	if cfg != nil {
		if cfg.Classification.DefaultType != "" {
			defaultType = cfg.Classification.DefaultType
		}
		budget = cfg.Classification.SampleSize
	}

	fail := func(reason string, err error) Classification {
		c.log.Warn("classification degraded", "file", fileName, "reason", reason, "error", err)
		return Classification{
			DocumentType: defaultType,
			Confidence:   0,
			Reasoning:    fmt.Sprintf("Classification failed: %s: %v", reason, err),
		}
	}

	var params llm.Params
	if cfg != nil {
		params = cfg.ModelFor(llm.CallClassify)
	}
	raw, err := c.llm.Invoke(ctx, systemPrompt(), userPrompt(sampler.Sample(text, budget), fileName, fewShot), llm.CallClassify, params)
	if err != nil {
		return fail("completion call", err)
	}

	var out Classification
	if _, err := jsonrepair.Unmarshal(raw, &out); err != nil {
		return fail("unparseable response", err)
	}

	docType, ok := Normalize(out.DocumentType)
	if !ok {
		return fail("invalid type", fmt.Errorf("%q is not a known document type", out.DocumentType))
	}
	out.DocumentType = docType
	out.Confidence = clamp01(out.Confidence)

	c.log.Info("classified document", "file", fileName, "type", out.DocumentType, "confidence", out.Confidence)
	return out
}

// FewShot gathers up to max examples, domain-scoped first, then global.
// Lookup failures yield fewer examples rather than an error.
func FewShot(ctx context.Context, src CorrectionSource, domain string, max int, log *slog.Logger) []Example {
	if src == nil || max <= 0 {
		return nil
	}
	var out []Example
	seen := make(map[string]bool)
	add := func(exs []Example) {
		for _, ex := range exs {
			if len(out) >= max {
				return
			}
			if ex.ID != "" && seen[ex.ID] {
				continue
			}
			seen[ex.ID] = true
			out = append(out, ex)
		}
	}

	if domain != "" {
		exs, err := src.Examples(ctx, domain, max)
		if err != nil {
			log.Warn("few-shot lookup failed", "domain", domain, "error", err)
		}
		add(exs)
	}
	if len(out) < max {
		exs, err := src.Examples(ctx, "", max)
		if err != nil {
			log.Warn("few-shot lookup failed", "domain", "", "error", err)
		}
		add(exs)
	}
	return out
}

func systemPrompt() string {
	var b strings.Builder
	b.WriteString("You classify educational documents by their pedagogical type.\n\nTypes:\n")
	for _, t := range Types {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
	}
	b.WriteString(`
The sample shows the start, middle, and end of the document. Late content such
as answer keys or mark schemes is strong evidence.

Respond with JSON only:
{"documentType": "<TYPE>", "confidence": <0.0-1.0>, "reasoning": "<one sentence>"}`)
	return b.String()
}

func userPrompt(sample, fileName string, fewShot []Example) string {
	var b strings.Builder
	if len(fewShot) > 0 {
		b.WriteString("Worked examples from previous human corrections:\n\n")
		for i, ex := range fewShot {
			fmt.Fprintf(&b, "Example %d\nFilename: %s\nSample:\n%s\n", i+1, ex.FileName, textnorm.Truncate(ex.Sample, exampleSampleChars))
			if ex.OriginalType != "" && ex.OriginalType != ex.CorrectedType {
				fmt.Fprintf(&b, "Initially classified as %s, corrected to:\n", ex.OriginalType)
			}
			fmt.Fprintf(&b, "{\"documentType\": %q}\n\n", ex.CorrectedType)
		}
		b.WriteString("Now classify this document.\n\n")
	}
	fmt.Fprintf(&b, "Filename: %s\n\nSample:\n%s", fileName, sample)
	return b.String()
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
