package segment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/edugest/internal/classify"
	"github.com/dgallion1/edugest/internal/config"
	"github.com/dgallion1/edugest/internal/jsonrepair"
	"github.com/dgallion1/edugest/internal/llm"
	"github.com/dgallion1/edugest/internal/sampler"
)

const defaultMinCompositeChars = 2000

// Segmenter proposes sections with one completion call per document.
type Segmenter struct {
	llm llm.Invoker
	log *slog.Logger
}

func New(inv llm.Invoker, log *slog.Logger) *Segmenter {
	return &Segmenter{llm: inv, log: log}
}

type response struct {
	IsComposite bool       `json:"isComposite"`
	Sections    []Proposal `json:"sections"`
}

// Segment never fails. Short documents get one INPUT section without a
// call; any failure falls back to the same shape with a warning.
func (s *Segmenter) Segment(ctx context.Context, text, fileName string, cfg *config.ExtractionConfig) Segmentation {
	minChars, budget := defaultMinCompositeChars, sampler.DefaultBudget
	var params llm.Params
	if cfg != nil {
		minChars = cfg.Segmentation.MinCompositeChars
		if cfg.Segmentation.SampleSize > 0 {
			budget = cfg.Segmentation.SampleSize
		}
		params = cfg.ModelFor(llm.CallSegment)
	}
	if len(text) < minChars {
		return Whole(text)
	}

	fallback := func(reason string, err error) Segmentation {
		s.log.Warn("segmentation degraded", "file", fileName, "reason", reason, "error", err)
		return Whole(text, fmt.Sprintf("segmentation fell back to a single section: %s: %v", reason, err))
	}

	raw, err := s.llm.Invoke(ctx, systemPrompt, userPrompt(sampler.Sample(text, budget), fileName, len(text)), llm.CallSegment, params)
	if err != nil {
		return fallback("completion call", err)
	}

	var resp response
	if _, err := jsonrepair.Unmarshal(raw, &resp); err != nil {
		return fallback("unparseable response", err)
	}
	if len(resp.Sections) == 0 {
		return fallback("no sections proposed", fmt.Errorf("empty section list"))
	}

	var warnings []string
	for i := range resp.Sections {
		warnings = append(warnings, normalizeProposal(&resp.Sections[i])...)
	}

	sections, resolveWarnings := Resolve(text, resp.Sections)
	warnings = append(warnings, resolveWarnings...)
	if len(sections) == 0 {
		return fallback("no section could be located", fmt.Errorf("%d proposals unresolved", len(resp.Sections)))
	}

	types := make(map[string]bool)
	for _, sec := range sections {
		if sec.SectionType != "" {
			types[sec.SectionType] = true
		}
	}

	seg := Segmentation{
		IsComposite: resp.IsComposite || len(types) > 1,
		Sections:    sections,
		Warnings:    warnings,
	}
	s.log.Info("segmented document", "file", fileName, "sections", len(sections), "composite", seg.IsComposite)
	return seg
}

// normalizeProposal upper-cases type and role, replacing unknown values.
func normalizeProposal(p *Proposal) []string {
	var warnings []string
	if p.SectionType != "" {
		t, ok := classify.Normalize(p.SectionType)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("section %q: unknown type %q ignored", p.Title, p.SectionType))
			t = ""
		}
		p.SectionType = t
	}
	role := strings.ToUpper(strings.TrimSpace(p.PedagogicalRole))
	if !roles[role] {
		if role != "" {
			warnings = append(warnings, fmt.Sprintf("section %q: unknown role %q treated as INPUT", p.Title, p.PedagogicalRole))
		}
		role = RoleInput
	}
	p.PedagogicalRole = role
	return warnings
}

const systemPrompt = `You split educational documents into pedagogically distinct sections.

For each section give:
- title: the heading or a short descriptive title
- startText: the first 5-12 words of the section copied exactly from the document
- sectionType: one of TEXTBOOK, CURRICULUM, SYLLABUS, COMPREHENSION, WORKSHEET, ASSESSMENT, PAST_PAPER, LESSON_PLAN, REVISION_GUIDE, REFERENCE
- pedagogicalRole: one of
  ACTIVATE (warm-up, prior knowledge), INPUT (teaching content),
  CHECK (questions checking understanding), PRODUCE (tasks where the learner creates),
  REFLECT (self-assessment, review), REFERENCE (answer keys, glossaries, data),
  META (covers, contents pages, copyright, anything that is not content)
- hasQuestions: true if the section asks the learner questions
- hasAnswerKey: true if the section contains answers

List sections in document order. The sample shows the start, middle, and end
of the document; infer sections you cannot see only if headings make them clear.

Respond with JSON only:
{"isComposite": <bool>, "sections": [{"title": "", "startText": "", "sectionType": "", "pedagogicalRole": "", "hasQuestions": false, "hasAnswerKey": false}]}`

func userPrompt(sample, fileName string, totalLen int) string {
	return fmt.Sprintf("Filename: %s\nDocument length: %d characters\n\nSample:\n%s", fileName, totalLen, sample)
}
