package segment

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dgallion1/edugest/internal/config"
)

// alwaysSkip matches titles that never carry teaching content.
var alwaysSkip = regexp.MustCompile(`(?i)^\s*(?:table of contents|contents|index|copyright(?:\s+(?:page|notice))?|title page|acknowledg(?:e)?ments?)\s*[:.]?\s*$`)

// FilterResult partitions sections into kept (tagged with an action) and
// skipped.
type FilterResult struct {
	Sections []Section `json:"sections"`
	Skipped  []Section `json:"skipped,omitempty"`
	Warnings []string  `json:"warnings,omitempty"`
}

// SectionFilter holds compiled filter settings.
type SectionFilter struct {
	minChars  int
	skip      []*regexp.Regexp
	reference []*regexp.Regexp
}

// NewFilter compiles the configured patterns. A bad pattern is a
// configuration error.
func NewFilter(settings config.FilterSettings) (*SectionFilter, error) {
	f := &SectionFilter{minChars: settings.MinSectionChars}
	var err error
	if f.skip, err = compileAll("filter.skip_title_patterns", settings.SkipTitlePatterns); err != nil {
		return nil, err
	}
	if f.reference, err = compileAll("filter.reference_patterns", settings.ReferencePatterns); err != nil {
		return nil, err
	}
	return f, nil
}

// Filter compiles settings and applies them in one step.
func Filter(fullText string, sections []Section, settings config.FilterSettings) (FilterResult, error) {
	f, err := NewFilter(settings)
	if err != nil {
		return FilterResult{}, err
	}
	return f.Apply(fullText, sections), nil
}

// Apply drops non-content sections and tags the rest extract or reference.
// Every skip and reference decision is reported as a warning.
func (f *SectionFilter) Apply(fullText string, sections []Section) FilterResult {
	var res FilterResult
	skip := func(s Section, why string) {
		res.Skipped = append(res.Skipped, s)
		res.Warnings = append(res.Warnings, fmt.Sprintf("section %q skipped: %s", s.Title, why))
	}

	for _, s := range sections {
		switch {
		case s.PedagogicalRole == RoleMeta:
			skip(s, "non-content (META)")
			continue
		case alwaysSkip.MatchString(s.Title):
			skip(s, "front or back matter")
			continue
		}
		if re := firstMatch(f.skip, s.Title); re != nil {
			skip(s, fmt.Sprintf("title matches %q", re.String()))
			continue
		}
		if n := len(strings.TrimSpace(s.Text(fullText))); n < f.minChars {
			skip(s, fmt.Sprintf("%d chars is below the %d minimum", n, f.minChars))
			continue
		}

		switch {
		case s.HasAnswerKey:
			s.FilterAction = ActionReference
			res.Warnings = append(res.Warnings, fmt.Sprintf("section %q kept as reference: answer key", s.Title))
		case s.PedagogicalRole == RoleReference:
			s.FilterAction = ActionReference
			res.Warnings = append(res.Warnings, fmt.Sprintf("section %q kept as reference: REFERENCE role", s.Title))
		default:
			if re := firstMatch(f.reference, s.Title); re != nil {
				s.FilterAction = ActionReference
				res.Warnings = append(res.Warnings, fmt.Sprintf("section %q kept as reference: title matches %q", s.Title, re.String()))
			} else {
				s.FilterAction = ActionExtract
			}
		}
		res.Sections = append(res.Sections, s)
	}
	return res
}

// Extractable returns the sections tagged for extraction.
func (r FilterResult) Extractable() []Section {
	var out []Section
	for _, s := range r.Sections {
		if s.FilterAction == ActionExtract {
			out = append(out, s)
		}
	}
	return out
}

func compileAll(field string, patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %q: %v", config.ErrConfiguration, field, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func firstMatch(res []*regexp.Regexp, s string) *regexp.Regexp {
	for _, re := range res {
		if re.MatchString(s) {
			return re
		}
	}
	return nil
}
