package segment

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/edugest/internal/config"
)

func buildSections(titles []string, bodies []string, mutate func(i int, s *Section)) (string, []Section) {
	var b strings.Builder
	var secs []Section
	for i, title := range titles {
		start := b.Len()
		b.WriteString(title + "\n" + bodies[i] + "\n")
		s := Section{Title: title, StartOffset: start, EndOffset: b.Len(), PedagogicalRole: RoleInput}
		if mutate != nil {
			mutate(i, &s)
		}
		secs = append(secs, s)
	}
	return b.String(), secs
}

func TestFilter(t *testing.T) {
	long := strings.Repeat("Photosynthesis happens in the chloroplast. ", 5)
	titles := []string{"Contents", "Cover", "Chapter 1", "Foreword", "Tiny", "Answers", "Glossary", "Data sheet", "Chapter 2"}
	bodies := []string{long, long, long, long, "ok", long, long, long, long}
	text, secs := buildSections(titles, bodies, func(i int, s *Section) {
		switch s.Title {
		case "Cover":
			s.PedagogicalRole = RoleMeta
		case "Answers":
			s.HasAnswerKey = true
		case "Data sheet":
			s.PedagogicalRole = RoleReference
		}
	})

	settings := config.FilterSettings{
		MinSectionChars:   80,
		SkipTitlePatterns: []string{`(?i)^foreword`},
		ReferencePatterns: []string{`(?i)glossary`},
	}
	res, err := Filter(text, secs, settings)
	require.NoError(t, err)

	skipped := map[string]bool{}
	for _, s := range res.Skipped {
		skipped[s.Title] = true
	}
	assert.Equal(t, map[string]bool{"Contents": true, "Cover": true, "Foreword": true, "Tiny": true}, skipped)

	actions := map[string]string{}
	for _, s := range res.Sections {
		actions[s.Title] = s.FilterAction
	}
	assert.Equal(t, map[string]string{
		"Chapter 1":  ActionExtract,
		"Answers":    ActionReference,
		"Glossary":   ActionReference,
		"Data sheet": ActionReference,
		"Chapter 2":  ActionExtract,
	}, actions)

	// One warning per skip or reference decision.
	assert.Len(t, res.Warnings, 7)
	assert.Len(t, res.Extractable(), 2)
}

func TestFilter_AlwaysSkipTitles(t *testing.T) {
	for _, title := range []string{"Table of Contents", "INDEX", "Copyright notice", "Title page", "Acknowledgements", "Acknowledgments:"} {
		assert.True(t, alwaysSkip.MatchString(title), title)
	}
	for _, title := range []string{"Indexing databases", "Contents of a cell"} {
		assert.False(t, alwaysSkip.MatchString(title), title)
	}
}

func TestFilter_BadPatternIsConfigurationError(t *testing.T) {
	_, err := NewFilter(config.FilterSettings{SkipTitlePatterns: []string{"(unclosed"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrConfiguration))
}
