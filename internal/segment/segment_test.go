package segment

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/edugest/internal/config"
	"github.com/dgallion1/edugest/internal/llm"
	"github.com/dgallion1/edugest/internal/llm/llmtest"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func defaults(t *testing.T) *config.ExtractionConfig {
	t.Helper()
	cfg, err := config.Defaults()
	require.NoError(t, err)
	return cfg
}

func TestSegment_ShortDocumentNoCall(t *testing.T) {
	text := strings.Repeat("x", 300)
	inv := llmtest.New()
	seg := New(inv, quietLogger()).Segment(context.Background(), text, "short.txt", defaults(t))

	assert.False(t, seg.IsComposite)
	require.Len(t, seg.Sections, 1)
	assert.Equal(t, 0, seg.Sections[0].StartOffset)
	assert.Equal(t, 300, seg.Sections[0].EndOffset)
	assert.Equal(t, RoleInput, seg.Sections[0].PedagogicalRole)
	assert.Empty(t, seg.Warnings)
	assert.Empty(t, inv.Calls())
}

func compositeDoc() string {
	return "Cover page for Unit 3\n\n" +
		"# Reading: The Water Cycle\n\n" + strings.Repeat("Water evaporates from the sea and condenses into clouds. ", 30) +
		"\n\n# Questions\n\n" + strings.Repeat("1. Where does evaporation happen? ", 20) +
		"\n\n# Answer Key\n\n" + strings.Repeat("1. From the sea. ", 20)
}

func TestSegment_ResolvesProposedSections(t *testing.T) {
	text := compositeDoc()
	reply := `{"isComposite": false, "sections": [
		{"title": "Reading", "startText": "# reading: the water   cycle", "sectionType": "textbook", "pedagogicalRole": "input"},
		{"title": "Questions", "startText": "# Questions", "sectionType": "WORKSHEET", "pedagogicalRole": "CHECK", "hasQuestions": true},
		{"title": "Answer Key", "startText": "# Answer Key", "sectionType": "WORKSHEET", "pedagogicalRole": "REFERENCE", "hasAnswerKey": true}
	]}`
	inv := llmtest.New(llmtest.Text(reply))
	seg := New(inv, quietLogger()).Segment(context.Background(), text, "unit3.md", defaults(t))

	require.Len(t, inv.Calls(), 1)
	assert.Equal(t, llm.CallSegment, inv.Calls()[0].CallPoint)

	require.Len(t, seg.Sections, 3)
	assert.True(t, seg.IsComposite, "two distinct types make the document composite")

	// Cover text before the first match folds into the first section.
	assert.Equal(t, 0, seg.Sections[0].StartOffset)
	assert.Equal(t, "TEXTBOOK", seg.Sections[0].SectionType)
	assert.Equal(t, RoleInput, seg.Sections[0].PedagogicalRole)
	assert.Equal(t, strings.Index(text, "# Questions"), seg.Sections[1].StartOffset)
	assert.Equal(t, seg.Sections[1].StartOffset, seg.Sections[0].EndOffset)
	assert.Equal(t, len(text), seg.Sections[2].EndOffset)
	assert.True(t, strings.HasPrefix(seg.Sections[2].Text(text), "# Answer Key"))
	assert.True(t, seg.Sections[2].HasAnswerKey)
}

func TestSegment_FallsBackOnFailure(t *testing.T) {
	text := compositeDoc()
	tests := []struct {
		name  string
		reply llmtest.Reply
	}{
		{"call error", llmtest.Err(llm.ErrExhausted)},
		{"unparseable", llmtest.Text("Sorry, I can't help with that.")},
		{"no sections", llmtest.Text(`{"isComposite": true, "sections": []}`)},
		{"nothing located", llmtest.Text(`{"sections": [{"title": "Ghost", "startText": "this text does not appear anywhere"}]}`)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			seg := New(llmtest.New(tc.reply), quietLogger()).Segment(context.Background(), text, "unit3.md", defaults(t))
			assert.False(t, seg.IsComposite)
			require.Len(t, seg.Sections, 1)
			assert.Equal(t, len(text), seg.Sections[0].EndOffset)
			require.NotEmpty(t, seg.Warnings)
			assert.Contains(t, seg.Warnings[len(seg.Warnings)-1], "fell back to a single section")
		})
	}
}

func TestResolve(t *testing.T) {
	text := "Intro words here. PART ONE begins now and goes on. Part Two starts here and continues. The end part."

	t.Run("in order with case folding", func(t *testing.T) {
		secs, warns := Resolve(text, []Proposal{
			{Title: "One", StartText: "part one begins"},
			{Title: "Two", StartText: "PART TWO STARTS"},
		})
		require.Len(t, secs, 2)
		assert.Empty(t, warns)
		assert.Equal(t, 0, secs[0].StartOffset)
		assert.Equal(t, strings.Index(text, "Part Two"), secs[0].EndOffset)
		assert.Equal(t, len(text), secs[1].EndOffset)
	})

	t.Run("prefix fallback", func(t *testing.T) {
		secs, warns := Resolve(text, []Proposal{
			{Title: "One", StartText: "Intro words"},
			{Title: "Two", StartText: "Part Two starts HERE AND THEN SOMETHING ELSE"},
		})
		require.Len(t, secs, 2)
		assert.Equal(t, strings.Index(text, "Part Two"), secs[1].StartOffset)
		require.Len(t, warns, 1)
		assert.Contains(t, warns[0], "prefix")
	})

	t.Run("miss starts at previous end and is dropped", func(t *testing.T) {
		secs, warns := Resolve(text, []Proposal{
			{Title: "One", StartText: "Intro words"},
			{Title: "Lost", StartText: "zzz qqq"},
			{Title: "Two", StartText: "Part Two"},
		})
		require.Len(t, secs, 2)
		assert.Equal(t, "One", secs[0].Title)
		assert.Equal(t, "Two", secs[1].Title)
		assert.Equal(t, secs[1].StartOffset, secs[0].EndOffset)
		require.Len(t, warns, 1)
		assert.Contains(t, warns[0], `"Lost" dropped`)
	})

	t.Run("search continues after previous match", func(t *testing.T) {
		repeated := "Exercise. alpha. Exercise. beta."
		secs, _ := Resolve(repeated, []Proposal{
			{Title: "First", StartText: "Exercise"},
			{Title: "Second", StartText: "Exercise"},
		})
		require.Len(t, secs, 2)
		assert.Equal(t, strings.LastIndex(repeated, "Exercise"), secs[1].StartOffset)
	})

	t.Run("sections tile the text", func(t *testing.T) {
		secs, _ := Resolve(text, []Proposal{
			{StartText: "PART ONE"}, {StartText: "Part Two"}, {StartText: "The end"},
		})
		require.Len(t, secs, 3)
		prev := 0
		for _, s := range secs {
			assert.Equal(t, prev, s.StartOffset)
			assert.Greater(t, s.EndOffset, s.StartOffset)
			prev = s.EndOffset
		}
		assert.Equal(t, len(text), prev)
	})
}
