package classify

import (
	"context"
	"errors"
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

func TestClassify_PassThrough(t *testing.T) {
	inv := llmtest.New(llmtest.Text(`{"documentType":"WORKSHEET","confidence":0.9,"reasoning":"..."}`))
	c := New(inv, quietLogger())

	got := c.Classify(context.Background(), "Fill in the gaps.", "ws.pdf", defaults(t), nil)
	assert.Equal(t, Classification{DocumentType: "WORKSHEET", Confidence: 0.9, Reasoning: "..."}, got)

	calls := inv.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, llm.CallClassify, calls[0].CallPoint)
	assert.Contains(t, calls[0].User, "ws.pdf")
	assert.Contains(t, calls[0].System, "PAST_PAPER")
}

func TestClassify_DegradesToDefault(t *testing.T) {
	tests := []struct {
		name   string
		reply  llmtest.Reply
		reason string
	}{
		{"unparseable", llmtest.Text("I think this is probably a worksheet"), "unparseable response"},
		{"call error", llmtest.Err(llm.ErrExhausted), "completion call"},
		{"invalid type", llmtest.Text(`{"documentType":"NOVEL","confidence":0.8}`), "invalid type"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := New(llmtest.New(tc.reply), quietLogger())
			got := c.Classify(context.Background(), "text", "doc.txt", defaults(t), nil)
			assert.Equal(t, "TEXTBOOK", got.DocumentType)
			assert.Zero(t, got.Confidence)
			assert.True(t, strings.HasPrefix(got.Reasoning, "Classification failed: "), got.Reasoning)
			assert.Contains(t, got.Reasoning, tc.reason)
		})
	}
}

func TestClassify_NormalizesAndClamps(t *testing.T) {
	inv := llmtest.New(llmtest.Text("```json\n{'documentType': 'past paper', 'confidence': 1.4, 'reasoning': 'Has a mark scheme'}\n```"))
	got := New(inv, quietLogger()).Classify(context.Background(), "Q1 (4 marks)", "2019.pdf", defaults(t), nil)
	assert.Equal(t, TypePastPaper, got.DocumentType)
	assert.Equal(t, 1.0, got.Confidence)
}

func TestClassify_SamplesLongDocuments(t *testing.T) {
	cfg := defaults(t)
	cfg.Classification.SampleSize = 1000
	text := "START " + strings.Repeat("body ", 5000) + " ANSWER KEY"

	inv := llmtest.New(llmtest.Text(`{"documentType":"WORKSHEET","confidence":0.7}`))
	New(inv, quietLogger()).Classify(context.Background(), text, "long.txt", cfg, nil)

	user := inv.Calls()[0].User
	assert.Contains(t, user, "START")
	assert.Contains(t, user, "ANSWER KEY")
	assert.Less(t, len(user), 2000)
}

func TestClassify_EmbedsWorkedExamples(t *testing.T) {
	inv := llmtest.New(llmtest.Text(`{"documentType":"ASSESSMENT","confidence":0.6}`))
	fewShot := []Example{
		{ID: "1", Sample: "Section A: answer all questions", FileName: "mock.pdf", CorrectedType: "ASSESSMENT", OriginalType: "WORKSHEET"},
	}
	New(inv, quietLogger()).Classify(context.Background(), "text", "x.pdf", defaults(t), fewShot)

	user := inv.Calls()[0].User
	assert.Contains(t, user, "Worked examples")
	assert.Contains(t, user, "mock.pdf")
	assert.Contains(t, user, "Initially classified as WORKSHEET")
	assert.Contains(t, user, `{"documentType": "ASSESSMENT"}`)
}

type fakeCorrections struct {
	byDomain map[string][]Example
	err      error
}

func (f *fakeCorrections) Examples(_ context.Context, domain string, limit int) ([]Example, error) {
	if f.err != nil {
		return nil, f.err
	}
	exs := f.byDomain[domain]
	if len(exs) > limit {
		exs = exs[:limit]
	}
	return exs, nil
}

func TestFewShot_DomainFirstThenGlobal(t *testing.T) {
	src := &fakeCorrections{byDomain: map[string][]Example{
		"biology": {{ID: "b1"}, {ID: "b2"}},
		"":        {{ID: "b1"}, {ID: "g1"}, {ID: "g2"}, {ID: "g3"}},
	}}
	got := FewShot(context.Background(), src, "biology", 4, quietLogger())
	ids := make([]string, len(got))
	for i, ex := range got {
		ids[i] = ex.ID
	}
	assert.Equal(t, []string{"b1", "b2", "g1", "g2"}, ids)
}

func TestFewShot_LookupErrorYieldsNone(t *testing.T) {
	src := &fakeCorrections{err: errors.New("db down")}
	assert.Empty(t, FewShot(context.Background(), src, "biology", 3, quietLogger()))
	assert.Nil(t, FewShot(context.Background(), nil, "", 3, quietLogger()))
}
