package dedupe

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dgallion1/edugest/internal/textnorm"
)

type item struct {
	text  string
	chunk int
}

func byHash(it item) string { return textnorm.ContentHash(it.text) }

func TestDedupe_AcrossChunks(t *testing.T) {
	items := []item{
		{"Water boils at 100 degrees Celsius at sea level.", 0},
		{"Ice is less dense than liquid water.", 0},
		{"Water boils at 100 degrees Celsius at sea level.", 1},
	}
	kept, removed := Dedupe(items, byHash)
	assert.Equal(t, 1, removed)
	assert.Len(t, kept, 2)
	assert.Equal(t, 0, kept[0].chunk, "first occurrence wins")
}

func TestDedupe_CaseAndLeadingWhitespace(t *testing.T) {
	items := []item{
		{"The heart has four chambers.", 0},
		{"   the HEART has four chambers.", 1},
	}
	kept, removed := Dedupe(items, byHash)
	assert.Equal(t, 1, removed)
	assert.Len(t, kept, 1)
	assert.Equal(t, "The heart has four chambers.", kept[0].text)
}

func TestDedupe_VocabularyByTerm(t *testing.T) {
	terms := []string{"Habitat", "habitat ", "Predator"}
	kept, removed := Dedupe(terms, textnorm.TermKey)
	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"Habitat", "Predator"}, kept)
}

func TestDedupe_EmptyKeyKept(t *testing.T) {
	kept, removed := Dedupe([]string{"", ""}, func(s string) string { return s })
	assert.Equal(t, 0, removed)
	assert.Len(t, kept, 2)
}

func TestDedupe_Empty(t *testing.T) {
	kept, removed := Dedupe([]item(nil), byHash)
	assert.Equal(t, 0, removed)
	assert.Empty(t, kept)
}

func TestSetFilter_AcrossBatches(t *testing.T) {
	s := NewSet()
	first, r1 := Filter(s, []item{{"A fact.", 0}, {"B fact.", 0}}, byHash)
	second, r2 := Filter(s, []item{{"a fact.", 1}, {"C fact.", 1}}, byHash)

	assert.Len(t, first, 2)
	assert.Equal(t, 0, r1)
	assert.Len(t, second, 1)
	assert.Equal(t, 1, r2)
	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Has(textnorm.ContentHash("C fact.")))
}
