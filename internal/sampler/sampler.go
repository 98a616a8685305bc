// Package sampler builds a bounded head/middle/tail view of a document so
// late content such as answer keys is visible to single-shot prompts.
package sampler

import (
	"strings"
	"unicode/utf8"
)

// DefaultBudget is the sample size used when none is configured.
const DefaultBudget = 6000

const (
	headShare   = 0.4
	middleShare = 0.3

	MiddleMarker = "\n\n[... middle of document ...]\n\n"
	TailMarker   = "\n\n[... end of document ...]\n\n"
)

// Sample returns text unchanged when it fits in budget. Otherwise it joins
// the first 40%, a centred 30%, and the last 30% of the budget with markers.
func Sample(text string, budget int) string {
	if budget <= 0 {
		budget = DefaultBudget
	}
	if len(text) <= budget {
		return text
	}

	headLen := int(float64(budget) * headShare)
	midLen := int(float64(budget) * middleShare)
	tailLen := budget - headLen - midLen

	head := text[:floorRune(text, headLen)]

	midStart := floorRune(text, len(text)/2-midLen/2)
	mid := text[midStart:floorRune(text, midStart+midLen)]

	tail := text[ceilRune(text, len(text)-tailLen):]

	var b strings.Builder
	b.Grow(budget + len(MiddleMarker) + len(TailMarker))
	b.WriteString(head)
	b.WriteString(MiddleMarker)
	b.WriteString(mid)
	b.WriteString(TailMarker)
	b.WriteString(tail)
	return b.String()
}

func floorRune(s string, i int) int {
	if i >= len(s) {
		return len(s)
	}
	if i < 0 {
		return 0
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

func ceilRune(s string, i int) int {
	if i < 0 {
		return 0
	}
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}
