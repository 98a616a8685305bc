package chunker

import (
	"regexp"
	"sort"
)

// minBoundaryGap collapses markers that sit closer than this, e.g. an
// "LO1" heading followed by "Learning Outcome 1: ..." on the next line.
const minBoundaryGap = 200

var outcomePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^[ \t]*(?:#{1,6}[ \t]*)?learning[ \t]+outcome[ \t]*\d+`),
	regexp.MustCompile(`(?im)^[ \t]*(?:#{1,6}[ \t]*)?LO[ \t]*\d+(?:\.\d+)?[ \t]*[:.)\-]`),
	regexp.MustCompile(`(?im)^[ \t]*(?:#{1,6}[ \t]*)?outcome[ \t]+\d+[ \t]*[:.)\-]`),
	regexp.MustCompile(`(?m)^[ \t]*\d{1,2}\.?[ \t]+(?:Understand|Know|Be able to)\b`),
	regexp.MustCompile(`(?im)^[ \t]*the[ \t]+learner[ \t]+(?:will|can)[ \t]*:`),
}

// HasOutcomeMarker reports whether text contains any learning outcome marker.
func HasOutcomeMarker(text string) bool {
	for _, re := range outcomePatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// OutcomeBoundaries returns the sorted offsets of learning outcome markers,
// dropping any marker closer than minBoundaryGap to the previous kept one.
func OutcomeBoundaries(text string) []int {
	var raw []int
	for _, re := range outcomePatterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			raw = append(raw, loc[0])
		}
	}
	sort.Ints(raw)

	var out []int
	for _, b := range raw {
		if len(out) > 0 && b-out[len(out)-1] < minBoundaryGap {
			continue
		}
		out = append(out, b)
	}
	return out
}

// ChunkByOutcomes splits curriculum text at learning outcome boundaries.
// Adjacent units are packed while they fit in maxChars and oversized units
// are split with Chunk. With fewer than two boundaries it is Chunk.
func ChunkByOutcomes(text string, maxChars int) []Span {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	bounds := OutcomeBoundaries(text)
	if len(bounds) < 2 {
		return Chunk(text, maxChars)
	}

	type unit struct{ start, end int }
	var units []unit
	if bounds[0] > 0 {
		units = append(units, unit{0, bounds[0]})
	}
	for i, b := range bounds {
		end := len(text)
		if i+1 < len(bounds) {
			end = bounds[i+1]
		}
		units = append(units, unit{b, end})
	}

	var spans []Span
	flush := func(u unit) {
		if u.end-u.start > maxChars {
			spans = append(spans, chunkRange(text, u.start, u.end, maxChars)...)
			return
		}
		spans = append(spans, Span{Start: u.start, End: u.end, Text: text[u.start:u.end]})
	}

	cur := units[0]
	for _, u := range units[1:] {
		if u.end-cur.start <= maxChars {
			cur.end = u.end
			continue
		}
		flush(cur)
		cur = u
	}
	flush(cur)

	return index(mergeBlank(spans))
}
