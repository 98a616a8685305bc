// Package chunker splits document text into bounded spans for extraction.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxChars is used when a caller passes a non-positive size.
const DefaultMaxChars = 8000

// A boundary is only accepted if the span it closes is at least this full.
const (
	paragraphFloor = 0.5
	lineFloor      = 0.4
	spaceFloor     = 0.3
)

// Span is a contiguous slice of the source text. Text is not trimmed, so the
// spans of one call concatenate back to the input.
type Span struct {
	Index int
	Start int
	End   int
	Text  string
}

// Trimmed returns the span text without surrounding whitespace.
func (s Span) Trimmed() string {
	return strings.TrimSpace(s.Text)
}

// Chunk splits text into spans of at most maxChars bytes, preferring
// paragraph breaks, then line breaks, then spaces. A hard cut is used only
// when none of those falls late enough in the window.
func Chunk(text string, maxChars int) []Span {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return index(mergeBlank(chunkRange(text, 0, len(text), maxChars)))
}

func chunkRange(text string, start, end, maxChars int) []Span {
	var spans []Span
	pos := start
	for end-pos > maxChars {
		cut := boundary(text[pos:pos+maxChars], maxChars)
		if cut <= 0 {
			cut = hardCut(text, pos, maxChars)
		}
		spans = append(spans, Span{Start: pos, End: pos + cut, Text: text[pos : pos+cut]})
		pos += cut
	}
	if pos < end {
		spans = append(spans, Span{Start: pos, End: end, Text: text[pos:end]})
	}
	return spans
}

// boundary returns the cut offset within window, or 0 if no acceptable
// boundary exists.
func boundary(window string, maxChars int) int {
	if i := strings.LastIndex(window, "\n\n"); i >= 0 && float64(i) >= float64(maxChars)*paragraphFloor {
		return i + 2
	}
	if i := strings.LastIndexByte(window, '\n'); i >= 0 && float64(i) >= float64(maxChars)*lineFloor {
		return i + 1
	}
	if i := strings.LastIndexByte(window, ' '); i >= 0 && float64(i) >= float64(maxChars)*spaceFloor {
		return i + 1
	}
	return 0
}

// hardCut backs off to a rune boundary so no UTF-8 sequence is split.
func hardCut(text string, pos, maxChars int) int {
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(text[pos+cut]) {
		cut--
	}
	if cut == 0 {
		return maxChars
	}
	return cut
}

// mergeBlank folds whitespace-only spans into a neighbour so that every
// returned span has content.
func mergeBlank(spans []Span) []Span {
	out := make([]Span, 0, len(spans))
	var pending *Span
	for _, s := range spans {
		if pending != nil {
			s.Start = pending.Start
			s.Text = pending.Text + s.Text
			pending = nil
		}
		if strings.TrimSpace(s.Text) != "" {
			out = append(out, s)
			continue
		}
		if n := len(out); n > 0 {
			out[n-1].End = s.End
			out[n-1].Text += s.Text
			continue
		}
		p := s
		pending = &p
	}
	return out
}

func index(spans []Span) []Span {
	for i := range spans {
		spans[i].Index = i
	}
	return spans
}
