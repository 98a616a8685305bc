package segment

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// prefixRunes is the length of the fallback fingerprint prefix.
const prefixRunes = 15

// Proposal is a section as proposed by the model, before offsets exist.
type Proposal struct {
	Title           string `json:"title"`
	StartText       string `json:"startText"`
	SectionType     string `json:"sectionType"`
	PedagogicalRole string `json:"pedagogicalRole"`
	HasQuestions    bool   `json:"hasQuestions"`
	HasAnswerKey    bool   `json:"hasAnswerKey"`
}

// Resolve maps proposals onto text offsets. Each fingerprint is searched
// case-insensitively from the end of the previous match, then by its first
// fifteen characters. A proposal that still misses starts at the previous
// section's end, so it is empty and dropped. Sections end where the next
// begins; text before the first section is folded into it.
func Resolve(text string, props []Proposal) ([]Section, []string) {
	var warnings []string
	starts := make([]int, len(props))
	found := make([]bool, len(props))

	cursor := 0
	for i, p := range props {
		fp := strings.TrimSpace(p.StartText)
		if loc := findFold(text, fp, cursor); loc != nil {
			starts[i], found[i] = loc[0], true
			cursor = loc[1]
			continue
		}
		if prefix := runePrefix(fp, prefixRunes); prefix != fp {
			if loc := findFold(text, prefix, cursor); loc != nil {
				starts[i], found[i] = loc[0], true
				cursor = loc[1]
				warnings = append(warnings, fmt.Sprintf("section %q: matched on %d-character prefix", p.Title, prefixRunes))
				continue
			}
		}
	}

	// Unresolved proposals take the start of the next resolved one.
	next := len(text)
	for i := len(props) - 1; i >= 0; i-- {
		if found[i] {
			next = starts[i]
			continue
		}
		starts[i] = next
	}

	var sections []Section
	for i, p := range props {
		end := len(text)
		if i+1 < len(props) {
			end = starts[i+1]
		}
		if end <= starts[i] {
			if !found[i] {
				warnings = append(warnings, fmt.Sprintf("section %q dropped: start text not found", p.Title))
			} else {
				warnings = append(warnings, fmt.Sprintf("section %q dropped: empty", p.Title))
			}
			continue
		}
		sections = append(sections, Section{
			Title:           strings.TrimSpace(p.Title),
			StartOffset:     starts[i],
			EndOffset:       end,
			SectionType:     p.SectionType,
			PedagogicalRole: p.PedagogicalRole,
			HasQuestions:    p.HasQuestions,
			HasAnswerKey:    p.HasAnswerKey,
		})
	}
	if len(sections) > 0 {
		sections[0].StartOffset = 0
	}
	return sections, warnings
}

// findFold finds needle in text at or after from, ignoring case and treating
// any whitespace run as equivalent. It returns nil on a miss.
func findFold(text, needle string, from int) []int {
	words := strings.Fields(needle)
	if len(words) == 0 || from >= len(text) {
		return nil
	}
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	re, err := regexp.Compile(`(?i)` + strings.Join(words, `\s+`))
	if err != nil {
		return nil
	}
	loc := re.FindStringIndex(text[from:])
	if loc == nil {
		return nil
	}
	return []int{loc[0] + from, loc[1] + from}
}

func runePrefix(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for count := 0; count < n; count++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return strings.TrimSpace(s[:i])
}
