package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dgallion1/edugest/internal/config"
	"github.com/dgallion1/edugest/internal/textnorm"
)

const (
	maxTags       = 5
	maxTermChars  = 120
	maxOptions    = 12
	defaultLevel  = 3
	minDifficulty = 1
	maxDifficulty = 5
)

// injectionPattern rejects items that read as instructions to a model.
// Phrases are anchored to model-directed wording so ordinary prose such as
// "enzymes act as catalysts" passes.
var injectionPattern = regexp.MustCompile(
	`(?i)(ignore\s+(previous|all|above)\s+(instructions|prompts?|text)|system\s*prompt|you\s+are\s+now|` +
		`act\s+as\s+(an?\s+)?(ai|assistant|chatbot|language\s+model)\b|pretend\s+(to\s+be|you\s+are)|` +
		`forget\s+(everything|all\s+previous)|override\s+(your|the|all)\s+(instructions|rules)|` +
		`new\s+instructions)`,
)

// validator checks and normalizes items against one run's config. It
// counts category fallbacks so they can be reported once.
type validator struct {
	cfg                *config.ExtractionConfig
	categoryFallbacks  int
	rejectedAssertions int
	rejectedQuestions  int
	rejectedVocabulary int
}

func (v *validator) text(s string) (string, bool) {
	s = strings.Join(strings.Fields(s), " ")
	minChars, maxChars := v.cfg.Items.MinChars, v.cfg.Items.MaxChars
	if minChars <= 0 {
		minChars = 3
	}
	if maxChars <= 0 {
		maxChars = 2000
	}
	if len(s) < minChars || len(s) > maxChars {
		return "", false
	}
	if injectionPattern.MatchString(s) {
		return "", false
	}
	return s, true
}

// assertion validates a, replacing an unknown category with the default.
func (v *validator) assertion(a *Assertion) bool {
	text, ok := v.text(a.Text)
	if !ok {
		v.rejectedAssertions++
		return false
	}
	a.Text = text
	a.Category = strings.ToLower(strings.TrimSpace(a.Category))
	if !v.cfg.HasCategory(a.Category) {
		a.Category = v.cfg.DefaultCategory
		v.categoryFallbacks++
	}
	a.Tags = normalizeTags(a.Tags)
	if a.ExamRelevance < 0 {
		a.ExamRelevance = 0
	} else if a.ExamRelevance > 1 {
		a.ExamRelevance = 1
	}
	a.ContentHash = textnorm.ContentHash(a.Text)
	return true
}

// question validates q and applies the conventions of its type. Items that
// cannot satisfy their type are downgraded to SHORT_ANSWER.
func (v *validator) question(q *Question) bool {
	text, ok := v.text(q.Text)
	if !ok {
		v.rejectedQuestions++
		return false
	}
	q.Text = text
	q.Type = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(q.Type), " ", "_"))
	if !questionTypes[q.Type] {
		q.Type = QuestionShortAnswer
	}
	q.CorrectAnswer = strings.TrimSpace(q.CorrectAnswer)
	q.Options = trimAll(q.Options, maxOptions)

	switch q.Type {
	case QuestionMCQ:
		if len(q.Options) < 2 {
			q.Type = QuestionShortAnswer
			break
		}
		q.CorrectAnswer = resolveOptionLetter(q.CorrectAnswer, q.Options)
	case QuestionTrueFalse:
		ans, ok := truthValue(q.CorrectAnswer)
		if !ok {
			v.rejectedQuestions++
			return false
		}
		q.Options = []string{"True", "False"}
		q.CorrectAnswer = ans
	case QuestionFillBlank:
		if !strings.Contains(q.Text, "_") {
			q.Type = QuestionShortAnswer
		}
	case QuestionMatching, QuestionOrdering:
		if len(q.Options) < 2 {
			q.Type = QuestionShortAnswer
			break
		}
		// The option list in its given order is the answer.
		if q.CorrectAnswer == "" {
			q.CorrectAnswer = strings.Join(q.Options, "; ")
		}
	}
	if q.Type != QuestionOpen && q.CorrectAnswer == "" && q.MarkScheme == "" {
		v.rejectedQuestions++
		return false
	}

	if q.Difficulty == 0 {
		q.Difficulty = defaultLevel
	}
	q.Difficulty = max(minDifficulty, min(maxDifficulty, q.Difficulty))
	q.ContentHash = textnorm.ContentHash(q.Text)
	return true
}

func (v *validator) vocabulary(w *Vocabulary) bool {
	term := strings.Join(strings.Fields(w.Term), " ")
	if term == "" || len(term) > maxTermChars || injectionPattern.MatchString(term) {
		v.rejectedVocabulary++
		return false
	}
	def, ok := v.text(w.Definition)
	if !ok {
		v.rejectedVocabulary++
		return false
	}
	w.Term = term
	w.Definition = def
	w.PartOfSpeech = strings.ToLower(strings.TrimSpace(w.PartOfSpeech))
	w.ContentHash = textnorm.ContentHash(textnorm.TermKey(term))
	return true
}

func normalizeTags(tags []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range tags {
		s := textnorm.Slugify(t)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if len(out) == maxTags {
			break
		}
	}
	return out
}

func trimAll(in []string, limit int) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
		if len(out) == limit {
			break
		}
	}
	return out
}

// resolveOptionLetter maps "B" or "2" to the option text it names.
func resolveOptionLetter(ans string, options []string) string {
	a := strings.TrimRight(strings.TrimSpace(ans), ").")
	if len(a) == 1 {
		c := strings.ToUpper(a)[0]
		if c >= 'A' && int(c-'A') < len(options) {
			return options[c-'A']
		}
	}
	if n, err := strconv.Atoi(a); err == nil && n >= 1 && n <= len(options) {
		return options[n-1]
	}
	return ans
}

func truthValue(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes":
		return "True", true
	case "false", "f", "no":
		return "False", true
	}
	return "", false
}
