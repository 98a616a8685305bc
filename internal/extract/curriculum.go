package extract

import (
	"regexp"
	"strings"

	"github.com/dgallion1/edugest/internal/textnorm"
)

// criterionPrefix matches a leading reference such as "AC 1.2:" or "3.1)".
var criterionPrefix = regexp.MustCompile(`^(?i)(?:AC\s*)?\d+(?:\.\d+)*\s*[:.)\-]?\s*`)

type impliedKind struct {
	questionType string
	difficulty   int
}

var (
	recall   = impliedKind{QuestionShortAnswer, 2}
	extended = impliedKind{QuestionOpen, 4}
)

// commandVerbs maps an assessment criterion's command verb to the question
// it implies.
var commandVerbs = map[string]impliedKind{
	"state":    recall,
	"list":     recall,
	"identify": recall,
	"name":     recall,
	"outline":  recall,
	"describe": recall,
	"recall":   recall,
	"give":     recall,
	"define":   recall,
	"explain":  extended,
	"evaluate": extended,
	"analyse":  extended,
	"analyze":  extended,
	"discuss":  extended,
	"compare":  extended,
	"justify":  extended,
	"assess":   extended,
	"examine":  extended,
}

// impliedQuestion turns an assessment criterion into the question a learner
// would be asked to show it. Criteria without a known command verb imply
// nothing.
func impliedQuestion(a Assertion) (Question, bool) {
	body := strings.TrimSpace(criterionPrefix.ReplaceAllString(a.Text, ""))
	words := strings.Fields(body)
	if len(words) > 0 && strings.EqualFold(words[0], "critically") {
		words = words[1:]
	}
	if len(words) < 2 {
		return Question{}, false
	}
	verb := strings.ToLower(strings.Trim(words[0], ",.:;"))
	kind, ok := commandVerbs[verb]
	if !ok {
		return Question{}, false
	}

	text := strings.Join(words, " ")
	text = strings.ToUpper(text[:1]) + text[1:]
	text = strings.TrimRight(text, ".;:") + "."

	q := Question{
		Text:            text,
		Type:            kind.questionType,
		MarkScheme:      "Criterion: " + a.Text,
		LearningOutcome: a.LearningOutcome,
		Difficulty:      kind.difficulty,
	}
	q.ContentHash = textnorm.ContentHash(q.Text)
	return q, true
}

func addImpliedQuestions(r *Result) {
	for _, a := range r.Assertions {
		if a.Category != CategoryAssessmentCriterion {
			continue
		}
		if q, ok := impliedQuestion(a); ok {
			r.Questions = append(r.Questions, q)
		}
	}
}
