package classify

import "strings"

// Pedagogical document types.
const (
	TypeTextbook      = "TEXTBOOK"
	TypeCurriculum    = "CURRICULUM"
	TypeSyllabus      = "SYLLABUS"
	TypeComprehension = "COMPREHENSION"
	TypeWorksheet     = "WORKSHEET"
	TypeAssessment    = "ASSESSMENT"
	TypePastPaper     = "PAST_PAPER"
	TypeLessonPlan    = "LESSON_PLAN"
	TypeRevisionGuide = "REVISION_GUIDE"
	TypeReference     = "REFERENCE"
)

// Types lists every type with the description shown to the model.
var Types = []struct {
	Name        string
	Description string
}{
	{TypeTextbook, "expository teaching prose: chapters explaining concepts"},
	{TypeCurriculum, "a formal specification of learning outcomes and assessment criteria"},
	{TypeSyllabus, "a course outline listing topics, outcomes, and schedule"},
	{TypeComprehension, "a reading passage followed by questions about it"},
	{TypeWorksheet, "practice activities: gap fills, matching, exercises, often with an answer key"},
	{TypeAssessment, "a test or quiz with marked questions"},
	{TypePastPaper, "a previous examination paper, usually with a mark scheme"},
	{TypeLessonPlan, "teacher-facing lesson structure, timings, and activities"},
	{TypeRevisionGuide, "condensed summaries and key facts for exam revision"},
	{TypeReference, "glossaries, data sheets, and lookup tables"},
}

// Normalize upper-cases a type name and reports whether it is known.
func Normalize(t string) (string, bool) {
	t = strings.ToUpper(strings.TrimSpace(t))
	t = strings.NewReplacer(" ", "_", "-", "_").Replace(t)
	for _, known := range Types {
		if known.Name == t {
			return t, true
		}
	}
	return t, false
}
