// Package extract turns document text into assertions, questions, and
// vocabulary with one of a closed set of strategies chosen by document type.
package extract

// Question types.
const (
	QuestionMCQ         = "MCQ"
	QuestionTrueFalse   = "TRUE_FALSE"
	QuestionMatching    = "MATCHING"
	QuestionFillBlank   = "FILL_BLANK"
	QuestionShortAnswer = "SHORT_ANSWER"
	QuestionOpen        = "OPEN"
	QuestionUnscramble  = "UNSCRAMBLE"
	QuestionOrdering    = "ORDERING"
)

var questionTypes = map[string]bool{
	QuestionMCQ: true, QuestionTrueFalse: true, QuestionMatching: true, QuestionFillBlank: true,
	QuestionShortAnswer: true, QuestionOpen: true, QuestionUnscramble: true, QuestionOrdering: true,
}

// Categories with strategy-specific handling.
const (
	CategoryAssessmentCriterion = "assessment_criterion"
	CategoryLearningOutcome     = "learning_outcome"
)

// Assertion is an atomic, independently verifiable teaching point.
type Assertion struct {
	Text            string   `json:"text"`
	Category        string   `json:"category"`
	Chapter         string   `json:"chapter,omitempty"`
	Section         string   `json:"section,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	ValidFrom       string   `json:"validFrom,omitempty"`
	ValidUntil      string   `json:"validUntil,omitempty"`
	ExamRelevance   float64  `json:"examRelevance,omitempty"`
	LearningOutcome string   `json:"learningOutcomeRef,omitempty"`
	FigureRefs      []string `json:"figureRefs,omitempty"`
	ContentHash     string   `json:"contentHash"`
}

// Question is a question with its answer.
type Question struct {
	Text            string   `json:"text"`
	Type            string   `json:"type"`
	Options         []string `json:"options,omitempty"`
	CorrectAnswer   string   `json:"correctAnswer,omitempty"`
	Explanation     string   `json:"explanation,omitempty"`
	MarkScheme      string   `json:"markScheme,omitempty"`
	LearningOutcome string   `json:"learningOutcomeRef,omitempty"`
	Difficulty      int      `json:"difficulty"`
	ContentHash     string   `json:"contentHash"`
}

// Vocabulary is a glossary term.
type Vocabulary struct {
	Term         string `json:"term"`
	Definition   string `json:"definition"`
	PartOfSpeech string `json:"partOfSpeech,omitempty"`
	Example      string `json:"example,omitempty"`
	Topic        string `json:"topic,omitempty"`
	ContentHash  string `json:"contentHash"`
}

// Options are caller-supplied parameters for one Extract call.
type Options struct {
	SourceID      string
	FileName      string
	Qualification string
	Focus         string
	Chapter       string
	Section       string
}

// Context is the immutable per-chunk view handed to prompt builders.
type Context struct {
	ChunkIndex    int
	ChunkTotal    int
	SourceID      string
	Qualification string
	Focus         string
	HasOutcomes   bool
}

// Result is the combined output of one Extract call.
type Result struct {
	Strategy        string       `json:"strategy"`
	Assertions      []Assertion  `json:"assertions"`
	Questions       []Question   `json:"questions"`
	Vocabulary      []Vocabulary `json:"vocabulary"`
	Warnings        []string     `json:"warnings,omitempty"`
	ChunksProcessed int          `json:"chunksProcessed"`
	FailedChunks    int          `json:"failedChunks"`
}

// Merge appends another result, as for sections of one document.
func (r *Result) Merge(o *Result) {
	r.Assertions = append(r.Assertions, o.Assertions...)
	r.Questions = append(r.Questions, o.Questions...)
	r.Vocabulary = append(r.Vocabulary, o.Vocabulary...)
	r.Warnings = append(r.Warnings, o.Warnings...)
	r.ChunksProcessed += o.ChunksProcessed
	r.FailedChunks += o.FailedChunks
}
