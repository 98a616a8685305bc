package extract

import (
	"fmt"
	"strings"

	"github.com/dgallion1/edugest/internal/chunker"
	"github.com/dgallion1/edugest/internal/config"
)

// Strategy is one of the closed set of extraction strategies.
type Strategy int

const (
	Generic Strategy = iota
	Curriculum
	Comprehension
	Assessment
)

func (s Strategy) String() string {
	switch s {
	case Curriculum:
		return "curriculum"
	case Comprehension:
		return "comprehension"
	case Assessment:
		return "assessment"
	}
	return "generic"
}

// strategySpec holds everything the shared loop needs from a strategy.
type strategySpec struct {
	chunk func(text string, maxChars int) []chunker.Span

	// instructions describe the response shape; categories are appended.
	instructions string

	// hints adds strategy-specific context for one chunk.
	hints func(chunk string, c Context) string

	// keepQuestions and keepVocabulary gate which parsed lists survive.
	keepQuestions  bool
	keepVocabulary bool

	// finish post-processes the accumulated result before dedupe.
	finish func(r *Result)
}

var strategies = map[Strategy]strategySpec{
	Generic: {
		chunk:        chunker.Chunk,
		instructions: genericInstructions,
	},
	Curriculum: {
		chunk:        chunker.ChunkByOutcomes,
		instructions: curriculumInstructions,
		hints:        curriculumHints,
		finish:       addImpliedQuestions,
	},
	Comprehension: {
		chunk:          chunker.Chunk,
		instructions:   comprehensionInstructions,
		keepQuestions:  true,
		keepVocabulary: true,
	},
	Assessment: {
		chunk:         chunker.Chunk,
		instructions:  assessmentInstructions,
		keepQuestions: true,
	},
}

const sharedRules = `Rules:
- Each "text" must stand on its own: name the subject, no pronouns pointing outside the item.
- One teaching point per assertion. Prefer specific statements over vague summaries.
- Do not copy instructions to the reader ("turn to page 4", "discuss with a partner").
- Tags are short lowercase topic slugs, at most 5.
- "examRelevance" is 0.0 to 1.0: how likely this point is to be examined.
- Return empty arrays if the text holds nothing worth keeping.

Respond with ONLY the JSON object, no other text.`

const genericInstructions = `Extract atomic teaching assertions from the following educational text. Return a JSON object:

{"assertions": [{"text": "...", "category": "...", "chapter": "...", "section": "...", "tags": ["..."], "examRelevance": 0.5, "figureRefs": ["Figure 2.1"]}]}

- "text": one verifiable statement (max 300 chars)
- "category": one of the categories listed below
- "chapter", "section": headings the statement appears under, if visible
- "figureRefs": figures or tables the statement depends on, if any`

const curriculumInstructions = `Extract the learning outcomes, assessment criteria, and subject content from the following curriculum or syllabus text. Return a JSON object:

{"assertions": [{"text": "...", "category": "...", "learningOutcomeRef": "LO1", "tags": ["..."], "examRelevance": 0.8}]}

- Each learning outcome becomes one assertion with category "learning_outcome".
- Each assessment criterion becomes one assertion with category "assessment_criterion", worded as written, including its reference number (e.g. "1.2 Describe the structure of a cell").
- Subject content listed under an outcome becomes assertions with the best matching category.
- "learningOutcomeRef": the outcome the item belongs to, as numbered in the text.`

const comprehensionInstructions = `Extract the teaching content, the questions, and the key vocabulary from the following reading or worksheet text. Return a JSON object:

{"assertions": [{"text": "...", "category": "...", "tags": ["..."]}],
 "questions": [{"text": "...", "type": "...", "options": ["..."], "correctAnswer": "...", "explanation": "...", "difficulty": 3}],
 "vocabulary": [{"term": "...", "definition": "...", "partOfSpeech": "noun", "example": "...", "topic": "..."}]}

Question types and their conventions:
- MCQ: 3 to 5 "options"; "correctAnswer" is the full text of the right option.
- TRUE_FALSE: "correctAnswer" is "True" or "False"; no options.
- MATCHING: "options" lists each pair as "left :: right"; "correctAnswer" may be empty.
- FILL_BLANK: "text" marks each gap with "___"; "correctAnswer" holds the missing words in order, comma separated.
- SHORT_ANSWER: a brief factual answer in "correctAnswer".
- OPEN: extended response; put expected points in "explanation"; "correctAnswer" may be empty.
- UNSCRAMBLE: "text" gives the scrambled letters or words; "correctAnswer" the unscrambled form.
- ORDERING: "options" lists the items in the correct order; "text" asks for the order.

If an answer key is present, use it for "correctAnswer". Otherwise answer from the passage.
"difficulty" is 1 (recall) to 5 (extended reasoning).`

const assessmentInstructions = `Extract the questions with their answers and the teaching points they test from the following assessment or past paper. Return a JSON object:

{"assertions": [{"text": "...", "category": "...", "tags": ["..."], "examRelevance": 0.9}],
 "questions": [{"text": "...", "type": "...", "options": ["..."], "correctAnswer": "...", "markScheme": "...", "explanation": "...", "difficulty": 3}]}

- Questions keep their wording; include the mark allocation in "markScheme" when shown ("[2 marks] one mark for ..., one mark for ...").
- "type" is one of MCQ, TRUE_FALSE, MATCHING, FILL_BLANK, SHORT_ANSWER, OPEN, UNSCRAMBLE, ORDERING.
- MCQ "correctAnswer" is the full text of the right option.
- "difficulty" is 1 (recall) to 5 (extended reasoning).
- Assertions capture what a correct answer must know. Use "mark_scheme" for marking guidance and "misconception" for common wrong answers the paper warns about.`

func curriculumHints(_ string, c Context) string {
	if !c.HasOutcomes {
		return ""
	}
	return "This excerpt contains numbered learning outcomes. Keep every assessment criterion with the outcome it is listed under and set learningOutcomeRef accordingly.\n"
}

// buildSystemPrompt renders a strategy's instructions with the run's categories.
func buildSystemPrompt(spec strategySpec, cfg *config.ExtractionConfig) string {
	var sb strings.Builder
	sb.WriteString(spec.instructions)
	sb.WriteString("\n\nCategories: ")
	sb.WriteString(strings.Join(cfg.Categories, ", "))
	sb.WriteString("\n\n")
	sb.WriteString(sharedRules)
	return sb.String()
}

// buildChunkPrompt creates the user prompt for one chunk with its document
// context header.
func buildChunkPrompt(spec strategySpec, opts Options, c Context, chunk string) string {
	var sb strings.Builder
	sb.WriteString("---\n")
	if opts.FileName != "" {
		sb.WriteString(fmt.Sprintf("Document: %q\n", opts.FileName))
	}
	if c.Qualification != "" {
		sb.WriteString(fmt.Sprintf("Qualification: %s\n", c.Qualification))
	}
	if opts.Chapter != "" || opts.Section != "" {
		sb.WriteString("Section: ")
		sb.WriteString(strings.Join(nonEmpty(opts.Chapter, opts.Section), " > "))
		sb.WriteString("\n")
	}
	if c.Focus != "" {
		sb.WriteString(fmt.Sprintf("Focus: only extract content about %s\n", c.Focus))
	}
	sb.WriteString(fmt.Sprintf("Part %d of %d\n", c.ChunkIndex+1, c.ChunkTotal))
	if spec.hints != nil {
		sb.WriteString(spec.hints(chunk, c))
	}
	sb.WriteString("---\n")
	sb.WriteString(chunk)
	return sb.String()
}

func nonEmpty(ss ...string) []string {
	var out []string
	for _, s := range ss {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
