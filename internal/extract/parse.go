package extract

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dgallion1/edugest/internal/jsonrepair"
)

// chunkOutput is the union of every strategy's response shape.
type chunkOutput struct {
	Assertions []Assertion
	Questions  []Question
	Vocabulary []Vocabulary
	Fixes      []string
}

// parseChunk recovers a response and decodes it leniently: keys may be
// camelCase or snake_case, scalars may arrive as strings, and a bare array
// is read as an assertion list.
func parseChunk(raw string) (chunkOutput, error) {
	res, err := jsonrepair.Recover(raw)
	if err != nil {
		return chunkOutput{}, err
	}
	out := chunkOutput{Fixes: res.FixesApplied}

	var root map[string]any
	switch v := res.Value.(type) {
	case map[string]any:
		root = v
	case []any:
		root = map[string]any{"assertions": v}
	default:
		return out, fmt.Errorf("unexpected response shape %T", res.Value)
	}

	for _, m := range objects(root, "assertions", "facts") {
		out.Assertions = append(out.Assertions, Assertion{
			Text:            str(m, "text", "assertion"),
			Category:        str(m, "category"),
			Chapter:         str(m, "chapter", "chapterRef", "chapter_ref"),
			Section:         str(m, "section", "sectionRef", "section_ref"),
			Tags:            strs(m, "tags"),
			ValidFrom:       str(m, "validFrom", "valid_from"),
			ValidUntil:      str(m, "validUntil", "valid_until"),
			ExamRelevance:   num(m, "examRelevance", "exam_relevance"),
			LearningOutcome: str(m, "learningOutcomeRef", "learning_outcome_ref", "learningOutcome", "lo"),
			FigureRefs:      strs(m, "figureRefs", "figure_refs", "figures"),
		})
	}
	for _, m := range objects(root, "questions") {
		out.Questions = append(out.Questions, Question{
			Text:            str(m, "text", "question"),
			Type:            str(m, "type", "questionType", "question_type"),
			Options:         strs(m, "options", "choices", "pairs", "items"),
			CorrectAnswer:   str(m, "correctAnswer", "correct_answer", "answer"),
			Explanation:     str(m, "explanation"),
			MarkScheme:      str(m, "markScheme", "mark_scheme"),
			LearningOutcome: str(m, "learningOutcomeRef", "learning_outcome_ref", "learningOutcome"),
			Difficulty:      int(math.Round(num(m, "difficulty"))),
		})
	}
	for _, m := range objects(root, "vocabulary", "terms") {
		out.Vocabulary = append(out.Vocabulary, Vocabulary{
			Term:         str(m, "term", "word"),
			Definition:   str(m, "definition", "meaning"),
			PartOfSpeech: str(m, "partOfSpeech", "part_of_speech", "pos"),
			Example:      str(m, "example", "exampleSentence"),
			Topic:        str(m, "topic"),
		})
	}
	return out, nil
}

func objects(root map[string]any, keys ...string) []map[string]any {
	for _, k := range keys {
		list, ok := root[k].([]any)
		if !ok {
			continue
		}
		out := make([]map[string]any, 0, len(list))
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		return scalarString(v)
	}
	return ""
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, scalarString(p))
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		if pair := matchPair(t); pair != "" {
			return pair
		}
		b, _ := json.Marshal(t)
		return string(b)
	}
	return fmt.Sprint(v)
}

// matchPair renders {"left": a, "right": b} style objects as "a :: b".
func matchPair(m map[string]any) string {
	for _, keys := range [][2]string{{"left", "right"}, {"term", "match"}, {"prompt", "answer"}} {
		l, lok := m[keys[0]]
		r, rok := m[keys[1]]
		if lok && rok {
			return scalarString(l) + " :: " + scalarString(r)
		}
	}
	return ""
}

func strs(m map[string]any, keys ...string) []string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case []any:
			out := make([]string, 0, len(t))
			for _, item := range t {
				out = append(out, scalarString(item))
			}
			return out
		case string:
			return []string{t}
		}
	}
	return nil
}

func num(m map[string]any, keys ...string) float64 {
	for _, k := range keys {
		switch t := m[k].(type) {
		case float64:
			return t
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
				return f
			}
		}
	}
	return 0
}
