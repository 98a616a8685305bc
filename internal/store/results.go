package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/dgallion1/edugest/internal/dedupe"
	"github.com/dgallion1/edugest/internal/extract"
	"github.com/dgallion1/edugest/internal/pyramid"
	"github.com/dgallion1/edugest/internal/textnorm"
)

// SaveStats counts what SaveResult wrote and what it skipped as already
// stored for the source.
type SaveStats struct {
	Assertions int `json:"assertions"`
	Questions  int `json:"questions"`
	Vocabulary int `json:"vocabulary"`
	Skipped    int `json:"skipped"`
}

// UpsertSource creates or updates a source record.
func (s *Store) UpsertSource(ctx context.Context, src *Source) error {
	if err := s.db.WithContext(ctx).Save(src).Error; err != nil {
		return fmt.Errorf("save source %s: %w", src.ID, err)
	}
	return nil
}

func (s *Store) GetSource(ctx context.Context, id string) (*Source, error) {
	var src Source
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&src).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("source %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get source %s: %w", id, err)
	}
	return &src, nil
}

// SaveResult persists a run's items for sourceID in one transaction. Items
// whose content hash (or vocabulary term) is already stored for the source
// are skipped, so re-ingesting a document adds only new material.
func (s *Store) SaveResult(ctx context.Context, sourceID, runID string, res *extract.Result) (SaveStats, error) {
	var stats SaveStats
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var hashes []string
		if err := tx.Model(&KnowledgeNode{}).
			Where("source_id = ? AND kind = ?", sourceID, KindAssertion).
			Pluck("content_hash", &hashes).Error; err != nil {
			return fmt.Errorf("load assertion hashes: %w", err)
		}
		assertions, skipped := dedupe.Filter(dedupe.NewSet(hashes...), res.Assertions,
			func(a extract.Assertion) string { return a.ContentHash })
		stats.Skipped += skipped

		var questionHashes []string
		if err := tx.Model(&Question{}).Where("source_id = ?", sourceID).
			Pluck("content_hash", &questionHashes).Error; err != nil {
			return fmt.Errorf("load question hashes: %w", err)
		}
		questions, skipped := dedupe.Filter(dedupe.NewSet(questionHashes...), res.Questions,
			func(q extract.Question) string { return q.ContentHash })
		stats.Skipped += skipped

		var terms []string
		if err := tx.Model(&VocabularyTerm{}).Where("source_id = ?", sourceID).
			Pluck("term_key", &terms).Error; err != nil {
			return fmt.Errorf("load vocabulary terms: %w", err)
		}
		vocab, skipped := dedupe.Filter(dedupe.NewSet(terms...), res.Vocabulary,
			func(w extract.Vocabulary) string { return textnorm.TermKey(w.Term) })
		stats.Skipped += skipped

		if len(assertions) > 0 {
			rows := make([]*KnowledgeNode, 0, len(assertions))
			for i, a := range assertions {
				rows = append(rows, &KnowledgeNode{
					SourceID:        sourceID,
					RunID:           runID,
					Kind:            KindAssertion,
					SortOrder:       i,
					Text:            a.Text,
					Category:        a.Category,
					Chapter:         a.Chapter,
					Section:         a.Section,
					Tags:            jsonList(a.Tags),
					ValidFrom:       a.ValidFrom,
					ValidUntil:      a.ValidUntil,
					ExamRelevance:   a.ExamRelevance,
					LearningOutcome: a.LearningOutcome,
					FigureRefs:      jsonList(a.FigureRefs),
					ContentHash:     a.ContentHash,
				})
			}
			if err := tx.CreateInBatches(rows, 100).Error; err != nil {
				return fmt.Errorf("insert assertions: %w", err)
			}
		}
		if len(questions) > 0 {
			rows := make([]*Question, 0, len(questions))
			for _, q := range questions {
				rows = append(rows, &Question{
					SourceID:        sourceID,
					RunID:           runID,
					Text:            q.Text,
					Type:            q.Type,
					Options:         jsonList(q.Options),
					CorrectAnswer:   q.CorrectAnswer,
					Explanation:     q.Explanation,
					MarkScheme:      q.MarkScheme,
					LearningOutcome: q.LearningOutcome,
					Difficulty:      q.Difficulty,
					ContentHash:     q.ContentHash,
				})
			}
			if err := tx.CreateInBatches(rows, 100).Error; err != nil {
				return fmt.Errorf("insert questions: %w", err)
			}
		}
		if len(vocab) > 0 {
			rows := make([]*VocabularyTerm, 0, len(vocab))
			for _, w := range vocab {
				rows = append(rows, &VocabularyTerm{
					SourceID:     sourceID,
					RunID:        runID,
					Term:         w.Term,
					TermKey:      textnorm.TermKey(w.Term),
					Definition:   w.Definition,
					PartOfSpeech: w.PartOfSpeech,
					Example:      w.Example,
					Topic:        w.Topic,
					ContentHash:  w.ContentHash,
				})
			}
			if err := tx.CreateInBatches(rows, 100).Error; err != nil {
				return fmt.Errorf("insert vocabulary: %w", err)
			}
		}
		stats.Assertions = len(assertions)
		stats.Questions = len(questions)
		stats.Vocabulary = len(vocab)
		return nil
	})
	if err != nil {
		return SaveStats{}, err
	}
	s.log.Info("result saved",
		"source", sourceID,
		"run", runID,
		"assertions", stats.Assertions,
		"questions", stats.Questions,
		"vocabulary", stats.Vocabulary,
		"skipped", stats.Skipped,
	)
	return stats, nil
}

// Assertions returns a source's assertions in stored order.
func (s *Store) Assertions(ctx context.Context, sourceID string) ([]KnowledgeNode, error) {
	var out []KnowledgeNode
	if err := s.db.WithContext(ctx).
		Where("source_id = ? AND kind = ?", sourceID, KindAssertion).
		Order("created_at ASC, sort_order ASC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list assertions for %s: %w", sourceID, err)
	}
	return out, nil
}

// Facts returns a source's assertions as pyramid input together with the
// hash to record id map NewPlan needs.
func (s *Store) Facts(ctx context.Context, sourceID string) ([]pyramid.Fact, map[string]string, error) {
	rows, err := s.Assertions(ctx, sourceID)
	if err != nil {
		return nil, nil, err
	}
	facts := make([]pyramid.Fact, 0, len(rows))
	ids := make(map[string]string, len(rows))
	for _, r := range rows {
		if r.ContentHash == "" {
			continue
		}
		if _, dup := ids[r.ContentHash]; dup {
			continue
		}
		ids[r.ContentHash] = r.ID.String()
		facts = append(facts, pyramid.Fact{Hash: r.ContentHash, Text: r.Text})
	}
	return facts, ids, nil
}

func jsonList(items []string) datatypes.JSON {
	if len(items) == 0 {
		return nil
	}
	b, _ := json.Marshal(items)
	return datatypes.JSON(b)
}
