package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dgallion1/edugest/internal/pyramid"
)

// ApplyPyramid executes a plan in one transaction. Topic nodes from earlier
// runs are deleted and assertion parent links reset first, so applying the
// same plan twice leaves the same tree.
func (s *Store) ApplyPyramid(ctx context.Context, plan pyramid.Plan) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&KnowledgeNode{}).
			Where("source_id = ? AND kind = ?", plan.SourceID, KindAssertion).
			Updates(map[string]any{"parent_id": nil, "depth": 0, "sort_order": 0}).Error; err != nil {
			return fmt.Errorf("reset assertion links: %w", err)
		}
		if err := tx.Where("source_id = ? AND engine_created = ?", plan.SourceID, true).
			Delete(&KnowledgeNode{}).Error; err != nil {
			return fmt.Errorf("clear topic nodes: %w", err)
		}

		ids := make(map[string]uuid.UUID, len(plan.Nodes))
		rows := make([]*KnowledgeNode, 0, len(plan.Nodes))
		for _, op := range plan.Nodes {
			row := &KnowledgeNode{
				ID:            uuid.New(),
				SourceID:      plan.SourceID,
				Kind:          KindTopic,
				EngineCreated: true,
				Depth:         op.Depth,
				SortOrder:     op.Order,
				Text:          op.Text,
				Slug:          op.Slug,
			}
			if op.ParentKey != "" {
				parent, ok := ids[op.ParentKey]
				if !ok {
					return fmt.Errorf("node %s: parent %s not planned before it", op.Key, op.ParentKey)
				}
				row.ParentID = &parent
			}
			ids[op.Key] = row.ID
			rows = append(rows, row)
		}
		if len(rows) > 0 {
			if err := tx.CreateInBatches(rows, 100).Error; err != nil {
				return fmt.Errorf("insert topic nodes: %w", err)
			}
		}

		for _, link := range plan.Links {
			id, err := uuid.Parse(link.AssertionID)
			if err != nil {
				return fmt.Errorf("link %s: %w", link.Hash, err)
			}
			parent := ids[link.ParentKey]
			res := tx.Model(&KnowledgeNode{}).
				Where("id = ? AND source_id = ?", id, plan.SourceID).
				Updates(map[string]any{"parent_id": parent, "depth": link.Depth, "sort_order": link.Order})
			if res.Error != nil {
				return fmt.Errorf("link %s: %w", link.Hash, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("link %s: assertion %s: %w", link.Hash, link.AssertionID, ErrNotFound)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply pyramid for %s: %w", plan.SourceID, err)
	}
	stats := plan.Stats()
	s.log.Info("pyramid applied",
		"source", plan.SourceID,
		"nodes", stats.NodesCreated,
		"linked", stats.AssertionsLinked,
		"orphans", stats.OrphanCount,
	)
	return nil
}

// Children returns the direct children of a node, or the roots of a
// source's hierarchy when parentID is nil.
func (s *Store) Children(ctx context.Context, sourceID string, parentID *uuid.UUID) ([]KnowledgeNode, error) {
	q := s.db.WithContext(ctx).Where("source_id = ?", sourceID)
	if parentID == nil {
		q = q.Where("parent_id IS NULL AND kind = ?", KindTopic)
	} else {
		q = q.Where("parent_id = ?", *parentID)
	}
	var out []KnowledgeNode
	if err := q.Order("sort_order ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return out, nil
}
