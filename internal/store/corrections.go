package store

import (
	"context"
	"fmt"

	"github.com/dgallion1/edugest/internal/classify"
)

// AddCorrection records a human classification fix.
func (s *Store) AddCorrection(ctx context.Context, c *Correction) error {
	if c.CorrectedType == "" {
		return fmt.Errorf("correction: corrected type is required")
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("save correction: %w", err)
	}
	return nil
}

// Examples returns corrections newest first as classifier worked examples.
// An empty domain matches every domain.
func (s *Store) Examples(ctx context.Context, domain string, limit int) ([]classify.Example, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if domain != "" {
		q = q.Where("domain = ?", domain)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []Correction
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list corrections: %w", err)
	}
	out := make([]classify.Example, 0, len(rows))
	for _, r := range rows {
		out = append(out, classify.Example{
			ID:            r.ID.String(),
			Sample:        r.Sample,
			FileName:      r.FileName,
			CorrectedType: r.CorrectedType,
			OriginalType:  r.OriginalType,
		})
	}
	return out, nil
}
