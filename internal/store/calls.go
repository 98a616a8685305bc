package store

import (
	"context"
	"fmt"

	"github.com/dgallion1/edugest/internal/llm"
)

// RecordCall appends one completion attempt to the AI call log.
func (s *Store) RecordCall(ctx context.Context, rec llm.CallRecord) error {
	row := &AICall{
		CallPoint:      rec.CallPoint,
		Model:          rec.Model,
		Attempt:        rec.Attempt,
		LatencyMs:      rec.LatencyMs,
		Success:        rec.Success,
		Error:          rec.Error,
		PromptTokens:   rec.PromptTokens,
		ResponseTokens: rec.ResponseTokens,
		CreatedAt:      rec.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("record call: %w", err)
	}
	return nil
}

// RecentCalls returns the newest call log entries.
func (s *Store) RecentCalls(ctx context.Context, limit int) ([]AICall, error) {
	var out []AICall
	if err := s.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	return out, nil
}
