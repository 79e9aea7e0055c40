package workflow

import (
	"context"
	"fmt"

	"asset-tracker/internal/store"
)

type Stats struct {
	d Deps
}

func NewStats(d Deps) *Stats {
	return &Stats{d: d}
}

func (s *Stats) Summary(ctx context.Context) (*store.Counts, error) {
	c, err := s.d.Store.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count stats: %w", err)
	}
	return c, nil
}
