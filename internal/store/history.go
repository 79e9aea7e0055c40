package store

import (
	"context"

	"asset-tracker/internal/models"
)

func (s *Store) AppendHistory(ctx context.Context, e *models.HistoryEntry) error {
	return s.conn(ctx).Omit("Operator", "Approver").Create(e).Error
}

// ListHistory returns an asset's entries newest first. Deleted assets keep
// their history readable.
func (s *Store) ListHistory(ctx context.Context, assetID uint) ([]models.HistoryEntry, error) {
	var rows []models.HistoryEntry
	err := s.conn(ctx).
		Preload("Operator", unscoped).
		Preload("Approver", unscoped).
		Where("asset_id = ?", assetID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	return rows, err
}
