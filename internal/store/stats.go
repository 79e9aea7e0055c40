package store

import (
	"context"

	"asset-tracker/internal/models"
)

// Counts is the dashboard summary. Soft-deleted users and assets are
// excluded.
type Counts struct {
	TotalUsers       int64 `json:"total_users"`
	TotalAssets      int64 `json:"total_assets"`
	InUseAssets      int64 `json:"in_use_assets"`
	InStockAssets    int64 `json:"in_stock_assets"`
	PendingTransfers int64 `json:"pending_transfers"`
	PendingReturns   int64 `json:"pending_returns"`
	PendingEdits     int64 `json:"pending_edits"`
	PendingApprovals int64 `json:"pending_approvals"`
	OpenCheckTasks   int64 `json:"open_check_tasks"`
}

func (s *Store) Counts(ctx context.Context) (*Counts, error) {
	db := s.conn(ctx)
	var c Counts
	queries := []struct {
		dst   *int64
		model any
		where string
		arg   any
	}{
		{&c.TotalUsers, &models.User{}, "", nil},
		{&c.TotalAssets, &models.Asset{}, "", nil},
		{&c.InUseAssets, &models.Asset{}, "status = ?", models.AssetInUse},
		{&c.InStockAssets, &models.Asset{}, "status = ?", models.AssetInStock},
		{&c.PendingTransfers, &models.TransferRequest{}, "status = ?", models.TransferPending},
		{&c.PendingReturns, &models.ReturnRequest{}, "status = ?", models.StatusPending},
		{&c.PendingEdits, &models.EditRequest{}, "status = ?", models.StatusPending},
		{&c.OpenCheckTasks, &models.CheckTask{}, "status = ?", models.CheckTaskPending},
	}
	for _, q := range queries {
		tx := db.Model(q.model)
		if q.where != "" {
			tx = tx.Where(q.where, q.arg)
		}
		if err := tx.Count(q.dst).Error; err != nil {
			return nil, err
		}
	}
	c.PendingApprovals = c.PendingTransfers + c.PendingReturns + c.PendingEdits
	return &c, nil
}
