package store

import (
	"context"

	"asset-tracker/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RequestFilter narrows request listings. VisibleTo limits rows to those
// the user filed, holds or receives.
type RequestFilter struct {
	Status    string
	AssetID   uint
	VisibleTo uint
}

func (f RequestFilter) apply(q *gorm.DB) *gorm.DB {
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.AssetID != 0 {
		q = q.Where("asset_id = ?", f.AssetID)
	}
	return q
}

// --- transfers ---

func (s *Store) TransferByID(ctx context.Context, id uint) (*models.TransferRequest, error) {
	q := s.conn(ctx).
		Preload("Asset", unscoped).
		Preload("FromUser", unscoped).
		Preload("ToUser", unscoped).
		Preload("CreatedBy", unscoped).
		Preload("Approver", unscoped)
	return first[models.TransferRequest](q, id)
}

func (s *Store) LockTransfer(ctx context.Context, id uint) (*models.TransferRequest, error) {
	return first[models.TransferRequest](forUpdate(s.conn(ctx)), id)
}

func (s *Store) CreateTransfer(ctx context.Context, r *models.TransferRequest) error {
	return s.conn(ctx).Omit(clause.Associations).Create(r).Error
}

func (s *Store) DeleteTransfer(ctx context.Context, id uint) error {
	return s.conn(ctx).Delete(&models.TransferRequest{}, id).Error
}

func (s *Store) FinalizeTransfer(ctx context.Context, id uint, from models.TransferStatus, updates map[string]any) (bool, error) {
	return finalize(s.conn(ctx), &models.TransferRequest{}, id, string(from), updates)
}

func (s *Store) ListTransfers(ctx context.Context, f RequestFilter) ([]models.TransferRequest, error) {
	q := f.apply(s.conn(ctx)).
		Preload("Asset", unscoped).
		Preload("FromUser", unscoped).
		Preload("ToUser", unscoped)
	if f.VisibleTo != 0 {
		q = q.Where("(from_user_id = ? OR to_user_id = ? OR created_by_id = ?)", f.VisibleTo, f.VisibleTo, f.VisibleTo)
	}
	var rows []models.TransferRequest
	err := q.Order("id DESC").Find(&rows).Error
	return rows, err
}

// --- returns ---

func (s *Store) ReturnByID(ctx context.Context, id uint) (*models.ReturnRequest, error) {
	q := s.conn(ctx).
		Preload("Asset", unscoped).
		Preload("User", unscoped).
		Preload("NewHolder", unscoped).
		Preload("Approver", unscoped)
	return first[models.ReturnRequest](q, id)
}

func (s *Store) LockReturn(ctx context.Context, id uint) (*models.ReturnRequest, error) {
	return first[models.ReturnRequest](forUpdate(s.conn(ctx)), id)
}

func (s *Store) CreateReturn(ctx context.Context, r *models.ReturnRequest) error {
	return s.conn(ctx).Omit(clause.Associations).Create(r).Error
}

func (s *Store) DeleteReturn(ctx context.Context, id uint) error {
	return s.conn(ctx).Delete(&models.ReturnRequest{}, id).Error
}

func (s *Store) FinalizeReturn(ctx context.Context, id uint, from models.ApprovalStatus, updates map[string]any) (bool, error) {
	return finalize(s.conn(ctx), &models.ReturnRequest{}, id, string(from), updates)
}

func (s *Store) ListReturns(ctx context.Context, f RequestFilter) ([]models.ReturnRequest, error) {
	q := f.apply(s.conn(ctx)).
		Preload("Asset", unscoped).
		Preload("User", unscoped).
		Preload("NewHolder", unscoped)
	if f.VisibleTo != 0 {
		q = q.Where("(user_id = ? OR created_by_id = ?)", f.VisibleTo, f.VisibleTo)
	}
	var rows []models.ReturnRequest
	err := q.Order("id DESC").Find(&rows).Error
	return rows, err
}

// --- edits ---

func (s *Store) EditByID(ctx context.Context, id uint) (*models.EditRequest, error) {
	q := s.conn(ctx).
		Preload("Asset", unscoped).
		Preload("User", unscoped).
		Preload("Approver", unscoped)
	return first[models.EditRequest](q, id)
}

func (s *Store) LockEdit(ctx context.Context, id uint) (*models.EditRequest, error) {
	return first[models.EditRequest](forUpdate(s.conn(ctx)), id)
}

func (s *Store) CreateEdit(ctx context.Context, r *models.EditRequest) error {
	return s.conn(ctx).Omit(clause.Associations).Create(r).Error
}

func (s *Store) DeleteEdit(ctx context.Context, id uint) error {
	return s.conn(ctx).Delete(&models.EditRequest{}, id).Error
}

func (s *Store) FinalizeEdit(ctx context.Context, id uint, from models.ApprovalStatus, updates map[string]any) (bool, error) {
	return finalize(s.conn(ctx), &models.EditRequest{}, id, string(from), updates)
}

func (s *Store) HasPendingEdit(ctx context.Context, assetID uint) (bool, error) {
	var count int64
	err := s.conn(ctx).Model(&models.EditRequest{}).
		Where("asset_id = ? AND status = ?", assetID, models.StatusPending).
		Count(&count).Error
	return count > 0, err
}

func (s *Store) ListEdits(ctx context.Context, f RequestFilter) ([]models.EditRequest, error) {
	q := f.apply(s.conn(ctx)).
		Preload("Asset", unscoped).
		Preload("User", unscoped)
	if f.VisibleTo != 0 {
		q = q.Where("user_id = ?", f.VisibleTo)
	}
	var rows []models.EditRequest
	err := q.Order("id DESC").Find(&rows).Error
	return rows, err
}
