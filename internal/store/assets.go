package store

import (
	"context"
	"time"

	"asset-tracker/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AssetFilter struct {
	Search     string
	Status     models.AssetStatus
	HolderID   uint
	CategoryID uint
}

// AssetByID excludes soft-deleted rows.
func (s *Store) AssetByID(ctx context.Context, id uint) (*models.Asset, error) {
	return first[models.Asset](s.conn(ctx).Preload("Category").Preload("Holder"), id)
}

// LockAsset takes a row lock on a live asset.
func (s *Store) LockAsset(ctx context.Context, id uint) (*models.Asset, error) {
	return first[models.Asset](forUpdate(s.conn(ctx)), id)
}

// LockAssetUnscoped includes soft-deleted rows; approvals resolve against
// assets deleted after the request was filed.
func (s *Store) LockAssetUnscoped(ctx context.Context, id uint) (*models.Asset, error) {
	return first[models.Asset](forUpdate(s.conn(ctx).Unscoped()), id)
}

func (s *Store) CreateAsset(ctx context.Context, a *models.Asset) error {
	return s.conn(ctx).Omit(clause.Associations).Create(a).Error
}

func (s *Store) SaveAsset(ctx context.Context, a *models.Asset) error {
	return s.conn(ctx).Omit(clause.Associations).Save(a).Error
}

func (s *Store) SoftDeleteAsset(ctx context.Context, a *models.Asset, by uint, at time.Time) error {
	err := s.conn(ctx).Model(&models.Asset{}).
		Where("id = ?", a.ID).
		Updates(map[string]any{"deleted_at": at, "deleted_by_id": by}).Error
	if err != nil {
		return err
	}
	a.DeletedByID = &by
	a.DeletedAt = gorm.DeletedAt{Time: at, Valid: true}
	return nil
}

// AssetNumberTaken checks live assets only; deleted numbers may be reused.
func (s *Store) AssetNumberTaken(ctx context.Context, number string) (bool, error) {
	var count int64
	err := s.conn(ctx).Model(&models.Asset{}).
		Where("asset_number = ?", number).
		Count(&count).Error
	return count > 0, err
}

func (s *Store) ListAssets(ctx context.Context, f AssetFilter) ([]models.Asset, error) {
	q := s.conn(ctx).Preload("Category").Preload("Holder")
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("(asset_number LIKE ? OR name LIKE ? OR office_location LIKE ?)", like, like, like)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.HolderID != 0 {
		q = q.Where("holder_id = ?", f.HolderID)
	}
	if f.CategoryID != 0 {
		q = q.Where("category_id = ?", f.CategoryID)
	}
	var assets []models.Asset
	err := q.Order("id DESC").Find(&assets).Error
	return assets, err
}

// AssetByIDUnscoped includes soft-deleted rows.
func (s *Store) AssetByIDUnscoped(ctx context.Context, id uint) (*models.Asset, error) {
	return first[models.Asset](s.conn(ctx).Unscoped().Preload("Category").Preload("Holder", unscoped), id)
}
