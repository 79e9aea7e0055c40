package store

import (
	"context"

	"asset-tracker/internal/models"
)

func (s *Store) UserByID(ctx context.Context, id uint) (*models.User, error) {
	return first[models.User](s.conn(ctx), id)
}

// UserByIDUnscoped includes soft-deleted users. Approvals use it for
// recipients removed after the request was filed.
func (s *Store) UserByIDUnscoped(ctx context.Context, id uint) (*models.User, error) {
	return first[models.User](s.conn(ctx).Unscoped(), id)
}

func (s *Store) UserByEHR(ctx context.Context, ehr string) (*models.User, error) {
	var u models.User
	if err := s.conn(ctx).Where("ehr_number = ?", ehr).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.conn(ctx).Order("ehr_number ASC").Find(&users).Error
	return users, err
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	return s.conn(ctx).Create(u).Error
}

func (s *Store) DeleteUser(ctx context.Context, u *models.User) error {
	return s.conn(ctx).Delete(u).Error
}

func (s *Store) CategoryByID(ctx context.Context, id uint) (*models.Category, error) {
	return first[models.Category](s.conn(ctx), id)
}

func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	var cats []models.Category
	err := s.conn(ctx).Order("id ASC").Find(&cats).Error
	return cats, err
}

func (s *Store) LockUser(ctx context.Context, id uint) (*models.User, error) {
	return first[models.User](forUpdate(s.conn(ctx)), id)
}

func (s *Store) SaveUser(ctx context.Context, u *models.User) error {
	return s.conn(ctx).Save(u).Error
}

// SyncHolderGroup rewrites holder_group on the user's live assets.
func (s *Store) SyncHolderGroup(ctx context.Context, userID uint, group string) (int64, error) {
	res := s.conn(ctx).Model(&models.Asset{}).
		Where("holder_id = ?", userID).
		Update("holder_group", group)
	return res.RowsAffected, res.Error
}
