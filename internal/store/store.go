package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is typed access over gorm. A Store handed to a Transaction callback
// is bound to that transaction; every call made through it joins the tx.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Transaction runs fn in a transaction. Called on a tx-bound Store it opens
// a savepoint instead.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func unscoped(db *gorm.DB) *gorm.DB {
	return db.Unscoped()
}

func first[T any](db *gorm.DB, id uint) (*T, error) {
	var row T
	if err := db.Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// finalize moves a request row out of `from` only if it is still there.
// moved is false when another transaction got there first.
func finalize(db *gorm.DB, model any, id uint, from string, updates map[string]any) (moved bool, err error) {
	res := db.Model(model).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
