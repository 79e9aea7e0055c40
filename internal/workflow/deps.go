package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"asset-tracker/internal/history"
	"asset-tracker/internal/logger"
	"asset-tracker/internal/metrics"
	"asset-tracker/internal/models"
	"asset-tracker/internal/store"

	"gorm.io/gorm"
)

// Actor is the authenticated principal an operation runs as.
type Actor struct {
	ID   uint
	Role models.UserRole
}

func ActorOf(u *models.User) Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

func (a Actor) idPtr() *uint {
	id := a.ID
	return &id
}

// HistoryRecorder appends audit entries inside the caller's transaction and
// never fails it.
type HistoryRecorder interface {
	Record(ctx context.Context, tx *store.Store, e history.Entry)
}

// Warehouse resolves the reserved pool user by its EHR number.
type Warehouse struct {
	EHR string
}

func (w Warehouse) Resolve(ctx context.Context, tx *store.Store) (*models.User, error) {
	u, err := tx.UserByEHR(ctx, w.EHR)
	if err != nil {
		return nil, fmt.Errorf("resolve warehouse user %s: %w", w.EHR, err)
	}
	return u, nil
}

func (w Warehouse) Is(u *models.User) bool {
	return u != nil && u.EHRNumber == w.EHR
}

// Deps are the collaborators shared by every workflow.
type Deps struct {
	Store     *store.Store
	History   HistoryRecorder
	Warehouse Warehouse
	Log       *logger.Logger
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

// userRef loads a user for a history snapshot, tolerating a missing row.
func userRef(ctx context.Context, tx *store.Store, id *uint) map[string]any {
	if id == nil {
		return (*models.User)(nil).Ref()
	}
	u, err := tx.UserByIDUnscoped(ctx, *id)
	if err != nil {
		return map[string]any{"user_id": *id, "user_name": ""}
	}
	return u.Ref()
}

// holderSnapshot renders holder fields plus the denormalized group.
func holderSnapshot(a *models.Asset, fields ...models.EditField) map[string]any {
	out := a.Snapshot(fields...)
	for _, f := range fields {
		if f == models.FieldHolder {
			out["holder_group"] = deref(a.HolderGroup)
			break
		}
	}
	return out
}

func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func uintPtr(v uint) *uint { return &v }
