package store

import (
	"context"
	"fmt"
	"time"

	"asset-tracker/internal/models"

	"gorm.io/gorm"
)

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Normalize clamps the page into range.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = defaultPageSize
	}
	if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
	return p
}

func (p Page) apply(q *gorm.DB) *gorm.DB {
	p = p.Normalize()
	return q.Offset((p.Number - 1) * p.Size).Limit(p.Size)
}

// CheckTaskFilter narrows task listings. AssignedTo limits rows to tasks
// with at least one entry for that user.
type CheckTaskFilter struct {
	Status     models.CheckTaskStatus
	AssignedTo uint
	Page       Page
}

// --- check types ---

func (s *Store) CheckTypeByID(ctx context.Context, id uint) (*models.CheckType, error) {
	return first[models.CheckType](s.conn(ctx), id)
}

func (s *Store) ListCheckTypes(ctx context.Context) ([]models.CheckType, error) {
	var types []models.CheckType
	err := s.conn(ctx).Order("id DESC").Find(&types).Error
	return types, err
}

func (s *Store) CreateCheckType(ctx context.Context, t *models.CheckType) error {
	return s.conn(ctx).Create(t).Error
}

func (s *Store) SaveCheckType(ctx context.Context, t *models.CheckType) error {
	return s.conn(ctx).Save(t).Error
}

func (s *Store) CheckTypeNameTaken(ctx context.Context, name string, exceptID uint) (bool, error) {
	var count int64
	err := s.conn(ctx).Model(&models.CheckType{}).
		Where("name = ? AND id <> ?", name, exceptID).
		Count(&count).Error
	return count > 0, err
}

func (s *Store) CountTasksOfType(ctx context.Context, typeID uint) (int64, error) {
	var count int64
	err := s.conn(ctx).Model(&models.CheckTask{}).
		Where("check_type_id = ?", typeID).
		Count(&count).Error
	return count, err
}

// --- tasks ---

// NextTaskNumber numbers tasks per calendar year. Two concurrent creates
// can draw the same number; the unique index rejects the loser.
func (s *Store) NextTaskNumber(ctx context.Context, year int) (string, error) {
	prefix := fmt.Sprintf("SAFETY-%d-", year)
	var count int64
	err := s.conn(ctx).Model(&models.CheckTask{}).
		Where("task_number LIKE ?", prefix+"%").
		Count(&count).Error
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%03d", prefix, count+1), nil
}

func (s *Store) CreateCheckTask(ctx context.Context, t *models.CheckTask, entries []models.CheckEntry) error {
	if err := s.conn(ctx).Omit("CheckType").Create(t).Error; err != nil {
		return err
	}
	for i := range entries {
		entries[i].TaskID = t.ID
	}
	return s.conn(ctx).Omit("Asset", "AssignedUser").Create(&entries).Error
}

func (s *Store) CheckTaskByID(ctx context.Context, id uint) (*models.CheckTask, error) {
	return first[models.CheckTask](s.conn(ctx).Preload("CheckType"), id)
}

func (s *Store) LockCheckTask(ctx context.Context, id uint) (*models.CheckTask, error) {
	return first[models.CheckTask](forUpdate(s.conn(ctx)), id)
}

func (s *Store) SaveCheckTask(ctx context.Context, t *models.CheckTask) error {
	return s.conn(ctx).Omit("CheckType").Save(t).Error
}

func (s *Store) ListCheckTasks(ctx context.Context, f CheckTaskFilter) ([]models.CheckTask, int64, error) {
	q := s.conn(ctx).Model(&models.CheckTask{})
	if f.AssignedTo != 0 {
		q = q.Where("id IN (?)", s.conn(ctx).Model(&models.CheckEntry{}).
			Select("task_id").
			Where("assigned_user_id = ?", f.AssignedTo))
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	// count and page from the same conditions
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var tasks []models.CheckTask
	err := f.Page.apply(q.Preload("CheckType")).Order("id DESC").Find(&tasks).Error
	return tasks, total, err
}

// OpenTasksFor lists tasks that are not cancelled and still hold an entry
// for the user that is not returned.
func (s *Store) OpenTasksFor(ctx context.Context, userID uint) ([]models.CheckTask, error) {
	var tasks []models.CheckTask
	err := s.conn(ctx).
		Preload("CheckType").
		Where("status <> ?", models.CheckTaskCancelled).
		Where("id IN (?)", s.conn(ctx).Model(&models.CheckEntry{}).
			Select("task_id").
			Where("assigned_user_id = ? AND status <> ?", userID, models.CheckEntryReturned)).
		Order("id DESC").
		Find(&tasks).Error
	return tasks, err
}

// CompleteTaskIfDone marks a pending task completed once nothing is left to
// check and at least one entry was checked.
func (s *Store) CompleteTaskIfDone(ctx context.Context, taskID uint, at time.Time) (bool, error) {
	counts, err := s.CountEntries(ctx, taskID, 0)
	if err != nil {
		return false, err
	}
	if counts[models.CheckEntryPending] > 0 || counts[models.CheckEntryChecked] == 0 {
		return false, nil
	}
	res := s.conn(ctx).Model(&models.CheckTask{}).
		Where("id = ? AND status = ?", taskID, models.CheckTaskPending).
		Updates(map[string]any{"status": models.CheckTaskCompleted, "completed_at": at})
	return res.RowsAffected == 1, res.Error
}

// --- entries ---

// CountEntries groups a task's entries by status. A non-zero userID limits
// the count to that user's entries.
func (s *Store) CountEntries(ctx context.Context, taskID, userID uint) (map[models.CheckEntryStatus]int64, error) {
	var rows []struct {
		Status models.CheckEntryStatus
		N      int64
	}
	q := s.conn(ctx).Model(&models.CheckEntry{}).
		Select("status, COUNT(*) AS n").
		Where("task_id = ?", taskID)
	if userID != 0 {
		q = q.Where("assigned_user_id = ?", userID)
	}
	if err := q.Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[models.CheckEntryStatus]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}

// ListCheckEntries returns a task's entries. A non-zero userID limits rows
// to that user's entries that are not returned.
func (s *Store) ListCheckEntries(ctx context.Context, taskID, userID uint) ([]models.CheckEntry, error) {
	q := s.conn(ctx).
		Preload("Asset", unscoped).
		Preload("AssignedUser", unscoped).
		Where("task_id = ?", taskID)
	if userID != 0 {
		q = q.Where("assigned_user_id = ? AND status <> ?", userID, models.CheckEntryReturned)
	}
	var entries []models.CheckEntry
	err := q.Order("id ASC").Find(&entries).Error
	return entries, err
}

func (s *Store) HasCheckEntry(ctx context.Context, taskID, userID uint) (bool, error) {
	var count int64
	err := s.conn(ctx).Model(&models.CheckEntry{}).
		Where("task_id = ? AND assigned_user_id = ?", taskID, userID).
		Count(&count).Error
	return count > 0, err
}

func (s *Store) LockCheckEntry(ctx context.Context, id uint) (*models.CheckEntry, error) {
	return first[models.CheckEntry](forUpdate(s.conn(ctx)), id)
}

func (s *Store) SaveCheckEntry(ctx context.Context, e *models.CheckEntry) error {
	return s.conn(ctx).Omit("Asset", "AssignedUser").Save(e).Error
}

// ReassignPendingEntries hands an asset's unchecked entries to its new holder.
func (s *Store) ReassignPendingEntries(ctx context.Context, assetID, userID uint) (int64, error) {
	res := s.conn(ctx).Model(&models.CheckEntry{}).
		Where("asset_id = ? AND status = ? AND assigned_user_id <> ?", assetID, models.CheckEntryPending, userID).
		Update("assigned_user_id", userID)
	return res.RowsAffected, res.Error
}

// ReleasePendingEntries marks an asset's unchecked entries returned and
// reports the tasks they belong to.
func (s *Store) ReleasePendingEntries(ctx context.Context, assetID uint) ([]uint, error) {
	var taskIDs []uint
	err := s.conn(ctx).Model(&models.CheckEntry{}).
		Where("asset_id = ? AND status = ?", assetID, models.CheckEntryPending).
		Distinct().
		Pluck("task_id", &taskIDs).Error
	if err != nil || len(taskIDs) == 0 {
		return nil, err
	}
	err = s.conn(ctx).Model(&models.CheckEntry{}).
		Where("asset_id = ? AND status = ?", assetID, models.CheckEntryPending).
		Update("status", models.CheckEntryReturned).Error
	return taskIDs, err
}

// --- records ---

func (s *Store) CreateCheckRecord(ctx context.Context, r *models.CheckRecord) error {
	return s.conn(ctx).Omit("Task", "CheckType").Create(r).Error
}

func (s *Store) ListCheckRecords(ctx context.Context, assetID uint, p Page) ([]models.CheckRecord, int64, error) {
	q := s.conn(ctx).Model(&models.CheckRecord{}).Where("asset_id = ?", assetID).Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var records []models.CheckRecord
	err := p.apply(q.Preload("Task").Preload("CheckType")).
		Order("checked_at DESC, id DESC").
		Find(&records).Error
	return records, total, err
}
