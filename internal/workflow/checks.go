package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"asset-tracker/internal/logger"
	"asset-tracker/internal/models"
	"asset-tracker/internal/store"

	"gorm.io/gorm"
)

const checkKind = "safety_check"

type CheckTypeInput struct {
	Name        string             `json:"name" binding:"required"`
	Description *string            `json:"description"`
	IsActive    *bool              `json:"is_active"`
	Items       []models.CheckItem `json:"check_items"`
}

type CheckTypeUpdate struct {
	Name        *string            `json:"name"`
	Description *string            `json:"description"`
	IsActive    *bool              `json:"is_active"`
	Items       []models.CheckItem `json:"check_items"`
}

type CheckTaskInput struct {
	CheckTypeID uint       `json:"check_type_id" binding:"required"`
	Title       string     `json:"title" binding:"required"`
	Description *string    `json:"description"`
	Deadline    *time.Time `json:"deadline"`
	AssetIDs    []uint     `json:"asset_ids" binding:"required"`
}

type CheckTaskUpdate struct {
	Title       *string                 `json:"title"`
	Description *string                 `json:"description"`
	Deadline    *time.Time              `json:"deadline"`
	Status      *models.CheckTaskStatus `json:"status"`
}

type CheckSubmission struct {
	EntryID uint                `json:"task_asset_id" binding:"required"`
	Result  models.CheckResult  `json:"check_result" binding:"required"`
	Comment *string             `json:"check_comment"`
	Items   []models.ItemResult `json:"check_items_result"`
}

// TaskPage is one page of a task listing.
type TaskPage struct {
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
	Items []models.CheckTask `json:"items"`
}

// RecordPage is one page of an asset's check trail.
type RecordPage struct {
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
	Items []models.CheckRecord `json:"items"`
}

type TaskEntries struct {
	Task      *models.CheckTask   `json:"task"`
	CheckType *models.CheckType   `json:"check_type"`
	Entries   []models.CheckEntry `json:"assets"`
}

// MyTask summarizes a task from the point of view of one holder.
type MyTask struct {
	TaskID       uint              `json:"task_id"`
	TaskNumber   string            `json:"task_number"`
	Title        string            `json:"task_title"`
	CheckType    *models.CheckType `json:"check_type"`
	PendingCount int64             `json:"pending_count"`
	Deadline     *time.Time        `json:"deadline"`
}

// Checks runs periodic safety checks: admins define checklists and open
// tasks over a set of assets, holders submit a result per asset.
type Checks struct {
	d   Deps
	log *logger.Logger
}

func NewChecks(d Deps) *Checks {
	return &Checks{d: d, log: d.Log.With("workflow", checkKind)}
}

// --- check types ---

func (w *Checks) ListTypes(ctx context.Context, actor Actor) ([]models.CheckType, error) {
	if !actor.IsAdmin() {
		return nil, forbidden("only admins can manage check types")
	}
	types, err := w.d.Store.ListCheckTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list check types: %w", err)
	}
	return types, nil
}

func (w *Checks) GetType(ctx context.Context, id uint, actor Actor) (*models.CheckType, error) {
	if !actor.IsAdmin() {
		return nil, forbidden("only admins can manage check types")
	}
	t, err := w.d.Store.CheckTypeByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "check type", id)
	}
	return t, nil
}

func (w *Checks) CreateType(ctx context.Context, in CheckTypeInput, actor Actor) (*models.CheckType, error) {
	if !actor.IsAdmin() {
		return nil, forbidden("only admins can manage check types")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name is required")
	}
	items, err := cleanItems(in.Items)
	if err != nil {
		return nil, err
	}
	t := &models.CheckType{
		Name:        name,
		Description: in.Description,
		IsActive:    in.IsActive == nil || *in.IsActive,
		Items:       items,
		CreatedByID: actor.ID,
	}
	err = w.d.Store.Transaction(ctx, func(tx *store.Store) error {
		if err := w.nameFree(ctx, tx, name, 0); err != nil {
			return err
		}
		return tx.CreateCheckType(ctx, t)
	})
	if err != nil {
		return nil, typeErr(err)
	}
	w.log.Info("check type created", "check_type_id", t.ID, "actor_id", actor.ID)
	return t, nil
}

func (w *Checks) UpdateType(ctx context.Context, id uint, in CheckTypeUpdate, actor Actor) (*models.CheckType, error) {
	if !actor.IsAdmin() {
		return nil, forbidden("only admins can manage check types")
	}
	var t *models.CheckType
	err := w.d.Store.Transaction(ctx, func(tx *store.Store) error {
		var err error
		t, err = tx.CheckTypeByID(ctx, id)
		if err != nil {
			return lookupErr(err, "check type", id)
		}
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return invalid("name cannot be empty")
			}
			if name != t.Name {
				if err := w.nameFree(ctx, tx, name, id); err != nil {
					return err
				}
				t.Name = name
			}
		}
		if in.Description != nil {
			t.Description = in.Description
		}
		if in.IsActive != nil {
			t.IsActive = *in.IsActive
		}
		if in.Items != nil {
			items, err := cleanItems(in.Items)
			if err != nil {
				return err
			}
			t.Items = items
		}
		return tx.SaveCheckType(ctx, t)
	})
	if err != nil {
		return nil, typeErr(err)
	}
	w.log.Info("check type updated", "check_type_id", id, "actor_id", actor.ID)
	return t, nil
}

// DeleteType deactivates a type. Types already used by a task stay as they
// are; deactivate them through an update instead.
func (w *Checks) DeleteType(ctx context.Context, id uint, actor Actor) error {
	if !actor.IsAdmin() {
		return forbidden("only admins can manage check types")
	}
	return w.d.Store.Transaction(ctx, func(tx *store.Store) error {
		t, err := tx.CheckTypeByID(ctx, id)
		if err != nil {
			return lookupErr(err, "check type", id)
		}
		used, err := tx.CountTasksOfType(ctx, id)
		if err != nil {
			return fmt.Errorf("count tasks of type %d: %w", id, err)
		}
		if used > 0 {
			return invalidState("check type %q is used by %d task(s); deactivate it instead", t.Name, used)
		}
		t.IsActive = false
		if err := tx.SaveCheckType(ctx, t); err != nil {
			return fmt.Errorf("deactivate check type %d: %w", id, err)
		}
		w.log.Info("check type deactivated", "check_type_id", id, "actor_id", actor.ID)
		return nil
	})
}

func (w *Checks) nameFree(ctx context.Context, tx *store.Store, name string, exceptID uint) error {
	taken, err := tx.CheckTypeNameTaken(ctx, name, exceptID)
	if err != nil {
		return fmt.Errorf("check type name: %w", err)
	}
	if taken {
		return conflict("check type %q already exists", name)
	}
	return nil
}

func cleanItems(items []models.CheckItem) ([]models.CheckItem, error) {
	out := make([]models.CheckItem, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		it.Item = strings.TrimSpace(it.Item)
		if it.Item == "" {
			return nil, invalid("check items cannot be blank")
		}
		if seen[it.Item] {
			return nil, invalid("duplicate check item %q", it.Item)
		}
		seen[it.Item] = true
		out = append(out, it)
	}
	return out, nil
}

// typeErr maps a unique-index race onto Conflict.
func typeErr(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return conflict("check type name already exists")
	}
	return err
}

// --- tasks ---

// CreateTask opens a task over live assets. Assets without a holder are
// skipped; a task with nothing left to check is rejected.
func (w *Checks) CreateTask(ctx context.Context, in CheckTaskInput, actor Actor) (*models.CheckTask, error) {
	if !actor.IsAdmin() {
		return nil, forbidden("only admins can create check tasks")
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalid("title is required")
	}
	if len(in.AssetIDs) == 0 {
		return nil, invalid("select at least one asset")
	}

	var task *models.CheckTask
	err := w.d.Store.Transaction(ctx, func(tx *store.Store) error {
		ct, err := tx.CheckTypeByID(ctx, in.CheckTypeID)
		if err != nil {
			return lookupErr(err, "check type", in.CheckTypeID)
		}
		if !ct.IsActive {
			return invalidState("check type %q is inactive", ct.Name)
		}

		var entries []models.CheckEntry
		skipped := 0
		seen := make(map[uint]bool, len(in.AssetIDs))
		for _, id := range in.AssetIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			asset, err := tx.AssetByID(ctx, id)
			if err != nil {
				if isNotFound(err) {
					return invalid("asset %d does not exist or was deleted", id)
				}
				return fmt.Errorf("load asset %d: %w", id, err)
			}
			if asset.HolderID == nil {
				skipped++
				continue
			}
			entries = append(entries, models.CheckEntry{
				AssetID:        asset.ID,
				AssignedUserID: *asset.HolderID,
				Status:         models.CheckEntryPending,
			})
		}
		if len(entries) == 0 {
			return invalid("none of the selected assets has a holder")
		}

		number, err := tx.NextTaskNumber(ctx, w.d.now().Year())
		if err != nil {
			return fmt.Errorf("number check task: %w", err)
		}
		task = &models.CheckTask{
			TaskNumber:  number,
			CheckTypeID: ct.ID,
			Title:       title,
			Description: in.Description,
			Deadline:    in.Deadline,
			Status:      models.CheckTaskPending,
			CreatedByID: actor.ID,
		}
		if err := tx.CreateCheckTask(ctx, task, entries); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return conflict("task number %s was taken concurrently, retry", number)
			}
			return fmt.Errorf("create check task: %w", err)
		}
		w.log.Info("check task created",
			"task_id", task.ID,
			"task_number", number,
			"assets", len(entries),
			"skipped", skipped,
			"actor_id", actor.ID,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	w.d.Metrics.Transition(checkKind, "task_created")
	return w.GetTask(ctx, task.ID, actor)
}

func (w *Checks) ListTasks(ctx context.Context, actor Actor, f store.CheckTaskFilter) (*TaskPage, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, invalid("invalid status %q", f.Status)
	}
	if !actor.IsAdmin() {
		f.AssignedTo = actor.ID
	}
	f.Page = f.Page.Normalize()
	tasks, total, err := w.d.Store.ListCheckTasks(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list check tasks: %w", err)
	}
	for i := range tasks {
		p, err := w.progress(ctx, tasks[i].ID, actor)
		if err != nil {
			return nil, err
		}
		tasks[i].Progress = p
	}
	return &TaskPage{Total: total, Page: f.Page.Number, Limit: f.Page.Size, Items: tasks}, nil
}

// GetTask is open to admins and to users with an entry in the task.
func (w *Checks) GetTask(ctx context.Context, id uint, actor Actor) (*models.CheckTask, error) {
	task, err := w.d.Store.CheckTaskByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "check task", id)
	}
	if err := w.canSee(ctx, task, actor); err != nil {
		return nil, err
	}
	task.Progress, err = w.progress(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Entries lists a task's assets. Non-admins only see their own entries that
// have not been returned.
func (w *Checks) Entries(ctx context.Context, id uint, actor Actor) (*TaskEntries, error) {
	task, err := w.d.Store.CheckTaskByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "check task", id)
	}
	if err := w.canSee(ctx, task, actor); err != nil {
		return nil, err
	}
	var userID uint
	if !actor.IsAdmin() {
		userID = actor.ID
	}
	entries, err := w.d.Store.ListCheckEntries(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("list entries of task %d: %w", id, err)
	}
	return &TaskEntries{Task: task, CheckType: task.CheckType, Entries: entries}, nil
}

func (w *Checks) UpdateTask(ctx context.Context, id uint, in CheckTaskUpdate, actor Actor) (*models.CheckTask, error) {
	if !actor.IsAdmin() {
		return nil, forbidden("only admins can update check tasks")
	}
	err := w.d.Store.Transaction(ctx, func(tx *store.Store) error {
		task, err := tx.LockCheckTask(ctx, id)
		if err != nil {
			return lookupErr(err, "check task", id)
		}
		if in.Title != nil {
			title := strings.TrimSpace(*in.Title)
			if title == "" {
				return invalid("title cannot be empty")
			}
			task.Title = title
		}
		if in.Description != nil {
			task.Description = in.Description
		}
		if in.Deadline != nil {
			task.Deadline = in.Deadline
		}
		if in.Status != nil && *in.Status != task.Status {
			if !in.Status.Valid() {
				return invalid("invalid status %q", *in.Status)
			}
			task.Status = *in.Status
			task.CompletedAt = nil
			if task.Status == models.CheckTaskCompleted {
				now := w.d.now()
				task.CompletedAt = &now
			}
		}
		if err := tx.SaveCheckTask(ctx, task); err != nil {
			return fmt.Errorf("update check task %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	w.log.Info("check task updated", "task_id", id, "actor_id", actor.ID)
	return w.GetTask(ctx, id, actor)
}

// CancelTask stops a task that has not completed.
func (w *Checks) CancelTask(ctx context.Context, id uint, actor Actor) error {
	if !actor.IsAdmin() {
		return forbidden("only admins can cancel check tasks")
	}
	err := w.d.Store.Transaction(ctx, func(tx *store.Store) error {
		task, err := tx.LockCheckTask(ctx, id)
		if err != nil {
			return lookupErr(err, "check task", id)
		}
		switch task.Status {
		case models.CheckTaskCompleted:
			return invalidState("completed tasks cannot be cancelled")
		case models.CheckTaskCancelled:
			return invalidState("task %s is already cancelled", task.TaskNumber)
		}
		task.Status = models.CheckTaskCancelled
		if err := tx.SaveCheckTask(ctx, task); err != nil {
			return fmt.Errorf("cancel check task %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	w.d.Metrics.Transition(checkKind, "task_cancelled")
	w.log.Info("check task cancelled", "task_id", id, "actor_id", actor.ID)
	return nil
}

func (w *Checks) canSee(ctx context.Context, task *models.CheckTask, actor Actor) error {
	if actor.IsAdmin() {
		return nil
	}
	ok, err := w.d.Store.HasCheckEntry(ctx, task.ID, actor.ID)
	if err != nil {
		return fmt.Errorf("check access to task %d: %w", task.ID, err)
	}
	if !ok {
		return forbidden("task %s is not assigned to you", task.TaskNumber)
	}
	return nil
}

// progress leaves returned entries out of the total.
func (w *Checks) progress(ctx context.Context, taskID uint, actor Actor) (*models.CheckProgress, error) {
	var userID uint
	if !actor.IsAdmin() {
		userID = actor.ID
	}
	counts, err := w.d.Store.CountEntries(ctx, taskID, userID)
	if err != nil {
		return nil, fmt.Errorf("count entries of task %d: %w", taskID, err)
	}
	p := &models.CheckProgress{
		Completed: counts[models.CheckEntryChecked],
		Pending:   counts[models.CheckEntryPending],
	}
	p.Total = p.Completed + p.Pending
	if actor.IsAdmin() {
		p.Returned = counts[models.CheckEntryReturned]
	}
	return p, nil
}

// --- results ---

// MyTasks lists the caller's tasks that are not cancelled.
func (w *Checks) MyTasks(ctx context.Context, actor Actor) ([]MyTask, error) {
	tasks, err := w.d.Store.OpenTasksFor(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list my check tasks: %w", err)
	}
	out := make([]MyTask, 0, len(tasks))
	for _, t := range tasks {
		counts, err := w.d.Store.CountEntries(ctx, t.ID, actor.ID)
		if err != nil {
			return nil, fmt.Errorf("count entries of task %d: %w", t.ID, err)
		}
		out = append(out, MyTask{
			TaskID:       t.ID,
			TaskNumber:   t.TaskNumber,
			Title:        t.Title,
			CheckType:    t.CheckType,
			PendingCount: counts[models.CheckEntryPending],
			Deadline:     t.Deadline,
		})
	}
	return out, nil
}

// Submit records the assignee's result for one asset. The task completes
// when no pending entries remain. A checked entry may be resubmitted while
// the task is still open.
func (w *Checks) Submit(ctx context.Context, in CheckSubmission, actor Actor) (*models.CheckEntry, error) {
	if !in.Result.Valid() {
		return nil, invalid("check result must be yes or no")
	}
	for _, it := range in.Items {
		if !it.Result.Valid() {
			return nil, invalid("result of %q must be yes or no", it.Item)
		}
	}

	var entry *models.CheckEntry
	completed := false
	err := w.d.Store.Transaction(ctx, func(tx *store.Store) error {
		var err error
		entry, err = tx.LockCheckEntry(ctx, in.EntryID)
		if err != nil {
			return lookupErr(err, "task asset", in.EntryID)
		}
		if entry.AssignedUserID != actor.ID {
			return forbidden("this asset is not assigned to you")
		}
		task, err := tx.LockCheckTask(ctx, entry.TaskID)
		if err != nil {
			return lookupErr(err, "check task", entry.TaskID)
		}
		if !task.Status.Open() {
			return invalidState("task %s is %s", task.TaskNumber, task.Status)
		}
		if entry.Status == models.CheckEntryReturned {
			return invalidState("the asset was returned before it was checked")
		}
		ct, err := tx.CheckTypeByID(ctx, task.CheckTypeID)
		if err != nil {
			return lookupErr(err, "check type", task.CheckTypeID)
		}
		answered := make(map[string]bool, len(in.Items))
		for _, it := range in.Items {
			answered[strings.TrimSpace(it.Item)] = true
		}
		for _, req := range ct.RequiredItems() {
			if !answered[req] {
				return invalid("required check item %q is missing", req)
			}
		}

		now := w.d.now()
		result := in.Result
		entry.Status = models.CheckEntryChecked
		entry.Result = &result
		entry.Comment = in.Comment
		entry.CheckedAt = &now
		entry.ItemResults = in.Items
		if err := tx.SaveCheckEntry(ctx, entry); err != nil {
			return fmt.Errorf("save task asset %d: %w", entry.ID, err)
		}
		if err := tx.CreateCheckRecord(ctx, &models.CheckRecord{
			TaskID:      task.ID,
			EntryID:     entry.ID,
			AssetID:     entry.AssetID,
			CheckTypeID: task.CheckTypeID,
			CheckedByID: actor.ID,
			Result:      result,
			Comment:     in.Comment,
			ItemResults: in.Items,
			CheckedAt:   now,
		}); err != nil {
			return fmt.Errorf("record check of task asset %d: %w", entry.ID, err)
		}
		completed, err = tx.CompleteTaskIfDone(ctx, task.ID, now)
		if err != nil {
			return fmt.Errorf("complete check task %d: %w", task.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	w.d.Metrics.Transition(checkKind, "submitted")
	if completed {
		w.d.Metrics.Transition(checkKind, "task_completed")
	}
	w.log.Info("check submitted",
		"task_id", entry.TaskID,
		"asset_id", entry.AssetID,
		"result", in.Result,
		"task_completed", completed,
		"actor_id", actor.ID,
	)
	return entry, nil
}

// AssetRecords pages through an asset's submitted checks, newest first.
// Admins and the current holder may read them.
func (w *Checks) AssetRecords(ctx context.Context, assetID uint, actor Actor, p store.Page) (*RecordPage, error) {
	asset, err := w.d.Store.AssetByIDUnscoped(ctx, assetID)
	if err != nil {
		return nil, lookupErr(err, "asset", assetID)
	}
	if !actor.IsAdmin() && (asset.HolderID == nil || *asset.HolderID != actor.ID) {
		return nil, forbidden("only the holder can see this asset's checks")
	}
	p = p.Normalize()
	records, total, err := w.d.Store.ListCheckRecords(ctx, assetID, p)
	if err != nil {
		return nil, fmt.Errorf("list checks of asset %d: %w", assetID, err)
	}
	return &RecordPage{Total: total, Page: p.Number, Limit: p.Size, Items: records}, nil
}

// followAsset keeps open check entries in step with an asset that just
// changed hands or went back to stock. Call it after the asset is saved,
// inside the same transaction.
func followAsset(ctx context.Context, tx *store.Store, d Deps, asset *models.Asset) error {
	if asset.IsDeleted() || asset.Status == models.AssetInStock {
		return releaseChecks(ctx, tx, d, asset.ID)
	}
	if asset.HolderID == nil {
		return nil
	}
	n, err := tx.ReassignPendingEntries(ctx, asset.ID, *asset.HolderID)
	if err != nil {
		return fmt.Errorf("reassign checks of asset %d: %w", asset.ID, err)
	}
	if n > 0 {
		d.Log.Info("pending checks reassigned", "asset_id", asset.ID, "holder_id", *asset.HolderID, "entries", n)
	}
	return nil
}

func releaseChecks(ctx context.Context, tx *store.Store, d Deps, assetID uint) error {
	taskIDs, err := tx.ReleasePendingEntries(ctx, assetID)
	if err != nil {
		return fmt.Errorf("release checks of asset %d: %w", assetID, err)
	}
	for _, id := range taskIDs {
		if _, err := tx.CompleteTaskIfDone(ctx, id, d.now()); err != nil {
			return fmt.Errorf("complete check task %d: %w", id, err)
		}
	}
	if len(taskIDs) > 0 {
		d.Log.Info("pending checks released", "asset_id", assetID, "tasks", len(taskIDs))
	}
	return nil
}
