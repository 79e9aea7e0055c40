package models

import (
	"time"

	"gorm.io/datatypes"
)

// CheckItem is one line of a check type's checklist.
type CheckItem struct {
	Item     string `json:"item"`
	Required bool   `json:"required"`
}

// ItemResult is a holder's answer to one checklist line.
type ItemResult struct {
	Item    string      `json:"item"`
	Result  CheckResult `json:"result"`
	Comment string      `json:"comment,omitempty"`
}

type CheckResult string

const (
	CheckYes CheckResult = "yes"
	CheckNo  CheckResult = "no"
)

func (r CheckResult) Valid() bool {
	return r == CheckYes || r == CheckNo
}

type CheckTaskStatus string

const (
	CheckTaskPending   CheckTaskStatus = "pending"
	CheckTaskCompleted CheckTaskStatus = "completed"
	CheckTaskCancelled CheckTaskStatus = "cancelled"
)

func (s CheckTaskStatus) Valid() bool {
	return s == CheckTaskPending || s == CheckTaskCompleted || s == CheckTaskCancelled
}

// Open tasks still accept results.
func (s CheckTaskStatus) Open() bool {
	return s == CheckTaskPending
}

type CheckEntryStatus string

const (
	CheckEntryPending  CheckEntryStatus = "pending"
	CheckEntryChecked  CheckEntryStatus = "checked"
	// the asset went back to stock before it was checked
	CheckEntryReturned CheckEntryStatus = "returned"
)

type CheckType struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name        string                         `gorm:"uniqueIndex;size:100;not null" json:"name"`
	Description *string                        `gorm:"type:text" json:"description"`
	IsActive    bool                           `gorm:"not null" json:"is_active"`
	Items       datatypes.JSONSlice[CheckItem] `gorm:"column:check_items" json:"check_items"`
	CreatedByID uint                           `gorm:"not null" json:"created_by_id"`
}

func (CheckType) TableName() string { return "safety_check_types" }

// RequiredItems lists the checklist lines every submission must answer.
func (t *CheckType) RequiredItems() []string {
	var out []string
	for _, it := range t.Items {
		if it.Required {
			out = append(out, it.Item)
		}
	}
	return out
}

// CheckProgress counts a task's entries. For non-admins it covers only the
// caller's entries and leaves returned ones out.
type CheckProgress struct {
	Total     int64 `json:"total_assets"`
	Completed int64 `json:"completed_assets"`
	Pending   int64 `json:"pending_assets"`
	Returned  int64 `json:"returned_assets"`
}

type CheckTask struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TaskNumber  string          `gorm:"uniqueIndex;size:30;not null" json:"task_number"` // SAFETY-YYYY-NNN
	CheckTypeID uint            `gorm:"not null;index" json:"check_type_id"`
	CheckType   *CheckType      `json:"check_type,omitempty"`
	Title       string          `gorm:"size:200;not null" json:"title"`
	Description *string         `gorm:"type:text" json:"description"`
	Deadline    *time.Time      `json:"deadline"`
	Status      CheckTaskStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedByID uint            `gorm:"not null" json:"created_by_id"`
	CompletedAt *time.Time      `json:"completed_at"`

	Progress *CheckProgress `gorm:"-" json:"progress,omitempty"`
}

func (CheckTask) TableName() string { return "safety_check_tasks" }

// CheckEntry binds one asset of a task to the user who must check it.
type CheckEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TaskID         uint             `gorm:"not null;index" json:"task_id"`
	AssetID        uint             `gorm:"not null;index" json:"asset_id"`
	Asset          *Asset           `json:"asset,omitempty"`
	AssignedUserID uint             `gorm:"not null;index" json:"assigned_user_id"`
	AssignedUser   *User            `json:"assigned_user,omitempty"`
	Status         CheckEntryStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	Result      *CheckResult                    `gorm:"column:check_result;type:varchar(10)" json:"check_result"`
	Comment     *string                         `gorm:"column:check_comment;type:text" json:"check_comment"`
	CheckedAt   *time.Time                      `json:"checked_at"`
	ItemResults datatypes.JSONSlice[ItemResult] `gorm:"column:check_items_result" json:"check_items_result"`
}

func (CheckEntry) TableName() string { return "safety_check_task_assets" }

// CheckRecord is the write-once trail of submitted results.
type CheckRecord struct {
	ID uint `gorm:"primaryKey" json:"id"`

	TaskID      uint       `gorm:"not null;index" json:"task_id"`
	Task        *CheckTask `json:"task,omitempty"`
	EntryID     uint       `gorm:"column:task_asset_id;not null" json:"task_asset_id"`
	AssetID     uint       `gorm:"not null;index" json:"asset_id"`
	CheckTypeID uint       `gorm:"not null" json:"check_type_id"`
	CheckType   *CheckType `json:"check_type,omitempty"`
	CheckedByID uint       `gorm:"not null" json:"checked_by_id"`

	Result      CheckResult                     `gorm:"column:check_result;type:varchar(10);not null" json:"check_result"`
	Comment     *string                         `gorm:"column:check_comment;type:text" json:"check_comment"`
	ItemResults datatypes.JSONSlice[ItemResult] `gorm:"column:check_items_result" json:"check_items_result"`
	CheckedAt   time.Time                       `gorm:"not null;index" json:"checked_at"`
}

func (CheckRecord) TableName() string { return "safety_check_history" }
