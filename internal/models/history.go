package models

import (
	"time"

	"gorm.io/datatypes"
)

type HistoryAction string

const (
	ActionCreate      HistoryAction = "create"
	ActionEdit        HistoryAction = "edit"
	ActionTransfer    HistoryAction = "transfer"
	ActionReturn      HistoryAction = "return"
	ActionApprove     HistoryAction = "approve"
	ActionEditApprove HistoryAction = "edit_approve"
	ActionDelete      HistoryAction = "delete"
)

// HistoryEntry is write-once; nothing updates or deletes these rows.
type HistoryEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`

	AssetID     uint          `gorm:"not null;index" json:"asset_id"`
	Action      HistoryAction `gorm:"column:action_type;type:varchar(50);not null" json:"action_type"`
	Description string        `gorm:"column:action_description;type:text" json:"action_description"`

	OperatorID *uint `json:"operator_id"`
	Operator   *User `json:"operator,omitempty"`
	ApproverID *uint `json:"approver_id"`
	Approver   *User `json:"approver,omitempty"`

	OldValue datatypes.JSON `json:"old_value"`
	NewValue datatypes.JSON `json:"new_value"`

	RelatedRequestID   *uint        `json:"related_request_id"`
	RelatedRequestType *RequestKind `gorm:"type:varchar(20)" json:"related_request_type"`
}

func (HistoryEntry) TableName() string { return "asset_history" }
