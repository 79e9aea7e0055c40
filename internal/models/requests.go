package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// RequestKind tags the three request families routed by the approval
// dispatcher and linked from history entries.
type RequestKind string

const (
	KindTransfer RequestKind = "transfer"
	KindReturn   RequestKind = "return"
	KindEdit     RequestKind = "edit"
)

func (k RequestKind) Valid() bool {
	return k == KindTransfer || k == KindReturn || k == KindEdit
}

type TransferStatus string

const (
	TransferWaitingConfirmation  TransferStatus = "waiting_confirmation"
	TransferPending              TransferStatus = "pending"
	TransferApproved             TransferStatus = "approved"
	TransferRejected             TransferStatus = "rejected"
	TransferConfirmationRejected TransferStatus = "confirmation_rejected"
)

func (s TransferStatus) Terminal() bool {
	return s == TransferApproved || s == TransferRejected || s == TransferConfirmationRejected
}

// ApprovalStatus is shared by return and edit requests.
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
)

func (s ApprovalStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

type TransferRequest struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	AssetID    uint   `gorm:"not null;index" json:"asset_id"`
	Asset      *Asset `json:"asset,omitempty"`
	FromUserID uint   `gorm:"not null;index" json:"from_user_id"`
	FromUser   *User  `json:"from_user,omitempty"`
	ToUserID   uint   `gorm:"not null;index" json:"to_user_id"`
	ToUser     *User  `json:"to_user,omitempty"`

	// set when somebody other than from_user filed the request
	CreatedByID *uint `json:"created_by_id"`
	CreatedBy   *User `json:"created_by,omitempty"`

	Reason string         `gorm:"type:text" json:"reason"`
	Status TransferStatus `gorm:"type:varchar(30);not null;index" json:"status"`

	ToUserConfirmed      *bool      `json:"to_user_confirmed"`
	ToUserConfirmComment string     `gorm:"type:text" json:"to_user_confirm_comment"`
	ToUserConfirmedAt    *time.Time `json:"to_user_confirmed_at"`

	ApproverID      *uint      `json:"approver_id"`
	Approver        *User      `json:"approver,omitempty"`
	ApprovalComment string     `gorm:"type:text" json:"approval_comment"`
	ApprovedAt      *time.Time `json:"approved_at"`
}

// Filer is the user credited with filing the request.
func (r *TransferRequest) Filer() uint {
	if r.CreatedByID != nil {
		return *r.CreatedByID
	}
	return r.FromUserID
}

type ReturnRequest struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	AssetID uint   `gorm:"not null;index" json:"asset_id"`
	Asset   *Asset `json:"asset,omitempty"`
	// holder at filing time, or the filer when the asset had none
	UserID      uint  `gorm:"not null;index" json:"user_id"`
	User        *User `json:"user,omitempty"`
	CreatedByID *uint `json:"created_by_id"`

	Reason string         `gorm:"type:text" json:"reason"`
	Status ApprovalStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	Overrides   datatypes.JSON `json:"overrides"`
	NewHolderID *uint          `json:"new_holder_id"`
	NewHolder   *User          `json:"new_holder,omitempty"`

	ApproverID      *uint      `json:"approver_id"`
	Approver        *User      `json:"approver,omitempty"`
	ApprovalComment string     `gorm:"type:text" json:"approval_comment"`
	ApprovedAt      *time.Time `json:"approved_at"`
}

func (r *ReturnRequest) OverrideSet() (EditSet, error) {
	return decodeSet(r.Overrides)
}

func (r *ReturnRequest) SetOverrides(s EditSet) error {
	data, err := encodeSet(s)
	if err != nil {
		return err
	}
	r.Overrides = data
	return nil
}

type EditRequest struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	AssetID uint   `gorm:"not null;index" json:"asset_id"`
	Asset   *Asset `json:"asset,omitempty"`
	UserID  uint   `gorm:"not null;index" json:"user_id"`
	User    *User  `json:"user,omitempty"`

	// at most one pending row per asset, see database.ensureIndexes
	Status   ApprovalStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	EditData datatypes.JSON `gorm:"not null" json:"edit_data"`

	ApproverID      *uint      `json:"approver_id"`
	Approver        *User      `json:"approver,omitempty"`
	ApprovalComment string     `gorm:"type:text" json:"approval_comment"`
	ApprovedAt      *time.Time `json:"approved_at"`
}

func (r *EditRequest) Changes() (EditSet, error) {
	return decodeSet(r.EditData)
}

func (r *EditRequest) SetChanges(s EditSet) error {
	data, err := encodeSet(s)
	if err != nil {
		return err
	}
	r.EditData = data
	return nil
}

func decodeSet(data datatypes.JSON) (EditSet, error) {
	if len(data) == 0 {
		return EditSet{}, nil
	}
	var s EditSet
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s == nil {
		s = EditSet{}
	}
	return s, nil
}

func encodeSet(s EditSet) (datatypes.JSON, error) {
	if s == nil {
		s = EditSet{}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}
