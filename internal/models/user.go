package models

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
)

func (r UserRole) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	EHRNumber    string   `gorm:"uniqueIndex;size:7;not null" json:"ehr_number"` // 7-digit employee number
	RealName     string   `gorm:"size:100;not null" json:"real_name"`
	Group        string   `gorm:"column:group_name;size:50;not null" json:"group"`
	Role         UserRole `gorm:"type:varchar(20);not null;default:user" json:"role"`
	PasswordHash string   `gorm:"not null" json:"-"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Ref is the compact form used in history snapshots.
func (u *User) Ref() map[string]any {
	if u == nil {
		return map[string]any{"user_id": nil, "user_name": ""}
	}
	return map[string]any{"user_id": u.ID, "user_name": u.RealName}
}
