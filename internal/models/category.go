package models

import "time"

type Category struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Name      string    `gorm:"uniqueIndex;size:100;not null" json:"name"`
}

func (Category) TableName() string { return "asset_categories" }
