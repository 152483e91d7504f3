package models

import (
	"time"

	"gorm.io/gorm"
)

// CallRate is one tier of an earner's video rate card: the total credit
// price for a given call duration. Audio rates are derived, never stored.
type CallRate struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	EarnerID        uint           `gorm:"not null;index:idx_rate_earner_duration,unique" json:"earner_id"`
	DurationMinutes int            `gorm:"not null;index:idx_rate_earner_duration,unique" json:"duration_minutes"`
	Credits         int64          `gorm:"not null" json:"credits"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`

	Earner User `gorm:"foreignKey:EarnerID" json:"-"`
}

func (CallRate) TableName() string {
	return "call_rates"
}
