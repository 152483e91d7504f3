package models

import (
	"time"

	"gorm.io/gorm"
)

type EarnerMedia struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	EarnerID     uint           `gorm:"not null;index" json:"earner_id"`
	MediaType    string         `gorm:"size:20;not null" json:"media_type"` // IMAGE | VIDEO
	URL          string         `gorm:"size:512;not null" json:"url"`
	ThumbnailURL string         `gorm:"size:512" json:"thumbnail_url"`
	Locked       bool           `gorm:"default:false;index" json:"locked"` // locked media requires a credit unlock
	SortOrder    int            `gorm:"default:0" json:"sort_order"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	Earner User `gorm:"foreignKey:EarnerID" json:"-"`
}

func (EarnerMedia) TableName() string {
	return "earner_media"
}

// MediaUnlock records a paid unlock so repeat views never re-charge.
type MediaUnlock struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"not null;index:idx_unlock_user_media,unique" json:"user_id"`
	MediaID   uint           `gorm:"not null;index:idx_unlock_user_media,unique" json:"media_id"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	User  User        `gorm:"foreignKey:UserID" json:"-"`
	Media EarnerMedia `gorm:"foreignKey:MediaID" json:"-"`
}

func (MediaUnlock) TableName() string {
	return "media_unlocks"
}
