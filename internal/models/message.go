package models

import (
	"time"

	"gorm.io/gorm"
)

// Message is a paid chat message from a seeker to an earner. The send cost
// is debited through the ledger before the row is written.
type Message struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	SenderID    uint           `gorm:"not null;index" json:"sender_id"`
	RecipientID uint           `gorm:"not null;index" json:"recipient_id"`
	Content     string         `gorm:"type:text" json:"content"`
	MediaURL    string         `gorm:"size:512" json:"media_url"`
	ReadAt      *time.Time     `json:"read_at"`
	CreatedAt   time.Time      `json:"created_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Sender    User `gorm:"foreignKey:SenderID" json:"-"`
	Recipient User `gorm:"foreignKey:RecipientID" json:"-"`
}

func (Message) TableName() string {
	return "messages"
}
