package models

import (
	"time"

	"gorm.io/gorm"
)

// Gift is a catalog entry. Prices may change over time; sends capture the
// price at send time on the GiftTransaction.
type Gift struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Name         string         `gorm:"size:100;not null" json:"name"`
	IconURL      string         `gorm:"size:512" json:"icon_url"`
	PriceCredits int64          `gorm:"not null" json:"price_credits"`
	IsActive     bool           `gorm:"default:true;index" json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Gift) TableName() string {
	return "gifts"
}

// GiftTransaction records a gift sent between two users. CreditsSpent and
// the USD split are captured immutably at send time.
type GiftTransaction struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	SenderID         uint           `gorm:"not null;index" json:"sender_id"`
	RecipientID      uint           `gorm:"not null;index" json:"recipient_id"`
	GiftID           uint           `gorm:"not null;index" json:"gift_id"`
	CreditsSpent     int64          `gorm:"not null" json:"credits_spent"`
	EarnerCents      int64          `gorm:"not null" json:"earner_cents"`
	PlatformFeeCents int64          `gorm:"not null" json:"platform_fee_cents"`
	Message          string         `gorm:"size:500" json:"message"`
	ThankYouReaction string         `gorm:"size:50" json:"thank_you_reaction"`
	CreatedAt        time.Time      `json:"created_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`

	Sender    User `gorm:"foreignKey:SenderID" json:"-"`
	Recipient User `gorm:"foreignKey:RecipientID" json:"-"`
	Gift      Gift `gorm:"foreignKey:GiftID" json:"gift,omitempty"`
}

func (GiftTransaction) TableName() string {
	return "gift_transactions"
}
