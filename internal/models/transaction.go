package models

import (
	"time"

	"gorm.io/gorm"
)

// Transaction is the append-only ledger record for every balance-affecting
// event. ExternalReference carries payment-processor ids and is unique when
// present, which is the idempotency guard for webhook redelivery. Rows are
// never updated except for the PENDING -> COMPLETED status transition on
// held earnings and reconciled withdrawals.
type Transaction struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	UserID            uint           `gorm:"not null;index" json:"user_id"`
	Type              string         `gorm:"size:30;not null;index" json:"type"`
	CreditsAmount     int64          `gorm:"not null;default:0" json:"credits_amount"` // positive = credit, negative = debit
	USDCents          *int64         `json:"usd_cents,omitempty"`
	ExternalReference *string        `gorm:"size:255;uniqueIndex" json:"external_reference,omitempty"`
	Reference         string         `gorm:"size:128;index" json:"reference"` // internal linkage: video date id, withdrawal order id, gift id
	Status            string         `gorm:"size:20;not null;index" json:"status"`
	Description       string         `gorm:"size:255" json:"description"`
	AvailableAt       *time.Time     `gorm:"index" json:"available_at,omitempty"` // earnings hold deadline
	CreatedAt         time.Time      `json:"created_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Transaction) TableName() string {
	return "transactions"
}
