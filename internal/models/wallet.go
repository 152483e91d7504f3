package models

import (
	"time"

	"gorm.io/gorm"
)

// Wallet is the authoritative balance record per user. It is mutated only
// through the ledger service; handlers read it but never write it directly.
// CreditBalance never goes below zero: debits are conditional UPDATEs that
// fail instead of clamping.
type Wallet struct {
	ID                     uint           `gorm:"primaryKey" json:"id"`
	UserID                 uint           `gorm:"uniqueIndex;not null" json:"user_id"`
	CreditBalance          int64          `gorm:"not null;default:0" json:"credit_balance"`
	PendingEarningsCents   int64          `gorm:"not null;default:0" json:"pending_earnings_cents"`
	AvailableEarningsCents int64          `gorm:"not null;default:0" json:"available_earnings_cents"`
	PaidOutCents           int64          `gorm:"not null;default:0" json:"paid_out_cents"` // monotonically non-decreasing
	PayoutHold             bool           `gorm:"default:false" json:"payout_hold"`
	PayoutHoldReason       string         `gorm:"size:255" json:"payout_hold_reason,omitempty"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
	DeletedAt              gorm.DeletedAt `gorm:"index" json:"-"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Wallet) TableName() string {
	return "wallets"
}
