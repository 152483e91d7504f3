package repository

import (
	"errors"

	"lynxx/internal/models"

	"gorm.io/gorm"
)

var ErrInsufficientBalance = errors.New("insufficient wallet balance")

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) GetByUserID(userID uint) (*models.Wallet, error) {
	return r.getByUserID(r.db, userID)
}

func (r *WalletRepository) getByUserID(db *gorm.DB, userID uint) (*models.Wallet, error) {
	var w models.Wallet
	err := db.Where("user_id = ?", userID).First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WalletRepository) GetOrCreate(userID uint) (*models.Wallet, error) {
	return r.GetOrCreateTx(r.db, userID)
}

func (r *WalletRepository) GetOrCreateTx(tx *gorm.DB, userID uint) (*models.Wallet, error) {
	w, err := r.getByUserID(tx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	w = &models.Wallet{UserID: userID}
	if err := tx.Create(w).Error; err != nil {
		return nil, err
	}
	return w, nil
}

// DebitCreditsTx deducts credits with a conditional UPDATE so concurrent
// spends cannot interleave into a negative balance. Zero rows affected
// means the balance was too low; the caller must treat this as a hard stop.
func (r *WalletRepository) DebitCreditsTx(tx *gorm.DB, userID uint, credits int64) error {
	if _, err := r.GetOrCreateTx(tx, userID); err != nil {
		return err
	}
	res := tx.Model(&models.Wallet{}).
		Where("user_id = ? AND credit_balance >= ?", userID, credits).
		Update("credit_balance", gorm.Expr("credit_balance - ?", credits))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

func (r *WalletRepository) CreditCreditsTx(tx *gorm.DB, userID uint, credits int64) error {
	if _, err := r.GetOrCreateTx(tx, userID); err != nil {
		return err
	}
	return tx.Model(&models.Wallet{}).
		Where("user_id = ?", userID).
		Update("credit_balance", gorm.Expr("credit_balance + ?", credits)).Error
}

// CreditPendingTx adds held earnings (USD cents) to the earner's wallet.
func (r *WalletRepository) CreditPendingTx(tx *gorm.DB, userID uint, cents int64) error {
	if _, err := r.GetOrCreateTx(tx, userID); err != nil {
		return err
	}
	return tx.Model(&models.Wallet{}).
		Where("user_id = ?", userID).
		Update("pending_earnings_cents", gorm.Expr("pending_earnings_cents + ?", cents)).Error
}

// PromotePendingTx moves held earnings into the withdrawable balance.
// Conditional on sufficient pending so overlapping promotion sweeps
// cannot move the same cents twice.
func (r *WalletRepository) PromotePendingTx(tx *gorm.DB, userID uint, cents int64) error {
	res := tx.Model(&models.Wallet{}).
		Where("user_id = ? AND pending_earnings_cents >= ?", userID, cents).
		Updates(map[string]interface{}{
			"pending_earnings_cents":   gorm.Expr("pending_earnings_cents - ?", cents),
			"available_earnings_cents": gorm.Expr("available_earnings_cents + ?", cents),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

func (r *WalletRepository) DebitAvailableTx(tx *gorm.DB, userID uint, cents int64) error {
	res := tx.Model(&models.Wallet{}).
		Where("user_id = ? AND available_earnings_cents >= ?", userID, cents).
		Update("available_earnings_cents", gorm.Expr("available_earnings_cents - ?", cents))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

// AddPaidOutTx bumps the lifetime payout counter. Never decremented.
func (r *WalletRepository) AddPaidOutTx(tx *gorm.DB, userID uint, cents int64) error {
	return tx.Model(&models.Wallet{}).
		Where("user_id = ?", userID).
		Update("paid_out_cents", gorm.Expr("paid_out_cents + ?", cents)).Error
}

// SetPayoutHold is a privileged operation used by fraud and manual-review
// paths; ordinary spend/earn flows never call it.
func (r *WalletRepository) SetPayoutHold(userID uint, held bool, reason string) error {
	return r.SetPayoutHoldTx(r.db, userID, held, reason)
}

func (r *WalletRepository) SetPayoutHoldTx(tx *gorm.DB, userID uint, held bool, reason string) error {
	if !held {
		reason = ""
	}
	return tx.Model(&models.Wallet{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{"payout_hold": held, "payout_hold_reason": reason}).Error
}
