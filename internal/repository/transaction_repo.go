package repository

import (
	"errors"
	"time"

	"lynxx/internal/domain"
	"lynxx/internal/models"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// AppendTx writes a ledger row inside the caller's transaction so the
// wallet delta and its record commit or roll back together.
func (r *TransactionRepository) AppendTx(tx *gorm.DB, t *models.Transaction) error {
	return tx.Create(t).Error
}

func (r *TransactionRepository) FindByExternalReference(ref string) (*models.Transaction, error) {
	return r.FindByExternalReferenceTx(r.db, ref)
}

func (r *TransactionRepository) FindByExternalReferenceTx(tx *gorm.DB, ref string) (*models.Transaction, error) {
	var t models.Transaction
	err := tx.Where("external_reference = ?", ref).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FindByTypeAndReferenceTx looks up a row by type and internal reference,
// the duplicate guard for refunds and settlements.
func (r *TransactionRepository) FindByTypeAndReferenceTx(tx *gorm.DB, txType, reference string) (*models.Transaction, error) {
	var t models.Transaction
	err := tx.Where("type = ? AND reference = ?", txType, reference).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepository) ListByUserID(userID uint, limit, offset int) ([]models.Transaction, error) {
	var list []models.Transaction
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

// ListMatureEarnings returns held earning rows whose hold window has
// elapsed, for the pending -> available promotion sweep.
func (r *TransactionRepository) ListMatureEarnings(now time.Time, limit int) ([]models.Transaction, error) {
	var list []models.Transaction
	err := r.db.Where("type IN ? AND status = ? AND available_at <= ?",
		[]string{domain.TxTypeEarning, domain.TxTypeGiftEarning}, domain.TxStatusPending, now).
		Order("available_at ASC").Limit(limit).Find(&list).Error
	return list, err
}

func (r *TransactionRepository) MarkStatusTx(tx *gorm.DB, id uint, from, to string) (bool, error) {
	res := tx.Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
