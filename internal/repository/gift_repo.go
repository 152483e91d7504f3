package repository

import (
	"lynxx/internal/models"

	"gorm.io/gorm"
)

type GiftRepository struct {
	db *gorm.DB
}

func NewGiftRepository(db *gorm.DB) *GiftRepository {
	return &GiftRepository{db: db}
}

func (r *GiftRepository) ListCatalog() ([]models.Gift, error) {
	var list []models.Gift
	err := r.db.Where("is_active = ?", true).Order("price_credits ASC").Find(&list).Error
	return list, err
}

func (r *GiftRepository) GetCatalogItemTx(tx *gorm.DB, giftID uint) (*models.Gift, error) {
	var g models.Gift
	err := tx.Where("is_active = ?", true).First(&g, giftID).Error
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *GiftRepository) CreateSendTx(tx *gorm.DB, gt *models.GiftTransaction) error {
	return tx.Create(gt).Error
}

func (r *GiftRepository) GetSendByID(id uint) (*models.GiftTransaction, error) {
	var gt models.GiftTransaction
	err := r.db.Preload("Gift").First(&gt, id).Error
	if err != nil {
		return nil, err
	}
	return &gt, nil
}

func (r *GiftRepository) UpdateSend(gt *models.GiftTransaction) error {
	return r.db.Save(gt).Error
}

func (r *GiftRepository) ListReceived(userID uint, limit, offset int) ([]models.GiftTransaction, error) {
	var list []models.GiftTransaction
	err := r.db.Where("recipient_id = ?", userID).Preload("Gift").
		Order("created_at DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}
