package repository

import (
	"errors"

	"lynxx/internal/models"

	"gorm.io/gorm"
)

type MediaRepository struct {
	db *gorm.DB
}

func NewMediaRepository(db *gorm.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

func (r *MediaRepository) Create(m *models.EarnerMedia) error {
	return r.db.Create(m).Error
}

func (r *MediaRepository) GetByID(id uint) (*models.EarnerMedia, error) {
	var m models.EarnerMedia
	err := r.db.First(&m, id).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MediaRepository) ListByEarner(earnerID uint) ([]models.EarnerMedia, error) {
	var list []models.EarnerMedia
	err := r.db.Where("earner_id = ?", earnerID).Order("sort_order ASC, id ASC").Find(&list).Error
	return list, err
}

func (r *MediaRepository) Delete(id, earnerID uint) error {
	return r.db.Where("id = ? AND earner_id = ?", id, earnerID).Delete(&models.EarnerMedia{}).Error
}

func (r *MediaRepository) IsUnlocked(userID, mediaID uint) (bool, error) {
	var u models.MediaUnlock
	err := r.db.Where("user_id = ? AND media_id = ?", userID, mediaID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *MediaRepository) CreateUnlockTx(tx *gorm.DB, u *models.MediaUnlock) error {
	return tx.Create(u).Error
}
