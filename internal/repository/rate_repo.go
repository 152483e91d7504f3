package repository

import (
	"lynxx/internal/models"
	"lynxx/internal/pricing"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RateRepository struct {
	db *gorm.DB
}

func NewRateRepository(db *gorm.DB) *RateRepository {
	return &RateRepository{db: db}
}

func (r *RateRepository) ListByEarner(earnerID uint) ([]models.CallRate, error) {
	var list []models.CallRate
	err := r.db.Where("earner_id = ?", earnerID).Order("duration_minutes ASC").Find(&list).Error
	return list, err
}

// RateCardForEarner loads the earner's tiers as a pricing.RateCard.
func (r *RateRepository) RateCardForEarner(earnerID uint) (pricing.RateCard, error) {
	rates, err := r.ListByEarner(earnerID)
	if err != nil {
		return nil, err
	}
	card := make(pricing.RateCard, len(rates))
	for _, rate := range rates {
		card[rate.DurationMinutes] = rate.Credits
	}
	return card, nil
}

// ReplaceForEarner swaps the earner's full rate card in one transaction.
// Validation happens in the caller before this is reached.
func (r *RateRepository) ReplaceForEarner(earnerID uint, rates []models.CallRate) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("earner_id = ?", earnerID).Delete(&models.CallRate{}).Error; err != nil {
			return err
		}
		for i := range rates {
			rates[i].EarnerID = earnerID
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rates).Error
	})
}
