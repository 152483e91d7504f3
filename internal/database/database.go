package database

import (
	"lynxx/config"
	"lynxx/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error), // Only log errors, not every SQL query
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// AutoMigrate runs Gorm auto-migration for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.EarnerProfile{},
		&models.Wallet{},
		&models.Transaction{},
		&models.Payment{},
		&models.Gift{},
		&models.GiftTransaction{},
		&models.CallRate{},
		&models.VideoDate{},
		&models.Withdrawal{},
		&models.EarnerMedia{},
		&models.MediaUnlock{},
		&models.Message{},
		&models.Notification{},
		&models.AuditLog{},
	)
}

// SeedGifts inserts the default gift catalog if it is empty.
func SeedGifts(db *gorm.DB) {
	var count int64
	db.Model(&models.Gift{}).Count(&count)
	if count > 0 {
		return
	}
	gifts := []models.Gift{
		{Name: "Rose", PriceCredits: 10},
		{Name: "Chocolates", PriceCredits: 25},
		{Name: "Champagne", PriceCredits: 50},
		{Name: "Teddy Bear", PriceCredits: 100},
		{Name: "Diamond", PriceCredits: 500},
	}
	db.Create(&gifts)
}
