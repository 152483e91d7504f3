package repository

import (
	"time"

	"lynxx/internal/models"

	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// CreateTx writes within an open transaction; pass nil to write directly.
func (r *MessageRepository) CreateTx(tx *gorm.DB, m *models.Message) error {
	if tx == nil {
		tx = r.db
	}
	return tx.Create(m).Error
}

func (r *MessageRepository) ListConversation(userA, userB uint, limit, offset int) ([]models.Message, error) {
	var list []models.Message
	err := r.db.Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
		userA, userB, userB, userA).
		Order("created_at DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

func (r *MessageRepository) MarkRead(recipientID, senderID uint) error {
	return r.db.Model(&models.Message{}).
		Where("recipient_id = ? AND sender_id = ? AND read_at IS NULL", recipientID, senderID).
		Update("read_at", time.Now()).Error
}
