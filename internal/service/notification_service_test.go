package service

import (
	"fmt"
	"testing"

	"lynxx/internal/ledger"
	"lynxx/internal/models"
	"lynxx/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newNotificationService(t *testing.T) (*NotificationService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Notification{}))
	svc := NewNotificationService(repository.NewNotificationRepository(db), repository.NewUserRepository(db), nil, nil)
	return svc, db
}

func TestHandleEventPersistsNotification(t *testing.T) {
	svc, db := newNotificationService(t)

	svc.handleEvent(ledger.Event{
		UserID: 1,
		Type:   "DATE_SETTLED",
		Title:  "Video date earnings",
		Body:   "$14.00 was added to your pending earnings.",
		Data:   map[string]interface{}{"video_date_id": 7},
	})

	var n models.Notification
	require.NoError(t, db.Where("user_id = ?", 1).First(&n).Error)
	assert.Equal(t, "DATE_SETTLED", n.Type)
	assert.Equal(t, "Video date earnings", n.Title)
	assert.Contains(t, n.Data, "video_date_id")
}

func TestHandleEventWithdrawalFailure(t *testing.T) {
	svc, db := newNotificationService(t)

	// Failure events carry only the order id; the notification copy is
	// composed here, not in the ledger.
	svc.handleEvent(ledger.Event{
		UserID: 2,
		Type:   "WITHDRAWAL_FAILED",
		Data:   map[string]interface{}{"order_id": "wd-abc"},
	})

	var n models.Notification
	require.NoError(t, db.Where("user_id = ?", 2).First(&n).Error)
	assert.Equal(t, "WITHDRAWAL_FAILED", n.Type)
	assert.NotEmpty(t, n.Title)
	assert.NotEmpty(t, n.Body)
	assert.Contains(t, n.Data, "wd-abc")
}
