package service

import (
	"context"
	"encoding/json"

	"lynxx/internal/ledger"
	"lynxx/internal/models"
	"lynxx/internal/repository"
	"lynxx/internal/ws"
)

type NotificationService struct {
	repo     *repository.NotificationRepository
	userRepo *repository.UserRepository
	fcm      *FCMService
	hub      *ws.Hub
}

func NewNotificationService(repo *repository.NotificationRepository, userRepo *repository.UserRepository, fcm *FCMService, hub *ws.Hub) *NotificationService {
	return &NotificationService{repo: repo, userRepo: userRepo, fcm: fcm, hub: hub}
}

// Run consumes ledger events until the channel closes or ctx is cancelled.
// Runs as a goroutine; the ledger never blocks on notification delivery.
func (s *NotificationService) Run(ctx context.Context, events <-chan ledger.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			s.handleEvent(e)
		}
	}
}

func (s *NotificationService) handleEvent(e ledger.Event) {
	switch e.Type {
	case "WITHDRAWAL_FAILED":
		orderID, _ := e.Data["order_id"].(string)
		_ = s.NotifyWithdrawalFailed(e.UserID, orderID)
	default:
		_ = s.Notify(e.UserID, e.Type, e.Title, e.Body, e.Data)
	}
}

func (s *NotificationService) Notify(userID uint, notifType, title, body string, data map[string]interface{}) error {
	var dataJSON string
	if data != nil {
		b, _ := json.Marshal(data)
		dataJSON = string(b)
	}
	err := s.repo.Create(&models.Notification{
		UserID: userID,
		Type:   notifType,
		Title:  title,
		Body:   body,
		Data:   dataJSON,
	})
	if err != nil {
		return err
	}
	if s.hub != nil {
		s.hub.BroadcastToUser(userID, map[string]interface{}{
			"type":  notifType,
			"title": title,
			"body":  body,
			"data":  data,
		})
	}
	s.sendPush(userID, notifType, title, body, data)
	return nil
}

func (s *NotificationService) sendPush(userID uint, notifType, title, body string, data map[string]interface{}) {
	if s.fcm == nil || s.userRepo == nil {
		return
	}
	u, err := s.userRepo.GetByID(userID)
	if err != nil || u == nil || u.FCMToken == "" {
		return
	}
	_ = s.fcm.SendToUser(context.Background(), u.FCMToken, notifType, title, body, data)
}

func (s *NotificationService) NotifyNewMessage(recipientID uint, senderName string, messageID uint) error {
	return s.Notify(recipientID, "NEW_MESSAGE", "New message", senderName+" sent you a message", map[string]interface{}{"message_id": messageID})
}

func (s *NotificationService) NotifyDateBooked(earnerUserID uint, seekerName string, videoDateID uint) error {
	return s.Notify(earnerUserID, "DATE_BOOKED", "New video date", seekerName+" booked a video date with you", map[string]interface{}{"video_date_id": videoDateID})
}

func (s *NotificationService) NotifyDateCancelled(userID uint, videoDateID uint) error {
	return s.Notify(userID, "DATE_CANCELLED", "Video date cancelled", "Your video date was cancelled and the credits refunded.", map[string]interface{}{"video_date_id": videoDateID})
}

func (s *NotificationService) NotifyDateStarting(userID uint, videoDateID uint) error {
	return s.Notify(userID, "DATE_STARTING", "Video date starting", "Your video date is starting now. Join within the grace window.", map[string]interface{}{"video_date_id": videoDateID})
}

func (s *NotificationService) NotifyThankYou(seekerUserID uint, earnerName string, giftTxID uint) error {
	return s.Notify(seekerUserID, "GIFT_THANK_YOU", "Thank you", earnerName+" thanked you for your gift", map[string]interface{}{"gift_transaction_id": giftTxID})
}

func (s *NotificationService) NotifyWithdrawalFailed(userID uint, orderID string) error {
	return s.Notify(userID, "WITHDRAWAL_FAILED", "Withdrawal failed", "Your withdrawal could not be completed. Support will review your payout.", map[string]interface{}{"order_id": orderID})
}

// NotifyDateCall sends a data-only push for an imminent video date so the
// mobile client can surface the native incoming-call UI. Not persisted.
func (s *NotificationService) NotifyDateCall(userID uint, peerName string, videoDateID uint, roomURL string) {
	if s.fcm == nil || s.userRepo == nil {
		return
	}
	u, err := s.userRepo.GetByID(userID)
	if err != nil || u == nil || u.FCMToken == "" {
		return
	}
	_ = s.fcm.SendDataOnly(context.Background(), u.FCMToken, map[string]string{
		"type":          "DATE_CALL",
		"peer_name":     peerName,
		"video_date_id": jsonUint(videoDateID),
		"room_url":      roomURL,
	})
}

func jsonUint(v uint) string {
	b, _ := json.Marshal(v)
	return string(b)
}
