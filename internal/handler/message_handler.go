package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"lynxx/internal/domain"
	"lynxx/internal/ledger"
	"lynxx/internal/middleware"
	"lynxx/internal/models"
	"lynxx/internal/repository"
	"lynxx/internal/service"
	"lynxx/internal/ws"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type MessageHandler struct {
	msgRepo  *repository.MessageRepository
	userRepo *repository.UserRepository
	ledger   *ledger.Service
	hub      *ws.Hub
	notifSvc *service.NotificationService
}

func NewMessageHandler(msgRepo *repository.MessageRepository, userRepo *repository.UserRepository, ldg *ledger.Service, hub *ws.Hub, notifSvc *service.NotificationService) *MessageHandler {
	return &MessageHandler{msgRepo: msgRepo, userRepo: userRepo, ledger: ldg, hub: hub, notifSvc: notifSvc}
}

// Send debits the message price and writes the message in one ledger
// transaction. Seeker-to-earner sends are charged; earner replies are free.
func (h *MessageHandler) Send(c *gin.Context) {
	senderID := middleware.GetUserID(c)
	var req struct {
		RecipientID uint   `json:"recipient_id" binding:"required"`
		Content     string `json:"content" binding:"required,max=2000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.RecipientID == senderID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot message yourself"})
		return
	}
	recipient, err := h.userRepo.GetByID(req.RecipientID)
	if err != nil || recipient == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "recipient not found"})
		return
	}
	m := &models.Message{
		SenderID:    senderID,
		RecipientID: req.RecipientID,
		Content:     req.Content,
	}
	role, _ := c.Get("role")
	if role == domain.RoleSeeker {
		ref := fmt.Sprintf("msg:%d->%d", senderID, req.RecipientID)
		_, err = h.ledger.SpendCreditsWith(senderID, domain.SpendReasonMessage, ref, func(tx *gorm.DB) error {
			return h.msgRepo.CreateTx(tx, m)
		})
	} else {
		err = h.msgRepo.CreateTx(nil, m)
	}
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientBalance) {
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient credits"})
			return
		}
		log.Printf("[message] send failed: sender=%d err=%v", senderID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "send failed"})
		return
	}
	if h.hub != nil {
		h.hub.BroadcastToUser(req.RecipientID, gin.H{"type": "NEW_MESSAGE", "message": m})
	}
	if h.notifSvc != nil {
		sender, _ := h.userRepo.GetByID(senderID)
		name := ""
		if sender != nil {
			name = sender.Username
		}
		_ = h.notifSvc.NotifyNewMessage(req.RecipientID, name, m.ID)
	}
	c.JSON(http.StatusCreated, m)
}

// Conversation returns messages between the caller and another user and
// marks the inbound side read.
func (h *MessageHandler) Conversation(c *gin.Context) {
	userID := middleware.GetUserID(c)
	otherID, err := strconv.ParseUint(c.Param("userId"), 10, 32)
	if err != nil || otherID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	msgs, err := h.msgRepo.ListConversation(userID, uint(otherID), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
		return
	}
	_ = h.msgRepo.MarkRead(userID, uint(otherID))
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}
