package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"lynxx/internal/ledger"
	"lynxx/internal/middleware"
	"lynxx/internal/repository"
	"lynxx/internal/service"

	"github.com/gin-gonic/gin"
)

type GiftHandler struct {
	giftRepo *repository.GiftRepository
	userRepo *repository.UserRepository
	ledger   *ledger.Service
	notifSvc *service.NotificationService
}

func NewGiftHandler(giftRepo *repository.GiftRepository, userRepo *repository.UserRepository, ldg *ledger.Service, notifSvc *service.NotificationService) *GiftHandler {
	return &GiftHandler{giftRepo: giftRepo, userRepo: userRepo, ledger: ldg, notifSvc: notifSvc}
}

// Catalog returns the active gift catalog.
func (h *GiftHandler) Catalog(c *gin.Context) {
	gifts, err := h.giftRepo.ListCatalog()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load catalog"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"gifts": gifts})
}

// Send debits the sender and credits the recipient's pending earnings in one
// ledger transaction.
func (h *GiftHandler) Send(c *gin.Context) {
	senderID := middleware.GetUserID(c)
	var req struct {
		RecipientID uint   `json:"recipient_id" binding:"required"`
		GiftID      uint   `json:"gift_id" binding:"required"`
		Message     string `json:"message" binding:"max=500"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.RecipientID == senderID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot send a gift to yourself"})
		return
	}
	recipient, err := h.userRepo.GetByID(req.RecipientID)
	if err != nil || recipient == nil || !recipient.IsEarner() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipient cannot receive gifts"})
		return
	}
	gt, err := h.ledger.SendGift(senderID, req.RecipientID, req.GiftID, req.Message)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientBalance) {
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient credits"})
			return
		}
		log.Printf("[gift] send failed: sender=%d gift=%d err=%v", senderID, req.GiftID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "gift send failed"})
		return
	}
	c.JSON(http.StatusCreated, gt)
}

// Received lists gifts received by the current user, newest first.
func (h *GiftHandler) Received(c *gin.Context) {
	userID := middleware.GetUserID(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	gifts, err := h.giftRepo.ListReceived(userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list gifts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"gifts": gifts})
}

// ThankYou lets the recipient attach a one-off reaction to a received gift.
func (h *GiftHandler) ThankYou(c *gin.Context) {
	userID := middleware.GetUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid gift id"})
		return
	}
	var req struct {
		Reaction string `json:"reaction" binding:"required,max=50"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	gt, err := h.giftRepo.GetSendByID(uint(id))
	if err != nil || gt == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "gift not found"})
		return
	}
	if gt.RecipientID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the recipient can react"})
		return
	}
	if gt.ThankYouReaction != "" {
		c.JSON(http.StatusConflict, gin.H{"error": "already thanked"})
		return
	}
	gt.ThankYouReaction = req.Reaction
	if err := h.giftRepo.UpdateSend(gt); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save reaction"})
		return
	}
	if h.notifSvc != nil {
		earner, _ := h.userRepo.GetByID(userID)
		name := ""
		if earner != nil {
			name = earner.Username
		}
		_ = h.notifSvc.NotifyThankYou(gt.SenderID, name, gt.ID)
	}
	c.JSON(http.StatusOK, gt)
}
