package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"lynxx/internal/domain"
	"lynxx/internal/ledger"
	"lynxx/internal/middleware"
	"lynxx/internal/repository"
	"lynxx/pkg/payment"

	"github.com/gin-gonic/gin"
)

type WithdrawalHandler struct {
	ledger         *ledger.Service
	withdrawalRepo *repository.WithdrawalRepository
	userRepo       *repository.UserRepository
	provider       payment.Provider
}

func NewWithdrawalHandler(ldg *ledger.Service, withdrawalRepo *repository.WithdrawalRepository, userRepo *repository.UserRepository, provider payment.Provider) *WithdrawalHandler {
	return &WithdrawalHandler{ledger: ldg, withdrawalRepo: withdrawalRepo, userRepo: userRepo, provider: provider}
}

// Create initiates a withdrawal of available earnings. Earner only.
// The debit happens first; if the transfer cannot be started the withdrawal
// is marked FAILED and the wallet is held for manual reconciliation rather
// than silently re-credited.
func (h *WithdrawalHandler) Create(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if role, _ := c.Get("role"); role != domain.RoleEarner {
		c.JSON(http.StatusForbidden, gin.H{"error": "earner only"})
		return
	}
	var req struct {
		AmountCents int64 `json:"amount_cents" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	profile, err := h.userRepo.GetEarnerProfile(userID)
	if err != nil || profile == nil || profile.PayoutAccountID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payout account not set up"})
		return
	}
	w, err := h.ledger.RequestWithdrawal(userID, req.AmountCents)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrBelowMinimum):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, ledger.ErrPayoutHeld):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		case errors.Is(err, ledger.ErrInsufficientBalance):
			c.JSON(http.StatusBadRequest, gin.H{"error": "insufficient available earnings"})
		default:
			log.Printf("[withdrawal] request failed: user=%d err=%v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "withdrawal failed"})
		}
		return
	}
	resp, err := h.provider.CreateTransfer(c.Request.Context(), payment.TransferRequest{
		AccountID:   profile.PayoutAccountID,
		AmountCents: req.AmountCents,
		Currency:    "usd",
		OrderID:     w.OrderID,
		Description: "Earnings withdrawal",
	})
	if err != nil {
		log.Printf("[withdrawal] transfer init failed: order=%s err=%v", w.OrderID, err)
		if ferr := h.ledger.FailWithdrawal(w.OrderID, "transfer initiation failed"); ferr != nil {
			log.Printf("[withdrawal] fail-mark failed: order=%s err=%v", w.OrderID, ferr)
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "payout provider unavailable; withdrawal flagged for review"})
		return
	}
	if err := h.ledger.AttachProviderRef(w.OrderID, resp.Reference); err != nil {
		log.Printf("[withdrawal] attach ref failed: order=%s err=%v", w.OrderID, err)
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":           w.ID,
		"order_id":     w.OrderID,
		"amount_cents": w.AmountCents,
		"status":       w.Status,
	})
}

// List returns the current user's withdrawals, newest first.
func (h *WithdrawalHandler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	ws, err := h.withdrawalRepo.ListByUserID(userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list withdrawals"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": ws})
}
