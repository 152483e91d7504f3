package handler

import (
	"net/http"
	"strconv"

	"lynxx/internal/middleware"
	"lynxx/internal/repository"

	"github.com/gin-gonic/gin"
)

type WalletHandler struct {
	walletRepo *repository.WalletRepository
	txRepo     *repository.TransactionRepository
}

func NewWalletHandler(walletRepo *repository.WalletRepository, txRepo *repository.TransactionRepository) *WalletHandler {
	return &WalletHandler{walletRepo: walletRepo, txRepo: txRepo}
}

// GetBalance returns the current user's wallet. Credits for seekers,
// earnings buckets for earners; both live on the same row.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID := middleware.GetUserID(c)
	w, err := h.walletRepo.GetOrCreate(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "wallet error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"credit_balance":           w.CreditBalance,
		"pending_earnings_cents":   w.PendingEarningsCents,
		"available_earnings_cents": w.AvailableEarningsCents,
		"paid_out_cents":           w.PaidOutCents,
		"payout_hold":              w.PayoutHold,
	})
}

// ListTransactions returns the user's ledger history, newest first.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID := middleware.GetUserID(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	txs, err := h.txRepo.ListByUserID(userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list transactions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs, "limit": limit, "offset": offset})
}
