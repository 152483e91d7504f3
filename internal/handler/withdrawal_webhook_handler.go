package handler

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"lynxx/config"
	"lynxx/internal/ledger"
	"lynxx/pkg/payment"

	"github.com/gin-gonic/gin"
)

// transferEvent is the payout webhook envelope. The transfer's metadata
// carries our order id so the event can be matched to a withdrawal.
type transferEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string `json:"id"`
			Metadata struct {
				OrderID string `json:"order_id"`
			} `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

type WithdrawalWebhookHandler struct {
	cfg      *config.Config
	ledger   *ledger.Service
	provider payment.Provider
}

func NewWithdrawalWebhookHandler(cfg *config.Config, ldg *ledger.Service, provider payment.Provider) *WithdrawalWebhookHandler {
	return &WithdrawalWebhookHandler{cfg: cfg, ledger: ldg, provider: provider}
}

// Handle processes payout webhooks. Reconciliation is keyed on the event id
// so redelivered events are no-ops; a failed payout never re-credits the
// wallet automatically.
func (h *WithdrawalWebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	sig := c.GetHeader("Stripe-Signature")
	if err := h.provider.VerifyWebhook(body, sig, h.cfg.Stripe.TransferWebhookSecret); err != nil {
		log.Printf("[withdrawal webhook] signature rejected: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}
	var event transferEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	orderID := event.Data.Object.Metadata.OrderID
	if orderID == "" {
		log.Printf("[withdrawal webhook] no order_id in event %s", event.ID)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	var succeeded bool
	switch event.Type {
	case "transfer.paid":
		succeeded = true
	case "transfer.failed", "transfer.reversed":
		succeeded = false
	default:
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	if err := h.ledger.ReconcileWithdrawalWebhook(event.ID, orderID, succeeded); err != nil {
		log.Printf("[withdrawal webhook] reconcile failed: event=%s order=%s err=%v", event.ID, orderID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reconcile failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
