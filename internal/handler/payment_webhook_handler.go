package handler

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"lynxx/config"
	"lynxx/internal/domain"
	"lynxx/internal/ledger"
	"lynxx/internal/repository"
	"lynxx/pkg/payment"

	"github.com/gin-gonic/gin"
)

// stripeEvent is the envelope delivered to webhook endpoints.
type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID string `json:"id"`
		} `json:"object"`
	} `json:"data"`
}

type PaymentWebhookHandler struct {
	cfg         *config.Config
	paymentRepo *repository.PaymentRepository
	ledger      *ledger.Service
	provider    payment.Provider
}

func NewPaymentWebhookHandler(cfg *config.Config, paymentRepo *repository.PaymentRepository, ldg *ledger.Service, provider payment.Provider) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{cfg: cfg, paymentRepo: paymentRepo, ledger: ldg, provider: provider}
}

// Handle processes charge webhooks. Signature is verified before the body is
// trusted; confirmation is idempotent so redeliveries credit at most once.
func (h *PaymentWebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	sig := c.GetHeader("Stripe-Signature")
	if err := h.provider.VerifyWebhook(body, sig, h.cfg.Stripe.PurchaseWebhookSecret); err != nil {
		log.Printf("[purchase webhook] signature rejected: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}
	var event stripeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	ref := event.Data.Object.ID
	if ref == "" {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	p, err := h.paymentRepo.GetByProviderRef(ref)
	if err != nil || p == nil {
		log.Printf("[purchase webhook] no payment for ref=%s", ref)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	switch event.Type {
	case "payment_intent.succeeded":
		if _, err := h.ledger.ConfirmPurchase(p.UserID, ref, p.Credits, p.AmountCents); err != nil {
			log.Printf("[purchase webhook] confirm failed: ref=%s err=%v", ref, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "confirm failed"})
			return
		}
		if p.Status == domain.PaymentStatusPending {
			now := time.Now()
			p.Status = domain.PaymentStatusCompleted
			p.CompletedAt = &now
			if err := h.paymentRepo.Update(p); err != nil {
				log.Printf("[purchase webhook] payment update failed: ref=%s err=%v", ref, err)
			}
		}
	case "payment_intent.payment_failed", "payment_intent.canceled":
		if p.Status == domain.PaymentStatusPending {
			p.Status = domain.PaymentStatusFailed
			if err := h.paymentRepo.Update(p); err != nil {
				log.Printf("[purchase webhook] payment update failed: ref=%s err=%v", ref, err)
			}
		}
	default:
		// other event types are acknowledged and ignored
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
