package handler

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"lynxx/config"
	"lynxx/internal/domain"
	"lynxx/internal/middleware"
	"lynxx/internal/models"
	"lynxx/internal/repository"
	"lynxx/pkg/payment"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PurchaseHandler struct {
	cfg         *config.Config
	paymentRepo *repository.PaymentRepository
	provider    payment.Provider
}

func NewPurchaseHandler(cfg *config.Config, paymentRepo *repository.PaymentRepository, provider payment.Provider) *PurchaseHandler {
	return &PurchaseHandler{cfg: cfg, paymentRepo: paymentRepo, provider: provider}
}

// ListPackages returns the purchasable credit packages.
func (h *PurchaseHandler) ListPackages(c *gin.Context) {
	out := make([]gin.H, 0, len(domain.CreditPackages))
	for _, p := range domain.CreditPackages {
		out = append(out, gin.H{
			"package_id": p.PackageID,
			"credits":    p.Credits,
			"usd_cents":  p.USDCents,
		})
	}
	c.JSON(http.StatusOK, gin.H{"packages": out})
}

// Create starts a credit purchase: records a PENDING payment and creates the
// charge at the processor. Credits land only when the webhook confirms.
func (h *PurchaseHandler) Create(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req struct {
		PackageID string `json:"package_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	pkg := domain.FindCreditPackage(req.PackageID)
	if pkg == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown package"})
		return
	}
	idemKey := fmt.Sprintf("purchase-%s", uuid.New().String())
	resp, err := h.provider.CreateCharge(c.Request.Context(), payment.ChargeRequest{
		UserID:         userID,
		AmountCents:    pkg.USDCents,
		Currency:       "usd",
		IdempotencyKey: idemKey,
		Description:    fmt.Sprintf("%d credits (%s)", pkg.Credits, pkg.PackageID),
	})
	if err != nil {
		log.Printf("[purchase] charge create failed: user=%d pkg=%s err=%v", userID, req.PackageID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider unavailable"})
		return
	}
	expires := time.Now().Add(h.cfg.Ledger.PaymentExpiry)
	p := &models.Payment{
		UserID:         userID,
		PackageID:      pkg.PackageID,
		Credits:        pkg.Credits,
		AmountCents:    pkg.USDCents,
		Currency:       "USD",
		Provider:       "stripe",
		ProviderRef:    resp.Reference,
		Status:         domain.PaymentStatusPending,
		IdempotencyKey: idemKey,
		ExpiresAt:      &expires,
	}
	if err := h.paymentRepo.Create(p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record payment"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"payment_id":    p.ID,
		"provider_ref":  resp.Reference,
		"client_secret": resp.ClientSecret,
		"checkout_url":  resp.CheckoutURL,
		"status":        p.Status,
		"expires_at":    expires,
	})
}

// Get returns a payment intent's current status.
func (h *PurchaseHandler) Get(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var uri struct {
		ID uint `uri:"id" binding:"required"`
	}
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	p, err := h.paymentRepo.GetByID(uri.ID)
	if err != nil || p == nil || p.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
		return
	}
	c.JSON(http.StatusOK, p)
}
