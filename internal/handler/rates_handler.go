package handler

import (
	"net/http"
	"strconv"

	"lynxx/internal/domain"
	"lynxx/internal/middleware"
	"lynxx/internal/models"
	"lynxx/internal/pricing"
	"lynxx/internal/repository"

	"github.com/gin-gonic/gin"
)

type RatesHandler struct {
	rateRepo *repository.RateRepository
	userRepo *repository.UserRepository
}

func NewRatesHandler(rateRepo *repository.RateRepository, userRepo *repository.UserRepository) *RatesHandler {
	return &RatesHandler{rateRepo: rateRepo, userRepo: userRepo}
}

// Get returns an earner's published rate card with derived audio rates.
func (h *RatesHandler) Get(c *gin.Context) {
	earnerID, err := strconv.ParseUint(c.Param("earnerId"), 10, 32)
	if err != nil || earnerID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid earner id"})
		return
	}
	rates, err := h.rateRepo.ListByEarner(uint(earnerID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rates"})
		return
	}
	out := make([]gin.H, 0, len(rates))
	for _, r := range rates {
		out = append(out, gin.H{
			"duration_minutes": r.DurationMinutes,
			"video_credits":    r.Credits,
			"audio_credits":    pricing.AudioRateCredits(r.Credits),
		})
	}
	c.JSON(http.StatusOK, gin.H{"rates": out})
}

// Update replaces the caller's rate card after validating the tier monotonic
// and per-minute floor rules. Earner only.
func (h *RatesHandler) Update(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if role, _ := c.Get("role"); role != domain.RoleEarner {
		c.JSON(http.StatusForbidden, gin.H{"error": "earner only"})
		return
	}
	var req struct {
		Rates map[string]int64 `json:"rates" binding:"required"` // duration minutes -> video credits
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	card := pricing.RateCard{}
	for k, v := range req.Rates {
		d, err := strconv.Atoi(k)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid duration key: " + k})
			return
		}
		card[d] = v
	}
	if err := pricing.ValidateRateCard(card); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	rates := make([]models.CallRate, 0, len(card))
	for d, credits := range card {
		rates = append(rates, models.CallRate{EarnerID: userID, DurationMinutes: d, Credits: credits})
	}
	if err := h.rateRepo.ReplaceForEarner(userID, rates); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save rates"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
