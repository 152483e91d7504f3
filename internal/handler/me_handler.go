package handler

import (
	"net/http"
	"time"

	"lynxx/internal/domain"
	"lynxx/internal/middleware"
	"lynxx/internal/repository"

	"github.com/gin-gonic/gin"
)

type MeHandler struct {
	userRepo *repository.UserRepository
}

func NewMeHandler(userRepo *repository.UserRepository) *MeHandler {
	return &MeHandler{userRepo: userRepo}
}

// Get returns the current user with earner profile when present.
func (h *MeHandler) Get(c *gin.Context) {
	userID := middleware.GetUserID(c)
	u, err := h.userRepo.GetByID(userID)
	if err != nil || u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	resp := gin.H{"user": u}
	if u.Role == domain.RoleEarner {
		if p, err := h.userRepo.GetEarnerProfile(userID); err == nil && p != nil {
			resp["earner_profile"] = p
		}
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateEarnerProfile updates display settings and payout account. Setting a
// payout account completes onboarding and activates the profile.
func (h *MeHandler) UpdateEarnerProfile(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if role, _ := c.Get("role"); role != domain.RoleEarner {
		c.JSON(http.StatusForbidden, gin.H{"error": "earner only"})
		return
	}
	var req struct {
		DisplayName     *string `json:"display_name"`
		Bio             *string `json:"bio"`
		AcceptNewDates  *bool   `json:"accept_new_dates"`
		PayoutAccountID *string `json:"payout_account_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.userRepo.GetEarnerProfile(userID)
	if err != nil || p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "earner profile not found"})
		return
	}
	if req.DisplayName != nil && *req.DisplayName != "" {
		p.DisplayName = *req.DisplayName
	}
	if req.Bio != nil {
		p.Bio = *req.Bio
	}
	if req.AcceptNewDates != nil {
		p.AcceptNewDates = *req.AcceptNewDates
	}
	if req.PayoutAccountID != nil && *req.PayoutAccountID != "" {
		p.PayoutAccountID = *req.PayoutAccountID
		if p.OnboardingCompletedAt == nil {
			now := time.Now()
			p.OnboardingCompletedAt = &now
			p.IsActive = true
		}
	}
	if err := h.userRepo.SaveEarnerProfile(p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save profile"})
		return
	}
	c.JSON(http.StatusOK, p)
}
