package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"lynxx/internal/booking"
	"lynxx/internal/ledger"
	"lynxx/internal/middleware"
	"lynxx/internal/repository"
	"lynxx/internal/service"

	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	svc      *booking.Service
	dateRepo *repository.VideoDateRepository
	userRepo *repository.UserRepository
	notifSvc *service.NotificationService
}

func NewBookingHandler(svc *booking.Service, dateRepo *repository.VideoDateRepository, userRepo *repository.UserRepository, notifSvc *service.NotificationService) *BookingHandler {
	return &BookingHandler{svc: svc, dateRepo: dateRepo, userRepo: userRepo, notifSvc: notifSvc}
}

type bookRequest struct {
	EarnerID        uint   `json:"earner_id" binding:"required"`
	CallType        string `json:"call_type" binding:"required,oneof=VIDEO AUDIO"`
	ScheduledStart  string `json:"scheduled_start" binding:"required"` // RFC 3339
	DurationMinutes int    `json:"duration_minutes" binding:"required"`
}

// Book reserves credits and schedules a video date.
func (h *BookingHandler) Book(c *gin.Context) {
	seekerID := middleware.GetUserID(c)
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, err := time.Parse(time.RFC3339, req.ScheduledStart)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scheduled_start (use RFC 3339)"})
		return
	}
	d, err := h.svc.Book(c.Request.Context(), seekerID, req.EarnerID, req.CallType, start, req.DurationMinutes)
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrPastStart),
			errors.Is(err, booking.ErrEarnerInactive),
			errors.Is(err, booking.ErrNoRates):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, ledger.ErrInsufficientBalance):
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient credits"})
		default:
			log.Printf("[booking] book failed: seeker=%d earner=%d err=%v", seekerID, req.EarnerID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "booking failed"})
		}
		return
	}
	if h.notifSvc != nil {
		seeker, _ := h.userRepo.GetByID(seekerID)
		name := ""
		if seeker != nil {
			name = seeker.Username
		}
		_ = h.notifSvc.NotifyDateBooked(d.EarnerID, name, d.ID)
	}
	c.JSON(http.StatusCreated, d)
}

// Get returns a single date; participants only.
func (h *BookingHandler) Get(c *gin.Context) {
	userID := middleware.GetUserID(c)
	id := h.dateID(c)
	if id == 0 {
		return
	}
	d, err := h.dateRepo.GetByID(id)
	if err != nil || d == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "date not found"})
		return
	}
	if d.SeekerID != userID && d.EarnerID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		return
	}
	c.JSON(http.StatusOK, d)
}

// List returns the user's dates, newest first.
func (h *BookingHandler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	dates, err := h.dateRepo.ListByParticipant(userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list dates"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"dates": dates})
}

// JoinToken issues a room token and records the participant's join.
func (h *BookingHandler) JoinToken(c *gin.Context) {
	userID := middleware.GetUserID(c)
	id := h.dateID(c)
	if id == 0 {
		return
	}
	token, d, err := h.svc.JoinToken(c.Request.Context(), id, userID)
	if err != nil {
		h.joinError(c, err)
		return
	}
	d, err = h.svc.RecordJoin(id, userID, time.Now())
	if err != nil {
		h.joinError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"room_url": d.RoomURL,
		"status":   d.Status,
	})
}

func (h *BookingHandler) joinError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, booking.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, booking.ErrNotJoinable), errors.Is(err, booking.ErrTerminal):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "join failed"})
	}
}

// Cancel refunds and cancels a non-terminal date. Either participant may cancel.
func (h *BookingHandler) Cancel(c *gin.Context) {
	userID := middleware.GetUserID(c)
	id := h.dateID(c)
	if id == 0 {
		return
	}
	if err := h.svc.Cancel(id, userID); err != nil {
		switch {
		case errors.Is(err, booking.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		case errors.Is(err, booking.ErrTerminal), errors.Is(err, ledger.ErrAlreadySettled):
			c.JSON(http.StatusConflict, gin.H{"error": "date can no longer be cancelled"})
		default:
			log.Printf("[booking] cancel failed: date=%d err=%v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cancel failed"})
		}
		return
	}
	d, _ := h.dateRepo.GetByID(id)
	if h.notifSvc != nil && d != nil {
		other := d.SeekerID
		if userID == d.SeekerID {
			other = d.EarnerID
		}
		_ = h.notifSvc.NotifyDateCancelled(other, d.ID)
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// Complete settles an in-progress date early. Either participant may end it.
func (h *BookingHandler) Complete(c *gin.Context) {
	userID := middleware.GetUserID(c)
	id := h.dateID(c)
	if id == 0 {
		return
	}
	if err := h.svc.Complete(id, userID); err != nil {
		switch {
		case errors.Is(err, booking.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		case errors.Is(err, booking.ErrNotJoinable), errors.Is(err, booking.ErrTerminal):
			c.JSON(http.StatusConflict, gin.H{"error": "date is not in progress"})
		default:
			log.Printf("[booking] complete failed: date=%d err=%v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "complete failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}

func (h *BookingHandler) dateID(c *gin.Context) uint {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date id"})
		return 0
	}
	return uint(id)
}
