package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lynxx/internal/domain"
	"lynxx/internal/ledger"
	"lynxx/internal/middleware"
	"lynxx/internal/models"
	"lynxx/internal/repository"
	"lynxx/pkg/cloudinary"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type MediaHandler struct {
	mediaRepo *repository.MediaRepository
	ledger    *ledger.Service
	uploader  cloudinary.Client
}

func NewMediaHandler(mediaRepo *repository.MediaRepository, ldg *ledger.Service, uploader cloudinary.Client) *MediaHandler {
	return &MediaHandler{mediaRepo: mediaRepo, ledger: ldg, uploader: uploader}
}

// Upload stores a profile media item. Earner only; locked items need a
// credit unlock before seekers can view them.
func (h *MediaHandler) Upload(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if role, _ := c.Get("role"); role != domain.RoleEarner {
		c.JSON(http.StatusForbidden, gin.H{"error": "earner only"})
		return
	}
	if h.uploader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "media uploads not configured"})
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	locked := c.PostForm("locked") == "true"
	mediaType := "IMAGE"
	if strings.HasPrefix(fileHeader.Header.Get("Content-Type"), "video/") {
		mediaType = "VIDEO"
	}
	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}
	defer f.Close()

	publicID := fmt.Sprintf("earner_%d_%d", userID, time.Now().UnixNano())
	var url, thumb string
	if mediaType == "VIDEO" {
		url, thumb, err = h.uploader.UploadVideo(c.Request.Context(), f, "earner_media", publicID)
	} else {
		url, thumb, err = h.uploader.UploadImage(c.Request.Context(), f, "earner_media", publicID)
	}
	if err != nil {
		log.Printf("[media] upload failed: user=%d err=%v", userID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "upload failed"})
		return
	}
	m := &models.EarnerMedia{
		EarnerID:     userID,
		MediaType:    mediaType,
		URL:          url,
		ThumbnailURL: thumb,
		Locked:       locked,
	}
	if err := h.mediaRepo.Create(m); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save media"})
		return
	}
	c.JSON(http.StatusCreated, m)
}

// List returns an earner's media. Locked items show only the thumbnail
// unless the viewer has paid to unlock them (or owns them).
func (h *MediaHandler) List(c *gin.Context) {
	viewerID := middleware.GetUserID(c)
	earnerID, err := strconv.ParseUint(c.Param("earnerId"), 10, 32)
	if err != nil || earnerID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid earner id"})
		return
	}
	items, err := h.mediaRepo.ListByEarner(uint(earnerID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list media"})
		return
	}
	out := make([]gin.H, 0, len(items))
	for _, m := range items {
		entry := gin.H{
			"id":            m.ID,
			"media_type":    m.MediaType,
			"thumbnail_url": m.ThumbnailURL,
			"locked":        m.Locked,
		}
		visible := !m.Locked || viewerID == m.EarnerID
		if !visible {
			unlocked, err := h.mediaRepo.IsUnlocked(viewerID, m.ID)
			if err == nil && unlocked {
				visible = true
			}
		}
		if visible {
			entry["url"] = m.URL
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"media": out})
}

// Unlock charges the fixed unlock price and grants permanent access. The
// spend and the unlock row commit in the same ledger transaction.
func (h *MediaHandler) Unlock(c *gin.Context) {
	userID := middleware.GetUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid media id"})
		return
	}
	m, err := h.mediaRepo.GetByID(uint(id))
	if err != nil || m == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "media not found"})
		return
	}
	if !m.Locked || m.EarnerID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "media is not locked"})
		return
	}
	if unlocked, err := h.mediaRepo.IsUnlocked(userID, m.ID); err == nil && unlocked {
		c.JSON(http.StatusOK, gin.H{"url": m.URL, "already_unlocked": true})
		return
	}
	ref := fmt.Sprintf("media:%d", m.ID)
	_, err = h.ledger.SpendCreditsWith(userID, domain.SpendReasonMediaUnlock, ref, func(tx *gorm.DB) error {
		return h.mediaRepo.CreateUnlockTx(tx, &models.MediaUnlock{UserID: userID, MediaID: m.ID})
	})
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientBalance) {
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient credits"})
			return
		}
		log.Printf("[media] unlock failed: user=%d media=%d err=%v", userID, m.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unlock failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": m.URL})
}

// Delete removes the caller's own media item.
func (h *MediaHandler) Delete(c *gin.Context) {
	userID := middleware.GetUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid media id"})
		return
	}
	if err := h.mediaRepo.Delete(uint(id), userID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "media not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
