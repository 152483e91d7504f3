package repository

import (
	"time"

	"lynxx/internal/domain"
	"lynxx/internal/models"

	"gorm.io/gorm"
)

type VideoDateRepository struct {
	db *gorm.DB
}

func NewVideoDateRepository(db *gorm.DB) *VideoDateRepository {
	return &VideoDateRepository{db: db}
}

func (r *VideoDateRepository) Create(d *models.VideoDate) error {
	return r.db.Create(d).Error
}

func (r *VideoDateRepository) GetByID(id uint) (*models.VideoDate, error) {
	var d models.VideoDate
	err := r.db.First(&d, id).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *VideoDateRepository) GetByIDTx(tx *gorm.DB, id uint) (*models.VideoDate, error) {
	var d models.VideoDate
	err := tx.First(&d, id).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// AttachRoom schedules a pending date with its provisioned room. The
// conditional match keeps a date cancelled during provisioning cancelled.
func (r *VideoDateRepository) AttachRoom(id uint, roomName, roomURL string) (bool, error) {
	res := r.db.Model(&models.VideoDate{}).
		Where("id = ? AND status = ?", id, domain.DateStatusPending).
		Updates(map[string]interface{}{
			"status":    domain.DateStatusScheduled,
			"room_name": roomName,
			"room_url":  roomURL,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// StampJoin sets a participant's join timestamp only while the date is in
// its grace window. A row already cancelled or settled is never touched.
func (r *VideoDateRepository) StampJoin(id uint, column string, at time.Time) (bool, error) {
	res := r.db.Model(&models.VideoDate{}).
		Where("id = ? AND status = ? AND "+column+" IS NULL", id, domain.DateStatusWaiting).
		Update(column, at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Transition flips status outside any caller transaction.
func (r *VideoDateRepository) Transition(id uint, from []string, to string) (bool, error) {
	return r.TransitionTx(r.db, id, from, to)
}

// TransitionTx flips status only when the row still holds one of the
// expected source states, so concurrent sweeps and user actions cannot
// both claim the same transition.
func (r *VideoDateRepository) TransitionTx(tx *gorm.DB, id uint, from []string, to string) (bool, error) {
	res := tx.Model(&models.VideoDate{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *VideoDateRepository) ListByParticipant(userID uint, limit, offset int) ([]models.VideoDate, error) {
	var list []models.VideoDate
	err := r.db.Where("seeker_id = ? OR earner_id = ?", userID, userID).
		Order("scheduled_start DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

// ListDueForWaiting returns scheduled dates whose start time has arrived.
func (r *VideoDateRepository) ListDueForWaiting(now time.Time, limit int) ([]models.VideoDate, error) {
	var list []models.VideoDate
	err := r.db.Where("status = ? AND scheduled_start <= ?", domain.DateStatusScheduled, now).
		Limit(limit).Find(&list).Error
	return list, err
}

// ListPastGrace returns waiting dates whose grace window closed without
// both parties joining.
func (r *VideoDateRepository) ListPastGrace(now time.Time, grace time.Duration, limit int) ([]models.VideoDate, error) {
	var list []models.VideoDate
	err := r.db.Where("status = ? AND scheduled_start <= ?", domain.DateStatusWaiting, now.Add(-grace)).
		Limit(limit).Find(&list).Error
	return list, err
}

// ListOverrun returns in-progress dates whose scheduled duration elapsed.
func (r *VideoDateRepository) ListOverrun(now time.Time, limit int) ([]models.VideoDate, error) {
	var list []models.VideoDate
	err := r.db.Where("status = ?", domain.DateStatusInProgress).Limit(limit).Find(&list).Error
	if err != nil {
		return nil, err
	}
	out := list[:0]
	for _, d := range list {
		if !d.ScheduledEnd().After(now) {
			out = append(out, d)
		}
	}
	return out, nil
}
