package models

import (
	"time"

	"lynxx/internal/domain"

	"gorm.io/gorm"
)

// VideoDate is a scheduled paid call. Money fields are computed from the
// earner's rate card at booking time and never recomputed later. The
// reserved credits are either settled to the earner or refunded to the
// seeker, never both and never neither.
type VideoDate struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	SeekerID          uint           `gorm:"not null;index" json:"seeker_id"`
	EarnerID          uint           `gorm:"not null;index" json:"earner_id"`
	CallType          string         `gorm:"size:10;not null" json:"call_type"` // VIDEO | AUDIO
	ScheduledStart    time.Time      `gorm:"not null;index" json:"scheduled_start"`
	DurationMinutes   int            `gorm:"not null" json:"duration_minutes"`
	CreditsReserved   int64          `gorm:"not null" json:"credits_reserved"`
	EarnerCents       int64          `gorm:"not null" json:"earner_cents"`
	PlatformFeeCents  int64          `gorm:"not null" json:"platform_fee_cents"`
	Status            string         `gorm:"size:20;not null;index" json:"status"`
	RoomName          string         `gorm:"size:128" json:"room_name"`
	RoomURL           string         `gorm:"size:512" json:"room_url"`
	SeekerJoinedAt    *time.Time     `json:"seeker_joined_at"`
	EarnerJoinedAt    *time.Time     `json:"earner_joined_at"`
	Refunded          bool           `gorm:"default:false" json:"refunded"`
	CancellationCause string         `gorm:"size:128" json:"cancellation_cause,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`

	Seeker User `gorm:"foreignKey:SeekerID" json:"-"`
	Earner User `gorm:"foreignKey:EarnerID" json:"-"`
}

func (VideoDate) TableName() string {
	return "video_dates"
}

func (d *VideoDate) IsTerminal() bool {
	switch d.Status {
	case domain.DateStatusCompleted, domain.DateStatusCancelled, domain.DateStatusCancelledNoShow:
		return true
	}
	return false
}

func (d *VideoDate) BothJoined() bool {
	return d.SeekerJoinedAt != nil && d.EarnerJoinedAt != nil
}

// GraceDeadline is the last moment both parties may still join.
func (d *VideoDate) GraceDeadline(grace time.Duration) time.Time {
	return d.ScheduledStart.Add(grace)
}

// ScheduledEnd is when the call duration elapses.
func (d *VideoDate) ScheduledEnd() time.Time {
	return d.ScheduledStart.Add(time.Duration(d.DurationMinutes) * time.Minute)
}
