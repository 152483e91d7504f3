package models

import (
	"time"

	"lynxx/internal/domain"

	"gorm.io/gorm"
)

type User struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Username        string         `gorm:"uniqueIndex;size:64;not null;default:''" json:"username"`
	Email           string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash    string         `gorm:"size:255" json:"-"`
	Role            string         `gorm:"size:20;not null;index" json:"role"` // SEEKER | EARNER
	DateOfBirth     *time.Time     `json:"date_of_birth"`
	EmailVerifiedAt *time.Time     `json:"email_verified_at"`
	GoogleID        *string        `gorm:"uniqueIndex;size:255" json:"-"` // nil for email signups (avoids duplicate '' on unique index)
	AvatarURL       string         `gorm:"size:512" json:"avatar_url"`
	FCMToken        string         `gorm:"size:512" json:"-"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`

	EarnerProfile *EarnerProfile `gorm:"foreignKey:UserID" json:"earner_profile,omitempty"`
	Wallet        *Wallet        `gorm:"foreignKey:UserID" json:"wallet,omitempty"`
}

func (u *User) IsEarner() bool { return u.Role == domain.RoleEarner }
func (u *User) IsSeeker() bool { return u.Role == domain.RoleSeeker }

// Age returns age in years from DOB (caller must ensure DOB is set).
func (u *User) Age(t time.Time) int {
	if u.DateOfBirth == nil {
		return 0
	}
	age := t.Year() - u.DateOfBirth.Year()
	if t.YearDay() < u.DateOfBirth.YearDay() {
		age--
	}
	return age
}

type EarnerProfile struct {
	ID                    uint           `gorm:"primaryKey" json:"id"`
	UserID                uint           `gorm:"uniqueIndex;not null" json:"user_id"`
	DisplayName           string         `gorm:"size:100;not null" json:"display_name"`
	Bio                   string         `gorm:"type:text" json:"bio"`
	IsActive              bool           `gorm:"default:true;index" json:"is_active"`
	AcceptNewDates        bool           `gorm:"default:true" json:"accept_new_dates"`
	PayoutAccountID       string         `gorm:"size:255" json:"-"` // connected account at the payment processor
	OnboardingCompletedAt *time.Time     `json:"onboarding_completed_at"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
	DeletedAt             gorm.DeletedAt `gorm:"index" json:"-"`

	User  User       `gorm:"foreignKey:UserID" json:"-"`
	Rates []CallRate `gorm:"foreignKey:EarnerID" json:"rates,omitempty"`
}

func (EarnerProfile) TableName() string {
	return "earner_profiles"
}
