package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ProviderEmail  = "email"
	ProviderGoogle = "google"

	RoleUser  = "user"
	RoleAdmin = "admin"

	AccountActive    = "active"
	AccountSuspended = "suspended"
)

// User is the identity anchor. It is never hard-deleted; AccountStatus carries
// suspension.
type User struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Email          string     `gorm:"not null;size:255;uniqueIndex" json:"email"`
	PasswordHash   *string    `gorm:"size:255" json:"-"`
	LoginProvider  string     `gorm:"size:20;not null;default:'email'" json:"login_provider"`
	GoogleID       *string    `gorm:"size:255;uniqueIndex" json:"-"`
	EmailVerified  bool       `gorm:"not null;default:false" json:"email_verified"`
	ReferralCode   string     `gorm:"size:8;not null;uniqueIndex" json:"referral_code"`
	ReferredByCode *string    `gorm:"size:8" json:"referred_by_code,omitempty"`
	Role           string     `gorm:"size:20;not null;default:'user'" json:"role"`
	AccountStatus  string     `gorm:"size:20;not null;default:'active'" json:"account_status"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// UserProfile holds display data and the reading/referral aggregates.
type UserProfile struct {
	UserID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	FullName           string    `gorm:"size:255" json:"full_name"`
	Gender             string    `gorm:"size:10" json:"gender,omitempty"`
	Age                *int      `json:"age,omitempty"`
	Phone              *string   `gorm:"size:20;uniqueIndex" json:"phone,omitempty"`
	ProfileImage       string    `gorm:"type:text" json:"profile_image,omitempty"`
	TotalReferrals     int       `gorm:"not null;default:0" json:"total_referrals"`
	TotalArticlesRead  int       `gorm:"not null;default:0" json:"total_articles_read"`
	CurrentStreak      int       `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak      int       `gorm:"not null;default:0" json:"longest_streak"`
	LastStreakBonusDay string    `gorm:"size:10" json:"-"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
