package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	CodeEmailVerification = "email_verification"
	CodePasswordReset     = "password_reset"
)

// EmailCode is a one-time code mailed to a user. Only the SHA-256 of the code
// is stored. At most one unused code per user and purpose is live at a time.
type EmailCode struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_email_codes_user_purpose" json:"user_id"`
	Purpose   string     `gorm:"size:30;not null;index:idx_email_codes_user_purpose" json:"purpose"`
	CodeHash  string     `gorm:"size:64;not null" json:"-"`
	Attempts  int        `gorm:"not null;default:0" json:"-"`
	ExpiresAt time.Time  `gorm:"not null;index" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (EmailCode) TableName() string { return "email_verifications" }

func (c *EmailCode) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
