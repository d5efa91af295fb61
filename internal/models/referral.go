package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ReferralPending  = "pending"
	ReferralActive   = "active"
	ReferralInactive = "inactive"
)

// Referral links a referrer to the user they brought in. A user can be
// referred at most once. SignupBonusCoins is what the referred user received
// at registration; ReferrerBonusCoins and SignupBonusGiven track the one-time
// referrer credit.
type Referral struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ReferrerID         uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_referrals_pair" json:"referrer_id"`
	ReferredID         uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_referrals_pair;uniqueIndex:idx_referrals_referred" json:"referred_id"`
	ReferralCode       string     `gorm:"size:8;not null" json:"referral_code"`
	SignupBonusCoins   int64      `gorm:"not null;default:0" json:"signup_bonus_coins"`
	ReferrerBonusCoins int64      `gorm:"not null;default:0" json:"referrer_bonus_coins"`
	SignupBonusGiven   bool       `gorm:"not null;default:false" json:"signup_bonus_given"`
	LifetimeCommission int64      `gorm:"not null;default:0" json:"lifetime_commission"`
	Status             string     `gorm:"size:20;not null;default:'pending';index" json:"status"`
	ReferredAt         time.Time  `gorm:"not null" json:"referred_at"`
	FirstActivityAt    *time.Time `json:"first_activity_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (r *Referral) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
