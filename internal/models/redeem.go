package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RedeemPending   = "pending"
	RedeemApproved  = "approved"
	RedeemRejected  = "rejected"
	RedeemCompleted = "completed"
)

type GiftCard struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string    `gorm:"size:255;not null" json:"name"`
	Brand         string    `gorm:"size:100;not null" json:"brand"`
	Description   string    `gorm:"type:text" json:"description"`
	ImageURL      string    `gorm:"type:text" json:"image_url"`
	Value         int64     `gorm:"not null" json:"value"`
	CoinsRequired int64     `gorm:"not null" json:"coins_required"`
	IsActive      bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (g *GiftCard) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// RedeemRequest snapshots the user and card at request time. Coins are debited
// when the row is created.
type RedeemRequest struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	GiftCardID    uuid.UUID  `gorm:"type:uuid;not null" json:"gift_card_id"`
	UserName      string     `gorm:"size:255" json:"user_name"`
	UserEmail     string     `gorm:"size:255;not null" json:"user_email"`
	DeliveryEmail string     `gorm:"size:255;not null" json:"delivery_email"`
	CardName      string     `gorm:"size:255;not null" json:"card_name"`
	CardBrand     string     `gorm:"size:100" json:"card_brand"`
	CardValue     int64      `gorm:"not null" json:"card_value"`
	CoinsRedeemed int64      `gorm:"not null" json:"coins_redeemed"`
	Status        string     `gorm:"size:20;not null;default:'pending';index" json:"status"`
	GiftCode      *string    `gorm:"size:255" json:"gift_code,omitempty"`
	AdminNotes    *string    `gorm:"type:text" json:"admin_notes,omitempty"`
	ProcessedBy   *uuid.UUID `gorm:"type:uuid" json:"processed_by,omitempty"`
	RequestedAt   time.Time  `gorm:"not null;index" json:"requested_at"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (r *RedeemRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
