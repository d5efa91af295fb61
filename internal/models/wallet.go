package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TxEarned   = "earned"
	TxBonus    = "bonus"
	TxRedeemed = "redeemed"
	TxRefund   = "refund"

	SourceArticleRead      = "article_read"
	SourceSignupBonus      = "signup_bonus"
	SourceDailyStreak      = "daily_streak"
	SourceReferralEarnings = "referral_earnings"
	SourceGiftCard         = "gift_card"
	SourceRedeemRejected   = "redeem_rejected"
)

// Wallet is one-to-one with User. AvailableCoins is guarded by a store-level
// check constraint.
type Wallet struct {
	UserID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	AvailableCoins   int64     `gorm:"not null;default:0;check:chk_wallets_available_coins,available_coins >= 0" json:"available_coins"`
	TotalEarned      int64     `gorm:"not null;default:0" json:"total_earned"`
	TotalRedeemed    int64     `gorm:"not null;default:0" json:"total_redeemed"`
	ReferralEarnings int64     `gorm:"not null;default:0" json:"referral_earnings"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CoinTransaction is an append-only ledger entry.
type CoinTransaction struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;index:idx_coin_tx_user_created" json:"user_id"`
	Type         string    `gorm:"size:20;not null" json:"type"`
	Amount       int64     `gorm:"not null" json:"amount"`
	BalanceAfter int64     `gorm:"not null" json:"balance_after"`
	Source       string    `gorm:"size:50;not null;index" json:"source"`
	Description  string    `gorm:"size:255" json:"description"`
	CreatedAt    time.Time `gorm:"index:idx_coin_tx_user_created" json:"created_at"`
}

func (t *CoinTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
