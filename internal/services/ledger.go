package services

import (
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ledgerEntry is one wallet mutation. Amount is signed: negative entries are
// debits and only apply when the balance covers them.
type ledgerEntry struct {
	UserID      uuid.UUID
	Type        string
	Source      string
	Description string
	Amount      int64
}

// walletCounters are the lifetime totals moved together with available_coins.
type walletCounters struct {
	Earned   int64
	Redeemed int64
	Referral int64
}

// postEntry applies e to the user's wallet and appends the matching
// CoinTransaction inside tx. It never touches a wallet outside tx.
func postEntry(tx *gorm.DB, e ledgerEntry, c walletCounters) (*models.CoinTransaction, error) {
	if e.Amount == 0 {
		return nil, validationError("ledger entry amount must be non-zero")
	}
	if err := ensureWallet(tx, e.UserID); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"available_coins": gorm.Expr("available_coins + ?", e.Amount),
	}
	if c.Earned != 0 {
		updates["total_earned"] = gorm.Expr("total_earned + ?", c.Earned)
	}
	if c.Redeemed != 0 {
		updates["total_redeemed"] = gorm.Expr("total_redeemed + ?", c.Redeemed)
	}
	if c.Referral != 0 {
		updates["referral_earnings"] = gorm.Expr("referral_earnings + ?", c.Referral)
	}

	q := tx.Model(&models.Wallet{}).Where("user_id = ?", e.UserID)
	if e.Amount < 0 {
		q = q.Where("available_coins >= ?", -e.Amount)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		if database.IsCheckViolation(res.Error) {
			return nil, ErrInsufficientBalance
		}
		return nil, storageError("update wallet", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrInsufficientBalance
	}

	var wallet models.Wallet
	if err := tx.Select("available_coins").First(&wallet, "user_id = ?", e.UserID).Error; err != nil {
		return nil, storageError("reload wallet", err)
	}

	entry := models.CoinTransaction{
		UserID:       e.UserID,
		Type:         e.Type,
		Amount:       e.Amount,
		BalanceAfter: wallet.AvailableCoins,
		Source:       e.Source,
		Description:  truncate(e.Description, 255),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, storageError("append coin transaction", err)
	}
	return &entry, nil
}

// ensureWallet creates a zero wallet for userID if none exists.
func ensureWallet(tx *gorm.DB, userID uuid.UUID) error {
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Wallet{UserID: userID}).Error
	if err != nil {
		return storageError("ensure wallet", err)
	}
	return nil
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// day renders t as a calendar day in loc.
func day(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(models.DateLayout)
}

func daysBetween(later, earlier string) (int, error) {
	a, err := time.Parse(models.DateLayout, later)
	if err != nil {
		return 0, fmt.Errorf("parse day %q: %w", later, err)
	}
	b, err := time.Parse(models.DateLayout, earlier)
	if err != nil {
		return 0, fmt.Errorf("parse day %q: %w", earlier, err)
	}
	return int(a.Sub(b).Hours() / 24), nil
}

func pageBounds(page, limit, maxLimit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit, (page - 1) * limit
}
