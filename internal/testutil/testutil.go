// Package testutil provides a migrated SQLite-backed store and row fixtures
// for package tests.
package testutil

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config returns the built-in defaults with a test JWT secret and UTC days.
// The process environment is never consulted.
func Config(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.FromDefaults()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.JWTSecret = "test-secret"
	cfg.Timezone = "UTC"
	return cfg
}

// NewDB opens a fresh SQLite database in t.TempDir and migrates every model.
// A single connection is used so transactions serialize the way row locks
// would on postgres.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// CreateUser inserts a user with an empty profile and a zero wallet.
func CreateUser(t *testing.T, db *gorm.DB, email, referralCode string) models.User {
	t.Helper()
	if referralCode == "" {
		referralCode = strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	}
	user := models.User{
		Email:         strings.ToLower(email),
		LoginProvider: models.ProviderEmail,
		ReferralCode:  referralCode,
		Role:          models.RoleUser,
		AccountStatus: models.AccountActive,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	if err := db.Create(&models.UserProfile{UserID: user.ID, FullName: email}).Error; err != nil {
		t.Fatalf("create profile: %v", err)
	}
	if err := db.Create(&models.Wallet{UserID: user.ID}).Error; err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	return user
}

// Fund credits coins through a bonus transaction so the ledger stays
// replayable.
func Fund(t *testing.T, db *gorm.DB, userID uuid.UUID, coins int64) {
	t.Helper()
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Wallet{}).Where("user_id = ?", userID).Updates(map[string]interface{}{
			"available_coins": gorm.Expr("available_coins + ?", coins),
			"total_earned":    gorm.Expr("total_earned + ?", coins),
		}).Error; err != nil {
			return err
		}
		var w models.Wallet
		if err := tx.First(&w, "user_id = ?", userID).Error; err != nil {
			return err
		}
		return tx.Create(&models.CoinTransaction{
			UserID:       userID,
			Type:         models.TxBonus,
			Amount:       coins,
			BalanceAfter: w.AvailableCoins,
			Source:       "test_fixture",
		}).Error
	})
	if err != nil {
		t.Fatalf("fund wallet: %v", err)
	}
}

// CreateArticle inserts an active article with the given external id.
func CreateArticle(t *testing.T, db *gorm.DB, externalID, category string, pubDate time.Time, coins int64) models.NewsArticle {
	t.Helper()
	article := models.NewsArticle{
		ArticleID:    externalID,
		Title:        fmt.Sprintf("Article %s", externalID),
		Description:  "description of " + externalID,
		Link:         "https://example.com/" + externalID,
		SourceName:   "Example",
		Category:     category,
		Language:     "english",
		PubDate:      pubDate.UTC(),
		FetchedAt:    time.Now().UTC(),
		CoinsReward:  coins,
		IsActive:     true,
		FetchBatchID: "fixture",
		PageNumber:   1,
	}
	if err := db.Create(&article).Error; err != nil {
		t.Fatalf("create article %s: %v", externalID, err)
	}
	return article
}

// Wallet reloads the wallet row for userID.
func Wallet(t *testing.T, db *gorm.DB, userID uuid.UUID) models.Wallet {
	t.Helper()
	var w models.Wallet
	if err := db.First(&w, "user_id = ?", userID).Error; err != nil {
		t.Fatalf("load wallet: %v", err)
	}
	return w
}

// Profile reloads the profile row for userID.
func Profile(t *testing.T, db *gorm.DB, userID uuid.UUID) models.UserProfile {
	t.Helper()
	var p models.UserProfile
	if err := db.First(&p, "user_id = ?", userID).Error; err != nil {
		t.Fatalf("load profile: %v", err)
	}
	return p
}

// AssertLedgerBalanced fails the test unless the wallet balance equals the sum
// of the user's transaction amounts.
func AssertLedgerBalanced(t *testing.T, db *gorm.DB, userID uuid.UUID) {
	t.Helper()
	w := Wallet(t, db, userID)
	var sum int64
	if err := db.Model(&models.CoinTransaction{}).Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").Scan(&sum).Error; err != nil {
		t.Fatalf("sum transactions: %v", err)
	}
	if sum != w.AvailableCoins {
		t.Fatalf("ledger drift: wallet=%d sum(transactions)=%d", w.AvailableCoins, sum)
	}
	if w.AvailableCoins < 0 {
		t.Fatalf("negative balance %d", w.AvailableCoins)
	}
}
