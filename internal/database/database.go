package database

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func Connect(cfg *config.Config) error {
	var err error
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	slog.Info("database connected")
	return nil
}

// AllModels lists every table owned by the service, in creation order.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.UserProfile{},
		&models.Wallet{},
		&models.CoinTransaction{},
		&models.Referral{},
		&models.RefreshToken{},
		&models.EmailCode{},
		&models.LoginHistory{},
		&models.NewsArticle{},
		&models.FetchTracking{},
		&models.FetchLog{},
		&models.ReadingHistory{},
		&models.DailyReadingStat{},
		&models.GiftCard{},
		&models.RedeemRequest{},
		&models.SystemLog{},
	}
}

// Migrate runs AutoMigrate for all models against db.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func Close() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
