package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const readTitleChars = 50

type RewardService struct {
	db             *gorm.DB
	streak         *StreakService
	minReadSeconds int
	dailyLimit     int
	loc            *time.Location
	now            func() time.Time
}

func NewRewardService(db *gorm.DB, cfg *config.Config, streak *StreakService) *RewardService {
	return &RewardService{
		db:             db,
		streak:         streak,
		minReadSeconds: cfg.MinReadSeconds,
		dailyLimit:     cfg.DailyReadLimit,
		loc:            cfg.Location(),
		now:            time.Now,
	}
}

// RecordReading rewards a completed read of articleID. The whole unit of work
// commits or rolls back together.
func (s *RewardService) RecordReading(ctx context.Context, userID uuid.UUID, articleID string, timeSpent int) (*dto.ReadingResult, error) {
	articleID = strings.TrimSpace(articleID)
	if articleID == "" {
		return nil, validationError("article id is required")
	}
	if timeSpent < 0 {
		return nil, validationError("time spent must not be negative")
	}

	now := s.now()
	today := day(now, s.loc)
	var result dto.ReadingResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var article models.NewsArticle
		if err := tx.Where("article_id = ? AND is_active = ?", articleID, true).First(&article).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrArticleNotFound
			}
			return storageError("load article", err)
		}

		var seen int64
		if err := tx.Model(&models.ReadingHistory{}).
			Where("user_id = ? AND article_external_id = ? AND reading_date = ?", userID, articleID, today).
			Count(&seen).Error; err != nil {
			return storageError("check reading history", err)
		}
		if seen > 0 {
			return ErrAlreadyRewardedToday
		}

		if s.dailyLimit > 0 {
			var readToday int64
			if err := tx.Model(&models.DailyReadingStat{}).
				Where("user_id = ? AND reading_date = ?", userID, today).
				Select("COALESCE(SUM(articles_read), 0)").Scan(&readToday).Error; err != nil {
				return storageError("check daily limit", err)
			}
			if readToday >= int64(s.dailyLimit) {
				return ErrDailyLimitReached
			}
		}

		completed := timeSpent >= s.minReadSeconds
		var coins int64
		if completed {
			coins = article.CoinsReward
		}

		history := models.ReadingHistory{
			UserID:            userID,
			NewsArticleID:     &article.ID,
			ArticleExternalID: article.ArticleID,
			ArticleTitle:      article.Title,
			ArticleCategory:   article.Category,
			ArticleImage:      article.ImageURL,
			ArticleDesc:       article.Description,
			ArticleLink:       article.Link,
			ArticleSource:     article.SourceName,
			StartedAt:         now.Add(-time.Duration(timeSpent) * time.Second).UTC(),
			TimeSpent:         timeSpent,
			CoinsEarned:       coins,
			IsCompleted:       completed,
			ReadingDate:       today,
		}
		if completed {
			done := now.UTC()
			history.CompletedAt = &done
		}
		if err := tx.Create(&history).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return ErrAlreadyRewardedToday
			}
			return storageError("insert reading history", err)
		}

		if err := tx.Model(&models.NewsArticle{}).Where("id = ?", article.ID).
			UpdateColumn("read_count", gorm.Expr("read_count + 1")).Error; err != nil {
			return storageError("increment read count", err)
		}

		if coins > 0 {
			if _, err := postEntry(tx, ledgerEntry{
				UserID:      userID,
				Type:        models.TxEarned,
				Source:      models.SourceArticleRead,
				Description: "Read: " + truncate(article.Title, readTitleChars),
				Amount:      coins,
			}, walletCounters{Earned: coins}); err != nil {
				return err
			}
			if err := tx.Model(&models.UserProfile{}).Where("user_id = ?", userID).
				Update("total_articles_read", gorm.Expr("total_articles_read + 1")).Error; err != nil {
				return storageError("increment articles read", err)
			}
		}

		stat := models.DailyReadingStat{
			UserID:       userID,
			ReadingDate:  today,
			ArticlesRead: 1,
			CoinsEarned:  coins,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "reading_date"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"articles_read": gorm.Expr("daily_reading_stats.articles_read + 1"),
				"coins_earned":  gorm.Expr("daily_reading_stats.coins_earned + ?", coins),
				"updated_at":    now.UTC(),
			}),
		}).Create(&stat).Error; err != nil {
			return storageError("upsert daily stat", err)
		}

		var current models.DailyReadingStat
		if err := tx.Select("articles_read").
			First(&current, "user_id = ? AND reading_date = ?", userID, today).Error; err != nil {
			return storageError("reload daily stat", err)
		}

		streak, err := s.streak.evaluate(tx, userID, now)
		if err != nil {
			return err
		}

		result = dto.ReadingResult{
			CoinsEarned:       coins,
			ArticlesReadToday: current.ArticlesRead,
			StreakBonus:       streak.BonusGranted,
			CurrentStreak:     streak.CurrentStreak,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("reading recorded",
		"user_id", userID.String(),
		"article_id", articleID,
		"time_spent", timeSpent,
		"coins", result.CoinsEarned,
		"streak_bonus", result.StreakBonus,
	)
	return &result, nil
}
