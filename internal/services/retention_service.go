package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/models"
	"gorm.io/gorm"
)

const (
	// fetchLogRetention is how long ingestion logs survive the daily cleanup.
	fetchLogRetention = 30 * 24 * time.Hour
	// Email codes are kept a day past expiry.
	emailCodeRetention = 24 * time.Hour
)

// RetentionService purges articles daily and reading activity monthly.
type RetentionService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRetentionService(db *gorm.DB) *RetentionService {
	return &RetentionService{db: db, now: time.Now}
}

// CleanupDaily deletes every article and zeroes fetch tracking counters. It
// also drops ingestion logs older than 30 days and long-expired email codes.
func (s *RetentionService) CleanupDaily(ctx context.Context) (*dto.DailyCleanupResult, error) {
	var result dto.DailyCleanupResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("1 = 1").Delete(&models.NewsArticle{})
		if res.Error != nil {
			return storageError("delete articles", res.Error)
		}
		result.ArticlesDeleted = res.RowsAffected

		res = tx.Model(&models.FetchTracking{}).Where("1 = 1").Updates(map[string]interface{}{
			"total_fetched":     0,
			"articles_in_batch": 0,
			"current_batch_id":  "",
			"last_next_page":    "",
		})
		if res.Error != nil {
			return storageError("reset fetch tracking", res.Error)
		}
		result.TrackingReset = res.RowsAffected

		cutoff := s.now().Add(-fetchLogRetention).UTC()
		res = tx.Where("fetched_at < ?", cutoff).Delete(&models.FetchLog{})
		if res.Error != nil {
			return storageError("delete fetch logs", res.Error)
		}
		result.FetchLogsDeleted = res.RowsAffected

		res = tx.Where("expires_at < ?", s.now().Add(-emailCodeRetention).UTC()).Delete(&models.EmailCode{})
		if res.Error != nil {
			return storageError("delete email codes", res.Error)
		}
		result.CodesDeleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("daily cleanup completed",
		"articles_deleted", result.ArticlesDeleted,
		"tracking_reset", result.TrackingReset,
		"fetch_logs_deleted", result.FetchLogsDeleted,
		"email_codes_deleted", result.CodesDeleted,
	)
	return &result, nil
}

// CleanupMonthly deletes all reading history and daily stats and resets the
// per-user read and current-streak counters. Longest streaks are kept.
func (s *RetentionService) CleanupMonthly(ctx context.Context) (*dto.MonthlyCleanupResult, error) {
	var result dto.MonthlyCleanupResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("1 = 1").Delete(&models.ReadingHistory{})
		if res.Error != nil {
			return storageError("delete reading history", res.Error)
		}
		result.HistoryDeleted = res.RowsAffected

		res = tx.Where("1 = 1").Delete(&models.DailyReadingStat{})
		if res.Error != nil {
			return storageError("delete daily stats", res.Error)
		}
		result.StatsDeleted = res.RowsAffected

		res = tx.Model(&models.UserProfile{}).Where("1 = 1").Updates(map[string]interface{}{
			"total_articles_read": 0,
			"current_streak":      0,
		})
		if res.Error != nil {
			return storageError("reset profile counters", res.Error)
		}
		result.ProfilesReset = res.RowsAffected
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("monthly cleanup completed",
		"history_deleted", result.HistoryDeleted,
		"stats_deleted", result.StatsDeleted,
		"profiles_reset", result.ProfilesReset,
	)
	return &result, nil
}
