package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// streakWindowDays is how many days before today are consulted.
const streakWindowDays = 7

type StreakService struct {
	db        *gorm.DB
	milestone int
	bonus     int64
	loc       *time.Location
	now       func() time.Time
}

func NewStreakService(db *gorm.DB, cfg *config.Config) *StreakService {
	return &StreakService{
		db:        db,
		milestone: cfg.StreakMilestone,
		bonus:     int64(cfg.StreakBonus),
		loc:       cfg.Location(),
		now:       time.Now,
	}
}

// EvaluateStreak recomputes the user's streak in its own transaction.
func (s *StreakService) EvaluateStreak(ctx context.Context, userID uuid.UUID) (*dto.StreakResult, error) {
	var result *dto.StreakResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.evaluate(tx, userID, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// evaluate derives the streak from daily stats, persists it on the profile and
// grants the milestone bonus once per run.
func (s *StreakService) evaluate(tx *gorm.DB, userID uuid.UUID, now time.Time) (*dto.StreakResult, error) {
	today := day(now, s.loc)
	from := day(now.AddDate(0, 0, -streakWindowDays), s.loc)

	var days []string
	err := tx.Model(&models.DailyReadingStat{}).
		Where("user_id = ? AND reading_date >= ? AND reading_date <= ?", userID, from, today).
		Order("reading_date DESC").
		Pluck("reading_date", &days).Error
	if err != nil {
		return nil, storageError("load daily stats", err)
	}

	streak, err := consecutiveDays(days)
	if err != nil {
		return nil, err
	}

	err = tx.Model(&models.UserProfile{}).Where("user_id = ?", userID).Updates(map[string]interface{}{
		"current_streak": streak,
		"longest_streak": gorm.Expr("CASE WHEN longest_streak < ? THEN ? ELSE longest_streak END", streak, streak),
	}).Error
	if err != nil {
		return nil, storageError("update streak", err)
	}

	result := &dto.StreakResult{CurrentStreak: streak}
	if streak > 0 && streak == s.milestone && s.bonus > 0 {
		anchor := days[0]
		res := tx.Model(&models.UserProfile{}).
			Where("user_id = ? AND COALESCE(last_streak_bonus_day, '') <> ?", userID, anchor).
			Update("last_streak_bonus_day", anchor)
		if res.Error != nil {
			return nil, storageError("mark streak bonus", res.Error)
		}
		if res.RowsAffected == 1 {
			_, err := postEntry(tx, ledgerEntry{
				UserID:      userID,
				Type:        models.TxBonus,
				Source:      models.SourceDailyStreak,
				Description: fmt.Sprintf("%d-day reading streak bonus", streak),
				Amount:      s.bonus,
			}, walletCounters{Earned: s.bonus})
			if err != nil {
				return nil, err
			}
			result.BonusGranted = s.bonus
			slog.Info("streak bonus granted", "user_id", userID.String(), "streak", streak, "coins", s.bonus)
		}
	}

	var profile models.UserProfile
	if err := tx.Select("longest_streak").First(&profile, "user_id = ?", userID).Error; err == nil {
		result.LongestStreak = profile.LongestStreak
	}
	return result, nil
}

// consecutiveDays counts the run of adjacent days starting at days[0]; days
// must be sorted newest first.
func consecutiveDays(days []string) (int, error) {
	if len(days) == 0 {
		return 0, nil
	}
	streak := 1
	for i := 1; i < len(days); i++ {
		gap, err := daysBetween(days[i-1], days[i])
		if err != nil {
			return 0, err
		}
		if gap != 1 {
			break
		}
		streak++
	}
	return streak, nil
}
