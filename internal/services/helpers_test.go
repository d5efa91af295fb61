package services

import (
	"context"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/notify"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/testutil"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// testNow is noon UTC so day boundaries never shift under the test clock.
var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testutil.Config(t)
	cfg.DailyReadLimit = 0
	return cfg
}

func clock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newStreak(db *gorm.DB, cfg *config.Config, now time.Time) *StreakService {
	s := NewStreakService(db, cfg)
	s.now = clock(now)
	return s
}

func newRewards(db *gorm.DB, cfg *config.Config, now time.Time) *RewardService {
	r := NewRewardService(db, cfg, newStreak(db, cfg, now))
	r.now = clock(now)
	return r
}

type fakeGoogle struct {
	claims *GoogleClaims
	err    error
}

func (f fakeGoogle) VerifyIDToken(context.Context, string) (*GoogleClaims, error) {
	return f.claims, f.err
}

func newAuth(db *gorm.DB, cfg *config.Config, google IDTokenVerifier) *AuthService {
	refs := NewReferralService(db, cfg)
	refs.now = clock(testNow)
	a := NewAuthService(db, cfg, refs, google, notify.LogNotifier{})
	a.now = clock(testNow)
	return a
}

// fixedCodes hands out the given one-time codes in order.
func fixedCodes(codes ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		code := codes[i%len(codes)]
		i++
		return code, nil
	}
}

func seedStats(t *testing.T, db *gorm.DB, userID uuid.UUID, days ...string) {
	t.Helper()
	for _, d := range days {
		stat := models.DailyReadingStat{UserID: userID, ReadingDate: d, ArticlesRead: 1, CoinsEarned: 10}
		if err := db.Create(&stat).Error; err != nil {
			t.Fatalf("seed stat %s: %v", d, err)
		}
	}
}

func daysAgo(n int) string {
	return testNow.AddDate(0, 0, -n).Format(models.DateLayout)
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
