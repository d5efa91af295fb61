package dto

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/models"
	"github.com/google/uuid"
)

type ReadArticleRequest struct {
	TimeSpent int `json:"time_spent"`
}

type ReadingResult struct {
	CoinsEarned       int64 `json:"coins_earned"`
	ArticlesReadToday int   `json:"articles_read_today"`
	StreakBonus       int64 `json:"streak_bonus"`
	CurrentStreak     int   `json:"current_streak"`
}

type StreakResult struct {
	CurrentStreak int   `json:"current_streak"`
	LongestStreak int   `json:"longest_streak"`
	BonusGranted  int64 `json:"bonus_granted"`
}

type WalletResponse struct {
	AvailableCoins   int64 `json:"available_coins"`
	TotalEarned      int64 `json:"total_earned"`
	TotalRedeemed    int64 `json:"total_redeemed"`
	ReferralEarnings int64 `json:"referral_earnings"`
}

type ReferralStats struct {
	TotalReferrals  int   `json:"total_referrals"`
	ActiveReferrals int64 `json:"active_referrals"`
	PendingBonuses  int64 `json:"pending_bonuses"`
	TotalCommission int64 `json:"total_commission"`
}

type ProfileResponse struct {
	User              UserResponse   `json:"user"`
	Wallet            WalletResponse `json:"wallet"`
	Referrals         ReferralStats  `json:"referrals"`
	TotalArticlesRead int            `json:"total_articles_read"`
	CurrentStreak     int            `json:"current_streak"`
	LongestStreak     int            `json:"longest_streak"`
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

func NewPagination(page, limit int, total int64) Pagination {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

type TransactionsResponse struct {
	Transactions []models.CoinTransaction `json:"transactions"`
	Pagination   Pagination               `json:"pagination"`
}

type LoginHistoryResponse struct {
	TotalLogins  int64                 `json:"total_logins"`
	LoginHistory []models.LoginHistory `json:"login_history"`
}

type ReferredUser struct {
	ReferralID       uuid.UUID `json:"referral_id"`
	Email            string    `json:"email"`
	FullName         string    `json:"full_name"`
	Status           string    `json:"status"`
	SignupBonusGiven bool      `json:"signup_bonus_given"`
	ReferrerBonus    int64     `json:"referrer_bonus_coins"`
	Commission       int64     `json:"lifetime_commission"`
	ReferredAt       time.Time `json:"referred_at"`
}

type ReferralsResponse struct {
	ReferralCode string         `json:"referral_code"`
	Stats        ReferralStats  `json:"stats"`
	Referrals    []ReferredUser `json:"referrals"`
}

type HistoryItem struct {
	ArticleID   string     `json:"article_id"`
	Title       string     `json:"title"`
	Category    string     `json:"category"`
	ImageURL    string     `json:"image_url"`
	Description string     `json:"description"`
	Link        string     `json:"link"`
	Source      string     `json:"source"`
	TimeSpent   int        `json:"time_spent"`
	CoinsEarned int64      `json:"coins_earned"`
	IsCompleted bool       `json:"is_completed"`
	ReadingDate string     `json:"reading_date"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type ReadingStatsResponse struct {
	Wallet            WalletResponse `json:"wallet"`
	TotalArticlesRead int            `json:"total_articles_read"`
	CurrentStreak     int            `json:"current_streak"`
	LongestStreak     int            `json:"longest_streak"`
	TodayArticles     int            `json:"today_articles"`
	TodayCoins        int64          `json:"today_coins"`
	RecentHistory     []HistoryItem  `json:"recent_history"`
}

type GrantReferrerBonusRequest struct {
	Amount int64 `json:"amount"`
}
