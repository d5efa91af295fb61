package dto

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/models"
)

type ArticleListResponse struct {
	Articles   []models.NewsArticle `json:"articles"`
	Category   string               `json:"category"`
	Pagination Pagination           `json:"pagination"`
}

type CategoryCount struct {
	Category      string     `json:"category"`
	Count         int64      `json:"count"`
	LatestPubDate *time.Time `json:"latest_pub_date,omitempty"`
}

type FetchStatsResponse struct {
	Tracking   []models.FetchTracking `json:"tracking"`
	RecentLogs []models.FetchLog      `json:"recent_logs"`
	Categories []CategoryCount        `json:"categories"`
}

type RefreshCategoryRequest struct {
	Category string `json:"category"`
}

type CategorySyncResult struct {
	Category string `json:"category"`
	Fetched  int    `json:"fetched"`
	Saved    int    `json:"saved"`
	Skipped  int    `json:"skipped"`
	Cleaned  int64  `json:"cleaned"`
	Error    string `json:"error,omitempty"`
}

type SyncResult struct {
	Total      int                  `json:"total"`
	Saved      int                  `json:"saved"`
	Skipped    int                  `json:"skipped"`
	Cleaned    int64                `json:"cleaned"`
	Categories []CategorySyncResult `json:"categories"`
	Errors     []string             `json:"errors,omitempty"`
}

type DailyCleanupResult struct {
	ArticlesDeleted  int64 `json:"articles_deleted"`
	TrackingReset    int64 `json:"tracking_reset"`
	FetchLogsDeleted int64 `json:"fetch_logs_deleted"`
	CodesDeleted     int64 `json:"email_codes_deleted"`
}

type MonthlyCleanupResult struct {
	HistoryDeleted int64 `json:"history_deleted"`
	StatsDeleted   int64 `json:"stats_deleted"`
	ProfilesReset  int64 `json:"profiles_reset"`
}
