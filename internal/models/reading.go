package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DateLayout is the storage format of reading days.
const DateLayout = "2006-01-02"

// ReadingHistory keeps a snapshot of the article so rows stay meaningful after
// the article is purged. NewsArticleID is deliberately not a foreign key.
type ReadingHistory struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_reading_user_article_day" json:"user_id"`
	NewsArticleID     *uuid.UUID `gorm:"type:uuid" json:"news_article_id,omitempty"`
	ArticleExternalID string     `gorm:"size:100;not null;uniqueIndex:idx_reading_user_article_day" json:"article_id"`
	ArticleTitle      string     `gorm:"type:text" json:"article_title"`
	ArticleCategory   string     `gorm:"size:50" json:"article_category"`
	ArticleImage      string     `gorm:"type:text" json:"article_image"`
	ArticleDesc       string     `gorm:"type:text" json:"article_description"`
	ArticleLink       string     `gorm:"type:text" json:"article_link"`
	ArticleSource     string     `gorm:"size:255" json:"article_source"`
	StartedAt         time.Time  `gorm:"not null" json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	TimeSpent         int        `gorm:"not null;default:0" json:"time_spent"`
	CoinsEarned       int64      `gorm:"not null;default:0" json:"coins_earned"`
	IsCompleted       bool       `gorm:"not null;default:false" json:"is_completed"`
	ReadingDate       string     `gorm:"size:10;not null;uniqueIndex:idx_reading_user_article_day;index" json:"reading_date"`
	CreatedAt         time.Time  `json:"created_at"`
}

func (r *ReadingHistory) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

type DailyReadingStat struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_daily_stats_user_day" json:"user_id"`
	ReadingDate  string    `gorm:"size:10;not null;uniqueIndex:idx_daily_stats_user_day" json:"reading_date"`
	ArticlesRead int       `gorm:"not null;default:0" json:"articles_read"`
	CoinsEarned  int64     `gorm:"not null;default:0" json:"coins_earned"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (s *DailyReadingStat) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
