package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type NewsArticle struct {
	ID           uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	ArticleID    string                      `gorm:"size:100;not null;uniqueIndex" json:"article_id"`
	Title        string                      `gorm:"type:text;not null" json:"title"`
	Description  string                      `gorm:"type:text" json:"description"`
	Link         string                      `gorm:"type:text" json:"link"`
	Content      string                      `gorm:"type:text" json:"content"`
	ImageURL     string                      `gorm:"type:text" json:"image_url"`
	VideoURL     string                      `gorm:"type:text" json:"video_url"`
	SourceID     string                      `gorm:"size:100" json:"source_id"`
	SourceName   string                      `gorm:"size:255" json:"source_name"`
	SourceURL    string                      `gorm:"type:text" json:"source_url"`
	SourceIcon   string                      `gorm:"type:text" json:"source_icon"`
	Creator      datatypes.JSONSlice[string] `json:"creator"`
	Keywords     datatypes.JSONSlice[string] `json:"keywords"`
	Country      datatypes.JSONSlice[string] `json:"country"`
	Category     string                      `gorm:"size:50;not null;index:idx_news_category_pub" json:"category"`
	Language     string                      `gorm:"size:30" json:"language"`
	PubDate      time.Time                   `gorm:"index:idx_news_category_pub" json:"pub_date"`
	FetchedAt    time.Time                   `gorm:"not null" json:"fetched_at"`
	ViewCount    int                         `gorm:"not null;default:0" json:"view_count"`
	ReadCount    int                         `gorm:"not null;default:0" json:"read_count"`
	CoinsReward  int64                       `gorm:"not null;default:10" json:"coins_reward"`
	IsActive     bool                        `gorm:"not null;default:true;index" json:"is_active"`
	FetchBatchID string                      `gorm:"size:64;index" json:"fetch_batch_id"`
	PageNumber   int                         `gorm:"not null;default:1" json:"page_number"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

func (a *NewsArticle) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// FetchTracking is advisory per-category ingestion bookkeeping.
type FetchTracking struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Category        string     `gorm:"size:50;not null;uniqueIndex" json:"category"`
	LastFetchTime   *time.Time `json:"last_fetch_time"`
	LastNextPage    string     `gorm:"type:text" json:"last_next_page"`
	TotalFetched    int        `gorm:"not null;default:0" json:"total_fetched"`
	CurrentBatchID  string     `gorm:"size:64" json:"current_batch_id"`
	ArticlesInBatch int        `gorm:"not null;default:0" json:"articles_in_batch"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (t *FetchTracking) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

const (
	FetchSuccess = "success"
	FetchFailed  = "failed"
)

// FetchLog records one provider request attempt.
type FetchLog struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Category        string    `gorm:"size:50;not null;index" json:"category"`
	BatchID         string    `gorm:"size:64" json:"batch_id"`
	RequestNumber   int       `gorm:"not null" json:"request_number"`
	ArticlesFetched int       `gorm:"not null;default:0" json:"articles_fetched"`
	NextPageToken   string    `gorm:"type:text" json:"next_page_token"`
	ResponseTimeMs  int64     `json:"response_time_ms"`
	Status          string    `gorm:"size:20;not null" json:"status"`
	ErrorMessage    string    `gorm:"type:text" json:"error_message,omitempty"`
	FetchedAt       time.Time `gorm:"not null;index" json:"fetched_at"`
}

func (l *FetchLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
