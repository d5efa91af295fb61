package news

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/services"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const recentFetchLogs = 50

// ArticleService serves the article read paths. Every call hits the store.
type ArticleService struct {
	db  *gorm.DB
	loc *time.Location
	now func() time.Time
}

func NewArticleService(db *gorm.DB, loc *time.Location) *ArticleService {
	return &ArticleService{db: db, loc: loc, now: time.Now}
}

// ListArticles pages through active articles of category, newest first. When
// viewer is set, articles the viewer already read today are left out.
func (s *ArticleService) ListArticles(ctx context.Context, category string, viewer *uuid.UUID, page, limit int) (*dto.ArticleListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		category = CategoryAll
	}

	q := s.db.WithContext(ctx).Model(&models.NewsArticle{}).Where("is_active = ?", true)
	if category != CategoryAll {
		q = q.Where("category = ?", category)
	}
	if viewer != nil {
		readToday := s.db.Model(&models.ReadingHistory{}).
			Select("article_external_id").
			Where("user_id = ? AND reading_date = ?", *viewer, s.now().In(s.loc).Format(models.DateLayout))
		q = q.Where("article_id NOT IN (?)", readToday)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count articles: %w: %w", services.ErrStorage, err)
	}
	articles := []models.NewsArticle{}
	if err := q.Order("pub_date DESC").Limit(limit).Offset((page - 1) * limit).Find(&articles).Error; err != nil {
		return nil, fmt.Errorf("list articles: %w: %w", services.ErrStorage, err)
	}

	return &dto.ArticleListResponse{
		Articles:   articles,
		Category:   category,
		Pagination: dto.NewPagination(page, limit, total),
	}, nil
}

// GetArticle loads an active article by external id and counts the view.
func (s *ArticleService) GetArticle(ctx context.Context, articleID string) (*models.NewsArticle, error) {
	var article models.NewsArticle
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.NewsArticle{}).
			Where("article_id = ? AND is_active = ?", articleID, true).
			UpdateColumn("view_count", gorm.Expr("view_count + 1"))
		if res.Error != nil {
			return fmt.Errorf("count view: %w: %w", services.ErrStorage, res.Error)
		}
		if res.RowsAffected == 0 {
			return services.ErrArticleNotFound
		}
		return tx.Where("article_id = ?", articleID).First(&article).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrArticleNotFound
		}
		return nil, err
	}
	return &article, nil
}

// FetchStats summarizes ingestion state for admins.
func (s *ArticleService) FetchStats(ctx context.Context) (*dto.FetchStatsResponse, error) {
	db := s.db.WithContext(ctx)
	stats := &dto.FetchStatsResponse{
		Tracking:   []models.FetchTracking{},
		RecentLogs: []models.FetchLog{},
		Categories: []dto.CategoryCount{},
	}

	if err := db.Order("category").Find(&stats.Tracking).Error; err != nil {
		return nil, fmt.Errorf("load fetch tracking: %w: %w", services.ErrStorage, err)
	}
	if err := db.Order("fetched_at DESC").Limit(recentFetchLogs).Find(&stats.RecentLogs).Error; err != nil {
		return nil, fmt.Errorf("load fetch logs: %w: %w", services.ErrStorage, err)
	}

	var counts []struct {
		Category string
		Count    int64
	}
	if err := db.Model(&models.NewsArticle{}).
		Select("category, COUNT(*) AS count").
		Where("is_active = ?", true).
		Group("category").Order("count DESC").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("count categories: %w: %w", services.ErrStorage, err)
	}
	for _, c := range counts {
		entry := dto.CategoryCount{Category: c.Category, Count: c.Count}
		var latest models.NewsArticle
		if err := db.Select("pub_date").Where("category = ? AND is_active = ?", c.Category, true).
			Order("pub_date DESC").Limit(1).Find(&latest).Error; err == nil && !latest.PubDate.IsZero() {
			pub := latest.PubDate
			entry.LatestPubDate = &pub
		}
		stats.Categories = append(stats.Categories, entry)
	}
	return stats, nil
}
