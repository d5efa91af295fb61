package news

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/services"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const paidPlanMarker = "ONLY AVAILABLE IN PAID PLANS"

var providerDateLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// Options tunes a Pipeline.
type Options struct {
	MaxPages      int
	PageDelay     time.Duration
	CategoryDelay time.Duration
	Retention     int
	Categories    []string
	ArticleCoins  int64
	// Location is the zone the provider renders pubDate in.
	Location      *time.Location
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxPages:      cfg.NewsMaxPages,
		PageDelay:     cfg.NewsPageDelay,
		CategoryDelay: cfg.NewsCategoryDelay,
		Retention:     cfg.NewsRetention,
		Categories:    cfg.Categories(),
		ArticleCoins:  int64(cfg.ArticleCoins),
		Location:      cfg.Location(),
	}
}

// Batch is the result of one FetchBatch run.
type Batch struct {
	ID       string
	Category string
	Articles []Article
	Cursor   string
}

// SaveResult counts what SaveArticles did.
type SaveResult struct {
	Saved   int
	Skipped int
}

// Pipeline runs fetch -> save -> prune per category.
type Pipeline struct {
	db      *gorm.DB
	fetcher PageFetcher
	opts    Options
	policy  *bluemonday.Policy
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewPipeline(db *gorm.DB, fetcher PageFetcher, opts Options) *Pipeline {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 5
	}
	if opts.ArticleCoins <= 0 {
		opts.ArticleCoins = 10
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Pipeline{
		db:      db,
		fetcher: fetcher,
		opts:    opts,
		policy:  bluemonday.StrictPolicy(),
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// FetchBatch pulls up to MaxPages pages for category. It stops at the first
// empty page or failure; on failure the pages fetched so far are returned
// together with the error.
func (p *Pipeline) FetchBatch(ctx context.Context, category string) (*Batch, error) {
	batch := &Batch{
		ID:       fmt.Sprintf("%s_%d", category, p.now().UnixMilli()),
		Category: category,
	}
	cursor := ""
	var fetchErr error

	for i := 1; i <= p.opts.MaxPages; i++ {
		page, err := p.fetcher.FetchPage(ctx, category, cursor)
		if err != nil {
			p.logAttempt(ctx, batch.ID, category, i, 0, "", 0, models.FetchFailed, err.Error())
			fetchErr = fmt.Errorf("fetch %s page %d: %w", category, i, err)
			break
		}
		if len(page.Articles) == 0 {
			p.logAttempt(ctx, batch.ID, category, i, 0, page.NextPage, page.Latency, models.FetchFailed, "no articles returned")
			break
		}

		for _, a := range page.Articles {
			a.BatchID = batch.ID
			a.PageNumber = i
			batch.Articles = append(batch.Articles, a)
		}
		cursor = page.NextPage
		p.logAttempt(ctx, batch.ID, category, i, len(page.Articles), cursor, page.Latency, models.FetchSuccess, "")

		if cursor == "" || i == p.opts.MaxPages {
			break
		}
		if err := p.sleep(ctx, p.opts.PageDelay); err != nil {
			fetchErr = fmt.Errorf("fetch %s: %w", category, err)
			break
		}
	}
	batch.Cursor = cursor

	if err := p.updateTracking(ctx, batch); err != nil {
		slog.Error("fetch tracking update failed", "category", category, "error", err)
	}

	slog.Info("news batch fetched", "category", category, "batch_id", batch.ID, "articles", len(batch.Articles))
	return batch, fetchErr
}

// SaveArticles inserts the articles that are not stored yet in one
// transaction. Existing external ids count as skipped.
func (p *Pipeline) SaveArticles(ctx context.Context, articles []Article, category string) (*SaveResult, error) {
	result := &SaveResult{}
	if len(articles) == 0 {
		return result, nil
	}
	fetchedAt := p.now().UTC()

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, a := range articles {
			if strings.TrimSpace(a.ArticleID) == "" {
				result.Skipped++
				continue
			}
			row := p.toModel(a, category, fetchedAt)
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "article_id"}},
				DoNothing: true,
			}).Create(&row)
			if res.Error != nil {
				return fmt.Errorf("insert article %s: %w: %w", a.ArticleID, services.ErrStorage, res.Error)
			}
			if res.RowsAffected == 0 {
				result.Skipped++
				continue
			}
			result.Saved++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("news articles saved", "category", category, "saved", result.Saved, "skipped", result.Skipped)
	return result, nil
}

// PruneCategory keeps the keep most recently published active articles of
// category and deletes the rest.
func (p *Pipeline) PruneCategory(ctx context.Context, category string, keep int) (int64, error) {
	db := p.db.WithContext(ctx)
	if keep < 0 {
		keep = 0
	}
	newest := db.Model(&models.NewsArticle{}).
		Select("id").
		Where("category = ? AND is_active = ?", category, true).
		Order("pub_date DESC").
		Limit(keep)

	q := db.Where("category = ? AND is_active = ?", category, true)
	if keep > 0 {
		q = q.Where("id NOT IN (?)", newest)
	}
	res := q.Delete(&models.NewsArticle{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune %s: %w: %w", category, services.ErrStorage, res.Error)
	}
	if res.RowsAffected > 0 {
		slog.Info("news category pruned", "category", category, "deleted", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

// SyncCategory runs fetch, save and prune for one category.
func (p *Pipeline) SyncCategory(ctx context.Context, category string) (*dto.CategorySyncResult, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return nil, fmt.Errorf("%w: category is required", services.ErrValidation)
	}
	out := &dto.CategorySyncResult{Category: category}

	batch, fetchErr := p.FetchBatch(ctx, category)
	out.Fetched = len(batch.Articles)
	if len(batch.Articles) > 0 {
		saved, err := p.SaveArticles(ctx, batch.Articles, category)
		if err != nil {
			return out, errors.Join(fetchErr, err)
		}
		out.Saved, out.Skipped = saved.Saved, saved.Skipped

		cleaned, err := p.PruneCategory(ctx, category, p.opts.Retention)
		if err != nil {
			return out, errors.Join(fetchErr, err)
		}
		out.Cleaned = cleaned
	}
	return out, fetchErr
}

// SyncAllCategories syncs every configured category. A failing category is
// recorded and the run continues.
func (p *Pipeline) SyncAllCategories(ctx context.Context) (*dto.SyncResult, error) {
	result := &dto.SyncResult{Categories: []dto.CategorySyncResult{}}
	start := p.now()
	slog.Info("news sync started", "categories", len(p.opts.Categories))

	for i, category := range p.opts.Categories {
		cat, err := p.SyncCategory(ctx, category)
		if cat != nil {
			result.Total += cat.Fetched
			result.Saved += cat.Saved
			result.Skipped += cat.Skipped
			result.Cleaned += cat.Cleaned
		} else {
			cat = &dto.CategorySyncResult{Category: category}
		}
		if err != nil {
			cat.Error = err.Error()
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", category, err))
			slog.Warn("news category sync failed", "category", category, "error", err)
		}
		result.Categories = append(result.Categories, *cat)

		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if i < len(p.opts.Categories)-1 {
			if err := p.sleep(ctx, p.opts.CategoryDelay); err != nil {
				return result, err
			}
		}
	}

	slog.Info("news sync finished",
		"total", result.Total,
		"saved", result.Saved,
		"skipped", result.Skipped,
		"cleaned", result.Cleaned,
		"errors", len(result.Errors),
		"duration_ms", p.now().Sub(start).Milliseconds(),
	)
	return result, nil
}

// toModel maps a provider article to a row. The category comes from the
// article's own first tag when present, otherwise from the requested one.
func (p *Pipeline) toModel(a Article, requested string, fetchedAt time.Time) models.NewsArticle {
	category := requested
	for _, c := range a.Category {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			category = c
			break
		}
	}

	title := p.clean(a.Title)
	if title == "" {
		title = "Untitled"
	}
	description := p.clean(a.Description)
	content := p.clean(a.Content)
	if content == "" || strings.Contains(content, paidPlanMarker) {
		content = description
	}
	source := strings.TrimSpace(a.SourceName)
	if source == "" {
		source = "Unknown"
	}
	language := a.Language
	if language == "" {
		language = "english"
	}
	page := a.PageNumber
	if page <= 0 {
		page = 1
	}

	return models.NewsArticle{
		ArticleID:    a.ArticleID,
		Title:        title,
		Description:  description,
		Link:         a.Link,
		Content:      content,
		ImageURL:     a.ImageURL,
		VideoURL:     a.VideoURL,
		SourceID:     a.SourceID,
		SourceName:   source,
		SourceURL:    a.SourceURL,
		SourceIcon:   a.SourceIcon,
		Creator:      nonNil(a.Creator),
		Keywords:     nonNil(a.Keywords),
		Country:      nonNil(a.Country),
		Category:     category,
		Language:     language,
		PubDate:      parsePubDate(a.PubDate, p.opts.Location, fetchedAt),
		FetchedAt:    fetchedAt,
		CoinsReward:  p.opts.ArticleCoins,
		IsActive:     true,
		FetchBatchID: a.BatchID,
		PageNumber:   page,
	}
}

// clean strips markup and returns plain text.
func (p *Pipeline) clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(p.policy.Sanitize(s)))
}

func (p *Pipeline) logAttempt(ctx context.Context, batchID, category string, n, count int, cursor string, latency time.Duration, status, errMsg string) {
	entry := models.FetchLog{
		Category:        category,
		BatchID:         batchID,
		RequestNumber:   n,
		ArticlesFetched: count,
		NextPageToken:   cursor,
		ResponseTimeMs:  latency.Milliseconds(),
		Status:          status,
		ErrorMessage:    errMsg,
		FetchedAt:       p.now().UTC(),
	}
	if err := p.db.WithContext(ctx).Create(&entry).Error; err != nil {
		slog.Error("fetch log insert failed", "category", category, "error", err)
	}

	attrs := []any{
		"category", category,
		"request_number", n,
		"articles", count,
		"next_page", cursor,
		"latency_ms", latency.Milliseconds(),
		"status", status,
	}
	if errMsg != "" {
		slog.Warn("news page fetch failed", append(attrs, "error", errMsg)...)
		return
	}
	slog.Info("news page fetched", attrs...)
}

func (p *Pipeline) updateTracking(ctx context.Context, batch *Batch) error {
	db := p.db.WithContext(ctx)
	tracking := models.FetchTracking{Category: batch.Category}
	if err := db.Where(models.FetchTracking{Category: batch.Category}).FirstOrCreate(&tracking).Error; err != nil {
		return err
	}
	now := p.now().UTC()
	return db.Model(&models.FetchTracking{}).Where("id = ?", tracking.ID).Updates(map[string]interface{}{
		"last_fetch_time":   now,
		"last_next_page":    batch.Cursor,
		"current_batch_id":  batch.ID,
		"articles_in_batch": len(batch.Articles),
		"total_fetched":     gorm.Expr("total_fetched + ?", len(batch.Articles)),
	}).Error
}

func parsePubDate(s string, loc *time.Location, fallback time.Time) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range providerDateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC()
		}
	}
	return fallback
}

func nonNil(v []string) datatypes.JSONSlice[string] {
	if v == nil {
		return datatypes.JSONSlice[string]{}
	}
	return datatypes.JSONSlice[string](v)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
