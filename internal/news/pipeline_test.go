package news

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/testutil"
	"gorm.io/gorm"
)

var pipelineNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeResponse struct {
	page *Page
	err  error
}

// fakeFetcher replays scripted responses per category and records the cursor
// of every call. An exhausted script yields empty pages.
type fakeFetcher struct {
	responses map[string][]fakeResponse
	cursors   map[string][]string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{responses: map[string][]fakeResponse{}, cursors: map[string][]string{}}
}

func (f *fakeFetcher) add(category string, page *Page, err error) {
	f.responses[category] = append(f.responses[category], fakeResponse{page: page, err: err})
}

func (f *fakeFetcher) FetchPage(_ context.Context, category, cursor string) (*Page, error) {
	f.cursors[category] = append(f.cursors[category], cursor)
	queue := f.responses[category]
	if len(queue) == 0 {
		return &Page{}, nil
	}
	f.responses[category] = queue[1:]
	return queue[0].page, queue[0].err
}

func articles(prefix string, n int) []Article {
	out := make([]Article, n)
	for i := range out {
		out[i] = Article{
			ArticleID: fmt.Sprintf("%s-%d", prefix, i),
			Title:     fmt.Sprintf("Story %s %d", prefix, i),
			PubDate:   pipelineNow.Add(-time.Duration(i) * time.Minute).Format("2006-01-02 15:04:05"),
		}
	}
	return out
}

func newTestPipeline(t *testing.T, fetcher PageFetcher, opts Options) (*Pipeline, *gorm.DB, *[]time.Duration) {
	t.Helper()
	db := testutil.NewDB(t)
	if opts.Retention == 0 {
		opts.Retention = 100
	}
	p := NewPipeline(db, fetcher, opts)
	p.now = func() time.Time { return pipelineNow }
	var sleeps []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	return p, db, &sleeps
}

func TestFetchBatchFollowsCursorUpToMaxPages(t *testing.T) {
	f := newFakeFetcher()
	for i := 1; i <= 6; i++ {
		f.add("sports", &Page{Articles: articles(fmt.Sprintf("p%d", i), 2), NextPage: fmt.Sprintf("c%d", i)}, nil)
	}
	p, db, sleeps := newTestPipeline(t, f, Options{MaxPages: 5, PageDelay: 1500 * time.Millisecond})

	batch, err := p.FetchBatch(context.Background(), "sports")
	if err != nil {
		t.Fatalf("FetchBatch: %v", err)
	}
	if len(batch.Articles) != 10 || batch.Cursor != "c5" {
		t.Fatalf("batch has %d articles, cursor %q", len(batch.Articles), batch.Cursor)
	}
	wantCursors := []string{"", "c1", "c2", "c3", "c4"}
	for i, c := range wantCursors {
		if f.cursors["sports"][i] != c {
			t.Fatalf("cursors = %v", f.cursors["sports"])
		}
	}
	if len(*sleeps) != 4 || (*sleeps)[0] != 1500*time.Millisecond {
		t.Fatalf("sleeps = %v", *sleeps)
	}
	if want := fmt.Sprintf("sports_%d", pipelineNow.UnixMilli()); batch.ID != want {
		t.Fatalf("batch id = %q, want %q", batch.ID, want)
	}
	last := batch.Articles[len(batch.Articles)-1]
	if last.BatchID != batch.ID || last.PageNumber != 5 {
		t.Fatalf("last article tagged %q page %d", last.BatchID, last.PageNumber)
	}

	var logs []models.FetchLog
	db.Order("request_number").Find(&logs)
	if len(logs) != 5 || logs[4].Status != models.FetchSuccess || logs[4].NextPageToken != "c5" {
		t.Fatalf("fetch logs = %+v", logs)
	}

	var tracking models.FetchTracking
	if err := db.First(&tracking, "category = ?", "sports").Error; err != nil {
		t.Fatalf("load tracking: %v", err)
	}
	if tracking.TotalFetched != 10 || tracking.ArticlesInBatch != 10 || tracking.LastNextPage != "c5" || tracking.CurrentBatchID != batch.ID {
		t.Fatalf("tracking = %+v", tracking)
	}
}

func TestFetchBatchStopsOnEmptyPage(t *testing.T) {
	f := newFakeFetcher()
	f.add("health", &Page{Articles: articles("h", 3), NextPage: "next"}, nil)
	f.add("health", &Page{NextPage: "more"}, nil)
	p, db, _ := newTestPipeline(t, f, Options{})

	batch, err := p.FetchBatch(context.Background(), "health")
	if err != nil {
		t.Fatalf("FetchBatch: %v", err)
	}
	if len(batch.Articles) != 3 || len(f.cursors["health"]) != 2 {
		t.Fatalf("articles %d, calls %d", len(batch.Articles), len(f.cursors["health"]))
	}
	var failed int64
	db.Model(&models.FetchLog{}).Where("status = ?", models.FetchFailed).Count(&failed)
	if failed != 1 {
		t.Fatalf("failed logs = %d", failed)
	}
}

func TestFetchBatchReturnsPartialBatchOnError(t *testing.T) {
	f := newFakeFetcher()
	f.add("crime", &Page{Articles: articles("c", 4), NextPage: "n1"}, nil)
	f.add("crime", nil, fmt.Errorf("%w: boom", services.ErrExternalService))
	p, db, _ := newTestPipeline(t, f, Options{})

	batch, err := p.FetchBatch(context.Background(), "crime")
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if batch == nil || len(batch.Articles) != 4 {
		t.Fatalf("partial batch missing: %+v", batch)
	}

	var log models.FetchLog
	db.Where("status = ?", models.FetchFailed).First(&log)
	if log.RequestNumber != 2 || log.ErrorMessage == "" {
		t.Fatalf("failure log = %+v", log)
	}
}

func TestSaveArticlesSkipsExisting(t *testing.T) {
	p, db, _ := newTestPipeline(t, newFakeFetcher(), Options{ArticleCoins: 15})
	ctx := context.Background()
	testutil.CreateArticle(t, db, "dup-0", "sports", pipelineNow, 10)

	batch := articles("dup", 3)
	batch = append(batch, Article{ArticleID: "  "})
	res, err := p.SaveArticles(ctx, batch, "sports")
	if err != nil {
		t.Fatalf("SaveArticles: %v", err)
	}
	if res.Saved != 2 || res.Skipped != 2 {
		t.Fatalf("result = %+v", res)
	}

	var count int64
	db.Model(&models.NewsArticle{}).Where("article_id = ?", "dup-0").Count(&count)
	if count != 1 {
		t.Fatalf("duplicate rows = %d", count)
	}
	var saved models.NewsArticle
	db.First(&saved, "article_id = ?", "dup-1")
	if saved.CoinsReward != 15 || saved.Category != "sports" || !saved.IsActive {
		t.Fatalf("saved = %+v", saved)
	}
	if want := pipelineNow.Add(-time.Minute); !saved.PubDate.Equal(want) {
		t.Fatalf("pub_date = %v, want %v", saved.PubDate, want)
	}
}

func TestToModelNormalizes(t *testing.T) {
	p := NewPipeline(nil, nil, Options{})
	fetchedAt := pipelineNow

	row := p.toModel(Article{
		ArticleID:   "x1",
		Title:       "<b>Budget &amp; Tax</b>",
		Description: "<p>Summary</p>",
		Content:     "ONLY AVAILABLE IN PAID PLANS",
		Category:    []string{" Business ", "top"},
		Keywords:    nil,
		Creator:     []string{"Ann"},
		PubDate:     "not a date",
	}, "all", fetchedAt)

	if row.Category != "business" {
		t.Fatalf("category = %q", row.Category)
	}
	if row.Title != "Budget & Tax" || row.Description != "Summary" || row.Content != "Summary" {
		t.Fatalf("text = %q / %q / %q", row.Title, row.Description, row.Content)
	}
	if row.SourceName != "Unknown" || row.Language != "english" || row.PageNumber != 1 {
		t.Fatalf("defaults = %+v", row)
	}
	if !row.PubDate.Equal(fetchedAt) || row.Keywords == nil || len(row.Creator) != 1 {
		t.Fatalf("row = %+v", row)
	}

	fallback := p.toModel(Article{ArticleID: "x2", Title: "t"}, "sports", fetchedAt)
	if fallback.Category != "sports" {
		t.Fatalf("fallback category = %q", fallback.Category)
	}
}

func TestPruneCategoryKeepsNewest(t *testing.T) {
	p, db, _ := newTestPipeline(t, newFakeFetcher(), Options{})
	ctx := context.Background()

	rows := make([]models.NewsArticle, 0, 150)
	for i := 0; i < 150; i++ {
		rows = append(rows, models.NewsArticle{
			ArticleID:   fmt.Sprintf("s-%03d", i),
			Title:       "t",
			Category:    "sports",
			PubDate:     pipelineNow.Add(-time.Duration(i) * time.Hour),
			FetchedAt:   pipelineNow,
			CoinsReward: 10,
			IsActive:    true,
		})
	}
	if err := db.CreateInBatches(rows, 50).Error; err != nil {
		t.Fatalf("seed articles: %v", err)
	}
	testutil.CreateArticle(t, db, "other", "health", pipelineNow.Add(-1000*time.Hour), 10)

	deleted, err := p.PruneCategory(ctx, "sports", 100)
	if err != nil {
		t.Fatalf("PruneCategory: %v", err)
	}
	if deleted != 50 {
		t.Fatalf("deleted = %d, want 50", deleted)
	}

	var left []models.NewsArticle
	db.Where("category = ?", "sports").Order("pub_date DESC").Find(&left)
	if len(left) != 100 || left[0].ArticleID != "s-000" || left[99].ArticleID != "s-099" {
		t.Fatalf("kept %d rows, first %s last %s", len(left), left[0].ArticleID, left[len(left)-1].ArticleID)
	}

	var other int64
	db.Model(&models.NewsArticle{}).Where("category = ?", "health").Count(&other)
	if other != 1 {
		t.Fatal("other category pruned")
	}

	if n, err := p.PruneCategory(ctx, "sports", 0); err != nil || n != 100 {
		t.Fatalf("prune all: %d, %v", n, err)
	}
}

func TestSyncAllCategoriesIsolatesFailures(t *testing.T) {
	f := newFakeFetcher()
	f.add("all", &Page{Articles: articles("all", 3)}, nil)
	f.add("sports", nil, fmt.Errorf("%w: key revoked", services.ErrExternalService))
	f.add("health", &Page{Articles: articles("health", 2)}, nil)
	p, db, sleeps := newTestPipeline(t, f, Options{
		Categories:    []string{"all", "sports", "health"},
		CategoryDelay: 3 * time.Second,
	})

	res, err := p.SyncAllCategories(context.Background())
	if err != nil {
		t.Fatalf("SyncAllCategories: %v", err)
	}
	if res.Total != 5 || res.Saved != 5 || len(res.Categories) != 3 || len(res.Errors) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if res.Categories[1].Category != "sports" || res.Categories[1].Error == "" {
		t.Fatalf("sports result = %+v", res.Categories[1])
	}

	categoryPauses := 0
	for _, d := range *sleeps {
		if d == 3*time.Second {
			categoryPauses++
		}
	}
	if categoryPauses != 2 {
		t.Fatalf("category pauses = %d, sleeps = %v", categoryPauses, *sleeps)
	}

	var stored int64
	db.Model(&models.NewsArticle{}).Count(&stored)
	if stored != 5 {
		t.Fatalf("stored = %d", stored)
	}
}

func TestSyncCategoryRequiresName(t *testing.T) {
	p, _, _ := newTestPipeline(t, newFakeFetcher(), Options{})
	if _, err := p.SyncCategory(context.Background(), " "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
