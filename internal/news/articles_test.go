package news

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/testutil"
)

func TestListArticlesHidesReadToday(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewArticleService(db, time.UTC)
	svc.now = func() time.Time { return pipelineNow }
	ctx := context.Background()

	testutil.CreateArticle(t, db, "n1", "sports", pipelineNow.Add(-time.Hour), 10)
	testutil.CreateArticle(t, db, "n2", "sports", pipelineNow.Add(-2*time.Hour), 10)
	testutil.CreateArticle(t, db, "n3", "health", pipelineNow.Add(-3*time.Hour), 10)
	user := testutil.CreateUser(t, db, "viewer@example.com", "")
	db.Create(&models.ReadingHistory{
		UserID: user.ID, ArticleExternalID: "n1", StartedAt: pipelineNow, ReadingDate: "2026-03-10",
	})
	db.Create(&models.ReadingHistory{
		UserID: user.ID, ArticleExternalID: "n2", StartedAt: pipelineNow, ReadingDate: "2026-03-09",
	})

	all, err := svc.ListArticles(ctx, "", nil, 1, 10)
	if err != nil {
		t.Fatalf("ListArticles: %v", err)
	}
	if all.Category != CategoryAll || all.Pagination.Total != 3 || all.Articles[0].ArticleID != "n1" {
		t.Fatalf("anonymous list = %+v", all)
	}

	sports, err := svc.ListArticles(ctx, "Sports", &user.ID, 1, 10)
	if err != nil {
		t.Fatalf("ListArticles: %v", err)
	}
	if len(sports.Articles) != 1 || sports.Articles[0].ArticleID != "n2" {
		t.Fatalf("viewer list = %+v", sports.Articles)
	}
}

func TestGetArticleCountsViews(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewArticleService(db, time.UTC)
	ctx := context.Background()
	testutil.CreateArticle(t, db, "v1", "sports", pipelineNow, 10)

	for i := 0; i < 2; i++ {
		if _, err := svc.GetArticle(ctx, "v1"); err != nil {
			t.Fatalf("GetArticle: %v", err)
		}
	}
	article, err := svc.GetArticle(ctx, "v1")
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	if article.ViewCount != 3 {
		t.Fatalf("view_count = %d", article.ViewCount)
	}

	if _, err := svc.GetArticle(ctx, "missing"); !errors.Is(err, services.ErrArticleNotFound) {
		t.Fatalf("expected ErrArticleNotFound, got %v", err)
	}
}

func TestFetchStats(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.CreateArticle(t, db, "f1", "sports", pipelineNow, 10)
	testutil.CreateArticle(t, db, "f2", "sports", pipelineNow.Add(-time.Hour), 10)
	testutil.CreateArticle(t, db, "f3", "health", pipelineNow, 10)
	db.Create(&models.FetchTracking{Category: "sports", TotalFetched: 2})

	stats, err := NewArticleService(db, time.UTC).FetchStats(context.Background())
	if err != nil {
		t.Fatalf("FetchStats: %v", err)
	}
	if len(stats.Tracking) != 1 || len(stats.Categories) != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	top := stats.Categories[0]
	if top.Category != "sports" || top.Count != 2 || top.LatestPubDate == nil || !top.LatestPubDate.Equal(pipelineNow) {
		t.Fatalf("top category = %+v", top)
	}
}
