package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/services"
)

// CategoryAll is the umbrella category; it is sent to the provider without a
// category filter.
const CategoryAll = "all"

// Article is one result as returned by the provider.
type Article struct {
	ArticleID   string   `json:"article_id"`
	Title       string   `json:"title"`
	Link        string   `json:"link"`
	Keywords    []string `json:"keywords"`
	Creator     []string `json:"creator"`
	VideoURL    string   `json:"video_url"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	PubDate     string   `json:"pubDate"`
	ImageURL    string   `json:"image_url"`
	SourceID    string   `json:"source_id"`
	SourceName  string   `json:"source_name"`
	SourceURL   string   `json:"source_url"`
	SourceIcon  string   `json:"source_icon"`
	Language    string   `json:"language"`
	Country     []string `json:"country"`
	Category    []string `json:"category"`

	// Set by the pipeline before persistence.
	BatchID    string `json:"-"`
	PageNumber int    `json:"-"`
}

// Page is one successful provider response.
type Page struct {
	Articles     []Article
	NextPage     string
	TotalResults int
	Latency      time.Duration
}

type apiResponse struct {
	Status       string          `json:"status"`
	TotalResults int             `json:"totalResults"`
	Results      json.RawMessage `json:"results"`
	NextPage     string          `json:"nextPage"`
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// PageFetcher fetches one page of a category.
type PageFetcher interface {
	FetchPage(ctx context.Context, category, cursor string) (*Page, error)
}

// Client calls the NewsData "latest" endpoint.
type Client struct {
	baseURL  string
	country  string
	language string
	timezone string
	pageSize int
	keys     *KeyRotator
	http     *http.Client
}

func NewClient(cfg *config.Config, keys *KeyRotator) *Client {
	return &Client{
		baseURL:  cfg.NewsDataBaseURL,
		country:  cfg.NewsCountry,
		language: cfg.NewsLanguage,
		timezone: cfg.Timezone,
		pageSize: cfg.NewsPageSize,
		keys:     keys,
		http:     &http.Client{Timeout: cfg.NewsTimeout},
	}
}

// FetchPage requests one page. Every failure wraps services.ErrExternalService.
func (c *Client) FetchPage(ctx context.Context, category, cursor string) (*Page, error) {
	key, err := c.keys.Next()
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("apikey", key)
	params.Set("country", c.country)
	params.Set("language", c.language)
	params.Set("timezone", c.timezone)
	params.Set("image", "1")
	params.Set("removeduplicate", "1")
	params.Set("size", strconv.Itoa(c.pageSize))
	if category != "" && category != CategoryAll {
		params.Set("category", category)
	}
	if cursor != "" {
		params.Set("page", cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", services.ErrExternalService, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request %s: %v", services.ErrExternalService, category, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	latency := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", services.ErrExternalService, err)
	}

	var decoded apiResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("%w: status %d: decode response: %v", services.ErrExternalService, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || decoded.Status != "success" {
		var apiErr apiError
		_ = json.Unmarshal(decoded.Results, &apiErr)
		msg := apiErr.Message
		if msg == "" {
			msg = decoded.Status
		}
		return nil, fmt.Errorf("%w: provider status %d: %s", services.ErrExternalService, resp.StatusCode, msg)
	}

	page := &Page{
		NextPage:     decoded.NextPage,
		TotalResults: decoded.TotalResults,
		Latency:      latency,
	}
	if len(decoded.Results) > 0 && string(decoded.Results) != "null" {
		if err := json.Unmarshal(decoded.Results, &page.Articles); err != nil {
			return nil, fmt.Errorf("%w: decode articles: %v", services.ErrExternalService, err)
		}
	}
	return page, nil
}
