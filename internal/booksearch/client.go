// Package booksearch queries an external catalog in the Google Books volumes format.
package booksearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shelfmate/backend/internal/metrics"

	"go.uber.org/zap"
)

var (
	// ErrUnavailable wraps every failure to reach or decode the catalog.
	ErrUnavailable = errors.New("book search unavailable")
	ErrEmptyQuery  = errors.New("empty search query")
)

// Volume is one search result.
type Volume struct {
	ExternalID string   `json:"external_id"`
	Title      string   `json:"title"`
	Authors    []string `json:"authors"`
	PageCount  int      `json:"page_count"`
	CoverURL   string   `json:"cover_url"`
	ISBN       string   `json:"isbn,omitempty"`
}

type volumesResponse struct {
	Items []struct {
		ID         string `json:"id"`
		VolumeInfo struct {
			Title      string   `json:"title"`
			Authors    []string `json:"authors"`
			PageCount  int      `json:"pageCount"`
			ImageLinks struct {
				Thumbnail string `json:"thumbnail"`
			} `json:"imageLinks"`
			IndustryIdentifiers []struct {
				Type       string `json:"type"`
				Identifier string `json:"identifier"`
			} `json:"industryIdentifiers"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	Cache      Cache
	CacheTTL   time.Duration
	MaxResults int
}

// Client searches the catalog, consulting Cache first when one is set.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	cache   Cache
	ttl     time.Duration
	max     int
	logger  *zap.Logger
}

func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:    &http.Client{Timeout: opts.Timeout},
		baseURL: opts.BaseURL,
		apiKey:  opts.APIKey,
		cache:   opts.Cache,
		ttl:     opts.CacheTTL,
		max:     opts.MaxResults,
		logger:  logger.Named("booksearch"),
	}
}

// Search returns the catalog volumes matching query.
func (c *Client) Search(ctx context.Context, query string) ([]Volume, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	key := cacheKey(query)

	if c.cache != nil {
		volumes, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.logger.Warn("search cache read failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			metrics.BookSearches.WithLabelValues("hit").Inc()
			return volumes, nil
		}
	}

	volumes, err := c.fetch(ctx, query)
	if err != nil {
		metrics.BookSearches.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.BookSearches.WithLabelValues("miss").Inc()

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, volumes, c.ttl); err != nil {
			c.logger.Warn("search cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return volumes, nil
}

func (c *Client) fetch(ctx context.Context, query string) ([]Volume, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", fmt.Sprint(c.max))
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: catalog returned %s", ErrUnavailable, resp.Status)
	}

	var body volumesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	volumes := make([]Volume, 0, len(body.Items))
	for _, item := range body.Items {
		info := item.VolumeInfo
		v := Volume{
			ExternalID: item.ID,
			Title:      info.Title,
			Authors:    info.Authors,
			PageCount:  info.PageCount,
			CoverURL:   strings.Replace(info.ImageLinks.Thumbnail, "http://", "https://", 1),
		}
		for _, id := range info.IndustryIdentifiers {
			if id.Type == "ISBN_13" || (id.Type == "ISBN_10" && v.ISBN == "") {
				v.ISBN = id.Identifier
			}
		}
		if v.Authors == nil {
			v.Authors = []string{}
		}
		volumes = append(volumes, v)
	}
	return volumes, nil
}

func cacheKey(query string) string {
	return "book-search:" + strings.ToLower(query)
}
