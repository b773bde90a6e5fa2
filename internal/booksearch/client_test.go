package booksearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const volumesJSON = `{
  "items": [
    {
      "id": "zyTCAlFPjgYC",
      "volumeInfo": {
        "title": "The Google Story",
        "authors": ["David A. Vise", "Mark Malseed"],
        "pageCount": 207,
        "imageLinks": {"thumbnail": "http://books.google.com/books/content?id=zyTCAlFPjgYC"},
        "industryIdentifiers": [
          {"type": "ISBN_10", "identifier": "055380457X"},
          {"type": "ISBN_13", "identifier": "9780553804577"}
        ]
      }
    },
    {"id": "noauthors", "volumeInfo": {"title": "Anonymous"}}
  ]
}`

type memoryCache struct {
	mu    sync.Mutex
	items map[string][]Volume
}

func (m *memoryCache) Get(_ context.Context, key string) ([]Volume, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *memoryCache) Set(_ context.Context, key string, volumes []Volume, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = volumes
	return nil
}

func TestSearch_MapsVolumes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dune", r.URL.Query().Get("q"))
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(volumesJSON))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, APIKey: "secret"}, nil)
	volumes, err := c.Search(context.Background(), "  dune ")
	require.NoError(t, err)
	require.Len(t, volumes, 2)

	assert.Equal(t, "zyTCAlFPjgYC", volumes[0].ExternalID)
	assert.Equal(t, "The Google Story", volumes[0].Title)
	assert.Equal(t, []string{"David A. Vise", "Mark Malseed"}, volumes[0].Authors)
	assert.Equal(t, 207, volumes[0].PageCount)
	assert.Equal(t, "9780553804577", volumes[0].ISBN)
	assert.Equal(t, "https://books.google.com/books/content?id=zyTCAlFPjgYC", volumes[0].CoverURL)

	assert.Equal(t, []string{}, volumes[1].Authors)
	assert.Zero(t, volumes[1].PageCount)
}

func TestSearch_UpstreamFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL}, nil)
	_, err := c.Search(context.Background(), "dune")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSearch_MalformedBodyIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL}, nil)
	_, err := c.Search(context.Background(), "dune")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSearch_EmptyQuery(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://127.0.0.1:0"}, nil)
	_, err := c.Search(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSearch_UsesCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(volumesJSON))
	}))
	defer srv.Close()

	cache := &memoryCache{items: map[string][]Volume{}}
	c := NewClient(Options{BaseURL: srv.URL, Cache: cache, CacheTTL: time.Minute}, nil)

	first, err := c.Search(context.Background(), "Dune")
	require.NoError(t, err)
	second, err := c.Search(context.Background(), "dune")
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, first, second)
	assert.Contains(t, cache.items, "book-search:dune")
}
