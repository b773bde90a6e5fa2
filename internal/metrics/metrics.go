// Package metrics holds the prometheus collectors shared across the service.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shelfmate_messages_sent_total",
		Help: "Direct messages persisted by the relay.",
	})

	RealtimeDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shelfmate_realtime_deliveries_total",
		Help: "Real-time pushes by result (delivered, dropped, offline, error).",
	}, []string{"result"})

	RealtimeClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shelfmate_realtime_clients",
		Help: "Live real-time client connections on this instance.",
	})

	FriendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shelfmate_friend_requests_total",
		Help: "Friend request attempts by result.",
	}, []string{"result"})

	BookSearches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shelfmate_book_search_total",
		Help: "External book searches by result (hit, miss, error).",
	}, []string{"result"})

	DomainEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shelfmate_domain_events_total",
		Help: "Domain events handed to the broker by result (published, dropped, error).",
	}, []string{"result"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shelfmate_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Middleware records request latency labelled by the matched route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
