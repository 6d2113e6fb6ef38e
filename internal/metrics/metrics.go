package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	PostsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mb_posts_created_total",
		Help: "Total number of posts created (roots and replies)",
	})
	PostsDeletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mb_posts_deleted_total",
		Help: "Total number of posts removed, cascade deletes included",
	})
	FeedRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mb_feed_requests_total",
		Help: "Total number of feed samplings served",
	})
	HttpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HttpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(PostsCreatedTotal, PostsDeletedTotal, FeedRequestsTotal, HttpRequestsTotal, HttpRequestDuration)
}

// GinMiddleware 统计基础请求指标，供 Prometheus 拉取。
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		HttpRequestsTotal.With(labels).Inc()
		HttpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
