package middleware

// Prometheus collectors for HTTP traffic and the chat pipeline. Labels stay
// bounded: path is the registered route (or "unmatched"), status the numeric
// code, and the chat counters use small fixed outcome sets.

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// unmatchedPath labels requests no route matched, so scanners probing
// random URLs cannot grow the series count.
const unmatchedPath = "unmatched"

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// Replies stream for tens of seconds, hence the long tail.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: []float64{.005, .025, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"method", "path", "stream"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Size of HTTP responses in bytes.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8), // 256B..4MiB
		},
		[]string{"method", "path"},
	)

	// chatReplies counts assistant replies by outcome
	// (complete|incomplete|failed).
	chatReplies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_replies_total",
			Help: "Assistant replies by outcome.",
		},
		[]string{"outcome"},
	)

	// chatFragments records how many stream fragments one reply took.
	chatFragments = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_reply_fragments",
			Help:    "Number of streamed fragments per reply.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1..512
		},
	)

	// chatTitles counts thread titling attempts by source (model|fallback).
	chatTitles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_titles_total",
			Help: "Thread titles set automatically, by source.",
		},
		[]string{"source"},
	)

	// chatUploads counts upload extractions by outcome (saved|empty|failed).
	chatUploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_uploads_total",
			Help: "Uploaded files by extraction outcome.",
		},
		[]string{"outcome"},
	)

	// rateLimited counts requests rejected by a RateLimiter, by scope.
	rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		},
		[]string{"scope"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize,
		chatReplies, chatFragments, chatTitles, chatUploads, rateLimited)
}

// ChatObserver records chat pipeline outcomes as Prometheus metrics. It
// satisfies session.Observer.
type ChatObserver struct{}

// Extraction counts one upload by outcome.
func (ChatObserver) Extraction(outcome string) {
	chatUploads.WithLabelValues(outcome).Inc()
}

// Title counts one titling attempt.
func (ChatObserver) Title(fallback bool) {
	source := "model"
	if fallback {
		source = "fallback"
	}
	chatTitles.WithLabelValues(source).Inc()
}

// Reply counts one reply and observes its fragment count.
func (ChatObserver) Reply(outcome string, fragments int) {
	chatReplies.WithLabelValues(outcome).Inc()
	chatFragments.Observe(float64(fragments))
}

// Metrics counts requests and observes latency and response size per
// route. Latency is split by whether the reply was streamed as events.
// Status-only responses (size -1) are not observed in the size histogram.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		path := routePath(c, func(string) string { return unmatchedPath })
		method := c.Request.Method
		stream := strconv.FormatBool(strings.HasPrefix(c.Writer.Header().Get("Content-Type"), "text/event-stream"))

		httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpLat.WithLabelValues(method, path, stream).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}
