// Package metrics exposes Prometheus collectors for HTTP traffic and testimonial domain outcomes.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeCreated      = "created"
	OutcomeRecorded     = "recorded"
	OutcomeSpam         = "spam"
	OutcomeRejected     = "rejected"
	OutcomeServed       = "served"
	OutcomeCacheHit     = "cache_hit"
	OutcomeForbidden    = "forbidden"
	OutcomeNotFound     = "not_found"
	OutcomeFailed       = "failed"
	unmatchedRouteLabel = "unmatched"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testimonial_submissions_total",
			Help: "Form submissions by ingest outcome",
		},
		[]string{"outcome"},
	)

	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testimonial_transitions_total",
			Help: "Testimonial status transitions by target status",
		},
		[]string{"status"},
	)

	widgetRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widget_requests_total",
			Help: "Widget configuration requests by outcome",
		},
		[]string{"outcome"},
	)

	streamEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "testimonial_stream_events_dropped_total",
			Help: "Lifecycle events skipped because a dashboard stream fell behind",
		},
	)

	moderationBacklog = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "testimonial_moderation_backlog",
			Help: "Testimonials per status as of the last moderation sweep",
		},
		[]string{"status"},
	)
)

func ObserveSubmission(outcome string) {
	submissionsTotal.WithLabelValues(outcome).Inc()
}

func ObserveTransition(status string) {
	transitionsTotal.WithLabelValues(status).Inc()
}

func ObserveWidgetRequest(outcome string) {
	widgetRequestsTotal.WithLabelValues(outcome).Inc()
}

func ObserveDroppedStreamEvent() {
	streamEventsDropped.Inc()
}

func SetModerationBacklog(status string, count int64) {
	moderationBacklog.WithLabelValues(status).Set(float64(count))
}

// Middleware records request counts and latencies labelled by the matched route template.
func Middleware() gin.HandlerFunc {
	return func(context *gin.Context) {
		startTime := time.Now()
		context.Next()

		path := context.FullPath()
		if path == "" {
			path = unmatchedRouteLabel
		}
		status := strconv.Itoa(context.Writer.Status())
		method := context.Request.Method
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(startTime).Seconds())
	}
}

// Handler serves the default registry in the Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
