// Package observability provides Prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// ListingsCreated counts listings published.
	ListingsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookshare_listings_created_total",
		Help: "Total number of listings created",
	})

	// LoansCreated counts successful reservations.
	LoansCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookshare_loans_created_total",
		Help: "Total number of loans created",
	})

	// LoansReturned counts loans marked as returned.
	LoansReturned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookshare_loans_returned_total",
		Help: "Total number of loans returned",
	})

	// ReservationConflicts counts reservations lost to a concurrent borrower.
	ReservationConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookshare_reservation_conflicts_total",
		Help: "Total number of reservations rejected because the listing was no longer available",
	})

	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookshare_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// CacheLookups counts cache-aside lookups by key family and outcome.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookshare_cache_lookups_total",
		Help: "Cache lookups by key family and result (hit, miss, error)",
	}, []string{"family", "result"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bookshare_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
)

const queryStartKey = "bookshare:query_start"

// DatabaseMetrics is a GORM plugin that records query latency per operation and table.
type DatabaseMetrics struct{}

// NewDatabaseMetrics returns the plugin; register it with db.Use.
func NewDatabaseMetrics() *DatabaseMetrics {
	return &DatabaseMetrics{}
}

// Name implements gorm.Plugin.
func (m *DatabaseMetrics) Name() string {
	return "bookshare:database_metrics"
}

// Initialize implements gorm.Plugin.
func (m *DatabaseMetrics) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		op     string
		before func(string, func(*gorm.DB)) error
		after  func(string, func(*gorm.DB)) error
	}{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}

	for _, h := range hooks {
		op := h.op
		if err := h.before("metrics:before_"+op, m.start); err != nil {
			return err
		}
		if err := h.after("metrics:after_"+op, func(tx *gorm.DB) { m.observe(tx, op) }); err != nil {
			return err
		}
	}
	return nil
}

func (m *DatabaseMetrics) start(tx *gorm.DB) {
	tx.InstanceSet(queryStartKey, time.Now())
}

func (m *DatabaseMetrics) observe(tx *gorm.DB, op string) {
	v, ok := tx.InstanceGet(queryStartKey)
	if !ok {
		return
	}
	start, ok := v.(time.Time)
	if !ok {
		return
	}
	table := tx.Statement.Table
	if table == "" {
		table = "unknown"
	}
	DatabaseQueryLatency.WithLabelValues(op, table).Observe(time.Since(start).Seconds())
}
