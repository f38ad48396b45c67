package exchange

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики кэша биржевых клиентов и внешних вызовов
// ============================================================

// CacheSize - текущий размер кэша клиентов по секциям
var CacheSize = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "fydblock",
		Subsystem: "exchange_cache",
		Name:      "entries",
		Help:      "Current number of cached exchange clients",
	},
	[]string{"section"}, // public, auth
)

// CacheLookups - попадания и промахи кэша
var CacheLookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fydblock",
		Subsystem: "exchange_cache",
		Name:      "lookups_total",
		Help:      "Cache lookups by section and result",
	},
	[]string{"section", "result"}, // result: hit, miss, stale_credentials
)

// CacheEvictions - вытеснения из кэша по причинам
var CacheEvictions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fydblock",
		Subsystem: "exchange_cache",
		Name:      "evictions_total",
		Help:      "Cache evictions by reason",
	},
	[]string{"reason"}, // ttl, lru, credentials, invalidate, shutdown
)

// RequestDuration - длительность вызовов биржевых API
var RequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "fydblock",
		Subsystem: "exchange",
		Name:      "request_duration_seconds",
		Help:      "Exchange API call duration in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	},
	[]string{"exchange", "operation"}, // operation: balance, tickers
)

// RequestErrors - ошибки вызовов биржевых API
var RequestErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fydblock",
		Subsystem: "exchange",
		Name:      "request_errors_total",
		Help:      "Exchange API call errors",
	},
	[]string{"exchange", "operation"},
)

// recordLookup записывает результат обращения к кэшу
func recordLookup(section, result string) {
	CacheLookups.WithLabelValues(section, result).Inc()
}

// recordEviction записывает вытеснение записей из кэша
func recordEviction(reason string, count int) {
	if count > 0 {
		CacheEvictions.WithLabelValues(reason).Add(float64(count))
	}
}
