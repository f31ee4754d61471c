package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks reads served from a fresh entry.
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_cache_hits_total",
		Help: "Total number of cache hits by cache",
	}, []string{"cache"})

	// cacheMisses tracks reads that had to load.
	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_cache_misses_total",
		Help: "Total number of cache misses by cache",
	}, []string{"cache"})

	cacheLoadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "analytics_cache_load_duration_seconds",
		Help:    "Time taken to load one cache entry",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"cache"})

	cacheLoadErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_cache_load_errors_total",
		Help: "Total number of failed cache loads by cache",
	}, []string{"cache"})
)
