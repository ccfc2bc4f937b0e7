package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	accessDeniedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "library_access_denied_total",
		Help: "Access gate denials by reason.",
	}, []string{"reason"})
	filesIndexedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "library_files_indexed_total",
		Help: "Vault posts indexed into a course.",
	})
	postsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "library_posts_rejected_total",
		Help: "Vault posts that raced a finished course and were dropped.",
	})
	duplicateTokensTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "library_duplicate_tokens_total",
		Help: "Token resolutions that found more than one file.",
	})
	searchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "library_search_total",
		Help: "Course searches served.",
	})
	searchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "library_search_duration_seconds",
		Help:    "Course search latency, including the store read.",
		Buckets: prometheus.DefBuckets,
	})
)
