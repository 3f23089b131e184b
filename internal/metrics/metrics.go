// Package metrics exposes Prometheus counters for the pipeline, the
// generation client, and the rate limiter. Served at /metrics by the
// webhook server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DocumentsIngested counts documents stored by the ingestion step.
	DocumentsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "account_intel",
		Subsystem: "pipeline",
		Name:      "documents_ingested_total",
		Help:      "Source documents stored after hash dedup.",
	})

	// DocumentsDeduplicated counts re-crawled pages skipped by hash dedup.
	DocumentsDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "account_intel",
		Subsystem: "pipeline",
		Name:      "documents_deduplicated_total",
		Help:      "Crawled pages skipped because the content hash already existed.",
	})

	// DocumentsProcessed counts documents attempted by extraction.
	DocumentsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "account_intel",
		Subsystem: "pipeline",
		Name:      "documents_processed_total",
		Help:      "Documents attempted by the extraction step.",
	})

	// ExtractionFailures counts per-document extraction failures.
	ExtractionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "account_intel",
		Subsystem: "pipeline",
		Name:      "extraction_failures_total",
		Help:      "Documents that failed extraction and remain unprocessed.",
	})

	// GenerationRetries counts retries against the generation service.
	GenerationRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "account_intel",
		Subsystem: "genai",
		Name:      "generation_retries_total",
		Help:      "Retried calls to the generation service.",
	})

	// RateLimitDenials counts denied limiter checks.
	RateLimitDenials = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "account_intel",
		Subsystem: "ratelimit",
		Name:      "denials_total",
		Help:      "Requests denied by the fixed-window rate limiter.",
	})

	// RateLimitFailOpen counts limiter checks allowed despite store errors.
	RateLimitFailOpen = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "account_intel",
		Subsystem: "ratelimit",
		Name:      "fail_open_total",
		Help:      "Limiter checks that failed open because the store errored.",
	})
)
