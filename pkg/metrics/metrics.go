// Package metrics provides the centralized Prometheus registry reference for
// the crawler. Metrics are defined in their owning packages (fetcher,
// ratelimit, resolver, chapter) to maintain modularity and avoid circular
// dependencies.
//
// This package documents all available metrics in one place.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the crawler.
// All metrics are automatically registered via promauto in their respective
// packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Rate Gate Metrics (pkg/ratelimit):
//   - crawl_rate_gate_wait_seconds (Histogram): Time spent blocked in the gate
//   - crawl_rate_gate_waits_total (Counter): Requests delayed by the gate
//
// Fetch Metrics (pkg/fetcher):
//   - crawl_fetch_requests_total{host, status} (Counter): Requests by host and HTTP status
//   - crawl_fetch_duration_seconds{host} (Histogram): Fetch duration including retries
//   - crawl_fetch_errors_total{class} (Counter): Errors by class (address, client, server, rate_limit, network)
//   - crawl_fetch_retries_total{error_class} (Counter): Retry attempts by error class
//   - crawl_fetch_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - crawl_fetch_retry_exhausted_total{error_class} (Counter): Fetches that exhausted the retry budget
//
// Resolution Metrics (pkg/resolver):
//   - crawl_resolver_targets_total{outcome} (Counter): Placeholder targets by outcome (resolved, skipped reason)
//   - crawl_resolver_hops_total (Histogram): Pagination hops consumed per successful walk
//
// Chapter Download Metrics (pkg/chapter):
//   - crawl_chapter_pages_total (Counter): Chapter pages fetched during content assembly
//
// Example Prometheus Queries:
//
//   # Share of requests answered 429
//   rate(crawl_fetch_requests_total{status="429"}[5m]) /
//   rate(crawl_fetch_requests_total[5m])
//
//   # Resolution success rate
//   rate(crawl_resolver_targets_total{outcome="resolved"}[1h]) /
//   sum(rate(crawl_resolver_targets_total[1h]))
//
//   # P95 fetch latency
//   histogram_quantile(0.95, rate(crawl_fetch_duration_seconds_bucket[5m]))
