// Package fetcher provides the rate-limited HTTP fetch layer of the crawler.
// All page retrieval goes through a Fetcher: it owns pacing, retry/backoff,
// identity rotation, and text decoding, so no other component ever sleeps or
// sets headers on its own.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/epubforge/novelcrawl/pkg/logging"
	"github.com/epubforge/novelcrawl/pkg/ratelimit"
)

// Prometheus metrics for fetch operations.
var (
	fetchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crawl_fetch_requests_total",
		Help: "Total fetch requests by host and status",
	}, []string{"host", "status"})

	fetchRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crawl_fetch_duration_seconds",
		Help:    "Fetch duration in seconds by host, including retries",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"host"})

	fetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crawl_fetch_errors_total",
		Help: "Total fetch errors by class",
	}, []string{"class"})

	fetchRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crawl_fetch_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	fetchRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crawl_fetch_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	fetchRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crawl_fetch_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// Config holds the fetcher configuration.
type Config struct {
	// BaseURL resolves relative addresses. Optional; absolute addresses
	// work without it.
	BaseURL string

	// RetryTimes is the maximum number of underlying network attempts
	// per Fetch call.
	RetryTimes int

	// RetryDelay is the base unit of backoff waits between attempts.
	RetryDelay time.Duration

	// BaseInterval is the minimum spacing between request completions.
	BaseInterval time.Duration

	// IntervalJitter is the random extra spacing added on top of
	// BaseInterval, uniform in [0, IntervalJitter).
	IntervalJitter time.Duration

	// Timeout bounds each individual network attempt.
	Timeout time.Duration

	// UserAgents overrides the default identity pool.
	UserAgents []string
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		RetryTimes:     3,
		RetryDelay:     1 * time.Second,
		BaseInterval:   1 * time.Second,
		IntervalJitter: 1 * time.Second,
		Timeout:        30 * time.Second,
	}
}

// Fetcher wraps raw HTTP GET with pacing, retry/backoff, identity rotation,
// and content decoding. Each instance paces independently.
type Fetcher struct {
	httpClient *http.Client
	gate       *ratelimit.Gate
	base       *url.URL
	config     Config
	userAgents []string
	logger     zerolog.Logger
}

// New creates a fetcher. Zero config fields fall back to DefaultConfig
// values.
func New(cfg Config) (*Fetcher, error) {
	def := DefaultConfig(cfg.BaseURL)
	if cfg.RetryTimes <= 0 {
		cfg.RetryTimes = def.RetryTimes
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = defaultUserAgents
	}

	var base *url.URL
	if cfg.BaseURL != "" {
		parsed, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		if parsed.Host == "" {
			return nil, fmt.Errorf("base url %q has no host", cfg.BaseURL)
		}
		base = parsed
	}

	logger := logging.NewLogger("fetcher")

	return &Fetcher{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		gate:       ratelimit.NewGate(cfg.BaseInterval, cfg.IntervalJitter, logger),
		base:       base,
		config:     cfg,
		userAgents: cfg.UserAgents,
		logger:     logger,
	}, nil
}

// Fetch retrieves a page and returns its decoded text content. Retries are
// internal: the call fails only after the retry budget is exhausted or the
// address is malformed. The caller blocks through pacing and backoff waits.
func (f *Fetcher) Fetch(ctx context.Context, address string) (string, error) {
	target, err := f.resolveAddress(address)
	if err != nil {
		fetchErrorsTotal.WithLabelValues(string(ErrorClassAddress)).Inc()
		return "", err
	}
	fullURL := target.String()
	host := target.Host

	start := time.Now()
	defer func() {
		fetchRequestDuration.WithLabelValues(host).Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	var lastClass ErrorClass

	for attempt := 0; attempt < f.config.RetryTimes; attempt++ {
		if err := f.gate.Wait(ctx); err != nil {
			return "", err
		}

		status, header, body, reqErr := f.doRequest(ctx, fullURL, true)
		f.gate.Completed()

		if reqErr != nil {
			lastClass = ErrorClassNetwork
			lastErr = &FetchError{URL: fullURL, Class: ErrorClassNetwork, Err: reqErr}
			fetchErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			fetchRequestsTotal.WithLabelValues(host, "network_error").Inc()
			f.logger.Warn().Err(reqErr).
				Str("url", fullURL).
				Int("attempt", attempt+1).
				Msg("HTTP request failed")

			if attempt == f.config.RetryTimes-1 {
				break
			}
			if err := f.backoff(ctx, ErrorClassNetwork, f.linearBackoff(attempt)); err != nil {
				return "", err
			}
			continue
		}

		fetchRequestsTotal.WithLabelValues(host, strconv.Itoa(status)).Inc()

		if status == http.StatusTooManyRequests {
			lastClass = ErrorClassRateLimit
			lastErr = &FetchError{URL: fullURL, StatusCode: status, Class: ErrorClassRateLimit}
			fetchErrorsTotal.WithLabelValues(string(ErrorClassRateLimit)).Inc()

			// Honor the server hint when present; otherwise use the
			// rate-limit formula. This wait never feeds the ordinary
			// linear backoff progression.
			wait := f.linearBackoff(attempt) * 3
			if hint := retryAfterDuration(header); hint > 0 {
				wait = hint
			}
			f.logger.Warn().
				Str("url", fullURL).
				Int("attempt", attempt+1).
				Dur("wait", wait).
				Msg("429 Too Many Requests, backing off")

			if attempt == f.config.RetryTimes-1 {
				break
			}
			if err := f.backoff(ctx, ErrorClassRateLimit, wait); err != nil {
				return "", err
			}
			continue
		}

		if status < 200 || status >= 300 {
			class := classifyStatus(status)
			lastClass = class
			lastErr = &FetchError{URL: fullURL, StatusCode: status, Class: class}
			fetchErrorsTotal.WithLabelValues(string(class)).Inc()
			f.logger.Warn().
				Str("url", fullURL).
				Int("status", status).
				Int("attempt", attempt+1).
				Str("error_class", string(class)).
				Msg("Fetch request error")

			if attempt == f.config.RetryTimes-1 {
				break
			}
			if err := f.backoff(ctx, class, f.linearBackoff(attempt)); err != nil {
				return "", err
			}
			continue
		}

		text, decErr := f.decodeResponse(ctx, fullURL, header, body)
		if decErr != nil {
			lastClass = ErrorClassNetwork
			lastErr = &FetchError{URL: fullURL, Class: ErrorClassNetwork, Err: decErr}
			fetchErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			f.logger.Warn().Err(decErr).
				Str("url", fullURL).
				Int("attempt", attempt+1).
				Msg("Response decoding failed")

			if attempt == f.config.RetryTimes-1 {
				break
			}
			if err := f.backoff(ctx, ErrorClassNetwork, f.linearBackoff(attempt)); err != nil {
				return "", err
			}
			continue
		}

		f.validateContent(fullURL, header.Get("Content-Type"), text)

		if attempt > 0 {
			f.logger.Info().
				Str("url", fullURL).
				Int("attempt", attempt+1).
				Msg("Fetch succeeded after retry")
		}
		return text, nil
	}

	fetchRetryExhaustedTotal.WithLabelValues(string(lastClass)).Inc()
	f.logger.Warn().
		Str("url", fullURL).
		Int("max_attempts", f.config.RetryTimes).
		Str("error_class", string(lastClass)).
		Msg("Fetch retry attempts exhausted")

	return "", fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, f.config.RetryTimes, lastErr)
}

// resolveAddress turns a possibly relative address into an absolute URL.
func (f *Fetcher) resolveAddress(address string) (*url.URL, error) {
	if address == "" {
		return nil, &FetchError{URL: address, Class: ErrorClassAddress, Err: ErrBadAddress}
	}

	parsed, err := url.Parse(address)
	if err != nil {
		return nil, &FetchError{URL: address, Class: ErrorClassAddress, Err: fmt.Errorf("%w: %v", ErrBadAddress, err)}
	}

	if !parsed.IsAbs() {
		if f.base == nil {
			return nil, &FetchError{URL: address, Class: ErrorClassAddress, Err: fmt.Errorf("%w: relative address without base url", ErrBadAddress)}
		}
		parsed = f.base.ResolveReference(parsed)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, &FetchError{URL: address, Class: ErrorClassAddress, Err: fmt.Errorf("%w: unsupported scheme %q", ErrBadAddress, parsed.Scheme)}
	}
	if parsed.Host == "" {
		return nil, &FetchError{URL: address, Class: ErrorClassAddress, Err: fmt.Errorf("%w: missing host", ErrBadAddress)}
	}
	return parsed, nil
}

// doRequest performs one GET attempt and returns the raw body. A fresh
// client identity is picked for every attempt.
func (f *Fetcher) doRequest(ctx context.Context, fullURL string, compressed bool) (int, http.Header, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return 0, nil, nil, err
	}

	req.Header.Set("User-Agent", f.randomUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	if compressed {
		// Advertise only what we can always decode. Setting the header
		// manually also disables the transport's transparent gzip, so
		// decompression stays in our hands.
		req.Header.Set("Accept-Encoding", "gzip, deflate")
	}
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, err
	}
	return resp.StatusCode, resp.Header, body, nil
}

// decodeResponse decompresses and charset-decodes a successful response.
// When the payload arrives in an encoding we cannot reverse, the request is
// re-issued once without Accept-Encoding and the plain response is used.
func (f *Fetcher) decodeResponse(ctx context.Context, fullURL string, header http.Header, body []byte) (string, error) {
	raw, err := decompressBody(header.Get("Content-Encoding"), body)
	if err != nil {
		f.logger.Warn().Err(err).
			Str("url", fullURL).
			Str("content_encoding", header.Get("Content-Encoding")).
			Msg("Decompression failed, re-requesting without compression")

		if werr := f.gate.Wait(ctx); werr != nil {
			return "", werr
		}
		status, plainHeader, plainBody, rerr := f.doRequest(ctx, fullURL, false)
		f.gate.Completed()
		if rerr != nil {
			return "", rerr
		}
		if status < 200 || status >= 300 {
			return "", &FetchError{URL: fullURL, StatusCode: status, Class: classifyStatus(status)}
		}
		header = plainHeader
		raw = plainBody
		if decoded, derr := decompressBody(plainHeader.Get("Content-Encoding"), plainBody); derr == nil {
			raw = decoded
		}
	}

	return decodeText(raw, header.Get("Content-Type")), nil
}

// validateContent applies a minimal sanity shape to decoded text. Failures
// are logged, never raised; whether the content is usable is the caller's
// decision.
func (f *Fetcher) validateContent(fullURL, contentType, text string) {
	if contentType != "" && !strings.Contains(strings.ToLower(contentType), "text/html") {
		f.logger.Warn().
			Str("url", fullURL).
			Str("content_type", contentType).
			Msg("Content-Type is not text/html")
	}

	trimmed := strings.TrimSpace(text)
	if len(trimmed) == 0 {
		f.logger.Warn().
			Str("url", fullURL).
			Msg("Fetched content is empty")
		return
	}
	if !looksLikeHTML(trimmed) {
		preview := trimmed
		if len(preview) > 100 {
			preview = preview[:100]
		}
		f.logger.Warn().
			Str("url", fullURL).
			Str("preview", preview).
			Msg("Fetched content does not look like HTML")
	}
}

// linearBackoff returns the ordinary transient-error wait for an attempt.
func (f *Fetcher) linearBackoff(attempt int) time.Duration {
	return f.config.RetryDelay * time.Duration(attempt+1)
}

// backoff sleeps for the given duration with context cancellation support,
// recording retry metrics.
func (f *Fetcher) backoff(ctx context.Context, class ErrorClass, wait time.Duration) error {
	fetchRetriesTotal.WithLabelValues(string(class)).Inc()
	fetchRetryBackoffSeconds.WithLabelValues(string(class)).Observe(wait.Seconds())

	f.logger.Debug().
		Str("error_class", string(class)).
		Dur("backoff", wait).
		Msg("Retrying request after backoff")

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retryAfterDuration parses a Retry-After response header. Returns 0 when
// the header is absent or malformed.
func retryAfterDuration(header http.Header) time.Duration {
	value := header.Get("Retry-After")
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if wait := time.Until(t); wait > 0 {
			return wait
		}
	}
	return 0
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (f *Fetcher) SetHTTPClient(client *http.Client) {
	f.httpClient = client
}
