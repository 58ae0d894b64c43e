// Package testutil provides testing utilities for the crawler.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock site response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockSite is a configurable mock of the novel site for testing: catalog
// pages, paginated chapter chains, and failure injection.
type MockSite struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount   int
	pathCounts     map[string]int
	UserAgentsSeen map[string]int
	RequestTimes   []time.Time
}

// NewMockSite creates a new mock site server.
func NewMockSite() *MockSite {
	mock := &MockSite{
		handlers:       make(map[string]func(w http.ResponseWriter, r *http.Request)),
		pathCounts:     make(map[string]int),
		UserAgentsSeen: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.pathCounts[r.URL.Path]++
		mock.UserAgentsSeen[r.Header.Get("User-Agent")]++
		mock.RequestTimes = append(mock.RequestTimes, time.Now())
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		http.NotFound(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockSite) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockSite) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockSite) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.pathCounts = make(map[string]int)
	m.UserAgentsSeen = make(map[string]int)
	m.RequestTimes = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockSite) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockSite) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		}
		status := resp.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// FailFirst responds with the given status for the first n requests to path,
// then delegates to a normal page response.
func (m *MockSite) FailFirst(path string, n, status int, then MockResponse) {
	var mu sync.Mutex
	failures := 0
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		fail := failures < n
		if fail {
			failures++
		}
		mu.Unlock()

		if fail {
			for key, value := range then.Headers {
				w.Header().Set(key, value)
			}
			w.WriteHeader(status)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		code := then.StatusCode
		if code == 0 {
			code = http.StatusOK
		}
		w.WriteHeader(code)
		w.Write([]byte(then.Body))
	})
}

// RequestsFor returns the number of requests made to a path.
func (m *MockSite) RequestsFor(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// ChapterPage builds a chapter page body with the given paragraphs and an
// optional embedded next-page pointer.
func ChapterPage(title, nextPath string, paragraphs ...string) string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html><head><title>")
	sb.WriteString(title)
	sb.WriteString("</title></head><body>\n")
	sb.WriteString("<div id=\"mlfy_main_text\"><h1>")
	sb.WriteString(title)
	sb.WriteString("</h1></div>\n<div id=\"TextContent\">\n")
	for _, p := range paragraphs {
		sb.WriteString("<p>")
		sb.WriteString(p)
		sb.WriteString("</p>\n")
	}
	sb.WriteString("</div>\n")
	if nextPath != "" {
		fmt.Fprintf(&sb, "<script>var nextpage=\"%s\";</script>\n", nextPath)
	}
	sb.WriteString("</body></html>")
	return sb.String()
}

// AddChapterChain installs a chain of single-page chapters in a collection.
// Each chapter's pointer leads to the next chapter's first page; the final
// chapter has no pointer.
func (m *MockSite) AddChapterChain(collection string, chapterIDs ...string) {
	for i, id := range chapterIDs {
		next := ""
		if i < len(chapterIDs)-1 {
			next = fmt.Sprintf("/novel/%s/%s.html", collection, chapterIDs[i+1])
		}
		path := fmt.Sprintf("/novel/%s/%s.html", collection, id)
		m.SetResponse(path, MockResponse{
			StatusCode: http.StatusOK,
			Body:       ChapterPage("chapter "+id, next, "paragraph one", "paragraph two"),
		})
	}
}

// AddPaginatedChapter installs a chapter split across pages, the last page
// pointing at nextChapterPath (or nothing when empty).
func (m *MockSite) AddPaginatedChapter(collection, chapterID string, pages int, nextChapterPath string) {
	for page := 1; page <= pages; page++ {
		path := fmt.Sprintf("/novel/%s/%s.html", collection, chapterID)
		if page > 1 {
			path = fmt.Sprintf("/novel/%s/%s_%d.html", collection, chapterID, page)
		}

		next := nextChapterPath
		if page < pages {
			next = fmt.Sprintf("/novel/%s/%s_%d.html", collection, chapterID, page+1)
		}

		m.SetResponse(path, MockResponse{
			StatusCode: http.StatusOK,
			Body: ChapterPage(
				"chapter "+chapterID, next,
				fmt.Sprintf("page %d text", page),
			),
		})
	}
}

// NewRateLimitResponse creates a 429 response, optionally with a
// Retry-After hint in seconds.
func NewRateLimitResponse(retryAfter string) MockResponse {
	resp := MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       "<html><body>too many requests</body></html>",
		Headers:    map[string]string{},
	}
	if retryAfter != "" {
		resp.Headers["Retry-After"] = retryAfter
	}
	return resp
}

// NewServerErrorResponse creates a 500 response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       "<html><body>internal error</body></html>",
	}
}
