package chapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/epubforge/novelcrawl/pkg/catalog"
	"github.com/epubforge/novelcrawl/pkg/logging"
)

var chapterPagesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "crawl_chapter_pages_total",
	Help: "Chapter pages fetched during content assembly",
})

// Fetcher is the page retrieval capability the downloader depends on.
type Fetcher interface {
	Fetch(ctx context.Context, address string) (string, error)
}

// Downloader assembles full chapter text by fetching a chapter's first page
// and following the embedded pagination chain while the chapter id is
// unchanged. Fetching is strictly sequential; pacing lives in the fetcher.
type Downloader struct {
	fetch    Fetcher
	maxPages int
	logger   zerolog.Logger
}

// NewDownloader creates a chapter downloader. maxPages bounds the pages
// followed for one chapter; values <= 0 fall back to 50.
func NewDownloader(fetch Fetcher, maxPages int) *Downloader {
	if maxPages <= 0 {
		maxPages = 50
	}
	return &Downloader{
		fetch:    fetch,
		maxPages: maxPages,
		logger:   logging.NewLogger("chapter"),
	}
}

// Download fetches every page of the chapter at address and returns the
// title and the concatenated paragraph text.
func (d *Downloader) Download(ctx context.Context, address string) (string, string, error) {
	identity, ok := catalog.ParsePageIdentity(address)
	if !ok {
		return "", "", fmt.Errorf("address %q has no page identity", address)
	}

	html, err := d.fetch.Fetch(ctx, address)
	if err != nil {
		return "", "", fmt.Errorf("fetch chapter first page: %w", err)
	}
	chapterPagesTotal.Inc()

	title := Title(html)
	paragraphs := Paragraphs(html)

	for page := 2; page <= d.maxPages; page++ {
		next, ok := NextPagePath(html)
		if !ok {
			break
		}
		nextIdentity, ok := catalog.ParsePageIdentity(next)
		if !ok || !nextIdentity.SameChapter(identity) {
			// The pointer crossed into the next chapter; this chapter
			// is complete.
			break
		}

		html, err = d.fetch.Fetch(ctx, next)
		if err != nil {
			return "", "", fmt.Errorf("fetch chapter page %d: %w", page, err)
		}
		chapterPagesTotal.Inc()
		paragraphs = append(paragraphs, Paragraphs(html)...)

		d.logger.Debug().
			Str("url", next).
			Int("page", page).
			Msg("Fetched chapter continuation page")
	}

	return title, strings.Join(paragraphs, "\n\n"), nil
}
