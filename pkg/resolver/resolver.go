// Package resolver reconstructs the true address of placeholder chapter
// references. The catalog lists some chapters behind a script placeholder;
// their first page is still reachable as the continuation of the preceding
// chapter's pagination chain, so the resolver walks that chain until the
// chapter id changes.
package resolver

import (
	"context"
	"fmt"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/epubforge/novelcrawl/pkg/catalog"
	"github.com/epubforge/novelcrawl/pkg/logging"
)

// Prometheus metrics for resolution outcomes.
var (
	resolverTargetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crawl_resolver_targets_total",
		Help: "Placeholder resolution targets by outcome",
	}, []string{"outcome"})

	resolverHopsTotal = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crawl_resolver_hops_total",
		Help:    "Pagination hops consumed per successful resolution walk",
		Buckets: []float64{1, 2, 3, 5, 10, 20},
	})
)

// DefaultMaxHops bounds one resolution walk. Chapters longer than this many
// pages exist but are rare enough that the walk gives up instead.
const DefaultMaxHops = 20

// Fetcher is the page retrieval capability the resolver depends on.
type Fetcher interface {
	Fetch(ctx context.Context, address string) (string, error)
}

// NextPageFunc extracts the embedded next-page path from fetched page
// content. ok=false means the page has no continuation.
type NextPageFunc func(htmlContent string) (string, bool)

// Reason describes the outcome of one resolution walk. Absence of a next
// page and similar dead ends are expected, common outcomes, so they are
// modeled as values rather than errors.
type Reason string

const (
	// ReasonResolved marks a successful walk.
	ReasonResolved Reason = "resolved"

	// ReasonBadAddress: the start address carries no page identity.
	ReasonBadAddress Reason = "bad_address"

	// ReasonFetchFailed: the fetch layer gave up on an intermediate page.
	ReasonFetchFailed Reason = "fetch_failed"

	// ReasonNoNextPage: a page in the chain has no continuation pointer.
	ReasonNoNextPage Reason = "no_next_page"

	// ReasonBadNextPage: the continuation pointer carries no page identity.
	ReasonBadNextPage Reason = "bad_next_page"

	// ReasonCrossCollection: the pointer left the book's collection,
	// which is never expected.
	ReasonCrossCollection Reason = "cross_collection"

	// ReasonCycle: the chain pointed back to an already-visited address.
	ReasonCycle Reason = "cycle"

	// ReasonHopBudget: the hop budget ran out without a chapter change.
	ReasonHopBudget Reason = "hop_budget"

	// ReasonNoPredecessor: no resolved reference precedes the target.
	ReasonNoPredecessor Reason = "no_predecessor"

	// ReasonBadPredecessor: the predecessor's address is itself a
	// placeholder. Guarded against even though the search predicate
	// should make it impossible.
	ReasonBadPredecessor Reason = "bad_predecessor"
)

// Config holds the resolver configuration.
type Config struct {
	// BaseURL qualifies relative page paths in resolved addresses.
	BaseURL string

	// MaxHops bounds one resolution walk. Zero means DefaultMaxHops.
	MaxHops int
}

// Resolver walks pagination chains to fix placeholder chapter references.
type Resolver struct {
	fetch    Fetcher
	nextPage NextPageFunc
	base     *url.URL
	maxHops  int
	logger   zerolog.Logger
}

// New creates a resolver using the given fetch capability and next-page
// extractor.
func New(fetch Fetcher, nextPage NextPageFunc, cfg Config) (*Resolver, error) {
	if fetch == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if nextPage == nil {
		return nil, fmt.Errorf("next-page extractor is required")
	}

	var base *url.URL
	if cfg.BaseURL != "" {
		parsed, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		base = parsed
	}

	maxHops := cfg.MaxHops
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}

	return &Resolver{
		fetch:    fetch,
		nextPage: nextPage,
		base:     base,
		maxHops:  maxHops,
		logger:   logging.NewLogger("resolver"),
	}, nil
}

// ResolveNext walks the pagination chain starting at the first page of the
// chapter at prevAddress and returns the fully-qualified address of the
// following chapter's first page. The returned reason is ReasonResolved on
// success; every failure mode is a distinct reason and never an error.
func (r *Resolver) ResolveNext(ctx context.Context, prevAddress string) (string, Reason) {
	identity, ok := catalog.ParsePageIdentity(prevAddress)
	if !ok {
		r.logger.Warn().
			Str("url", prevAddress).
			Msg("Start address has no page identity")
		return "", ReasonBadAddress
	}

	visited := make(map[string]struct{})
	current := prevAddress

	for hop := 0; hop < r.maxHops; hop++ {
		full := r.absolute(current)
		if _, seen := visited[full]; seen {
			r.logger.Warn().
				Str("url", full).
				Int("hops", hop).
				Msg("Pagination chain cycled back to a visited page")
			return "", ReasonCycle
		}
		visited[full] = struct{}{}

		html, err := r.fetch.Fetch(ctx, full)
		if err != nil {
			r.logger.Warn().Err(err).
				Str("url", full).
				Int("hops", hop).
				Msg("Failed to fetch page during resolution walk")
			return "", ReasonFetchFailed
		}

		next, ok := r.nextPage(html)
		if !ok {
			r.logger.Debug().
				Str("url", full).
				Int("hops", hop).
				Msg("Page has no continuation pointer")
			return "", ReasonNoNextPage
		}

		nextIdentity, ok := catalog.ParsePageIdentity(next)
		if !ok {
			r.logger.Warn().
				Str("next", next).
				Msg("Continuation pointer has no page identity")
			return "", ReasonBadNextPage
		}

		if nextIdentity.Collection != identity.Collection {
			r.logger.Warn().
				Str("next", next).
				Str("collection", identity.Collection).
				Str("next_collection", nextIdentity.Collection).
				Msg("Continuation pointer left the collection")
			return "", ReasonCrossCollection
		}

		if nextIdentity.Chapter == identity.Chapter {
			// Still a page of the same logical chapter, keep walking.
			current = next
			continue
		}

		// Chapter id changed: this is the first page of the next chapter.
		resolved := r.absolute(next)
		resolverHopsTotal.Observe(float64(hop + 1))
		r.logger.Info().
			Str("prev", prevAddress).
			Str("resolved", resolved).
			Int("hops", hop+1).
			Msg("Resolved next chapter address")
		return resolved, ReasonResolved
	}

	r.logger.Warn().
		Str("url", prevAddress).
		Int("max_hops", r.maxHops).
		Msg("Hop budget exhausted without leaving the chapter")
	return "", ReasonHopBudget
}

// ResolveAll fixes every unresolved reference in book, in document order,
// mutating the structure in place. It never fails: each target either gets
// its real address or is left untouched with the skip logged.
//
// Because mutation happens as the traversal proceeds, an unresolved chapter
// immediately following another unresolved chapter becomes resolvable in the
// same pass once its predecessor has been fixed. The left-to-right order is
// load-bearing for that cascade.
func (r *Resolver) ResolveAll(ctx context.Context, book *catalog.Book) {
	for vi := range book.Volumes {
		volume := &book.Volumes[vi]
		for ci := range volume.Chapters {
			target := &volume.Chapters[ci]
			if target.Resolved {
				continue
			}

			predecessor := findPredecessor(book, vi, ci)
			if predecessor == nil {
				resolverTargetsTotal.WithLabelValues(string(ReasonNoPredecessor)).Inc()
				r.logger.Warn().
					Str("volume", volume.Name).
					Str("title", target.Title).
					Str("reason", string(ReasonNoPredecessor)).
					Msg("No resolved predecessor for placeholder chapter")
				continue
			}
			if predecessor.Address == "" || predecessor.Address == catalog.PlaceholderAddress {
				resolverTargetsTotal.WithLabelValues(string(ReasonBadPredecessor)).Inc()
				r.logger.Warn().
					Str("volume", volume.Name).
					Str("title", target.Title).
					Str("prev_title", predecessor.Title).
					Str("reason", string(ReasonBadPredecessor)).
					Msg("Predecessor address is not fetchable")
				continue
			}

			resolved, reason := r.ResolveNext(ctx, predecessor.Address)
			if reason != ReasonResolved {
				resolverTargetsTotal.WithLabelValues(string(reason)).Inc()
				r.logger.Warn().
					Str("volume", volume.Name).
					Str("title", target.Title).
					Str("reason", string(reason)).
					Msg("Could not resolve placeholder chapter")
				continue
			}

			if target.OriginalAddress == "" {
				target.OriginalAddress = target.Address
			}
			target.Address = resolved
			target.Resolved = true

			resolverTargetsTotal.WithLabelValues(string(ReasonResolved)).Inc()
			r.logger.Info().
				Str("volume", volume.Name).
				Str("title", target.Title).
				Str("original", target.OriginalAddress).
				Str("resolved", resolved).
				Msg("Updated placeholder chapter address")
		}
	}
}

// findPredecessor searches backward from (volumeIdx, chapterIdx) for the
// nearest reference already carrying a real address: first within the
// current volume, then through earlier volumes from their ends.
func findPredecessor(book *catalog.Book, volumeIdx, chapterIdx int) *catalog.ChapterReference {
	for vi := volumeIdx; vi >= 0; vi-- {
		chapters := book.Volumes[vi].Chapters
		start := len(chapters) - 1
		if vi == volumeIdx {
			start = chapterIdx - 1
		}
		for ci := start; ci >= 0; ci-- {
			if chapters[ci].Resolved {
				return &book.Volumes[vi].Chapters[ci]
			}
		}
	}
	return nil
}

// absolute qualifies a possibly relative page path against the base URL.
func (r *Resolver) absolute(address string) string {
	if r.base == nil {
		return address
	}
	parsed, err := url.Parse(address)
	if err != nil {
		return address
	}
	return r.base.ResolveReference(parsed).String()
}
