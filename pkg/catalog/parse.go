package catalog

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	catalogIDPattern     = regexp.MustCompile(`/novel/(\d+)/catalog`)
	lastUpdatePattern    = regexp.MustCompile(`最后更新[:：]\s*(.+)`)
	latestChapterPattern = regexp.MustCompile(`最新章节[:：]\s*(.+)`)
)

// IDFromURL extracts the book id from a catalog page URL.
func IDFromURL(catalogURL string) (string, bool) {
	m := catalogIDPattern.FindStringSubmatch(catalogURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Parse extracts the book structure from catalog page HTML. Chapter entries
// whose link is a script placeholder are kept, flagged unresolved, so the
// resolver can fix them afterwards. Relative chapter links are made absolute
// against baseURL.
func Parse(htmlContent, bookID, baseURL string) (*Book, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("parse catalog html: %w", err)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	book := &Book{
		ID:    bookID,
		Title: extractTitle(doc),
	}
	extractMeta(doc, book)

	// Volumes are selected globally rather than under #volume-list: some
	// books nest them there, others leave them as siblings of a notice item.
	index := 0
	doc.Find("div.volume.clearfix").Each(func(_ int, sel *goquery.Selection) {
		vol := Volume{
			Name: strings.TrimSpace(sel.Find("h2.v-line").First().Text()),
		}
		if href, ok := sel.Find("a.volume-cover").First().Attr("href"); ok {
			vol.FrontPage = absolute(base, href)
		}
		if src, ok := sel.Find("a.volume-cover img").First().Attr("src"); ok {
			vol.Cover = src
		}

		sel.Find("ul.chapter-list li a").Each(func(_ int, link *goquery.Selection) {
			title := strings.TrimSpace(link.Text())
			if title == "" {
				return
			}
			index++
			href, _ := link.Attr("href")
			href = strings.TrimSpace(href)

			ref := ChapterReference{Index: index, Title: title}
			if href == "" || strings.HasPrefix(href, "javascript:") {
				ref.Address = PlaceholderAddress
				ref.Resolved = false
			} else {
				ref.Address = absolute(base, href)
				ref.Resolved = true
			}
			vol.Chapters = append(vol.Chapters, ref)
		})

		if vol.Name != "" || len(vol.Chapters) > 0 {
			book.Volumes = append(book.Volumes, vol)
		}
	})

	if len(book.Volumes) == 0 {
		return nil, fmt.Errorf("no volumes found in catalog page")
	}
	return book, nil
}

// extractTitle finds the book name, preferring the meta block and falling
// back to the first h1 and then the document title.
func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("div.book-meta > h1").First().Text()); title != "" {
		return title
	}
	if title := strings.TrimSpace(doc.Find("h1").First().Text()); title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// extractMeta pulls author, last update, and latest chapter from the meta
// block spans. Their layout varies per book, so each span is checked.
func extractMeta(doc *goquery.Document, book *Book) {
	doc.Find("div.book-meta p span").Each(func(_ int, span *goquery.Selection) {
		text := strings.TrimSpace(span.Text())

		if book.Author == "" {
			if link := span.Find("a").First(); link.Length() > 0 {
				book.Author = strings.TrimSpace(link.Text())
			}
		}
		if book.LastUpdate == "" {
			if m := lastUpdatePattern.FindStringSubmatch(text); m != nil {
				book.LastUpdate = strings.TrimSpace(m[1])
			}
		}
		if book.LatestChapter == "" {
			if m := latestChapterPattern.FindStringSubmatch(text); m != nil {
				book.LatestChapter = strings.TrimSpace(m[1])
			}
		}
	})
}

// absolute resolves href against the base URL, leaving absolute links as-is.
func absolute(base *url.URL, href string) string {
	parsed, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(parsed).String()
}
