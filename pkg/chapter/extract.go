// Package chapter extracts content from chapter pages: the embedded
// pagination pointer, the title, and the body paragraphs. It also assembles
// full multi-page chapter text by following the pagination chain.
package chapter

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// The pagination pointer is carried inside the page as a script-level
// assignment. Its absence means the page has no continuation.
var nextPagePattern = regexp.MustCompile(`var\s+nextpage\s*=\s*"([^"]+)"`)

// adMarkers flags paragraphs injected into the text body that are not part
// of the chapter (site notices, anti-scrape bait, leftover script text).
var adMarkers = []string{
	"请记住本站",
	"最新网址",
	"手机版阅读",
	"function",
	"cid(",
	"google",
}

// NextPagePath returns the embedded next-page path of a chapter page.
// ok=false means the chain has no continuation; this is an expected, common
// outcome, not an error.
func NextPagePath(htmlContent string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		// Fall back to a raw scan; the assignment is plain text either way.
		if m := nextPagePattern.FindStringSubmatch(htmlContent); m != nil {
			return m[1], true
		}
		return "", false
	}

	var path string
	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := sel.Text()
		if !strings.Contains(text, "nextpage") {
			return true
		}
		if m := nextPagePattern.FindStringSubmatch(text); m != nil {
			path = m[1]
			return false
		}
		return true
	})
	if path == "" {
		return "", false
	}
	return path, true
}

// Title extracts the chapter title, preferring the main text heading.
func Title(htmlContent string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}
	if t := strings.TrimSpace(doc.Find("#mlfy_main_text > h1").First().Text()); t != "" {
		return t
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// Paragraphs extracts the cleaned body paragraphs of one chapter page.
// Paragraphs matching known ad markers are dropped. When the text container
// is missing, all paragraphs on the page are considered, which keeps partial
// extraction possible on layout variants.
func Paragraphs(htmlContent string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil
	}

	container := doc.Find("#TextContent")
	scope := container.Find("p")
	if container.Length() == 0 {
		scope = doc.Find("p")
	}

	var paragraphs []string
	scope.Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text == "" || isAdParagraph(text) {
			return
		}
		paragraphs = append(paragraphs, text)
	})
	return paragraphs
}

func isAdParagraph(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range adMarkers {
		if strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}
