// Package catalog defines the book structure extracted from a catalog page:
// ordered volumes of chapter references, some of which carry a placeholder
// address instead of a fetchable location.
package catalog

// PlaceholderAddress is the sentinel the site lists for chapters whose real
// address is not published in the catalog. It must never be dereferenced;
// the resolver replaces it by walking the preceding chapter's pagination.
const PlaceholderAddress = "javascript:cid(0)"

// ChapterReference is one catalog entry. Resolved=false means Address is a
// placeholder, not a fetchable location. OriginalAddress is set exactly once,
// at the moment of successful resolution, preserving the pre-resolution
// placeholder for audit.
type ChapterReference struct {
	Index           int    `json:"index"`
	Title           string `json:"title"`
	Address         string `json:"url"`
	Resolved        bool   `json:"resolved"`
	OriginalAddress string `json:"original_url,omitempty"`
}

// Volume is an ordered sequence of chapter references. Insertion order is
// the canonical reading order.
type Volume struct {
	Name      string             `json:"volume_name"`
	Cover     string             `json:"cover,omitempty"`
	FrontPage string             `json:"front_page,omitempty"`
	Chapters  []ChapterReference `json:"chapters"`
}

// Book is the full catalog structure of one book.
type Book struct {
	ID            string   `json:"book_id"`
	Title         string   `json:"name"`
	Author        string   `json:"author,omitempty"`
	LastUpdate    string   `json:"last_update,omitempty"`
	LatestChapter string   `json:"latest_chapter,omitempty"`
	Volumes       []Volume `json:"volumes"`
}

// ChapterCount returns the total number of chapter references.
func (b *Book) ChapterCount() int {
	n := 0
	for _, v := range b.Volumes {
		n += len(v.Chapters)
	}
	return n
}

// UnresolvedCount returns the number of references still carrying a
// placeholder address. Callers detect remaining resolution failures by
// re-scanning for unresolved entries.
func (b *Book) UnresolvedCount() int {
	n := 0
	for _, v := range b.Volumes {
		for _, c := range v.Chapters {
			if !c.Resolved {
				n++
			}
		}
	}
	return n
}
