package catalog

import (
	"regexp"
	"strconv"
)

// Page addresses follow /<namespace>/<collectionId>/<chapterId>[_<page>].<ext>.
// The namespace segment is not part of the identity.
var pageAddressPattern = regexp.MustCompile(`/(\d+)/(\d+)(?:_(\d+))?\.[A-Za-z][A-Za-z0-9]*`)

// PageIdentity is the logical identity of a page, derived from its address.
// Two addresses with equal (Collection, Chapter) are different pages of the
// same logical chapter; a Chapter change with Collection held equal marks the
// transition to the next chapter.
type PageIdentity struct {
	Collection string
	Chapter    string
	Page       int
}

// ParsePageIdentity derives the identity from a path or full URL. A missing
// page number suffix means page 1.
func ParsePageIdentity(address string) (PageIdentity, bool) {
	m := pageAddressPattern.FindStringSubmatch(address)
	if m == nil {
		return PageIdentity{}, false
	}
	id := PageIdentity{Collection: m[1], Chapter: m[2], Page: 1}
	if m[3] != "" {
		if n, err := strconv.Atoi(m[3]); err == nil {
			id.Page = n
		}
	}
	return id, true
}

// SameChapter reports whether two identities belong to the same logical
// chapter.
func (p PageIdentity) SameChapter(other PageIdentity) bool {
	return p.Collection == other.Collection && p.Chapter == other.Chapter
}
