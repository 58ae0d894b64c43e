package fetcher

import "math/rand"

// defaultUserAgents is a pool of common browser identities. One is picked at
// random for every attempt so consecutive requests do not present a single
// stable fingerprint. This is advisory camouflage, not a correctness
// requirement.
var defaultUserAgents = []string{
	// Chrome Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	// Chrome macOS
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	// Edge
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36 Edg/122.0.0.0",
	// Firefox
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:123.0) Gecko/20100101 Firefox/123.0",
	// Safari macOS
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 " +
		"(KHTML, like Gecko) Version/17.3 Safari/605.1.15",
}

// randomUserAgent picks a client identity uniformly at random from the pool,
// independent of previous picks.
func (f *Fetcher) randomUserAgent() string {
	return f.userAgents[rand.Intn(len(f.userAgents))]
}
