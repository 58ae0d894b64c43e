package fetcher

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/htmlindex"
)

// decompressBody reverses the Content-Encoding applied by the server. We only
// advertise gzip and deflate, but some CDN configurations answer with Brotli
// regardless, so that is handled too. An error here triggers a single
// uncompressed re-request in the caller.
func decompressBody(encoding string, body []byte) ([]byte, error) {
	enc := strings.ToLower(strings.TrimSpace(encoding))
	switch {
	case enc == "" || enc == "identity":
		return body, nil
	case strings.Contains(enc, "br"):
		out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, fmt.Errorf("brotli decompress: %w", err)
		}
		return out, nil
	case strings.Contains(enc, "gzip"):
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip decompress: %w", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("gzip decompress: %w", err)
		}
		return out, nil
	case strings.Contains(enc, "deflate"):
		r := flate.NewReader(bytes.NewReader(body))
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("deflate decompress: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", enc)
	}
}

// declaredCharset extracts the charset parameter from a Content-Type header,
// lowercased, or "" when absent.
func declaredCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(params["charset"])
}

// unreliableCharset reports whether a declared charset is one of the
// defaults servers emit without actually checking the payload. Those are
// re-sniffed from the bytes instead of trusted.
func unreliableCharset(cs string) bool {
	switch cs {
	case "", "iso-8859-1", "latin1", "latin-1":
		return true
	}
	return false
}

// decodeText converts raw response bytes to a UTF-8 string. A trustworthy
// declared charset is used directly; otherwise the actual encoding is
// sniffed from the bytes (BOM, then HTML meta, then content heuristics).
// Undecodable bytes are replaced rather than failing the fetch.
func decodeText(raw []byte, contentType string) string {
	if cs := declaredCharset(contentType); !unreliableCharset(cs) {
		if enc, err := htmlindex.Get(cs); err == nil {
			if out, err := enc.NewDecoder().Bytes(raw); err == nil {
				return string(out)
			}
		}
	}

	// DetermineEncoding would trust the header's charset parameter before
	// sniffing, so the unreliable declaration must not reach it.
	enc, _, _ := charset.DetermineEncoding(raw, "")
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		// Last resort: interpret as UTF-8 with replacement.
		return string(raw)
	}
	return string(out)
}

// looksLikeHTML reports whether decoded text starts like an HTML document.
func looksLikeHTML(text string) bool {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	return strings.HasPrefix(lower, "<!") || strings.HasPrefix(lower, "<html")
}
