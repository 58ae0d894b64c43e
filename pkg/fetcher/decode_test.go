package fetcher

import (
	"bytes"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestDecompressBody(t *testing.T) {
	plain := []byte("<html><body>hello</body></html>")

	var gzipped bytes.Buffer
	zw := gzip.NewWriter(&gzipped)
	zw.Write(plain)
	zw.Close()

	var brotlied bytes.Buffer
	bw := brotli.NewWriter(&brotlied)
	bw.Write(plain)
	bw.Close()

	tests := []struct {
		name     string
		encoding string
		body     []byte
		want     []byte
		wantErr  bool
	}{
		{"identity", "", plain, plain, false},
		{"gzip", "gzip", gzipped.Bytes(), plain, false},
		{"brotli", "br", brotlied.Bytes(), plain, false},
		{"unsupported", "zstd", plain, nil, true},
		{"corrupt gzip", "gzip", []byte{0x1f, 0x8b, 0xff}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decompressBody(tt.encoding, tt.body)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decompressBody() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !bytes.Equal(got, tt.want) {
				t.Errorf("decompressBody() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeText_TrustedCharset(t *testing.T) {
	raw, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte("中文测试"))
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	got := decodeText(raw, "text/html; charset=gbk")
	if got != "中文测试" {
		t.Errorf("decodeText() = %q, want 中文测试", got)
	}
}

func TestDecodeText_UnreliableCharsetSniffed(t *testing.T) {
	page := `<html><head><meta charset="gbk"></head><body>简体内容</body></html>`
	raw, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(page))
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	// ISO-8859-1 declarations on this site are boilerplate, not truth.
	got := decodeText(raw, "text/html; charset=ISO-8859-1")
	if !strings.Contains(got, "简体内容") {
		t.Errorf("decodeText() did not sniff past the declared charset: %q", got)
	}
}

func TestDecodeText_UTF8Passthrough(t *testing.T) {
	body := "<html><body>already utf-8 中文</body></html>"
	if got := decodeText([]byte(body), "text/html; charset=utf-8"); got != body {
		t.Errorf("decodeText() = %q, want unchanged", got)
	}
}

func TestLooksLikeHTML(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"<!DOCTYPE html><html></html>", true},
		{"<html lang=\"zh\"><body/></html>", true},
		{"{\"error\": \"blocked\"}", false},
		{"plain text", false},
	}
	for _, tt := range tests {
		if got := looksLikeHTML(tt.text); got != tt.want {
			t.Errorf("looksLikeHTML(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
