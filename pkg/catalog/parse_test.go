package catalog

import (
	"testing"
)

const catalogFixture = `<!DOCTYPE html>
<html>
<head><title>测试书目录</title></head>
<body>
<div class="book-meta">
  <h1>异世界测试记</h1>
  <p>
    <span>作者: <a href="/authorarticle/someone.html">某作者</a></span>
    <span>最后更新：2024-03-01</span>
    <span>最新章节：第四章</span>
  </p>
</div>
<div id="volume-list">
  <div class="volume clearfix">
    <h2 class="v-line">第一卷</h2>
    <a class="volume-cover" href="/novel/4519/vol1.html"><img src="https://img.example.com/v1.jpg"></a>
    <ul class="chapter-list clearfix">
      <li class="col-4"><a href="/novel/4519/262081.html">第一章</a></li>
      <li class="col-4"><a href="javascript:cid(0)">第二章</a></li>
    </ul>
  </div>
  <div class="volume clearfix">
    <h2 class="v-line">第二卷</h2>
    <ul class="chapter-list clearfix">
      <li class="col-4"><a href="https://www.example.com/novel/4519/262083.html">第三章</a></li>
      <li class="col-4"><a href="">第四章</a></li>
    </ul>
  </div>
</div>
</body>
</html>`

func TestParse(t *testing.T) {
	book, err := Parse(catalogFixture, "4519", "https://www.example.com")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if book.ID != "4519" {
		t.Errorf("ID = %q, want 4519", book.ID)
	}
	if book.Title != "异世界测试记" {
		t.Errorf("Title = %q, want 异世界测试记", book.Title)
	}
	if book.Author != "某作者" {
		t.Errorf("Author = %q, want 某作者", book.Author)
	}
	if book.LastUpdate != "2024-03-01" {
		t.Errorf("LastUpdate = %q, want 2024-03-01", book.LastUpdate)
	}
	if book.LatestChapter != "第四章" {
		t.Errorf("LatestChapter = %q, want 第四章", book.LatestChapter)
	}

	if len(book.Volumes) != 2 {
		t.Fatalf("got %d volumes, want 2", len(book.Volumes))
	}

	v1 := book.Volumes[0]
	if v1.Name != "第一卷" {
		t.Errorf("volume name = %q, want 第一卷", v1.Name)
	}
	if v1.FrontPage != "https://www.example.com/novel/4519/vol1.html" {
		t.Errorf("front page = %q", v1.FrontPage)
	}
	if len(v1.Chapters) != 2 {
		t.Fatalf("volume 1 has %d chapters, want 2", len(v1.Chapters))
	}

	first := v1.Chapters[0]
	if !first.Resolved {
		t.Error("first chapter should be resolved")
	}
	if first.Address != "https://www.example.com/novel/4519/262081.html" {
		t.Errorf("first chapter address = %q", first.Address)
	}
	if first.Index != 1 {
		t.Errorf("first chapter index = %d, want 1", first.Index)
	}

	second := v1.Chapters[1]
	if second.Resolved {
		t.Error("placeholder chapter should be unresolved")
	}
	if second.Address != PlaceholderAddress {
		t.Errorf("placeholder address = %q, want %q", second.Address, PlaceholderAddress)
	}
	if second.Index != 2 {
		t.Errorf("placeholder index = %d, want 2", second.Index)
	}

	v2 := book.Volumes[1]
	if len(v2.Chapters) != 2 {
		t.Fatalf("volume 2 has %d chapters, want 2", len(v2.Chapters))
	}
	if v2.Chapters[0].Address != "https://www.example.com/novel/4519/262083.html" {
		t.Errorf("absolute link rewritten: %q", v2.Chapters[0].Address)
	}
	if v2.Chapters[1].Resolved {
		t.Error("empty href should produce an unresolved placeholder")
	}
	if v2.Chapters[1].Index != 4 {
		t.Errorf("chapter index = %d, want 4 (global ordinal)", v2.Chapters[1].Index)
	}
}

func TestParse_NoVolumes(t *testing.T) {
	_, err := Parse("<html><body><h1>empty</h1></body></html>", "1", "https://www.example.com")
	if err == nil {
		t.Fatal("Parse() = nil error for page without volumes")
	}
}

func TestIDFromURL(t *testing.T) {
	tests := []struct {
		url    string
		wantID string
		wantOK bool
	}{
		{"https://www.example.com/novel/4519/catalog", "4519", true},
		{"/novel/4519/catalog", "4519", true},
		{"https://www.example.com/novel/4519/262081.html", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		id, ok := IDFromURL(tt.url)
		if id != tt.wantID || ok != tt.wantOK {
			t.Errorf("IDFromURL(%q) = (%q, %v), want (%q, %v)", tt.url, id, ok, tt.wantID, tt.wantOK)
		}
	}
}

func TestBookCounts(t *testing.T) {
	book := &Book{
		Volumes: []Volume{
			{Chapters: []ChapterReference{
				{Index: 1, Resolved: true},
				{Index: 2, Resolved: false},
			}},
			{Chapters: []ChapterReference{
				{Index: 3, Resolved: false},
			}},
		},
	}

	if got := book.ChapterCount(); got != 3 {
		t.Errorf("ChapterCount() = %d, want 3", got)
	}
	if got := book.UnresolvedCount(); got != 2 {
		t.Errorf("UnresolvedCount() = %d, want 2", got)
	}
}
