package catalog

import "testing"

func TestParsePageIdentity(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    PageIdentity
		ok      bool
	}{
		{
			name:    "first page, relative path",
			address: "/novel/4519/262081.html",
			want:    PageIdentity{Collection: "4519", Chapter: "262081", Page: 1},
			ok:      true,
		},
		{
			name:    "second page suffix",
			address: "/novel/4519/262081_2.html",
			want:    PageIdentity{Collection: "4519", Chapter: "262081", Page: 2},
			ok:      true,
		},
		{
			name:    "full url",
			address: "https://www.example.com/novel/4519/262081_3.html",
			want:    PageIdentity{Collection: "4519", Chapter: "262081", Page: 3},
			ok:      true,
		},
		{
			name:    "placeholder sentinel",
			address: PlaceholderAddress,
			ok:      false,
		},
		{
			name:    "catalog page",
			address: "/novel/4519/catalog",
			ok:      false,
		},
		{
			name:    "empty",
			address: "",
			ok:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParsePageIdentity(tt.address)
			if ok != tt.ok {
				t.Fatalf("ParsePageIdentity(%q) ok = %v, want %v", tt.address, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("ParsePageIdentity(%q) = %+v, want %+v", tt.address, got, tt.want)
			}
		})
	}
}

func TestPageIdentity_SameChapter(t *testing.T) {
	a, _ := ParsePageIdentity("/novel/4519/262081.html")
	b, _ := ParsePageIdentity("/novel/4519/262081_2.html")
	c, _ := ParsePageIdentity("/novel/4519/262082.html")
	d, _ := ParsePageIdentity("/novel/9999/262081.html")

	if !a.SameChapter(b) {
		t.Error("pages of the same chapter should compare equal")
	}
	if a.SameChapter(c) {
		t.Error("different chapter ids should not compare equal")
	}
	if a.SameChapter(d) {
		t.Error("different collections should not compare equal")
	}
}
