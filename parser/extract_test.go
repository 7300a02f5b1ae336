package parser

import (
	"testing"
)

func TestExtractLinksResolvesRelative(t *testing.T) {
	base := mustParse(t, "http://example.test/category/news/page/2/")
	body := []byte(`<html><body>
		<a href="/2024/absolute-path/">Absolute path</a>
		<a href="relative-slug/">Relative</a>
		<a href="../up-one/">Up one</a>
		<a href="//example.test/protocol-relative/">Protocol relative</a>
		<a href="http://example.test/full/">Full</a>
	</body></html>`)

	links := ExtractLinks(body, base)
	got := make(map[string]string, len(links))
	for _, link := range links {
		got[link.URL.String()] = link.Text
	}

	want := map[string]string{
		"http://example.test/2024/absolute-path/":                 "Absolute path",
		"http://example.test/category/news/page/2/relative-slug/": "Relative",
		"http://example.test/category/news/page/up-one/":          "Up one",
		"http://example.test/protocol-relative/":                  "Protocol relative",
		"http://example.test/full/":                               "Full",
	}
	if len(got) != len(want) {
		t.Fatalf("extracted %d links, want %d: %v", len(got), len(want), got)
	}
	for u, text := range want {
		if got[u] != text {
			t.Fatalf("link %q text = %q, want %q", u, got[u], text)
		}
	}
}

func TestExtractLinksDropsUnusable(t *testing.T) {
	base := mustParse(t, "http://example.test/")
	body := []byte(`<html><body>
		<a href="#comments">Fragment only</a>
		<a href="mailto:a@example.test">Mail</a>
		<a href="javascript:void(0)">JS</a>
		<a href="">Empty</a>
		<a>No href</a>
		<a href="/kept/">Kept</a>
	</body></html>`)

	links := ExtractLinks(body, base)
	if len(links) != 1 {
		t.Fatalf("extracted %d links, want 1: %+v", len(links), links)
	}
	if links[0].URL.String() != "http://example.test/kept/" {
		t.Fatalf("kept link = %q", links[0].URL.String())
	}
}

func TestExtractLinksStripsFragments(t *testing.T) {
	base := mustParse(t, "http://example.test/")
	body := []byte(`<a href="/2024/a/#more-123">Read more</a>`)

	links := ExtractLinks(body, base)
	if len(links) != 1 {
		t.Fatalf("extracted %d links, want 1", len(links))
	}
	if links[0].URL.Fragment != "" {
		t.Fatalf("fragment survived: %q", links[0].URL.String())
	}
}

func TestExtractLinksTolerantInput(t *testing.T) {
	base := mustParse(t, "http://example.test/")

	if links := ExtractLinks(nil, base); len(links) != 0 {
		t.Fatalf("nil body produced %d links", len(links))
	}
	if links := ExtractLinks([]byte("not html at all {}"), base); len(links) != 0 {
		t.Fatalf("non-HTML body produced %d links", len(links))
	}
	// unclosed tags must not panic or drop the valid anchor
	broken := []byte(`<div><a href="/2024/a/">Title<div><p>`)
	if links := ExtractLinks(broken, base); len(links) != 1 {
		t.Fatalf("malformed body produced %d links, want 1", len(links))
	}
}

func TestNextControl(t *testing.T) {
	base := mustParse(t, "http://example.test/category/news/")
	computed := mustParse(t, "http://example.test/category/news/page/2/")

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "next class",
			body: `<div class="nav-links"><a class="next page-numbers" href="/category/news/page/2/">Next</a></div>`,
			want: "http://example.test/category/news/page/2/",
		},
		{
			name: "rel next link",
			body: `<head><link rel="next" href="/category/news/page/2/"></head>`,
			want: "http://example.test/category/news/page/2/",
		},
		{
			name: "classic older posts",
			body: `<div class="nav-previous"><a href="/category/news/page/2/">Older posts</a></div>`,
			want: "http://example.test/category/news/page/2/",
		},
		{
			name: "plain anchor matching computed url",
			body: `<a href="/category/news/page/2/">2</a>`,
			want: "http://example.test/category/news/page/2/",
		},
		{
			name: "no pagination",
			body: `<a href="/2024/article/">Article</a>`,
			want: "",
		},
		{
			name: "empty body",
			body: "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextControl([]byte(tt.body), base, computed)
			if tt.want == "" {
				if got != nil {
					t.Fatalf("NextControl = %q, want nil", got.String())
				}
				return
			}
			if got == nil || got.String() != tt.want {
				t.Fatalf("NextControl = %v, want %q", got, tt.want)
			}
		})
	}
}
