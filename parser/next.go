package parser

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// nextSelectors cover the next-page controls emitted by WordPress core
// pagination and the common theme variants. The nav-previous block is the
// classic-theme "Older posts" link, which points at the next archive page.
var nextSelectors = []string{
	"a.next",
	"a.next.page-numbers",
	"link[rel='next']",
	".nav-links a.next",
	".pagination a.next",
	".nav-previous a",
}

// NextControl returns the resolved target of the page's next-page control,
// or nil when the page has none. It first looks for the known pagination
// markup, then falls back to any anchor that resolves to computed, the next
// URL expected under the site's numbering pattern.
func NextControl(body []byte, base *url.URL, computed *url.URL) *url.URL {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	for _, sel := range nextSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		href := strings.TrimSpace(node.AttrOr("href", ""))
		if href == "" {
			continue
		}
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		return base.ResolveReference(ref)
	}

	if computed == nil {
		return nil
	}
	computedKey := NormalizeURL(computed)
	var found *url.URL
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" {
			return true
		}
		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		abs := base.ResolveReference(ref)
		if NormalizeURL(abs) == computedKey {
			found = abs
			return false
		}
		return true
	})
	return found
}
