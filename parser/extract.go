// Package parser holds the pure functions between a fetched page and the
// output pipeline: anchor extraction, article classification, and URL
// normalization.
package parser

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RawLink is an anchor harvested from a page before filtering.
type RawLink struct {
	URL  *url.URL
	Text string
}

// ExtractLinks collects every anchor target in body and resolves it against
// base. Anchors that cannot be resolved to an absolute http(s) URL are
// dropped, as are fragment-only anchors, which resolve back to the page
// itself. Empty or non-HTML input yields an empty slice, never an error;
// the underlying parser recovers from malformed markup on its own.
func ExtractLinks(body []byte, base *url.URL) []RawLink {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var links []RawLink
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			// mailto:, javascript:, tel: and friends
			return
		}
		if abs.Host == "" {
			return
		}
		abs.Fragment = ""
		links = append(links, RawLink{URL: abs, Text: collapseSpace(s.Text())})
	})
	return links
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
