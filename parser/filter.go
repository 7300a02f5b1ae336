package parser

import (
	"net/url"
	"path"
	"strings"
)

// noiseSegments are WordPress structural path segments that never identify
// an article: taxonomy indices, pagination, author archives, feeds, and
// system directories.
var noiseSegments = map[string]struct{}{
	"tag":         {},
	"category":    {},
	"author":      {},
	"page":        {},
	"feed":        {},
	"comments":    {},
	"wp-json":     {},
	"wp-content":  {},
	"wp-admin":    {},
	"wp-includes": {},
}

// noiseExtensions mark non-HTML resources.
var noiseExtensions = map[string]struct{}{
	".xml":  {},
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".pdf":  {},
	".css":  {},
	".js":   {},
	".rss":  {},
}

// IsArticleCandidate reports whether u plausibly points at an article hosted
// on host. The check is pure: the same URL always classifies the same way.
func IsArticleCandidate(u *url.URL, host string) bool {
	if u == nil || !strings.EqualFold(u.Host, host) {
		return false
	}
	p := u.Path
	if p == "" || p == "/" {
		return false
	}
	for _, seg := range strings.Split(strings.Trim(p, "/"), "/") {
		if _, ok := noiseSegments[strings.ToLower(seg)]; ok {
			return false
		}
	}
	if _, ok := noiseExtensions[strings.ToLower(path.Ext(p))]; ok {
		return false
	}
	return true
}
