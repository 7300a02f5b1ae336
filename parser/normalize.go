package parser

import (
	"net/url"
	"strings"
)

// NormalizeURL reduces a URL to its dedup key: lowercased scheme and host,
// query string and fragment removed, trailing slash stripped. Two article
// links with the same key are the same article.
func NormalizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	p := u.EscapedPath()
	if p != "/" {
		p = strings.TrimSuffix(p, "/")
	}
	if p == "/" {
		p = ""
	}
	return scheme + "://" + host + p
}
