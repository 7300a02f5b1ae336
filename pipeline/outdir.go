package pipeline

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var nonSlugChars = regexp.MustCompile(`[^\w\s-]`)

// SlugifyHost turns a URL's host into a filesystem-safe folder fragment,
// e.g. https://blog.example.com/food -> blog_example_com.
func SlugifyHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "unknown"
	}
	host := parsed.Host
	if host == "" {
		// fall back for inputs without a scheme
		host = parsed.Path
	}
	slug := nonSlugChars.ReplaceAllString(host, "_")
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return "unknown"
	}
	return slug
}

// SessionDir creates and returns a per-run output directory under baseDir,
// named from the first category URL's host plus a timestamp so repeated
// runs never clobber each other.
func SessionDir(baseDir, firstURL string) (string, error) {
	name := fmt.Sprintf("%s_%s", SlugifyHost(firstURL), time.Now().Format("20060102_150405"))
	dir := filepath.Join(baseDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory %q: %w", dir, err)
	}
	return dir, nil
}
