package pipeline

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/prasetya/wp-article-scraper/models"
)

func sampleLinks() []*models.ArticleLink {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return []*models.ArticleLink{
		{URL: "http://example.test/2024/a/", Title: "First, with comma", Page: 1, DiscoveredAt: at},
		{URL: "http://example.test/2024/b/", Title: "Second", Page: 2, DiscoveredAt: at},
	}
}

func TestCSVWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "articles.csv")

	w, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("new csv writer: %v", err)
	}
	if err := w.Write(sampleLinks()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !bytes.HasPrefix(raw, utf8BOM) {
		t.Fatalf("csv output missing UTF-8 BOM")
	}

	records, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(raw, utf8BOM))).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(records))
	}
	if strings.Join(records[0], ",") != "title,url,page,discovered_at" {
		t.Fatalf("header = %v", records[0])
	}
	if records[1][0] != "First, with comma" || records[1][2] != "1" {
		t.Fatalf("row = %v", records[1])
	}
}

func TestJSONWriterWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "articles.jsonl")

	w, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("new json writer: %v", err)
	}
	if err := w.Write(sampleLinks()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var link models.ArticleLink
		if err := json.Unmarshal(scanner.Bytes(), &link); err != nil {
			t.Fatalf("line %d not valid json: %v", lines+1, err)
		}
		lines++
	}
	if lines != 2 {
		t.Fatalf("lines = %d, want 2", lines)
	}
}

func TestDualWriterWritesBoth(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "articles.csv")
	jsonPath := filepath.Join(dir, "articles.jsonl")

	w, err := NewDualWriter(csvPath, jsonPath)
	if err != nil {
		t.Fatalf("new dual writer: %v", err)
	}
	if err := w.Write(sampleLinks()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	for _, path := range []string{csvPath, jsonPath} {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat %s: %v", path, err)
		}
		if info.Size() == 0 {
			t.Fatalf("%s is empty", path)
		}
	}
}

func TestSlugifyHost(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{url: "https://blog.example.com/category/food/", want: "blog_example_com"},
		{url: "http://Example.COM/", want: "example_com"},
		{url: "example.com/path", want: "example_com_path"},
		{url: "", want: "unknown"},
	}

	for _, tt := range tests {
		if got := SlugifyHost(tt.url); got != tt.want {
			t.Fatalf("SlugifyHost(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestSessionDirNaming(t *testing.T) {
	base := t.TempDir()
	dir, err := SessionDir(base, "https://blog.example.com/category/food/")
	if err != nil {
		t.Fatalf("session dir: %v", err)
	}

	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("directory not created: %v", err)
	}
	name := filepath.Base(dir)
	if matched, _ := regexp.MatchString(`^blog_example_com_\d{8}_\d{6}$`, name); !matched {
		t.Fatalf("directory name %q does not match slug_timestamp pattern", name)
	}
}
