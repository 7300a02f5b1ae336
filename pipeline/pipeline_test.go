package pipeline

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prasetya/wp-article-scraper/config"
	"github.com/prasetya/wp-article-scraper/models"
)

type collectingWriter struct {
	mu    sync.Mutex
	links []*models.ArticleLink
}

func (cw *collectingWriter) Write(links []*models.ArticleLink) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.links = append(cw.links, links...)
	return nil
}

func (cw *collectingWriter) Close() error    { return nil }
func (cw *collectingWriter) Validate() error { return nil }

func (cw *collectingWriter) Count() int {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return len(cw.links)
}

type failingWriter struct{}

func (fw *failingWriter) Write([]*models.ArticleLink) error { return fmt.Errorf("disk full") }
func (fw *failingWriter) Close() error                      { return nil }
func (fw *failingWriter) Validate() error                   { return nil }

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.PipelineBufferSize = 64
	cfg.BatchSize = 4
	cfg.DedupeMaxSize = 1000
	return cfg
}

func link(url, title string, page int) *models.ArticleLink {
	return &models.ArticleLink{URL: url, Title: title, Page: page, DiscoveredAt: time.Unix(0, 0)}
}

func TestPipelineWritesLinks(t *testing.T) {
	writer := &collectingWriter{}
	p, err := NewPipeline(writer, testConfig())
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	p.Start(2)

	links := []*models.ArticleLink{
		link("http://example.test/2024/a/", "A", 1),
		link("http://example.test/2024/b/", "B", 1),
		link("http://example.test/2024/c/", "C", 2),
	}
	if err := p.Process(links); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := writer.Count(); got != 3 {
		t.Fatalf("written = %d, want 3", got)
	}
	metrics := p.GetMetrics()
	if processed := metrics["processed_links"].(int64); processed != 3 {
		t.Fatalf("processed = %d, want 3", processed)
	}
}

func TestPipelineDeduplicatesByNormalizedURL(t *testing.T) {
	writer := &collectingWriter{}
	p, err := NewPipeline(writer, testConfig())
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	p.Start(1)

	links := []*models.ArticleLink{
		link("http://example.test/2024/a/", "A", 1),
		link("http://example.test/2024/a", "A no slash", 2),
		link("http://example.test/2024/a/?utm_source=x", "A tracked", 3),
	}
	if err := p.Process(links); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := writer.Count(); got != 1 {
		t.Fatalf("written = %d, want 1 after dedup", got)
	}
	metrics := p.GetMetrics()
	validation := metrics["validation_errors"].(map[string]int)
	if validation["duplicate_url"] != 2 {
		t.Fatalf("duplicate_url = %d, want 2", validation["duplicate_url"])
	}
}

func TestPipelineRejectsInvalidRecords(t *testing.T) {
	writer := &collectingWriter{}
	p, err := NewPipeline(writer, testConfig())
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	p.Start(1)

	links := []*models.ArticleLink{
		link("http://example.test/2024/ok/", "OK", 1),
		link("http://example.test/2024/untitled/", "   ", 1),
		link("/relative/only", "Relative", 1),
		nil,
	}
	if err := p.Process(links); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := writer.Count(); got != 1 {
		t.Fatalf("written = %d, want 1", got)
	}
	metrics := p.GetMetrics()
	validation := metrics["validation_errors"].(map[string]int)
	if validation["invalid_record"] != 2 {
		t.Fatalf("invalid_record = %d, want 2", validation["invalid_record"])
	}
}

func TestPipelineProcessAfterClose(t *testing.T) {
	p, err := NewPipeline(&collectingWriter{}, testConfig())
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	p.Start(1)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	err = p.Process([]*models.ArticleLink{link("http://example.test/2024/a/", "A", 1)})
	if err != ErrPipelineClosed {
		t.Fatalf("process after close = %v, want ErrPipelineClosed", err)
	}
}

func TestPipelineSurfacesWriterError(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 1
	p, err := NewPipeline(&failingWriter{}, cfg)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	p.Start(1)

	// the write error lands asynchronously; Close reports it
	_ = p.Process([]*models.ArticleLink{link("http://example.test/2024/a/", "A", 1)})
	if err := p.Close(); err == nil {
		t.Fatalf("expected writer error from Close")
	}
}
