package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/prasetya/wp-article-scraper/config"
	"github.com/prasetya/wp-article-scraper/models"
)

// Fetcher retrieves category pages for a single host through one persistent
// collector, so TCP/TLS setup is amortized across all page fetches of a run.
// Transient failures are retried with capped exponential backoff and jitter.
type Fetcher struct {
	cfg       *config.Config
	collector *colly.Collector
	metrics   *Metrics

	// mu serializes fetches; the response slot below belongs to the
	// in-flight visit.
	mu         sync.Mutex
	lastStatus int
	lastBody   []byte
}

// NewFetcher builds a fetcher locked to host.
func NewFetcher(cfg *config.Config, host string, metrics *Metrics) (*Fetcher, error) {
	if host == "" {
		return nil, fmt.Errorf("fetcher host cannot be empty")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(host),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob: "*",
		Delay:      cfg.Delay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	f := &Fetcher{
		cfg:       cfg,
		collector: collector,
		metrics:   metrics,
	}

	collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put("start", time.Now())
		f.metrics.IncRequest("started")
	})
	collector.OnResponse(func(r *colly.Response) {
		f.lastStatus = r.StatusCode
		f.lastBody = append([]byte(nil), r.Body...)
		if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
			f.metrics.ObserveDuration(time.Since(start))
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			f.lastStatus = r.StatusCode
		}
		if r != nil && r.Request != nil {
			if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
				f.metrics.ObserveDuration(time.Since(start))
			}
		}
	})

	return f, nil
}

// Fetch retrieves one page. It returns the page content on success, an
// ErrClientStatus immediately on a non-retryable 4xx, or an
// ErrRetriesExhausted carrying the last failure once the retry budget runs
// out. Backoff sleeps are non-busy and honor ctx cancellation.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*models.PageContent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := f.backoff(attempt)
			f.metrics.IncRetries()
			slog.Warn("retry",
				slog.String("url", pageURL),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.Any("error", lastErr),
			)
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		f.lastStatus = 0
		f.lastBody = nil
		err := f.collector.Visit(pageURL)
		status := f.lastStatus

		if err == nil {
			return &models.PageContent{
				URL:        pageURL,
				StatusCode: status,
				Body:       f.lastBody,
				FetchedAt:  time.Now(),
				Retries:    attempt,
			}, nil
		}

		classified := classifyError(err, status)
		f.metrics.IncError(errorTypeLabel(classified))
		if !retryable(classified) {
			return nil, classified
		}
		lastErr = classified
	}

	return nil, ErrRetriesExhausted{Attempts: f.cfg.MaxRetries + 1, Err: lastErr}
}

// backoff computes the delay before retry number attempt: base doubled per
// attempt, capped, with up to 10% jitter so parallel runs against the same
// host do not synchronize.
func (f *Fetcher) backoff(attempt int) time.Duration {
	shift := attempt - 1
	if shift < 0 {
		shift = 0
	}
	if shift > 20 {
		shift = 20
	}

	base := f.cfg.RetryBackoff
	if base <= 0 {
		base = time.Second
	}

	delay := base * time.Duration(1<<shift)
	if max := f.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	if jitterRange := int64(delay / 10); jitterRange > 0 {
		delay += time.Duration(rand.Int63n(jitterRange))
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// classifyError maps a transport error and HTTP status onto the fetch error
// taxonomy. Status takes precedence once the network succeeded.
func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch {
		case statusCode == http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		case statusCode >= 400 && statusCode < 500:
			return ErrClientStatus{Status: statusCode, Err: wrapped}
		case statusCode >= 500:
			return ErrServerStatus{Status: statusCode, Err: wrapped}
		}
	}

	if err == nil {
		return nil
	}
	return err
}
