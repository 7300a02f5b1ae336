// Package scraper implements the pagination engine: a fetcher with retry and
// backoff, and a per-category session that walks numbered archive pages
// until a termination guard fires.
package scraper

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prasetya/wp-article-scraper/config"
	"github.com/prasetya/wp-article-scraper/models"
	"github.com/prasetya/wp-article-scraper/parser"
)

type sessionState int

const (
	stateInit sessionState = iota
	stateFetchingPage
	stateExtractingLinks
	stateDeciding
	stateDone
	stateAborted
)

// Session owns the scrape of one category URL: the visited-page set, the
// seen-article keys, and the accumulated links. Sessions share nothing with
// each other beyond the optional host lock registry and metrics.
type Session struct {
	cfg     *config.Config
	fetcher *Fetcher
	metrics *Metrics
	hosts   *HostLocks

	base *url.URL
	host string

	page    int
	current string
	visited map[string]struct{}
	order   []string
	seen    map[string]struct{}
	links   []*models.ArticleLink
	retries int
}

// NewSession validates rawURL and prepares a session for it. hosts may be
// shared across sessions to serialize same-host fetching; nil gets a
// private registry.
func NewSession(cfg *config.Config, rawURL string, metrics *Metrics, hosts *HostLocks) (*Session, error) {
	parsed, err := config.ValidateCategoryURL(rawURL)
	if err != nil {
		return nil, err
	}

	base := *parsed
	base.RawQuery = ""
	base.Fragment = ""
	// category URLs always end in a slash so page/N/ appends cleanly
	base.Path = strings.TrimSuffix(base.Path, "/") + "/"

	fetcher, err := NewFetcher(cfg, base.Host, metrics)
	if err != nil {
		return nil, err
	}
	if hosts == nil {
		hosts = NewHostLocks()
	}

	return &Session{
		cfg:     cfg,
		fetcher: fetcher,
		metrics: metrics,
		hosts:   hosts,
		base:    &base,
		host:    base.Host,
		visited: make(map[string]struct{}),
		seen:    make(map[string]struct{}),
	}, nil
}

// Run drives the state machine to a terminal state and returns the
// accumulated links with a termination reason. Aborted sessions still
// return what was collected as a partial result.
func (s *Session) Run(ctx context.Context) *models.SessionResult {
	if ctx == nil {
		ctx = context.Background()
	}
	result := &models.SessionResult{
		CategoryURL: s.base.String(),
		StartTime:   time.Now(),
	}

	var (
		state          = stateInit
		content        *models.PageContent
		pageCandidates int
		pageNew        int
		nextCtl        *url.URL
		reason         models.Reason
	)

	for {
		switch state {
		case stateInit:
			s.page = 1
			s.current = s.pageURL(1).String()
			state = stateFetchingPage

		case stateFetchingPage:
			var err error
			s.hosts.Lock(s.host)
			content, err = s.fetcher.Fetch(ctx, s.current)
			s.hosts.Unlock(s.host)
			if err != nil {
				result.Err = err
				reason = abortReason(err)
				state = stateAborted
				continue
			}
			s.markVisited(s.current)
			s.order = append(s.order, s.current)
			s.retries += content.Retries
			s.metrics.IncPages()
			slog.Info("page_fetched",
				slog.String("url", s.current),
				slog.Int("page", s.page),
				slog.Int("status", content.StatusCode),
				slog.Int("retries", content.Retries),
			)
			state = stateExtractingLinks

		case stateExtractingLinks:
			pageBase, err := url.Parse(content.URL)
			if err != nil {
				pageBase = s.base
			}
			raw := parser.ExtractLinks(content.Body, pageBase)
			if len(raw) == 0 && len(content.Body) > 0 {
				slog.Warn("extraction produced no anchors",
					slog.String("url", s.current),
					slog.Int("body_bytes", len(content.Body)),
				)
			}
			pageCandidates, pageNew = s.merge(raw)
			nextCtl = parser.NextControl(content.Body, pageBase, s.pageURL(s.page+1))
			content = nil // body is transient, gone once extraction is done
			s.metrics.AddLinks(pageNew)
			slog.Info("links_found",
				slog.Int("page", s.page),
				slog.Int("count", pageNew),
				slog.Int("candidates", pageCandidates),
			)
			state = stateDeciding

		case stateDeciding:
			next := s.pageURL(s.page + 1)
			switch {
			case pageCandidates > 0 && pageNew == 0:
				// the site is replaying earlier content for this page number
				reason = models.ReasonDuplicateDetected
				state = stateDone
			case nextCtl != nil && s.isVisited(nextCtl):
				// the next control points back into the pages already walked
				reason = models.ReasonLoopDetected
				state = stateDone
			case s.isVisited(next):
				reason = models.ReasonLoopDetected
				state = stateDone
			case nextCtl == nil:
				reason = models.ReasonExhaustedPages
				state = stateDone
			case s.page >= s.cfg.MaxPages:
				reason = models.ReasonPageLimit
				state = stateDone
			case ctx.Err() != nil:
				reason = models.ReasonCancelled
				state = stateDone
			default:
				s.page++
				s.current = next.String()
				state = stateFetchingPage
			}

		case stateDone, stateAborted:
			result.Reason = reason
			result.EndTime = time.Now()
			result.Links = s.links
			result.PagesUsed = len(s.order)
			result.RetryCount = s.retries
			s.metrics.IncSession(string(reason))
			slog.Info("session_terminated",
				slog.String("category", result.CategoryURL),
				slog.String("reason", string(reason)),
				slog.Int("links", len(s.links)),
				slog.Int("pages", result.PagesUsed),
			)
			return result
		}
	}
}

// merge filters raw anchors down to on-host article candidates and folds the
// unseen ones into the session set. It returns the candidate count on this
// page and how many of those were new.
func (s *Session) merge(raw []parser.RawLink) (candidates, added int) {
	for _, link := range raw {
		if !parser.IsArticleCandidate(link.URL, s.host) {
			continue
		}
		if link.Text == "" {
			// image-only anchors carry no usable title
			continue
		}
		candidates++
		key := parser.NormalizeURL(link.URL)
		if _, ok := s.seen[key]; ok {
			continue
		}
		s.seen[key] = struct{}{}
		s.links = append(s.links, &models.ArticleLink{
			URL:          link.URL.String(),
			Title:        link.Text,
			Page:         s.page,
			DiscoveredAt: time.Now(),
		})
		added++
	}
	return candidates, added
}

// Visited pages are tracked by normalized URL so trailing-slash and query
// variants of the same page count as one visit.
func (s *Session) markVisited(rawURL string) {
	if parsed, err := url.Parse(rawURL); err == nil {
		s.visited[parser.NormalizeURL(parsed)] = struct{}{}
	}
}

func (s *Session) isVisited(u *url.URL) bool {
	_, ok := s.visited[parser.NormalizeURL(u)]
	return ok
}

// pageURL builds the classic WordPress archive URL for page n: the category
// base for page 1, base/page/n/ beyond that.
func (s *Session) pageURL(n int) *url.URL {
	u := *s.base
	if n > 1 {
		u.Path = u.Path + "page/" + strconv.Itoa(n) + "/"
	}
	return &u
}

func abortReason(err error) models.Reason {
	var client ErrClientStatus
	if errors.As(err, &client) {
		return models.ReasonClientError
	}
	var exhausted ErrRetriesExhausted
	if errors.As(err, &exhausted) {
		return models.ReasonRetriesExhausted
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return models.ReasonCancelled
	}
	return models.ReasonRetriesExhausted
}
