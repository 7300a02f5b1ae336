package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prasetya/wp-article-scraper/config"
	"github.com/prasetya/wp-article-scraper/models"
	"github.com/prasetya/wp-article-scraper/pipeline"
	"github.com/prasetya/wp-article-scraper/scraper"
)

func main() {
	defaultCfg := config.DefaultConfig()
	pagesDefault := defaultCfg.MaxPages
	if value, ok, err := config.EnvInt("WPSCRAPER_MAX_PAGES"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid WPSCRAPER_MAX_PAGES: %v\n", err)
		os.Exit(1)
	} else if ok {
		pagesDefault = value
	}
	outputDefault := defaultCfg.OutputDir
	if value, ok := config.EnvString("WPSCRAPER_OUTPUT_DIR"); ok {
		outputDefault = value
	}
	agentDefault := defaultCfg.UserAgent
	if value, ok := config.EnvString("WPSCRAPER_USER_AGENT"); ok {
		agentDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("WPSCRAPER_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	maxPages := flag.Int("max-pages", pagesDefault, "Maximum archive pages to walk per category")
	delayMs := flag.Int("delay", int(defaultCfg.Delay/time.Millisecond), "Delay between requests (milliseconds)")
	timeoutSec := flag.Int("timeout", int(defaultCfg.Timeout/time.Second), "Per-request timeout (seconds)")
	maxRetries := flag.Int("max-retries", defaultCfg.MaxRetries, "Maximum retry attempts per page")
	retryBackoffMs := flag.Int("retry-backoff", int(defaultCfg.RetryBackoff/time.Millisecond), "Initial retry backoff (milliseconds)")
	retryBackoffMaxMs := flag.Int("retry-backoff-max", int(defaultCfg.RetryBackoffMax/time.Millisecond), "Maximum retry backoff (milliseconds)")
	userAgent := flag.String("user-agent", agentDefault, "User-Agent header sent with requests")
	outputDir := flag.String("output-dir", outputDefault, "Root directory for saving results")
	outputFormat := flag.String("format", defaultCfg.OutputFormat, "Output format: csv, json, or dual")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	respectRobots := flag.Bool("respect-robots", false, "Respect robots.txt directives")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] CATEGORY_URL [CATEGORY_URL...]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	urls := flag.Args()
	if len(urls) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := buildConfigFromFlags(*maxPages, *delayMs, *timeoutSec, *maxRetries, *retryBackoffMs, *retryBackoffMaxMs, *userAgent, *outputDir, *outputFormat, *metricsAddr, *respectRobots, *verbose)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// the first URL names the run's output folder
	sessionDir, err := pipeline.SessionDir(cfg.OutputDir, urls[0])
	if err != nil {
		slog.Error("creating output directory", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting scrape",
		slog.Int("categories", len(urls)),
		slog.Int("max_pages", cfg.MaxPages),
		slog.String("output_dir", sessionDir),
	)

	writer, err := createWriter(cfg.OutputFormat, filepath.Join(sessionDir, "articles.csv"))
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing the current page before stopping")
	}()

	metrics := scraper.NewMetrics()
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	p, err := pipeline.NewPipeline(writer, cfg)
	if err != nil {
		slog.Error("initialising pipeline", slog.Any("error", err))
		os.Exit(1)
	}
	p.Start(2)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	startTime := time.Now()
	results, invalid := runSessions(ctx, cfg, urls, metrics, p)

	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(results, time.Since(startTime), sessionDir, p.GetMetrics())

	totalLinks := 0
	hadError := invalid > 0
	for _, result := range results {
		totalLinks += len(result.Links)
		if result.Reason.Aborted() {
			hadError = true
		}
	}
	if hadError && totalLinks == 0 {
		os.Exit(1)
	}
}

// runSessions walks every category URL, one session each. Sessions run
// concurrently; same-host sessions serialize their fetches through the
// shared lock registry. A bad URL skips only its own session.
func runSessions(ctx context.Context, cfg *config.Config, urls []string, metrics *scraper.Metrics, p *pipeline.Pipeline) ([]*models.SessionResult, int) {
	hosts := scraper.NewHostLocks()

	var wg sync.WaitGroup
	resultCh := make(chan *models.SessionResult, len(urls))
	invalid := 0

	for _, raw := range urls {
		sess, err := scraper.NewSession(cfg, raw, metrics, hosts)
		if err != nil {
			slog.Error("skipping category", slog.String("url", raw), slog.Any("error", err))
			invalid++
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := sess.Run(ctx)
			if err := p.Process(result.Links); err != nil && !errors.Is(err, pipeline.ErrPipelineClosed) {
				slog.Error("pipeline process error", slog.Any("error", err))
			}
			resultCh <- result
		}()
	}

	wg.Wait()
	close(resultCh)

	results := make([]*models.SessionResult, 0, len(urls))
	for result := range resultCh {
		results = append(results, result)
	}
	return results, invalid
}

func buildConfigFromFlags(maxPages, delayMs, timeoutSec, maxRetries, retryBackoffMs, retryBackoffMaxMs int, userAgent, outputDir, outputFormat, metricsAddr string, respectRobots, verbose bool) *config.Config {
	cfg := config.DefaultConfig()
	cfg.MaxPages = maxPages
	cfg.Delay = time.Duration(delayMs) * time.Millisecond
	cfg.Timeout = time.Duration(timeoutSec) * time.Second
	cfg.MaxRetries = maxRetries
	cfg.RetryBackoff = time.Duration(retryBackoffMs) * time.Millisecond
	cfg.RetryBackoffMax = time.Duration(retryBackoffMaxMs) * time.Millisecond
	cfg.UserAgent = userAgent
	cfg.OutputDir = outputDir
	cfg.OutputFormat = strings.ToLower(outputFormat)
	cfg.MetricsAddr = metricsAddr
	cfg.RespectRobotsTxt = respectRobots
	cfg.Verbose = verbose
	return cfg
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(strings.TrimSuffix(filename, ".csv") + ".jsonl")
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".jsonl"
		return pipeline.NewDualWriter(filename, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(results []*models.SessionResult, duration time.Duration, outputDir string, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")

	totalLinks := 0
	totalPages := 0
	totalRetries := 0
	for _, result := range results {
		totalLinks += len(result.Links)
		totalPages += result.PagesUsed
		totalRetries += result.RetryCount
		fmt.Printf("  %-40s %5d links, %3d pages, reason=%s\n",
			result.CategoryURL, len(result.Links), result.PagesUsed, result.Reason)
		if result.Err != nil {
			fmt.Printf("    error: %v\n", result.Err)
		}
	}

	written := int64(0)
	if processed, ok := metrics["processed_links"].(int64); ok {
		written = processed
	}

	fmt.Printf("  Total links:   %d\n", totalLinks)
	fmt.Printf("  Written:       %d\n", written)
	fmt.Printf("  Pages fetched: %d\n", totalPages)
	fmt.Printf("  Retries:       %d\n", totalRetries)
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Printf("  Validation:    %v\n", valErrors)
	}
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Printf("  Output dir:    %s\n", outputDir)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
