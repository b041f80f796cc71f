package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	"unshorten/internal/api"
	"unshorten/internal/config"
	"unshorten/internal/engine"
	"unshorten/internal/policy"
	"unshorten/internal/resolver"
	"unshorten/pkg/cache"
	"unshorten/pkg/cache/rediscache"
	"unshorten/pkg/domain"
	"unshorten/pkg/logger"
	"unshorten/pkg/metrics"
	"unshorten/pkg/prober/httpprober"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func setupServer(ctx context.Context, cfg *config.Config) func(ctx context.Context) {
	server := api.NewServer(api.NewOptions(cfg))

	go func() {
		logger.Info(ctx, "starting debug server...", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logger.Error(ctx, "could not start debug server", zap.Error(err))
			}
		}
	}()

	return func(ctx context.Context) {
		logger.Info(ctx, "stopping debug server...")
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(ctx, "could not stop debug server", zap.Error(err))
		}
	}
}

func expandCommand(cfg *config.Config) *cobra.Command {
	var (
		domainsPath     string
		domainsNoHeader bool
		noCache         bool
	)

	cmd := &cobra.Command{
		Use:   "expand INPUT OUTPUT",
		Short: "Expands shortened URLs from INPUT and writes final URLs to OUTPUT",
		Long: `Expands shortened URLs by following their redirect chains.

INPUT is a file with one URL per line; OUTPUT receives one line per input URL,
in the same order, containing the expanded URL or the original one when the
URL was skipped or failed to resolve. Use "-" for stdin and stdout.`,
		Args: cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			runExpand(ctx, cfg, args[0], args[1], domainsPath, domainsNoHeader, noCache)
		},
	}

	cmd.Flags().StringVarP(&domainsPath, "domains", "d", "",
		"CSV file whose first column lists domains to allow")
	cmd.Flags().BoolVar(&domainsNoHeader, "domains-noheader", false,
		"Domains file has no header row")
	cmd.Flags().BoolVar(&noCache, "no-cache", false,
		"Disable the shared Redis result store")

	return cmd
}

//nolint:funlen
func runExpand(ctx context.Context,
	cfg *config.Config,
	inputPath, outputPath, domainsPath string,
	domainsNoHeader, noCache bool) {
	urls, err := readURLs(inputPath)
	if err != nil {
		logger.Fatal(ctx, "could not read input", zap.Error(err))
	}
	logger.Info(ctx, "loaded input", zap.Int("urls", len(urls)))

	popts := policy.NewOptions(cfg)
	if domainsPath != "" {
		domains, err := loadDomains(domainsPath, domainsNoHeader)
		if err != nil {
			logger.Fatal(ctx, "could not load domains file", zap.Error(err))
		}
		popts.AllowedDomains = append(popts.AllowedDomains, domains...)
		logger.Info(ctx, "loaded domains file", zap.Int("domains", len(domains)))
	}

	copts := cache.Options{
		Capacity:      cfg.Cache.Capacity,
		CacheFailures: cfg.Cache.CacheFailures,
	}
	if cfg.Cache.Redis.Addr != "" && !noCache {
		store := rediscache.New(rediscache.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			TTL:      cfg.Cache.Redis.TTL,
		})
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn(ctx, "could not close redis client", zap.Error(err))
			}
		}()
		copts.Store = store
	}
	resolutionCache := cache.New(copts)

	m, err := metrics.New()
	if err != nil {
		logger.Fatal(ctx, "could not create metrics", zap.Error(err))
	}

	if cfg.HTTP.Addr != "" {
		stopServer := setupServer(ctx, cfg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout)
			defer cancel()

			stopServer(shutdownCtx)
		}()
	}

	expander := engine.New(
		policy.New(popts),
		resolutionCache,
		resolver.New(httpprober.New(&http.Client{}), resolver.NewOptions(cfg)),
		m,
		engine.NewOptions(cfg),
	)

	requests := make([]domain.Request, 0, len(urls))
	for _, u := range urls {
		requests = append(requests, domain.Request{URL: u})
	}

	start := time.Now()
	results := expander.ResolveBatch(ctx, requests)
	elapsed := time.Since(start)

	if err := writeResults(outputPath, urls, results); err != nil {
		logger.Fatal(ctx, "could not write output", zap.Error(err))
	}

	logSummary(ctx, results, resolutionCache.Len(), elapsed)
}

// readURLs reads one URL per line, skipping blank lines. "-" reads stdin.
func readURLs(path string) ([]string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("could not open input file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		r = f
	}

	var urls []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("could not read input file: %w", err)
	}

	return urls, nil
}

// loadDomains reads the first column of a CSV file of domains to allow.
func loadDomains(path string, noHeader bool) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open domains file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("could not parse domains file: %w", err)
	}
	if !noHeader && len(records) > 0 {
		records = records[1:]
	}

	domains := make([]string, 0, len(records))
	for _, rec := range records {
		if len(rec) == 0 {
			continue
		}
		d := strings.TrimSpace(rec[0])
		if d != "" {
			domains = append(domains, d)
		}
	}

	return domains, nil
}

// writeResults writes one line per input URL in input order: the final URL
// for resolved entries, the original URL otherwise. "-" writes to stdout.
func writeResults(path string, urls []string, results []domain.Result) error {
	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("could not create output file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		w = f
	}

	bw := bufio.NewWriter(w)
	for i, res := range results {
		line := urls[i]
		if res.Status == domain.StatusResolved {
			line = res.FinalURL
		}
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return fmt.Errorf("could not write output: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("could not flush output: %w", err)
	}

	return nil
}

// logSummary reports batch counters in the same shape the metrics endpoint
// exposes, for runs without a debug server.
func logSummary(ctx context.Context, results []domain.Result, cacheLen int, elapsed time.Duration) {
	var expanded, skipped, failed, timeouts int
	for _, res := range results {
		switch res.Status {
		case domain.StatusResolved:
			expanded++
		case domain.StatusSkipped:
			skipped++
		case domain.StatusFailed:
			failed++
			if res.FailureKind == domain.FailureTimeout {
				timeouts++
			}
		}
	}

	rate := 0.0
	if elapsed > 0 {
		rate = float64(len(results)) / elapsed.Seconds()
	}

	logger.Info(ctx, "batch finished",
		zap.Int("total", len(results)),
		zap.Int("expanded", expanded),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
		zap.Int("timeouts", timeouts),
		zap.Int("cache_entries", cacheLen),
		zap.Duration("elapsed", elapsed),
		zap.Float64("urls_per_second", rate),
	)
}
