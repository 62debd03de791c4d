// Package main is the entry point for the one-shot news refresh CLI. It
// fetches every configured search term once, deduplicates the results and
// prints them as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/onnwee/fizzrank/internal/config"
	"github.com/onnwee/fizzrank/internal/middleware"
	"github.com/onnwee/fizzrank/internal/news"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to an optional YAML config file")
	timeout := flag.Duration("timeout", time.Minute, "overall refresh timeout")
	flag.Parse()

	if *help {
		fmt.Println("fizzrank news fetcher")
		fmt.Println()
		fmt.Println("Usage: newsfetch [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	errs = withoutServerErrors(errs)
	if cfg == nil || len(errs) > 0 {
		logger := middleware.NewLogger(os.Getenv("ENV"))
		for _, err := range errs {
			logger.Error("invalid configuration", "error", err)
		}
		os.Exit(1)
	}

	// Logs go to stderr so stdout carries only the JSON result.
	logger := middleware.NewLoggerTo(cfg.Env, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	service := news.NewService(
		news.NewGoogleNewsFetcher(news.Locale{HL: cfg.NewsLocaleHL, GL: cfg.NewsLocaleGL, CEID: cfg.NewsLocaleCEID}),
		newsConfig(cfg, logger))

	if err := run(ctx, service, os.Stdout); err != nil {
		logger.Error("news refresh failed", "error", err)
		os.Exit(1)
	}
}

// refresher is the part of news.Service the CLI needs.
type refresher interface {
	Refresh(ctx context.Context) ([]news.Item, error)
}

// run refreshes once and writes the items to out as an indented JSON array.
// Partial feed failures still print what was fetched; a total failure
// returns the error.
func run(ctx context.Context, svc refresher, out io.Writer) error {
	items, err := svc.Refresh(ctx)
	if err != nil {
		return err
	}
	if items == nil {
		items = []news.Item{}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

func newsConfig(cfg *config.Config, logger *slog.Logger) news.Config {
	return news.Config{
		SearchTerms:         cfg.NewsSearchTerms,
		FreshnessWindow:     cfg.NewsFreshness(),
		MaxItems:            cfg.NewsMaxItems,
		FetchTimeout:        cfg.NewsFetchTimeout(),
		SimilarityThreshold: cfg.NewsSimilarityThreshold,
		RetryBackoff:        cfg.NewsRetryBackoff(),
		Logger:              logger,
	}
}

// withoutServerErrors drops validation errors for settings only the API
// server uses.
func withoutServerErrors(errs []error) []error {
	var out []error
	for _, err := range errs {
		if errors.Is(err, config.ErrMissingJWTSecret) {
			continue
		}
		out = append(out, err)
	}
	return out
}
