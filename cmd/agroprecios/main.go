package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpg486-ual/scrapping-tutorial/internal/config"
	"github.com/jpg486-ual/scrapping-tutorial/internal/crawler"
)

const inputDateLayout = "02/01/2006"

func main() {
	cfgPath := flag.String("config", "", "Path to optional YAML configuration file")
	lastDate := flag.String("lastdate", "", "Most recent date to query, dd/mm/yyyy (default today)")
	maxDays := flag.Int("maxdays", 1, "Number of days to scan backwards from lastdate, inclusive")
	maxAuctions := flag.Int("maxsubastas", 10, "Auction ids to query, from 1 up to this value")
	dataDir := flag.String("data-dir", "", "Directory for the persisted JSON collections (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			fatalf("failed to load config: %v", err)
		}
		cfg = *loaded
	}
	if *dataDir != "" {
		cfg.Storage.DataDir = *dataDir
	}

	last, err := parseLastDate(*lastDate)
	if err != nil {
		fatalf("%v", err)
	}
	if *maxDays < 1 {
		fatalf("--maxdays must be >= 1 (got %d)", *maxDays)
	}
	if *maxAuctions < 1 {
		fatalf("--maxsubastas must be >= 1 (got %d)", *maxAuctions)
	}

	engine, err := crawler.NewEngine(cfg)
	if err != nil {
		fatalf("failed to initialise engine: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if _, err := engine.Run(ctx, crawler.Params{
		LastDate:    last,
		MaxDays:     *maxDays,
		MaxAuctions: *maxAuctions,
	}); err != nil {
		fatalf("crawl stopped with error: %v", err)
	}
}

// parseLastDate interprets the --lastdate flag, defaulting to today.
func parseLastDate(raw string) (time.Time, error) {
	if raw == "" {
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local), nil
	}
	parsed, err := time.ParseInLocation(inputDateLayout, raw, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --lastdate %q, expected dd/mm/yyyy: %w", raw, err)
	}
	return parsed, nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
