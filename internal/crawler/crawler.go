// Package crawler drives the incremental harvest over the (date, auction id)
// grid: fetch, classify, parse, reconcile, then one final save.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jpg486-ual/scrapping-tutorial/internal/config"
	"github.com/jpg486-ual/scrapping-tutorial/internal/fetcher"
	"github.com/jpg486-ual/scrapping-tutorial/internal/scrape"
	"github.com/jpg486-ual/scrapping-tutorial/internal/store"
)

// isoDateLayout is how price record dates are persisted.
const isoDateLayout = "2006-01-02"

// logDateLayout matches the dd/mm/yyyy format used in queries.
const logDateLayout = "02/01/2006"

// Params bounds one run over the crawl grid.
type Params struct {
	// LastDate is the most recent date to query; the run walks backwards
	// from it, inclusive.
	LastDate time.Time
	// MaxDays is the number of days to scan, minimum 1.
	MaxDays int
	// MaxAuctions is the highest auction id to query, scanning from 1 up.
	MaxAuctions int
}

// Stats aggregates the outcome of a run.
type Stats struct {
	PairsQueried   int
	PricesInserted int
}

// Engine orchestrates fetching, parsing, and reconciling auction pages.
type Engine struct {
	cfg     config.Config
	fetcher fetcher.Fetcher
	store   *store.Store
	pacer   *Pacer
	logger  *slog.Logger
}

// NewEngine builds a crawler engine from configuration: logger, HTTP fetcher,
// and the entity store loaded from the configured data directory.
func NewEngine(cfg config.Config) (*Engine, error) {
	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	httpFetcher, err := fetcher.NewHTTPFetcher(fetcher.Options{
		BaseURL:      cfg.Crawl.BaseURL,
		UserAgent:    cfg.Crawl.UserAgent,
		Referer:      cfg.Crawl.Referer,
		Headers:      cfg.Crawl.Headers,
		Timeout:      cfg.Crawl.RequestTimeout.Duration,
		MaxBodyBytes: cfg.Crawl.MaxBodyBytes,
		ProxyURL:     cfg.Crawl.ProxyURL,
	})
	if err != nil {
		return nil, fmt.Errorf("http fetcher: %w", err)
	}

	st, err := store.Open(cfg.Storage.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	return &Engine{
		cfg:     cfg,
		fetcher: httpFetcher,
		store:   st,
		pacer:   NewPacer(cfg.Crawl.FetchDelay.Duration),
		logger:  logger,
	}, nil
}

// Run walks the full grid sequentially, one fetch in flight at a time, and
// persists the store once after both loops complete. Per-pair failures are
// logged and skipped; cancellation aborts without saving.
func (e *Engine) Run(ctx context.Context, p Params) (Stats, error) {
	var stats Stats
	if p.MaxDays < 1 {
		return stats, fmt.Errorf("maxdays must be >= 1 (got %d)", p.MaxDays)
	}
	if p.MaxAuctions < 1 {
		return stats, fmt.Errorf("maxsubastas must be >= 1 (got %d)", p.MaxAuctions)
	}

	for offset := 0; offset < p.MaxDays; offset++ {
		day := p.LastDate.AddDate(0, 0, -offset)
		for auctionID := 1; auctionID <= p.MaxAuctions; auctionID++ {
			stats.PairsQueried++
			if err := e.pacer.Wait(ctx); err != nil {
				return stats, err
			}
			stats.PricesInserted += e.harvestPair(ctx, auctionID, day)
		}
	}

	if err := e.store.Save(); err != nil {
		return stats, fmt.Errorf("save store: %w", err)
	}
	e.logger.Info("crawl finished",
		"queried", stats.PairsQueried,
		"new_prices", stats.PricesInserted,
		"data_dir", e.store.DataDir(),
	)
	return stats, nil
}

// harvestPair processes one (auction id, date) pair and returns the number of
// newly inserted prices. An auction with zero parsed rows is never upserted.
func (e *Engine) harvestPair(ctx context.Context, auctionID int, day time.Time) int {
	logger := e.logger.With("auction", auctionID, "date", day.Format(logDateLayout))

	body, err := e.fetcher.FetchAuction(ctx, auctionID, day)
	if err != nil {
		logger.Warn("fetch failed", "error", err)
		return 0
	}

	if scrape.IsErrorResponse(body) {
		logger.Info("no auction data in response")
		return 0
	}

	doc, err := scrape.ParseDocument(body)
	if err != nil {
		logger.Warn("unparseable response", "error", err)
		return 0
	}

	name := scrape.AuctionName(doc, auctionID)
	// The page's own stated date wins over the requested one.
	displayedISO := scrape.TableDate(doc, day).Format(isoDateLayout)

	rows := scrape.ParseRows(doc)
	if len(rows) == 0 {
		logger.Info("no product rows", "displayed_date", displayedISO)
		return 0
	}

	e.store.UpsertAuction(auctionID, name)

	inserted := 0
	for _, row := range rows {
		familyID := e.store.GetOrCreateFamily(row.FamilyName)
		productID := e.store.GetOrCreateProduct(familyID, row.ProductName, row.ProductURL)
		for i, cut := range row.Cuts {
			if cut == nil {
				continue
			}
			if e.store.InsertPrice(auctionID, displayedISO, productID, i+1, *cut) {
				inserted++
			}
		}
	}
	return inserted
}

func buildLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unsupported log level %q", cfg.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Structured {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler), nil
}
