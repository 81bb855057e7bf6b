package quotes

import (
	"context"
	"time"

	"stock-alert-server/internal/pricecache"

	"go.uber.org/zap"
)

// SweepStats summarizes one refresh cycle.
type SweepStats struct {
	Fetched  int
	Failed   int
	Duration time.Duration
}

// Refresher periodically fetches quotes for a fixed symbol list and merges
// them into the price cache. It is the cache's only writer.
type Refresher struct {
	client   QuoteClient
	cache    *pricecache.Cache
	symbols  []string
	interval time.Duration
	logger   *zap.Logger
}

// NewRefresher creates a refresher for symbols.
func NewRefresher(client QuoteClient, cache *pricecache.Cache, symbols []string, interval time.Duration, logger *zap.Logger) *Refresher {
	return &Refresher{
		client:   client,
		cache:    cache,
		symbols:  symbols,
		interval: interval,
		logger:   logger.Named("refresher"),
	}
}

// Run sweeps immediately and then once per interval until ctx is cancelled.
// Failures are logged and retried on the next cycle; Run never returns
// early on its own.
func (r *Refresher) Run(ctx context.Context) {
	r.logger.Info("Starting quote refresher",
		zap.Int("symbols", len(r.symbols)),
		zap.Duration("interval", r.interval))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Stopping quote refresher...")
			return
		case <-timer.C:
			stats := r.Sweep(ctx)
			r.logger.Info("Refresh cycle complete",
				zap.Int("fetched", stats.Fetched),
				zap.Int("failed", stats.Failed),
				zap.Duration("duration", stats.Duration),
				zap.Int("cached_symbols", r.cache.Snapshot().Len()))
			timer.Reset(r.interval)
		}
	}
}

// Sweep fetches every symbol once and merges the successes into the cache
// in a single step. A failing symbol is skipped and keeps its last price.
func (r *Refresher) Sweep(ctx context.Context) SweepStats {
	start := time.Now()
	updates := make(map[string]float64, len(r.symbols))
	var stats SweepStats

	for _, symbol := range r.symbols {
		if ctx.Err() != nil {
			break
		}

		quote, err := r.client.GetQuote(ctx, symbol)
		if err != nil {
			stats.Failed++
			r.logger.Warn("Failed to refresh quote", zap.String("symbol", symbol), zap.Error(err))
			continue
		}

		r.logger.Debug("Fetched quote",
			zap.String("symbol", quote.Symbol),
			zap.String("currency", quote.Currency),
			zap.Float64("price", quote.Price))
		updates[quote.Symbol] = quote.Price
		stats.Fetched++
	}

	r.cache.Merge(updates)
	stats.Duration = time.Since(start)
	return stats
}
