package pricing

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"govcontract-signals/internal/fetcher"
)

// Enricher fetches historical candles around a contract date and derives the
// price evolution. The whole stage is best-effort: any provider failure
// degrades to less (or no) price data instead of an error.
type Enricher struct {
	history    fetcher.PriceHistoryFetcher
	windowDays int
	logger     zerolog.Logger
}

// NewEnricher constructs an Enricher. windowDays bounds how far around the
// contract date history is requested.
func NewEnricher(history fetcher.PriceHistoryFetcher, windowDays int, logger zerolog.Logger) *Enricher {
	if windowDays <= 0 {
		windowDays = 14
	}
	return &Enricher{
		history:    history,
		windowDays: windowDays,
		logger:     logger.With().Str("component", "price_enricher").Logger(),
	}
}

// Enrich computes the price evolution for a ticker around contractDate.
// Never returns an error: a ticker with no usable history yields an empty
// Evolution, and enrichment may be retried later.
func (e *Enricher) Enrich(ctx context.Context, ticker string, contractDate time.Time) Evolution {
	if e == nil || e.history == nil {
		return Evolution{}
	}

	start := contractDate.AddDate(0, 0, -e.windowDays)
	end := contractDate.AddDate(0, 0, e.windowDays)
	if now := time.Now().UTC(); end.After(now) {
		end = now
	}

	daily := e.fetch(ctx, ticker, start, end, "1d")
	hourly := e.fetch(ctx, ticker, start, end, "1h")
	minute := e.fetch(ctx, ticker, start, end, "1m")

	ev := Compute(daily, hourly, minute, contractDate)
	if ev.Empty() {
		e.logger.Debug().Str("ticker", ticker).Time("contract_date", contractDate).Msg("no price data available")
	}
	return ev
}

func (e *Enricher) fetch(ctx context.Context, ticker string, start, end time.Time, interval string) []fetcher.Candle {
	candles, err := e.history.History(ctx, ticker, start, end, interval)
	if err != nil {
		e.logger.Warn().Err(err).Str("ticker", ticker).Str("interval", interval).Msg("history fetch failed")
		return nil
	}
	return candles
}
