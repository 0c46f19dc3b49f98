package fetcher

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionFetcher retrieves recent contract-award transactions for a
// trailing lookback window.
type TransactionFetcher interface {
	FetchTransactions(ctx context.Context, lookbackDays int) ([]RawTransaction, error)
}

// MarketDataFetcher looks up current market data for a ticker. A nil result
// with nil error means the ticker has no public market cap.
type MarketDataFetcher interface {
	Lookup(ctx context.Context, ticker string) (*MarketData, error)
}

// PriceHistoryFetcher retrieves an ordered series of price observations.
// Interval is a provider granularity such as "1d", "1h", or "1m". The series
// may be empty.
type PriceHistoryFetcher interface {
	History(ctx context.Context, ticker string, start, end time.Time, interval string) ([]Candle, error)
}

// MarketData is the result shape the core depends on.
type MarketData struct {
	Name         string
	MarketCap    decimal.Decimal
	AvgVolume    int64
	Sector       string
	CurrentPrice *decimal.Decimal
}

// Candle is one price observation.
type Candle struct {
	Ts    time.Time
	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal
}
