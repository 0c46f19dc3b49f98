package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govcontract-signals/internal/fetcher"
)

func candle(ts time.Time, close float64) fetcher.Candle {
	return fetcher.Candle{Ts: ts, Close: decimal.NewFromFloat(close)}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestComputeFullEvolution(t *testing.T) {
	contractDate := time.Date(2026, 8, 20, 15, 0, 0, 0, time.UTC)

	daily := []fetcher.Candle{
		candle(contractDate.Add(-24*time.Hour), 95),
		candle(contractDate, 100),
		candle(contractDate.Add(24*time.Hour), 110),
	}
	hourly := []fetcher.Candle{
		candle(contractDate.Add(-6*time.Hour), 98),
		candle(contractDate.Add(-time.Hour), 99),
		candle(contractDate, 100),
		candle(contractDate.Add(time.Hour), 104),
		candle(contractDate.Add(6*time.Hour), 106),
	}
	minute := []fetcher.Candle{
		candle(contractDate.Add(time.Minute), 101),
	}

	ev := Compute(daily, hourly, minute, contractDate)
	require.False(t, ev.Empty())

	assert.Equal(t, "100", ev.AtContract.String())
	require.NotNil(t, ev.Before24H)
	assert.Equal(t, "5.26", ev.Before24H.String()) // (100-95)/95
	require.NotNil(t, ev.Before6H)
	assert.Equal(t, "2.04", ev.Before6H.String()) // (100-98)/98
	require.NotNil(t, ev.Before1H)
	assert.Equal(t, "1.01", ev.Before1H.String()) // (100-99)/99
	require.NotNil(t, ev.After1M)
	assert.Equal(t, "1", ev.After1M.String()) // (101-100)/100
	require.NotNil(t, ev.After1H)
	assert.Equal(t, "4", ev.After1H.String())
	require.NotNil(t, ev.After6H)
	assert.Equal(t, "6", ev.After6H.String())
	require.NotNil(t, ev.After24H)
	assert.Equal(t, "10", ev.After24H.String())
}

func TestComputeEmptySeries(t *testing.T) {
	ev := Compute(nil, nil, nil, time.Now())
	assert.True(t, ev.Empty())
	assert.Nil(t, ev.AtContract)
	assert.Nil(t, ev.After24H)
}

func TestComputeBaseFallsBackToFinerSeries(t *testing.T) {
	contractDate := time.Date(2026, 8, 20, 15, 0, 0, 0, time.UTC)
	minute := []fetcher.Candle{candle(contractDate.Add(2*time.Minute), 50.12345)}

	ev := Compute(nil, nil, minute, contractDate)
	require.False(t, ev.Empty())
	// Base price is rounded to four fractional digits.
	assert.Equal(t, "50.1235", ev.AtContract.String())
	assert.Nil(t, ev.Before24H)
	assert.Nil(t, ev.After1H)
}

func TestNearestPrefersEarlierOnTie(t *testing.T) {
	target := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	series := []fetcher.Candle{
		candle(target.Add(-time.Hour), 10),
		candle(target.Add(time.Hour), 20),
	}

	got := nearest(series, target)
	require.NotNil(t, got)
	assert.Equal(t, "10", got.Close.String())
}

func TestComputeIgnoresNonPositiveBase(t *testing.T) {
	contractDate := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	daily := []fetcher.Candle{candle(contractDate, 0)}

	ev := Compute(daily, nil, nil, contractDate)
	assert.True(t, ev.Empty())
}

type stubHistory struct {
	byInterval map[string][]fetcher.Candle
	err        error
}

func (s *stubHistory) History(ctx context.Context, ticker string, start, end time.Time, interval string) ([]fetcher.Candle, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byInterval[interval], nil
}

func TestEnricherNeverErrors(t *testing.T) {
	e := NewEnricher(&stubHistory{err: errors.New("rate limited")}, 14, testLogger())

	ev := e.Enrich(context.Background(), "LMT", time.Now().AddDate(0, 0, -2))
	assert.True(t, ev.Empty())
}

func TestEnricherDerivesEvolution(t *testing.T) {
	contractDate := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	history := &stubHistory{byInterval: map[string][]fetcher.Candle{
		"1d": {
			candle(contractDate, 100),
			candle(contractDate.Add(24*time.Hour), 120),
		},
	}}

	e := NewEnricher(history, 14, testLogger())
	ev := e.Enrich(context.Background(), "KTOS", contractDate)

	require.False(t, ev.Empty())
	assert.Equal(t, "100", ev.AtContract.String())
	require.NotNil(t, ev.After24H)
	assert.Equal(t, "20", ev.After24H.String())
}
