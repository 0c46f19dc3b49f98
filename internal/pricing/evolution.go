package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"govcontract-signals/internal/fetcher"
)

var hundred = decimal.NewFromInt(100)

// Evolution captures percentage price moves around a contract date. Every
// field is optional; sparse or missing history leaves fields unset rather
// than failing the enrichment.
type Evolution struct {
	AtContract *decimal.Decimal

	// Change from N before the contract date to the contract price.
	Before1H  *decimal.Decimal
	Before6H  *decimal.Decimal
	Before24H *decimal.Decimal

	// Change from the contract price to N after the contract date.
	After1M  *decimal.Decimal
	After1H  *decimal.Decimal
	After6H  *decimal.Decimal
	After24H *decimal.Decimal
}

// Empty reports whether no price data could be derived.
func (e Evolution) Empty() bool {
	return e.AtContract == nil
}

// Compute derives the price evolution around contractDate from daily, hourly,
// and minute candle series. Pure function; each series may be empty. When the
// exact date has no observation the chronologically nearest one is used.
func Compute(daily, hourly, minute []fetcher.Candle, contractDate time.Time) Evolution {
	var ev Evolution

	base := nearest(daily, contractDate)
	if base == nil {
		base = nearest(hourly, contractDate)
	}
	if base == nil {
		base = nearest(minute, contractDate)
	}
	if base == nil || base.Close.Sign() <= 0 {
		return ev
	}

	contractPrice := base.Close.Round(4)
	ev.AtContract = &contractPrice

	ev.Before1H = pctBefore(hourly, contractDate.Add(-time.Hour), contractPrice)
	ev.Before6H = pctBefore(hourly, contractDate.Add(-6*time.Hour), contractPrice)
	ev.Before24H = pctBefore(daily, contractDate.Add(-24*time.Hour), contractPrice)

	ev.After1M = pctAfter(minute, contractDate.Add(time.Minute), contractPrice)
	ev.After1H = pctAfter(hourly, contractDate.Add(time.Hour), contractPrice)
	ev.After6H = pctAfter(hourly, contractDate.Add(6*time.Hour), contractPrice)
	ev.After24H = pctAfter(daily, contractDate.Add(24*time.Hour), contractPrice)

	return ev
}

// pctBefore computes the move from the observation nearest target up to the
// contract price: (contract - before) / before * 100.
func pctBefore(series []fetcher.Candle, target time.Time, contractPrice decimal.Decimal) *decimal.Decimal {
	obs := nearest(series, target)
	if obs == nil || obs.Close.Sign() <= 0 {
		return nil
	}
	pct := contractPrice.Sub(obs.Close).Div(obs.Close).Mul(hundred).Round(2)
	return &pct
}

// pctAfter computes the move from the contract price to the observation
// nearest target: (after - contract) / contract * 100.
func pctAfter(series []fetcher.Candle, target time.Time, contractPrice decimal.Decimal) *decimal.Decimal {
	if contractPrice.Sign() <= 0 {
		return nil
	}
	obs := nearest(series, target)
	if obs == nil {
		return nil
	}
	pct := obs.Close.Sub(contractPrice).Div(contractPrice).Mul(hundred).Round(2)
	return &pct
}

// nearest returns the candle whose timestamp is chronologically closest to
// target, or nil for an empty series. Earlier observations win exact ties.
func nearest(series []fetcher.Candle, target time.Time) *fetcher.Candle {
	if len(series) == 0 {
		return nil
	}

	best := 0
	bestDelta := absDuration(series[0].Ts.Sub(target))
	for i := 1; i < len(series); i++ {
		delta := absDuration(series[i].Ts.Sub(target))
		if delta < bestDelta {
			best = i
			bestDelta = delta
		}
	}
	candle := series[best]
	return &candle
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
