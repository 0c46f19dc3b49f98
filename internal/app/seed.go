package app

import (
	"context"
	"fmt"

	"govcontract-signals/internal/resolver"
	"govcontract-signals/internal/storage"
)

// DefaultSeedTickers is the contractor universe loaded by the seed command:
// publicly traded companies that regularly receive federal awards.
var DefaultSeedTickers = []string{
	// Major defense primes
	"LMT", "RTX", "NOC", "GD", "BA", "LHX", "HII",
	// Defense IT and services
	"LDOS", "SAIC", "BAH", "CACI", "PSN", "KBR", "MANT",
	// Aerospace
	"AJRD", "RKLB", "KTOS", "AVAV", "TDG", "HEI", "HXL", "TXT", "CW", "SPR",
	// Cybersecurity
	"CRWD", "PANW", "FTNT", "ZS", "NET", "S", "OKTA", "TENB", "QLYS", "RPD",
	// IT services and consulting
	"ACN", "IBM", "ORCL", "MSFT", "GOOGL", "AMZN", "CTSH", "INFY", "WIT", "GIB", "DXC", "EPAM",
	// Analytics
	"PLTR", "AIT",
	// Healthcare and pharma with federal business
	"EBS", "MRNA", "NVAX", "SIGA", "UNH", "CI", "HUM", "CVS",
	// Nuclear and energy
	"BWXT", "CEG", "NEE", "DUK",
	// Specialty defense
	"MRCY", "AXON", "OSIS", "TDY",
	// Government services
	"GEO", "CXW",
	// Construction and engineering
	"FLR", "J", "PWR", "ACM",
	// Telecom
	"T", "VZ", "TMUS",
	// Staffing and digital engineering
	"ASGN", "GDYN",
	// Large caps useful for threshold filtering
	"AAPL", "NVDA", "TSLA", "META",
}

// Seed refreshes the company reference table from live market data. Failed
// tickers are logged and skipped.
func (a *App) Seed(ctx context.Context, opts SeedOptions) error {
	tickers := opts.Tickers
	if len(tickers) == 0 {
		tickers = DefaultSeedTickers
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	_, market, _ := a.newFetchers()

	seeded := 0
	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := market.Lookup(ctx, ticker)
		if err != nil {
			a.Logger.Warn().Err(err).Str("ticker", ticker).Msg("seed lookup failed")
			continue
		}
		if data == nil {
			a.Logger.Warn().Str("ticker", ticker).Msg("no market data; skipping")
			continue
		}

		name := data.Name
		if name == "" {
			name = ticker
		}

		company := storage.Company{
			Ticker:         ticker,
			Name:           name,
			NameNormalized: resolver.Normalize(name),
			MarketCap:      &data.MarketCap,
		}
		if data.AvgVolume > 0 {
			volume := data.AvgVolume
			company.AvgVolume = &volume
		}
		if data.Sector != "" {
			sector := data.Sector
			company.Sector = &sector
		}

		if err := store.UpsertCompany(ctx, company); err != nil {
			a.Logger.Warn().Err(err).Str("ticker", ticker).Msg("seed upsert failed")
			continue
		}
		seeded++
		a.Logger.Debug().Str("ticker", ticker).Str("name", name).Msg("company seeded")
	}

	fmt.Printf("seeded %d of %d companies\n", seeded, len(tickers))
	return nil
}
