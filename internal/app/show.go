package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"govcontract-signals/internal/storage"
	"govcontract-signals/internal/valuation"
)

// Show prints recent signals.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	filter := storage.SignalFilter{
		Ticker: opts.Ticker,
		Limit:  opts.Limit,
	}
	if opts.MinImpact > 0 {
		minImpact := decimal.NewFromFloat(opts.MinImpact)
		filter.MinImpact = &minImpact
	}

	signals, err := store.ListSignals(ctx, filter)
	if err != nil {
		return err
	}
	if len(signals) == 0 {
		fmt.Fprintln(os.Stdout, "no signals found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Date\tTicker\tAgency\tAward ($M)\tMktCap ($B)\tImpact%\tTier\tAt Contract\t+24h%")

	for _, signal := range signals {
		date := ""
		if signal.ContractDate != nil {
			date = signal.ContractDate.Format("2006-01-02")
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			date,
			signal.Ticker,
			truncate(sanitizeInline(signal.AgencyName), 40),
			millions(signal.AwardAmount),
			billionsPtr(signal.MarketCapAtTime),
			formatDecimal(signal.ImpactRatio, 2),
			valuation.Tier(signal.ImpactRatio),
			decimalPtr(signal.PriceAtContract, 2),
			decimalPtr(signal.PriceAfter24H, 2),
		)
	}

	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}

func truncate(v string, max int) string {
	if len(v) <= max {
		return v
	}
	return v[:max-3] + "..."
}

func millions(d decimal.Decimal) string {
	return d.Div(decimal.NewFromInt(1_000_000)).StringFixed(1)
}

func billionsPtr(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.Div(decimal.NewFromInt(1_000_000_000)).StringFixed(1)
}

func decimalPtr(d *decimal.Decimal, places int32) string {
	if d == nil {
		return "-"
	}
	return d.StringFixed(places)
}
