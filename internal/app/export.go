package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"govcontract-signals/internal/storage"
	"govcontract-signals/internal/valuation"
)

// Export renders stored signals as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	if opts.MaxPoints <= 0 {
		opts.MaxPoints = a.Config.Export.MaxDataPoints
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.AddDate(0, 0, -90)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	signals, err := store.ListSignalsBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(signals) == 0 {
		a.Logger.Info().Msg("no signals found for export window")
		return nil
	}

	downsampled := downsampleSignals(signals, opts.MaxPoints)
	a.Logger.Info().Int("total", len(signals)).Int("exported", len(downsampled)).Msg("exporting signals")

	if opts.CSVPath != "" {
		if err := writeSignalsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeSignalsPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleSignals(signals []storage.Signal, max int) []storage.Signal {
	if max <= 0 || len(signals) <= max {
		return signals
	}

	result := make([]storage.Signal, 0, max)
	step := float64(len(signals)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(signals) {
			idx = len(signals) - 1
		}
		result = append(result, signals[idx])
	}
	return result
}

func writeSignalsCSV(path string, signals []storage.Signal) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"detected_at", "contract_date", "contract_id", "ticker", "agency_name",
		"award_amount", "market_cap_at_time", "impact_ratio", "impact_tier",
		"price_at_contract", "price_after_24h", "source_url",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, signal := range signals {
		contractDate := ""
		if signal.ContractDate != nil {
			contractDate = signal.ContractDate.Format("2006-01-02")
		}
		sourceURL := ""
		if signal.SourceURL != nil {
			sourceURL = *signal.SourceURL
		}
		record := []string{
			signal.DetectedAt.Format(time.RFC3339),
			contractDate,
			signal.ContractID,
			signal.Ticker,
			signal.AgencyName,
			signal.AwardAmount.String(),
			decimalOrEmpty(signal.MarketCapAtTime),
			signal.ImpactRatio.String(),
			valuation.Tier(signal.ImpactRatio),
			decimalOrEmpty(signal.PriceAtContract),
			decimalOrEmpty(signal.PriceAfter24H),
			sourceURL,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeSignalsPNG(path string, signals []storage.Signal) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(signals))
	impact := make([]float64, len(signals))
	after24 := make([]float64, len(signals))

	for i, signal := range signals {
		x[i] = signal.DetectedAt
		impact[i] = signal.ImpactRatio.InexactFloat64()
		if signal.PriceAfter24H != nil {
			after24[i] = signal.PriceAfter24H.InexactFloat64()
		}
	}

	pctFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Impact ratio (%)",
			ValueFormatter: pctFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Move +24h (%)",
			ValueFormatter: pctFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Impact ratio",
				XValues: x,
				YValues: impact,
			},
			chart.TimeSeries{
				Name:    "Move +24h",
				XValues: x,
				YValues: after24,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func decimalOrEmpty(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
