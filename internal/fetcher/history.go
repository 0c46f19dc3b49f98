package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const chartPath = "/v8/finance/chart/"

// History fetches historical candles from the Yahoo Finance chart endpoint.
type History struct {
	opts    MarketOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewHistory constructs a price history fetcher.
func NewHistory(opts MarketOptions, logger zerolog.Logger) *History {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}

	return &History{
		opts:    opts,
		logger:  logger.With().Str("component", "history_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open  []*float64 `json:"open"`
					High  []*float64 `json:"high"`
					Low   []*float64 `json:"low"`
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// History returns candles in [start, end] at the requested interval, ordered
// chronologically. Observations with no close (market closed, gaps in the
// provider's intraday retention window) are dropped; the result may be empty.
func (h *History) History(ctx context.Context, ticker string, start, end time.Time, interval string) ([]Candle, error) {
	if ticker == "" {
		return nil, errors.New("ticker is required")
	}
	if interval == "" {
		interval = "1d"
	}

	endpoint := h.baseURL + chartPath + url.PathEscape(strings.ToUpper(ticker)) +
		"?period1=" + strconv.FormatInt(start.Unix(), 10) +
		"&period2=" + strconv.FormatInt(end.Unix(), 10) +
		"&interval=" + url.QueryEscape(interval)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(h.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed chartResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("decode chart response: %w", err)
	}
	if parsed.Chart.Error != nil {
		return nil, fmt.Errorf("chart api error: %s", parsed.Chart.Error.Description)
	}
	if len(parsed.Chart.Result) == 0 {
		return nil, nil
	}

	result := parsed.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, nil
	}
	quote := result.Indicators.Quote[0]

	candles := make([]Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue
		}
		candle := Candle{
			Ts:    time.Unix(ts, 0).UTC(),
			Close: decimal.NewFromFloat(*quote.Close[i]),
		}
		if i < len(quote.Open) && quote.Open[i] != nil {
			candle.Open = decimal.NewFromFloat(*quote.Open[i])
		}
		if i < len(quote.High) && quote.High[i] != nil {
			candle.High = decimal.NewFromFloat(*quote.High[i])
		}
		if i < len(quote.Low) && quote.Low[i] != nil {
			candle.Low = decimal.NewFromFloat(*quote.Low[i])
		}
		candles = append(candles, candle)
	}

	sort.Slice(candles, func(i, j int) bool { return candles[i].Ts.Before(candles[j].Ts) })
	return candles, nil
}

var _ PriceHistoryFetcher = (*History)(nil)
