package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const quoteSummaryPath = "/v10/finance/quoteSummary/"

// MarketOptions parameterise the market data fetcher.
type MarketOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Market fetches current market data from the Yahoo Finance quote summary
// endpoint.
type Market struct {
	opts    MarketOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewMarket constructs a market data fetcher.
func NewMarket(opts MarketOptions, logger zerolog.Logger) *Market {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}

	return &Market{
		opts:    opts,
		logger:  logger.With().Str("component", "market_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

type rawValue struct {
	Raw *float64 `json:"raw"`
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			Price struct {
				LongName           string   `json:"longName"`
				ShortName          string   `json:"shortName"`
				MarketCap          rawValue `json:"marketCap"`
				RegularMarketPrice rawValue `json:"regularMarketPrice"`
			} `json:"price"`
			SummaryDetail struct {
				AverageVolume rawValue `json:"averageVolume"`
			} `json:"summaryDetail"`
			SummaryProfile struct {
				Sector string `json:"sector"`
			} `json:"summaryProfile"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// Lookup returns market cap, average volume, sector, and current price for a
// ticker. A quote without a market cap yields (nil, nil): the entity has no
// public market, which is a normal outcome rather than an error.
func (m *Market) Lookup(ctx context.Context, ticker string) (*MarketData, error) {
	if ticker == "" {
		return nil, errors.New("ticker is required")
	}

	endpoint := m.baseURL + quoteSummaryPath + url.PathEscape(strings.ToUpper(ticker)) +
		"?modules=price%2CsummaryDetail%2CsummaryProfile"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(m.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// The quote endpoint reports unknown symbols as 404 with an error body.
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed quoteSummaryResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("decode quote response: %w", err)
	}

	if parsed.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("quote api error: %s", parsed.QuoteSummary.Error.Description)
	}
	if len(parsed.QuoteSummary.Result) == 0 {
		return nil, nil
	}

	result := parsed.QuoteSummary.Result[0]
	if result.Price.MarketCap.Raw == nil || *result.Price.MarketCap.Raw <= 0 {
		return nil, nil
	}

	name := result.Price.LongName
	if name == "" {
		name = result.Price.ShortName
	}

	data := &MarketData{
		Name:      name,
		MarketCap: decimal.NewFromFloat(*result.Price.MarketCap.Raw),
		Sector:    result.SummaryProfile.Sector,
	}
	if result.SummaryDetail.AverageVolume.Raw != nil {
		data.AvgVolume = int64(*result.SummaryDetail.AverageVolume.Raw)
	}
	if result.Price.RegularMarketPrice.Raw != nil {
		price := decimal.NewFromFloat(*result.Price.RegularMarketPrice.Raw)
		data.CurrentPrice = &price
	}

	return data, nil
}

var _ MarketDataFetcher = (*Market)(nil)
