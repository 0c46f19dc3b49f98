package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const transactionSearchPath = "/search/spending_by_transaction/"

// contractAwardTypes are the award type codes for contracts (not grants or
// loans).
var contractAwardTypes = []string{"A", "B", "C", "D"}

var transactionFields = []string{
	"Recipient Name",
	"Award ID",
	"Mod",
	"Action Date",
	"Transaction Amount",
	"Awarding Agency",
	"Awarding Sub Agency",
	"Action Type",
	"Transaction Description",
	"generated_internal_id",
}

// Amount is a transaction amount that tolerates both numeric and formatted
// string representations ("$1,000,000").
type Amount struct {
	decimal.Decimal
}

// UnmarshalJSON accepts numbers, formatted strings, and null.
func (a *Amount) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == `""` {
		a.Decimal = decimal.Zero
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(s))
		value, err := decimal.NewFromString(s)
		if err != nil {
			return fmt.Errorf("parse amount %q: %w", s, err)
		}
		a.Decimal = value
		return nil
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return fmt.Errorf("parse amount %q: %w", trimmed, err)
	}
	a.Decimal = value
	return nil
}

// RawTransaction is one provider-level transaction record. Field names track
// the provider's response keys.
type RawTransaction struct {
	RecipientName       string `json:"Recipient Name"`
	AwardID             string `json:"Award ID"`
	Mod                 string `json:"Mod"`
	ActionDate          string `json:"Action Date"`
	TransactionAmount   Amount `json:"Transaction Amount"`
	AwardingAgency      string `json:"Awarding Agency"`
	AwardingSubAgency   string `json:"Awarding Sub Agency"`
	ActionType          string `json:"Action Type"`
	Description         string `json:"Transaction Description"`
	GeneratedInternalID string `json:"generated_internal_id"`
}

// USASpendingOptions parameterise the transaction fetcher.
type USASpendingOptions struct {
	BaseURL        string
	PageLimit      int
	MaxPages       int
	MinAwardAmount decimal.Decimal
	Timeout        time.Duration
	UserAgent      string
}

// USASpending fetches contract transactions from the USAspending.gov API.
// No API key required.
type USASpending struct {
	opts    USASpendingOptions
	logger  zerolog.Logger
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
}

// NewUSASpending constructs a transaction fetcher.
func NewUSASpending(opts USASpendingOptions, logger zerolog.Logger) *USASpending {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if opts.PageLimit <= 0 {
		opts.PageLimit = 100
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 5
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.usaspending.gov/api/v2"
	}

	return &USASpending{
		opts:    opts,
		logger:  logger.With().Str("component", "usaspending_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(250*time.Millisecond), 1),
		baseURL: baseURL,
	}
}

type transactionSearchRequest struct {
	Filters transactionFilters `json:"filters"`
	Fields  []string           `json:"fields"`
	Limit   int                `json:"limit"`
	Page    int                `json:"page"`
	Sort    string             `json:"sort"`
	Order   string             `json:"order"`
}

type transactionFilters struct {
	TimePeriod     []timePeriod `json:"time_period"`
	AwardTypeCodes []string     `json:"award_type_codes"`
}

type timePeriod struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type transactionSearchResponse struct {
	Results []RawTransaction `json:"results"`
}

// FetchTransactions pages through recent transactions, newest-largest first,
// keeping those at or above the configured minimum amount. Paging is capped
// at MaxPages to bound worst-case latency; a failure on a later page returns
// the transactions collected so far.
func (u *USASpending) FetchTransactions(ctx context.Context, lookbackDays int) ([]RawTransaction, error) {
	if lookbackDays <= 0 {
		lookbackDays = 7
	}

	now := time.Now().UTC()
	request := transactionSearchRequest{
		Filters: transactionFilters{
			TimePeriod: []timePeriod{{
				StartDate: now.AddDate(0, 0, -lookbackDays).Format("2006-01-02"),
				EndDate:   now.Format("2006-01-02"),
			}},
			AwardTypeCodes: contractAwardTypes,
		},
		Fields: transactionFields,
		Limit:  u.opts.PageLimit,
		Sort:   "Transaction Amount",
		Order:  "desc",
	}

	all := make([]RawTransaction, 0, u.opts.PageLimit)

	for page := 1; page <= u.opts.MaxPages; page++ {
		if err := u.limiter.Wait(ctx); err != nil {
			return all, err
		}

		request.Page = page
		results, err := u.fetchPage(ctx, request)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			u.logger.Warn().Err(err).Int("page", page).Msg("transaction page fetch failed; keeping earlier pages")
			break
		}

		if len(results) == 0 {
			break
		}

		kept := 0
		for _, r := range results {
			if r.TransactionAmount.GreaterThanOrEqual(u.opts.MinAwardAmount) {
				all = append(all, r)
				kept++
			}
		}

		u.logger.Debug().Int("page", page).Int("results", len(results)).Int("kept", kept).Msg("transaction page fetched")

		if len(results) < u.opts.PageLimit {
			break
		}
	}

	u.logger.Info().Int("transactions", len(all)).Int("lookback_days", lookbackDays).Msg("transactions fetched")
	return all, nil
}

func (u *USASpending) fetchPage(ctx context.Context, request transactionSearchRequest) ([]RawTransaction, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	endpoint := u.baseURL + transactionSearchPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(u.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("usaspending api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed transactionSearchResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("decode transaction response: %w", err)
	}
	return parsed.Results, nil
}

var _ TransactionFetcher = (*USASpending)(nil)
