package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestAmountUnmarshal(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"number", `50000000`, "50000000"},
		{"decimal number", `1234.56`, "1234.56"},
		{"formatted string", `"$1,000,000"`, "1000000"},
		{"plain string", `"250000.75"`, "250000.75"},
		{"null", `null`, "0"},
		{"empty string", `""`, "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var a Amount
			if err := json.Unmarshal([]byte(tc.in), &a); err != nil {
				t.Fatalf("unmarshal %s: %v", tc.in, err)
			}
			if a.String() != tc.want {
				t.Fatalf("got %s, want %s", a.String(), tc.want)
			}
		})
	}

	var a Amount
	if err := json.Unmarshal([]byte(`"not a number"`), &a); err == nil {
		t.Fatal("expected error for unparseable amount")
	}
}

func TestFetchTransactionsFiltersBelowMinimum(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req transactionSearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Filters.TimePeriod) != 1 {
			t.Fatalf("expected one time period, got %d", len(req.Filters.TimePeriod))
		}
		if req.Sort != "Transaction Amount" || req.Order != "desc" {
			t.Fatalf("unexpected sort %q %q", req.Sort, req.Order)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{
					"Recipient Name":        "LOCKHEED MARTIN CORPORATION",
					"Award ID":              "FA8611",
					"Mod":                   "0",
					"Action Date":           "2026-08-20",
					"Transaction Amount":    50000000,
					"Awarding Agency":       "Department of Defense",
					"generated_internal_id": "CONT_AWD_FA8611",
				},
				{
					"Recipient Name":     "SMALL SHOP LLC",
					"Award ID":           "W912",
					"Transaction Amount": "$250,000",
					"Awarding Agency":    "Department of Defense",
				},
			},
		})
	}))
	defer srv.Close()

	u := NewUSASpending(USASpendingOptions{
		BaseURL:        srv.URL,
		PageLimit:      100,
		MaxPages:       3,
		MinAwardAmount: decimal.NewFromInt(1_000_000),
		Timeout:        time.Second,
	}, noopLogger())

	got, err := u.FetchTransactions(context.Background(), 7)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 transaction above minimum, got %d", len(got))
	}
	if got[0].RecipientName != "LOCKHEED MARTIN CORPORATION" {
		t.Fatalf("unexpected recipient %q", got[0].RecipientName)
	}
	if !got[0].TransactionAmount.Equal(decimal.NewFromInt(50000000)) {
		t.Fatalf("unexpected amount %s", got[0].TransactionAmount.String())
	}
}

func TestFetchTransactionsFirstPageError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	u := NewUSASpending(USASpendingOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())

	if _, err := u.FetchTransactions(context.Background(), 7); err == nil {
		t.Fatal("expected error when the first page fails")
	}
}

func TestFetchTransactionsKeepsEarlierPages(t *testing.T) {
	var page int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page++
		if page > 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		results := make([]map[string]any, 2)
		for i := range results {
			results[i] = map[string]any{
				"Recipient Name":     "BIG CORP",
				"Award ID":           "A1",
				"Transaction Amount": 2000000,
				"Awarding Agency":    "GSA",
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
	}))
	defer srv.Close()

	u := NewUSASpending(USASpendingOptions{
		BaseURL:        srv.URL,
		PageLimit:      2,
		MaxPages:       3,
		MinAwardAmount: decimal.NewFromInt(1_000_000),
		Timeout:        time.Second,
	}, noopLogger())

	got, err := u.FetchTransactions(context.Background(), 7)
	if err != nil {
		t.Fatalf("later-page failure should not error the fetch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected the 2 transactions from page 1, got %d", len(got))
	}
}

func TestFetchTransactionsStopsOnShortPage(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{
				"Recipient Name":     "BIG CORP",
				"Transaction Amount": 5000000,
				"Awarding Agency":    "GSA",
			}},
		})
	}))
	defer srv.Close()

	u := NewUSASpending(USASpendingOptions{
		BaseURL:   srv.URL,
		PageLimit: 100,
		MaxPages:  5,
		Timeout:   time.Second,
	}, noopLogger())

	if _, err := u.FetchTransactions(context.Background(), 7); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("short page should stop paging, got %d calls", calls)
	}
}
