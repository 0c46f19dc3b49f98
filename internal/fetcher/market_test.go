package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestMarketLookupSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/LMT") {
			t.Fatalf("path should contain the upper-cased ticker, got %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"quoteSummary": map[string]any{
				"result": []map[string]any{{
					"price": map[string]any{
						"longName":           "Lockheed Martin Corporation",
						"marketCap":          map[string]any{"raw": 110000000000.0},
						"regularMarketPrice": map[string]any{"raw": 452.13},
					},
					"summaryDetail": map[string]any{
						"averageVolume": map[string]any{"raw": 1200000.0},
					},
					"summaryProfile": map[string]any{
						"sector": "Industrials",
					},
				}},
			},
		})
	}))
	defer srv.Close()

	m := NewMarket(MarketOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())

	data, err := m.Lookup(context.Background(), "lmt")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if data == nil {
		t.Fatal("expected market data")
	}
	if !data.MarketCap.Equal(decimal.NewFromInt(110000000000)) {
		t.Fatalf("unexpected market cap %s", data.MarketCap.String())
	}
	if data.Name != "Lockheed Martin Corporation" {
		t.Fatalf("unexpected name %q", data.Name)
	}
	if data.AvgVolume != 1200000 {
		t.Fatalf("unexpected volume %d", data.AvgVolume)
	}
	if data.Sector != "Industrials" {
		t.Fatalf("unexpected sector %q", data.Sector)
	}
	if data.CurrentPrice == nil || !data.CurrentPrice.Equal(decimal.NewFromFloat(452.13)) {
		t.Fatalf("unexpected price %v", data.CurrentPrice)
	}
}

func TestMarketLookupUnknownSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "Quote not found"})
	}))
	defer srv.Close()

	m := NewMarket(MarketOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())

	data, err := m.Lookup(context.Background(), "PRIVATECO")
	if err != nil {
		t.Fatalf("404 should not be an error: %v", err)
	}
	if data != nil {
		t.Fatal("unknown symbol should yield nil data")
	}
}

func TestMarketLookupNoMarketCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"quoteSummary": map[string]any{
				"result": []map[string]any{{
					"price": map[string]any{},
				}},
			},
		})
	}))
	defer srv.Close()

	m := NewMarket(MarketOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())

	data, err := m.Lookup(context.Background(), "NOCAP")
	if err != nil {
		t.Fatalf("missing market cap should not be an error: %v", err)
	}
	if data != nil {
		t.Fatal("quote without market cap should yield nil data")
	}
}

func TestMarketLookupServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := NewMarket(MarketOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())

	if _, err := m.Lookup(context.Background(), "LMT"); err == nil {
		t.Fatal("HTTP 500 should return an error")
	}
}
