package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govcontract-signals/internal/service"
	"govcontract-signals/internal/storage"
)

type fakeSignalStore struct {
	signals    []storage.Signal
	lastFilter storage.SignalFilter
}

func (f *fakeSignalStore) ListSignals(ctx context.Context, filter storage.SignalFilter) ([]storage.Signal, error) {
	f.lastFilter = filter
	return f.signals, nil
}

func (f *fakeSignalStore) CountSignals(ctx context.Context, filter storage.SignalFilter) (int64, error) {
	return int64(len(f.signals)), nil
}

func (f *fakeSignalStore) GetSignal(ctx context.Context, id int64) (storage.Signal, error) {
	for _, s := range f.signals {
		if s.ID == id {
			return s, nil
		}
	}
	return storage.Signal{}, storage.ErrNotFound
}

func (f *fakeSignalStore) ListUnenrichedSignals(ctx context.Context, limit int) ([]storage.Signal, error) {
	return nil, nil
}

func (f *fakeSignalStore) UpdateSignalPrices(ctx context.Context, id int64, prices storage.SignalPrices) (bool, error) {
	return false, nil
}

type fakeCompanyStore struct {
	companies []storage.Company
}

func (f *fakeCompanyStore) ListCompanies(ctx context.Context) ([]storage.Company, error) {
	return f.companies, nil
}

func (f *fakeCompanyStore) GetCompany(ctx context.Context, ticker string) (storage.Company, error) {
	for _, c := range f.companies {
		if c.Ticker == ticker {
			return c, nil
		}
	}
	return storage.Company{}, storage.ErrNotFound
}

func (f *fakeCompanyStore) SearchCompanies(ctx context.Context, query string, limit int) ([]storage.Company, error) {
	return f.companies, nil
}

func (f *fakeCompanyStore) UpsertCompany(ctx context.Context, company storage.Company) error {
	return nil
}

type fakePipeline struct {
	startErr error
	started  int
	report   service.StatusReport
}

func (f *fakePipeline) StartAsync() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started++
	return nil
}

func (f *fakePipeline) Status() service.StatusReport {
	return f.report
}

func testSignal() storage.Signal {
	marketCap := decimal.NewFromInt(2_500_000_000)
	ceiling := decimal.NewFromInt(500_000_000)
	contractDate := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	return storage.Signal{
		ID:               1,
		ContractID:       "CONT_AWD_123_MOD0",
		Ticker:           "KTOS",
		AgencyName:       "Department of Defense",
		AwardAmount:      decimal.NewFromInt(300_000_000),
		PotentialCeiling: &ceiling,
		MarketCapAtTime:  &marketCap,
		ImpactRatio:      decimal.NewFromInt(12),
		ContractDate:     &contractDate,
		DetectedAt:       time.Date(2026, 8, 21, 9, 30, 0, 0, time.UTC),
	}
}

func newTestRouter(signals *fakeSignalStore, companies *fakeCompanyStore, pipeline *fakePipeline) http.Handler {
	h := NewHandler(companies, signals, pipeline, zerolog.Nop())
	return NewRouter(h, zerolog.Nop())
}

func doRequest(t *testing.T, router http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	router := newTestRouter(&fakeSignalStore{}, &fakeCompanyStore{}, &fakePipeline{})

	rec := doRequest(t, router, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "govsignals", body["service"])
}

func TestListSignals(t *testing.T) {
	signals := &fakeSignalStore{signals: []storage.Signal{testSignal()}}
	router := newTestRouter(signals, &fakeCompanyStore{}, &fakePipeline{})

	rec := doRequest(t, router, http.MethodGet, "/api/signals?page=2&page_size=25&min_impact=10&ticker=KTOS")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["page"])
	assert.Equal(t, float64(25), body["page_size"])
	assert.Equal(t, float64(1), body["total"])

	items, ok := body["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "KTOS", item["ticker"])
	assert.Equal(t, "high", item["impact_tier"])
	assert.Equal(t, "2026-08-20", item["contract_date"])

	assert.Equal(t, 25, signals.lastFilter.Offset)
	assert.Equal(t, 25, signals.lastFilter.Limit)
	assert.Equal(t, "KTOS", signals.lastFilter.Ticker)
	require.NotNil(t, signals.lastFilter.MinImpact)
	assert.True(t, signals.lastFilter.MinImpact.Equal(decimal.NewFromInt(10)))
}

func TestListSignalsInvalidMinImpact(t *testing.T) {
	router := newTestRouter(&fakeSignalStore{}, &fakeCompanyStore{}, &fakePipeline{})

	rec := doRequest(t, router, http.MethodGet, "/api/signals?min_impact=abc")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid min_impact", decodeBody(t, rec)["error"])
}

func TestListSignalsCapsPageSize(t *testing.T) {
	signals := &fakeSignalStore{}
	router := newTestRouter(signals, &fakeCompanyStore{}, &fakePipeline{})

	rec := doRequest(t, router, http.MethodGet, "/api/signals?page_size=5000")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxPageSize, signals.lastFilter.Limit)
}

func TestGetSignal(t *testing.T) {
	signals := &fakeSignalStore{signals: []storage.Signal{testSignal()}}
	router := newTestRouter(signals, &fakeCompanyStore{}, &fakePipeline{})

	rec := doRequest(t, router, http.MethodGet, "/api/signals/1")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "CONT_AWD_123_MOD0", body["contract_id"])
	assert.Equal(t, "20", body["ceiling_impact"])

	rec = doRequest(t, router, http.MethodGet, "/api/signals/99")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchCompanies(t *testing.T) {
	companies := &fakeCompanyStore{companies: []storage.Company{
		{Ticker: "LMT", Name: "Lockheed Martin Corporation"},
	}}
	router := newTestRouter(&fakeSignalStore{}, companies, &fakePipeline{})

	rec := doRequest(t, router, http.MethodGet, "/api/companies?q=lockheed")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])

	rec = doRequest(t, router, http.MethodGet, "/api/companies")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCompany(t *testing.T) {
	companies := &fakeCompanyStore{companies: []storage.Company{
		{Ticker: "KTOS", Name: "Kratos Defense & Security Solutions, Inc."},
	}}
	router := newTestRouter(&fakeSignalStore{}, companies, &fakePipeline{})

	rec := doRequest(t, router, http.MethodGet, "/api/companies/KTOS")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "KTOS", decodeBody(t, rec)["ticker"])

	rec = doRequest(t, router, http.MethodGet, "/api/companies/ZZZZ")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTriggerRun(t *testing.T) {
	pipeline := &fakePipeline{}
	router := newTestRouter(&fakeSignalStore{}, &fakeCompanyStore{}, pipeline)

	rec := doRequest(t, router, http.MethodPost, "/api/pipeline/run")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "started", decodeBody(t, rec)["status"])
	assert.Equal(t, 1, pipeline.started)
}

func TestTriggerRunConflict(t *testing.T) {
	pipeline := &fakePipeline{startErr: service.ErrRunInProgress}
	router := newTestRouter(&fakeSignalStore{}, &fakeCompanyStore{}, pipeline)

	rec := doRequest(t, router, http.MethodPost, "/api/pipeline/run")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "run already in progress", decodeBody(t, rec)["error"])
}

func TestTriggerRunFailure(t *testing.T) {
	pipeline := &fakePipeline{startErr: errors.New("store unavailable")}
	router := newTestRouter(&fakeSignalStore{}, &fakeCompanyStore{}, pipeline)

	rec := doRequest(t, router, http.MethodPost, "/api/pipeline/run")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPipelineStatus(t *testing.T) {
	lastRun := time.Date(2026, 8, 21, 6, 0, 0, 0, time.UTC)
	pipeline := &fakePipeline{report: service.StatusReport{
		Status:  service.StatusCompleted,
		LastRun: &lastRun,
		Stats: service.RunStats{
			Fetched: 120,
			Parsed:  80,
			Matched: 12,
			Created: 3,
			Errors:  []string{},
		},
	}}
	router := newTestRouter(&fakeSignalStore{}, &fakeCompanyStore{}, pipeline)

	rec := doRequest(t, router, http.MethodGet, "/api/pipeline/status")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "completed", body["status"])
	stats, ok := body["stats"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(3), stats["signals_created"])
	errorsField, ok := stats["errors"].([]any)
	require.True(t, ok)
	assert.Empty(t, errorsField)
}
