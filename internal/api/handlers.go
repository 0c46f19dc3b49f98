package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"govcontract-signals/internal/service"
	"govcontract-signals/internal/storage"
	"govcontract-signals/internal/valuation"
	"govcontract-signals/internal/version"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// PipelineController is the slice of the pipeline the API needs.
type PipelineController interface {
	StartAsync() error
	Status() service.StatusReport
}

// Handler serves the REST endpoints.
type Handler struct {
	companies storage.CompanyStore
	signals   storage.SignalStore
	pipeline  PipelineController
	logger    zerolog.Logger
}

// NewHandler wires the handler dependencies.
func NewHandler(companies storage.CompanyStore, signals storage.SignalStore, pipeline PipelineController, logger zerolog.Logger) *Handler {
	return &Handler{
		companies: companies,
		signals:   signals,
		pipeline:  pipeline,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// SignalItem is the JSON projection of a stored signal.
type SignalItem struct {
	ID               int64            `json:"id"`
	ContractID       string           `json:"contract_id"`
	Ticker           string           `json:"ticker"`
	AgencyName       string           `json:"agency_name"`
	Description      string           `json:"description,omitempty"`
	AwardAmount      decimal.Decimal  `json:"award_amount"`
	PotentialCeiling *decimal.Decimal `json:"potential_ceiling,omitempty"`
	MarketCapAtTime  *decimal.Decimal `json:"market_cap_at_time,omitempty"`
	ImpactRatio      decimal.Decimal  `json:"impact_ratio"`
	CeilingImpact    *decimal.Decimal `json:"ceiling_impact,omitempty"`
	ImpactTier       string           `json:"impact_tier"`
	ContractDate     *string          `json:"contract_date,omitempty"`
	SourceURL        *string          `json:"source_url,omitempty"`
	DetectedAt       time.Time        `json:"detected_at"`

	PriceAtContract *decimal.Decimal `json:"price_at_contract,omitempty"`
	PriceBefore1H   *decimal.Decimal `json:"price_before_1h,omitempty"`
	PriceBefore6H   *decimal.Decimal `json:"price_before_6h,omitempty"`
	PriceBefore24H  *decimal.Decimal `json:"price_before_24h,omitempty"`
	PriceAfter1M    *decimal.Decimal `json:"price_after_1m,omitempty"`
	PriceAfter1H    *decimal.Decimal `json:"price_after_1h,omitempty"`
	PriceAfter6H    *decimal.Decimal `json:"price_after_6h,omitempty"`
	PriceAfter24H   *decimal.Decimal `json:"price_after_24h,omitempty"`
}

// CompanyItem is the JSON projection of a company row.
type CompanyItem struct {
	Ticker    string           `json:"ticker"`
	Name      string           `json:"name"`
	MarketCap *decimal.Decimal `json:"market_cap,omitempty"`
	AvgVolume *int64           `json:"avg_volume,omitempty"`
	Sector    *string          `json:"sector,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Health reports liveness.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "govsignals",
		"version": version.Version,
	})
}

// ListSignals returns a page of stored signals.
// GET /api/signals?page=&page_size=&min_impact=&ticker=&sort_by=
func (h *Handler) ListSignals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(q.Get("page_size"))
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	filter := storage.SignalFilter{
		Ticker: q.Get("ticker"),
		SortBy: q.Get("sort_by"),
		Offset: (page - 1) * pageSize,
		Limit:  pageSize,
	}
	if raw := q.Get("min_impact"); raw != "" {
		minImpact, err := decimal.NewFromString(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid min_impact")
			return
		}
		filter.MinImpact = &minImpact
	}

	signals, err := h.signals.ListSignals(ctx, filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("list signals failed")
		respondError(w, http.StatusInternalServerError, "failed to list signals")
		return
	}
	total, err := h.signals.CountSignals(ctx, filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("count signals failed")
		respondError(w, http.StatusInternalServerError, "failed to list signals")
		return
	}

	items := make([]SignalItem, 0, len(signals))
	for _, s := range signals {
		items = append(items, toSignalItem(s))
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"page":      page,
		"page_size": pageSize,
		"total":     total,
		"items":     items,
	})
}

// GetSignal returns one signal by id.
// GET /api/signals/{id}
func (h *Handler) GetSignal(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid signal id")
		return
	}

	signal, err := h.signals.GetSignal(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "signal not found")
			return
		}
		h.logger.Error().Err(err).Int64("id", id).Msg("get signal failed")
		respondError(w, http.StatusInternalServerError, "failed to get signal")
		return
	}

	respondJSON(w, http.StatusOK, toSignalItem(signal))
}

// SearchCompanies looks up companies by name fragment.
// GET /api/companies?q=
func (h *Handler) SearchCompanies(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		respondError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}

	companies, err := h.companies.SearchCompanies(r.Context(), query, defaultPageSize)
	if err != nil {
		h.logger.Error().Err(err).Str("q", query).Msg("company search failed")
		respondError(w, http.StatusInternalServerError, "failed to search companies")
		return
	}

	items := make([]CompanyItem, 0, len(companies))
	for _, c := range companies {
		items = append(items, toCompanyItem(c))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count": len(items),
		"items": items,
	})
}

// GetCompany returns one company by ticker.
// GET /api/companies/{ticker}
func (h *Handler) GetCompany(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]

	company, err := h.companies.GetCompany(r.Context(), ticker)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "company not found")
			return
		}
		h.logger.Error().Err(err).Str("ticker", ticker).Msg("get company failed")
		respondError(w, http.StatusInternalServerError, "failed to get company")
		return
	}

	respondJSON(w, http.StatusOK, toCompanyItem(company))
}

// TriggerRun starts a pipeline run in the background. A run already holding
// the slot yields 409.
// POST /api/pipeline/run
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	if err := h.pipeline.StartAsync(); err != nil {
		if errors.Is(err, service.ErrRunInProgress) {
			respondError(w, http.StatusConflict, "run already in progress")
			return
		}
		h.logger.Error().Err(err).Msg("pipeline trigger failed")
		respondError(w, http.StatusInternalServerError, "failed to start run")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// PipelineStatus reports the current pipeline state and last-run counters.
// GET /api/pipeline/status
func (h *Handler) PipelineStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.pipeline.Status())
}

func toSignalItem(s storage.Signal) SignalItem {
	item := SignalItem{
		ID:               s.ID,
		ContractID:       s.ContractID,
		Ticker:           s.Ticker,
		AgencyName:       s.AgencyName,
		Description:      s.Description,
		AwardAmount:      s.AwardAmount,
		PotentialCeiling: s.PotentialCeiling,
		MarketCapAtTime:  s.MarketCapAtTime,
		ImpactRatio:      s.ImpactRatio,
		ImpactTier:       valuation.Tier(s.ImpactRatio),
		SourceURL:        s.SourceURL,
		DetectedAt:       s.DetectedAt,
		PriceAtContract:  s.PriceAtContract,
		PriceBefore1H:    s.PriceBefore1H,
		PriceBefore6H:    s.PriceBefore6H,
		PriceBefore24H:   s.PriceBefore24H,
		PriceAfter1M:     s.PriceAfter1M,
		PriceAfter1H:     s.PriceAfter1H,
		PriceAfter6H:     s.PriceAfter6H,
		PriceAfter24H:    s.PriceAfter24H,
	}
	if s.ContractDate != nil {
		date := s.ContractDate.Format("2006-01-02")
		item.ContractDate = &date
	}
	if s.MarketCapAtTime != nil {
		item.CeilingImpact = valuation.CeilingImpact(s.AwardAmount, s.PotentialCeiling, *s.MarketCapAtTime)
	}
	return item
}

func toCompanyItem(c storage.Company) CompanyItem {
	return CompanyItem{
		Ticker:    c.Ticker,
		Name:      c.Name,
		MarketCap: c.MarketCap,
		AvgVolume: c.AvgVolume,
		Sector:    c.Sector,
		UpdatedAt: c.UpdatedAt,
	}
}
