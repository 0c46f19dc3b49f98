package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"govcontract-signals/internal/alerting"
	"govcontract-signals/internal/fetcher"
	"govcontract-signals/internal/pricing"
	"govcontract-signals/internal/resolver"
	"govcontract-signals/internal/storage"
	"govcontract-signals/internal/valuation"
)

// ErrRunInProgress is returned when a run is requested while another run
// holds the run slot, in this process or (via the advisory lock) another.
var ErrRunInProgress = errors.New("run already in progress")

// Status is the lifecycle state of the pipeline.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusErrored   Status = "errored"
)

// RunStats are the counters accumulated over one pipeline run.
type RunStats struct {
	Fetched int      `json:"transactions_fetched"`
	Parsed  int      `json:"contracts_parsed"`
	Matched int      `json:"tickers_matched"`
	Created int      `json:"signals_created"`
	Errors  []string `json:"errors"`
}

// StatusReport is a point-in-time snapshot of the pipeline state. Safe to
// request at any time, including while a run is executing.
type StatusReport struct {
	Status  Status     `json:"status"`
	LastRun *time.Time `json:"last_run,omitempty"`
	NextRun *time.Time `json:"next_run,omitempty"`
	Stats   RunStats   `json:"stats"`
}

// Store is the persistence surface the pipeline needs.
type Store interface {
	BeginBatch(ctx context.Context) (storage.SignalWriter, error)
	ListUnenrichedSignals(ctx context.Context, limit int) ([]storage.Signal, error)
	UpdateSignalPrices(ctx context.Context, id int64, prices storage.SignalPrices) (bool, error)
}

// Options tune pipeline behavior.
type Options struct {
	LookbackDays   int
	Thresholds     valuation.Thresholds
	EnrichOnDetect bool
	AlertMinRank   int

	// AdvisoryLockKey guards against concurrent runs across processes when a
	// locker is configured. Zero disables the advisory lock.
	AdvisoryLockKey int64
}

// Pipeline runs the fetch, resolve, score, enrich, persist cycle and tracks
// the state of the most recent run.
type Pipeline struct {
	store    Store
	resolver *resolver.Resolver
	source   fetcher.TransactionFetcher
	market   fetcher.MarketDataFetcher
	enricher *pricing.Enricher
	notifier alerting.Notifier
	locker   storage.AdvisoryLocker
	opts     Options
	logger   zerolog.Logger

	// runMu is the single run slot. Acquire-or-reject, never queue.
	runMu sync.Mutex

	stateMu   sync.RWMutex
	status    Status
	lastRun   *time.Time
	lastStats RunStats
	nextRunFn func() time.Time
}

// NewPipeline wires the pipeline. The notifier, enricher and locker are
// optional; a nil value disables that stage.
func NewPipeline(store Store, res *resolver.Resolver, source fetcher.TransactionFetcher, market fetcher.MarketDataFetcher, enricher *pricing.Enricher, notifier alerting.Notifier, locker storage.AdvisoryLocker, opts Options, logger zerolog.Logger) *Pipeline {
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 7
	}
	return &Pipeline{
		store:    store,
		resolver: res,
		source:   source,
		market:   market,
		enricher: enricher,
		notifier: notifier,
		locker:   locker,
		opts:     opts,
		status:   StatusIdle,
		logger:   logger.With().Str("component", "pipeline").Logger(),
	}
}

// SetNextRunFunc installs a provider for the next scheduled run time, shown
// in status reports.
func (p *Pipeline) SetNextRunFunc(fn func() time.Time) {
	p.stateMu.Lock()
	p.nextRunFn = fn
	p.stateMu.Unlock()
}

// Status reports the pipeline state. Never errors; before the first run it
// reports idle with zeroed counters.
func (p *Pipeline) Status() StatusReport {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()

	report := StatusReport{
		Status:  p.status,
		LastRun: p.lastRun,
		Stats:   p.lastStats,
	}
	if report.Stats.Errors == nil {
		report.Stats.Errors = []string{}
	}
	if p.nextRunFn != nil {
		if next := p.nextRunFn(); !next.IsZero() {
			report.NextRun = &next
		}
	}
	return report
}

// Run executes one pipeline cycle. At most one run may be active at a time;
// a second request is rejected with ErrRunInProgress rather than queued.
func (p *Pipeline) Run(ctx context.Context) (RunStats, error) {
	if !p.runMu.TryLock() {
		return RunStats{}, ErrRunInProgress
	}
	defer p.runMu.Unlock()
	return p.runLocked(ctx)
}

// StartAsync claims the run slot and executes the run in the background.
// Returns ErrRunInProgress without side effects when the slot is taken.
func (p *Pipeline) StartAsync() error {
	if !p.runMu.TryLock() {
		return ErrRunInProgress
	}
	go func() {
		defer p.runMu.Unlock()
		_, _ = p.runLocked(context.Background())
	}()
	return nil
}

func (p *Pipeline) runLocked(ctx context.Context) (RunStats, error) {
	if p.locker != nil && p.opts.AdvisoryLockKey != 0 {
		unlock, acquired, err := p.locker.TryAdvisoryLock(ctx, p.opts.AdvisoryLockKey)
		if err != nil {
			return RunStats{}, fmt.Errorf("acquire run lock: %w", err)
		}
		if !acquired {
			return RunStats{}, ErrRunInProgress
		}
		defer unlock()
	}

	started := time.Now().UTC()
	p.markRunning()
	p.logger.Info().Int("lookback_days", p.opts.LookbackDays).Msg("pipeline run started")

	stats, err := p.execute(ctx)
	if err != nil {
		p.finishRun(StatusErrored, started, stats)
		p.logger.Error().Err(err).Msg("pipeline run failed")
		return stats, err
	}

	p.finishRun(StatusCompleted, started, stats)
	p.logger.Info().
		Int("fetched", stats.Fetched).
		Int("parsed", stats.Parsed).
		Int("matched", stats.Matched).
		Int("created", stats.Created).
		Int("errors", len(stats.Errors)).
		Dur("elapsed", time.Since(started)).
		Msg("pipeline run completed")
	return stats, nil
}

func (p *Pipeline) execute(ctx context.Context) (RunStats, error) {
	stats := RunStats{Errors: []string{}}

	if err := p.resolver.Load(ctx); err != nil {
		return stats, fmt.Errorf("load company cache: %w", err)
	}

	// A fetch failure is recorded and the run continues with zero
	// transactions, so the run itself still completes.
	transactions, err := p.source.FetchTransactions(ctx, p.opts.LookbackDays)
	if err != nil {
		p.logger.Error().Err(err).Msg("transaction fetch failed")
		stats.Errors = append(stats.Errors, fmt.Sprintf("fetch: %v", err))
		transactions = nil
	}
	stats.Fetched = len(transactions)

	batch, err := p.store.BeginBatch(ctx)
	if err != nil {
		return stats, fmt.Errorf("begin signal batch: %w", err)
	}

	for _, raw := range transactions {
		if err := ctx.Err(); err != nil {
			batch.Rollback(ctx)
			return stats, err
		}

		contract, ok := ParseTransaction(raw, p.opts.Thresholds.MinAwardAmount)
		if !ok {
			continue
		}
		stats.Parsed++

		if err := p.processContract(ctx, batch, contract, &stats); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", contract.ContractID, err))
			p.logger.Warn().Err(err).
				Str("contract_id", contract.ContractID).
				Str("awardee", contract.AwardeeName).
				Msg("contract skipped")
		}
	}

	if err := batch.Commit(ctx); err != nil {
		return stats, err
	}
	return stats, nil
}

// processContract handles one parsed contract end to end. A failure here is
// isolated to this contract; the caller records it and moves on.
func (p *Pipeline) processContract(ctx context.Context, batch storage.SignalWriter, contract *ParsedContract, stats *RunStats) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	match := p.resolver.Resolve(contract.AwardeeName)
	if !match.Found() {
		p.logger.Debug().Str("awardee", contract.AwardeeName).Msg("no ticker match")
		return nil
	}
	stats.Matched++

	data, err := p.market.Lookup(ctx, match.Ticker)
	if err != nil {
		return fmt.Errorf("market lookup %s: %w", match.Ticker, err)
	}

	var marketCap *decimal.Decimal
	if data != nil {
		marketCap = &data.MarketCap
	}

	ratio := decimal.Zero
	if marketCap != nil {
		ratio = valuation.ImpactRatio(contract.AwardAmount, *marketCap)
	}

	decision := valuation.Evaluate(p.opts.Thresholds, contract.AwardAmount, marketCap, ratio)
	if !decision.Accept {
		p.logger.Debug().
			Str("ticker", match.Ticker).
			Str("awardee", contract.AwardeeName).
			Str("reason", decision.Reason).
			Msg("signal rejected")
		return nil
	}

	signal := storage.Signal{
		ContractID:       contract.ContractID,
		Ticker:           match.Ticker,
		AgencyName:       contract.AgencyName,
		Description:      contract.Description,
		AwardAmount:      contract.AwardAmount,
		PotentialCeiling: contract.PotentialCeiling,
		MarketCapAtTime:  marketCap,
		ImpactRatio:      ratio,
		ContractDate:     contract.ContractDate,
		DetectedAt:       time.Now().UTC(),
	}
	if contract.SourceURL != "" {
		url := contract.SourceURL
		signal.SourceURL = &url
	}

	if p.enricher != nil && p.opts.EnrichOnDetect && contract.ContractDate != nil {
		evolution := p.enricher.Enrich(ctx, match.Ticker, *contract.ContractDate)
		applyEvolution(&signal, evolution)
	}

	inserted, err := batch.InsertSignalIfAbsent(ctx, signal)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	if !inserted {
		p.logger.Debug().Str("contract_id", contract.ContractID).Msg("signal already recorded")
		return nil
	}
	stats.Created++

	tier := valuation.Tier(ratio)
	event := p.logger.Info().
		Str("ticker", match.Ticker).
		Str("awardee", contract.AwardeeName).
		Str("contract_id", contract.ContractID).
		Str("impact_ratio", ratio.String()).
		Str("tier", tier).
		Float64("confidence", match.Confidence)
	if ceiling := valuation.CeilingImpact(contract.AwardAmount, contract.PotentialCeiling, *marketCap); ceiling != nil {
		event = event.Str("ceiling_impact", ceiling.String())
	}
	event.Msg("signal created")

	p.notify(ctx, signal, match.CompanyName, tier)
	return nil
}

// notify dispatches an alert for a freshly created signal. Best effort; a
// delivery failure is logged and does not affect the run.
func (p *Pipeline) notify(ctx context.Context, signal storage.Signal, companyName, tier string) {
	if p.notifier == nil || valuation.TierRank(tier) < p.opts.AlertMinRank {
		return
	}

	notification := alerting.Notification{
		Ticker:       signal.Ticker,
		CompanyName:  companyName,
		AgencyName:   signal.AgencyName,
		AwardAmount:  signal.AwardAmount,
		ImpactRatio:  signal.ImpactRatio,
		Tier:         tier,
		ContractDate: signal.ContractDate,
	}
	if signal.MarketCapAtTime != nil {
		notification.MarketCap = *signal.MarketCapAtTime
	}
	if signal.SourceURL != nil {
		notification.SourceURL = *signal.SourceURL
	}

	if err := p.notifier.Notify(ctx, notification); err != nil {
		p.logger.Warn().Err(err).Str("ticker", signal.Ticker).Msg("alert delivery failed")
	}
}

// EnrichPending backfills price evolution on stored signals that have none.
// Returns the number of signals updated.
func (p *Pipeline) EnrichPending(ctx context.Context, limit int) (int, error) {
	if p.enricher == nil {
		return 0, errors.New("enrichment not configured")
	}

	signals, err := p.store.ListUnenrichedSignals(ctx, limit)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, signal := range signals {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		if signal.ContractDate == nil {
			continue
		}

		evolution := p.enricher.Enrich(ctx, signal.Ticker, *signal.ContractDate)
		if evolution.Empty() {
			continue
		}

		ok, err := p.store.UpdateSignalPrices(ctx, signal.ID, storage.SignalPrices{
			AtContract: evolution.AtContract,
			Before1H:   evolution.Before1H,
			Before6H:   evolution.Before6H,
			Before24H:  evolution.Before24H,
			After1M:    evolution.After1M,
			After1H:    evolution.After1H,
			After6H:    evolution.After6H,
			After24H:   evolution.After24H,
		})
		if err != nil {
			p.logger.Warn().Err(err).Int64("signal_id", signal.ID).Msg("price backfill failed")
			continue
		}
		if ok {
			updated++
		}
	}

	p.logger.Info().Int("candidates", len(signals)).Int("updated", updated).Msg("enrichment pass finished")
	return updated, nil
}

// markRunning flips the status only. The last finished run's timestamp and
// counters stay visible in status reports until this run finishes.
func (p *Pipeline) markRunning() {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	p.status = StatusRunning
}

func (p *Pipeline) finishRun(status Status, started time.Time, stats RunStats) {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	p.status = status
	p.lastRun = &started
	p.lastStats = stats
}

func applyEvolution(signal *storage.Signal, evolution pricing.Evolution) {
	signal.PriceAtContract = evolution.AtContract
	signal.PriceBefore1H = evolution.Before1H
	signal.PriceBefore6H = evolution.Before6H
	signal.PriceBefore24H = evolution.Before24H
	signal.PriceAfter1M = evolution.After1M
	signal.PriceAfter1H = evolution.After1H
	signal.PriceAfter6H = evolution.After6H
	signal.PriceAfter24H = evolution.After24H
}
