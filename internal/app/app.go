package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"govcontract-signals/internal/alerting"
	"govcontract-signals/internal/api"
	"govcontract-signals/internal/config"
	"govcontract-signals/internal/fetcher"
	"govcontract-signals/internal/pricing"
	"govcontract-signals/internal/resolver"
	"govcontract-signals/internal/scheduler"
	"govcontract-signals/internal/service"
	"govcontract-signals/internal/storage"
	"govcontract-signals/internal/valuation"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetchers() (fetcher.TransactionFetcher, fetcher.MarketDataFetcher, fetcher.PriceHistoryFetcher) {
	source := fetcher.NewUSASpending(fetcher.USASpendingOptions{
		BaseURL:        a.Config.USASpending.BaseURL,
		PageLimit:      a.Config.USASpending.PageLimit,
		MaxPages:       a.Config.USASpending.MaxPages,
		MinAwardAmount: decimal.NewFromFloat(a.Config.Pipeline.MinAwardAmount),
		Timeout:        a.Config.USASpending.RequestTimeout,
		UserAgent:      a.Config.USASpending.UserAgent,
	}, a.Logger)

	marketOpts := fetcher.MarketOptions{
		BaseURL:   a.Config.Market.BaseURL,
		Timeout:   a.Config.Market.RequestTimeout,
		UserAgent: a.Config.Market.UserAgent,
	}
	market := fetcher.NewMarket(marketOpts, a.Logger)
	history := fetcher.NewHistory(marketOpts, a.Logger)

	return source, market, history
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Enabled && a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, errors.New("database.dsn not configured")
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}

	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newPipeline(store *storage.Store) *service.Pipeline {
	source, market, history := a.newFetchers()

	var enricher *pricing.Enricher
	if a.Config.Pipeline.EnrichmentOn {
		enricher = pricing.NewEnricher(history, a.Config.Pipeline.EnrichWindowDays, a.Logger)
	}

	res := resolver.New(store, nil, a.Config.Pipeline.FuzzyCutoff, a.Logger)

	return service.NewPipeline(store, res, source, market, enricher, a.newNotifier(), store, service.Options{
		LookbackDays:    a.Config.Pipeline.LookbackDays,
		Thresholds:      thresholds(a.Config.Pipeline),
		EnrichOnDetect:  a.Config.Pipeline.EnrichmentOn,
		AlertMinRank:    a.Config.Alerting.MinTierRank(),
		AdvisoryLockKey: a.Config.Scheduler.AdvisoryLockKey,
	}, a.Logger)
}

func thresholds(cfg config.PipelineConfig) valuation.Thresholds {
	return valuation.Thresholds{
		MinAwardAmount: decimal.NewFromFloat(cfg.MinAwardAmount),
		MinImpactRatio: decimal.NewFromFloat(cfg.MinImpactRatio),
		MaxMarketCap:   decimal.NewFromFloat(cfg.MaxMarketCap),
	}
}

// Run executes the long-running detection service: the interval scheduler
// plus, when enabled, the REST API.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	pipeline := a.newPipeline(store)

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)
	pipeline.SetNextRunFunc(sched.Next)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return sched.Run(ctx, func(ctx context.Context) error {
			_, err := pipeline.Run(ctx)
			if errors.Is(err, service.ErrRunInProgress) {
				a.Logger.Warn().Msg("previous run still active; skipping tick")
				return nil
			}
			return err
		})
	})

	if a.Config.API.Enabled {
		handler := api.NewHandler(store, store, pipeline, a.Logger)
		server := api.NewServer(a.Config.API, api.NewRouter(handler, a.Logger), a.Logger)

		group.Go(server.Start)
		group.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	a.Logger.Info().Msg("starting detection service")
	err = group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("detection service stopped")
	return nil
}

// RunOnce executes a single pipeline cycle and prints the counters.
func (a *App) RunOnce(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	stats, err := a.newPipeline(store).Run(ctx)
	if err != nil {
		return err
	}

	a.Logger.Info().
		Int("fetched", stats.Fetched).
		Int("parsed", stats.Parsed).
		Int("matched", stats.Matched).
		Int("created", stats.Created).
		Int("errors", len(stats.Errors)).
		Msg("run finished")
	return nil
}

// Enrich backfills price evolution on signals that have none.
func (a *App) Enrich(ctx context.Context, limit int) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if !a.Config.Pipeline.EnrichmentOn {
		return errors.New("pipeline.enrichment_enabled is off")
	}

	updated, err := a.newPipeline(store).EnrichPending(ctx, limit)
	if err != nil {
		return err
	}
	fmt.Printf("backfilled prices on %d signals\n", updated)
	return nil
}

// ExportOptions hold parameters for exporting stored signals.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit     int
	MinImpact float64
	Ticker    string
}

// SeedOptions configure the company seed job.
type SeedOptions struct {
	Tickers []string
}
