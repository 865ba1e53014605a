package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"crisiswatch/internal/alerting"
	"crisiswatch/internal/config"
	"crisiswatch/internal/correlation"
	"crisiswatch/internal/detector"
	"crisiswatch/internal/hunter"
	"crisiswatch/internal/intel"
	"crisiswatch/internal/marketdata"
	"crisiswatch/internal/news"
	"crisiswatch/internal/pipeline"
	"crisiswatch/internal/scheduler"
	"crisiswatch/internal/service"
	"crisiswatch/internal/storage"
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

func (a *App) newPriceFetcher() marketdata.PriceFetcher {
	return marketdata.NewYahooChart(marketdata.YahooOptions{
		BaseURL:           a.Config.MarketData.BaseURL,
		APIKey:            a.Config.MarketData.APIKey,
		Timeout:           a.Config.MarketData.RequestTimeout,
		UserAgent:         a.Config.MarketData.UserAgent,
		MinIntradayPoints: a.Config.MarketData.MinIntradayPoints,
	}, a.Logger)
}

func (a *App) newNewsSource() news.Source {
	return news.NewGoogleRSS(news.GoogleOptions{
		BaseURL:  a.Config.News.BaseURL,
		Language: a.Config.News.Language,
		Country:  a.Config.News.Country,
		Timeout:  a.Config.News.RequestTimeout,
		MaxItems: a.Config.News.MaxItems,
	}, a.Logger)
}

func (a *App) newIntel() *intel.Gemini {
	return intel.NewGemini(intel.GeminiOptions{
		BaseURL: a.Config.Gemini.BaseURL,
		APIKey:  a.Config.Gemini.APIKey,
		Model:   a.Config.Gemini.Model,
		Timeout: a.Config.Gemini.RequestTimeout,
	}, a.Logger)
}

func (a *App) thresholds() detector.Thresholds {
	return detector.Thresholds{
		SigmaZ:       a.Config.Detection.SigmaZ,
		HighVolZ:     a.Config.Detection.HighVolZ,
		RallyZ:       a.Config.Detection.RallyZ,
		SlopeEpsilon: a.Config.Detection.SlopeEpsilon,
		TrendWindow:  a.Config.Detection.TrendWindow,
		HorizonSteps: a.Config.Detection.HorizonSteps,
	}
}

// newPipeline assembles the full detection pipeline from configuration.
// Pass a nil archive to fall back to the in-memory one.
func (a *App) newPipeline(archive storage.ThreatArchive) *pipeline.Pipeline {
	if archive == nil {
		archive = storage.NewMemoryArchive()
	}

	llm := a.newIntel()

	huntr := hunter.New(a.newNewsSource(), llm, hunter.Options{
		WindowMinutes:       a.Config.Hunt.WindowMinutes,
		Keywords:            a.Config.Hunt.Keywords,
		SmokingGunThreshold: a.Config.Hunt.SmokingGunThreshold,
	}, a.Logger)

	engine := correlation.NewEngine(correlation.Weights{
		TemporalWeight: a.Config.Correlation.TemporalWeight,
		PanicWeight:    a.Config.Correlation.PanicWeight,
		DecayPerMinute: a.Config.Correlation.DecayPerMinute,
		WindowMinutes:  a.Config.Correlation.WindowMinutes,
		ConfidenceGate: a.Config.Correlation.ConfidenceGate,
	}, a.Logger)

	return pipeline.New(a.newPriceFetcher(), huntr, engine, llm, archive, pipeline.Options{
		DataRange:     a.Config.MarketData.Range,
		Interval:      a.Config.MarketData.Interval,
		WindowMinutes: a.Config.Hunt.WindowMinutes,
		Thresholds:    a.thresholds(),
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// archiveOrNil avoids handing a typed-nil Store to the pipeline.
func archiveOrNil(store *storage.Store) storage.ThreatArchive {
	if store == nil {
		return nil
	}
	return store
}

// Run executes the long-running surveillance service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; archiving to memory only")
	}
	if closeStore != nil {
		defer closeStore()
	}

	var archive storage.ThreatArchive
	var deployments storage.DeploymentStore
	var locker storage.AdvisoryLocker
	if store != nil {
		archive = store
		deployments = store
		locker = store
	}

	sched := scheduler.New(scheduler.Options{
		Interval:        a.Config.Scheduler.Interval,
		AlignToInterval: a.Config.Scheduler.AlignToInterval,
		StartupDelay:    a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	pipe := a.newPipeline(archive)
	svc := service.New(a.Config, sched, pipe, a.newPriceFetcher(), deployments, locker, a.newNotifier(), a.Logger)

	a.Logger.Info().
		Strs("tickers", a.Config.Surveillance.Tickers).
		Dur("interval", a.Config.Scheduler.Interval).
		Msg("starting surveillance service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("surveillance service stopped")
	return nil
}

// ExportOptions hold parameters for exporting archived attacks.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
