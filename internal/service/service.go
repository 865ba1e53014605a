package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"crisiswatch/internal/alerting"
	"crisiswatch/internal/config"
	"crisiswatch/internal/marketdata"
	"crisiswatch/internal/pipeline"
	"crisiswatch/internal/scheduler"
	"crisiswatch/internal/storage"
)

// Recovery thresholds for grading a deployed countermeasure, in percent
// change of price versus the deployment price.
const (
	recoverySuccessPct = 0.5
	recoveryFailurePct = -1.0
)

// How far back a deployment stays under effectiveness monitoring.
const monitorLookback = 24 * time.Hour

// Service drives the continuous surveillance loop: one pipeline scan per
// watched ticker per cycle, alert dispatch for verified attacks, and
// effectiveness follow-up on deployed countermeasures.
type Service struct {
	scheduler   *scheduler.Scheduler
	pipeline    *pipeline.Pipeline
	prices      marketdata.PriceFetcher
	deployments storage.DeploymentStore
	notifier    alerting.Notifier
	logger      zerolog.Logger

	tickers  []string
	alertsOn bool
	locker   storage.AdvisoryLocker
	lockKey  int64

	mu       sync.Mutex
	inFlight map[string]bool
}

// New constructs the surveillance service.
func New(cfg *config.Config, sched *scheduler.Scheduler, pipe *pipeline.Pipeline, prices marketdata.PriceFetcher, deployments storage.DeploymentStore, locker storage.AdvisoryLocker, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		scheduler:   sched,
		pipeline:    pipe,
		prices:      prices,
		deployments: deployments,
		notifier:    notifier,
		logger:      logger.With().Str("component", "service").Logger(),
		tickers:     cfg.Surveillance.Tickers,
		alertsOn:    cfg.Alerting.Enabled,
		locker:      locker,
		lockKey:     cfg.Scheduler.AdvisoryLockKey,
		inFlight:    make(map[string]bool),
	}
}

// Run begins the surveillance loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	if len(s.tickers) == 0 {
		return fmt.Errorf("surveillance.tickers is empty")
	}
	return s.scheduler.Run(ctx, s.ProcessCycle)
}

// ProcessCycle executes one surveillance cycle across all watched tickers.
func (s *Service) ProcessCycle(ctx context.Context, cycle int, at time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Int("cycle", cycle).Msg("skip cycle because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	s.scanAll(ctx, cycle)
	s.checkDeployments(ctx, at)
	return nil
}

// scanAll fans out one pipeline scan per ticker. A ticker whose previous
// scan is still running is skipped rather than doubled up.
func (s *Service) scanAll(ctx context.Context, cycle int) {
	var wg sync.WaitGroup
	for _, ticker := range s.tickers {
		if !s.claim(ticker) {
			s.logger.Warn().Str("ticker", ticker).Int("cycle", cycle).Msg("previous scan still running; skipping")
			continue
		}

		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			defer s.release(ticker)
			s.scanOne(ctx, ticker)
		}(ticker)
	}
	wg.Wait()
}

func (s *Service) scanOne(ctx context.Context, ticker string) {
	result := s.pipeline.ScanTicker(ctx, ticker)

	if result.Failed() {
		s.logger.Error().Err(result.Err).
			Str("ticker", ticker).
			Str("stage", string(result.FailedStage)).
			Msg("scan failed")
		return
	}

	if result.Outcome != pipeline.OutcomeVerified || result.Attack == nil {
		return
	}

	attack := result.Attack

	if s.alertsOn && s.notifier != nil {
		note := alerting.Notification{
			EventID:        attack.EventID,
			Ticker:         attack.Ticker,
			Headline:       attack.SmokingGunHeadline,
			Confidence:     attack.Confidence,
			PanicScore:     attack.PanicScore,
			LatencyMinutes: attack.LatencyMinutes,
			CurrentPrice:   attack.CurrentPrice,
			ProjectedLoss:  attack.ProjectedLossPct,
			CrashTime:      attack.CrashTimestamp,
		}
		if err := s.notifier.Notify(ctx, note); err != nil {
			s.logger.Error().Err(err).Str("event_id", attack.EventID).Msg("failed to dispatch alert")
		}
	}

	s.recordDeployment(ctx, attack.EventID, attack.Ticker, attack.CurrentPrice, attack.CrashTimestamp)
}

// recordDeployment registers the drafted countermeasures as deployed so
// the effectiveness monitor can grade recovery on later cycles.
func (s *Service) recordDeployment(ctx context.Context, eventID, ticker string, deployPrice decimal.Decimal, crashTime time.Time) {
	if s.deployments == nil {
		return
	}

	rec := storage.DeploymentRecord{
		EventID:     eventID,
		Ticker:      ticker,
		Strategy:    "official_denial",
		DeployPrice: deployPrice,
		DeployedAt:  time.Now().UTC(),
		Status:      "active",
	}
	stored, err := s.deployments.InsertDeployment(ctx, rec)
	if err != nil {
		s.logger.Error().Err(err).Str("event_id", eventID).Msg("failed to record deployment")
		return
	}

	s.logger.Info().
		Str("event_id", eventID).
		Int64("deployment_id", stored.ID).
		Time("crash_time", crashTime).
		Msg("countermeasure deployment recorded")
}

// checkDeployments grades active deployments by how far the price has
// recovered from the deployment price.
func (s *Service) checkDeployments(ctx context.Context, at time.Time) {
	if s.deployments == nil || s.prices == nil {
		return
	}

	active, err := s.deployments.ListActiveDeployments(ctx, at.Add(-monitorLookback))
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list active deployments")
		return
	}

	for _, rec := range active {
		if rec.DeployPrice.IsZero() {
			continue
		}

		series, err := s.prices.FetchPriceSeries(ctx, rec.Ticker, "1d", "1m")
		if err != nil {
			s.logger.Error().Err(err).Str("ticker", rec.Ticker).Msg("effectiveness check fetch failed")
			continue
		}
		latest, ok := series.Latest()
		if !ok {
			continue
		}

		recovery := latest.Close.Sub(rec.DeployPrice).
			Div(rec.DeployPrice).
			Mul(decimal.NewFromInt(100))
		grade := gradeRecovery(recovery)

		if err := s.deployments.UpdateDeploymentOutcome(ctx, rec.ID, recovery, grade); err != nil {
			s.logger.Error().Err(err).Int64("deployment_id", rec.ID).Msg("failed to record deployment outcome")
			continue
		}

		s.logger.Info().
			Int64("deployment_id", rec.ID).
			Str("ticker", rec.Ticker).
			Str("recovery_pct", recovery.StringFixed(2)).
			Str("effectiveness", grade).
			Msg("deployment effectiveness graded")
	}
}

func gradeRecovery(recoveryPct decimal.Decimal) string {
	switch {
	case recoveryPct.GreaterThan(decimal.NewFromFloat(recoverySuccessPct)):
		return storage.EffectivenessSuccess
	case recoveryPct.LessThan(decimal.NewFromFloat(recoveryFailurePct)):
		return storage.EffectivenessFailure
	default:
		return storage.EffectivenessNeutral
	}
}

func (s *Service) claim(ticker string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[ticker] {
		return false
	}
	s.inFlight[ticker] = true
	return true
}

func (s *Service) release(ticker string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, ticker)
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
