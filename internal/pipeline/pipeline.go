package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"crisiswatch/internal/correlation"
	"crisiswatch/internal/detector"
	"crisiswatch/internal/hunter"
	"crisiswatch/internal/intel"
	"crisiswatch/internal/marketdata"
	"crisiswatch/internal/model"
	"crisiswatch/internal/storage"
)

// PlaceholderResponse marks a response field the generator failed to
// produce; the verified threat is kept regardless.
const PlaceholderResponse = "[RESPONSE GENERATION FAILED - MANUAL DRAFT REQUIRED]"

// Options tune a pipeline instance.
type Options struct {
	DataRange     string
	Interval      string
	WindowMinutes int
	Thresholds    detector.Thresholds
}

// Pipeline sequences detection, hunting, correlation, response drafting
// and archival for one ticker at a time. Every collaborator is injected;
// instances hold no shared state and are safe to run concurrently for
// different tickers.
type Pipeline struct {
	prices    marketdata.PriceFetcher
	hunter    *hunter.Hunter
	engine    *correlation.Engine
	generator intel.ResponseGenerator
	archive   storage.ThreatArchive
	opts      Options
	logger    zerolog.Logger
	now       func() time.Time
}

// New constructs a pipeline with explicit collaborator dependencies.
func New(prices marketdata.PriceFetcher, huntr *hunter.Hunter, engine *correlation.Engine, generator intel.ResponseGenerator, archive storage.ThreatArchive, opts Options, logger zerolog.Logger) *Pipeline {
	if opts.DataRange == "" {
		opts.DataRange = "1d"
	}
	if opts.Interval == "" {
		opts.Interval = "1m"
	}
	if opts.WindowMinutes <= 0 {
		opts.WindowMinutes = 30
	}
	if opts.Thresholds == (detector.Thresholds{}) {
		opts.Thresholds = detector.DefaultThresholds()
	}

	return &Pipeline{
		prices:    prices,
		hunter:    huntr,
		engine:    engine,
		generator: generator,
		archive:   archive,
		opts:      opts,
		logger:    logger.With().Str("component", "pipeline").Logger(),
		now:       time.Now,
	}
}

// ScanTicker runs one ticker through the full pipeline and returns the
// terminal state it reached. The pipeline performs no internal retries;
// a FAILED result names the stage so the caller can retry it.
func (p *Pipeline) ScanTicker(ctx context.Context, ticker string) ScanResult {
	scanTime := p.now().UTC()
	result := ScanResult{Ticker: ticker, ScannedAt: scanTime}

	// SCANNING: nothing downstream is meaningful without prices, so
	// this is the one stage whose failure halts the scan outright.
	series, err := p.prices.FetchPriceSeries(ctx, ticker, p.opts.DataRange, p.opts.Interval)
	if err != nil {
		return p.fail(result, StageScan, err)
	}

	stats, err := detector.ComputeVolatility(series, p.opts.Thresholds)
	if err != nil {
		return p.fail(result, StageScan, err)
	}
	result.Stats = &stats

	prediction, err := detector.Predict(series, p.opts.Thresholds)
	if err != nil {
		return p.fail(result, StageScan, err)
	}
	result.Prediction = &prediction

	if stats.Status != model.StatusSigmaEvent {
		p.logger.Info().Str("ticker", ticker).Str("status", string(stats.Status)).Float64("z_score", stats.ZScore).Msg("no anomaly detected")
		result.Outcome = OutcomeNormal
		return result
	}

	crashTime := scanTime
	if latest, ok := series.Latest(); ok && !latest.Timestamp.IsZero() {
		crashTime = latest.Timestamp
	}

	p.logger.Warn().
		Str("ticker", ticker).
		Float64("z_score", stats.ZScore).
		Float64("projected_loss", prediction.ProjectedLossPct).
		Time("crash_time", crashTime).
		Msg("sigma event detected")

	// HUNTING
	hunt, err := p.hunter.Hunt(ctx, hunter.HuntRequest{
		Ticker:        ticker,
		CrashTime:     crashTime,
		WindowMinutes: p.opts.WindowMinutes,
	})
	if err != nil {
		return p.fail(result, StageHunt, err)
	}
	result.Hunt = &hunt

	if !hunt.SmokingGunFound {
		p.logger.Info().Str("ticker", ticker).Str("verdict", string(hunt.Verdict)).Msg("no misinformation trigger; crash appears organic")
		result.Outcome = OutcomeOrganic
		return result
	}

	// CORRELATING
	corr := p.engine.Correlate(crashTime, hunt.Articles, hunt.Assessment.Score)
	result.Correlation = &corr

	if corr.Verdict != model.CorrelationHighConfidence {
		p.logger.Info().
			Str("ticker", ticker).
			Int("confidence", corr.Confidence).
			Str("verdict", string(corr.Verdict)).
			Msg("confidence below gate; flagged for manual review")
		result.Outcome = OutcomeLowConfidence
		return result
	}

	// RESPONDING: the detection result is worth more than the drafted
	// response, so generation failures degrade to placeholders.
	responses, degraded := p.draftResponses(ctx, ticker, hunt, prediction, corr)
	if degraded {
		result.Degraded = append(result.Degraded, StageRespond)
	}

	// ARCHIVED
	attack := p.assemble(ticker, scanTime, crashTime, stats, prediction, hunt, corr, responses)
	result.Attack = &attack

	if p.archive != nil {
		if err := p.archive.ArchiveAttack(ctx, attack); err != nil {
			p.logger.Error().Err(err).Str("event_id", attack.EventID).Str("stage", string(StageArchive)).Msg("archive write failed; attack still reported")
			result.Degraded = append(result.Degraded, StageArchive)
		}
	}

	p.logger.Warn().
		Str("ticker", ticker).
		Str("event_id", attack.EventID).
		Int("confidence", attack.Confidence).
		Str("headline", attack.SmokingGunHeadline).
		Msg("verified misinformation attack")

	result.Outcome = OutcomeVerified
	return result
}

// draftResponses returns the generated response set, or placeholders on
// generator failure. The second return reports the degraded case.
func (p *Pipeline) draftResponses(ctx context.Context, ticker string, hunt model.HuntResult, prediction model.Prediction, corr model.CorrelationResult) (model.ResponseSet, bool) {
	headline := hunt.Assessment.HighestRiskHeadline
	if corr.SmokingGun != nil {
		headline = corr.SmokingGun.Title
	}

	summary := intel.ThreatSummary{
		CompanyName:  hunter.CompanyName(ticker),
		FakeHeadline: headline,
		DropPct:      prediction.ProjectedLossPct,
		PanicScore:   hunt.Assessment.Score,
	}

	responses, err := p.generator.GenerateResponses(ctx, summary)
	if err != nil {
		p.logger.Error().Err(err).Str("ticker", ticker).Str("stage", string(StageRespond)).Msg("response generation failed; substituting placeholders")
		return model.ResponseSet{
			CeaseDesist:    PlaceholderResponse,
			OfficialDenial: PlaceholderResponse,
			CEOAlert:       PlaceholderResponse,
		}, true
	}

	// Structural shape only; content quality is the generator's problem.
	if responses.CeaseDesist == "" {
		responses.CeaseDesist = PlaceholderResponse
	}
	if responses.OfficialDenial == "" {
		responses.OfficialDenial = PlaceholderResponse
	}
	if responses.CEOAlert == "" {
		responses.CEOAlert = PlaceholderResponse
	}
	return responses, false
}

func (p *Pipeline) assemble(ticker string, scanTime, crashTime time.Time, stats model.VolatilityStats, prediction model.Prediction, hunt model.HuntResult, corr model.CorrelationResult, responses model.ResponseSet) model.AttackPackage {
	pkg := model.AttackPackage{
		EventID:          model.EventID(ticker, scanTime),
		Ticker:           ticker,
		CrashTimestamp:   crashTime,
		CurrentPrice:     stats.LatestPrice,
		ZScore:           stats.ZScore,
		ProjectedLossPct: prediction.ProjectedLossPct,
		LatencyMinutes:   corr.LatencyMinutes,
		PanicScore:       hunt.Assessment.Score,
		Confidence:       corr.Confidence,
		Responses:        responses,
		ArchivedAt:       p.now().UTC(),
	}
	if corr.SmokingGun != nil {
		pkg.SmokingGunHeadline = corr.SmokingGun.Title
		pkg.SmokingGunLink = corr.SmokingGun.Link
		pkg.ArticleTimestamp = corr.SmokingGun.PublishedAt
	}
	return pkg
}

func (p *Pipeline) fail(result ScanResult, stage Stage, err error) ScanResult {
	stageErr := &StageError{Stage: stage, Err: err}
	p.logger.Error().Err(err).Str("ticker", result.Ticker).Str("stage", string(stage)).Msg("pipeline stage failed")
	result.Outcome = OutcomeFailed
	result.FailedStage = stage
	result.Err = stageErr
	return result
}
