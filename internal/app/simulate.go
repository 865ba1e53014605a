package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"crisiswatch/internal/correlation"
	"crisiswatch/internal/hunter"
	"crisiswatch/internal/intel"
	"crisiswatch/internal/marketdata"
	"crisiswatch/internal/model"
	"crisiswatch/internal/news"
	"crisiswatch/internal/pipeline"
	"crisiswatch/internal/storage"
)

// SimulateCrash runs the pipeline against fixture collaborators: a
// synthetic sigma-event price series, a planted panic headline, and a
// canned panic score. It exercises every stage without touching any
// external service, so it doubles as an end-to-end smoke check of the
// configured thresholds.
func (a *App) SimulateCrash(ctx context.Context, ticker string) error {
	now := time.Now().UTC()

	prices := &syntheticCrashFetcher{now: now}
	source := &plantedHeadlineSource{now: now, ticker: ticker}
	llm := &cannedIntel{score: 90, headline: source.headline()}

	huntr := hunter.New(source, llm, hunter.Options{
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

	pipe := pipeline.New(prices, huntr, engine, llm, storage.NewMemoryArchive(), pipeline.Options{
		DataRange:     a.Config.MarketData.Range,
		Interval:      a.Config.MarketData.Interval,
		WindowMinutes: a.Config.Hunt.WindowMinutes,
		Thresholds:    a.thresholds(),
	}, a.Logger)

	result := pipe.ScanTicker(ctx, ticker)
	if result.Failed() {
		return fmt.Errorf("simulation failed at stage %s: %w", result.FailedStage, result.Err)
	}

	printScanResult(result)
	return nil
}

// syntheticCrashFetcher serves a flat intraday series that collapses in
// its final points, deep enough to clear any sane sigma threshold.
type syntheticCrashFetcher struct {
	now time.Time
}

func (f *syntheticCrashFetcher) FetchPriceSeries(_ context.Context, ticker, _, interval string) (model.PriceSeries, error) {
	const points = 60
	start := f.now.Add(-points * time.Minute)

	series := model.PriceSeries{
		Ticker:    ticker,
		Interval:  interval,
		FetchedAt: f.now,
		Points:    make([]model.PricePoint, 0, points),
	}
	for i := 0; i < points; i++ {
		price := 100.0
		switch {
		case i >= points-3:
			price = 82.0
		case i >= points-6:
			price = 91.0
		}
		series.Points = append(series.Points, model.PricePoint{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Close:     decimal.NewFromFloat(price),
		})
	}
	return series, nil
}

// plantedHeadlineSource returns one fabricated panic article published
// five minutes before the crash, whatever the query.
type plantedHeadlineSource struct {
	now    time.Time
	ticker string
}

func (s *plantedHeadlineSource) headline() string {
	return fmt.Sprintf("BREAKING: %s under federal fraud investigation, sources say", hunter.CompanyName(s.ticker))
}

func (s *plantedHeadlineSource) SearchNews(_ context.Context, _ string, _ int) ([]model.NewsArticle, error) {
	return []model.NewsArticle{
		{
			Title:       s.headline(),
			Link:        "https://news.example.invalid/planted",
			PublishedAt: s.now.Add(-5 * time.Minute),
		},
	}, nil
}

// cannedIntel replaces the LLM with deterministic outputs.
type cannedIntel struct {
	score    int
	headline string
}

func (c *cannedIntel) ScorePanic(_ context.Context, _ []string) (model.PanicAssessment, error) {
	return model.PanicAssessment{
		Score:               c.score,
		HighestRiskHeadline: c.headline,
		RiskReason:          "simulated fraud allegation",
	}, nil
}

func (c *cannedIntel) GenerateResponses(_ context.Context, _ intel.ThreatSummary) (model.ResponseSet, error) {
	return model.ResponseSet{
		CeaseDesist:    "SIMULATED cease and desist draft",
		OfficialDenial: "SIMULATED official denial draft",
		CEOAlert:       "SIMULATED CEO alert draft",
	}, nil
}

var _ marketdata.PriceFetcher = (*syntheticCrashFetcher)(nil)
var _ news.Source = (*plantedHeadlineSource)(nil)
var _ intel.PanicScorer = (*cannedIntel)(nil)
var _ intel.ResponseGenerator = (*cannedIntel)(nil)
