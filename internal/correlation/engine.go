package correlation

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"crisiswatch/internal/model"
)

// Weights encode the causality scoring policy. Temporal proximity is
// weighted above panic intensity; the decay rate and window bound which
// articles count as causal candidates at all. These are tuning knobs,
// not derived values.
type Weights struct {
	TemporalWeight float64
	PanicWeight    float64
	DecayPerMinute float64
	WindowMinutes  float64
	ConfidenceGate int
}

// DefaultWeights returns the documented default policy.
func DefaultWeights() Weights {
	return Weights{
		TemporalWeight: 0.6,
		PanicWeight:    0.4,
		DecayPerMinute: 3,
		WindowMinutes:  30,
		ConfidenceGate: 80,
	}
}

// Engine decides whether a specific article caused a specific price
// anomaly. Correlate is deterministic and does no I/O.
type Engine struct {
	weights Weights
	logger  zerolog.Logger
}

// NewEngine constructs a correlation engine.
func NewEngine(weights Weights, logger zerolog.Logger) *Engine {
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	if weights.WindowMinutes <= 0 {
		weights.WindowMinutes = DefaultWeights().WindowMinutes
	}
	return &Engine{
		weights: weights,
		logger:  logger.With().Str("component", "correlation").Logger(),
	}
}

// Weights returns the active scoring policy.
func (e *Engine) Weights() Weights {
	return e.weights
}

type candidate struct {
	article model.NewsArticle
	latency float64
}

// Correlate matches articles against a crash timestamp and scores the
// best match. Articles published after the crash, or earlier than the
// causal window allows, are discarded rather than penalised. panicScore
// is the batch score attached to the article set by the hunter.
func (e *Engine) Correlate(crashTime time.Time, articles []model.NewsArticle, panicScore int) model.CorrelationResult {
	if len(articles) == 0 {
		return model.CorrelationResult{Verdict: model.CorrelationNoNewsData}
	}

	candidates := make([]candidate, 0, len(articles))
	for _, article := range articles {
		if article.PublishedAt.IsZero() {
			continue
		}
		latency := crashTime.Sub(article.PublishedAt).Minutes()
		if latency <= 0 || latency > e.weights.WindowMinutes {
			continue
		}
		candidates = append(candidates, candidate{article: article, latency: latency})
	}

	if len(candidates) == 0 {
		e.logger.Debug().Time("crash_time", crashTime).Int("articles", len(articles)).Msg("no articles in causal window")
		return model.CorrelationResult{Verdict: model.CorrelationNoTemporalMatch}
	}

	// The proximate trigger, not the first-published article, is
	// assumed most causal.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].latency < candidates[j].latency
	})

	best := candidates[0]
	confidence := e.confidence(best.latency, panicScore)

	verdict := model.CorrelationMediumConfidence
	if confidence > e.weights.ConfidenceGate {
		verdict = model.CorrelationHighConfidence
	}

	gun := best.article
	e.logger.Info().
		Str("headline", gun.Title).
		Float64("latency_minutes", best.latency).
		Int("confidence", confidence).
		Str("verdict", string(verdict)).
		Msg("correlation scored")

	return model.CorrelationResult{
		Found:           true,
		SmokingGun:      &gun,
		LatencyMinutes:  best.latency,
		Confidence:      confidence,
		Verdict:         verdict,
		TotalCandidates: len(candidates),
	}
}

func (e *Engine) confidence(latencyMinutes float64, panicScore int) int {
	temporal := math.Max(0, 100-e.weights.DecayPerMinute*latencyMinutes)
	blended := e.weights.TemporalWeight*temporal + e.weights.PanicWeight*float64(panicScore)
	return int(math.Round(blended))
}
