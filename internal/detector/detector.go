package detector

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"

	"crisiswatch/internal/model"
)

// ErrInsufficientData signals a series too short to analyse. Callers are
// expected to retry at a coarser granularity before giving up.
var ErrInsufficientData = errors.New("detector: insufficient price data")

const minPoints = 2

// Thresholds carry the detection policy constants. The defaults encode
// the documented policy (2-sigma anomaly, 10-point trend window, 12-step
// projection) but all of them are deliberate tuning knobs.
type Thresholds struct {
	SigmaZ       float64
	HighVolZ     float64
	RallyZ       float64
	SlopeEpsilon float64
	TrendWindow  int
	HorizonSteps int
}

// DefaultThresholds returns the documented default policy.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SigmaZ:       2.0,
		HighVolZ:     1.0,
		RallyZ:       2.0,
		SlopeEpsilon: 0.1,
		TrendWindow:  10,
		HorizonSteps: 12,
	}
}

// ComputeVolatility derives mean, population standard deviation and the
// z-score of the latest price over the full series. A zero-variance
// series yields a zero z-score rather than a division by zero.
func ComputeVolatility(series model.PriceSeries, th Thresholds) (model.VolatilityStats, error) {
	if series.Len() < minPoints {
		return model.VolatilityStats{}, ErrInsufficientData
	}

	closes := series.Closes()
	mean := meanOf(closes)
	stdDev := populationStdDev(closes, mean)
	latest := closes[len(closes)-1]

	zScore := 0.0
	if stdDev > 0 {
		zScore = (latest - mean) / stdDev
	}

	latestPoint, _ := series.Latest()

	return model.VolatilityStats{
		Mean:        mean,
		StdDev:      stdDev,
		ZScore:      zScore,
		LatestPrice: latestPoint.Close,
		Status:      classify(zScore, th),
		DataPoints:  series.Len(),
	}, nil
}

// Predict fits an ordinary least-squares line through the trailing trend
// window and extrapolates it HorizonSteps into the future.
func Predict(series model.PriceSeries, th Thresholds) (model.Prediction, error) {
	if series.Len() < minPoints {
		return model.Prediction{}, ErrInsufficientData
	}

	closes := series.Closes()
	window := th.TrendWindow
	if window < minPoints {
		window = minPoints
	}
	if len(closes) > window {
		closes = closes[len(closes)-window:]
	}

	slope, intercept := leastSquares(closes)

	futureIndex := float64(len(closes) + th.HorizonSteps)
	projected := slope*futureIndex + intercept
	current := closes[len(closes)-1]

	changePct := 0.0
	if current != 0 {
		changePct = (projected - current) / current * 100
	}

	trend := model.TrendSideways
	switch {
	case slope < -th.SlopeEpsilon:
		trend = model.TrendDownward
	case slope > th.SlopeEpsilon:
		trend = model.TrendUpward
	}

	return model.Prediction{
		Slope:            slope,
		Intercept:        intercept,
		ProjectedPrice:   decimal.NewFromFloat(projected),
		ProjectedLossPct: changePct,
		Trend:            trend,
	}, nil
}

func classify(zScore float64, th Thresholds) model.VolatilityStatus {
	switch {
	case zScore < -th.SigmaZ:
		return model.StatusSigmaEvent
	case zScore < -th.HighVolZ:
		return model.StatusHighVolatility
	case zScore > th.RallyZ:
		return model.StatusRally
	default:
		return model.StatusStable
	}
}

func meanOf(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func populationStdDev(values []float64, mean float64) float64 {
	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// leastSquares fits y = slope*x + intercept against the point index.
func leastSquares(values []float64) (slope, intercept float64) {
	n := float64(len(values))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}
