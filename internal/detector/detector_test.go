package detector

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"crisiswatch/internal/model"
)

func seriesOf(closes ...float64) model.PriceSeries {
	start := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	points := make([]model.PricePoint, len(closes))
	for i, c := range closes {
		points[i] = model.PricePoint{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Close:     decimal.NewFromFloat(c),
		}
	}
	return model.PriceSeries{Ticker: "ACME", Interval: "1m", Points: points}
}

func TestComputeVolatilityInsufficientData(t *testing.T) {
	_, err := ComputeVolatility(seriesOf(100), DefaultThresholds())
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestComputeVolatilityFlatSeries(t *testing.T) {
	stats, err := ComputeVolatility(seriesOf(100, 100, 100, 100), DefaultThresholds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.StdDev != 0 {
		t.Fatalf("flat series should have zero std dev, got %f", stats.StdDev)
	}
	if stats.ZScore != 0 {
		t.Fatalf("flat series should have zero z-score, got %f", stats.ZScore)
	}
	if stats.Status != model.StatusStable {
		t.Fatalf("flat series should be STABLE, got %s", stats.Status)
	}
}

func TestComputeVolatilityUsesPopulationStdDev(t *testing.T) {
	stats, err := ComputeVolatility(seriesOf(2, 4, 4, 4, 5, 5, 7, 9), DefaultThresholds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(stats.Mean-5) > 1e-9 {
		t.Fatalf("mean = %f, want 5", stats.Mean)
	}
	// Population variance of this classic sample is exactly 4.
	if math.Abs(stats.StdDev-2) > 1e-9 {
		t.Fatalf("population std dev = %f, want 2", stats.StdDev)
	}
	if math.Abs(stats.ZScore-2) > 1e-9 {
		t.Fatalf("z-score = %f, want 2", stats.ZScore)
	}
}

func TestComputeVolatilityClassification(t *testing.T) {
	cases := []struct {
		name   string
		closes []float64
		want   model.VolatilityStatus
	}{
		{"crash", []float64{100, 100, 100, 100, 100, 100, 100, 100, 100, 70}, model.StatusSigmaEvent},
		{"rally", []float64{100, 100, 100, 100, 100, 100, 100, 100, 100, 130}, model.StatusRally},
		{"drift", []float64{100, 101, 99, 100, 101, 99, 100, 101, 99, 100}, model.StatusStable},
	}

	th := DefaultThresholds()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stats, err := ComputeVolatility(seriesOf(tc.closes...), th)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if stats.Status != tc.want {
				t.Fatalf("status = %s (z=%f), want %s", stats.Status, stats.ZScore, tc.want)
			}
		})
	}
}

func TestComputeVolatilityHighVolatilityBand(t *testing.T) {
	// The last value sits between one and two population sigmas below
	// the mean.
	closes := []float64{100, 102, 98, 100, 102, 98, 100, 102, 98, 97}
	stats, err := ComputeVolatility(seriesOf(closes...), DefaultThresholds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.ZScore >= -1 || stats.ZScore <= -2 {
		t.Fatalf("fixture should land in (-2,-1), z=%f", stats.ZScore)
	}
	if stats.Status != model.StatusHighVolatility {
		t.Fatalf("status = %s, want HIGH_VOLATILITY", stats.Status)
	}
}

func TestPredictDownwardTrend(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 200 - float64(i) // slope -1 per step
	}

	pred, err := Predict(seriesOf(closes...), DefaultThresholds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pred.Trend != model.TrendDownward {
		t.Fatalf("trend = %s, want DOWNWARD", pred.Trend)
	}
	if math.Abs(pred.Slope+1) > 1e-9 {
		t.Fatalf("slope = %f, want -1", pred.Slope)
	}
	if pred.ProjectedLossPct >= 0 {
		t.Fatalf("projected change should be negative, got %f", pred.ProjectedLossPct)
	}
}

func TestPredictUpwardTrend(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.5 // slope +0.5 per step
	}

	pred, err := Predict(seriesOf(closes...), DefaultThresholds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pred.Trend != model.TrendUpward {
		t.Fatalf("trend = %s, want UPWARD", pred.Trend)
	}
	if math.Abs(pred.Slope-0.5) > 1e-9 {
		t.Fatalf("slope = %f, want 0.5", pred.Slope)
	}
	if pred.ProjectedLossPct <= 0 {
		t.Fatalf("projected change should be positive, got %f", pred.ProjectedLossPct)
	}
}

func TestPredictSidewaysWithinEpsilon(t *testing.T) {
	closes := []float64{100, 100.01, 100, 100.02, 100, 100.01, 100, 100.02, 100, 100.01}
	pred, err := Predict(seriesOf(closes...), DefaultThresholds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pred.Trend != model.TrendSideways {
		t.Fatalf("trend = %s (slope=%f), want SIDEWAYS", pred.Trend, pred.Slope)
	}
}

func TestPredictUsesTrailingWindowOnly(t *testing.T) {
	// 50 flat points followed by a 10-point linear decline. Only the
	// trailing window should drive the fit.
	closes := make([]float64, 60)
	for i := 0; i < 50; i++ {
		closes[i] = 100
	}
	for i := 50; i < 60; i++ {
		closes[i] = 100 - float64(i-49)*2
	}

	pred, err := Predict(seriesOf(closes...), DefaultThresholds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(pred.Slope+2) > 1e-9 {
		t.Fatalf("slope = %f, want -2 from the trailing window", pred.Slope)
	}
}

func TestPredictInsufficientData(t *testing.T) {
	_, err := Predict(seriesOf(100), DefaultThresholds())
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}
