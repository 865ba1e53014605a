package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is a single closing price observation.
type PricePoint struct {
	Timestamp time.Time
	Close     decimal.Decimal
}

// PriceSeries holds a chronological run of closing prices for one ticker.
// It is fetched fresh per scan and may carry fewer points than requested.
type PriceSeries struct {
	Ticker    string
	Interval  string
	Points    []PricePoint
	FetchedAt time.Time
}

// Len reports the number of usable points.
func (s PriceSeries) Len() int {
	return len(s.Points)
}

// Closes returns the closing prices as floats for statistical work.
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Points))
	for i, p := range s.Points {
		closes[i] = p.Close.InexactFloat64()
	}
	return closes
}

// Latest returns the most recent point, or false for an empty series.
func (s PriceSeries) Latest() (PricePoint, bool) {
	if len(s.Points) == 0 {
		return PricePoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// VolatilityStatus classifies the z-score of the latest price.
type VolatilityStatus string

const (
	StatusStable         VolatilityStatus = "STABLE"
	StatusHighVolatility VolatilityStatus = "HIGH_VOLATILITY"
	StatusRally          VolatilityStatus = "RALLY"
	StatusSigmaEvent     VolatilityStatus = "SIGMA_EVENT"
)

// VolatilityStats is the detector's statistical snapshot of a series.
// Status is a pure function of ZScore; instances are never mutated.
type VolatilityStats struct {
	Mean        float64
	StdDev      float64
	ZScore      float64
	LatestPrice decimal.Decimal
	Status      VolatilityStatus
	DataPoints  int
}

// Trend classifies the slope of the fitted regression line.
type Trend string

const (
	TrendUpward   Trend = "UPWARD"
	TrendDownward Trend = "DOWNWARD"
	TrendSideways Trend = "SIDEWAYS"
)

// Prediction is a short-horizon linear projection of the price.
type Prediction struct {
	Slope            float64
	Intercept        float64
	ProjectedPrice   decimal.Decimal
	ProjectedLossPct float64
	Trend            Trend
}
