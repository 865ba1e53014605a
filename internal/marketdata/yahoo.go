package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"crisiswatch/internal/model"
)

const chartPath = "/v8/finance/chart/"

// YahooOptions parameterise the chart API client.
type YahooOptions struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	UserAgent         string
	MinIntradayPoints int
}

// YahooChart fetches closing prices from a Yahoo-finance-style chart API.
// When intraday data comes back too thin for meaningful statistics it
// degrades through 5-minute and then daily granularity before reporting
// failure.
type YahooChart struct {
	opts    YahooOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewYahooChart constructs a chart API price fetcher.
func NewYahooChart(opts YahooOptions, logger zerolog.Logger) *YahooChart {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://yfapi.net"
	}

	if opts.MinIntradayPoints <= 0 {
		opts.MinIntradayPoints = 10
	}

	return &YahooChart{
		opts:    opts,
		logger:  logger.With().Str("component", "marketdata").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchPriceSeries retrieves closing prices for the requested range and
// interval, falling back to coarser granularities on degraded data.
func (y *YahooChart) FetchPriceSeries(ctx context.Context, ticker, dataRange, interval string) (model.PriceSeries, error) {
	if ticker == "" {
		return model.PriceSeries{}, errors.New("ticker required")
	}
	if dataRange == "" {
		dataRange = "1d"
	}
	if interval == "" {
		interval = "1m"
	}

	series, err := y.fetchChart(ctx, ticker, dataRange, interval)
	if err == nil && series.Len() >= y.opts.MinIntradayPoints {
		return series, nil
	}
	if err != nil {
		y.logger.Warn().Err(err).Str("ticker", ticker).Str("interval", interval).Msg("primary interval fetch failed")
	}

	if interval == "1m" {
		coarser, coarserErr := y.fetchChart(ctx, ticker, dataRange, "5m")
		if coarserErr == nil && coarser.Len() >= y.opts.MinIntradayPoints {
			return coarser, nil
		}
		if coarserErr == nil && coarser.Len() > series.Len() {
			series, err = coarser, nil
		}
	}

	// Last resort: daily closes still let the detector work on a
	// coarser signal instead of reporting insufficient data.
	daily, dailyErr := y.fetchChart(ctx, ticker, "5d", "1d")
	if dailyErr == nil && daily.Len() >= 2 {
		y.logger.Info().Str("ticker", ticker).Int("points", daily.Len()).Msg("using daily closes fallback")
		return daily, nil
	}

	if err == nil && series.Len() >= 2 {
		return series, nil
	}
	if err != nil {
		return model.PriceSeries{}, err
	}
	return series, nil
}

func (y *YahooChart) fetchChart(ctx context.Context, ticker, dataRange, interval string) (model.PriceSeries, error) {
	endpoint := y.baseURL + chartPath + url.PathEscape(ticker)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.PriceSeries{}, err
	}

	q := req.URL.Query()
	q.Set("range", dataRange)
	q.Set("interval", interval)
	q.Set("indicators", "quote")
	q.Set("includeTimestamps", "true")
	req.URL.RawQuery = q.Encode()

	req.Header.Set("Accept", "application/json")
	if y.opts.APIKey != "" {
		req.Header.Set("X-API-KEY", y.opts.APIKey)
	}
	if ua := strings.TrimSpace(y.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("chart request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.PriceSeries{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return model.PriceSeries{}, fmt.Errorf("chart api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var decoded chartResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return model.PriceSeries{}, fmt.Errorf("decode chart response: %w", err)
	}

	if decoded.Chart.Error != nil {
		return model.PriceSeries{}, fmt.Errorf("chart api error: %s", decoded.Chart.Error.Description)
	}
	if len(decoded.Chart.Result) == 0 {
		return model.PriceSeries{}, fmt.Errorf("no chart result for %s", ticker)
	}

	result := decoded.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return model.PriceSeries{}, fmt.Errorf("no quote data for %s", ticker)
	}

	closes := result.Indicators.Quote[0].Close
	points := make([]model.PricePoint, 0, len(closes))
	for i, close := range closes {
		if close == nil {
			continue
		}
		point := model.PricePoint{Close: decimal.NewFromFloat(*close)}
		if i < len(result.Timestamp) {
			point.Timestamp = time.Unix(result.Timestamp[i], 0).UTC()
		}
		points = append(points, point)
	}

	return model.PriceSeries{
		Ticker:    ticker,
		Interval:  interval,
		Points:    points,
		FetchedAt: time.Now().UTC(),
	}, nil
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol string `json:"symbol"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

var _ PriceFetcher = (*YahooChart)(nil)
