package marketdata

import (
	"context"

	"crisiswatch/internal/model"
)

// PriceFetcher retrieves a chronological closing-price series for a ticker.
type PriceFetcher interface {
	FetchPriceSeries(ctx context.Context, ticker, dataRange, interval string) (model.PriceSeries, error)
}
