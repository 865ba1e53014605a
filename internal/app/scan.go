package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"crisiswatch/internal/pipeline"
)

// Scan runs the full pipeline once for a single ticker and prints the
// outcome. With a configured database the result is archived there;
// otherwise it only lands on stdout.
func (a *App) Scan(ctx context.Context, ticker string) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	pipe := a.newPipeline(archiveOrNil(store))
	result := pipe.ScanTicker(ctx, ticker)

	if result.Failed() {
		return fmt.Errorf("scan %s failed at stage %s: %w", ticker, result.FailedStage, result.Err)
	}

	printScanResult(result)
	return nil
}

func printScanResult(result pipeline.ScanResult) {
	fmt.Fprintf(os.Stdout, "ticker:  %s\n", result.Ticker)
	fmt.Fprintf(os.Stdout, "outcome: %s\n", result.Outcome)

	if result.Stats != nil {
		fmt.Fprintf(os.Stdout, "status:  %s (z=%.2f, n=%d)\n",
			result.Stats.Status, result.Stats.ZScore, result.Stats.DataPoints)
		fmt.Fprintf(os.Stdout, "price:   %s\n", result.Stats.LatestPrice.StringFixed(2))
	}
	if result.Prediction != nil {
		fmt.Fprintf(os.Stdout, "trend:   %s (projected %.2f%%)\n",
			result.Prediction.Trend, result.Prediction.ProjectedLossPct)
	}
	if result.Hunt != nil {
		fmt.Fprintf(os.Stdout, "verdict: %s (articles=%d, panic=%d)\n",
			result.Hunt.Verdict, len(result.Hunt.Articles), result.Hunt.Assessment.Score)
	}
	if result.Correlation != nil {
		fmt.Fprintf(os.Stdout, "correlation: %s (confidence=%d)\n",
			result.Correlation.Verdict, result.Correlation.Confidence)
	}

	if result.Attack != nil {
		payload, err := json.MarshalIndent(result.Attack, "", "  ")
		if err == nil {
			fmt.Fprintf(os.Stdout, "\n%s\n", payload)
		}
	}
}
