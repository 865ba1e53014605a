package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"crisiswatch/internal/model"
)

// Export renders archived attacks as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-30 * 24 * time.Hour)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	attacks, err := store.ListAttacksBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(attacks) == 0 {
		a.Logger.Info().Msg("no archived attacks found for export window")
		return nil
	}

	downsampled := downsampleAttacks(attacks, opts.MaxPoints)
	a.Logger.Info().Int("total", len(attacks)).Int("exported", len(downsampled)).Msg("exporting attacks")

	if opts.CSVPath != "" {
		if err := writeAttacksCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeAttacksPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleAttacks(attacks []model.AttackPackage, max int) []model.AttackPackage {
	if max <= 0 || len(attacks) <= max {
		return attacks
	}

	result := make([]model.AttackPackage, 0, max)
	step := float64(len(attacks)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(attacks) {
			idx = len(attacks) - 1
		}
		result = append(result, attacks[idx])
	}
	return result
}

func writeAttacksCSV(path string, attacks []model.AttackPackage) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"event_id", "ticker", "crash_ts", "current_price", "z_score", "projected_loss", "latency_minutes", "panic_score", "correlation_confidence", "smoking_gun_headline", "response_deployed"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, attack := range attacks {
		record := []string{
			attack.EventID,
			attack.Ticker,
			attack.CrashTimestamp.Format(time.RFC3339),
			attack.CurrentPrice.String(),
			strconv.FormatFloat(attack.ZScore, 'f', 4, 64),
			strconv.FormatFloat(attack.ProjectedLossPct, 'f', 4, 64),
			strconv.FormatFloat(attack.LatencyMinutes, 'f', 1, 64),
			strconv.Itoa(attack.PanicScore),
			strconv.Itoa(attack.Confidence),
			attack.SmokingGunHeadline,
			strconv.FormatBool(attack.Deployed),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeAttacksPNG(path string, attacks []model.AttackPackage) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(attacks))
	confidence := make([]float64, len(attacks))
	panicScores := make([]float64, len(attacks))
	zScores := make([]float64, len(attacks))

	for i, attack := range attacks {
		x[i] = attack.CrashTimestamp
		confidence[i] = float64(attack.Confidence)
		panicScores[i] = float64(attack.PanicScore)
		zScores[i] = attack.ZScore
	}

	scoreFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Score (0-100)",
			ValueFormatter: scoreFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name: "Z-score",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.2f")
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Confidence",
				XValues: x,
				YValues: confidence,
			},
			chart.TimeSeries{
				Name:    "Panic score",
				XValues: x,
				YValues: panicScores,
			},
			chart.TimeSeries{
				Name:    "Z-score",
				XValues: x,
				YValues: zScores,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
