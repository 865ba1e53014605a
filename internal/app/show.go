package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// Show prints recently archived attacks.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show archived attacks")
	}
	if closeStore != nil {
		defer closeStore()
	}

	attacks, err := store.ListRecentAttacks(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(attacks) == 0 {
		fmt.Fprintln(os.Stdout, "no archived attacks found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Event ID\tCrash (UTC)\tPrice\tZ\tConf\tPanic\tLatency\tDeployed\tHeadline")

	for _, attack := range attacks {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%.2f\t%d\t%d\t%.0fm\t%t\t%s\n",
			attack.EventID,
			attack.CrashTimestamp.UTC().Format(time.RFC3339),
			attack.CurrentPrice.StringFixed(2),
			attack.ZScore,
			attack.Confidence,
			attack.PanicScore,
			attack.LatencyMinutes,
			attack.Deployed,
			sanitizeInline(attack.SmokingGunHeadline),
		)
	}

	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
