package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan TICKER",
	Short: "Run the full detection pipeline once for a single ticker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ticker := strings.TrimSpace(args[0])
		if ticker == "" {
			return errors.New("ticker must not be empty")
		}
		return getApp().Scan(cmd.Context(), ticker)
	},
}
