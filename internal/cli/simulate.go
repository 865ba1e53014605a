package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-crash TICKER",
	Short: "Run the pipeline against a synthetic crash with a planted headline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ticker := strings.TrimSpace(args[0])
		if ticker == "" {
			return errors.New("ticker must not be empty")
		}
		return getApp().SimulateCrash(cmd.Context(), ticker)
	},
}
