// Package cli holds the tourbook command tree.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tourbook",
	Short: "Tour booking service",
	Long: `tourbook serves the tour booking API and website.

	tourbook serve
	tourbook seed import --dir ./dev-data
	tourbook mail-worker`,
	SilenceUsage: true,
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
