package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "devlink",
	Short: "Developer profiles and posts API",
	Long: `devlink serves the developer profile, post and account API.

	devlink server
	devlink migrate up
`,
	SilenceUsage: true,
}

// Execute runs the root command until it returns or the process is
// interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
