package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/devlink/apiserver/config"
	"github.com/devlink/apiserver/internal/logger"
	"github.com/devlink/apiserver/internal/server"
)

const shutdownTimeout = 15 * time.Second

var inMemory bool

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the devlink API server",
	Long: `Starts the devlink API server. Usage:

	devlink server
	devlink server --in-memory
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log := logger.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)

		srv, err := server.New(cmd.Context(), cfg, log, server.Options{InMemory: inMemory})
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		select {
		case err := <-errCh:
			srv.Close()
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		case <-cmd.Context().Done():
		}

		log.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().BoolVar(&inMemory, "in-memory", false, "keep all data in process memory instead of Postgres")
}
