package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/devlink/apiserver/config"
	"github.com/devlink/apiserver/internal/events"
	"github.com/devlink/apiserver/internal/logger"
	"github.com/devlink/apiserver/internal/mq"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect published domain events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Log every event published to the configured queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log := logger.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)

		queue, err := mq.Open(cmd.Context(), cfg.MQ)
		if err != nil {
			return err
		}
		if queue == nil {
			return errors.New("no message queue configured; set MQ_BACKEND")
		}
		defer queue.Close()

		log.Info("tailing events", "backend", cfg.MQ.Backend, "channel", cfg.MQ.Channel)
		err = queue.Subscribe(cmd.Context(), cfg.MQ.Channel, func(ctx context.Context, msg mq.Message) error {
			event, err := events.Decode(msg.Data)
			if err != nil {
				// Undecodable messages are dropped rather than redelivered forever.
				log.Warn("skipping malformed event", "message_id", msg.ID, "error", err)
				return nil
			}
			log.Info("event",
				"id", event.ID,
				"type", event.Type,
				"subject", event.Subject,
				"occurred_at", event.OccurredAt,
				"data", string(event.Data),
			)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("subscribe: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
