package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/tendant/planhub/internal/config"
	"github.com/tendant/planhub/internal/events"
)

// eventsCmd groups broker debugging tools.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect the live-update and push channels",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail [channel]",
	Short: "Log every message published on a channel until interrupted",
	Long: `Subscribes to a channel of the configured broker and logs each message.
Defaults to the live-update channel. Usage:

	planhub events tail
	planhub events tail push-notifications
`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		channel := cfg.Events.LiveChannel
		if len(args) == 1 {
			channel = args[0]
		}

		backend, err := events.Open(cmd.Context(), cfg.Events)
		if err != nil {
			return err
		}
		if backend == nil {
			return errors.New("EVENTS_BACKEND is none, nothing to tail")
		}
		defer backend.Close()

		err = events.Tail(cmd.Context(), backend, channel, slog.Default())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
