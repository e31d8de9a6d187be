package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/tendant/planhub/app"
	"github.com/tendant/planhub/internal/config"
	"github.com/tendant/planhub/pkg/repository"
)

// purgeCmd deletes expired one-time codes and reset tokens. Run it from
// cron; reads already ignore expired rows.
var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired verification records and reset tokens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		// Delivery is not needed here.
		cfg.Events.Backend = "none"

		db, err := repository.NewDB(app.DBConfig(cfg))
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()

		a, err := app.New(cmd.Context(), cfg, db, slog.Default())
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Purge(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "purged %d verification records, %d reset tokens\n", res.VerificationRecords, res.ResetTokens)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(purgeCmd)
}
