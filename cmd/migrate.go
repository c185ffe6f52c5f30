package cmd

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

var migrateCMD = &cobra.Command{
	Use:   "migrate",
	Short: "create the tables or indexes of the configured store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		start := time.Now()

		app, err := openApp(ctx)
		if err != nil {
			slog.Error("Failed to open store", slog.String("type", "db"), slog.Any("error", err))
			return err
		}
		defer app.Close()

		if err := app.Migrate(ctx); err != nil {
			slog.Error("Migration failed", slog.String("type", "db"), slog.Any("error", err))
			return err
		}

		slog.Info("Migration completed successfully",
			slog.String("type", "db"),
			slog.String("driver", cfg.Store.Driver),
			slog.Duration("took", time.Since(start)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCMD)
}
