package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var sweepCMD = &cobra.Command{
	Use:   "sweep",
	Short: "delete expired daily drafts once",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		n, err := app.Sweeper.SweepOnce(cmd.Context())
		if err != nil {
			return err
		}
		slog.Info("Sweep finished", slog.String("type", "sys"), slog.Int64("deleted", n))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCMD)
}
