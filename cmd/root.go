package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nanopets/giftbot/giftbot"
	"github.com/nanopets/giftbot/giftbot/logger"
)

var (
	version = "dev"
	commit  = "unknown"

	configPath string
	cfg        *giftbot.Config
)

var rootCmd = &cobra.Command{
	Use:           "giftbot",
	Short:         "gift collectible mini-app backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := giftbot.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		logger.Setup("giftbot", cfg.Log.Level, cfg.Log.Format, os.Stdout)
		slog.Info("Configuration loaded",
			slog.String("type", "sys"),
			slog.String("environment", cfg.Environment),
			slog.String("version", version),
			slog.String("commit", commit))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "path to config")
}

// Execute runs the command line with build metadata injected by main.
func Execute(v, c string) {
	version, commit = v, c
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Error("Command failed", slog.String("type", "sys"), slog.Any("error", err))
		os.Exit(1)
	}
}

func openApp(ctx context.Context) (*giftbot.App, error) {
	return giftbot.New(ctx, cfg, version, commit)
}
