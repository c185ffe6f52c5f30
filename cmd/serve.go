package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nanopets/giftbot/backend"
	"github.com/nanopets/giftbot/backend/handlers"
)

var serveCMD = &cobra.Command{
	Use:   "serve",
	Short: "run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		webApp := &handlers.WebApp{
			Authenticator: app.Authenticator,
			Gifts:         app.Gifts,
			Daily:         app.Daily,
			Fusion:        app.Fusion,
			FusionTimeout: cfg.Fusion.CompleteTimeout.Duration,
			Version:       version,
			Commit:        commit,
		}
		if p := app.Pinger(); p != nil {
			webApp.Store = p
		}
		server := backend.NewApp(webApp, backend.Options{AllowOrigins: cfg.HTTP.AllowOrigins})

		if cfg.Daily.SweepInterval.Duration > 0 {
			go app.Sweeper.Run(ctx)
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("Starting backend server",
				slog.String("type", "http"),
				slog.String("address", cfg.HTTP.Addr))
			errCh <- server.Listen(cfg.HTTP.Addr)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		slog.Info("Shutting down backend server...", slog.String("type", "sys"))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout.Duration)
		defer cancel()
		if err := server.ShutdownWithContext(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", slog.String("type", "http"), slog.Any("error", err))
		}
		slog.Info("Backend server shutdown complete", slog.String("type", "sys"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCMD)
}
