package giftbot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nanopets/giftbot/internal/domain/artifact"
	"github.com/nanopets/giftbot/internal/domain/auth"
	"github.com/nanopets/giftbot/internal/domain/daily"
	"github.com/nanopets/giftbot/internal/domain/fusion"
	"github.com/nanopets/giftbot/internal/domain/gifts"
	"github.com/nanopets/giftbot/internal/gateways/database"
	"github.com/nanopets/giftbot/internal/gateways/generator"
	"github.com/nanopets/giftbot/internal/gateways/memory"
	"github.com/nanopets/giftbot/internal/gateways/metrics"
	"github.com/nanopets/giftbot/internal/gateways/mongostore"
)

// Pinger is implemented by stores with a remote backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// App owns every long-lived collaborator. It is built once at startup and
// handed to the transport layer.
type App struct {
	Cfg     *Config
	Version string
	Commit  string

	Store         gifts.Store
	Authenticator *auth.Authenticator
	Generator     artifact.Generator
	Gifts         *gifts.Service
	Daily         *daily.Service
	Fusion        *fusion.Service
	Sweeper       *daily.Sweeper

	db    *database.DB
	mongo *mongostore.Store
}

func New(ctx context.Context, cfg *Config, version, commit string) (*App, error) {
	a := &App{Cfg: cfg, Version: version, Commit: commit}

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	authn, err := newAuthenticator(cfg.Auth)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Authenticator = authn

	gen, err := newGenerator(ctx, cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Generator = gen

	a.Gifts = gifts.NewService(a.Store)
	a.Daily = daily.NewService(a.Store, gen,
		daily.WithCooldown(cfg.Daily.Cooldown.Duration),
		daily.WithDraftTTL(cfg.Daily.DraftTTL.Duration))
	a.Fusion = fusion.NewService(a.Store, gen)
	a.Sweeper = daily.NewSweeper(a.Store.Drafts(), cfg.Daily.SweepInterval.Duration, metrics.RecordSwept)

	slog.Info("Application initialized",
		slog.String("type", "sys"),
		slog.String("store", cfg.Store.Driver),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("generator", cfg.Generator.Mode))
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	cfg := a.Cfg
	start := time.Now()

	switch cfg.Store.Driver {
	case "memory":
		slog.Warn("Using the in-memory store, records are lost on restart", slog.String("type", "db"))
		a.Store = memory.New()
	case "postgres":
		db, err := database.New(ctx, database.DBConfig{
			Host:     cfg.DB.Host,
			Port:     cfg.DB.Port,
			User:     cfg.DB.User,
			Password: cfg.DB.Password,
			Database: cfg.DB.Database,
			PoolSize: cfg.DB.PoolSize,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		a.db = db
		a.Store = database.NewStore(db)
	case "mongo":
		store, err := mongostore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return err
		}
		a.mongo = store
		a.Store = store
	default:
		return fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	slog.Info("Store ready",
		slog.String("type", "db"),
		slog.String("driver", cfg.Store.Driver),
		slog.Duration("took", time.Since(start)))
	return nil
}

func newAuthenticator(cfg AuthConfig) (*auth.Authenticator, error) {
	verifier, err := auth.NewVerifier(auth.Mode(cfg.Mode), cfg.BotToken)
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize > 0 {
		cached, err := auth.NewCachingVerifier(verifier, cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		verifier = cached
	}

	var opts []auth.Option
	if cfg.EnforceFreshness {
		opts = append(opts, auth.WithFreshness(cfg.MaxAge.Duration))
	}
	return auth.NewAuthenticator(verifier, opts...), nil
}

func newGenerator(ctx context.Context, cfg *Config) (artifact.Generator, error) {
	if cfg.Generator.Mode == "placeholder" {
		return generator.NewPlaceholder(cfg.Generator.BaseURL), nil
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	var uploader generator.Uploader = generator.PassthroughUploader{}
	if cfg.Spaces.Enabled {
		spaces, err := generator.NewSpacesUploader(ctx, generator.SpacesConfig{
			Key:       cfg.Spaces.Key,
			Secret:    cfg.Spaces.Secret,
			Region:    cfg.Spaces.Region,
			Bucket:    cfg.Spaces.Bucket,
			Endpoint:  cfg.Spaces.Endpoint,
			PublicURL: cfg.Spaces.PublicURL,
			MaxBytes:  cfg.Spaces.MaxBytes,
		}, httpClient)
		if err != nil {
			return nil, fmt.Errorf("failed to create spaces uploader: %w", err)
		}
		uploader = spaces
	}

	return generator.NewClient(generator.Config{
		BaseURL:       cfg.Generator.BaseURL,
		APIKey:        cfg.Generator.APIKey,
		PollInterval:  cfg.Generator.PollInterval.Duration,
		MaxAttempts:   cfg.Generator.MaxAttempts,
		MaxConcurrent: cfg.Generator.MaxConcurrent,
	}, uploader, httpClient), nil
}

// Pinger returns the store health probe, or nil for the in-memory store.
func (a *App) Pinger() Pinger {
	switch {
	case a.db != nil:
		return a.db
	case a.mongo != nil:
		return a.mongo
	default:
		return nil
	}
}

// Migrate creates the tables or indexes the configured store relies on.
func (a *App) Migrate(ctx context.Context) error {
	switch {
	case a.db != nil:
		return a.db.InitializeSchema(ctx)
	case a.mongo != nil:
		return a.mongo.EnsureIndexes(ctx)
	default:
		slog.Info("Nothing to migrate for the in-memory store", slog.String("type", "db"))
		return nil
	}
}

func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	if err := a.Store.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	return nil
}
