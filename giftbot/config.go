package giftbot

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// LoadConfig reads the TOML file at path, then overlays secrets from the
// environment. A .env file next to the process is loaded first when present.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	cfg := DefaultConfig()
	if err = toml.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type Config struct {
	Environment string          `toml:"environment"`
	Log         LogConfig       `toml:"log"`
	HTTP        HTTPConfig      `toml:"http"`
	Auth        AuthConfig      `toml:"auth"`
	Store       StoreConfig     `toml:"store"`
	DB          DBConfig        `toml:"db"`
	Mongo       MongoConfig     `toml:"mongo"`
	Generator   GeneratorConfig `toml:"generator"`
	Spaces      SpacesConfig    `toml:"spaces"`
	Daily       DailyConfig     `toml:"daily"`
	Fusion      FusionConfig    `toml:"fusion"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type HTTPConfig struct {
	Addr            string   `toml:"addr"`
	AllowOrigins    string   `toml:"allow_origins"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

type AuthConfig struct {
	Mode             string   `toml:"mode"`
	BotToken         string   `toml:"bot_token"`
	EnforceFreshness bool     `toml:"enforce_freshness"`
	MaxAge           Duration `toml:"max_age"`
	CacheSize        int      `toml:"cache_size"`
}

type StoreConfig struct {
	Driver string `toml:"driver"`
}

type DBConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	PoolSize int    `toml:"pool_size"`
}

type MongoConfig struct {
	URI      string `toml:"uri"`
	Database string `toml:"database"`
}

type GeneratorConfig struct {
	Mode          string   `toml:"mode"`
	BaseURL       string   `toml:"base_url"`
	APIKey        string   `toml:"api_key"`
	PollInterval  Duration `toml:"poll_interval"`
	MaxAttempts   int      `toml:"max_attempts"`
	MaxConcurrent int64    `toml:"max_concurrent"`
}

type SpacesConfig struct {
	Enabled   bool   `toml:"enabled"`
	Key       string `toml:"key"`
	Secret    string `toml:"secret"`
	Region    string `toml:"region"`
	Bucket    string `toml:"bucket"`
	Endpoint  string `toml:"endpoint"`
	PublicURL string `toml:"public_url"`
	MaxBytes  int64  `toml:"max_bytes"`
}

type DailyConfig struct {
	Cooldown      Duration `toml:"cooldown"`
	DraftTTL      Duration `toml:"draft_ttl"`
	SweepInterval Duration `toml:"sweep_interval"`
}

type FusionConfig struct {
	// CompleteTimeout bounds one fusion completion, generation included.
	CompleteTimeout Duration `toml:"complete_timeout"`
}

// Duration is a time.Duration written as a string such as "24h" or "5s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Log:         LogConfig{Level: "info", Format: "text"},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			AllowOrigins:    "*",
			ShutdownTimeout: Duration{10 * time.Second},
		},
		Auth: AuthConfig{
			Mode:             "signed",
			EnforceFreshness: true,
			MaxAge:           Duration{24 * time.Hour},
			CacheSize:        1024,
		},
		Store: StoreConfig{Driver: "memory"},
		DB: DBConfig{
			Host:     "localhost",
			Port:     5432,
			PoolSize: 10,
		},
		Mongo: MongoConfig{Database: "giftbot"},
		Generator: GeneratorConfig{
			Mode:          "upstream",
			PollInterval:  Duration{5 * time.Second},
			MaxAttempts:   60,
			MaxConcurrent: 4,
		},
		Daily: DailyConfig{
			Cooldown:      Duration{24 * time.Hour},
			DraftTTL:      Duration{time.Hour},
			SweepInterval: Duration{10 * time.Minute},
		},
		Fusion: FusionConfig{CompleteTimeout: Duration{6 * time.Minute}},
	}
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Auth.BotToken, "BOT_TOKEN")
	set(&c.DB.Password, "DB_PASSWORD")
	set(&c.Mongo.URI, "MONGO_URI")
	set(&c.Generator.APIKey, "GENERATOR_API_KEY")
	set(&c.Spaces.Key, "SPACES_KEY")
	set(&c.Spaces.Secret, "SPACES_SECRET")
}

func (c *Config) Production() bool {
	return c.Environment == EnvProduction
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Auth.Mode {
	case "signed":
		if c.Auth.BotToken == "" {
			errs = append(errs, errors.New("auth.bot_token (or BOT_TOKEN) is required in signed mode"))
		}
	case "insecure":
		if c.Production() {
			errs = append(errs, errors.New("auth.mode insecure is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown auth.mode %q", c.Auth.Mode))
	}

	switch c.Generator.Mode {
	case "upstream":
		if c.Generator.BaseURL == "" {
			errs = append(errs, errors.New("generator.base_url is required in upstream mode"))
		}
	case "placeholder":
		if c.Production() {
			errs = append(errs, errors.New("generator.mode placeholder is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown generator.mode %q", c.Generator.Mode))
	}

	switch c.Store.Driver {
	case "memory", "postgres":
	case "mongo":
		if c.Mongo.URI == "" {
			errs = append(errs, errors.New("mongo.uri (or MONGO_URI) is required for the mongo driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}

	if c.Daily.Cooldown.Duration <= 0 || c.Daily.DraftTTL.Duration <= 0 {
		errs = append(errs, errors.New("daily.cooldown and daily.draft_ttl must be positive"))
	}
	if c.Daily.SweepInterval.Duration < 0 {
		errs = append(errs, errors.New("daily.sweep_interval must not be negative"))
	}
	if c.Production() {
		if c.Store.Driver == "memory" {
			errs = append(errs, errors.New("store.driver memory is not allowed in production"))
		}
		if c.Generator.Mode == "upstream" && !c.Spaces.Enabled {
			errs = append(errs, errors.New("spaces must be enabled in production so media urls stay durable"))
		}
	}
	if c.Spaces.Enabled && c.Spaces.Bucket == "" {
		errs = append(errs, errors.New("spaces.bucket is required when spaces is enabled"))
	}
	if c.Spaces.MaxBytes < 0 {
		errs = append(errs, errors.New("spaces.max_bytes must not be negative"))
	}

	return errors.Join(errs...)
}
