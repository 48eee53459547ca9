package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"go.yaml.in/yaml/v4"

	configtypes "github.com/daszybak/omniverse_markets/internal/config"
	"github.com/daszybak/omniverse_markets/internal/kalshi/api"
	"github.com/daszybak/omniverse_markets/internal/polymarket/clob"
	"github.com/daszybak/omniverse_markets/internal/polymarket/data"
	"github.com/daszybak/omniverse_markets/internal/polymarket/gamma"
	"github.com/daszybak/omniverse_markets/internal/publish"
	"github.com/daszybak/omniverse_markets/internal/sample"
)

const defaultConfigPath = "configs/omniverse/config.yaml"

type config struct {
	LogLevel       string               `yaml:"log_level"` // debug, info, warn, error
	SampleDataPath string               `yaml:"sample_data_path"`
	SyncInterval   configtypes.Duration `yaml:"sync_interval"`
	Server         struct {
		Addr              string               `yaml:"addr"`
		ReadHeaderTimeout configtypes.Duration `yaml:"read_header_timeout"`
		ShutdownTimeout   configtypes.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Retry struct {
		Attempts  int                  `yaml:"attempts"`
		BaseDelay configtypes.Duration `yaml:"base_delay"`
		Timeout   configtypes.Duration `yaml:"timeout"`
	} `yaml:"retry"`
	Database struct {
		URL      string             `yaml:"url"`
		Host     string             `yaml:"host"`
		Port     int                `yaml:"port"`
		User     string             `yaml:"user"`
		Password configtypes.Secret `yaml:"password"`
		Database string             `yaml:"database"`
		PoolSize int                `yaml:"pool_size"`
		SSLMode  string             `yaml:"ssl_mode"`
	} `yaml:"database"`
	Redis struct {
		Addr      string               `yaml:"addr"`
		MarketTTL configtypes.Duration `yaml:"market_ttl"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`
	Platforms struct {
		Kalshi struct {
			APIURL string             `yaml:"api_url"`
			APIKey configtypes.Secret `yaml:"api_key"`
			UserID string             `yaml:"user_id"`
		} `yaml:"kalshi"`
		PolyMarket struct {
			GammaURL string             `yaml:"gamma_url"`
			ClobURL  string             `yaml:"clob_url"`
			DataURL  string             `yaml:"data_url"`
			APIKey   configtypes.Secret `yaml:"api_key"`
		} `yaml:"polymarket"`
	} `yaml:"platforms"`
}

func defaultConfig() *config {
	cfg := &config{
		LogLevel:       "info",
		SampleDataPath: sample.DefaultPath,
	}
	cfg.Server.Addr = ":8000"
	cfg.Server.ReadHeaderTimeout = configtypes.Duration(10 * time.Second)
	cfg.Server.ShutdownTimeout = configtypes.Duration(10 * time.Second)
	cfg.Retry.Attempts = 3
	cfg.Retry.BaseDelay = configtypes.Duration(time.Second)
	cfg.Retry.Timeout = configtypes.Duration(30 * time.Second)
	cfg.Database.Port = 5432
	cfg.Database.SSLMode = "disable"
	cfg.Redis.MarketTTL = configtypes.Duration(30 * time.Second)
	cfg.Kafka.Topic = publish.DefaultTopic
	cfg.Platforms.Kalshi.APIURL = api.DefaultBaseURL
	cfg.Platforms.PolyMarket.GammaURL = gamma.DefaultBaseURL
	cfg.Platforms.PolyMarket.ClobURL = clob.DefaultBaseURL
	cfg.Platforms.PolyMarket.DataURL = data.DefaultBaseURL
	return cfg
}

// readConfig layers the YAML file and then the environment over the
// defaults. A missing file at the default path is not an error.
func readConfig(configPath string) (*config, error) {
	cfg := defaultConfig()

	rawConfig, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist) && configPath == defaultConfigPath:
	case err != nil:
		return nil, fmt.Errorf("couldn't read file %s: %w", configPath, err)
	default:
		if err = yaml.Unmarshal(rawConfig, cfg); err != nil {
			return nil, fmt.Errorf("couldn't parse config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("couldn't apply environment: %w", err)
	}

	err = validateConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("couldn't validate config: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *config) error {
	configtypes.OverrideString(&cfg.Server.Addr, "OMNIVERSE_ADDR")
	configtypes.OverrideString(&cfg.LogLevel, "OMNIVERSE_LOG_LEVEL")
	configtypes.OverrideString(&cfg.SampleDataPath, "OMNIVERSE_SAMPLE_DATA")
	configtypes.OverrideString(&cfg.Database.URL, "DATABASE_URL")
	configtypes.OverrideString(&cfg.Redis.Addr, "REDIS_ADDR")
	configtypes.OverrideList(&cfg.Kafka.Brokers, "KAFKA_BROKERS")
	configtypes.OverrideSecret(&cfg.Platforms.Kalshi.APIKey, "KALSHI_API_KEY")
	configtypes.OverrideString(&cfg.Platforms.Kalshi.UserID, "KALSHI_USER_ID")
	configtypes.OverrideSecret(&cfg.Platforms.PolyMarket.APIKey, "POLYMARKET_API_KEY")
	return configtypes.OverrideDuration(&cfg.SyncInterval, "OMNIVERSE_SYNC_INTERVAL")
}

func validateConfig(cfg *config) error {
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return err
	}
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be greater than 0")
	}
	if cfg.SyncInterval < 0 {
		return fmt.Errorf("sync_interval must not be negative")
	}

	// Retry
	if cfg.Retry.Attempts <= 0 {
		return fmt.Errorf("retry.attempts must be greater than 0")
	}
	if cfg.Retry.BaseDelay <= 0 {
		return fmt.Errorf("retry.base_delay must be greater than 0")
	}
	if cfg.Retry.Timeout <= 0 {
		return fmt.Errorf("retry.timeout must be greater than 0")
	}

	// Database
	if cfg.Database.URL == "" && cfg.Database.Host != "" {
		if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
			return fmt.Errorf("database.port must be between 1 and 65535")
		}
		if cfg.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
		if cfg.Database.Database == "" {
			return fmt.Errorf("database.database is required")
		}
	}
	if cfg.Database.PoolSize < 0 {
		return fmt.Errorf("database.pool_size must not be negative")
	}

	// Kafka
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required when kafka.brokers is set")
	}

	// Platforms
	if cfg.Platforms.Kalshi.APIURL == "" {
		return fmt.Errorf("platforms.kalshi.api_url is required")
	}
	if cfg.Platforms.PolyMarket.GammaURL == "" {
		return fmt.Errorf("platforms.polymarket.gamma_url is required")
	}
	if cfg.Platforms.PolyMarket.ClobURL == "" {
		return fmt.Errorf("platforms.polymarket.clob_url is required")
	}
	if cfg.Platforms.PolyMarket.DataURL == "" {
		return fmt.Errorf("platforms.polymarket.data_url is required")
	}

	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log_level must be one of debug, info, warn, error")
	}
	return level, nil
}

// kalshiLive reports whether Kalshi has the credentials to leave mock mode.
func (c *config) kalshiLive() bool {
	return c.Platforms.Kalshi.APIKey.IsSet() && c.Platforms.Kalshi.UserID != ""
}

func (c *config) polymarketLive() bool {
	return c.Platforms.PolyMarket.APIKey.IsSet()
}
