package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mhc-map/mhc-geo/internal/table"
)

// Config holds the full application configuration.
type Config struct {
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Table   table.Columns `yaml:"table" mapstructure:"table"`
	Retry   RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// GeocodeConfig configures the geocode providers. Providers are tried in
// the listed order.
type GeocodeConfig struct {
	Providers      []string `yaml:"providers" mapstructure:"providers"`
	UserAgent      string   `yaml:"user_agent" mapstructure:"user_agent"`
	NominatimURL   string   `yaml:"nominatim_url" mapstructure:"nominatim_url"`
	CountryCodes   string   `yaml:"country_codes" mapstructure:"country_codes"`
	GoogleAPIKey   string   `yaml:"google_api_key" mapstructure:"google_api_key"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	TimeoutSecs    int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	TigerMaxRating int      `yaml:"tiger_max_rating" mapstructure:"tiger_max_rating"`
}

// CacheConfig configures the geocode result cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	TTLDays int  `yaml:"ttl_days" mapstructure:"ttl_days"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// RetryConfig bounds the retry loops and bulk checkpointing.
type RetryConfig struct {
	SameKeyMaxLoops     int  `yaml:"same_key_max_loops" mapstructure:"same_key_max_loops"`
	ExpandedKeyMaxLoops int  `yaml:"expanded_key_max_loops" mapstructure:"expanded_key_max_loops"`
	StopOnNoProgress    bool `yaml:"stop_on_no_progress" mapstructure:"stop_on_no_progress"`
	CheckpointEvery     int  `yaml:"checkpoint_every" mapstructure:"checkpoint_every"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MHCGEO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	cols := table.DefaultColumns()
	v.SetDefault("geocode.providers", []string{"nominatim"})
	v.SetDefault("geocode.user_agent", "mhc-geo/1.0")
	v.SetDefault("geocode.nominatim_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.country_codes", "us")
	v.SetDefault("geocode.google_api_key", "")
	v.SetDefault("geocode.rate_limit_rps", 1.0)
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("geocode.tiger_max_rating", 20)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl_days", 90)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "mhc-geo.db")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("table.name", cols.Name)
	v.SetDefault("table.address", cols.Address)
	v.SetDefault("table.city_state", cols.CityState)
	v.SetDefault("table.zip", cols.ZIP)
	v.SetDefault("table.latitude", cols.Latitude)
	v.SetDefault("table.longitude", cols.Longitude)
	v.SetDefault("retry.same_key_max_loops", 10)
	v.SetDefault("retry.expanded_key_max_loops", 3)
	v.SetDefault("retry.stop_on_no_progress", false)
	v.SetDefault("retry.checkpoint_every", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration for the given mode: "geocode" for
// commands that call providers, "store" for commands that only touch the
// store or local files.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	switch mode {
	case "store":
	case "geocode":
		if len(c.Geocode.Providers) == 0 {
			errs = append(errs, "geocode.providers must list at least one provider")
		}
		for _, p := range c.Geocode.Providers {
			switch strings.ToLower(strings.TrimSpace(p)) {
			case "nominatim":
				if c.Geocode.UserAgent == "" {
					errs = append(errs, "geocode.user_agent is required for nominatim")
				}
			case "google":
				if c.Geocode.GoogleAPIKey == "" {
					errs = append(errs, "geocode.google_api_key is required for google")
				}
			case "tiger":
				if c.Store.Driver != "postgres" {
					errs = append(errs, "geocode provider tiger requires store.driver postgres")
				}
			case "census":
			default:
				errs = append(errs, "geocode.providers: unknown provider "+p)
			}
		}
		if c.Geocode.RateLimitRPS < 0 {
			errs = append(errs, "geocode.rate_limit_rps must be >= 0")
		}
		if c.Retry.SameKeyMaxLoops < 1 || c.Retry.ExpandedKeyMaxLoops < 1 {
			errs = append(errs, "retry max loops must be >= 1")
		}
		if c.Retry.CheckpointEvery < 1 {
			errs = append(errs, "retry.checkpoint_every must be >= 1")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
