package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Census   CensusConfig   `yaml:"census" mapstructure:"census"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Paths    PathsConfig    `yaml:"paths" mapstructure:"paths"`
	Forecast ForecastConfig `yaml:"forecast" mapstructure:"forecast"`
	Index    IndexConfig    `yaml:"index" mapstructure:"index"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CensusConfig holds Census Bureau API settings.
type CensusConfig struct {
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	BaseYear    int    `yaml:"base_year" mapstructure:"base_year"`
	CurrentYear int    `yaml:"current_year" mapstructure:"current_year"`
}

// FetchConfig configures the download layer shared by all acquisition
// commands.
type FetchConfig struct {
	TempDir       string `yaml:"temp_dir" mapstructure:"temp_dir"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxConcurrent int    `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	// RatePerSec caps requests per second against the Census API host.
	RatePerSec   int    `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TigerFTPHost string `yaml:"tiger_ftp_host" mapstructure:"tiger_ftp_host"`
	TigerFTPPath string `yaml:"tiger_ftp_path" mapstructure:"tiger_ftp_path"`
}

// PathsConfig holds the working tree for raw and cleaned data tables.
type PathsConfig struct {
	DataDir   string `yaml:"data_dir" mapstructure:"data_dir"`
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
}

// ForecastConfig configures the population projection step.
type ForecastConfig struct {
	HorizonYear    int    `yaml:"horizon_year" mapstructure:"horizon_year"`
	NationalTarget int64  `yaml:"national_target" mapstructure:"national_target"`
	ShareTablePath string `yaml:"share_table_path" mapstructure:"share_table_path"`
}

// IndexConfig configures index computation.
type IndexConfig struct {
	Method       string `yaml:"method" mapstructure:"method"`
	ProfilesPath string `yaml:"profiles_path" mapstructure:"profiles_path"`
}

// ServerConfig configures the dashboard API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("CLIMATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "climate.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("census.base_url", "https://api.census.gov/data")
	v.SetDefault("census.base_year", 2010)
	v.SetDefault("census.current_year", 2023)
	v.SetDefault("fetch.temp_dir", "/tmp/climate-cli")
	v.SetDefault("fetch.timeout_secs", 120)
	v.SetDefault("fetch.max_concurrent", 4)
	v.SetDefault("fetch.rate_per_sec", 2)
	v.SetDefault("fetch.tiger_ftp_host", "ftp2.census.gov:21")
	v.SetDefault("fetch.tiger_ftp_path", "geo/tiger/TIGER2023/COUNTY")
	v.SetDefault("paths.data_dir", "data")
	v.SetDefault("paths.output_dir", "output")
	v.SetDefault("forecast.horizon_year", 2065)
	v.SetDefault("forecast.national_target", 366207000)
	v.SetDefault("index.method", "minmax")

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

// Validate checks that the configuration carries everything the given
// command mode needs. Problems are collected and reported together.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "fetch":
		if c.Census.APIKey == "" {
			problems = append(problems, "census.api_key is required")
		}
		if c.Fetch.TempDir == "" {
			problems = append(problems, "fetch.temp_dir is required")
		}
		if c.Fetch.MaxConcurrent < 1 || c.Fetch.MaxConcurrent > 16 {
			problems = append(problems, "fetch.max_concurrent must be between 1 and 16")
		}
	case "pipeline":
		if c.Paths.DataDir == "" {
			problems = append(problems, "paths.data_dir is required")
		}
		if c.Paths.OutputDir == "" {
			problems = append(problems, "paths.output_dir is required")
		}
		if c.Forecast.HorizonYear <= c.Census.CurrentYear {
			problems = append(problems, "forecast.horizon_year must be after census.current_year")
		}
		if c.Forecast.NationalTarget <= 0 {
			problems = append(problems, "forecast.national_target must be > 0")
		}
		if c.Index.Method != "minmax" && c.Index.Method != "zscore" {
			problems = append(problems, "index.method must be minmax or zscore")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		problems = append(problems, "store.driver must be sqlite or postgres")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
