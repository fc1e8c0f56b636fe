package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/metrics-cli/internal/reconcile"
	"github.com/sells-group/metrics-cli/internal/sched"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig         `yaml:"store" mapstructure:"store"`
	Log        LogConfig           `yaml:"log" mapstructure:"log"`
	Scheduler  sched.Config        `yaml:"scheduler" mapstructure:"scheduler"`
	Reconcile  reconcile.Config    `yaml:"reconcile" mapstructure:"reconcile"`
	Adapters   AdaptersConfig      `yaml:"adapters" mapstructure:"adapters"`
	Collect    CollectConfig       `yaml:"collect" mapstructure:"collect"`
	Server     ServerConfig        `yaml:"server" mapstructure:"server"`
	Industries map[string][]string `yaml:"industries" mapstructure:"industries"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// AdaptersConfig names the enabled source adapters and their endpoints.
type AdaptersConfig struct {
	Enabled          []string `yaml:"enabled" mapstructure:"enabled"`
	QuotePageBaseURL string   `yaml:"quotepage_base_url" mapstructure:"quotepage_base_url"`
	StatsAPIBaseURL  string   `yaml:"statsapi_base_url" mapstructure:"statsapi_base_url"`
	RegistryFilePath string   `yaml:"registry_file_path" mapstructure:"registry_file_path"`
}

// CollectConfig configures run behavior.
type CollectConfig struct {
	// ExtractRetentionDays bounds how long raw extracts stay for audit.
	ExtractRetentionDays int `yaml:"extract_retention_days" mapstructure:"extract_retention_days"`
}

// ServerConfig configures the snapshot HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// defaultIndustries are the shipped industry → ticker lists; config files
// may override or extend them.
func defaultIndustries() map[string][]string {
	return map[string][]string{
		"technology": {"AAPL", "MSFT", "GOOGL", "AMZN", "META", "NVDA", "ORCL", "CRM", "ADBE", "INTC"},
		"finance":    {"JPM", "BAC", "WFC", "GS", "MS", "C", "AXP", "BLK", "SCHW", "USB"},
		"healthcare": {"JNJ", "PFE", "UNH", "ABT", "TMO", "MRK", "CVS", "DHR", "BMY", "LLY"},
		"retail":     {"WMT", "HD", "COST", "TGT", "LOW", "SBUX", "NKE", "MCD", "DIS", "BKNG"},
		"energy":     {"XOM", "CVX", "COP", "EOG", "SLB", "PSX", "VLO", "MPC", "OXY", "HAL"},
		"automotive": {"TSLA", "F", "GM", "TM", "HMC", "STLA", "NIO", "RIVN", "LCID", "LI"},
	}
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("METRICS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "metrics.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("scheduler.workers", 8)
	v.SetDefault("scheduler.max_attempts", 3)
	v.SetDefault("scheduler.initial_backoff", "500ms")
	v.SetDefault("scheduler.max_backoff", "30s")
	v.SetDefault("scheduler.jitter_fraction", 0.25)
	v.SetDefault("scheduler.call_timeout", "30s")
	v.SetDefault("reconcile.default_tolerance", 0.01)
	v.SetDefault("reconcile.base_currency", "USD")
	v.SetDefault("adapters.enabled", []string{"statsapi", "quotepage", "registryfile"})
	v.SetDefault("adapters.quotepage_base_url", "https://quotes.example.com")
	v.SetDefault("adapters.statsapi_base_url", "https://stats.example.com")
	v.SetDefault("adapters.registry_file_path", "registry.csv")
	v.SetDefault("collect.extract_retention_days", 90)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if cfg.Industries == nil {
		cfg.Industries = defaultIndustries()
	} else {
		for industry, symbols := range defaultIndustries() {
			if _, ok := cfg.Industries[industry]; !ok {
				cfg.Industries[industry] = symbols
			}
		}
	}

	return &cfg, nil
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
