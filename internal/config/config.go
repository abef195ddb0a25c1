package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full configuration tree for the ingestion pipeline.
type Config struct {
	Resolver ResolverConfig `mapstructure:"resolver"`
	ClinVar  ClinVarConfig  `mapstructure:"clinvar"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ResolverConfig configures the external variant resolution client.
type ResolverConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	PaceInterval time.Duration `mapstructure:"pace_interval"`
}

// ClinVarConfig configures the bulk annotation dataset download and the
// local cache generation.
type ClinVarConfig struct {
	SummaryURL      string        `mapstructure:"summary_url"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	CachePath       string        `mapstructure:"cache_path"`
	LookupCacheSize int           `mapstructure:"lookup_cache_size"`
}

// DatabaseConfig configures the persistent variant store.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite or postgres
	Dir    string `mapstructure:"dir"`    // sqlite: directory holding .db files
	URL    string `mapstructure:"url"`    // postgres: connection URL
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Manager loads and holds configuration using Viper.
type Manager struct {
	config *Config
}

// NewManager creates a configuration manager, reading config.yaml when
// present and falling back to defaults and VARIANTDB_* environment
// variables.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/variantdb/")

	viper.SetEnvPrefix("VARIANTDB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; defaults and environment variables apply.
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

func (m *Manager) setDefaults() {
	// Resolver defaults. The pace interval is the minimum gap between two
	// consecutive calls to the resolution service.
	viper.SetDefault("resolver.base_url", "https://rest.variantvalidator.org/VariantValidator/")
	viper.SetDefault("resolver.timeout", "30s")
	viper.SetDefault("resolver.pace_interval", "500ms")

	// Bulk annotation dataset defaults.
	viper.SetDefault("clinvar.summary_url", "https://ftp.ncbi.nlm.nih.gov/pub/clinvar/tab_delimited/variant_summary.txt.gz")
	viper.SetDefault("clinvar.download_timeout", "15m")
	viper.SetDefault("clinvar.cache_path", "data/clinvar/clinvar_cache.db")
	viper.SetDefault("clinvar.lookup_cache_size", 1024)

	// Persistent store defaults.
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.dir", "databases")
	viper.SetDefault("database.url", "")

	// Logging defaults.
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
}

// GetConfig returns the complete configuration.
func (m *Manager) GetConfig() *Config {
	return m.config
}

// Validate checks cross-field constraints that Viper cannot express.
func (m *Manager) Validate() error {
	cfg := m.config
	if cfg.Resolver.BaseURL == "" {
		return fmt.Errorf("resolver.base_url must not be empty")
	}
	if cfg.Resolver.PaceInterval < 0 {
		return fmt.Errorf("resolver.pace_interval must not be negative")
	}
	switch cfg.Database.Driver {
	case "sqlite":
		if cfg.Database.Dir == "" {
			return fmt.Errorf("database.dir is required for the sqlite driver")
		}
	case "postgres":
		if cfg.Database.URL == "" {
			return fmt.Errorf("database.url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unsupported logging format: %s", cfg.Logging.Format)
	}
	return nil
}
