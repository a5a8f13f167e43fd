// Package config provides configuration management using Viper.
package config

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jobrunner/tilesync/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Source     SourceConfig     `mapstructure:"source"`
	Target     TargetConfig     `mapstructure:"target"`
	Transfer   TransferConfig   `mapstructure:"transfer"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Footprints FootprintsConfig `mapstructure:"footprints"`
	Server     ServerConfig     `mapstructure:"server"`
	TLS        TLSConfig        `mapstructure:"tls"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// CatalogConfig selects the identifier catalog.
type CatalogConfig struct {
	Path   string `mapstructure:"path"`   // .csv, .gpkg or .sqlite
	Column string `mapstructure:"column"` // default: APFONAME
	Table  string `mapstructure:"table"`  // SQLite only; empty picks the first feature table
	Watch  bool   `mapstructure:"watch"`  // serve mode: run a sync when the file changes
}

// SourceConfig describes the imagery archive.
type SourceConfig struct {
	Type       string     `mapstructure:"type"` // s3, blob, http, local
	Region     string     `mapstructure:"region"`
	Year       string     `mapstructure:"year"`
	Resolution string     `mapstructure:"resolution"`
	Products   []string   `mapstructure:"products"`
	S3         S3Config   `mapstructure:"s3"`
	URL        string     `mapstructure:"url"` // gocloud bucket URL for type blob
	LocalPath  string     `mapstructure:"local_path"`
	HTTP       HTTPConfig `mapstructure:"http"`
}

// Layouts returns the listing prefixes without area key, one per product.
func (c *SourceConfig) Layouts() []string {
	layouts := make([]string, 0, len(c.Products))
	for _, product := range c.Products {
		layouts = append(layouts, path.Join(c.Region, c.Year, c.Resolution, product))
	}
	return layouts
}

// TargetConfig describes the project store.
type TargetConfig struct {
	Type      string      `mapstructure:"type"` // s3, azure, blob, local
	S3        S3Config    `mapstructure:"s3"`
	Azure     AzureConfig `mapstructure:"azure"`
	URL       string      `mapstructure:"url"`
	Prefix    string      `mapstructure:"prefix"` // blob targets
	LocalPath string      `mapstructure:"local_path"`
}

// S3Config holds AWS S3 configuration.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	RequesterPays   bool   `mapstructure:"requester_pays"`
}

// AzureConfig holds Azure Blob Storage configuration.
type AzureConfig struct {
	Container        string `mapstructure:"container"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	ConnectionString string `mapstructure:"connection_string"`
	Prefix           string `mapstructure:"prefix"`
}

// HTTPConfig holds HTTP mirror configuration.
type HTTPConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	IndexFile string        `mapstructure:"index_file"` // default: index.txt
	Timeout   time.Duration `mapstructure:"timeout"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
}

// TransferConfig controls discovery and copying.
type TransferConfig struct {
	Workers                   int           `mapstructure:"workers"`
	Timeout                   time.Duration `mapstructure:"timeout"` // per network call
	SkipExisting              bool          `mapstructure:"skip_existing"`
	TreatCheckErrorsAsMissing bool          `mapstructure:"treat_check_errors_as_missing"`
	Collisions                string        `mapstructure:"collisions"` // rename, first
	DryRun                    bool          `mapstructure:"dry_run"`
}

// SyncConfig holds the serve-mode scheduler settings.
type SyncConfig struct {
	Interval time.Duration `mapstructure:"interval"` // 0 disables periodic runs
}

// FootprintsConfig holds footprint extraction settings.
type FootprintsConfig struct {
	Output  string `mapstructure:"output"`
	TempDir string `mapstructure:"temp_dir"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"` // e.g., ["https://example.com", "*.sub.domain.tld"]
}

// Enabled returns true if CORS is configured with at least one allowed origin.
func (c *CORSConfig) Enabled() bool {
	return len(c.AllowedOrigins) > 0
}

// TLSConfig holds TLS/CertMagic configuration.
type TLSConfig struct {
	Enabled  bool         `mapstructure:"enabled"`
	Domains  []string     `mapstructure:"domains"`
	Email    string       `mapstructure:"email"`
	CacheDir string       `mapstructure:"cache_dir"`
	Staging  bool         `mapstructure:"staging"` // Use Let's Encrypt staging
	DNS      TLSDNSConfig `mapstructure:"dns"`
}

// TLSDNSConfig enables DNS-01 challenges through Azure DNS.
type TLSDNSConfig struct {
	SubscriptionID    string `mapstructure:"subscription_id"`
	ResourceGroupName string `mapstructure:"resource_group_name"`
	ClientID          string `mapstructure:"client_id"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
}

// Defaults sets the default configuration values.
func Defaults() {
	// Catalog defaults
	viper.SetDefault("catalog.path", "./naip_quarter_quads.csv")
	viper.SetDefault("catalog.column", "APFONAME")
	viper.SetDefault("catalog.watch", false)

	// Source defaults
	viper.SetDefault("source.type", "s3")
	viper.SetDefault("source.region", "co")
	viper.SetDefault("source.year", "2021")
	viper.SetDefault("source.resolution", "60cm")
	viper.SetDefault("source.products", []string{"rgbir_cog"})
	viper.SetDefault("source.s3.bucket", "naip-analytic")
	viper.SetDefault("source.s3.region", "us-west-2")
	viper.SetDefault("source.s3.requester_pays", true)
	viper.SetDefault("source.http.index_file", "index.txt")
	viper.SetDefault("source.http.timeout", 5*time.Minute)

	// Target defaults
	viper.SetDefault("target.type", "local")
	viper.SetDefault("target.local_path", "./relevant_tiles")
	viper.SetDefault("target.s3.region", "us-west-2")

	// Transfer defaults
	viper.SetDefault("transfer.workers", 10)
	viper.SetDefault("transfer.timeout", 5*time.Minute)
	viper.SetDefault("transfer.skip_existing", true)
	viper.SetDefault("transfer.treat_check_errors_as_missing", false)
	viper.SetDefault("transfer.collisions", "rename")
	viper.SetDefault("transfer.dry_run", false)

	// Sync defaults
	viper.SetDefault("sync.interval", time.Duration(0))

	// Footprint defaults
	viper.SetDefault("footprints.output", "./tile_footprints.gpkg")
	viper.SetDefault("footprints.temp_dir", "")

	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)
	viper.SetDefault("server.cors.allowed_origins", []string{})

	// TLS defaults
	viper.SetDefault("tls.enabled", false)
	viper.SetDefault("tls.cache_dir", "./.certmagic")
	viper.SetDefault("tls.staging", false)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// Load loads configuration from environment and config file.
func Load(configPath string) (*Config, error) {
	Defaults()

	// Environment variable binding
	viper.SetEnvPrefix("TILESYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Config file
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/tilesync")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration. Failures are *domain.ConfigError.
func (c *Config) Validate() error {
	if c.Catalog.Path == "" {
		return invalid("catalog.path", "catalog path is required")
	}

	if err := c.validateSource(); err != nil {
		return err
	}
	if err := c.validateTarget(); err != nil {
		return err
	}

	if c.Transfer.Workers < 1 {
		return invalid("transfer.workers", fmt.Sprintf("must be at least 1, got %d", c.Transfer.Workers))
	}
	if c.Transfer.Timeout < 0 {
		return invalid("transfer.timeout", "must not be negative")
	}
	switch c.Transfer.Collisions {
	case "rename", "first":
	default:
		return invalid("transfer.collisions", fmt.Sprintf("unknown mode %q", c.Transfer.Collisions))
	}

	if c.Sync.Interval < 0 {
		return invalid("sync.interval", "must not be negative")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return invalid("server.port", fmt.Sprintf("invalid port: %d", c.Server.Port))
	}
	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return invalid("metrics.port", fmt.Sprintf("invalid port: %d", c.Metrics.Port))
	}

	if c.TLS.Enabled {
		if len(c.TLS.Domains) == 0 {
			return invalid("tls.domains", "TLS enabled but no domains specified")
		}
		if c.TLS.Email == "" {
			return invalid("tls.email", "TLS enabled but no email specified")
		}
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return invalid("logging.format", fmt.Sprintf("unknown format %q", c.Logging.Format))
	}

	return nil
}

func (c *Config) validateSource() error {
	if len(c.Source.Products) == 0 {
		return invalid("source.products", "at least one product is required")
	}
	for _, p := range []struct{ field, value string }{
		{"source.region", c.Source.Region},
		{"source.year", c.Source.Year},
		{"source.resolution", c.Source.Resolution},
	} {
		if p.value == "" {
			return invalid(p.field, "is required")
		}
	}

	switch c.Source.Type {
	case "s3":
		if c.Source.S3.Bucket == "" {
			return invalid("source.s3.bucket", "S3 bucket is required")
		}
		if c.Source.S3.Region == "" {
			return invalid("source.s3.region", "S3 region is required")
		}
	case "blob":
		if c.Source.URL == "" {
			return invalid("source.url", "bucket URL is required")
		}
	case "http":
		if c.Source.HTTP.BaseURL == "" {
			return invalid("source.http.base_url", "HTTP base URL is required")
		}
	case "local":
		if c.Source.LocalPath == "" {
			return invalid("source.local_path", "local source path is required")
		}
	default:
		return invalid("source.type", fmt.Sprintf("unknown source type: %s", c.Source.Type))
	}
	return nil
}

func (c *Config) validateTarget() error {
	switch c.Target.Type {
	case "local":
		if c.Target.LocalPath == "" {
			return invalid("target.local_path", "local target path is required")
		}
	case "s3":
		if c.Target.S3.Bucket == "" {
			return invalid("target.s3.bucket", "S3 bucket is required")
		}
		if c.Target.S3.Region == "" {
			return invalid("target.s3.region", "S3 region is required")
		}
	case "azure":
		if c.Target.Azure.Container == "" {
			return invalid("target.azure.container", "azure container is required")
		}
		if c.Target.Azure.AccountName == "" && c.Target.Azure.ConnectionString == "" {
			return invalid("target.azure", "azure account name or connection string is required")
		}
	case "blob":
		if c.Target.URL == "" {
			return invalid("target.url", "bucket URL is required")
		}
	default:
		return invalid("target.type", fmt.Sprintf("unknown target type: %s", c.Target.Type))
	}
	return nil
}

func invalid(field, msg string) error {
	return &domain.ConfigError{Field: field, Message: msg}
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
