// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Source     SourceConfig     `mapstructure:"source"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Crawl      CrawlConfig      `mapstructure:"crawl"`
	Enrich     EnrichConfig     `mapstructure:"enrich"`
	Normalizer NormalizerConfig `mapstructure:"normalizer"`
	Files      FilesConfig      `mapstructure:"files"`
	DB         DBConfig         `mapstructure:"db"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls the control-surface HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// SourceConfig locates the remote listing and detail pages.
type SourceConfig struct {
	// ListingURL is a format string taking the page number.
	ListingURL string `mapstructure:"listing_url"`
	// DetailURL is a format string taking the result ID.
	DetailURL string `mapstructure:"detail_url"`
	// BaseURL is used to build canonical result URLs.
	BaseURL   string `mapstructure:"base_url"`
	UserAgent string `mapstructure:"user_agent"`
}

// HTTPConfig configures fetch timeout and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds  int `mapstructure:"timeout_seconds"`
	MaxRetries      int `mapstructure:"max_retries"`
	BackoffBaseSecs int `mapstructure:"backoff_base_seconds"`
}

// CrawlConfig governs the pagination loop.
type CrawlConfig struct {
	SeenThreshold int `mapstructure:"seen_threshold"`
}

// EnrichConfig sizes the detail-page worker pool.
type EnrichConfig struct {
	Workers int `mapstructure:"workers"`
}

// NormalizerConfig locates the text-standardization service.
type NormalizerConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// FilesConfig holds the artifact paths.
type FilesConfig struct {
	StagingPath    string `mapstructure:"staging_path"`
	CumulativePath string `mapstructure:"cumulative_path"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("source.base_url", "https://www.thegradcafe.com")
	v.SetDefault("source.listing_url", "https://www.thegradcafe.com/survey/index.php?page=%d")
	v.SetDefault("source.detail_url", "https://www.thegradcafe.com/result/%s")
	v.SetDefault("source.user_agent", "Mozilla/5.0")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_base_seconds", 2)
	v.SetDefault("crawl.seen_threshold", 3)
	v.SetDefault("enrich.workers", 10)
	v.SetDefault("normalizer.endpoint", "http://127.0.0.1:5001/standardize")
	v.SetDefault("normalizer.timeout_seconds", 60)
	v.SetDefault("files.staging_path", "data/new_applicant_data.json")
	v.SetDefault("files.cumulative_path", "data/normalized_applicant_data.jsonl")
	v.SetDefault("db.table", "grad_applications")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if !strings.Contains(c.Source.ListingURL, "%d") {
		return fmt.Errorf("source.listing_url must contain a %%d page placeholder")
	}
	if !strings.Contains(c.Source.DetailURL, "%s") {
		return fmt.Errorf("source.detail_url must contain a %%s id placeholder")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries <= 0 {
		return fmt.Errorf("http.max_retries must be > 0")
	}
	if c.Crawl.SeenThreshold <= 0 {
		return fmt.Errorf("crawl.seen_threshold must be > 0")
	}
	if c.Enrich.Workers <= 0 {
		return fmt.Errorf("enrich.workers must be > 0")
	}
	if c.Files.StagingPath == "" || c.Files.CumulativePath == "" {
		return fmt.Errorf("files.staging_path and files.cumulative_path are required")
	}
	return nil
}

// FetchTimeout converts the HTTP timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// FetchBackoffBase converts the backoff base into a duration.
func (c Config) FetchBackoffBase() time.Duration {
	return time.Duration(c.HTTP.BackoffBaseSecs) * time.Second
}

// NormalizerTimeout converts the normalizer timeout into a duration.
func (c Config) NormalizerTimeout() time.Duration {
	return time.Duration(c.Normalizer.TimeoutSeconds) * time.Second
}
