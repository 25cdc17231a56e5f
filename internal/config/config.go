package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	Token     string `mapstructure:"arcadia_token"`
	BaseURL   string `mapstructure:"arcadia_base_url"`
	UserAgent string `mapstructure:"user_agent"`

	RequestTimeoutSeconds int64         `mapstructure:"request_timeout_seconds"`
	CatalogTimeoutSeconds int64         `mapstructure:"catalog_timeout_seconds"`
	BackoffStepSeconds    int64         `mapstructure:"backoff_step_seconds"`
	BackoffMaxSeconds     int64         `mapstructure:"backoff_max_seconds"`
	ReconcileDelayMs      int64         `mapstructure:"reconcile_delay_ms"`
	RequestTimeout        time.Duration `mapstructure:"-"`
	CatalogTimeout        time.Duration `mapstructure:"-"`
	BackoffStep           time.Duration `mapstructure:"-"`
	BackoffMax            time.Duration `mapstructure:"-"`
	ReconcileDelay        time.Duration `mapstructure:"-"`

	JobsFile              string        `mapstructure:"jobs_file"`
	PublishersFile        string        `mapstructure:"publishers_file"`
	OutputDir             string        `mapstructure:"output_dir"`
	RenderIntervalSeconds int64         `mapstructure:"render_interval"`
	RenderInterval        time.Duration `mapstructure:"-"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "arcadia")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("arcadia_token", "")
	v.SetDefault("arcadia_base_url", "https://arcadia-api.xyz/api/v1")
	v.SetDefault("user_agent", "")
	v.SetDefault("request_timeout_seconds", 300)
	v.SetDefault("catalog_timeout_seconds", 30)
	v.SetDefault("backoff_step_seconds", 5)
	v.SetDefault("backoff_max_seconds", 60)
	v.SetDefault("reconcile_delay_ms", 1000)
	v.SetDefault("jobs_file", "./configs/jobs.yaml")
	v.SetDefault("publishers_file", "")
	v.SetDefault("output_dir", "./out")
	v.SetDefault("render_interval", 0) // seconds; 0 renders once
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/renders.db")
	v.SetDefault("storage_ttl_seconds", int64((24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((6*time.Hour)/time.Second))

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize validates the raw numeric settings and derives durations from them.
func (cfg *Config) normalize() error {
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.BaseURL == "" {
		return fmt.Errorf("invalid arcadia_base_url (must not be empty)")
	}

	positive := []struct {
		key   string
		value int64
		unit  time.Duration
		dst   *time.Duration
	}{
		{key: "request_timeout_seconds", value: cfg.RequestTimeoutSeconds, unit: time.Second, dst: &cfg.RequestTimeout},
		{key: "catalog_timeout_seconds", value: cfg.CatalogTimeoutSeconds, unit: time.Second, dst: &cfg.CatalogTimeout},
		{key: "backoff_step_seconds", value: cfg.BackoffStepSeconds, unit: time.Second, dst: &cfg.BackoffStep},
		{key: "backoff_max_seconds", value: cfg.BackoffMaxSeconds, unit: time.Second, dst: &cfg.BackoffMax},
		{key: "storage_ttl_seconds", value: cfg.StorageTTLSeconds, unit: time.Second, dst: &cfg.StorageTTL},
		{key: "storage_cleanup_interval_seconds", value: cfg.StorageCleanupSeconds, unit: time.Second, dst: &cfg.StorageCleanupInterval},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("invalid %s (must be positive)", p.key)
		}
		*p.dst = time.Duration(p.value) * p.unit
	}

	if cfg.ReconcileDelayMs < 0 {
		return fmt.Errorf("invalid reconcile_delay_ms (must not be negative)")
	}
	cfg.ReconcileDelay = time.Duration(cfg.ReconcileDelayMs) * time.Millisecond

	if cfg.RenderIntervalSeconds < 0 {
		return fmt.Errorf("invalid render_interval (must not be negative seconds)")
	}
	cfg.RenderInterval = time.Duration(cfg.RenderIntervalSeconds) * time.Second

	return nil
}

// Redacted returns a copy safe to log, with the API token masked.
func (cfg Config) Redacted() Config {
	if cfg.Token != "" {
		cfg.Token = "***"
	}
	return cfg
}
