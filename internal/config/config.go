package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/garyjia/cash-advance/internal/domain/money"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Documents DocumentsConfig `mapstructure:"documents"`
	Notifier  NotifierConfig  `mapstructure:"notifier"`
	Report    ReportConfig    `mapstructure:"report"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// MigrationsDir overrides the embedded schema when set
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// LedgerConfig holds the business rule switches
type LedgerConfig struct {
	DefaultCurrency            string `mapstructure:"default_currency"`
	EnforceBalance             bool   `mapstructure:"enforce_balance"`
	RequireExpenseCounterparty bool   `mapstructure:"require_expense_counterparty"`
}

// DocumentsConfig holds supporting document storage configuration
type DocumentsConfig struct {
	BaseDir     string `mapstructure:"base_dir"`
	BaseURL     string `mapstructure:"base_url"`
	ServePath   string `mapstructure:"serve_path"`
	MaxFileSize int64  `mapstructure:"max_file_size"`
}

// NotifierConfig holds the Lark treasury notification configuration
type NotifierConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	AppID               string        `mapstructure:"app_id"`
	AppSecret           string        `mapstructure:"app_secret"`
	TreasuryChatID      string        `mapstructure:"treasury_chat_id"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
	OpenTimeout         time.Duration `mapstructure:"open_timeout"`
	HalfOpenRequests    uint32        `mapstructure:"half_open_requests"`
}

// ReportConfig holds statement export configuration
type ReportConfig struct {
	Font      string `mapstructure:"font"`
	OutputDir string `mapstructure:"output_dir"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables.
// An empty configPath uses defaults and the environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Ledger.DefaultCurrency = money.NormalizeCurrency(cfg.Ledger.DefaultCurrency)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_upload_bytes", 32<<20)

	// Database defaults
	v.SetDefault("database.path", "data/cash_advance.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 0)
	v.SetDefault("database.migrations_dir", "")

	// Ledger defaults
	v.SetDefault("ledger.default_currency", "PEN")
	v.SetDefault("ledger.enforce_balance", true)
	v.SetDefault("ledger.require_expense_counterparty", false)

	// Documents defaults
	v.SetDefault("documents.base_dir", "data/documents")
	v.SetDefault("documents.base_url", "/documents")
	v.SetDefault("documents.serve_path", "/documents")
	v.SetDefault("documents.max_file_size", 20<<20)

	// Notifier defaults
	v.SetDefault("notifier.enabled", false)
	v.SetDefault("notifier.consecutive_failures", 5)
	v.SetDefault("notifier.open_timeout", 30*time.Second)
	v.SetDefault("notifier.half_open_requests", 1)

	// Report defaults
	v.SetDefault("report.font", "Calibri")
	v.SetDefault("report.output_dir", "data/statements")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	// Sensitive credentials from environment
	_ = v.BindEnv("notifier.app_id", "LARK_APP_ID")
	_ = v.BindEnv("notifier.app_secret", "LARK_APP_SECRET")
	_ = v.BindEnv("notifier.treasury_chat_id", "LARK_TREASURY_CHAT_ID")
	_ = v.BindEnv("database.path", "CASH_ADVANCE_DB_PATH")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if err := money.ValidateCurrency(c.Ledger.DefaultCurrency); err != nil {
		return fmt.Errorf("ledger.default_currency: %w", err)
	}

	if c.Documents.BaseDir == "" {
		return fmt.Errorf("documents.base_dir is required")
	}
	if c.Documents.MaxFileSize <= 0 {
		return fmt.Errorf("documents.max_file_size must be positive")
	}

	// Lark credentials only matter when notifications are on
	if c.Notifier.Enabled {
		if c.Notifier.AppID == "" {
			return fmt.Errorf("notifier.app_id is required")
		}
		if c.Notifier.AppSecret == "" {
			return fmt.Errorf("notifier.app_secret is required")
		}
		if c.Notifier.TreasuryChatID == "" {
			return fmt.Errorf("notifier.treasury_chat_id is required")
		}
	}

	return nil
}
