// Package container provides dependency injection and lifecycle management
// for the cash advance ledger following Clean Architecture principles.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/cash-advance/internal/domain/ledger"
	"github.com/garyjia/cash-advance/internal/domain/money"
	infraLark "github.com/garyjia/cash-advance/internal/infrastructure/external/lark"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Ledger rules
	Ledger LedgerConfig

	// Supporting document storage
	Documents DocumentsConfig

	// Treasury notifications
	Notifier NotifierConfig

	// Statement export
	Report ReportConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// MigrationsDir replaces the embedded migrations when set
	MigrationsDir string
}

// LedgerConfig holds the business rules applied by the services.
type LedgerConfig struct {
	// DefaultCurrency is used when an advance is opened without one
	DefaultCurrency string

	Policy ledger.Policy
}

// DocumentsConfig holds document storage settings.
type DocumentsConfig struct {
	BaseDir     string
	BaseURL     string
	MaxFileSize int64
}

// NotifierConfig holds Lark treasury notification settings.
type NotifierConfig struct {
	Enabled   bool
	AppID     string
	AppSecret string
	ChatID    string
	Breaker   infraLark.BreakerConfig
}

// ReportConfig holds statement export settings.
type ReportConfig struct {
	Font string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:         "data/cash_advance.db",
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
		Ledger: LedgerConfig{
			DefaultCurrency: "PEN",
			Policy:          ledger.DefaultPolicy(),
		},
		Documents: DocumentsConfig{
			BaseDir:     "data/documents",
			BaseURL:     "/documents",
			MaxFileSize: 20 << 20,
		},
		Notifier: NotifierConfig{
			Breaker: infraLark.BreakerConfig{
				ConsecutiveFailures: 5,
				Timeout:             30 * time.Second,
				MaxRequests:         1,
			},
		},
		Report: ReportConfig{
			Font: "Calibri",
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if err := money.ValidateCurrency(c.Ledger.DefaultCurrency); err != nil {
		return fmt.Errorf("ledger.default_currency: %w", err)
	}

	if c.Documents.BaseDir == "" {
		return fmt.Errorf("documents.base_dir is required")
	}

	if c.Notifier.Enabled {
		if c.Notifier.AppID == "" || c.Notifier.AppSecret == "" {
			return fmt.Errorf("notifier credentials are required when enabled")
		}
		if c.Notifier.ChatID == "" {
			return fmt.Errorf("notifier.chat_id is required when enabled")
		}
	}

	return nil
}
