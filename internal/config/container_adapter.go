package config

import (
	"github.com/garyjia/cash-advance/internal/container"
	"github.com/garyjia/cash-advance/internal/domain/ledger"
	infraLark "github.com/garyjia/cash-advance/internal/infrastructure/external/lark"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			MigrationsDir:   c.Database.MigrationsDir,
		},
		Ledger: container.LedgerConfig{
			DefaultCurrency: c.Ledger.DefaultCurrency,
			Policy: ledger.Policy{
				EnforceBalance:             c.Ledger.EnforceBalance,
				RequireExpenseCounterparty: c.Ledger.RequireExpenseCounterparty,
			},
		},
		Documents: container.DocumentsConfig{
			BaseDir:     c.Documents.BaseDir,
			BaseURL:     c.Documents.BaseURL,
			MaxFileSize: c.Documents.MaxFileSize,
		},
		Notifier: container.NotifierConfig{
			Enabled:   c.Notifier.Enabled,
			AppID:     c.Notifier.AppID,
			AppSecret: c.Notifier.AppSecret,
			ChatID:    c.Notifier.TreasuryChatID,
			Breaker: infraLark.BreakerConfig{
				ConsecutiveFailures: c.Notifier.ConsecutiveFailures,
				Timeout:             c.Notifier.OpenTimeout,
				MaxRequests:         c.Notifier.HalfOpenRequests,
			},
		},
		Report: container.ReportConfig{
			Font: c.Report.Font,
		},
	}
}
