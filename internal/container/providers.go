package container

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/garyjia/cash-advance/internal/application/dispatcher"
	"github.com/garyjia/cash-advance/internal/application/port"
	"github.com/garyjia/cash-advance/internal/application/service"
	"github.com/garyjia/cash-advance/internal/domain/event"
	infraLark "github.com/garyjia/cash-advance/internal/infrastructure/external/lark"
	"github.com/garyjia/cash-advance/internal/infrastructure/persistence/repository"
	"github.com/garyjia/cash-advance/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/cash-advance/internal/infrastructure/report"
	"github.com/garyjia/cash-advance/internal/infrastructure/storage"
	"github.com/garyjia/cash-advance/migrations"
	"github.com/garyjia/cash-advance/pkg/database"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// StorageBundle holds storage-related components.
type StorageBundle struct {
	FileStorage port.FileStorage
	Documents   port.DocumentStore
}

// ProvideDatabase opens the ledger database and applies pending migrations.
// The embedded schema is used unless cfg.MigrationsDir points elsewhere.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	var source fs.FS = migrations.FS
	if cfg.MigrationsDir != "" {
		source = os.DirFS(cfg.MigrationsDir)
	}

	applied, err := database.NewMigrator(db, logger).Run(source)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("Migrations checked", zap.Int("applied", applied))

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Advance:      repository.NewAdvanceRepository(db.DB, logger),
		Movement:     repository.NewMovementRepository(db.DB, logger),
		CashMovement: repository.NewCashMovementRepository(db.DB, logger),
		History:      repository.NewHistoryRepository(db.DB, logger),
	}, nil
}

// ProvideStorage creates the local file storage and the document store on top of it.
func ProvideStorage(cfg *DocumentsConfig, logger *zap.Logger) (*StorageBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("documents config is required")
	}
	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create document directory: %w", err)
	}

	files := storage.NewLocalFileStorage(cfg.BaseDir, logger)
	documents := storage.NewDocumentStore(files, storage.DocumentStoreConfig{
		BaseURL:     cfg.BaseURL,
		MaxFileSize: cfg.MaxFileSize,
	}, logger)

	return &StorageBundle{
		FileStorage: files,
		Documents:   documents,
	}, nil
}

// ProvideNotifier creates the Lark treasury notifier.
// It returns nil when notifications are disabled.
func ProvideNotifier(cfg *NotifierConfig, logger *zap.Logger) (port.TreasuryNotifier, error) {
	if cfg == nil || !cfg.Enabled {
		logger.Info("Treasury notifications disabled")
		return nil, nil
	}
	if cfg.AppID == "" || cfg.AppSecret == "" {
		return nil, fmt.Errorf("lark credentials are required")
	}

	sender := infraLark.NewSDKSender(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		ChatID:    cfg.ChatID,
	}, logger)

	return infraLark.NewTreasuryNotifier(sender, cfg.ChatID, cfg.Breaker, logger), nil
}

// ProvideServices creates all application services.
func ProvideServices(
	cfg *Config,
	repos *RepositoryBundle,
	txManager port.TransactionManager,
	documents port.DocumentStore,
	writer port.StatementWriter,
	publisher port.EventPublisher,
	logger *zap.Logger,
) (*ServiceBundle, error) {
	if repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if txManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}

	svcLogger := &zapLoggerAdapter{logger: logger}

	return &ServiceBundle{
		Advance: service.NewAdvanceService(
			repos.Advance, repos.Movement, repos.History,
			txManager, publisher, cfg.Ledger.DefaultCurrency, svcLogger,
		),
		Movement: service.NewMovementService(
			repos.Advance, repos.Movement, repos.History,
			txManager, documents, publisher, cfg.Ledger.Policy, svcLogger,
		),
		Liquidation: service.NewLiquidationService(
			repos.Advance, repos.Movement, repos.History,
			txManager, publisher, svcLogger,
		),
		Treasury: service.NewTreasuryService(
			repos.CashMovement, repos.Advance, repos.Movement, repos.History,
			txManager, publisher, svcLogger,
		),
		Statement: service.NewStatementService(
			repos.Advance, repos.Movement, writer, svcLogger,
		),
	}, nil
}

// ProvideStatementWriter creates the xlsx statement writer.
func ProvideStatementWriter(cfg *ReportConfig, logger *zap.Logger) port.StatementWriter {
	font := ""
	if cfg != nil {
		font = cfg.Font
	}
	return report.NewStatementWriter(font, logger)
}

// ProvideDispatcher creates the event dispatcher with the structured event log.
func ProvideDispatcher(logger *zap.Logger) dispatcher.Dispatcher {
	d := dispatcher.NewDispatcher(dispatcher.WithLogger(&dispatcherLoggerAdapter{logger: logger}))
	d.SubscribeAll("event-log", dispatcher.Sync, service.EventLogHandler(&zapLoggerAdapter{logger: logger}))
	return d
}

// SubscribeNotifications routes liquidations and reversals to the treasury
// notifier. Delivery runs asynchronously so Lark never delays a request.
func SubscribeNotifications(d dispatcher.Dispatcher, services *ServiceBundle, notifier port.TreasuryNotifier, logger *zap.Logger) *service.NotificationHandler {
	if notifier == nil {
		return nil
	}

	handler := service.NewNotificationHandler(services.Advance, services.Treasury, notifier, &zapLoggerAdapter{logger: logger})
	d.Subscribe(event.TypeAdvanceLiquidated, "treasury-liquidation", dispatcher.Async, handler.HandleAdvanceLiquidated)
	d.Subscribe(event.TypeCashMovementReversed, "treasury-reversal", dispatcher.Async, handler.HandleCashMovementReversed)
	return handler
}
