package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/cash-advance/internal/application/dispatcher"
	"github.com/garyjia/cash-advance/internal/application/port"
	"github.com/garyjia/cash-advance/internal/application/service"
	"github.com/garyjia/cash-advance/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/cash-advance/pkg/database"
	"go.uber.org/zap"
)

// Container manages all application dependencies and lifecycle.
// It follows Clean Architecture principles with ordered initialization
// and reverse-order teardown.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	database     *database.DB
	db           *sqlite.DB
	repositories *RepositoryBundle

	// Infrastructure - Storage and output
	storage   *StorageBundle
	statement port.StatementWriter

	// Infrastructure - External
	notifier port.TreasuryNotifier

	// Application
	dispatcher    dispatcher.Dispatcher
	services      *ServiceBundle
	notifications *service.NotificationHandler

	// Lifecycle
	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Advance      port.AdvanceRepository
	Movement     port.MovementRepository
	CashMovement port.CashMovementRepository
	History      port.HistoryRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Advance     service.AdvanceService
	Movement    service.MovementService
	Liquidation service.LiquidationService
	Treasury    service.TreasuryService
	Statement   service.StatementService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components in dependency order:
// 1. Database, migrations and repositories
// 2. Document storage and statement writer
// 3. Treasury notifier
// 4. Event dispatcher and application services
// 5. Notification subscriptions
// A failed step releases whatever the earlier steps opened.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	if err := c.initStorage(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.logger.Info("Storage initialized")

	if err := c.initExternalClients(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}
	c.logger.Info("External clients initialized")

	if err := c.initServices(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	c.notifications = SubscribeNotifications(c.dispatcher, c.services, c.notifier, c.logger)
	if c.notifications != nil {
		c.logger.Info("Treasury notifications subscribed")
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	errs := c.teardown()

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// teardown drains the dispatcher before the database goes away, so async
// handlers still in flight can finish their reads.
func (c *Container) teardown() []error {
	var errs []error

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
		c.dispatcher = nil
	}

	if c.database != nil {
		if err := c.database.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
		c.database = nil
	}

	return errs
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	mark := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	if c.database == nil {
		mark("database", false, "not initialized")
	} else if err := c.database.PingContext(ctx); err != nil {
		mark("database", false, fmt.Sprintf("ping failed: %v", err))
	} else {
		mark("database", true, "")
	}

	if c.dispatcher == nil {
		mark("dispatcher", false, "not initialized")
	} else {
		mark("dispatcher", true, "")
	}

	if c.services == nil {
		mark("services", false, "not initialized")
	} else {
		mark("services", true, "")
	}

	// The notifier is optional and its breaker handles outages.
	if c.notifier == nil {
		status.Components["notifier"] = ComponentHealth{Healthy: true, Message: "disabled"}
	} else {
		status.Components["notifier"] = ComponentHealth{Healthy: true}
	}

	return status
}

// HealthCheck reports the first unhealthy component as an error.
func (c *Container) HealthCheck(ctx context.Context) error {
	status := c.Health(ctx)
	if status.Overall {
		return nil
	}
	for name, component := range status.Components {
		if !component.Healthy {
			return fmt.Errorf("%s: %s", name, component.Message)
		}
	}
	return fmt.Errorf("unhealthy")
}

// initDatabase opens the database and builds the repositories.
func (c *Container) initDatabase() error {
	bundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.database = bundle.DB
	c.db = bundle.TransactionMgr

	repos, err := ProvideRepositories(c.database, c.logger)
	if err != nil {
		return err
	}
	c.repositories = repos

	return nil
}

// initStorage creates the document store and statement writer.
func (c *Container) initStorage() error {
	bundle, err := ProvideStorage(&c.config.Documents, c.logger)
	if err != nil {
		return err
	}
	c.storage = bundle
	c.statement = ProvideStatementWriter(&c.config.Report, c.logger)
	return nil
}

// initExternalClients creates the Lark notifier when enabled.
func (c *Container) initExternalClients() error {
	notifier, err := ProvideNotifier(&c.config.Notifier, c.logger)
	if err != nil {
		return err
	}
	c.notifier = notifier
	return nil
}

// initServices creates the dispatcher and the services publishing to it.
func (c *Container) initServices() error {
	c.dispatcher = ProvideDispatcher(c.logger)

	services, err := ProvideServices(
		c.config,
		c.repositories,
		c.db,
		c.storage.Documents,
		c.statement,
		c.dispatcher,
		c.logger,
	)
	if err != nil {
		return err
	}
	c.services = services
	return nil
}

// Services returns the application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Repositories returns the repository bundle.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// TransactionManager returns the transaction manager.
func (c *Container) TransactionManager() port.TransactionManager {
	return c.db
}

// Config returns the container configuration.
func (c *Container) Config() *Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the service.Logger interface.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// dispatcherLoggerAdapter adapts zap.Logger to the dispatcher.Logger interface.
type dispatcherLoggerAdapter struct {
	logger *zap.Logger
}

func (a *dispatcherLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *dispatcherLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// NewLoggerAdapter exposes the key/value adapter to the transport layer.
func NewLoggerAdapter(logger *zap.Logger) service.Logger {
	return &zapLoggerAdapter{logger: logger}
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
