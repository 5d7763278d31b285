package backend

import (
	"context"
	"fmt"

	"github.com/galexy/revivo-mk1-sub001/internal/amqp"
	"github.com/galexy/revivo-mk1-sub001/internal/cache"
	"github.com/galexy/revivo-mk1-sub001/internal/log"
	"github.com/galexy/revivo-mk1-sub001/internal/repository"
	"github.com/galexy/revivo-mk1-sub001/internal/repository/memory"
	"github.com/galexy/revivo-mk1-sub001/internal/services"
	"github.com/galexy/revivo-mk1-sub001/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.openStore(config)
	if err != nil {
		return nil, err
	}

	publisher := f.openPublisher(ctx, config)

	opts := []services.Option{services.WithLogger(f.logger)}
	if config.CategoryCacheSize > 0 && config.CategoryCacheTTL > 0 {
		opts = append(opts, services.WithCategoryCache(config.CategoryCacheSize, config.CategoryCacheTTL))
	}
	ledger := services.NewLedger(store, publisher, opts...)

	caches := cache.NewManager()
	caches.Register(ledger.CategoryTreeCache())
	if config.CacheCleanupInterval > 0 {
		caches.StartCleanup(config.CacheCleanupInterval)
	}

	f.logger.InfoContext(ctx, "Initialized ledger backend",
		log.FieldBackend, config.Type.String(),
		"amqp_enabled", config.AMQPURL != "")

	return &BackendResult{
		Ledger:  ledger,
		Store:   store,
		Cleanup: func() error {
			caches.Stop()
			return ledger.Close()
		},
	}, nil
}

func (f *DefaultFactory) openStore(config Config) (repository.Store, error) {
	switch config.Type {
	case SQLiteBackend:
		store, err := storage.NewSQLiteStore(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		f.logger.Info("Opened SQLite store", "db_path", config.SQLiteDBPath)
		return store, nil
	case MemoryBackend:
		f.logger.Info("Using in-memory store")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// openPublisher dials the broker when one is configured. A broker that cannot
// be reached degrades to logging events rather than failing startup.
func (f *DefaultFactory) openPublisher(ctx context.Context, config Config) services.EventPublisher {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, "")
	if err != nil {
		f.logger.WarnContext(ctx, "Failed to initialize AMQP client, events will only be logged",
			log.FieldError, err.Error(), log.FieldErrorType, log.ErrorTypeNetwork)
		return nil
	}
	f.logger.InfoContext(ctx, "Initialized AMQP client", "exchange", config.AMQPExchange)
	return client
}
