package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cardbudget/internal/amqp"
	"cardbudget/internal/cache"
	"cardbudget/internal/core"
	"cardbudget/internal/services"
	"cardbudget/internal/storage"
	"cardbudget/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
	// openStore is swapped in tests.
	openStore func(ctx context.Context, config Config) (storage.Store, error)
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger, openStore: openStore}
}

// CreateBackend opens the store, connects the optional event client and
// builds every service over them.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.openStore(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s store: %w", config.Type, err)
	}

	// AMQP is optional: the API keeps working without events.
	var events *amqp.Client
	if config.AMQPURL != "" {
		events, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without budget events", "error", err)
			events = nil
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	cycles := newCycleCache(config)
	caches := cache.NewManager(f.logger)
	caches.Register(cycles)
	caches.StartCleanup(context.Background(), cacheSweepInterval)

	result := &BackendResult{
		Store:    store,
		Events:   events,
		Services: buildServices(config, store, events, cycles),
		Cleanup:  cleanup(store, events, caches),
	}

	f.logger.Info("Initialized backend",
		"type", config.Type.String(),
		"amqp_enabled", events != nil,
		"tie_threshold", config.TieThreshold.String())
	return result, nil
}

func openStore(ctx context.Context, config Config) (storage.Store, error) {
	switch config.Type {
	case MemoryBackend:
		return memory.NewStore(), nil
	case SQLiteBackend:
		return storage.OpenSQLite(config.SQLiteDBPath)
	case PostgresBackend:
		return storage.OpenPostgres(ctx, config.DatabaseURL)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

const cacheSweepInterval = 10 * time.Minute

func newCycleCache(config Config) *cache.LRUCache[core.Cycle] {
	size, ttl := config.CycleCacheSize, config.CycleCacheTTL
	if size <= 0 {
		size = 1000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return cache.NewLRUCache[core.Cycle](size, ttl)
}

func buildServices(config Config, store storage.Store, events *amqp.Client, cycles cache.Cache[core.Cycle]) Services {
	threshold := config.TieThreshold
	deps := services.Deps{
		Store:        store,
		Predictor:    services.NewCyclePredictor(cycles),
		TieThreshold: &threshold,
	}
	// A nil *amqp.Client must not become a non-nil interface.
	if events != nil {
		deps.Events = events
	}

	return Services{
		Budgets:    services.NewBudgetService(deps),
		CashOut:    services.NewCashOutService(deps),
		Recurrence: services.NewRecurrenceService(deps),
		Cards:      services.NewCardService(deps),
		Loans:      services.NewLoanService(deps),
	}
}

// cleanup stops the cache sweeper, then closes the event client before the
// store, and reports every failure.
func cleanup(store storage.Store, events *amqp.Client, caches *cache.Manager) CleanupFunc {
	var once sync.Once
	return func() error {
		once.Do(caches.Stop)
		var errs []error
		if events != nil {
			if err := events.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close AMQP client: %w", err))
			}
		}
		if err := store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
		return errors.Join(errs...)
	}
}
