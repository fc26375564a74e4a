package backend

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"cardbudget/internal/amqp"
	"cardbudget/internal/services"
	"cardbudget/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Services groups the services built over one store.
type Services struct {
	Budgets    *services.BudgetService
	CashOut    *services.CashOutService
	Recurrence *services.RecurrenceService
	Cards      *services.CardService
	Loans      *services.LoanService
}

// BackendResult contains the store, the services wired to it and the
// function that releases both the store and the event client.
type BackendResult struct {
	Store    storage.Store
	Events   *amqp.Client
	Services Services
	Cleanup  CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	DatabaseURL  string

	// AMQP is optional; without a URL no events are published.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	CycleCacheSize int
	CycleCacheTTL  time.Duration
	TieThreshold   decimal.Decimal
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
