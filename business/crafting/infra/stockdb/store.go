// Package stockdb persists bank-stock quantities per profile and implements
// app.StockSource on SQLite or Postgres.
package stockdb

import (
	"context"
	"time"

	"github.com/fd1az/craftcalc/business/crafting/app"
	"github.com/fd1az/craftcalc/internal/apperror"
	"github.com/fd1az/craftcalc/internal/circuitbreaker"
)

// Drivers.
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store is a bank-stock store.
type Store interface {
	app.StockSource
	// Upsert sets the owned quantity of an item. Zero removes the row.
	Upsert(ctx context.Context, profileID string, itemID, quantity int) error
	Ping(ctx context.Context) error
	Close() error
}

// Open connects to driver and creates the schema. DriverNone yields a nil
// store and no error.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "", DriverNone:
		return nil, nil
	case DriverSQLite:
		s, err := OpenSQLite(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		s, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("stock driver "+driver))
	}
}

func validateUpsert(profileID string, itemID, quantity int) error {
	switch {
	case profileID == "":
		return apperror.Validation(apperror.CodeRequiredField, "profile id")
	case itemID <= 0:
		return apperror.Validation(apperror.CodeInvalidInput, "item id must be positive")
	case quantity < 0:
		return apperror.Validation(apperror.CodeInvalidInput, "quantity cannot be negative")
	}
	return nil
}

func unavailable(err error) error {
	return apperror.External(apperror.CodeStockStoreUnavailable, "bank stock", err)
}

// Guarded wraps a store so that a failing database trips a circuit breaker
// instead of being hit by every load.
type Guarded struct {
	Store
	breaker *circuitbreaker.CircuitBreaker[map[int]int]
}

// NewGuarded wraps s. threshold consecutive failures open the breaker for
// cooldown.
func NewGuarded(s Store, threshold uint32, cooldown time.Duration) *Guarded {
	cfg := circuitbreaker.DefaultConfig("stockdb")
	if threshold > 0 {
		cfg.FailureThreshold = threshold
	}
	if cooldown > 0 {
		cfg.Timeout = cooldown
	}
	return &Guarded{Store: s, breaker: circuitbreaker.New[map[int]int](cfg)}
}

func (g *Guarded) FetchOwnedQuantities(ctx context.Context, profileID string, itemIDs []int) (map[int]int, error) {
	return g.breaker.Execute(func() (map[int]int, error) {
		return g.Store.FetchOwnedQuantities(ctx, profileID, itemIDs)
	})
}

// BreakerState reports the breaker state for health checks.
func (g *Guarded) BreakerState() circuitbreaker.State {
	return g.breaker.State()
}
