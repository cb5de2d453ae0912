package stockdb

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fd1az/craftcalc/internal/apperror"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS bank_stock (
	profile_id TEXT NOT NULL,
	item_id INTEGER NOT NULL,
	quantity INTEGER NOT NULL CHECK (quantity >= 0),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (profile_id, item_id)
)`

// PostgresStore keeps stock in Postgres behind a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn, pings and migrates.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("postgres dsn"))
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithCause(err),
			apperror.WithContext("postgres dsn"))
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, unavailable(err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the bank_stock table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *PostgresStore) FetchOwnedQuantities(ctx context.Context, profileID string, itemIDs []int) (map[int]int, error) {
	owned := make(map[int]int, len(itemIDs))
	if profileID == "" || len(itemIDs) == 0 {
		return owned, nil
	}

	ids := make([]int32, len(itemIDs))
	for i, id := range itemIDs {
		ids[i] = int32(id)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT item_id, quantity
		FROM bank_stock
		WHERE profile_id = $1 AND item_id = ANY($2)
	`, profileID, ids)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	for rows.Next() {
		var itemID, qty int32
		if err := rows.Scan(&itemID, &qty); err != nil {
			return nil, unavailable(err)
		}
		owned[int(itemID)] = int(qty)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return owned, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, profileID string, itemID, quantity int) error {
	if err := validateUpsert(profileID, itemID, quantity); err != nil {
		return err
	}

	var err error
	if quantity == 0 {
		_, err = s.pool.Exec(ctx,
			`DELETE FROM bank_stock WHERE profile_id = $1 AND item_id = $2`, profileID, itemID)
	} else {
		_, err = s.pool.Exec(ctx, `
			INSERT INTO bank_stock (profile_id, item_id, quantity) VALUES ($1, $2, $3)
			ON CONFLICT (profile_id, item_id)
			DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = now()
		`, profileID, itemID, quantity)
	}
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
