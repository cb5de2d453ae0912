package stockdb

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/fd1az/craftcalc/internal/apperror"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS bank_stock (
	profile_id TEXT NOT NULL,
	item_id INTEGER NOT NULL,
	quantity INTEGER NOT NULL CHECK (quantity >= 0),
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (profile_id, item_id)
)`

// SQLiteStore keeps stock in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens dsn (a path or file: URI) and migrates it.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("sqlite dsn"))
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, unavailable(err)
	}
	// :memory: databases exist per connection.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the bank_stock table.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *SQLiteStore) FetchOwnedQuantities(ctx context.Context, profileID string, itemIDs []int) (map[int]int, error) {
	owned := make(map[int]int, len(itemIDs))
	if profileID == "" || len(itemIDs) == 0 {
		return owned, nil
	}

	args := make([]any, 0, len(itemIDs)+1)
	args = append(args, profileID)
	for _, id := range itemIDs {
		args = append(args, id)
	}
	query := `SELECT item_id, quantity FROM bank_stock WHERE profile_id = ? AND item_id IN (?` +
		strings.Repeat(",?", len(itemIDs)-1) + `)`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	for rows.Next() {
		var itemID, qty int
		if err := rows.Scan(&itemID, &qty); err != nil {
			return nil, unavailable(err)
		}
		owned[itemID] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return owned, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, profileID string, itemID, quantity int) error {
	if err := validateUpsert(profileID, itemID, quantity); err != nil {
		return err
	}

	var err error
	if quantity == 0 {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM bank_stock WHERE profile_id = ? AND item_id = ?`, profileID, itemID)
	} else {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO bank_stock (profile_id, item_id, quantity) VALUES (?, ?, ?)
			ON CONFLICT (profile_id, item_id)
			DO UPDATE SET quantity = excluded.quantity, updated_at = CURRENT_TIMESTAMP`,
			profileID, itemID, quantity)
	}
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
