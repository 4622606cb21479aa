// Package ledger persists live positions to an embedded sqlite
// database. Only positions are durable; cash is re-derived from the
// capital split on restart.
package ledger

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/quantdesk/trading-engine/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS positions (
	strategy_id TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	quantity    INTEGER NOT NULL,
	updated_at  TIMESTAMP NOT NULL,
	PRIMARY KEY (strategy_id, symbol)
);`

// Store is a sqlite-backed position ledger.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (or creates) the ledger at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// SavePositions replaces the stored snapshot with the given one.
// Called after every settled fill.
func (s *Store) SavePositions(snaps []types.PositionSnapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning ledger tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM positions`); err != nil {
		return fmt.Errorf("clearing ledger: %w", err)
	}
	for _, snap := range snaps {
		_, err := tx.Exec(`
			INSERT INTO positions (strategy_id, symbol, quantity, updated_at)
			VALUES (?, ?, ?, ?)`,
			snap.StrategyID, snap.Symbol, snap.Quantity, snap.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting position %s/%s: %w", snap.StrategyID, snap.Symbol, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing ledger tx: %w", err)
	}
	return nil
}

// LoadPositions returns the stored snapshot, ordered by strategy then
// symbol.
func (s *Store) LoadPositions() ([]types.PositionSnapshot, error) {
	rows, err := s.db.Query(`
		SELECT strategy_id, symbol, quantity, updated_at
		FROM positions
		ORDER BY strategy_id, symbol`)
	if err != nil {
		return nil, fmt.Errorf("loading ledger: %w", err)
	}
	defer rows.Close()

	var out []types.PositionSnapshot
	for rows.Next() {
		var snap types.PositionSnapshot
		if err := rows.Scan(&snap.StrategyID, &snap.Symbol, &snap.Quantity, &snap.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning ledger row: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
