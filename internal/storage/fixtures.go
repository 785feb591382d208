package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Test helpers. Nothing in the engine, the admin API or cmd calls these;
// package tests elsewhere in the module use them to arrange and inspect rows.

func (s *DB) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, s.q(`DELETE FROM accounts WHERE id = ?`), id)
	return err
}

func (s *DB) InsertOrder(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO orders(id, created_at) VALUES(?,?)`), id, millis(time.Now()))
	return err
}

// CountOccurrences counts occurrences of one definition.
func (s *DB) CountOccurrences(ctx context.Context, definitionID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM occurrences WHERE definition_id = ?`), definitionID).Scan(&n)
	return n, err
}
