package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"recurpay/internal/model"
	"recurpay/internal/recurring"
	logx "recurpay/pkg/logx"
)

var (
	_ recurring.Store = (*DB)(nil)
	_ recurring.Tx    = (*sqlTx)(nil)
)

// DB implements recurring.Store.
type DB struct {
	db  *sql.DB
	d   dialect
	log logx.Logger
}

func (s *DB) Driver() string { return s.d.name }

func (s *DB) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *DB) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *DB) q(query string) string { return s.d.rebind(query) }

// InTx runs fn in a transaction; fn's error (or panic) rolls it back.
func (s *DB) InTx(ctx context.Context, fn func(tx recurring.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&sqlTx{tx: tx, d: s.d}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *DB) ListDue(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id FROM recurring_definitions
		WHERE status = ? AND next_occurrence_at IS NOT NULL AND next_occurrence_at <= ?
		ORDER BY next_occurrence_at ASC, id ASC`),
		string(model.StatusActive), millis(now),
	)
	if err != nil {
		return nil, fmt.Errorf("list due: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *DB) ListDefinitions(ctx context.Context, f recurring.Filter) ([]model.Definition, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.AccountID.Valid {
		where = append(where, "account_id = ?")
		args = append(args, f.AccountID.UUID)
	}
	query := `SELECT ` + definitionCols + ` FROM recurring_definitions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`
	args = append(args, limitOrDefault(f.Limit, 100, 1000), max(f.Offset, 0))

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}
	defer rows.Close()

	var out []model.Definition
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *DB) ListOccurrences(ctx context.Context, definitionID uuid.UUID, limit int) ([]model.Occurrence, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT `+occurrenceCols+` FROM occurrences
		WHERE definition_id = ? ORDER BY date DESC LIMIT ?`),
		definitionID, limitOrDefault(limit, 50, 1000),
	)
	if err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	defer rows.Close()

	var out []model.Occurrence
	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// GetAccount reads an account outside any transaction.
func (s *DB) GetAccount(ctx context.Context, id uuid.UUID) (model.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx, s.q(`SELECT `+accountCols+` FROM accounts WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return a, err
}

func limitOrDefault(n, def, hi int) int {
	if n <= 0 {
		return def
	}
	return min(n, hi)
}
