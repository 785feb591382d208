package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"recurpay/internal/model"
)

// AppendRun records one scheduler tick. Compact and schema-stable.
func (s *DB) AppendRun(ctx context.Context, r model.Run) error {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO runs(at, source, due, applied, skipped, failed, err, took_ms)
		VALUES(?,?,?,?,?,?,?,?)`),
		millis(r.At), r.Trigger, r.Due, r.Applied, r.Skipped, r.Failed, nullStr(r.Error), r.Took,
	)
	if err != nil {
		return fmt.Errorf("append run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (s *DB) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT id, at, source, due, applied, skipped, failed, err, took_ms
		FROM runs ORDER BY id DESC LIMIT ?`), limitOrDefault(limit, 20, 500))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []model.Run
	for rows.Next() {
		var (
			r   model.Run
			at  int64
			msg sql.NullString
		)
		if err := rows.Scan(&r.ID, &at, &r.Trigger, &r.Due, &r.Applied, &r.Skipped, &r.Failed, &msg, &r.Took); err != nil {
			return nil, err
		}
		r.At = fromMillis(at)
		r.Error = msg.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// PruneRuns keeps the newest keep rows. keep <= 0 keeps everything.
func (s *DB) PruneRuns(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM runs WHERE id NOT IN (
		SELECT id FROM runs ORDER BY id DESC LIMIT ?)`), keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
