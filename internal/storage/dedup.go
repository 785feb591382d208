package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PutDedup remembers an alert key until the given instant so restarts do not
// resend it.
func (s *DB) PutDedup(ctx context.Context, key string, until time.Time) error {
	if key == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO dedup(key, until) VALUES(?,?)
		ON CONFLICT(key) DO UPDATE SET until = excluded.until`), key, millis(until))
	return err
}

func (s *DB) GetDedup(ctx context.Context, key string) (time.Time, bool, error) {
	if key == "" {
		return time.Time{}, false, nil
	}
	var ms int64
	err := s.db.QueryRowContext(ctx, s.q(`SELECT until FROM dedup WHERE key = ?`), key).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return fromMillis(ms), true, nil
}

// PruneDedup drops keys that expired before now.
func (s *DB) PruneDedup(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM dedup WHERE until < ?`), millis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
