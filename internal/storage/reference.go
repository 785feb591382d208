package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"recurpay/internal/model"
)

// The engine only reads accounts and dictionaries. The admin API seeds them
// through these writers.

func (s *DB) InsertAccount(ctx context.Context, a model.Account) error {
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO accounts(`+accountCols+`) VALUES(?,?,?,?,?,?,?)`),
		a.ID, a.Name, a.Balance, a.TurnoverIncoming, a.TurnoverOutgoing, a.TurnoverEndBalance, millis(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *DB) InsertCategory(ctx context.Context, id uuid.UUID, name string) error {
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO categories(id, name) VALUES(?,?)`), id, name)
	return err
}

func (s *DB) InsertSubcategory(ctx context.Context, id uuid.UUID, categoryID uuid.NullUUID, name string) error {
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO subcategories(id, category_id, name) VALUES(?,?,?)`), id, categoryID, name)
	return err
}
