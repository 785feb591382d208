package recurring_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"recurpay/internal/ledger"
	"recurpay/internal/model"
	"recurpay/internal/recurrence"
	"recurpay/internal/recurring"
	"recurpay/internal/storage"
	logx "recurpay/pkg/logx"
)

var (
	testNow    = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	errFaulted = errors.New("dictionary unavailable")
)

func openStore(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(context.Background(), storage.Config{Path: filepath.Join(t.TempDir(), "recurpay.db")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testOptions() recurring.Options {
	return recurring.Options{
		Clock:    func() time.Time { return testNow },
		Location: func() *time.Location { return time.UTC },
	}
}

func seedAccount(t *testing.T, db *storage.DB, balance string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	b := decimal.RequireFromString(balance)
	require.NoError(t, db.InsertAccount(context.Background(), model.Account{
		ID:                 id,
		Name:               "acct-" + id.String()[:8],
		Balance:            b,
		TurnoverEndBalance: b,
	}))
	return id
}

// seedDue stores an active monthly definition due at next.
func seedDue(t *testing.T, db *storage.DB, account uuid.UUID, op ledger.Operation, amount, commission string, next time.Time) model.Definition {
	t.Helper()
	d := model.Definition{
		ID:     uuid.New(),
		Status: model.StatusActive,
		Rule:   recurrence.Rule{Period: recurrence.Monthly, DayOfMonth: next.Day(), At: recurrence.TimeOfDay{Hour: next.Hour(), Minute: next.Minute()}},
		Template: model.PaymentTemplate{
			AccountID:  uuid.NullUUID{UUID: account, Valid: account != uuid.Nil},
			Operation:  op,
			Amount:     decimal.RequireFromString(amount),
			Commission: decimal.RequireFromString(commission),
		},
		NextOccurrenceAt: &next,
		CreatedAt:        next.AddDate(0, -1, 0),
		UpdatedAt:        next.AddDate(0, -1, 0),
	}
	insertDefinition(t, db, d)
	return d
}

func insertDefinition(t *testing.T, db *storage.DB, d model.Definition) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.InTx(ctx, func(tx recurring.Tx) error { return tx.InsertDefinition(ctx, d) }))
}

func loadDefinition(t *testing.T, db *storage.DB, id uuid.UUID) model.Definition {
	t.Helper()
	ctx := context.Background()
	var d model.Definition
	require.NoError(t, db.InTx(ctx, func(tx recurring.Tx) error {
		var err error
		d, err = tx.GetDefinition(ctx, id)
		return err
	}))
	return d
}

func requireBalance(t *testing.T, db *storage.DB, id uuid.UUID, balance, in, out, end string) {
	t.Helper()
	a, err := db.GetAccount(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, balance, a.Balance.String(), "balance")
	require.Equal(t, in, a.TurnoverIncoming.String(), "turnover incoming")
	require.Equal(t, out, a.TurnoverOutgoing.String(), "turnover outgoing")
	require.Equal(t, end, a.TurnoverEndBalance.String(), "turnover end balance")
}

// faultyStore wraps every transaction so tests can inject failures.
type faultyStore struct {
	*storage.DB
	failCategory string
	loseRace     bool
}

func (s *faultyStore) InTx(ctx context.Context, fn func(tx recurring.Tx) error) error {
	return s.DB.InTx(ctx, func(tx recurring.Tx) error {
		return fn(&faultyTx{Tx: tx, store: s})
	})
}

type faultyTx struct {
	recurring.Tx
	store *faultyStore
}

func (t *faultyTx) FindCategoryByName(ctx context.Context, name string) (uuid.NullUUID, error) {
	if name == t.store.failCategory {
		return uuid.NullUUID{}, errFaulted
	}
	return t.Tx.FindCategoryByName(ctx, name)
}

func (t *faultyTx) AdvanceSchedule(ctx context.Context, id uuid.UUID, observedNext, last, next time.Time) (bool, error) {
	if t.store.loseRace {
		return false, nil
	}
	return t.Tx.AdvanceSchedule(ctx, id, observedNext, last, next)
}
