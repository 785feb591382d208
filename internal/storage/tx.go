package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"recurpay/internal/ledger"
	"recurpay/internal/model"
)

type sqlTx struct {
	tx *sql.Tx
	d  dialect
}

func (t *sqlTx) q(query string) string { return t.d.rebind(query) }

func (t *sqlTx) GetDefinition(ctx context.Context, id uuid.UUID) (model.Definition, error) {
	row := t.tx.QueryRowContext(ctx, t.q(`SELECT `+definitionCols+` FROM recurring_definitions WHERE id = ?`+t.d.forUpdate), id)
	d, err := scanDefinition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Definition{}, fmt.Errorf("definition %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Definition{}, fmt.Errorf("get definition %s: %w", id, err)
	}
	return d, nil
}

func (t *sqlTx) InsertDefinition(ctx context.Context, d model.Definition) error {
	_, err := t.tx.ExecContext(ctx, t.q(`INSERT INTO recurring_definitions(`+definitionCols+`)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`), definitionArgs(d)...)
	return err
}

func (t *sqlTx) UpdateDefinition(ctx context.Context, d model.Definition) error {
	args := definitionArgs(d)
	// Move id from the front to the WHERE clause.
	args = append(args[1:], args[0])
	res, err := t.tx.ExecContext(ctx, t.q(`UPDATE recurring_definitions SET
		status = ?, period = ?, weekday = ?, day_of_month = ?, month = ?, at_minute = ?,
		account_id = ?, operation = ?, amount = ?, commission = ?, category = ?, subcategory = ?,
		counterparty = ?, counterparty_requisites = ?, linked_order_id = ?,
		last_occurrence_at = ?, next_occurrence_at = ?, created_at = ?, updated_at = ?
		WHERE id = ?`), args...)
	if err != nil {
		return err
	}
	return expectOne(res, "definition", d.ID)
}

func (t *sqlTx) AdvanceSchedule(ctx context.Context, id uuid.UUID, observedNext, last, next time.Time) (bool, error) {
	res, err := t.tx.ExecContext(ctx, t.q(`UPDATE recurring_definitions
		SET last_occurrence_at = ?, next_occurrence_at = ?, updated_at = ?
		WHERE id = ? AND next_occurrence_at = ?`),
		millis(last), millis(next), millis(time.Now()), id, millis(observedNext),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (t *sqlTx) CreateOccurrence(ctx context.Context, o model.Occurrence) error {
	_, err := t.tx.ExecContext(ctx, t.q(`INSERT INTO occurrences(`+occurrenceCols+`)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`),
		o.ID, o.DefinitionID, millis(o.Date), o.AccountID, string(o.Operation), o.Amount, o.Commission,
		o.CategoryID, o.SubcategoryID, o.Counterparty, o.CounterpartyRequisites, o.LinkedOrderID,
		millis(o.CreatedAt),
	)
	return err
}

func (t *sqlTx) GetAccount(ctx context.Context, id uuid.UUID) (model.Account, error) {
	a, err := scanAccount(t.tx.QueryRowContext(ctx, t.q(`SELECT `+accountCols+` FROM accounts WHERE id = ?`+t.d.forUpdate), id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("get account %s: %w", id, err)
	}
	return a, nil
}

// ApplyBalanceEffect is a read-modify-write under the transaction's row lock.
func (t *sqlTx) ApplyBalanceEffect(ctx context.Context, accountID uuid.UUID, e ledger.Effect) (model.Account, error) {
	a, err := t.GetAccount(ctx, accountID)
	if err != nil {
		return model.Account{}, err
	}
	after := a.Totals().Apply(e)
	a.Balance = after.Balance
	a.TurnoverIncoming = after.TurnoverIncoming
	a.TurnoverOutgoing = after.TurnoverOutgoing
	a.TurnoverEndBalance = after.TurnoverEndBalance
	a.UpdatedAt = time.Now().UTC()

	res, err := t.tx.ExecContext(ctx, t.q(`UPDATE accounts SET
		balance = ?, turnover_incoming = ?, turnover_outgoing = ?, turnover_end_balance = ?, updated_at = ?
		WHERE id = ?`),
		a.Balance, a.TurnoverIncoming, a.TurnoverOutgoing, a.TurnoverEndBalance, millis(a.UpdatedAt), accountID,
	)
	if err != nil {
		return model.Account{}, err
	}
	if err := expectOne(res, "account", accountID); err != nil {
		return model.Account{}, err
	}
	return a, nil
}

func (t *sqlTx) FindCategoryByName(ctx context.Context, name string) (uuid.NullUUID, error) {
	return t.lookupID(ctx, `SELECT id FROM categories WHERE name = ?`, name)
}

func (t *sqlTx) FindSubcategoryByName(ctx context.Context, name string) (uuid.NullUUID, error) {
	return t.lookupID(ctx, `SELECT id FROM subcategories WHERE name = ? ORDER BY id LIMIT 1`, name)
}

func (t *sqlTx) OrderExists(ctx context.Context, id uuid.UUID) (bool, error) {
	got, err := t.lookupID(ctx, `SELECT id FROM orders WHERE id = ?`, id)
	return got.Valid, err
}

func (t *sqlTx) lookupID(ctx context.Context, query string, arg any) (uuid.NullUUID, error) {
	var id uuid.NullUUID
	err := t.tx.QueryRowContext(ctx, t.q(query), arg).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.NullUUID{}, nil
	}
	return id, err
}

func expectOne(res sql.Result, what string, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return nil
}
