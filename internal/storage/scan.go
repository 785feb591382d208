package storage

import (
	"database/sql"
	"time"

	"recurpay/internal/ledger"
	"recurpay/internal/model"
	"recurpay/internal/recurrence"
)

const definitionCols = `id, status, period, weekday, day_of_month, month, at_minute,
	account_id, operation, amount, commission, category, subcategory, counterparty,
	counterparty_requisites, linked_order_id, last_occurrence_at, next_occurrence_at,
	created_at, updated_at`

const occurrenceCols = `id, definition_id, date, account_id, operation, amount, commission,
	category_id, subcategory_id, counterparty, counterparty_requisites, linked_order_id, created_at`

const accountCols = `id, name, balance, turnover_incoming, turnover_outgoing, turnover_end_balance, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func definitionArgs(d model.Definition) []any {
	t := d.Template
	return []any{
		d.ID, string(d.Status), string(d.Rule.Period), d.Rule.Weekday, d.Rule.DayOfMonth, d.Rule.Month,
		d.Rule.At.Hour*60 + d.Rule.At.Minute,
		t.AccountID, string(t.Operation), t.Amount, t.Commission, t.Category, t.Subcategory, t.Counterparty,
		t.CounterpartyRequisites, t.LinkedOrderID, nullMillis(d.LastOccurrenceAt), nullMillis(d.NextOccurrenceAt),
		millis(d.CreatedAt), millis(d.UpdatedAt),
	}
}

func scanDefinition(r rowScanner) (model.Definition, error) {
	var (
		d                model.Definition
		status, period   string
		op               string
		atMinute         int
		last, next       sql.NullInt64
		created, updated int64
	)
	err := r.Scan(
		&d.ID, &status, &period, &d.Rule.Weekday, &d.Rule.DayOfMonth, &d.Rule.Month, &atMinute,
		&d.Template.AccountID, &op, &d.Template.Amount, &d.Template.Commission,
		&d.Template.Category, &d.Template.Subcategory, &d.Template.Counterparty,
		&d.Template.CounterpartyRequisites, &d.Template.LinkedOrderID, &last, &next,
		&created, &updated,
	)
	if err != nil {
		return model.Definition{}, err
	}
	d.Status = model.Status(status)
	d.Rule.Period = recurrence.Period(period)
	d.Rule.At = recurrence.TimeOfDay{Hour: atMinute / 60, Minute: atMinute % 60}
	d.Template.Operation = ledger.Operation(op)
	d.LastOccurrenceAt = timePtr(last)
	d.NextOccurrenceAt = timePtr(next)
	d.CreatedAt = fromMillis(created)
	d.UpdatedAt = fromMillis(updated)
	return d, nil
}

func scanOccurrence(r rowScanner) (model.Occurrence, error) {
	var (
		o             model.Occurrence
		op            string
		date, created int64
	)
	err := r.Scan(
		&o.ID, &o.DefinitionID, &date, &o.AccountID, &op, &o.Amount, &o.Commission,
		&o.CategoryID, &o.SubcategoryID, &o.Counterparty, &o.CounterpartyRequisites,
		&o.LinkedOrderID, &created,
	)
	if err != nil {
		return model.Occurrence{}, err
	}
	o.Operation = ledger.Operation(op)
	o.Date = fromMillis(date)
	o.CreatedAt = fromMillis(created)
	return o, nil
}

func scanAccount(r rowScanner) (model.Account, error) {
	var (
		a       model.Account
		updated int64
	)
	if err := r.Scan(&a.ID, &a.Name, &a.Balance, &a.TurnoverIncoming, &a.TurnoverOutgoing, &a.TurnoverEndBalance, &updated); err != nil {
		return model.Account{}, err
	}
	a.UpdatedAt = fromMillis(updated)
	return a, nil
}
