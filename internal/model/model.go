// Package model holds the records the engine reads and writes.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"recurpay/internal/ledger"
	"recurpay/internal/recurrence"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
)

func (s Status) Known() bool {
	switch s {
	case StatusActive, StatusPaused, StatusCancelled:
		return true
	}
	return false
}

// PaymentTemplate is what every occurrence of a definition is built from.
// Category and Subcategory are dictionary names, resolved to ids per occurrence.
type PaymentTemplate struct {
	AccountID              uuid.NullUUID    `json:"account_id"`
	Operation              ledger.Operation `json:"operation"`
	Amount                 decimal.Decimal  `json:"amount"`
	Commission             decimal.Decimal  `json:"commission"`
	Category               string           `json:"category,omitempty"`
	Subcategory            string           `json:"subcategory,omitempty"`
	Counterparty           string           `json:"counterparty,omitempty"`
	CounterpartyRequisites string           `json:"counterparty_requisites,omitempty"`
	LinkedOrderID          uuid.NullUUID    `json:"linked_order_id"`
}

// Definition is a recurring payment. An active definition always has NextOccurrenceAt.
type Definition struct {
	ID       uuid.UUID       `json:"id"`
	Status   Status          `json:"status"`
	Rule     recurrence.Rule `json:"rule"`
	Template PaymentTemplate `json:"template"`

	LastOccurrenceAt *time.Time `json:"last_occurrence_at,omitempty"`
	NextOccurrenceAt *time.Time `json:"next_occurrence_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Due reports whether the definition should be processed at now.
func (d Definition) Due(now time.Time) bool {
	return d.Status == StatusActive && d.NextOccurrenceAt != nil && !d.NextOccurrenceAt.After(now)
}

// Occurrence is one materialized payment. It is written once and never changed.
type Occurrence struct {
	ID                     uuid.UUID        `json:"id"`
	DefinitionID           uuid.NullUUID    `json:"definition_id"`
	Date                   time.Time        `json:"date"`
	AccountID              uuid.UUID        `json:"account_id"`
	Operation              ledger.Operation `json:"operation"`
	Amount                 decimal.Decimal  `json:"amount"`
	Commission             decimal.Decimal  `json:"commission"`
	CategoryID             uuid.NullUUID    `json:"category_id"`
	SubcategoryID          uuid.NullUUID    `json:"subcategory_id"`
	Counterparty           string           `json:"counterparty,omitempty"`
	CounterpartyRequisites string           `json:"counterparty_requisites,omitempty"`
	LinkedOrderID          uuid.NullUUID    `json:"linked_order_id"`
	CreatedAt              time.Time        `json:"created_at"`
}

type Account struct {
	ID                 uuid.UUID       `json:"id"`
	Name               string          `json:"name"`
	Balance            decimal.Decimal `json:"balance"`
	TurnoverIncoming   decimal.Decimal `json:"turnover_incoming"`
	TurnoverOutgoing   decimal.Decimal `json:"turnover_outgoing"`
	TurnoverEndBalance decimal.Decimal `json:"turnover_end_balance"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (a Account) Totals() ledger.Totals {
	return ledger.Totals{
		Balance:            a.Balance,
		TurnoverIncoming:   a.TurnoverIncoming,
		TurnoverOutgoing:   a.TurnoverOutgoing,
		TurnoverEndBalance: a.TurnoverEndBalance,
	}
}

// Run is one scheduler tick as recorded in the run log.
type Run struct {
	ID      int64     `json:"id"`
	At      time.Time `json:"at"`
	Trigger string    `json:"trigger"`
	Due     int       `json:"due"`
	Applied int       `json:"applied"`
	Skipped int       `json:"skipped"`
	Failed  int       `json:"failed"`
	Error   string    `json:"error,omitempty"`
	Took    int64     `json:"took_ms"`
}
