package recurring

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"recurpay/internal/ledger"
	"recurpay/internal/model"
	"recurpay/internal/recurrence"
)

// Patch is a partial update of a definition. Nil fields keep the previous value.
type Patch struct {
	Status *model.Status `json:"status,omitempty"`

	Period     *recurrence.Period    `json:"period,omitempty"`
	Weekday    *int                  `json:"weekday,omitempty"`
	DayOfMonth *int                  `json:"day_of_month,omitempty"`
	Month      *int                  `json:"month,omitempty"`
	At         *recurrence.TimeOfDay `json:"at,omitempty"`

	AccountID              *uuid.UUID        `json:"account_id,omitempty"`
	Operation              *ledger.Operation `json:"operation,omitempty"`
	Amount                 *decimal.Decimal  `json:"amount,omitempty"`
	Commission             *decimal.Decimal  `json:"commission,omitempty"`
	Category               *string           `json:"category,omitempty"`
	Subcategory            *string           `json:"subcategory,omitempty"`
	Counterparty           *string           `json:"counterparty,omitempty"`
	CounterpartyRequisites *string           `json:"counterparty_requisites,omitempty"`
	LinkedOrderID          *uuid.UUID        `json:"linked_order_id,omitempty"`
	ClearLinkedOrder       bool              `json:"clear_linked_order,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p == Patch{}
}

// Merge applies p over prev: explicit patch values win, then previous values,
// then defaults. It does not touch timestamps or the schedule instants.
func (p Patch) Merge(prev model.Definition) model.Definition {
	out := prev

	setIf(&out.Status, p.Status)

	setIf(&out.Rule.Period, p.Period)
	setIf(&out.Rule.Weekday, p.Weekday)
	setIf(&out.Rule.DayOfMonth, p.DayOfMonth)
	setIf(&out.Rule.Month, p.Month)
	setIf(&out.Rule.At, p.At)

	t := &out.Template
	if p.AccountID != nil {
		t.AccountID = uuid.NullUUID{UUID: *p.AccountID, Valid: true}
	}
	setIf(&t.Operation, p.Operation)
	setIf(&t.Amount, p.Amount)
	setIf(&t.Commission, p.Commission)
	setIf(&t.Category, p.Category)
	setIf(&t.Subcategory, p.Subcategory)
	setIf(&t.Counterparty, p.Counterparty)
	setIf(&t.CounterpartyRequisites, p.CounterpartyRequisites)
	switch {
	case p.ClearLinkedOrder:
		t.LinkedOrderID = uuid.NullUUID{}
	case p.LinkedOrderID != nil:
		t.LinkedOrderID = uuid.NullUUID{UUID: *p.LinkedOrderID, Valid: true}
	}

	return applyDefaults(out)
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func applyDefaults(d model.Definition) model.Definition {
	if d.Status == "" {
		d.Status = model.StatusActive
	}
	return d
}
