package recurring

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"recurpay/internal/ledger"
	"recurpay/internal/model"
	"recurpay/internal/recurrence"
)

func TestPatchMergePrecedence(t *testing.T) {
	t.Parallel()
	order := uuid.New()
	prev := model.Definition{
		ID:   uuid.New(),
		Rule: recurrence.Rule{Period: recurrence.Monthly, DayOfMonth: 5, At: recurrence.TimeOfDay{Hour: 8}},
		Template: model.PaymentTemplate{
			AccountID:     uuid.NullUUID{UUID: uuid.New(), Valid: true},
			Operation:     ledger.Deposit,
			Amount:        decimal.NewFromInt(10),
			Category:      "Salary",
			LinkedOrderID: uuid.NullUUID{UUID: order, Valid: true},
		},
	}

	empty := Patch{}
	if !empty.Empty() {
		t.Fatal("zero patch should be empty")
	}
	got := empty.Merge(prev)
	if got.Status != model.StatusActive {
		t.Fatalf("Status = %q, want default active", got.Status)
	}
	if got.Rule != prev.Rule || got.Template.Category != "Salary" || got.Template.LinkedOrderID != prev.Template.LinkedOrderID {
		t.Fatalf("empty patch changed fields: %+v", got)
	}

	paused := model.StatusPaused
	day := 28
	cat := ""
	op := ledger.Withdraw
	got = Patch{Status: &paused, DayOfMonth: &day, Category: &cat, Operation: &op, ClearLinkedOrder: true}.Merge(prev)
	if got.Status != model.StatusPaused {
		t.Fatalf("Status = %q, want paused", got.Status)
	}
	if got.Rule.DayOfMonth != 28 || got.Rule.Period != recurrence.Monthly || got.Rule.At.Hour != 8 {
		t.Fatalf("Rule = %+v", got.Rule)
	}
	if got.Template.Category != "" {
		t.Fatalf("explicit empty category should win, got %q", got.Template.Category)
	}
	if got.Template.Operation != ledger.Withdraw || !got.Template.Amount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("Template = %+v", got.Template)
	}
	if got.Template.LinkedOrderID.Valid {
		t.Fatal("linked order should be cleared")
	}
	if prev.Template.Category != "Salary" || !prev.Template.LinkedOrderID.Valid {
		t.Fatal("Merge must not mutate prev")
	}
}

func TestFromRuleError(t *testing.T) {
	t.Parallel()
	err := fromRuleError(recurrence.Validate(recurrence.Rule{Period: recurrence.Yearly, Month: 0, DayOfMonth: 1}))
	ve, ok := err.(*ValidationError)
	if !ok || ve.Field != "rule.month" {
		t.Fatalf("fromRuleError = %#v", err)
	}
}
