package recurring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"recurpay/internal/ledger"
	"recurpay/internal/model"
	"recurpay/internal/recurrence"
	"recurpay/internal/recurring"
)

func newInput(account uuid.UUID) recurring.NewDefinition {
	return recurring.NewDefinition{
		Rule: recurrence.Rule{Period: recurrence.Weekly, Weekday: 1, At: recurrence.TimeOfDay{Hour: 9}},
		Template: recurring.TemplateInput{
			AccountID:    uuid.NullUUID{UUID: account, Valid: true},
			Operation:    ledger.Withdraw,
			Amount:       decimalPtr("250"),
			Commission:   decimal.RequireFromString("2.5"),
			Counterparty: "Cleaning Co",
		},
	}
}

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestCreateDefinition(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openStore(t)
	svc := recurring.NewDefinitions(db, testOptions())

	def, err := svc.Create(ctx, newInput(uuid.New()))
	require.NoError(t, err)
	require.Equal(t, model.StatusActive, def.Status)
	require.Nil(t, def.LastOccurrenceAt)
	// testNow is Friday 2024-05-10; the next Monday 09:00.
	require.Equal(t, time.Date(2024, 5, 13, 9, 0, 0, 0, time.UTC), *def.NextOccurrenceAt)

	got, err := svc.Get(ctx, def.ID)
	require.NoError(t, err)
	require.Equal(t, def.ID, got.ID)
	require.True(t, def.NextOccurrenceAt.Equal(*got.NextOccurrenceAt))
}

func TestCreateDefinitionValidation(t *testing.T) {
	t.Parallel()
	db := openStore(t)
	svc := recurring.NewDefinitions(db, testOptions())

	tests := []struct {
		name  string
		edit  func(*recurring.NewDefinition)
		field string
	}{
		{name: "missing account", edit: func(in *recurring.NewDefinition) { in.Template.AccountID = uuid.NullUUID{} }, field: "account_id"},
		{name: "negative amount", edit: func(in *recurring.NewDefinition) { in.Template.Amount = decimalPtr("-1") }, field: "amount"},
		{name: "missing amount", edit: func(in *recurring.NewDefinition) { in.Template.Amount = nil }, field: "amount"},
		{name: "negative commission", edit: func(in *recurring.NewDefinition) { in.Template.Commission = decimal.NewFromInt(-1) }, field: "commission"},
		{name: "unknown operation", edit: func(in *recurring.NewDefinition) { in.Template.Operation = "transfer" }, field: "operation"},
		{name: "unknown status", edit: func(in *recurring.NewDefinition) { in.Status = "archived" }, field: "status"},
		{name: "bad weekday", edit: func(in *recurring.NewDefinition) { in.Rule.Weekday = 7 }, field: "rule.weekday"},
		{name: "unknown period", edit: func(in *recurring.NewDefinition) { in.Rule.Period = "hourly" }, field: "rule.period"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			in := newInput(uuid.New())
			tt.edit(&in)
			_, err := svc.Create(context.Background(), in)
			var ve *recurring.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			require.Equal(t, tt.field, ve.Field)
		})
	}

	defs, err := db.ListDefinitions(context.Background(), recurring.Filter{})
	require.NoError(t, err)
	require.Empty(t, defs)
}

func TestUpdateScheduleChangeRecomputesFromNow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openStore(t)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := created
	opts := testOptions()
	opts.Clock = func() time.Time { return now }
	svc := recurring.NewDefinitions(db, opts)

	def, err := svc.Create(ctx, newInput(uuid.New()))
	require.NoError(t, err)

	now = testNow
	period, day := recurrence.Monthly, 20
	got, err := svc.Update(ctx, def.ID, recurring.Patch{Period: &period, DayOfMonth: &day})
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC), *got.NextOccurrenceAt)
	require.Equal(t, def.Template.Counterparty, got.Template.Counterparty, "untouched fields keep previous values")
}

func TestUpdateTemplateKeepsSchedule(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openStore(t)
	svc := recurring.NewDefinitions(db, testOptions())
	def, err := svc.Create(ctx, newInput(uuid.New()))
	require.NoError(t, err)

	amount := decimal.RequireFromString("300")
	cp := "New Cleaning Co"
	got, err := svc.Update(ctx, def.ID, recurring.Patch{Amount: &amount, Counterparty: &cp})
	require.NoError(t, err)
	require.True(t, def.NextOccurrenceAt.Equal(*got.NextOccurrenceAt))
	require.Equal(t, "300", got.Template.Amount.String())
	require.Equal(t, "2.5", got.Template.Commission.String())

	stored := loadDefinition(t, db, def.ID)
	require.Equal(t, "New Cleaning Co", stored.Template.Counterparty)
}

func TestUpdateValidationLeavesRowUntouched(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openStore(t)
	svc := recurring.NewDefinitions(db, testOptions())
	def, err := svc.Create(ctx, newInput(uuid.New()))
	require.NoError(t, err)

	neg := decimal.NewFromInt(-5)
	_, err = svc.Update(ctx, def.ID, recurring.Patch{Commission: &neg})
	require.True(t, recurring.IsValidation(err))

	stored := loadDefinition(t, db, def.ID)
	require.Equal(t, "2.5", stored.Template.Commission.String())
}

func TestUpdateNotFound(t *testing.T) {
	t.Parallel()
	db := openStore(t)
	svc := recurring.NewDefinitions(db, testOptions())
	_, err := svc.Update(context.Background(), uuid.New(), recurring.Patch{})
	require.ErrorIs(t, err, recurring.ErrNotFound)
}

func TestReactivateWithoutNextSchedulesFromNow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openStore(t)
	acct := seedAccount(t, db, "0")
	def := seedDue(t, db, acct, ledger.Deposit, "1", "0", testNow)
	def.Status = model.StatusPaused
	def.NextOccurrenceAt = nil
	updateRaw(t, db, def)

	active := model.StatusActive
	got, err := recurring.NewDefinitions(db, testOptions()).Update(ctx, def.ID, recurring.Patch{Status: &active})
	require.NoError(t, err)
	require.NotNil(t, got.NextOccurrenceAt)
	require.True(t, got.NextOccurrenceAt.After(testNow))
}

func TestRuleChangeWhilePausedReschedules(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openStore(t)
	svc := recurring.NewDefinitions(db, testOptions())

	in := newInput(uuid.New())
	in.Rule = recurrence.Rule{Period: recurrence.Monthly, DayOfMonth: 20, At: recurrence.TimeOfDay{Hour: 9}}
	def, err := svc.Create(ctx, in)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC), *def.NextOccurrenceAt)

	paused, active := model.StatusPaused, model.StatusActive
	_, err = svc.Update(ctx, def.ID, recurring.Patch{Status: &paused})
	require.NoError(t, err)

	weekly, monday := recurrence.Weekly, 1
	got, err := svc.Update(ctx, def.ID, recurring.Patch{Period: &weekly, Weekday: &monday})
	require.NoError(t, err)
	require.Equal(t, model.StatusPaused, got.Status)
	require.Equal(t, time.Date(2024, 5, 13, 9, 0, 0, 0, time.UTC), *got.NextOccurrenceAt)

	got, err = svc.Update(ctx, def.ID, recurring.Patch{Status: &active})
	require.NoError(t, err)
	require.Equal(t, recurrence.Next(got.Rule, testNow), *got.NextOccurrenceAt)
	require.True(t, loadDefinition(t, db, def.ID).NextOccurrenceAt.Equal(time.Date(2024, 5, 13, 9, 0, 0, 0, time.UTC)))
}

func TestDuplicateDefinition(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openStore(t)
	acct := seedAccount(t, db, "0")
	src := seedDue(t, db, acct, ledger.Deposit, "7", "1", testNow.Add(-time.Hour))
	_, err := recurring.NewProcessor(db, testOptions()).Process(ctx, src.ID, testNow)
	require.NoError(t, err)
	src = loadDefinition(t, db, src.ID)
	require.NotNil(t, src.LastOccurrenceAt)

	dup, err := recurring.NewDefinitions(db, testOptions()).Duplicate(ctx, src.ID)
	require.NoError(t, err)
	require.NotEqual(t, src.ID, dup.ID)
	require.Equal(t, src.Rule, dup.Rule)
	require.Equal(t, src.Template.AccountID, dup.Template.AccountID)
	require.True(t, src.Template.Amount.Equal(dup.Template.Amount))
	require.Nil(t, dup.LastOccurrenceAt)
	require.Equal(t, recurrence.Next(src.Rule, testNow), *dup.NextOccurrenceAt)

	occs, err := recurring.NewDefinitions(db, testOptions()).Occurrences(ctx, dup.ID, 10)
	require.NoError(t, err)
	require.Empty(t, occs)

	_, err = recurring.NewDefinitions(db, testOptions()).Duplicate(ctx, uuid.New())
	require.ErrorIs(t, err, recurring.ErrNotFound)
}

func TestListDefinitionsFilter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openStore(t)
	svc := recurring.NewDefinitions(db, testOptions())
	a, b := uuid.New(), uuid.New()
	_, err := svc.Create(ctx, newInput(a))
	require.NoError(t, err)
	in := newInput(b)
	in.Status = model.StatusPaused
	_, err = svc.Create(ctx, in)
	require.NoError(t, err)

	all, err := svc.List(ctx, recurring.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	paused, err := svc.List(ctx, recurring.Filter{Status: model.StatusPaused})
	require.NoError(t, err)
	require.Len(t, paused, 1)
	require.Equal(t, b, paused[0].Template.AccountID.UUID)

	byAcct, err := svc.List(ctx, recurring.Filter{AccountID: uuid.NullUUID{UUID: a, Valid: true}})
	require.NoError(t, err)
	require.Len(t, byAcct, 1)
}
