package recurring

import (
	"context"
	"time"

	"github.com/google/uuid"

	"recurpay/internal/ledger"
	"recurpay/internal/model"
)

// Store is the persistence the engine needs outside a transaction.
type Store interface {
	// ListDue returns ids of active definitions with next_occurrence_at <= now,
	// ordered by next_occurrence_at ascending.
	ListDue(ctx context.Context, now time.Time) ([]uuid.UUID, error)

	// InTx runs fn in one transaction. fn returning an error rolls back.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	ListDefinitions(ctx context.Context, f Filter) ([]model.Definition, error)
	ListOccurrences(ctx context.Context, definitionID uuid.UUID, limit int) ([]model.Occurrence, error)
}

// Tx is the transactional view of the store. Reads of definitions and
// accounts lock the row where the database supports it.
type Tx interface {
	GetDefinition(ctx context.Context, id uuid.UUID) (model.Definition, error)
	InsertDefinition(ctx context.Context, d model.Definition) error
	UpdateDefinition(ctx context.Context, d model.Definition) error

	// AdvanceSchedule sets last and next only if next_occurrence_at still equals
	// observedNext. It reports whether a row was updated.
	AdvanceSchedule(ctx context.Context, id uuid.UUID, observedNext, last, next time.Time) (bool, error)

	CreateOccurrence(ctx context.Context, o model.Occurrence) error

	GetAccount(ctx context.Context, id uuid.UUID) (model.Account, error)
	// ApplyBalanceEffect adds e to the account and returns the updated row.
	ApplyBalanceEffect(ctx context.Context, accountID uuid.UUID, e ledger.Effect) (model.Account, error)

	// Dictionary lookups return an invalid NullUUID when the name is unknown.
	FindCategoryByName(ctx context.Context, name string) (uuid.NullUUID, error)
	FindSubcategoryByName(ctx context.Context, name string) (uuid.NullUUID, error)
	OrderExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Filter narrows ListDefinitions. Zero values match everything.
type Filter struct {
	Status    model.Status
	AccountID uuid.NullUUID
	Limit     int
	Offset    int
}
