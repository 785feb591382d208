package recurring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"recurpay/internal/model"
)

// Materializer builds the occurrence a definition produces at a given instant.
// It only reads through the Tx.
type Materializer struct {
	newID func() uuid.UUID
	clock func() time.Time
}

func NewMaterializer(newID func() uuid.UUID, clock func() time.Time) *Materializer {
	if newID == nil {
		newID = uuid.New
	}
	if clock == nil {
		clock = time.Now
	}
	return &Materializer{newID: newID, clock: clock}
}

// Materialize resolves dictionary names to ids, drops a linked order that no
// longer exists, and returns the occurrence dated at.
//
// Unknown category or subcategory names resolve to no id. Lookup errors are
// returned so the caller's transaction rolls back.
func (m *Materializer) Materialize(ctx context.Context, tx Tx, def model.Definition, at time.Time) (model.Occurrence, error) {
	t := def.Template
	if !t.AccountID.Valid {
		return model.Occurrence{}, invalid("account_id", "definition %s has no account", def.ID)
	}

	occ := model.Occurrence{
		ID:                     m.newID(),
		DefinitionID:           uuid.NullUUID{UUID: def.ID, Valid: true},
		Date:                   at,
		AccountID:              t.AccountID.UUID,
		Operation:              t.Operation,
		Amount:                 t.Amount,
		Commission:             t.Commission,
		Counterparty:           t.Counterparty,
		CounterpartyRequisites: t.CounterpartyRequisites,
		CreatedAt:              m.clock(),
	}

	if name := strings.TrimSpace(t.Category); name != "" {
		id, err := tx.FindCategoryByName(ctx, name)
		if err != nil {
			return model.Occurrence{}, fmt.Errorf("resolve category %q: %w", name, err)
		}
		occ.CategoryID = id
	}
	if name := strings.TrimSpace(t.Subcategory); name != "" {
		id, err := tx.FindSubcategoryByName(ctx, name)
		if err != nil {
			return model.Occurrence{}, fmt.Errorf("resolve subcategory %q: %w", name, err)
		}
		occ.SubcategoryID = id
	}
	if t.LinkedOrderID.Valid {
		ok, err := tx.OrderExists(ctx, t.LinkedOrderID.UUID)
		if err != nil {
			return model.Occurrence{}, fmt.Errorf("check order %s: %w", t.LinkedOrderID.UUID, err)
		}
		if ok {
			occ.LinkedOrderID = t.LinkedOrderID
		}
	}
	return occ, nil
}
