package recurring

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"recurpay/internal/ledger"
	"recurpay/internal/model"
	"recurpay/internal/recurrence"
	logx "recurpay/pkg/logx"
)

// NewDefinition is the input of Definitions.Create.
type NewDefinition struct {
	Status   model.Status    `json:"status,omitempty"`
	Rule     recurrence.Rule `json:"rule"`
	Template TemplateInput   `json:"template"`
}

// TemplateInput is the payment template of a new definition. Amount is
// required; a nil Amount is rejected instead of being stored as zero.
type TemplateInput struct {
	AccountID              uuid.NullUUID    `json:"account_id"`
	Operation              ledger.Operation `json:"operation"`
	Amount                 *decimal.Decimal `json:"amount"`
	Commission             decimal.Decimal  `json:"commission"`
	Category               string           `json:"category,omitempty"`
	Subcategory            string           `json:"subcategory,omitempty"`
	Counterparty           string           `json:"counterparty,omitempty"`
	CounterpartyRequisites string           `json:"counterparty_requisites,omitempty"`
	LinkedOrderID          uuid.NullUUID    `json:"linked_order_id"`
}

func (in TemplateInput) template() model.PaymentTemplate {
	t := model.PaymentTemplate{
		AccountID:              in.AccountID,
		Operation:              in.Operation,
		Commission:             in.Commission,
		Category:               in.Category,
		Subcategory:            in.Subcategory,
		Counterparty:           in.Counterparty,
		CounterpartyRequisites: in.CounterpartyRequisites,
		LinkedOrderID:          in.LinkedOrderID,
	}
	if in.Amount != nil {
		t.Amount = *in.Amount
	}
	return t
}

// Definitions implements the definition lifecycle used by operators.
type Definitions struct {
	store Store
	opts  Options
	log   logx.Logger
}

func NewDefinitions(store Store, opts Options) *Definitions {
	opts = opts.withDefaults()
	return &Definitions{store: store, opts: opts, log: opts.Log.With(logx.String("comp", "definitions"))}
}

func (s *Definitions) now() time.Time {
	return s.opts.Clock().In(s.opts.loc())
}

// Create validates in and stores a new definition scheduled from now.
func (s *Definitions) Create(ctx context.Context, in NewDefinition) (model.Definition, error) {
	now := s.now()
	def := applyDefaults(model.Definition{
		ID:        s.opts.NewID(),
		Status:    in.Status,
		Rule:      in.Rule,
		Template:  in.Template.template(),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err := validate(def); err != nil {
		return model.Definition{}, err
	}
	if in.Template.Amount == nil {
		return model.Definition{}, invalid("amount", "required")
	}
	next := recurrence.Next(def.Rule, now)
	def.NextOccurrenceAt = &next

	if err := s.store.InTx(ctx, func(tx Tx) error {
		return tx.InsertDefinition(ctx, def)
	}); err != nil {
		return model.Definition{}, fmt.Errorf("insert definition: %w", err)
	}
	s.log.Info("definition created",
		logx.Stringer("definition_id", def.ID),
		logx.String("rule", def.Rule.String()),
		logx.Time("next", next),
	)
	return def, nil
}

// Update merges p into the stored definition. A changed schedule is
// rescheduled from now whatever the status; an active definition without a
// next instant is too.
func (s *Definitions) Update(ctx context.Context, id uuid.UUID, p Patch) (model.Definition, error) {
	var out model.Definition
	err := s.store.InTx(ctx, func(tx Tx) error {
		prev, err := tx.GetDefinition(ctx, id)
		if err != nil {
			return err
		}
		now := s.now()
		def := p.Merge(prev)
		if err := validate(def); err != nil {
			return err
		}

		if def.Rule != prev.Rule || (def.Status == model.StatusActive && def.NextOccurrenceAt == nil) {
			next := recurrence.Next(def.Rule, now)
			def.NextOccurrenceAt = &next
		}
		def.UpdatedAt = now

		if err := tx.UpdateDefinition(ctx, def); err != nil {
			return fmt.Errorf("update definition: %w", err)
		}
		out = def
		return nil
	})
	if err != nil {
		return model.Definition{}, err
	}
	s.log.Info("definition updated", logx.Stringer("definition_id", id), logx.String("status", string(out.Status)))
	return out, nil
}

// Duplicate copies a definition's rule and template into a new definition
// that has never fired and is scheduled from now.
func (s *Definitions) Duplicate(ctx context.Context, id uuid.UUID) (model.Definition, error) {
	var out model.Definition
	err := s.store.InTx(ctx, func(tx Tx) error {
		src, err := tx.GetDefinition(ctx, id)
		if err != nil {
			return err
		}
		now := s.now()
		def := model.Definition{
			ID:        s.opts.NewID(),
			Status:    src.Status,
			Rule:      src.Rule,
			Template:  src.Template,
			CreatedAt: now,
			UpdatedAt: now,
		}
		next := recurrence.Next(def.Rule, now)
		def.NextOccurrenceAt = &next
		if err := tx.InsertDefinition(ctx, def); err != nil {
			return fmt.Errorf("insert definition: %w", err)
		}
		out = def
		return nil
	})
	if err != nil {
		return model.Definition{}, err
	}
	s.log.Info("definition duplicated", logx.Stringer("definition_id", out.ID), logx.Stringer("source_id", id))
	return out, nil
}

func (s *Definitions) Get(ctx context.Context, id uuid.UUID) (model.Definition, error) {
	var out model.Definition
	err := s.store.InTx(ctx, func(tx Tx) error {
		d, err := tx.GetDefinition(ctx, id)
		out = d
		return err
	})
	return out, err
}

func (s *Definitions) List(ctx context.Context, f Filter) ([]model.Definition, error) {
	return s.store.ListDefinitions(ctx, f)
}

// Occurrences lists what a definition has produced, newest first.
func (s *Definitions) Occurrences(ctx context.Context, id uuid.UUID, limit int) ([]model.Occurrence, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListOccurrences(ctx, id, limit)
}

func validate(d model.Definition) error {
	if !d.Status.Known() {
		return invalid("status", "unknown status %q", d.Status)
	}
	t := d.Template
	if !t.AccountID.Valid || t.AccountID.UUID == uuid.Nil {
		return invalid("account_id", "required")
	}
	if !t.Operation.Known() {
		return invalid("operation", "unknown operation %q", t.Operation)
	}
	if t.Amount.IsNegative() {
		return invalid("amount", "must be >= 0")
	}
	if t.Commission.IsNegative() {
		return invalid("commission", "must be >= 0")
	}
	if err := recurrence.Validate(d.Rule); err != nil {
		return fromRuleError(err)
	}
	return nil
}
