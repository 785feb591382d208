package recurring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"recurpay/internal/eventbus"
	"recurpay/internal/ledger"
	"recurpay/internal/model"
	"recurpay/internal/recurrence"
	logx "recurpay/pkg/logx"
)

type Outcome string

const (
	Applied         Outcome = "applied"
	SkippedNotDue   Outcome = "skipped_not_due"
	SkippedInactive Outcome = "skipped_inactive"
	Failed          Outcome = "failed"
)

// Result is the outcome of processing one definition.
type Result struct {
	DefinitionID uuid.UUID
	Outcome      Outcome
	Reason       string

	// Set when Outcome is Applied.
	Occurrence *model.Occurrence
	Account    *model.Account
	Next       time.Time
}

// Processor applies one due definition at a time.
type Processor struct {
	store Store
	mat   *Materializer
	opts  Options
	log   logx.Logger
}

func NewProcessor(store Store, opts Options) *Processor {
	opts = opts.withDefaults()
	return &Processor{
		store: store,
		mat:   NewMaterializer(opts.NewID, opts.Clock),
		opts:  opts,
		log:   opts.Log.With(logx.String("comp", "processor")),
	}
}

// Process materializes the definition's due occurrence, applies its ledger
// effect and advances its schedule, all in one transaction.
//
// The definition is re-read inside the transaction, so a stale id from
// ListDue is harmless: it yields SkippedNotDue or SkippedInactive. A returned
// error means the transaction rolled back and the definition stays due.
//
// Once started, the transaction is not interrupted by ctx cancellation.
func (p *Processor) Process(ctx context.Context, id uuid.UUID, now time.Time) (Result, error) {
	ctx = context.WithoutCancel(ctx)
	res := Result{DefinitionID: id}

	err := p.store.InTx(ctx, func(tx Tx) error {
		def, err := tx.GetDefinition(ctx, id)
		if errors.Is(err, ErrNotFound) {
			res.Outcome, res.Reason = SkippedInactive, "definition not found"
			return nil
		}
		if err != nil {
			return fmt.Errorf("load definition: %w", err)
		}

		if def.Status != model.StatusActive {
			res.Outcome, res.Reason = SkippedInactive, string(def.Status)
			return nil
		}
		if def.NextOccurrenceAt == nil || def.NextOccurrenceAt.After(now) {
			res.Outcome, res.Reason = SkippedNotDue, "not due"
			return nil
		}
		if !def.Template.AccountID.Valid {
			res.Outcome, res.Reason = Failed, "missing account"
			return nil
		}
		due := *def.NextOccurrenceAt

		// The account must exist; otherwise roll back and retry next tick.
		if _, err := tx.GetAccount(ctx, def.Template.AccountID.UUID); err != nil {
			return fmt.Errorf("load account %s: %w", def.Template.AccountID.UUID, err)
		}

		occ, err := p.mat.Materialize(ctx, tx, def, due)
		if err != nil {
			return fmt.Errorf("materialize: %w", err)
		}
		if err := tx.CreateOccurrence(ctx, occ); err != nil {
			return fmt.Errorf("create occurrence: %w", err)
		}

		if eff := ledger.Resolve(occ.Operation, occ.Amount, occ.Commission); !eff.IsZero() {
			acct, err := tx.ApplyBalanceEffect(ctx, occ.AccountID, eff)
			if err != nil {
				return fmt.Errorf("apply balance effect: %w", err)
			}
			res.Account = &acct
		}

		if !def.Rule.Period.Known() {
			p.log.Warn("unknown period; advancing daily",
				logx.Stringer("definition_id", id), logx.String("period", string(def.Rule.Period)))
		}
		next := recurrence.Next(def.Rule, due.In(p.opts.loc()))
		ok, err := tx.AdvanceSchedule(ctx, id, due, due, next)
		if err != nil {
			return fmt.Errorf("advance schedule: %w", err)
		}
		if !ok {
			return errLostRace
		}

		res.Outcome = Applied
		res.Occurrence = &occ
		res.Next = next
		return nil
	})

	switch {
	case errors.Is(err, errLostRace):
		res = Result{DefinitionID: id, Outcome: SkippedNotDue, Reason: "processed concurrently"}
		err = nil
	case err != nil:
		res = Result{DefinitionID: id, Outcome: Failed, Reason: err.Error()}
	}
	p.report(res, err)
	return res, err
}

func (p *Processor) report(res Result, err error) {
	log := p.log.With(logx.Stringer("definition_id", res.DefinitionID))
	ev := eventbus.ItemEvent{
		DefinitionID: res.DefinitionID.String(),
		Outcome:      string(res.Outcome),
		Reason:       res.Reason,
		At:           p.opts.Clock(),
	}

	switch res.Outcome {
	case Applied:
		ev.OccurrenceID = res.Occurrence.ID.String()
		ev.Amount = res.Occurrence.Amount.String()
		fields := []logx.Field{
			logx.Stringer("occurrence_id", res.Occurrence.ID),
			logx.Time("date", res.Occurrence.Date),
			logx.Time("next", res.Next),
		}
		if res.Account != nil {
			fields = append(fields, logx.Decimal("balance", res.Account.Balance))
		}
		log.Info("occurrence applied", fields...)
		p.opts.Bus.Publish(eventbus.Event{Type: eventbus.RecurringApplied, Data: ev})
	case SkippedNotDue, SkippedInactive:
		log.Debug("definition skipped", logx.String("outcome", string(res.Outcome)), logx.String("reason", res.Reason))
		p.opts.Bus.Publish(eventbus.Event{Type: eventbus.RecurringSkipped, Data: ev})
	default:
		if err != nil {
			ev.Error = err.Error()
			log.Error("processing failed; rolled back", logx.Err(err))
		} else {
			log.Warn("definition cannot be processed", logx.String("reason", res.Reason))
		}
		p.opts.Bus.Publish(eventbus.Event{Type: eventbus.RecurringFailed, Data: ev})
	}
}
