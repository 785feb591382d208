// Package ledger turns a payment operation into its effect on an account.
package ledger

import "github.com/shopspring/decimal"

type Operation string

const (
	Deposit  Operation = "deposit"
	Withdraw Operation = "withdraw"
)

func (o Operation) Known() bool { return o == Deposit || o == Withdraw }

// Effect is a signed change to an account's balance and turnover counters.
// Incoming carries a deposit's net and Outgoing a withdrawal's; a deposit
// whose commission exceeds its amount has a negative Incoming.
type Effect struct {
	BalanceDelta decimal.Decimal
	Incoming     decimal.Decimal
	Outgoing     decimal.Decimal
}

func (e Effect) IsZero() bool {
	return e.BalanceDelta.IsZero() && e.Incoming.IsZero() && e.Outgoing.IsZero()
}

// Resolve computes the effect of one payment.
//
// A deposit credits amount minus commission; a withdrawal debits amount plus
// commission. Unknown operations and payments with zero amount and zero
// commission have no effect.
func Resolve(op Operation, amount, commission decimal.Decimal) Effect {
	if amount.IsZero() && commission.IsZero() {
		return Effect{}
	}
	switch op {
	case Deposit:
		net := amount.Sub(commission)
		return Effect{BalanceDelta: net, Incoming: net}
	case Withdraw:
		net := amount.Add(commission)
		return Effect{BalanceDelta: net.Neg(), Outgoing: net}
	default:
		return Effect{}
	}
}

// Totals are the account figures an Effect is applied to.
type Totals struct {
	Balance            decimal.Decimal
	TurnoverIncoming   decimal.Decimal
	TurnoverOutgoing   decimal.Decimal
	TurnoverEndBalance decimal.Decimal
}

// Apply returns t with e added.
func (t Totals) Apply(e Effect) Totals {
	return Totals{
		Balance:            t.Balance.Add(e.BalanceDelta),
		TurnoverIncoming:   t.TurnoverIncoming.Add(e.Incoming),
		TurnoverOutgoing:   t.TurnoverOutgoing.Add(e.Outgoing),
		TurnoverEndBalance: t.TurnoverEndBalance.Add(e.BalanceDelta),
	}
}
