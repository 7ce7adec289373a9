/*
ledger.go - Balance mutation primitives

PURPOSE:
  The Ledger is the single source of truth for partner balances. It exposes
  exactly two mutations - a credit paired with lifetime_earned and a debit
  paired with lifetime_redeemed - and guarantees that both fields of a
  mutation commit together or neither does. No reader ever observes a
  balance updated without its paired lifetime counter.

WHY PAIRED COUNTERS?
  balance == lifetime_earned - lifetime_redeemed is the audit equation of
  the whole program. Keeping the counters in the same atomic unit as the
  balance means the equation holds at every observable instant, which turns
  balance drift from a reconciliation project into an impossibility.

SEE ALSO:
  - store.go: The conditional store primitives backing these operations
  - recorder.go: Pairs credits with immutable transaction records
*/
package loyalty

import "context"

// Ledger applies balance mutations through the store's atomic primitives.
// Construct it over the store handle of an enclosing atomic unit to commit
// the mutation together with the rest of the unit; over a bare store it
// commits standalone.
type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// ApplyEarning atomically increments balance and lifetime_earned by points.
// Fails with ErrAccountNotFound if no loyalty account exists.
func (l *Ledger) ApplyEarning(ctx context.Context, id PartnerID, points int64) error {
	return l.store.CreditAccount(ctx, id, points)
}

// ApplyRedemption atomically decrements balance and increments
// lifetime_redeemed. Fails with InsufficientPointsError when balance is
// short and ErrAccountNotFound otherwise; the balance check and the write
// are one conditional step in the store.
func (l *Ledger) ApplyRedemption(ctx context.Context, id PartnerID, points int64) error {
	return l.store.DebitAccount(ctx, id, points)
}

// Account returns the current account state.
func (l *Ledger) Account(ctx context.Context, id PartnerID) (*LoyaltyAccount, error) {
	return l.store.GetAccount(ctx, id)
}
