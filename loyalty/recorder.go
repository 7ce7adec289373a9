/*
recorder.go - Transaction recorder and earning flow

PURPOSE:
  Record is the single entry point for point-earning events. It computes
  the earned points once from the partner's current tier, then commits the
  immutable Transaction, the paired ledger credit, the commission accrual
  and any tier upgrade in one atomic unit. Events fire only after commit.

FLOW:
  1. Resolve partner via the directory; reject suspended/banned
  2. points = ComputePoints(amount, tier)  (stored value is authoritative)
  3. WithTx: append Transaction + credit account + accrue commission
            + persist tier upgrade if the new lifetime total crosses a
              threshold
  4. After commit: TransactionCreated, BalanceChanged, TierUpgraded events

The stored PointsEarned is never re-derived: history stays correct even if
multiplier tables change afterward.
*/
package loyalty

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Accruer hooks commission accrual into the earning atomic unit. The
// commission package implements it; a nil Accruer simply skips accrual.
type Accruer interface {
	// AccrueInTx computes and records commission and platform fee for the
	// given transaction volume using the store handle of the enclosing
	// atomic unit.
	AccrueInTx(ctx context.Context, s Store, id PartnerID, amount int64, tier Tier) error
}

// Recorder creates immutable point-earning records.
type Recorder struct {
	Store     TxStore
	Directory Directory
	Notifier  Notifier
	Accruer   Accruer

	// now is swappable in tests.
	now func() time.Time
}

func NewRecorder(store TxStore, dir Directory, notifier Notifier, accruer Accruer) *Recorder {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Recorder{
		Store:     store,
		Directory: dir,
		Notifier:  notifier,
		Accruer:   accruer,
		now:       time.Now,
	}
}

// Record creates an immutable Transaction and, in the same atomic unit,
// credits the partner's account and accrues commission. If either half
// fails, neither is persisted. idemKey may be empty; when set, a retry with
// the same key fails with ErrDuplicateIdempotencyKey instead of
// double-crediting.
func (r *Recorder) Record(ctx context.Context, id PartnerID, amount int64, kind TransactionKind, description, idemKey string) (*Transaction, error) {
	partner, err := r.Directory.Partner(ctx, id)
	if err != nil {
		return nil, err
	}
	if !partner.CanTransact() {
		return nil, &AccountInvalidError{PartnerID: id, Status: partner.Status}
	}

	now := r.now().UTC()
	tx := Transaction{
		ID:             TransactionID(uuid.NewString()),
		PartnerID:      id,
		Amount:         amount,
		PointsEarned:   ComputePoints(amount, partner.Tier),
		Kind:           kind,
		Description:    description,
		IdempotencyKey: idemKey,
		CreatedAt:      now,
	}

	var (
		balance int64
		upgrade *TierUpgradedEvent
	)
	err = r.Store.WithTx(ctx, func(s Store) error {
		ledger := NewLedger(s)
		if err := s.AppendTransaction(ctx, tx); err != nil {
			return err
		}
		if err := ledger.ApplyEarning(ctx, id, tx.PointsEarned); err != nil {
			return err
		}
		if r.Accruer != nil {
			if err := r.Accruer.AccrueInTx(ctx, s, id, amount, partner.Tier); err != nil {
				return err
			}
		}

		account, err := ledger.Account(ctx, id)
		if err != nil {
			return err
		}
		balance = account.Balance

		// Upgrades persist inside the same unit so the tier field can never
		// lag behind the lifetime total that earned it.
		if next, changed := EvaluateUpgrade(account.LifetimeEarned, partner.Tier); changed {
			if err := s.SetPartnerTier(ctx, id, next); err != nil {
				return err
			}
			upgrade = &TierUpgradedEvent{PartnerID: id, OldTier: partner.Tier, NewTier: next, At: now}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.Notifier.TransactionCreated(TransactionCreatedEvent{Transaction: tx})
	r.Notifier.BalanceChanged(BalanceChangedEvent{PartnerID: id, Balance: balance, Delta: tx.PointsEarned, At: now})
	if upgrade != nil {
		r.Notifier.TierUpgraded(*upgrade)
	}
	return &tx, nil
}
