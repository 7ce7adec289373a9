/*
Package commission converts transaction volume into tiered payouts plus a
platform fee.

PURPOSE:
  Per-transaction accrual adds commission to the partner's pending payout
  and the platform fee to the platform account; distribution atomically
  moves pending to distributed and produces a payout record. Batch
  distribution treats every partner independently so one failure never
  blocks or rolls back siblings.

ARITHMETIC:
  Integer basis points with truncating division, never floating point:
    commission  = amount * rate[tier] / 10000
    platformFee = amount * 100        / 10000   (fixed 1%)
  Rates: Bronze 300bp (3%), Silver 500bp (5%), Gold 700bp (7%).

ATOMICITY:
  Accrual triggered by an earning transaction shares that transaction's
  atomic unit (AccrueInTx); the standalone Accrue runs its own unit and
  writes an append-only accrual record whose idempotency key makes blind
  retries of the same volume event fail instead of double-accruing.
  Distribute performs reset + payout record in one unit; replaying it for a
  partner whose pending is already zero fails with ErrNoPendingPayout, so
  a batch retry restricted to unresolved partners is safe.
*/
package commission

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/warp/loyalty-engine/loyalty"
)

// Commission rates in basis points, gated by tier.
const (
	BronzeRateBP  int64 = 300
	SilverRateBP  int64 = 500
	GoldRateBP    int64 = 700
	PlatformFeeBP int64 = 100
	bpDenominator int64 = 10000
)

// RateBP returns the commission rate for a tier in basis points.
// Unknown tiers fall back to Bronze.
func RateBP(tier loyalty.Tier) int64 {
	switch tier {
	case loyalty.TierGold:
		return GoldRateBP
	case loyalty.TierSilver:
		return SilverRateBP
	default:
		return BronzeRateBP
	}
}

// CommissionFor computes the tiered commission for a transaction amount.
// Truncating integer division; negative amounts accrue nothing.
func CommissionFor(amount int64, tier loyalty.Tier) int64 {
	if amount <= 0 {
		return 0
	}
	return amount * RateBP(tier) / bpDenominator
}

// PlatformFeeFor computes the fixed 1% platform fee.
func PlatformFeeFor(amount int64) int64 {
	if amount <= 0 {
		return 0
	}
	return amount * PlatformFeeBP / bpDenominator
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine accrues and distributes commissions.
type Engine struct {
	Store     loyalty.TxStore
	Directory loyalty.Directory

	now func() time.Time
}

func NewEngine(store loyalty.TxStore, dir loyalty.Directory) *Engine {
	return &Engine{Store: store, Directory: dir, now: time.Now}
}

// AccrueInTx records commission and platform fee inside an enclosing atomic
// unit. Implements loyalty.Accruer so the transaction recorder commits the
// accrual together with the earning transaction.
func (e *Engine) AccrueInTx(ctx context.Context, s loyalty.Store, id loyalty.PartnerID, amount int64, tier loyalty.Tier) error {
	if err := s.AddCommission(ctx, id, tier, CommissionFor(amount, tier)); err != nil {
		return err
	}
	return s.CreditPlatform(ctx, PlatformFeeFor(amount))
}

var _ loyalty.Accruer = (*Engine)(nil)

// Accrue records commission for externally-reported volume as its own
// atomic unit, reading the partner's current tier from the directory. The
// accrual record commits together with the ledger credits; idemKey may be
// empty, and a retry with the same key fails with
// ErrDuplicateIdempotencyKey instead of double-accruing.
func (e *Engine) Accrue(ctx context.Context, id loyalty.PartnerID, amount int64, idemKey string) error {
	partner, err := e.Directory.Partner(ctx, id)
	if err != nil {
		return err
	}
	return e.Store.WithTx(ctx, func(s loyalty.Store) error {
		accrual := loyalty.Accrual{
			ID:             loyalty.AccrualID(uuid.NewString()),
			PartnerID:      id,
			Amount:         amount,
			Commission:     CommissionFor(amount, partner.Tier),
			PlatformFee:    PlatformFeeFor(amount),
			IdempotencyKey: idemKey,
			CreatedAt:      e.now().UTC(),
		}
		if err := s.AppendAccrual(ctx, accrual); err != nil {
			return err
		}
		return e.AccrueInTx(ctx, s, id, amount, partner.Tier)
	})
}

// Distribute atomically moves the partner's pending payout to its
// distributed total, resets pending to zero, and records the payout.
// Fails with ErrNoPendingPayout when nothing is pending.
func (e *Engine) Distribute(ctx context.Context, id loyalty.PartnerID) (*loyalty.Payout, error) {
	var payout loyalty.Payout
	err := e.Store.WithTx(ctx, func(s loyalty.Store) error {
		amount, err := s.TakePendingPayout(ctx, id)
		if err != nil {
			return err
		}
		payout = loyalty.Payout{
			ID:        loyalty.PayoutID(uuid.NewString()),
			PartnerID: id,
			Amount:    amount,
			CreatedAt: e.now().UTC(),
		}
		return s.AppendPayout(ctx, payout)
	})
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

// DistributionResult is the per-partner outcome of a batch distribution.
type DistributionResult struct {
	PartnerID loyalty.PartnerID
	Payout    *loyalty.Payout
	Err       error
}

// BatchDistribute distributes to each partner independently. One partner's
// failure does not block or roll back siblings; callers retry the
// unresolved subset by inspecting the outcome list.
func (e *Engine) BatchDistribute(ctx context.Context, ids []loyalty.PartnerID) []DistributionResult {
	results := make([]DistributionResult, 0, len(ids))
	for _, id := range ids {
		payout, err := e.Distribute(ctx, id)
		results = append(results, DistributionResult{PartnerID: id, Payout: payout, Err: err})
	}
	return results
}

// WithdrawPlatformFee debits the platform balance. Never touches any
// partner's ledger.
func (e *Engine) WithdrawPlatformFee(ctx context.Context, amount int64) error {
	return e.Store.DebitPlatform(ctx, amount)
}
