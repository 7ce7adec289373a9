/*
store.go - Persistence contracts for the loyalty engine

PURPOSE:
  Defines the interface between domain logic and the database. The Store
  exposes atomic conditional primitives ("decrement only if available > 0",
  "debit only if balance >= points") so a check and its write are one step,
  never a separate read followed by a separate write.

KEY INTERFACES:
  Store:     Entity persistence plus atomic conditional mutations
  TxStore:   Store with WithTx for multi-write atomic units
  Directory: Read-only partner lookup (tier/status owned externally)

ATOMIC UNITS:
  Every multi-field mutation runs inside WithTx: the redemption
  triple-update (debit + claim insert + stock decrement), the earning pair
  (transaction insert + credit), and the commission reset+record. If fn
  returns an error the whole unit rolls back and all invariants hold.

APPEND-ONLY CONTRACT:
  Transactions, claims and accruals are insert-only; there is no update or
  delete for them other than the claim status transition. Each carries an
  optional idempotency key enforced unique by the store (per entity), so
  naive retries surface ErrDuplicateIdempotencyKey instead of
  double-crediting, double-claiming or double-accruing.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite (WAL)
  - loyalty/store: In-memory, for tests
*/
package loyalty

import (
	"context"
	"time"
)

// =============================================================================
// DIRECTORY - External partner reads
// =============================================================================

// Directory resolves partners. The core reads tier and status through it and
// never decides how partners authenticate or change status.
type Directory interface {
	// Partner returns the partner or ErrPartnerNotFound.
	Partner(ctx context.Context, id PartnerID) (*Partner, error)
}

// =============================================================================
// STORE
// =============================================================================

// Store persists all engine state. Conditional mutations return the domain
// sentinel for the failed guard; plain reads return nil pointers wrapped in
// the matching not-found sentinel.
type Store interface {
	// Partners
	SavePartner(ctx context.Context, p Partner) error
	GetPartner(ctx context.Context, id PartnerID) (*Partner, error)
	ListPartners(ctx context.Context) ([]Partner, error)
	SetPartnerTier(ctx context.Context, id PartnerID, tier Tier) error
	// DeletePartner removes the partner and cascades its loyalty account.
	DeletePartner(ctx context.Context, id PartnerID) error

	// Accounts
	CreateAccount(ctx context.Context, id PartnerID) error
	GetAccount(ctx context.Context, id PartnerID) (*LoyaltyAccount, error)
	// CreditAccount atomically increments balance and lifetime_earned.
	CreditAccount(ctx context.Context, id PartnerID, points int64) error
	// DebitAccount atomically decrements balance and increments
	// lifetime_redeemed, only if balance >= points. Returns
	// InsufficientPointsError or ErrAccountNotFound.
	DebitAccount(ctx context.Context, id PartnerID, points int64) error

	// Transactions (append-only)
	AppendTransaction(ctx context.Context, tx Transaction) error
	GetTransaction(ctx context.Context, id TransactionID) (*Transaction, error)
	TransactionsByPartner(ctx context.Context, id PartnerID) ([]Transaction, error)

	// Rewards
	SaveReward(ctx context.Context, r Reward) error
	GetReward(ctx context.Context, id RewardID) (*Reward, error)
	ListRewards(ctx context.Context, activeOnly bool) ([]Reward, error)
	// ClaimRewardStock is the atomic conditional step of a redemption:
	// available -= 1 and total_claimed += 1 only if available > 0 and the
	// claim cap is not reached. Returns ErrRewardOutOfStock otherwise.
	ClaimRewardStock(ctx context.Context, id RewardID) error

	// Claims (append-only except status)
	AppendClaim(ctx context.Context, c Claim) error
	GetClaim(ctx context.Context, id ClaimID) (*Claim, error)
	ClaimsByPartner(ctx context.Context, id PartnerID) ([]Claim, error)
	UpdateClaimStatus(ctx context.Context, id ClaimID, status ClaimStatus, processedAt time.Time, notes string) error

	// Commission
	GetCommission(ctx context.Context, id PartnerID) (*CommissionLedger, error)
	// AddCommission upserts the partner's commission ledger row and adds to
	// its pending payout.
	AddCommission(ctx context.Context, id PartnerID, tier Tier, amount int64) error
	// TakePendingPayout atomically moves pending -> total_distributed,
	// resets pending to zero, and returns the amount moved.
	// Returns ErrNoPendingPayout when pending is zero or the row is missing.
	TakePendingPayout(ctx context.Context, id PartnerID) (int64, error)
	AppendPayout(ctx context.Context, p Payout) error
	PayoutsByPartner(ctx context.Context, id PartnerID) ([]Payout, error)
	// AppendAccrual is insert-only; a non-empty idempotency key that already
	// exists fails with ErrDuplicateIdempotencyKey.
	AppendAccrual(ctx context.Context, a Accrual) error
	AccrualsByPartner(ctx context.Context, id PartnerID) ([]Accrual, error)

	// Platform account (singleton)
	GetPlatform(ctx context.Context) (*PlatformAccount, error)
	CreditPlatform(ctx context.Context, amount int64) error
	// DebitPlatform decrements the platform balance only if it covers the
	// amount; returns InsufficientPointsError otherwise. Never touches any
	// partner ledger.
	DebitPlatform(ctx context.Context, amount int64) error
}

// TxStore wraps Store with transaction support. If fn returns an error the
// unit rolls back as a whole; storage failures mid-commit leave every
// invariant intact.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
