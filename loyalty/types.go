/*
Package loyalty provides the core points-ledger engine.

PURPOSE:
  This package contains the domain types and consistency rules for a
  points-based partner loyalty program: per-partner balances with lifetime
  counters, an immutable transaction log, tier progression, and the store
  contracts that every mutation flows through.

KEY CONCEPTS IN THIS FILE (types.go):
  - Partner: Program member with a tier and an externally-owned status
  - LoyaltyAccount: balance + lifetime earned/redeemed counters
  - Transaction: An immutable ledger entry recording a point-earning event
  - Reward/Claim: Catalog items and redemption instances
  - CommissionLedger/PlatformAccount: Payout accumulation state

DESIGN PRINCIPLES:
  1. Immutability: Transactions and claims are created once, never edited
  2. Integer arithmetic: All point and monetary quantities are int64 in the
     smallest unit; no floating point anywhere near a balance
  3. Type Safety: Strong typing for IDs prevents mixing partner/reward IDs
  4. Closed enumerations: Tier, status and kind fields are typed constants

SEE ALSO:
  - tier.go: Tier progression and point multipliers
  - ledger.go: Balance mutation primitives
  - store.go: Persistence contracts
*/
package loyalty

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PartnerID string
type TransactionID string
type RewardID string
type ClaimID string
type PayoutID string
type AccrualID string

// =============================================================================
// PARTNER - Program member (tier/status owned by an external directory)
// =============================================================================

type Tier string

const (
	TierBronze Tier = "bronze"
	TierSilver Tier = "silver"
	TierGold   Tier = "gold"
)

type PartnerStatus string

const (
	StatusPending   PartnerStatus = "pending"
	StatusActive    PartnerStatus = "active"
	StatusSuspended PartnerStatus = "suspended"
	StatusBanned    PartnerStatus = "banned"
)

type Partner struct {
	ID        PartnerID
	Name      string
	WalletRef string
	Tier      Tier
	Status    PartnerStatus
	CreatedAt time.Time
}

// CanTransact reports whether the partner may earn or redeem points.
// The status flag is owned by the external directory; the core only reads it.
func (p Partner) CanTransact() bool {
	return p.Status != StatusSuspended && p.Status != StatusBanned
}

// =============================================================================
// LOYALTY ACCOUNT - Authoritative balance per partner
// =============================================================================

// LoyaltyAccount holds the balance and lifetime counters for one partner.
//
// INVARIANT: Balance == LifetimeEarned - LifetimeRedeemed at every
// observable instant, and all three fields are >= 0. Every mutation updates
// the balance and the paired lifetime counter in one atomic unit.
type LoyaltyAccount struct {
	PartnerID        PartnerID
	Balance          int64
	LifetimeEarned   int64
	LifetimeRedeemed int64
	UpdatedAt        time.Time
}

// =============================================================================
// TRANSACTION - Immutable record of a point-earning event
// =============================================================================

type TransactionKind string

const (
	KindPurchase  TransactionKind = "purchase"
	KindBonus     TransactionKind = "bonus"
	KindReferral  TransactionKind = "referral"
	KindPromotion TransactionKind = "promotion"
)

// Transaction is append-only: never mutated or deleted after creation, and
// always created in the same atomic unit as its ledger credit. PointsEarned
// is authoritative history even if multiplier tables change later.
type Transaction struct {
	ID             TransactionID
	PartnerID      PartnerID
	Amount         int64
	PointsEarned   int64
	Kind           TransactionKind
	Description    string
	IdempotencyKey string
	CreatedAt      time.Time
}

// =============================================================================
// REWARD CATALOG
// =============================================================================

type RewardCategory string

const (
	RewardGiftCard    RewardCategory = "gift_card"
	RewardMerchandise RewardCategory = "merchandise"
	RewardExperience  RewardCategory = "experience"
	RewardDiscount    RewardCategory = "discount"
)

// Reward is a catalog item redeemable for points.
//
// INVARIANT: Available >= 0. MaxClaims == 0 means unlimited cumulative
// claims; otherwise TotalClaimed <= MaxClaims.
type Reward struct {
	ID             RewardID
	Name           string
	Description    string
	PointsRequired int64
	Category       RewardCategory
	Available      int64
	MaxClaims      int64
	TotalClaimed   int64
	IsActive       bool
	ValidFrom      *time.Time
	ValidUntil     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RedeemableAt reports whether the reward is active and inside its validity
// window at the given instant. Stock is checked separately.
func (r Reward) RedeemableAt(at time.Time) bool {
	if !r.IsActive {
		return false
	}
	if r.ValidFrom != nil && at.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidUntil != nil && at.After(*r.ValidUntil) {
		return false
	}
	return true
}

// =============================================================================
// CLAIM - One redemption instance
// =============================================================================

type ClaimStatus string

const (
	ClaimPending   ClaimStatus = "pending"
	ClaimApproved  ClaimStatus = "approved"
	ClaimRejected  ClaimStatus = "rejected"
	ClaimFulfilled ClaimStatus = "fulfilled"
)

// Claim is created only as part of a successful redemption, always with
// status pending. Later transitions are externally-driven admin decisions.
type Claim struct {
	ID             ClaimID
	PartnerID      PartnerID
	RewardID       RewardID
	PointsSpent    int64
	Status         ClaimStatus
	ProcessedAt    *time.Time
	Notes          string
	IdempotencyKey string
	CreatedAt      time.Time
}

// claimTransitions is the closed state machine for claims:
// pending -> approved -> fulfilled (terminal), pending -> rejected (terminal).
var claimTransitions = map[ClaimStatus][]ClaimStatus{
	ClaimPending:  {ClaimApproved, ClaimRejected},
	ClaimApproved: {ClaimFulfilled},
}

// CanTransition reports whether a claim may move from one status to another.
func CanTransition(from, to ClaimStatus) bool {
	for _, next := range claimTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// =============================================================================
// COMMISSION STATE
// =============================================================================

// CommissionLedger accrues pending payouts per partner. Pending resets to
// zero atomically with each distribution.
type CommissionLedger struct {
	PartnerID        PartnerID
	Tier             Tier
	PendingPayout    int64
	TotalDistributed int64
	UpdatedAt        time.Time
}

// PlatformAccount is the singleton platform-fee account.
type PlatformAccount struct {
	PlatformBalance  int64
	TotalDistributed int64
	UpdatedAt        time.Time
}

// Payout records a single commission distribution to a partner.
type Payout struct {
	ID        PayoutID
	PartnerID PartnerID
	Amount    int64
	CreatedAt time.Time
}

// Accrual records one externally-reported volume event turned into
// commission. Append-only; its optional idempotency key is enforced unique
// by the store so a retried event ledger-credits exactly once.
type Accrual struct {
	ID             AccrualID
	PartnerID      PartnerID
	Amount         int64
	Commission     int64
	PlatformFee    int64
	IdempotencyKey string
	CreatedAt      time.Time
}
