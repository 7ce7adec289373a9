/*
events.go - Post-commit event descriptors and the notifier sink

PURPOSE:
  After each committed mutation the engine publishes an event descriptor to
  a Notifier sink. Delivery is best-effort and fully decoupled from the
  transactional boundary: a notification failure can never undo committed
  ledger state. The notify package provides an asynchronous dispatcher that
  owns buffering and delivery; the core only publishes.

EVENT KINDS:
  BalanceChanged      after every ledger credit or debit
  TransactionCreated  after a point-earning event commits
  RewardClaimed       after a successful redemption commits
  TierUpgraded        after the tier field is persisted

All quantities are exact integers in the smallest point unit.
*/
package loyalty

import "time"

// =============================================================================
// EVENT DESCRIPTORS
// =============================================================================

type BalanceChangedEvent struct {
	PartnerID PartnerID
	Balance   int64
	Delta     int64
	At        time.Time
}

type TransactionCreatedEvent struct {
	Transaction Transaction
}

type RewardClaimedEvent struct {
	Claim  Claim
	Reward Reward
}

type TierUpgradedEvent struct {
	PartnerID PartnerID
	OldTier   Tier
	NewTier   Tier
	At        time.Time
}

// =============================================================================
// NOTIFIER SINK
// =============================================================================

// Notifier receives events after the triggering atomic unit has committed.
// Implementations must not block the caller for long and must never return
// failure into the transactional path; each method is invoked exactly once
// per committed mutation.
type Notifier interface {
	BalanceChanged(e BalanceChangedEvent)
	TransactionCreated(e TransactionCreatedEvent)
	RewardClaimed(e RewardClaimedEvent)
	TierUpgraded(e TierUpgradedEvent)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) BalanceChanged(BalanceChangedEvent)         {}
func (NopNotifier) TransactionCreated(TransactionCreatedEvent) {}
func (NopNotifier) RewardClaimed(RewardClaimedEvent)           {}
func (NopNotifier) TierUpgraded(TierUpgradedEvent)             {}

var _ Notifier = NopNotifier{}
