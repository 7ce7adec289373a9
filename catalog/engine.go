/*
Package catalog provides the reward catalog and the redemption engine.

PURPOSE:
  Validates and atomically executes redemptions. A successful claim is one
  atomic unit of three writes: ledger debit, claim creation, stock
  decrement. All three succeed or all three roll back - there is no state
  where stock is decremented but points were not debited, or vice versa.

VALIDATION ORDER (strict, stops at first failure):
  1. reward exists            -> ErrRewardNotFound
  2. reward active + in window -> ErrRewardInactive
  3. available > 0            -> ErrRewardOutOfStock
  4. account exists           -> ErrAccountNotFound
  5. balance >= cost          -> ErrInsufficientPoints
  Every precondition is evaluated before any write begins. Suspended or
  banned partners are rejected with ErrAccountInvalid before the chain.

CONCURRENCY:
  Two concurrent claims against a reward with one unit left resolve to
  exactly one success and one ErrRewardOutOfStock: the stock check and
  decrement are a single conditional step in the store, and the whole unit
  runs inside WithTx. Likewise two individually-affordable but not jointly
  affordable redemptions resolve to one success and one
  ErrInsufficientPoints.

CLAIM LIFECYCLE:
  Claims start Pending. Post-Pending transitions (approve, reject, fulfill)
  are externally-driven admin decisions exposed via SetClaimStatus; the
  engine enforces only the state machine, not the policy. A rejected claim
  does not refund points.

SEE ALSO:
  - loyalty/store.go: ClaimRewardStock / DebitAccount conditional primitives
*/
package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/warp/loyalty-engine/loyalty"
)

// Engine executes redemptions and manages the reward catalog.
type Engine struct {
	Store     loyalty.TxStore
	Directory loyalty.Directory
	Notifier  loyalty.Notifier

	now func() time.Time
}

func NewEngine(store loyalty.TxStore, dir loyalty.Directory, notifier loyalty.Notifier) *Engine {
	if notifier == nil {
		notifier = loyalty.NopNotifier{}
	}
	return &Engine{Store: store, Directory: dir, Notifier: notifier, now: time.Now}
}

// =============================================================================
// REDEMPTION
// =============================================================================

// Claim validates and executes a redemption. idemKey may be empty; when
// set, retries with the same key fail with ErrDuplicateIdempotencyKey
// instead of double-claiming.
func (e *Engine) Claim(ctx context.Context, partnerID loyalty.PartnerID, rewardID loyalty.RewardID, idemKey string) (*loyalty.Claim, error) {
	partner, err := e.Directory.Partner(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	if !partner.CanTransact() {
		return nil, &loyalty.AccountInvalidError{PartnerID: partnerID, Status: partner.Status}
	}

	now := e.now().UTC()
	var (
		claim  loyalty.Claim
		reward loyalty.Reward
	)
	err = e.Store.WithTx(ctx, func(s loyalty.Store) error {
		r, err := s.GetReward(ctx, rewardID)
		if err != nil {
			return err
		}
		if !r.RedeemableAt(now) {
			return loyalty.ErrRewardInactive
		}
		if r.Available <= 0 {
			return loyalty.ErrRewardOutOfStock
		}
		account, err := s.GetAccount(ctx, partnerID)
		if err != nil {
			return err
		}
		if account.Balance < r.PointsRequired {
			return &loyalty.InsufficientPointsError{
				PartnerID: partnerID,
				Available: account.Balance,
				Requested: r.PointsRequired,
			}
		}

		// All preconditions hold; perform the triple-update. The ledger and
		// stock primitives re-check their guards, so a lost update is
		// impossible even if the preconditions raced.
		if err := loyalty.NewLedger(s).ApplyRedemption(ctx, partnerID, r.PointsRequired); err != nil {
			return err
		}
		if err := s.ClaimRewardStock(ctx, rewardID); err != nil {
			return err
		}
		claim = loyalty.Claim{
			ID:             loyalty.ClaimID(uuid.NewString()),
			PartnerID:      partnerID,
			RewardID:       rewardID,
			PointsSpent:    r.PointsRequired,
			Status:         loyalty.ClaimPending,
			IdempotencyKey: idemKey,
			CreatedAt:      now,
		}
		if err := s.AppendClaim(ctx, claim); err != nil {
			return err
		}

		reward = *r
		reward.Available--
		reward.TotalClaimed++
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.Notifier.RewardClaimed(loyalty.RewardClaimedEvent{Claim: claim, Reward: reward})
	if account, err := e.Store.GetAccount(ctx, partnerID); err == nil {
		e.Notifier.BalanceChanged(loyalty.BalanceChangedEvent{
			PartnerID: partnerID,
			Balance:   account.Balance,
			Delta:     -claim.PointsSpent,
			At:        now,
		})
	}
	return &claim, nil
}

// SetClaimStatus applies an externally-decided claim transition. The engine
// enforces the state machine only; approval policy lives with the caller.
// A rejected claim forfeits its points.
func (e *Engine) SetClaimStatus(ctx context.Context, id loyalty.ClaimID, status loyalty.ClaimStatus, notes string) (*loyalty.Claim, error) {
	var updated *loyalty.Claim
	err := e.Store.WithTx(ctx, func(s loyalty.Store) error {
		claim, err := s.GetClaim(ctx, id)
		if err != nil {
			return err
		}
		if !loyalty.CanTransition(claim.Status, status) {
			return &loyalty.TransitionError{ClaimID: id, From: claim.Status, To: status}
		}
		processedAt := e.now().UTC()
		if err := s.UpdateClaimStatus(ctx, id, status, processedAt, notes); err != nil {
			return err
		}
		claim.Status = status
		claim.ProcessedAt = &processedAt
		if notes != "" {
			claim.Notes = notes
		}
		updated = claim
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// =============================================================================
// CATALOG ADMINISTRATION
// =============================================================================

// CreateReward adds a catalog item. Administrative; no partner involved.
func (e *Engine) CreateReward(ctx context.Context, r loyalty.Reward) (*loyalty.Reward, error) {
	if r.ID == "" {
		r.ID = loyalty.RewardID(uuid.NewString())
	}
	now := e.now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	r.TotalClaimed = 0
	if err := e.Store.SaveReward(ctx, r); err != nil {
		return nil, err
	}
	return &r, nil
}

// UpdateReward edits a catalog item. TotalClaimed is preserved; it only
// moves through ClaimRewardStock.
func (e *Engine) UpdateReward(ctx context.Context, r loyalty.Reward) (*loyalty.Reward, error) {
	var updated loyalty.Reward
	err := e.Store.WithTx(ctx, func(s loyalty.Store) error {
		existing, err := s.GetReward(ctx, r.ID)
		if err != nil {
			return err
		}
		r.TotalClaimed = existing.TotalClaimed
		r.CreatedAt = existing.CreatedAt
		r.UpdatedAt = e.now().UTC()
		updated = r
		return s.SaveReward(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
