package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loyalty-engine/loyalty"
	"github.com/warp/loyalty-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedPartner(t *testing.T, s *sqlite.Store, id string, tier loyalty.Tier) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.SavePartner(ctx, loyalty.Partner{
		ID: loyalty.PartnerID(id), Name: "Partner " + id, Tier: tier, Status: loyalty.StatusActive,
	}))
	require.NoError(t, s.CreateAccount(ctx, loyalty.PartnerID(id)))
}

// =============================================================================
// CONDITIONAL PRIMITIVE TESTS
// =============================================================================

func TestDebitAccount_GuardInStatement(t *testing.T) {
	// The balance check and the decrement are one conditional UPDATE.
	s := newTestStore(t)
	seedPartner(t, s, "p1", loyalty.TierBronze)
	ctx := context.Background()

	require.NoError(t, s.CreditAccount(ctx, "p1", 100))
	require.NoError(t, s.DebitAccount(ctx, "p1", 60))

	err := s.DebitAccount(ctx, "p1", 41)
	require.Error(t, err)
	assert.ErrorIs(t, err, loyalty.ErrInsufficientPoints)

	var ipErr *loyalty.InsufficientPointsError
	require.ErrorAs(t, err, &ipErr)
	assert.Equal(t, int64(40), ipErr.Available)

	account, err := s.GetAccount(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(40), account.Balance)
	assert.Equal(t, int64(100), account.LifetimeEarned)
	assert.Equal(t, int64(60), account.LifetimeRedeemed)
}

func TestDebitAccount_MissingAccount(t *testing.T) {
	s := newTestStore(t)
	err := s.DebitAccount(context.Background(), "ghost", 10)
	assert.ErrorIs(t, err, loyalty.ErrAccountNotFound)
}

func TestClaimRewardStock_StockAndCapGuards(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveReward(ctx, loyalty.Reward{
		ID: "r1", Name: "x", PointsRequired: 100,
		Category: loyalty.RewardGiftCard, Available: 2, MaxClaims: 1, IsActive: true,
	}))

	require.NoError(t, s.ClaimRewardStock(ctx, "r1"))

	// Stock remains but the claim cap is hit.
	err := s.ClaimRewardStock(ctx, "r1")
	assert.ErrorIs(t, err, loyalty.ErrRewardOutOfStock)

	reward, err := s.GetReward(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), reward.Available)
	assert.Equal(t, int64(1), reward.TotalClaimed)

	assert.ErrorIs(t, s.ClaimRewardStock(ctx, "missing"), loyalty.ErrRewardNotFound)
}

func TestTakePendingPayout_ResetAndMove(t *testing.T) {
	s := newTestStore(t)
	seedPartner(t, s, "p1", loyalty.TierSilver)
	ctx := context.Background()

	require.NoError(t, s.AddCommission(ctx, "p1", loyalty.TierSilver, 500))
	require.NoError(t, s.AddCommission(ctx, "p1", loyalty.TierSilver, 250))

	amount, err := s.TakePendingPayout(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(750), amount)

	ledger, err := s.GetCommission(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), ledger.PendingPayout)
	assert.Equal(t, int64(750), ledger.TotalDistributed)

	_, err = s.TakePendingPayout(ctx, "p1")
	assert.ErrorIs(t, err, loyalty.ErrNoPendingPayout)
}

func TestPlatformAccount_SingletonDebitGuard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreditPlatform(ctx, 500))
	require.NoError(t, s.DebitPlatform(ctx, 300))

	err := s.DebitPlatform(ctx, 201)
	assert.ErrorIs(t, err, loyalty.ErrInsufficientPoints)

	platform, err := s.GetPlatform(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(200), platform.PlatformBalance)
	assert.Equal(t, int64(300), platform.TotalDistributed)
}

// =============================================================================
// IDEMPOTENCY TESTS
// =============================================================================

func TestAppendTransaction_DuplicateIdempotencyKey(t *testing.T) {
	s := newTestStore(t)
	seedPartner(t, s, "p1", loyalty.TierBronze)
	ctx := context.Background()

	tx := loyalty.Transaction{
		ID: "t1", PartnerID: "p1", Amount: 100, PointsEarned: 100,
		Kind: loyalty.KindPurchase, IdempotencyKey: "evt-1", CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.AppendTransaction(ctx, tx))

	tx.ID = "t2"
	err := s.AppendTransaction(ctx, tx)
	assert.ErrorIs(t, err, loyalty.ErrDuplicateIdempotencyKey)

	// Transactions without keys never collide.
	tx.ID = "t3"
	tx.IdempotencyKey = ""
	require.NoError(t, s.AppendTransaction(ctx, tx))
	tx.ID = "t4"
	require.NoError(t, s.AppendTransaction(ctx, tx))
}

func TestAppendAccrual_DuplicateIdempotencyKey(t *testing.T) {
	s := newTestStore(t)
	seedPartner(t, s, "p1", loyalty.TierGold)
	ctx := context.Background()

	a := loyalty.Accrual{
		ID: "a1", PartnerID: "p1", Amount: 10000, Commission: 700, PlatformFee: 100,
		IdempotencyKey: "evt-1", CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.AppendAccrual(ctx, a))

	a.ID = "a2"
	err := s.AppendAccrual(ctx, a)
	assert.ErrorIs(t, err, loyalty.ErrDuplicateIdempotencyKey)

	// A transaction reusing the accrual's key value lives in its own table
	// and is unaffected.
	require.NoError(t, s.AppendTransaction(ctx, loyalty.Transaction{
		ID: "t1", PartnerID: "p1", Amount: 10000, PointsEarned: 10000,
		Kind: loyalty.KindPurchase, IdempotencyKey: "evt-1", CreatedAt: time.Now().UTC(),
	}))

	accruals, err := s.AccrualsByPartner(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, accruals, 1)
	assert.Equal(t, int64(700), accruals[0].Commission)
	assert.Equal(t, "evt-1", accruals[0].IdempotencyKey)
}

// =============================================================================
// TRANSACTIONAL UNIT TESTS
// =============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A unit that credits and then fails
	// WHEN: WithTx returns the error
	// THEN: The credit is gone

	s := newTestStore(t)
	seedPartner(t, s, "p1", loyalty.TierBronze)
	ctx := context.Background()

	sentinel := errors.New("boom")
	err := s.WithTx(ctx, func(tx loyalty.Store) error {
		if err := tx.CreditAccount(ctx, "p1", 1000); err != nil {
			return err
		}
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	account, err := s.GetAccount(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), account.Balance)
}

func TestWithTx_CommitsMultiStatementUnit(t *testing.T) {
	// The redemption triple-update paths through one transaction.
	s := newTestStore(t)
	seedPartner(t, s, "p1", loyalty.TierBronze)
	ctx := context.Background()
	require.NoError(t, s.CreditAccount(ctx, "p1", 1000))
	require.NoError(t, s.SaveReward(ctx, loyalty.Reward{
		ID: "r1", Name: "x", PointsRequired: 300,
		Category: loyalty.RewardGiftCard, Available: 5, IsActive: true,
	}))

	err := s.WithTx(ctx, func(tx loyalty.Store) error {
		if err := tx.DebitAccount(ctx, "p1", 300); err != nil {
			return err
		}
		if err := tx.ClaimRewardStock(ctx, "r1"); err != nil {
			return err
		}
		return tx.AppendClaim(ctx, loyalty.Claim{
			ID: "c1", PartnerID: "p1", RewardID: "r1", PointsSpent: 300,
			Status: loyalty.ClaimPending, CreatedAt: time.Now().UTC(),
		})
	})
	require.NoError(t, err)

	account, _ := s.GetAccount(ctx, "p1")
	assert.Equal(t, int64(700), account.Balance)
	reward, _ := s.GetReward(ctx, "r1")
	assert.Equal(t, int64(4), reward.Available)
	claims, _ := s.ClaimsByPartner(ctx, "p1")
	assert.Len(t, claims, 1)
}

// =============================================================================
// CASCADE AND LIFECYCLE TESTS
// =============================================================================

func TestDeletePartner_CascadesAccount(t *testing.T) {
	s := newTestStore(t)
	seedPartner(t, s, "p1", loyalty.TierBronze)
	ctx := context.Background()

	require.NoError(t, s.DeletePartner(ctx, "p1"))

	_, err := s.GetPartner(ctx, "p1")
	assert.ErrorIs(t, err, loyalty.ErrPartnerNotFound)
	_, err = s.GetAccount(ctx, "p1")
	assert.ErrorIs(t, err, loyalty.ErrAccountNotFound)
}

func TestSetPartnerTier_PropagatesToCommissionLedger(t *testing.T) {
	s := newTestStore(t)
	seedPartner(t, s, "p1", loyalty.TierBronze)
	ctx := context.Background()
	require.NoError(t, s.AddCommission(ctx, "p1", loyalty.TierBronze, 100))

	require.NoError(t, s.SetPartnerTier(ctx, "p1", loyalty.TierGold))

	partner, err := s.GetPartner(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, loyalty.TierGold, partner.Tier)

	ledger, err := s.GetCommission(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, loyalty.TierGold, ledger.Tier)
}

func TestUpdateClaimStatus_PreservesNotesWhenEmpty(t *testing.T) {
	s := newTestStore(t)
	seedPartner(t, s, "p1", loyalty.TierBronze)
	ctx := context.Background()
	require.NoError(t, s.AppendClaim(ctx, loyalty.Claim{
		ID: "c1", PartnerID: "p1", RewardID: "r1", PointsSpent: 100,
		Status: loyalty.ClaimPending, Notes: "initial", CreatedAt: time.Now().UTC(),
	}))

	require.NoError(t, s.UpdateClaimStatus(ctx, "c1", loyalty.ClaimApproved, time.Now().UTC(), ""))

	claim, err := s.GetClaim(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, loyalty.ClaimApproved, claim.Status)
	assert.Equal(t, "initial", claim.Notes)
	assert.NotNil(t, claim.ProcessedAt)
}
