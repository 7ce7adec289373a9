package catalog_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loyalty-engine/catalog"
	"github.com/warp/loyalty-engine/loyalty"
	"github.com/warp/loyalty-engine/loyalty/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestEngine(t *testing.T) (*catalog.Engine, *store.TxMemory) {
	t.Helper()
	s := store.NewTxMemory()
	return catalog.NewEngine(s, s, nil), s
}

func seedPartner(t *testing.T, s *store.TxMemory, id string, balance int64, status loyalty.PartnerStatus) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.SavePartner(ctx, loyalty.Partner{
		ID:     loyalty.PartnerID(id),
		Name:   "Partner " + id,
		Tier:   loyalty.TierBronze,
		Status: status,
	}))
	require.NoError(t, s.CreateAccount(ctx, loyalty.PartnerID(id)))
	if balance > 0 {
		require.NoError(t, s.CreditAccount(ctx, loyalty.PartnerID(id), balance))
	}
}

func seedReward(t *testing.T, s *store.TxMemory, id string, points, available int64) {
	t.Helper()
	require.NoError(t, s.SaveReward(context.Background(), loyalty.Reward{
		ID:             loyalty.RewardID(id),
		Name:           "Reward " + id,
		PointsRequired: points,
		Category:       loyalty.RewardGiftCard,
		Available:      available,
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
	}))
}

// =============================================================================
// REDEMPTION TESTS
// =============================================================================

func TestClaim_Success_TripleUpdate(t *testing.T) {
	// GIVEN: An active partner with 500 points and a 300-point reward
	// WHEN: Claiming the reward
	// THEN: Balance drops, stock drops, and a pending claim exists

	engine, s := newTestEngine(t)
	seedPartner(t, s, "p1", 500, loyalty.StatusActive)
	seedReward(t, s, "r1", 300, 10)
	ctx := context.Background()

	claim, err := engine.Claim(ctx, "p1", "r1", "")
	require.NoError(t, err)
	assert.Equal(t, loyalty.ClaimPending, claim.Status)
	assert.Equal(t, int64(300), claim.PointsSpent)

	account, err := s.GetAccount(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(200), account.Balance)
	assert.Equal(t, int64(300), account.LifetimeRedeemed)

	reward, err := s.GetReward(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(9), reward.Available)
	assert.Equal(t, int64(1), reward.TotalClaimed)
}

func TestClaim_InsufficientPoints_NothingChanges(t *testing.T) {
	// GIVEN: A partner 1 point short of the reward price
	// WHEN: Claiming
	// THEN: The claim fails and balance, stock, and claims are untouched

	engine, s := newTestEngine(t)
	seedPartner(t, s, "p1", 299, loyalty.StatusActive)
	seedReward(t, s, "r1", 300, 10)
	ctx := context.Background()

	_, err := engine.Claim(ctx, "p1", "r1", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, loyalty.ErrInsufficientPoints)

	var ipErr *loyalty.InsufficientPointsError
	require.ErrorAs(t, err, &ipErr)
	assert.Equal(t, int64(1), ipErr.Shortfall())

	account, _ := s.GetAccount(ctx, "p1")
	assert.Equal(t, int64(299), account.Balance)
	reward, _ := s.GetReward(ctx, "r1")
	assert.Equal(t, int64(10), reward.Available)
	claims, _ := s.ClaimsByPartner(ctx, "p1")
	assert.Empty(t, claims)
}

func TestClaim_ValidationOrder(t *testing.T) {
	// Existence, then activation, then stock, then balance.
	engine, s := newTestEngine(t)
	seedPartner(t, s, "poor", 0, loyalty.StatusActive)
	ctx := context.Background()

	_, err := engine.Claim(ctx, "poor", "missing", "")
	assert.ErrorIs(t, err, loyalty.ErrRewardNotFound)

	// Inactive wins over out-of-stock and insufficient points.
	require.NoError(t, s.SaveReward(ctx, loyalty.Reward{
		ID: "inactive", Name: "x", PointsRequired: 100,
		Category: loyalty.RewardDiscount, Available: 0, IsActive: false,
	}))
	_, err = engine.Claim(ctx, "poor", "inactive", "")
	assert.ErrorIs(t, err, loyalty.ErrRewardInactive)

	// Out-of-stock wins over insufficient points.
	require.NoError(t, s.SaveReward(ctx, loyalty.Reward{
		ID: "empty", Name: "x", PointsRequired: 100,
		Category: loyalty.RewardDiscount, Available: 0, IsActive: true,
	}))
	_, err = engine.Claim(ctx, "poor", "empty", "")
	assert.ErrorIs(t, err, loyalty.ErrRewardOutOfStock)
}

func TestClaim_ValidityWindow(t *testing.T) {
	// A reward outside its validity window behaves like an inactive one.
	engine, s := newTestEngine(t)
	seedPartner(t, s, "p1", 1000, loyalty.StatusActive)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, s.SaveReward(ctx, loyalty.Reward{
		ID: "expired", Name: "x", PointsRequired: 100,
		Category: loyalty.RewardExperience, Available: 5, IsActive: true,
		ValidUntil: &past,
	}))

	_, err := engine.Claim(ctx, "p1", "expired", "")
	assert.ErrorIs(t, err, loyalty.ErrRewardInactive)
}

func TestClaim_SuspendedPartner_Rejected(t *testing.T) {
	engine, s := newTestEngine(t)
	seedPartner(t, s, "p1", 1000, loyalty.StatusSuspended)
	seedReward(t, s, "r1", 100, 5)

	_, err := engine.Claim(context.Background(), "p1", "r1", "")
	assert.ErrorIs(t, err, loyalty.ErrAccountInvalid)
}

func TestClaim_LastUnit_TwoRacers_OneWins(t *testing.T) {
	// GIVEN: A reward with exactly one unit left and two funded partners
	// WHEN: Both claim concurrently
	// THEN: Exactly one claim succeeds; the loser keeps its full balance

	engine, s := newTestEngine(t)
	seedPartner(t, s, "a", 500, loyalty.StatusActive)
	seedPartner(t, s, "b", 500, loyalty.StatusActive)
	seedReward(t, s, "last", 300, 1)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(map[string]error, 2)
	var mu sync.Mutex
	for _, id := range []string{"a", "b"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := engine.Claim(ctx, loyalty.PartnerID(id), "last", "")
			mu.Lock()
			errs[id] = err
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	wins := 0
	for id, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, loyalty.ErrRewardOutOfStock)
		account, gerr := s.GetAccount(ctx, loyalty.PartnerID(id))
		require.NoError(t, gerr)
		assert.Equal(t, int64(500), account.Balance, "loser %s must be refunded by rollback", id)
	}
	assert.Equal(t, 1, wins)

	reward, err := s.GetReward(ctx, "last")
	require.NoError(t, err)
	assert.Equal(t, int64(0), reward.Available)
	assert.Equal(t, int64(1), reward.TotalClaimed)
}

func TestClaim_MaxClaimsCap(t *testing.T) {
	// GIVEN: A reward with plenty of stock but a lifetime cap of 1 claim
	// WHEN: Two sequential claims arrive
	// THEN: The second fails as out of stock

	engine, s := newTestEngine(t)
	seedPartner(t, s, "p1", 1000, loyalty.StatusActive)
	ctx := context.Background()
	require.NoError(t, s.SaveReward(ctx, loyalty.Reward{
		ID: "capped", Name: "x", PointsRequired: 100,
		Category: loyalty.RewardMerchandise, Available: 50, MaxClaims: 1, IsActive: true,
	}))

	_, err := engine.Claim(ctx, "p1", "capped", "")
	require.NoError(t, err)

	_, err = engine.Claim(ctx, "p1", "capped", "")
	assert.ErrorIs(t, err, loyalty.ErrRewardOutOfStock)
}

func TestClaim_IdempotencyKeyRejectsReplay(t *testing.T) {
	engine, s := newTestEngine(t)
	seedPartner(t, s, "p1", 1000, loyalty.StatusActive)
	seedReward(t, s, "r1", 100, 10)
	ctx := context.Background()

	_, err := engine.Claim(ctx, "p1", "r1", "claim-1")
	require.NoError(t, err)

	_, err = engine.Claim(ctx, "p1", "r1", "claim-1")
	assert.ErrorIs(t, err, loyalty.ErrDuplicateIdempotencyKey)

	// The replay rolled back: only one debit, one stock decrement.
	account, _ := s.GetAccount(ctx, "p1")
	assert.Equal(t, int64(900), account.Balance)
	reward, _ := s.GetReward(ctx, "r1")
	assert.Equal(t, int64(9), reward.Available)
}

// =============================================================================
// CLAIM LIFECYCLE TESTS
// =============================================================================

func TestSetClaimStatus_HappyPath(t *testing.T) {
	// pending -> approved -> fulfilled
	engine, s := newTestEngine(t)
	seedPartner(t, s, "p1", 1000, loyalty.StatusActive)
	seedReward(t, s, "r1", 100, 5)
	ctx := context.Background()

	claim, err := engine.Claim(ctx, "p1", "r1", "")
	require.NoError(t, err)

	approved, err := engine.SetClaimStatus(ctx, claim.ID, loyalty.ClaimApproved, "looks good")
	require.NoError(t, err)
	assert.Equal(t, loyalty.ClaimApproved, approved.Status)
	assert.NotNil(t, approved.ProcessedAt)
	assert.Equal(t, "looks good", approved.Notes)

	fulfilled, err := engine.SetClaimStatus(ctx, claim.ID, loyalty.ClaimFulfilled, "")
	require.NoError(t, err)
	assert.Equal(t, loyalty.ClaimFulfilled, fulfilled.Status)
}

func TestSetClaimStatus_InvalidTransitions(t *testing.T) {
	engine, s := newTestEngine(t)
	seedPartner(t, s, "p1", 1000, loyalty.StatusActive)
	seedReward(t, s, "r1", 100, 5)
	ctx := context.Background()

	claim, err := engine.Claim(ctx, "p1", "r1", "")
	require.NoError(t, err)

	// pending -> fulfilled skips approval
	_, err = engine.SetClaimStatus(ctx, claim.ID, loyalty.ClaimFulfilled, "")
	assert.ErrorIs(t, err, loyalty.ErrInvalidTransition)

	_, err = engine.SetClaimStatus(ctx, claim.ID, loyalty.ClaimRejected, "no")
	require.NoError(t, err)

	// rejected is terminal
	_, err = engine.SetClaimStatus(ctx, claim.ID, loyalty.ClaimApproved, "")
	assert.ErrorIs(t, err, loyalty.ErrInvalidTransition)
}

func TestSetClaimStatus_RejectionDoesNotRefund(t *testing.T) {
	// Rejected claims forfeit their points; refunds would need a separate
	// compensating transaction.
	engine, s := newTestEngine(t)
	seedPartner(t, s, "p1", 1000, loyalty.StatusActive)
	seedReward(t, s, "r1", 400, 5)
	ctx := context.Background()

	claim, err := engine.Claim(ctx, "p1", "r1", "")
	require.NoError(t, err)

	_, err = engine.SetClaimStatus(ctx, claim.ID, loyalty.ClaimRejected, "out of policy")
	require.NoError(t, err)

	account, err := s.GetAccount(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(600), account.Balance)
}

func TestSetClaimStatus_NotFound(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.SetClaimStatus(context.Background(), "ghost", loyalty.ClaimApproved, "")
	assert.ErrorIs(t, err, loyalty.ErrClaimNotFound)
}

// =============================================================================
// CATALOG ADMINISTRATION TESTS
// =============================================================================

func TestCreateAndUpdateReward(t *testing.T) {
	engine, s := newTestEngine(t)
	seedPartner(t, s, "p1", 1000, loyalty.StatusActive)
	ctx := context.Background()

	created, err := engine.CreateReward(ctx, loyalty.Reward{
		Name:           "Gift Card",
		PointsRequired: 250,
		Category:       loyalty.RewardGiftCard,
		Available:      20,
		IsActive:       true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	_, err = engine.Claim(ctx, "p1", created.ID, "")
	require.NoError(t, err)

	// An update keeps the claim counter even when stock is restated.
	updated := *created
	updated.Available = 100
	updated.Name = "Gift Card v2"
	result, err := engine.UpdateReward(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.TotalClaimed)
	assert.Equal(t, int64(100), result.Available)
	assert.Equal(t, "Gift Card v2", result.Name)
}
