package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loyalty-engine/loyalty"
	"github.com/warp/loyalty-engine/loyalty/store"
)

// Idempotency keys are scoped per entity, matching the per-table unique
// indexes of the sqlite store. The same key value on a transaction, a claim
// and an accrual must never collide across entities.
func TestMemory_IdempotencyKeysScopedPerEntity(t *testing.T) {
	s := store.NewTxMemory()
	ctx := context.Background()

	require.NoError(t, s.AppendTransaction(ctx, loyalty.Transaction{
		ID: "tx-1", PartnerID: "p1", IdempotencyKey: "key-1",
	}))
	require.NoError(t, s.AppendClaim(ctx, loyalty.Claim{
		ID: "cl-1", PartnerID: "p1", Status: loyalty.ClaimPending, IdempotencyKey: "key-1",
	}))
	require.NoError(t, s.AppendAccrual(ctx, loyalty.Accrual{
		ID: "ac-1", PartnerID: "p1", IdempotencyKey: "key-1",
	}))

	// Within an entity the key still dedupes.
	assert.ErrorIs(t, s.AppendTransaction(ctx, loyalty.Transaction{
		ID: "tx-2", PartnerID: "p1", IdempotencyKey: "key-1",
	}), loyalty.ErrDuplicateIdempotencyKey)
	assert.ErrorIs(t, s.AppendClaim(ctx, loyalty.Claim{
		ID: "cl-2", PartnerID: "p1", Status: loyalty.ClaimPending, IdempotencyKey: "key-1",
	}), loyalty.ErrDuplicateIdempotencyKey)
	assert.ErrorIs(t, s.AppendAccrual(ctx, loyalty.Accrual{
		ID: "ac-2", PartnerID: "p1", IdempotencyKey: "key-1",
	}), loyalty.ErrDuplicateIdempotencyKey)
}

func TestMemory_EmptyIdempotencyKeysNeverCollide(t *testing.T) {
	s := store.NewTxMemory()
	ctx := context.Background()

	require.NoError(t, s.AppendAccrual(ctx, loyalty.Accrual{ID: "ac-1", PartnerID: "p1"}))
	require.NoError(t, s.AppendAccrual(ctx, loyalty.Accrual{ID: "ac-2", PartnerID: "p1"}))

	accruals, err := s.AccrualsByPartner(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, accruals, 2)
}

// A rolled-back unit must release the keys it claimed, or a legitimate
// retry of the same event would be rejected forever.
func TestMemory_RollbackReleasesClaimedKeys(t *testing.T) {
	s := store.NewTxMemory()
	ctx := context.Background()

	sentinel := loyalty.ErrNoPendingPayout
	err := s.WithTx(ctx, func(tx loyalty.Store) error {
		if err := tx.AppendAccrual(ctx, loyalty.Accrual{
			ID: "ac-1", PartnerID: "p1", IdempotencyKey: "evt-1",
		}); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	accruals, err := s.AccrualsByPartner(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, accruals)

	require.NoError(t, s.AppendAccrual(ctx, loyalty.Accrual{
		ID: "ac-1", PartnerID: "p1", IdempotencyKey: "evt-1",
	}))
}
