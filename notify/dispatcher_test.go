package notify_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loyalty-engine/loyalty"
	"github.com/warp/loyalty-engine/notify"
)

// recordingSink captures delivered events.
type recordingSink struct {
	mu     sync.Mutex
	kinds  []string
	tiers  []loyalty.TierUpgradedEvent
	blocks chan struct{} // when non-nil, deliveries wait on it
}

func (s *recordingSink) record(kind string) {
	if s.blocks != nil {
		<-s.blocks
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds = append(s.kinds, kind)
}

func (s *recordingSink) delivered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.kinds...)
}

func (s *recordingSink) BalanceChanged(loyalty.BalanceChangedEvent) { s.record("balance") }
func (s *recordingSink) TransactionCreated(loyalty.TransactionCreatedEvent) {
	s.record("transaction")
}
func (s *recordingSink) RewardClaimed(loyalty.RewardClaimedEvent) { s.record("claim") }
func (s *recordingSink) TierUpgraded(e loyalty.TierUpgradedEvent) {
	s.record("tier")
	s.mu.Lock()
	s.tiers = append(s.tiers, e)
	s.mu.Unlock()
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	sink := &recordingSink{}
	d := notify.NewDispatcher(sink, 16)

	d.TransactionCreated(loyalty.TransactionCreatedEvent{})
	d.BalanceChanged(loyalty.BalanceChangedEvent{PartnerID: "p1"})
	d.TierUpgraded(loyalty.TierUpgradedEvent{
		PartnerID: "p1",
		OldTier:   loyalty.TierBronze,
		NewTier:   loyalty.TierSilver,
	})
	d.Close()

	assert.Equal(t, []string{"transaction", "balance", "tier"}, sink.delivered())
	require.Len(t, sink.tiers, 1)
	assert.Equal(t, loyalty.TierSilver, sink.tiers[0].NewTier)
}

func TestDispatcher_CloseDrainsQueue(t *testing.T) {
	sink := &recordingSink{}
	d := notify.NewDispatcher(sink, 64)

	for i := 0; i < 50; i++ {
		d.BalanceChanged(loyalty.BalanceChangedEvent{})
	}
	d.Close()

	assert.Len(t, sink.delivered(), 50)
}

func TestDispatcher_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	// GIVEN: A sink stalled mid-delivery and a buffer of 1
	// WHEN: Publishing more events than fit
	// THEN: Publishing returns immediately; overflow is dropped

	sink := &recordingSink{blocks: make(chan struct{})}
	d := notify.NewDispatcher(sink, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			d.RewardClaimed(loyalty.RewardClaimedEvent{})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publishing blocked on a stalled sink")
	}

	close(sink.blocks)
	d.Close()
	assert.LessOrEqual(t, len(sink.delivered()), 10)
}

func TestDispatcher_PublishAfterCloseIsDropped(t *testing.T) {
	sink := &recordingSink{}
	d := notify.NewDispatcher(sink, 4)
	d.Close()

	// Must not panic.
	d.BalanceChanged(loyalty.BalanceChangedEvent{})
	assert.Empty(t, sink.delivered())
}
