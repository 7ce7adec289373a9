/*
Package notify delivers engine events outside the transactional boundary.

PURPOSE:
  The core publishes event descriptors after each committed mutation and
  must never block or fail because of delivery. Dispatcher decouples the
  two: it implements loyalty.Notifier by queueing events on a buffered
  channel and draining them on a single worker goroutine into the real
  sink. A full buffer drops the event and logs it - committed state always
  wins over notification delivery.

USAGE:
  d := notify.NewDispatcher(sink, 128)
  defer d.Close()
  recorder := loyalty.NewRecorder(store, dir, d, accruer)
*/
package notify

import (
	"log"
	"sync"

	"github.com/warp/loyalty-engine/loyalty"
)

// Dispatcher queues events for asynchronous delivery to a sink.
type Dispatcher struct {
	sink   loyalty.Notifier
	queue  chan func(loyalty.Notifier)
	done   chan struct{}
	closed sync.Once
}

// NewDispatcher starts a dispatcher delivering to sink with the given
// buffer size.
func NewDispatcher(sink loyalty.Notifier, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	d := &Dispatcher{
		sink:  sink,
		queue: make(chan func(loyalty.Notifier), buffer),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for deliver := range d.queue {
		deliver(d.sink)
	}
}

// Close stops accepting events and blocks until queued events are
// delivered.
func (d *Dispatcher) Close() {
	d.closed.Do(func() { close(d.queue) })
	<-d.done
}

func (d *Dispatcher) enqueue(kind string, deliver func(loyalty.Notifier)) {
	defer func() {
		// Sends on a closed queue mean events arriving after Close; they
		// are dropped like a full buffer.
		if recover() != nil {
			log.Printf("notify: dropped %s event (dispatcher closed)", kind)
		}
	}()
	select {
	case d.queue <- deliver:
	default:
		log.Printf("notify: dropped %s event (buffer full)", kind)
	}
}

func (d *Dispatcher) BalanceChanged(e loyalty.BalanceChangedEvent) {
	d.enqueue("balance_changed", func(n loyalty.Notifier) { n.BalanceChanged(e) })
}

func (d *Dispatcher) TransactionCreated(e loyalty.TransactionCreatedEvent) {
	d.enqueue("transaction_created", func(n loyalty.Notifier) { n.TransactionCreated(e) })
}

func (d *Dispatcher) RewardClaimed(e loyalty.RewardClaimedEvent) {
	d.enqueue("reward_claimed", func(n loyalty.Notifier) { n.RewardClaimed(e) })
}

func (d *Dispatcher) TierUpgraded(e loyalty.TierUpgradedEvent) {
	d.enqueue("tier_upgraded", func(n loyalty.Notifier) { n.TierUpgraded(e) })
}

var _ loyalty.Notifier = (*Dispatcher)(nil)

// =============================================================================
// LOG SINK
// =============================================================================

// LogSink writes events to the standard logger. Default sink for the
// server; real deployments swap in a webhook or message-bus sink.
type LogSink struct{}

func (LogSink) BalanceChanged(e loyalty.BalanceChangedEvent) {
	log.Printf("event balance_changed partner=%s balance=%d delta=%d", e.PartnerID, e.Balance, e.Delta)
}

func (LogSink) TransactionCreated(e loyalty.TransactionCreatedEvent) {
	log.Printf("event transaction_created partner=%s tx=%s points=%d kind=%s",
		e.Transaction.PartnerID, e.Transaction.ID, e.Transaction.PointsEarned, e.Transaction.Kind)
}

func (LogSink) RewardClaimed(e loyalty.RewardClaimedEvent) {
	log.Printf("event reward_claimed partner=%s claim=%s reward=%s points=%d",
		e.Claim.PartnerID, e.Claim.ID, e.Claim.RewardID, e.Claim.PointsSpent)
}

func (LogSink) TierUpgraded(e loyalty.TierUpgradedEvent) {
	log.Printf("event tier_upgraded partner=%s %s -> %s", e.PartnerID, e.OldTier, e.NewTier)
}

var _ loyalty.Notifier = LogSink{}
