// Package store provides an in-memory loyalty.TxStore implementation
// (for testing/dev). The sqlite store is the production implementation.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/loyalty-engine/loyalty"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	partners     map[loyalty.PartnerID]loyalty.Partner
	accounts     map[loyalty.PartnerID]loyalty.LoyaltyAccount
	transactions []loyalty.Transaction
	rewards      map[loyalty.RewardID]loyalty.Reward
	claims       map[loyalty.ClaimID]loyalty.Claim
	commissions  map[loyalty.PartnerID]loyalty.CommissionLedger
	platform     loyalty.PlatformAccount
	payouts      []loyalty.Payout
	accruals     []loyalty.Accrual

	// Idempotency keys are unique per entity, like the per-table unique
	// indexes in the sqlite store: a transaction key never collides with a
	// claim or accrual key of the same value.
	txKeys      map[string]bool
	claimKeys   map[string]bool
	accrualKeys map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		partners:    make(map[loyalty.PartnerID]loyalty.Partner),
		accounts:    make(map[loyalty.PartnerID]loyalty.LoyaltyAccount),
		rewards:     make(map[loyalty.RewardID]loyalty.Reward),
		claims:      make(map[loyalty.ClaimID]loyalty.Claim),
		commissions: make(map[loyalty.PartnerID]loyalty.CommissionLedger),
		txKeys:      make(map[string]bool),
		claimKeys:   make(map[string]bool),
		accrualKeys: make(map[string]bool),
	}
}

// Directory lets the memory store double as the partner directory in tests.
func (m *Memory) Partner(ctx context.Context, id loyalty.PartnerID) (*loyalty.Partner, error) {
	return m.GetPartner(ctx, id)
}

// -----------------------------------------------------------------------------
// Partners
// -----------------------------------------------------------------------------

func (m *Memory) SavePartner(_ context.Context, p loyalty.Partner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.partners[p.ID] = p
	return nil
}

func (m *Memory) GetPartner(_ context.Context, id loyalty.PartnerID) (*loyalty.Partner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getPartnerLocked(id)
}

func (m *Memory) getPartnerLocked(id loyalty.PartnerID) (*loyalty.Partner, error) {
	p, ok := m.partners[id]
	if !ok {
		return nil, loyalty.ErrPartnerNotFound
	}
	return &p, nil
}

func (m *Memory) ListPartners(_ context.Context) ([]loyalty.Partner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]loyalty.Partner, 0, len(m.partners))
	for _, p := range m.partners {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SetPartnerTier(_ context.Context, id loyalty.PartnerID, tier loyalty.Tier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setPartnerTierLocked(id, tier)
}

func (m *Memory) setPartnerTierLocked(id loyalty.PartnerID, tier loyalty.Tier) error {
	p, ok := m.partners[id]
	if !ok {
		return loyalty.ErrPartnerNotFound
	}
	p.Tier = tier
	m.partners[id] = p
	if c, ok := m.commissions[id]; ok {
		c.Tier = tier
		m.commissions[id] = c
	}
	return nil
}

func (m *Memory) DeletePartner(_ context.Context, id loyalty.PartnerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.partners[id]; !ok {
		return loyalty.ErrPartnerNotFound
	}
	delete(m.partners, id)
	delete(m.accounts, id) // cascade
	return nil
}

// -----------------------------------------------------------------------------
// Accounts
// -----------------------------------------------------------------------------

func (m *Memory) CreateAccount(_ context.Context, id loyalty.PartnerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; !ok {
		m.accounts[id] = loyalty.LoyaltyAccount{PartnerID: id, UpdatedAt: time.Now().UTC()}
	}
	return nil
}

func (m *Memory) GetAccount(_ context.Context, id loyalty.PartnerID) (*loyalty.LoyaltyAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getAccountLocked(id)
}

func (m *Memory) getAccountLocked(id loyalty.PartnerID) (*loyalty.LoyaltyAccount, error) {
	a, ok := m.accounts[id]
	if !ok {
		return nil, loyalty.ErrAccountNotFound
	}
	return &a, nil
}

func (m *Memory) CreditAccount(_ context.Context, id loyalty.PartnerID, points int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creditLocked(id, points)
}

func (m *Memory) creditLocked(id loyalty.PartnerID, points int64) error {
	a, ok := m.accounts[id]
	if !ok {
		return loyalty.ErrAccountNotFound
	}
	a.Balance += points
	a.LifetimeEarned += points
	a.UpdatedAt = time.Now().UTC()
	m.accounts[id] = a
	return nil
}

func (m *Memory) DebitAccount(_ context.Context, id loyalty.PartnerID, points int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.debitLocked(id, points)
}

func (m *Memory) debitLocked(id loyalty.PartnerID, points int64) error {
	a, ok := m.accounts[id]
	if !ok {
		return loyalty.ErrAccountNotFound
	}
	if a.Balance < points {
		return &loyalty.InsufficientPointsError{PartnerID: id, Available: a.Balance, Requested: points}
	}
	a.Balance -= points
	a.LifetimeRedeemed += points
	a.UpdatedAt = time.Now().UTC()
	m.accounts[id] = a
	return nil
}

// -----------------------------------------------------------------------------
// Transactions (append-only)
// -----------------------------------------------------------------------------

func (m *Memory) AppendTransaction(_ context.Context, tx loyalty.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendTransactionLocked(tx)
}

func (m *Memory) appendTransactionLocked(tx loyalty.Transaction) error {
	if tx.IdempotencyKey != "" {
		if m.txKeys[tx.IdempotencyKey] {
			return loyalty.ErrDuplicateIdempotencyKey
		}
		m.txKeys[tx.IdempotencyKey] = true
	}
	m.transactions = append(m.transactions, tx)
	return nil
}

func (m *Memory) GetTransaction(_ context.Context, id loyalty.TransactionID) (*loyalty.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, tx := range m.transactions {
		if tx.ID == id {
			t := tx
			return &t, nil
		}
	}
	return nil, loyalty.ErrTransactionNotFound
}

func (m *Memory) TransactionsByPartner(_ context.Context, id loyalty.PartnerID) ([]loyalty.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []loyalty.Transaction
	for _, tx := range m.transactions {
		if tx.PartnerID == id {
			out = append(out, tx)
		}
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Rewards
// -----------------------------------------------------------------------------

func (m *Memory) SaveReward(_ context.Context, r loyalty.Reward) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rewards[r.ID] = r
	return nil
}

func (m *Memory) GetReward(_ context.Context, id loyalty.RewardID) (*loyalty.Reward, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getRewardLocked(id)
}

func (m *Memory) getRewardLocked(id loyalty.RewardID) (*loyalty.Reward, error) {
	r, ok := m.rewards[id]
	if !ok {
		return nil, loyalty.ErrRewardNotFound
	}
	return &r, nil
}

func (m *Memory) ListRewards(_ context.Context, activeOnly bool) ([]loyalty.Reward, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]loyalty.Reward, 0, len(m.rewards))
	for _, r := range m.rewards {
		if activeOnly && !r.IsActive {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ClaimRewardStock(_ context.Context, id loyalty.RewardID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.claimStockLocked(id)
}

func (m *Memory) claimStockLocked(id loyalty.RewardID) error {
	r, ok := m.rewards[id]
	if !ok {
		return loyalty.ErrRewardNotFound
	}
	if r.Available <= 0 || (r.MaxClaims > 0 && r.TotalClaimed >= r.MaxClaims) {
		return loyalty.ErrRewardOutOfStock
	}
	r.Available--
	r.TotalClaimed++
	r.UpdatedAt = time.Now().UTC()
	m.rewards[id] = r
	return nil
}

// -----------------------------------------------------------------------------
// Claims
// -----------------------------------------------------------------------------

func (m *Memory) AppendClaim(_ context.Context, c loyalty.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendClaimLocked(c)
}

func (m *Memory) appendClaimLocked(c loyalty.Claim) error {
	if c.IdempotencyKey != "" {
		if m.claimKeys[c.IdempotencyKey] {
			return loyalty.ErrDuplicateIdempotencyKey
		}
		m.claimKeys[c.IdempotencyKey] = true
	}
	m.claims[c.ID] = c
	return nil
}

func (m *Memory) GetClaim(_ context.Context, id loyalty.ClaimID) (*loyalty.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.claims[id]
	if !ok {
		return nil, loyalty.ErrClaimNotFound
	}
	return &c, nil
}

func (m *Memory) ClaimsByPartner(_ context.Context, id loyalty.PartnerID) ([]loyalty.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []loyalty.Claim
	for _, c := range m.claims {
		if c.PartnerID == id {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) UpdateClaimStatus(_ context.Context, id loyalty.ClaimID, status loyalty.ClaimStatus, processedAt time.Time, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok {
		return loyalty.ErrClaimNotFound
	}
	c.Status = status
	c.ProcessedAt = &processedAt
	if notes != "" {
		c.Notes = notes
	}
	m.claims[id] = c
	return nil
}

// -----------------------------------------------------------------------------
// Commission
// -----------------------------------------------------------------------------

func (m *Memory) GetCommission(_ context.Context, id loyalty.PartnerID) (*loyalty.CommissionLedger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.commissions[id]
	if !ok {
		return nil, loyalty.ErrPartnerNotFound
	}
	return &c, nil
}

func (m *Memory) AddCommission(_ context.Context, id loyalty.PartnerID, tier loyalty.Tier, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addCommissionLocked(id, tier, amount)
}

func (m *Memory) addCommissionLocked(id loyalty.PartnerID, tier loyalty.Tier, amount int64) error {
	c, ok := m.commissions[id]
	if !ok {
		c = loyalty.CommissionLedger{PartnerID: id}
	}
	c.Tier = tier
	c.PendingPayout += amount
	c.UpdatedAt = time.Now().UTC()
	m.commissions[id] = c
	return nil
}

func (m *Memory) TakePendingPayout(_ context.Context, id loyalty.PartnerID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.takePendingLocked(id)
}

func (m *Memory) takePendingLocked(id loyalty.PartnerID) (int64, error) {
	c, ok := m.commissions[id]
	if !ok || c.PendingPayout == 0 {
		return 0, loyalty.ErrNoPendingPayout
	}
	amount := c.PendingPayout
	c.TotalDistributed += amount
	c.PendingPayout = 0
	c.UpdatedAt = time.Now().UTC()
	m.commissions[id] = c
	return amount, nil
}

func (m *Memory) AppendPayout(_ context.Context, p loyalty.Payout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payouts = append(m.payouts, p)
	return nil
}

func (m *Memory) PayoutsByPartner(_ context.Context, id loyalty.PartnerID) ([]loyalty.Payout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []loyalty.Payout
	for _, p := range m.payouts {
		if p.PartnerID == id {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Memory) AppendAccrual(_ context.Context, a loyalty.Accrual) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendAccrualLocked(a)
}

func (m *Memory) appendAccrualLocked(a loyalty.Accrual) error {
	if a.IdempotencyKey != "" {
		if m.accrualKeys[a.IdempotencyKey] {
			return loyalty.ErrDuplicateIdempotencyKey
		}
		m.accrualKeys[a.IdempotencyKey] = true
	}
	m.accruals = append(m.accruals, a)
	return nil
}

func (m *Memory) AccrualsByPartner(_ context.Context, id loyalty.PartnerID) ([]loyalty.Accrual, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []loyalty.Accrual
	for _, a := range m.accruals {
		if a.PartnerID == id {
			out = append(out, a)
		}
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Platform account
// -----------------------------------------------------------------------------

func (m *Memory) GetPlatform(_ context.Context) (*loyalty.PlatformAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := m.platform
	return &p, nil
}

func (m *Memory) CreditPlatform(_ context.Context, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creditPlatformLocked(amount)
}

func (m *Memory) creditPlatformLocked(amount int64) error {
	m.platform.PlatformBalance += amount
	m.platform.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) DebitPlatform(_ context.Context, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.debitPlatformLocked(amount)
}

func (m *Memory) debitPlatformLocked(amount int64) error {
	if m.platform.PlatformBalance < amount {
		return &loyalty.InsufficientPointsError{Available: m.platform.PlatformBalance, Requested: amount}
	}
	m.platform.PlatformBalance -= amount
	m.platform.TotalDistributed += amount
	m.platform.UpdatedAt = time.Now().UTC()
	return nil
}

var _ loyalty.Store = (*Memory)(nil)

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction, simulated with a snapshot and
// rollback on error. The global lock is held for the whole unit, so
// concurrent units serialize exactly like rows locked in a database.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(loyalty.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

var _ loyalty.TxStore = (*TxMemory)(nil)

type memorySnapshot struct {
	partners     map[loyalty.PartnerID]loyalty.Partner
	accounts     map[loyalty.PartnerID]loyalty.LoyaltyAccount
	transactions []loyalty.Transaction
	rewards      map[loyalty.RewardID]loyalty.Reward
	claims       map[loyalty.ClaimID]loyalty.Claim
	commissions  map[loyalty.PartnerID]loyalty.CommissionLedger
	platform     loyalty.PlatformAccount
	payouts      []loyalty.Payout
	accruals     []loyalty.Accrual
	txKeys       map[string]bool
	claimKeys    map[string]bool
	accrualKeys  map[string]bool
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		partners:     make(map[loyalty.PartnerID]loyalty.Partner, len(tm.partners)),
		accounts:     make(map[loyalty.PartnerID]loyalty.LoyaltyAccount, len(tm.accounts)),
		transactions: append([]loyalty.Transaction{}, tm.transactions...),
		rewards:      make(map[loyalty.RewardID]loyalty.Reward, len(tm.rewards)),
		claims:       make(map[loyalty.ClaimID]loyalty.Claim, len(tm.claims)),
		commissions:  make(map[loyalty.PartnerID]loyalty.CommissionLedger, len(tm.commissions)),
		platform:     tm.platform,
		payouts:      append([]loyalty.Payout{}, tm.payouts...),
		accruals:     append([]loyalty.Accrual{}, tm.accruals...),
		txKeys:       make(map[string]bool, len(tm.txKeys)),
		claimKeys:    make(map[string]bool, len(tm.claimKeys)),
		accrualKeys:  make(map[string]bool, len(tm.accrualKeys)),
	}
	for k, v := range tm.partners {
		s.partners[k] = v
	}
	for k, v := range tm.accounts {
		s.accounts[k] = v
	}
	for k, v := range tm.rewards {
		s.rewards[k] = v
	}
	for k, v := range tm.claims {
		s.claims[k] = v
	}
	for k, v := range tm.commissions {
		s.commissions[k] = v
	}
	for k, v := range tm.txKeys {
		s.txKeys[k] = v
	}
	for k, v := range tm.claimKeys {
		s.claimKeys[k] = v
	}
	for k, v := range tm.accrualKeys {
		s.accrualKeys[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.partners = s.partners
	tm.accounts = s.accounts
	tm.transactions = s.transactions
	tm.rewards = s.rewards
	tm.claims = s.claims
	tm.commissions = s.commissions
	tm.platform = s.platform
	tm.payouts = s.payouts
	tm.accruals = s.accruals
	tm.txKeys = s.txKeys
	tm.claimKeys = s.claimKeys
	tm.accrualKeys = s.accrualKeys
}

// txMemoryView runs store operations against the parent without re-locking.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) SavePartner(_ context.Context, p loyalty.Partner) error {
	tv.parent.partners[p.ID] = p
	return nil
}

func (tv *txMemoryView) GetPartner(_ context.Context, id loyalty.PartnerID) (*loyalty.Partner, error) {
	return tv.parent.getPartnerLocked(id)
}

func (tv *txMemoryView) ListPartners(_ context.Context) ([]loyalty.Partner, error) {
	out := make([]loyalty.Partner, 0, len(tv.parent.partners))
	for _, p := range tv.parent.partners {
		out = append(out, p)
	}
	return out, nil
}

func (tv *txMemoryView) SetPartnerTier(_ context.Context, id loyalty.PartnerID, tier loyalty.Tier) error {
	return tv.parent.setPartnerTierLocked(id, tier)
}

func (tv *txMemoryView) DeletePartner(_ context.Context, id loyalty.PartnerID) error {
	if _, ok := tv.parent.partners[id]; !ok {
		return loyalty.ErrPartnerNotFound
	}
	delete(tv.parent.partners, id)
	delete(tv.parent.accounts, id)
	return nil
}

func (tv *txMemoryView) CreateAccount(_ context.Context, id loyalty.PartnerID) error {
	if _, ok := tv.parent.accounts[id]; !ok {
		tv.parent.accounts[id] = loyalty.LoyaltyAccount{PartnerID: id, UpdatedAt: time.Now().UTC()}
	}
	return nil
}

func (tv *txMemoryView) GetAccount(_ context.Context, id loyalty.PartnerID) (*loyalty.LoyaltyAccount, error) {
	return tv.parent.getAccountLocked(id)
}

func (tv *txMemoryView) CreditAccount(_ context.Context, id loyalty.PartnerID, points int64) error {
	return tv.parent.creditLocked(id, points)
}

func (tv *txMemoryView) DebitAccount(_ context.Context, id loyalty.PartnerID, points int64) error {
	return tv.parent.debitLocked(id, points)
}

func (tv *txMemoryView) AppendTransaction(_ context.Context, tx loyalty.Transaction) error {
	return tv.parent.appendTransactionLocked(tx)
}

func (tv *txMemoryView) GetTransaction(_ context.Context, id loyalty.TransactionID) (*loyalty.Transaction, error) {
	for _, tx := range tv.parent.transactions {
		if tx.ID == id {
			t := tx
			return &t, nil
		}
	}
	return nil, loyalty.ErrTransactionNotFound
}

func (tv *txMemoryView) TransactionsByPartner(_ context.Context, id loyalty.PartnerID) ([]loyalty.Transaction, error) {
	var out []loyalty.Transaction
	for _, tx := range tv.parent.transactions {
		if tx.PartnerID == id {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (tv *txMemoryView) SaveReward(_ context.Context, r loyalty.Reward) error {
	tv.parent.rewards[r.ID] = r
	return nil
}

func (tv *txMemoryView) GetReward(_ context.Context, id loyalty.RewardID) (*loyalty.Reward, error) {
	return tv.parent.getRewardLocked(id)
}

func (tv *txMemoryView) ListRewards(_ context.Context, activeOnly bool) ([]loyalty.Reward, error) {
	var out []loyalty.Reward
	for _, r := range tv.parent.rewards {
		if activeOnly && !r.IsActive {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (tv *txMemoryView) ClaimRewardStock(_ context.Context, id loyalty.RewardID) error {
	return tv.parent.claimStockLocked(id)
}

func (tv *txMemoryView) AppendClaim(_ context.Context, c loyalty.Claim) error {
	return tv.parent.appendClaimLocked(c)
}

func (tv *txMemoryView) GetClaim(_ context.Context, id loyalty.ClaimID) (*loyalty.Claim, error) {
	c, ok := tv.parent.claims[id]
	if !ok {
		return nil, loyalty.ErrClaimNotFound
	}
	return &c, nil
}

func (tv *txMemoryView) ClaimsByPartner(_ context.Context, id loyalty.PartnerID) ([]loyalty.Claim, error) {
	var out []loyalty.Claim
	for _, c := range tv.parent.claims {
		if c.PartnerID == id {
			out = append(out, c)
		}
	}
	return out, nil
}

func (tv *txMemoryView) UpdateClaimStatus(_ context.Context, id loyalty.ClaimID, status loyalty.ClaimStatus, processedAt time.Time, notes string) error {
	c, ok := tv.parent.claims[id]
	if !ok {
		return loyalty.ErrClaimNotFound
	}
	c.Status = status
	c.ProcessedAt = &processedAt
	if notes != "" {
		c.Notes = notes
	}
	tv.parent.claims[id] = c
	return nil
}

func (tv *txMemoryView) GetCommission(_ context.Context, id loyalty.PartnerID) (*loyalty.CommissionLedger, error) {
	c, ok := tv.parent.commissions[id]
	if !ok {
		return nil, loyalty.ErrPartnerNotFound
	}
	return &c, nil
}

func (tv *txMemoryView) AddCommission(_ context.Context, id loyalty.PartnerID, tier loyalty.Tier, amount int64) error {
	return tv.parent.addCommissionLocked(id, tier, amount)
}

func (tv *txMemoryView) TakePendingPayout(_ context.Context, id loyalty.PartnerID) (int64, error) {
	return tv.parent.takePendingLocked(id)
}

func (tv *txMemoryView) AppendPayout(_ context.Context, p loyalty.Payout) error {
	tv.parent.payouts = append(tv.parent.payouts, p)
	return nil
}

func (tv *txMemoryView) AppendAccrual(_ context.Context, a loyalty.Accrual) error {
	return tv.parent.appendAccrualLocked(a)
}

func (tv *txMemoryView) AccrualsByPartner(_ context.Context, id loyalty.PartnerID) ([]loyalty.Accrual, error) {
	var out []loyalty.Accrual
	for _, a := range tv.parent.accruals {
		if a.PartnerID == id {
			out = append(out, a)
		}
	}
	return out, nil
}

func (tv *txMemoryView) PayoutsByPartner(_ context.Context, id loyalty.PartnerID) ([]loyalty.Payout, error) {
	var out []loyalty.Payout
	for _, p := range tv.parent.payouts {
		if p.PartnerID == id {
			out = append(out, p)
		}
	}
	return out, nil
}

func (tv *txMemoryView) GetPlatform(_ context.Context) (*loyalty.PlatformAccount, error) {
	p := tv.parent.platform
	return &p, nil
}

func (tv *txMemoryView) CreditPlatform(_ context.Context, amount int64) error {
	return tv.parent.creditPlatformLocked(amount)
}

func (tv *txMemoryView) DebitPlatform(_ context.Context, amount int64) error {
	return tv.parent.debitPlatformLocked(amount)
}
