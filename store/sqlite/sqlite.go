/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements loyalty.Store and loyalty.TxStore using SQLite. In production,
  the same patterns apply to PostgreSQL - only minor SQL dialect differences.

ATOMIC CONDITIONAL MUTATIONS:
  The consistency-critical operations are single conditional UPDATEs, so the
  guard and the write are one statement:
  - DebitAccount:     ... WHERE partner_id = ? AND balance >= ?
  - ClaimRewardStock: ... WHERE id = ? AND available > 0 AND cap not reached
  - DebitPlatform:    ... WHERE id = 1 AND platform_balance >= ?
  A zero-row result is then classified (missing row vs failed guard) into the
  matching domain error.

KEY TABLES:
  partners:           Directory mirror with tier and status
  loyalty_accounts:   Balance plus lifetime counters (CHECK balance >= 0)
  transactions:       Immutable earning log, unique idempotency key
  rewards:            Catalog entries with stock and claim caps
  claims:             Redemption instances, unique idempotency key
  commission_ledgers: Pending and distributed commission per partner
  platform_account:   Singleton fee account (id = 1)
  payouts:            Distribution records

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements on the transactions table
  - No UPDATE statements on the payouts table
  - Claims update only their status fields, never the financial ones

CONCURRENCY:
  Uses sync.RWMutex for thread-safety plus SQL transactions for
  multi-statement units. SQLite is opened with WAL (Write-Ahead Logging)
  for better concurrency; with PostgreSQL, database-level row locking
  replaces the mutex.

USAGE:
  store, err := sqlite.New("./data/loyalty.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  err = store.WithTx(ctx, func(s loyalty.Store) error { ... })

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - loyalty/store.go: Interface definitions
  - loyalty/store/memory.go: In-memory equivalent for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/loyalty-engine/loyalty"
)

// Store implements loyalty.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS partners (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		wallet_ref TEXT NOT NULL DEFAULT '',
		tier TEXT NOT NULL DEFAULT 'bronze',
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS loyalty_accounts (
		partner_id TEXT PRIMARY KEY REFERENCES partners(id) ON DELETE CASCADE,
		balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
		lifetime_earned INTEGER NOT NULL DEFAULT 0 CHECK (lifetime_earned >= 0),
		lifetime_redeemed INTEGER NOT NULL DEFAULT 0 CHECK (lifetime_redeemed >= 0),
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		partner_id TEXT NOT NULL,
		amount INTEGER NOT NULL,
		points_earned INTEGER NOT NULL,
		kind TEXT NOT NULL,
		description TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_partner
		ON transactions(partner_id, created_at);

	CREATE TABLE IF NOT EXISTS rewards (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		points_required INTEGER NOT NULL,
		category TEXT NOT NULL,
		available INTEGER NOT NULL DEFAULT 0 CHECK (available >= 0),
		max_claims INTEGER NOT NULL DEFAULT 0,
		total_claimed INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		valid_from TEXT,
		valid_until TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS claims (
		id TEXT PRIMARY KEY,
		partner_id TEXT NOT NULL,
		reward_id TEXT NOT NULL,
		points_spent INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		processed_at TEXT,
		notes TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_claims_partner ON claims(partner_id);
	CREATE INDEX IF NOT EXISTS idx_claims_reward ON claims(reward_id);
	CREATE INDEX IF NOT EXISTS idx_claims_status ON claims(status);

	CREATE TABLE IF NOT EXISTS commission_ledgers (
		partner_id TEXT PRIMARY KEY,
		tier TEXT NOT NULL DEFAULT 'bronze',
		pending_payout INTEGER NOT NULL DEFAULT 0 CHECK (pending_payout >= 0),
		total_distributed INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS platform_account (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		platform_balance INTEGER NOT NULL DEFAULT 0 CHECK (platform_balance >= 0),
		total_distributed INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS payouts (
		id TEXT PRIMARY KEY,
		partner_id TEXT NOT NULL,
		amount INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_payouts_partner ON payouts(partner_id);

	CREATE TABLE IF NOT EXISTS accruals (
		id TEXT PRIMARY KEY,
		partner_id TEXT NOT NULL,
		amount INTEGER NOT NULL,
		commission INTEGER NOT NULL,
		platform_fee INTEGER NOT NULL,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_accruals_partner ON accruals(partner_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Seed the singleton platform row.
	_, err := s.db.Exec(
		`INSERT INTO platform_account (id, platform_balance, total_distributed, updated_at)
		 VALUES (1, 0, 0, ?) ON CONFLICT(id) DO NOTHING`,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// dbtx abstracts *sql.DB and *sql.Tx so every operation works inside or
// outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// PARTNERS
// =============================================================================

func (s *Store) SavePartner(ctx context.Context, p loyalty.Partner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return savePartner(ctx, s.db, p)
}

func savePartner(ctx context.Context, db dbtx, p loyalty.Partner) error {
	query := `
		INSERT INTO partners (id, name, wallet_ref, tier, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			wallet_ref = excluded.wallet_ref,
			tier = excluded.tier,
			status = excluded.status
	`
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx, query,
		p.ID, p.Name, p.WalletRef, p.Tier, p.Status, createdAt.Format(time.RFC3339))
	return err
}

func (s *Store) GetPartner(ctx context.Context, id loyalty.PartnerID) (*loyalty.Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPartner(ctx, s.db, id)
}

func getPartner(ctx context.Context, db dbtx, id loyalty.PartnerID) (*loyalty.Partner, error) {
	var p loyalty.Partner
	var createdAt string
	err := db.QueryRowContext(ctx,
		"SELECT id, name, wallet_ref, tier, status, created_at FROM partners WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &p.WalletRef, &p.Tier, &p.Status, &createdAt)
	if err == sql.ErrNoRows {
		return nil, loyalty.ErrPartnerNotFound
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &p, nil
}

// Partner implements loyalty.Directory. The partners table mirrors the
// external directory; tier and status are read, never decided, here.
func (s *Store) Partner(ctx context.Context, id loyalty.PartnerID) (*loyalty.Partner, error) {
	return s.GetPartner(ctx, id)
}

func (s *Store) ListPartners(ctx context.Context) ([]loyalty.Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, wallet_ref, tier, status, created_at FROM partners ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var partners []loyalty.Partner
	for rows.Next() {
		var p loyalty.Partner
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.WalletRef, &p.Tier, &p.Status, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		partners = append(partners, p)
	}
	return partners, rows.Err()
}

func (s *Store) SetPartnerTier(ctx context.Context, id loyalty.PartnerID, tier loyalty.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setPartnerTier(ctx, s.db, id, tier)
}

func setPartnerTier(ctx context.Context, db dbtx, id loyalty.PartnerID, tier loyalty.Tier) error {
	res, err := db.ExecContext(ctx, "UPDATE partners SET tier = ? WHERE id = ?", tier, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return loyalty.ErrPartnerNotFound
	}
	// Commission rates follow the partner's current tier, so keep the
	// ledger's tier column in step.
	_, err = db.ExecContext(ctx,
		"UPDATE commission_ledgers SET tier = ? WHERE partner_id = ?", tier, id)
	return err
}

func (s *Store) DeletePartner(ctx context.Context, id loyalty.PartnerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deletePartner(ctx, s.db, id)
}

func deletePartner(ctx context.Context, db dbtx, id loyalty.PartnerID) error {
	// loyalty_accounts cascades via the foreign key.
	res, err := db.ExecContext(ctx, "DELETE FROM partners WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return loyalty.ErrPartnerNotFound
	}
	return nil
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (s *Store) CreateAccount(ctx context.Context, id loyalty.PartnerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createAccount(ctx, s.db, id)
}

func createAccount(ctx context.Context, db dbtx, id loyalty.PartnerID) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO loyalty_accounts (partner_id, balance, lifetime_earned, lifetime_redeemed, updated_at)
		 VALUES (?, 0, 0, 0, ?) ON CONFLICT(partner_id) DO NOTHING`,
		id, time.Now().UTC().Format(time.RFC3339))
	return err
}

func (s *Store) GetAccount(ctx context.Context, id loyalty.PartnerID) (*loyalty.LoyaltyAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAccount(ctx, s.db, id)
}

func getAccount(ctx context.Context, db dbtx, id loyalty.PartnerID) (*loyalty.LoyaltyAccount, error) {
	var a loyalty.LoyaltyAccount
	var updatedAt string
	err := db.QueryRowContext(ctx,
		`SELECT partner_id, balance, lifetime_earned, lifetime_redeemed, updated_at
		 FROM loyalty_accounts WHERE partner_id = ?`, id,
	).Scan(&a.PartnerID, &a.Balance, &a.LifetimeEarned, &a.LifetimeRedeemed, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, loyalty.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &a, nil
}

func (s *Store) CreditAccount(ctx context.Context, id loyalty.PartnerID, points int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return creditAccount(ctx, s.db, id, points)
}

func creditAccount(ctx context.Context, db dbtx, id loyalty.PartnerID, points int64) error {
	res, err := db.ExecContext(ctx,
		`UPDATE loyalty_accounts
		 SET balance = balance + ?, lifetime_earned = lifetime_earned + ?, updated_at = ?
		 WHERE partner_id = ?`,
		points, points, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to credit account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return loyalty.ErrAccountNotFound
	}
	return nil
}

func (s *Store) DebitAccount(ctx context.Context, id loyalty.PartnerID, points int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return debitAccount(ctx, s.db, id, points)
}

func debitAccount(ctx context.Context, db dbtx, id loyalty.PartnerID, points int64) error {
	// Guard and write are one statement: no separate read, no lost update.
	res, err := db.ExecContext(ctx,
		`UPDATE loyalty_accounts
		 SET balance = balance - ?, lifetime_redeemed = lifetime_redeemed + ?, updated_at = ?
		 WHERE partner_id = ? AND balance >= ?`,
		points, points, time.Now().UTC().Format(time.RFC3339), id, points)
	if err != nil {
		return fmt.Errorf("failed to debit account: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	// Zero rows: either the account is missing or the balance guard failed.
	account, err := getAccount(ctx, db, id)
	if err != nil {
		return err
	}
	return &loyalty.InsufficientPointsError{
		PartnerID: id,
		Available: account.Balance,
		Requested: points,
	}
}

// =============================================================================
// TRANSACTIONS (append-only)
// =============================================================================

func (s *Store) AppendTransaction(ctx context.Context, tx loyalty.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendTransaction(ctx, s.db, tx)
}

func appendTransaction(ctx context.Context, db dbtx, tx loyalty.Transaction) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO transactions
		 (id, partner_id, amount, points_earned, kind, description, idempotency_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.PartnerID, tx.Amount, tx.PointsEarned, tx.Kind, tx.Description,
		nullString(tx.IdempotencyKey), tx.CreatedAt.Format(time.RFC3339))
	if err != nil {
		if isUniqueConstraintError(err) {
			return loyalty.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

const transactionColumns = `SELECT id, partner_id, amount, points_earned, kind,
	description, idempotency_key, created_at`

func (s *Store) GetTransaction(ctx context.Context, id loyalty.TransactionID) (*loyalty.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getTransaction(ctx, s.db, id)
}

func getTransaction(ctx context.Context, db dbtx, id loyalty.TransactionID) (*loyalty.Transaction, error) {
	txs, err := queryTransactions(ctx, db, transactionColumns+" FROM transactions WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, loyalty.ErrTransactionNotFound
	}
	return &txs[0], nil
}

func (s *Store) TransactionsByPartner(ctx context.Context, id loyalty.PartnerID) ([]loyalty.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionsByPartner(ctx, s.db, id)
}

func transactionsByPartner(ctx context.Context, db dbtx, id loyalty.PartnerID) ([]loyalty.Transaction, error) {
	return queryTransactions(ctx, db,
		transactionColumns+" FROM transactions WHERE partner_id = ? ORDER BY created_at ASC, id ASC", id)
}

func queryTransactions(ctx context.Context, db dbtx, query string, args ...any) ([]loyalty.Transaction, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []loyalty.Transaction
	for rows.Next() {
		var (
			tx             loyalty.Transaction
			description    sql.NullString
			idempotencyKey sql.NullString
			createdAt      string
		)
		if err := rows.Scan(&tx.ID, &tx.PartnerID, &tx.Amount, &tx.PointsEarned,
			&tx.Kind, &description, &idempotencyKey, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.Description = description.String
		tx.IdempotencyKey = idempotencyKey.String
		tx.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

// =============================================================================
// REWARDS
// =============================================================================

func (s *Store) SaveReward(ctx context.Context, r loyalty.Reward) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveReward(ctx, s.db, r)
}

func saveReward(ctx context.Context, db dbtx, r loyalty.Reward) error {
	query := `
		INSERT INTO rewards
		(id, name, description, points_required, category, available, max_claims,
		 total_claimed, is_active, valid_from, valid_until, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			points_required = excluded.points_required,
			category = excluded.category,
			available = excluded.available,
			max_claims = excluded.max_claims,
			is_active = excluded.is_active,
			valid_from = excluded.valid_from,
			valid_until = excluded.valid_until,
			updated_at = excluded.updated_at
	`
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx, query,
		r.ID, r.Name, r.Description, r.PointsRequired, r.Category, r.Available,
		r.MaxClaims, r.TotalClaimed, r.IsActive,
		nullTime(r.ValidFrom), nullTime(r.ValidUntil),
		createdAt.Format(time.RFC3339), time.Now().UTC().Format(time.RFC3339))
	return err
}

const rewardColumns = `SELECT id, name, description, points_required, category, available,
	max_claims, total_claimed, is_active, valid_from, valid_until, created_at, updated_at`

func (s *Store) GetReward(ctx context.Context, id loyalty.RewardID) (*loyalty.Reward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getReward(ctx, s.db, id)
}

func getReward(ctx context.Context, db dbtx, id loyalty.RewardID) (*loyalty.Reward, error) {
	rewards, err := queryRewards(ctx, db, rewardColumns+" FROM rewards WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(rewards) == 0 {
		return nil, loyalty.ErrRewardNotFound
	}
	return &rewards[0], nil
}

func (s *Store) ListRewards(ctx context.Context, activeOnly bool) ([]loyalty.Reward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRewards(ctx, s.db, activeOnly)
}

func listRewards(ctx context.Context, db dbtx, activeOnly bool) ([]loyalty.Reward, error) {
	query := rewardColumns + " FROM rewards ORDER BY name"
	if activeOnly {
		query = rewardColumns + " FROM rewards WHERE is_active = TRUE ORDER BY name"
	}
	return queryRewards(ctx, db, query)
}

func queryRewards(ctx context.Context, db dbtx, query string, args ...any) ([]loyalty.Reward, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rewards: %w", err)
	}
	defer rows.Close()

	var rewards []loyalty.Reward
	for rows.Next() {
		var (
			r                     loyalty.Reward
			description           sql.NullString
			validFrom, validUntil sql.NullString
			createdAt, updatedAt  string
		)
		if err := rows.Scan(&r.ID, &r.Name, &description, &r.PointsRequired, &r.Category,
			&r.Available, &r.MaxClaims, &r.TotalClaimed, &r.IsActive,
			&validFrom, &validUntil, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reward: %w", err)
		}
		r.Description = description.String
		r.ValidFrom = parseNullTime(validFrom)
		r.ValidUntil = parseNullTime(validUntil)
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		rewards = append(rewards, r)
	}
	return rewards, rows.Err()
}

func (s *Store) ClaimRewardStock(ctx context.Context, id loyalty.RewardID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return claimRewardStock(ctx, s.db, id)
}

func claimRewardStock(ctx context.Context, db dbtx, id loyalty.RewardID) error {
	// "Decrement only if stock remains" as one conditional statement.
	res, err := db.ExecContext(ctx,
		`UPDATE rewards
		 SET available = available - 1, total_claimed = total_claimed + 1, updated_at = ?
		 WHERE id = ? AND available > 0 AND (max_claims = 0 OR total_claimed < max_claims)`,
		time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to claim reward stock: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := getReward(ctx, db, id); err != nil {
		return err
	}
	return loyalty.ErrRewardOutOfStock
}

// =============================================================================
// CLAIMS
// =============================================================================

func (s *Store) AppendClaim(ctx context.Context, c loyalty.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendClaim(ctx, s.db, c)
}

func appendClaim(ctx context.Context, db dbtx, c loyalty.Claim) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO claims
		 (id, partner_id, reward_id, points_spent, status, processed_at, notes, idempotency_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.PartnerID, c.RewardID, c.PointsSpent, c.Status,
		nullTime(c.ProcessedAt), c.Notes, nullString(c.IdempotencyKey),
		c.CreatedAt.Format(time.RFC3339))
	if err != nil {
		if isUniqueConstraintError(err) {
			return loyalty.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append claim: %w", err)
	}
	return nil
}

const claimColumns = `SELECT id, partner_id, reward_id, points_spent, status,
	processed_at, notes, idempotency_key, created_at`

func (s *Store) GetClaim(ctx context.Context, id loyalty.ClaimID) (*loyalty.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getClaim(ctx, s.db, id)
}

func getClaim(ctx context.Context, db dbtx, id loyalty.ClaimID) (*loyalty.Claim, error) {
	claims, err := queryClaims(ctx, db, claimColumns+" FROM claims WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(claims) == 0 {
		return nil, loyalty.ErrClaimNotFound
	}
	return &claims[0], nil
}

func (s *Store) ClaimsByPartner(ctx context.Context, id loyalty.PartnerID) ([]loyalty.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return claimsByPartner(ctx, s.db, id)
}

func claimsByPartner(ctx context.Context, db dbtx, id loyalty.PartnerID) ([]loyalty.Claim, error) {
	return queryClaims(ctx, db,
		claimColumns+" FROM claims WHERE partner_id = ? ORDER BY created_at ASC", id)
}

func queryClaims(ctx context.Context, db dbtx, query string, args ...any) ([]loyalty.Claim, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query claims: %w", err)
	}
	defer rows.Close()

	var claims []loyalty.Claim
	for rows.Next() {
		var (
			c                     loyalty.Claim
			processedAt           sql.NullString
			notes, idempotencyKey sql.NullString
			createdAt             string
		)
		if err := rows.Scan(&c.ID, &c.PartnerID, &c.RewardID, &c.PointsSpent, &c.Status,
			&processedAt, &notes, &idempotencyKey, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		c.ProcessedAt = parseNullTime(processedAt)
		c.Notes = notes.String
		c.IdempotencyKey = idempotencyKey.String
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

func (s *Store) UpdateClaimStatus(ctx context.Context, id loyalty.ClaimID, status loyalty.ClaimStatus, processedAt time.Time, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateClaimStatus(ctx, s.db, id, status, processedAt, notes)
}

func updateClaimStatus(ctx context.Context, db dbtx, id loyalty.ClaimID, status loyalty.ClaimStatus, processedAt time.Time, notes string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE claims SET status = ?, processed_at = ?,
		 notes = CASE WHEN ? != '' THEN ? ELSE notes END
		 WHERE id = ?`,
		status, processedAt.Format(time.RFC3339), notes, notes, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return loyalty.ErrClaimNotFound
	}
	return nil
}

// =============================================================================
// COMMISSION LEDGERS
// =============================================================================

func (s *Store) GetCommission(ctx context.Context, id loyalty.PartnerID) (*loyalty.CommissionLedger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getCommission(ctx, s.db, id)
}

func getCommission(ctx context.Context, db dbtx, id loyalty.PartnerID) (*loyalty.CommissionLedger, error) {
	var c loyalty.CommissionLedger
	var updatedAt string
	err := db.QueryRowContext(ctx,
		`SELECT partner_id, tier, pending_payout, total_distributed, updated_at
		 FROM commission_ledgers WHERE partner_id = ?`, id,
	).Scan(&c.PartnerID, &c.Tier, &c.PendingPayout, &c.TotalDistributed, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, loyalty.ErrPartnerNotFound
	}
	if err != nil {
		return nil, err
	}
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &c, nil
}

func (s *Store) AddCommission(ctx context.Context, id loyalty.PartnerID, tier loyalty.Tier, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return addCommission(ctx, s.db, id, tier, amount)
}

func addCommission(ctx context.Context, db dbtx, id loyalty.PartnerID, tier loyalty.Tier, amount int64) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO commission_ledgers (partner_id, tier, pending_payout, total_distributed, updated_at)
		 VALUES (?, ?, ?, 0, ?)
		 ON CONFLICT(partner_id) DO UPDATE SET
			tier = excluded.tier,
			pending_payout = commission_ledgers.pending_payout + excluded.pending_payout,
			updated_at = excluded.updated_at`,
		id, tier, amount, time.Now().UTC().Format(time.RFC3339))
	return err
}

func (s *Store) TakePendingPayout(ctx context.Context, id loyalty.PartnerID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return takePendingPayout(ctx, s.db, id)
}

func takePendingPayout(ctx context.Context, db dbtx, id loyalty.PartnerID) (int64, error) {
	var pending int64
	err := db.QueryRowContext(ctx,
		"SELECT pending_payout FROM commission_ledgers WHERE partner_id = ?", id,
	).Scan(&pending)
	if err == sql.ErrNoRows {
		return 0, loyalty.ErrNoPendingPayout
	}
	if err != nil {
		return 0, err
	}
	if pending == 0 {
		return 0, loyalty.ErrNoPendingPayout
	}

	// Guarded against the read amount: if another unit raced in between,
	// zero rows are affected and the distribution aborts.
	res, err := db.ExecContext(ctx,
		`UPDATE commission_ledgers
		 SET total_distributed = total_distributed + pending_payout, pending_payout = 0, updated_at = ?
		 WHERE partner_id = ? AND pending_payout = ?`,
		time.Now().UTC().Format(time.RFC3339), id, pending)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, loyalty.ErrNoPendingPayout
	}
	return pending, nil
}

func (s *Store) AppendPayout(ctx context.Context, p loyalty.Payout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendPayout(ctx, s.db, p)
}

func appendPayout(ctx context.Context, db dbtx, p loyalty.Payout) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO payouts (id, partner_id, amount, created_at) VALUES (?, ?, ?, ?)",
		p.ID, p.PartnerID, p.Amount, p.CreatedAt.Format(time.RFC3339))
	return err
}

func (s *Store) PayoutsByPartner(ctx context.Context, id loyalty.PartnerID) ([]loyalty.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return payoutsByPartner(ctx, s.db, id)
}

func payoutsByPartner(ctx context.Context, db dbtx, id loyalty.PartnerID) ([]loyalty.Payout, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, partner_id, amount, created_at FROM payouts WHERE partner_id = ? ORDER BY created_at ASC", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payouts []loyalty.Payout
	for rows.Next() {
		var p loyalty.Payout
		var createdAt string
		if err := rows.Scan(&p.ID, &p.PartnerID, &p.Amount, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		payouts = append(payouts, p)
	}
	return payouts, rows.Err()
}

func (s *Store) AppendAccrual(ctx context.Context, a loyalty.Accrual) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendAccrual(ctx, s.db, a)
}

func appendAccrual(ctx context.Context, db dbtx, a loyalty.Accrual) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO accruals
		 (id, partner_id, amount, commission, platform_fee, idempotency_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.PartnerID, a.Amount, a.Commission, a.PlatformFee,
		nullString(a.IdempotencyKey), a.CreatedAt.Format(time.RFC3339))
	if err != nil {
		if isUniqueConstraintError(err) {
			return loyalty.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append accrual: %w", err)
	}
	return nil
}

func (s *Store) AccrualsByPartner(ctx context.Context, id loyalty.PartnerID) ([]loyalty.Accrual, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return accrualsByPartner(ctx, s.db, id)
}

func accrualsByPartner(ctx context.Context, db dbtx, id loyalty.PartnerID) ([]loyalty.Accrual, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, partner_id, amount, commission, platform_fee, idempotency_key, created_at
		 FROM accruals WHERE partner_id = ? ORDER BY created_at ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accruals []loyalty.Accrual
	for rows.Next() {
		var a loyalty.Accrual
		var key sql.NullString
		var createdAt string
		if err := rows.Scan(&a.ID, &a.PartnerID, &a.Amount, &a.Commission, &a.PlatformFee, &key, &createdAt); err != nil {
			return nil, err
		}
		a.IdempotencyKey = key.String
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		accruals = append(accruals, a)
	}
	return accruals, rows.Err()
}

// =============================================================================
// PLATFORM ACCOUNT
// =============================================================================

func (s *Store) GetPlatform(ctx context.Context) (*loyalty.PlatformAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPlatform(ctx, s.db)
}

func getPlatform(ctx context.Context, db dbtx) (*loyalty.PlatformAccount, error) {
	var p loyalty.PlatformAccount
	var updatedAt string
	err := db.QueryRowContext(ctx,
		"SELECT platform_balance, total_distributed, updated_at FROM platform_account WHERE id = 1",
	).Scan(&p.PlatformBalance, &p.TotalDistributed, &updatedAt)
	if err != nil {
		return nil, err
	}
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &p, nil
}

func (s *Store) CreditPlatform(ctx context.Context, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return creditPlatform(ctx, s.db, amount)
}

func creditPlatform(ctx context.Context, db dbtx, amount int64) error {
	_, err := db.ExecContext(ctx,
		"UPDATE platform_account SET platform_balance = platform_balance + ?, updated_at = ? WHERE id = 1",
		amount, time.Now().UTC().Format(time.RFC3339))
	return err
}

func (s *Store) DebitPlatform(ctx context.Context, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return debitPlatform(ctx, s.db, amount)
}

func debitPlatform(ctx context.Context, db dbtx, amount int64) error {
	res, err := db.ExecContext(ctx,
		`UPDATE platform_account
		 SET platform_balance = platform_balance - ?, total_distributed = total_distributed + ?, updated_at = ?
		 WHERE id = 1 AND platform_balance >= ?`,
		amount, amount, time.Now().UTC().Format(time.RFC3339), amount)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	platform, err := getPlatform(ctx, db)
	if err != nil {
		return err
	}
	return &loyalty.InsufficientPointsError{Available: platform.PlatformBalance, Requested: amount}
}

// =============================================================================
// TRANSACTIONAL STORE (loyalty.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction under the store lock.
// If fn returns an error, all changes roll back.
func (s *Store) WithTx(ctx context.Context, fn func(store loyalty.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

var _ loyalty.TxStore = (*Store)(nil)
var _ loyalty.Directory = (*Store)(nil)

// txStore runs every store operation against the open *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) SavePartner(ctx context.Context, p loyalty.Partner) error {
	return savePartner(ctx, ts.tx, p)
}

func (ts *txStore) GetPartner(ctx context.Context, id loyalty.PartnerID) (*loyalty.Partner, error) {
	return getPartner(ctx, ts.tx, id)
}

func (ts *txStore) ListPartners(ctx context.Context) ([]loyalty.Partner, error) {
	rows, err := ts.tx.QueryContext(ctx,
		"SELECT id, name, wallet_ref, tier, status, created_at FROM partners ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var partners []loyalty.Partner
	for rows.Next() {
		var p loyalty.Partner
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.WalletRef, &p.Tier, &p.Status, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		partners = append(partners, p)
	}
	return partners, rows.Err()
}

func (ts *txStore) SetPartnerTier(ctx context.Context, id loyalty.PartnerID, tier loyalty.Tier) error {
	return setPartnerTier(ctx, ts.tx, id, tier)
}

func (ts *txStore) DeletePartner(ctx context.Context, id loyalty.PartnerID) error {
	return deletePartner(ctx, ts.tx, id)
}

func (ts *txStore) CreateAccount(ctx context.Context, id loyalty.PartnerID) error {
	return createAccount(ctx, ts.tx, id)
}

func (ts *txStore) GetAccount(ctx context.Context, id loyalty.PartnerID) (*loyalty.LoyaltyAccount, error) {
	return getAccount(ctx, ts.tx, id)
}

func (ts *txStore) CreditAccount(ctx context.Context, id loyalty.PartnerID, points int64) error {
	return creditAccount(ctx, ts.tx, id, points)
}

func (ts *txStore) DebitAccount(ctx context.Context, id loyalty.PartnerID, points int64) error {
	return debitAccount(ctx, ts.tx, id, points)
}

func (ts *txStore) AppendTransaction(ctx context.Context, tx loyalty.Transaction) error {
	return appendTransaction(ctx, ts.tx, tx)
}

func (ts *txStore) GetTransaction(ctx context.Context, id loyalty.TransactionID) (*loyalty.Transaction, error) {
	return getTransaction(ctx, ts.tx, id)
}

func (ts *txStore) TransactionsByPartner(ctx context.Context, id loyalty.PartnerID) ([]loyalty.Transaction, error) {
	return transactionsByPartner(ctx, ts.tx, id)
}

func (ts *txStore) SaveReward(ctx context.Context, r loyalty.Reward) error {
	return saveReward(ctx, ts.tx, r)
}

func (ts *txStore) GetReward(ctx context.Context, id loyalty.RewardID) (*loyalty.Reward, error) {
	return getReward(ctx, ts.tx, id)
}

func (ts *txStore) ListRewards(ctx context.Context, activeOnly bool) ([]loyalty.Reward, error) {
	return listRewards(ctx, ts.tx, activeOnly)
}

func (ts *txStore) ClaimRewardStock(ctx context.Context, id loyalty.RewardID) error {
	return claimRewardStock(ctx, ts.tx, id)
}

func (ts *txStore) AppendClaim(ctx context.Context, c loyalty.Claim) error {
	return appendClaim(ctx, ts.tx, c)
}

func (ts *txStore) GetClaim(ctx context.Context, id loyalty.ClaimID) (*loyalty.Claim, error) {
	return getClaim(ctx, ts.tx, id)
}

func (ts *txStore) ClaimsByPartner(ctx context.Context, id loyalty.PartnerID) ([]loyalty.Claim, error) {
	return claimsByPartner(ctx, ts.tx, id)
}

func (ts *txStore) UpdateClaimStatus(ctx context.Context, id loyalty.ClaimID, status loyalty.ClaimStatus, processedAt time.Time, notes string) error {
	return updateClaimStatus(ctx, ts.tx, id, status, processedAt, notes)
}

func (ts *txStore) GetCommission(ctx context.Context, id loyalty.PartnerID) (*loyalty.CommissionLedger, error) {
	return getCommission(ctx, ts.tx, id)
}

func (ts *txStore) AddCommission(ctx context.Context, id loyalty.PartnerID, tier loyalty.Tier, amount int64) error {
	return addCommission(ctx, ts.tx, id, tier, amount)
}

func (ts *txStore) TakePendingPayout(ctx context.Context, id loyalty.PartnerID) (int64, error) {
	return takePendingPayout(ctx, ts.tx, id)
}

func (ts *txStore) AppendPayout(ctx context.Context, p loyalty.Payout) error {
	return appendPayout(ctx, ts.tx, p)
}

func (ts *txStore) AppendAccrual(ctx context.Context, a loyalty.Accrual) error {
	return appendAccrual(ctx, ts.tx, a)
}

func (ts *txStore) AccrualsByPartner(ctx context.Context, id loyalty.PartnerID) ([]loyalty.Accrual, error) {
	return accrualsByPartner(ctx, ts.tx, id)
}

func (ts *txStore) PayoutsByPartner(ctx context.Context, id loyalty.PartnerID) ([]loyalty.Payout, error) {
	return payoutsByPartner(ctx, ts.tx, id)
}

func (ts *txStore) GetPlatform(ctx context.Context) (*loyalty.PlatformAccount, error) {
	return getPlatform(ctx, ts.tx)
}

func (ts *txStore) CreditPlatform(ctx context.Context, amount int64) error {
	return creditPlatform(ctx, ts.tx, amount)
}

func (ts *txStore) DebitPlatform(ctx context.Context, amount int64) error {
	return debitPlatform(ctx, ts.tx, amount)
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
