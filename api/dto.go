/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Partner:
    PartnerDTO, CreatePartnerRequest

  Loyalty:
    AccountDTO, TransactionDTO, RecordEarningRequest

  Rewards:
    RewardDTO, SaveRewardRequest, ClaimDTO, ClaimRewardRequest,
    SetClaimStatusRequest

  Commission:
    CommissionDTO, PayoutDTO, BatchDistributeRequest,
    DistributionResultDTO, WithdrawRequest

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - loyalty/types.go: Domain model
*/
package api

import (
	"time"

	"github.com/warp/loyalty-engine/loyalty"
)

// =============================================================================
// PARTNER TYPES
// =============================================================================

// PartnerDTO represents a partner in API responses.
type PartnerDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	WalletRef string `json:"wallet_ref,omitempty"`
	Tier      string `json:"tier"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreatePartnerRequest is the request to register a partner.
type CreatePartnerRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	WalletRef string `json:"wallet_ref"`
	Status    string `json:"status"`
}

// PartnerDetailDTO bundles a partner with its loyalty account.
type PartnerDetailDTO struct {
	Partner PartnerDTO `json:"partner"`
	Account AccountDTO `json:"account"`
}

// =============================================================================
// LOYALTY TYPES
// =============================================================================

// AccountDTO represents a loyalty account balance.
type AccountDTO struct {
	PartnerID        string `json:"partner_id"`
	Balance          int64  `json:"balance"`
	LifetimeEarned   int64  `json:"lifetime_earned"`
	LifetimeRedeemed int64  `json:"lifetime_redeemed"`
	UpdatedAt        string `json:"updated_at,omitempty"`
}

// TransactionDTO represents an earning transaction.
type TransactionDTO struct {
	ID             string `json:"id"`
	PartnerID      string `json:"partner_id"`
	Amount         int64  `json:"amount"`
	PointsEarned   int64  `json:"points_earned"`
	Kind           string `json:"kind"`
	Description    string `json:"description,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// RecordEarningRequest is the request to record an earning.
type RecordEarningRequest struct {
	Amount         int64  `json:"amount"`
	Kind           string `json:"kind"`
	Description    string `json:"description"`
	IdempotencyKey string `json:"idempotency_key"`
}

// =============================================================================
// REWARD TYPES
// =============================================================================

// RewardDTO represents a catalog entry in API responses.
type RewardDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	PointsRequired int64  `json:"points_required"`
	Category       string `json:"category"`
	Available      int64  `json:"available"`
	MaxClaims      int64  `json:"max_claims"`
	TotalClaimed   int64  `json:"total_claimed"`
	IsActive       bool   `json:"is_active"`
	ValidFrom      string `json:"valid_from,omitempty"`
	ValidUntil     string `json:"valid_until,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// SaveRewardRequest is the request to create or update a reward.
type SaveRewardRequest struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	PointsRequired int64  `json:"points_required"`
	Category       string `json:"category"`
	Available      int64  `json:"available"`
	MaxClaims      int64  `json:"max_claims"`
	IsActive       *bool  `json:"is_active"`
	ValidFrom      string `json:"valid_from"`
	ValidUntil     string `json:"valid_until"`
}

// ClaimDTO represents a redemption claim.
type ClaimDTO struct {
	ID          string `json:"id"`
	PartnerID   string `json:"partner_id"`
	RewardID    string `json:"reward_id"`
	PointsSpent int64  `json:"points_spent"`
	Status      string `json:"status"`
	ProcessedAt string `json:"processed_at,omitempty"`
	Notes       string `json:"notes,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// ClaimRewardRequest is the request to redeem a reward.
type ClaimRewardRequest struct {
	RewardID       string `json:"reward_id"`
	IdempotencyKey string `json:"idempotency_key"`
}

// SetClaimStatusRequest is the admin request to advance a claim.
type SetClaimStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// =============================================================================
// COMMISSION TYPES
// =============================================================================

// CommissionDTO represents a partner's commission ledger entry.
type CommissionDTO struct {
	PartnerID        string `json:"partner_id"`
	Tier             string `json:"tier"`
	PendingPayout    int64  `json:"pending_payout"`
	TotalDistributed int64  `json:"total_distributed"`
	UpdatedAt        string `json:"updated_at,omitempty"`
}

// PayoutDTO represents a distribution record.
type PayoutDTO struct {
	ID        string `json:"id"`
	PartnerID string `json:"partner_id"`
	Amount    int64  `json:"amount"`
	CreatedAt string `json:"created_at"`
}

// BatchDistributeRequest is the request to distribute to many partners.
type BatchDistributeRequest struct {
	PartnerIDs []string `json:"partner_ids"`
}

// DistributionResultDTO is the per-partner outcome of a batch distribution.
type DistributionResultDTO struct {
	PartnerID string     `json:"partner_id"`
	Payout    *PayoutDTO `json:"payout,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// PlatformDTO represents the platform fee account.
type PlatformDTO struct {
	PlatformBalance  int64  `json:"platform_balance"`
	TotalDistributed int64  `json:"total_distributed"`
	UpdatedAt        string `json:"updated_at,omitempty"`
}

// WithdrawRequest is the request to withdraw accumulated platform fees.
type WithdrawRequest struct {
	Amount int64 `json:"amount"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toPartnerDTO(p loyalty.Partner) PartnerDTO {
	return PartnerDTO{
		ID:        string(p.ID),
		Name:      p.Name,
		WalletRef: p.WalletRef,
		Tier:      string(p.Tier),
		Status:    string(p.Status),
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

func toAccountDTO(a loyalty.LoyaltyAccount) AccountDTO {
	return AccountDTO{
		PartnerID:        string(a.PartnerID),
		Balance:          a.Balance,
		LifetimeEarned:   a.LifetimeEarned,
		LifetimeRedeemed: a.LifetimeRedeemed,
		UpdatedAt:        a.UpdatedAt.Format(time.RFC3339),
	}
}

func toTransactionDTO(tx loyalty.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:             string(tx.ID),
		PartnerID:      string(tx.PartnerID),
		Amount:         tx.Amount,
		PointsEarned:   tx.PointsEarned,
		Kind:           string(tx.Kind),
		Description:    tx.Description,
		IdempotencyKey: tx.IdempotencyKey,
		CreatedAt:      tx.CreatedAt.Format(time.RFC3339),
	}
}

func toRewardDTO(r loyalty.Reward) RewardDTO {
	dto := RewardDTO{
		ID:             string(r.ID),
		Name:           r.Name,
		Description:    r.Description,
		PointsRequired: r.PointsRequired,
		Category:       string(r.Category),
		Available:      r.Available,
		MaxClaims:      r.MaxClaims,
		TotalClaimed:   r.TotalClaimed,
		IsActive:       r.IsActive,
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
	}
	if r.ValidFrom != nil {
		dto.ValidFrom = r.ValidFrom.Format(time.RFC3339)
	}
	if r.ValidUntil != nil {
		dto.ValidUntil = r.ValidUntil.Format(time.RFC3339)
	}
	return dto
}

func toClaimDTO(c loyalty.Claim) ClaimDTO {
	dto := ClaimDTO{
		ID:          string(c.ID),
		PartnerID:   string(c.PartnerID),
		RewardID:    string(c.RewardID),
		PointsSpent: c.PointsSpent,
		Status:      string(c.Status),
		Notes:       c.Notes,
		CreatedAt:   c.CreatedAt.Format(time.RFC3339),
	}
	if c.ProcessedAt != nil {
		dto.ProcessedAt = c.ProcessedAt.Format(time.RFC3339)
	}
	return dto
}

func toCommissionDTO(c loyalty.CommissionLedger) CommissionDTO {
	return CommissionDTO{
		PartnerID:        string(c.PartnerID),
		Tier:             string(c.Tier),
		PendingPayout:    c.PendingPayout,
		TotalDistributed: c.TotalDistributed,
		UpdatedAt:        c.UpdatedAt.Format(time.RFC3339),
	}
}

func toPayoutDTO(p loyalty.Payout) PayoutDTO {
	return PayoutDTO{
		ID:        string(p.ID),
		PartnerID: string(p.PartnerID),
		Amount:    p.Amount,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

func toPlatformDTO(p loyalty.PlatformAccount) PlatformDTO {
	return PlatformDTO{
		PlatformBalance:  p.PlatformBalance,
		TotalDistributed: p.TotalDistributed,
		UpdatedAt:        p.UpdatedAt.Format(time.RFC3339),
	}
}
