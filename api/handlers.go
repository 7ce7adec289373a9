/*
handlers.go - HTTP API handlers for the loyalty engine

PURPOSE:
  Exposes the loyalty and commission engines via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Partners:
    GET    /api/partners                    List all partners
    POST   /api/partners                    Register partner (opens account)
    GET    /api/partners/{id}               Partner with account balances
    GET    /api/partners/{id}/transactions  Earning history
    POST   /api/partners/{id}/earnings      Record an earning
    GET    /api/partners/{id}/claims        List redemption claims
    POST   /api/partners/{id}/claims        Redeem a reward
    GET    /api/partners/{id}/payouts       Distribution history

  Rewards:
    GET    /api/rewards                     List rewards (?active=true)
    POST   /api/rewards                     Create reward (admin)
    PUT    /api/rewards/{id}                Update reward (admin)

  Claims:
    POST   /api/claims/{id}/status          Advance claim status (admin)

  Commissions:
    GET    /api/commissions/{id}            Commission ledger entry
    POST   /api/commissions/{id}/distribute Distribute one partner
    POST   /api/commissions/distribute      Batch distribute

  Platform:
    GET    /api/platform                    Platform fee account
    POST   /api/platform/withdraw           Withdraw accumulated fees

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (recorder, catalog engine, commission engine)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (insufficient points, out of stock, idempotency replay)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.
  Admin routes need an auth middleware before any real deployment.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/loyalty-engine/catalog"
	"github.com/warp/loyalty-engine/commission"
	"github.com/warp/loyalty-engine/loyalty"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      loyalty.TxStore
	Recorder   *loyalty.Recorder
	Catalog    *catalog.Engine
	Commission *commission.Engine
}

// NewHandler creates a handler with all engine dependencies wired.
func NewHandler(store loyalty.TxStore, recorder *loyalty.Recorder, cat *catalog.Engine, com *commission.Engine) *Handler {
	return &Handler{
		Store:      store,
		Recorder:   recorder,
		Catalog:    cat,
		Commission: com,
	}
}

// =============================================================================
// PARTNER ENDPOINTS
// =============================================================================

// ListPartners returns all registered partners.
// GET /api/partners
func (h *Handler) ListPartners(w http.ResponseWriter, r *http.Request) {
	partners, err := h.Store.ListPartners(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list partners", err)
		return
	}

	dtos := make([]PartnerDTO, 0, len(partners))
	for _, p := range partners {
		dtos = append(dtos, toPartnerDTO(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"partners": dtos})
}

// CreatePartner registers a partner and opens its loyalty account.
// POST /api/partners
func (h *Handler) CreatePartner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreatePartnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	status := loyalty.PartnerStatus(req.Status)
	if req.Status == "" {
		status = loyalty.StatusPending
	}

	partner := loyalty.Partner{
		ID:        loyalty.PartnerID(req.ID),
		Name:      req.Name,
		WalletRef: req.WalletRef,
		Tier:      loyalty.TierBronze,
		Status:    status,
	}

	// Registration and account creation succeed or fail together.
	// Insert-only: a taken id is rejected so re-posting a registration can
	// never overwrite an earned tier or status.
	err := h.Store.WithTx(ctx, func(s loyalty.Store) error {
		if _, err := s.GetPartner(ctx, partner.ID); err == nil {
			return loyalty.ErrPartnerExists
		} else if !errors.Is(err, loyalty.ErrPartnerNotFound) {
			return err
		}
		if err := s.SavePartner(ctx, partner); err != nil {
			return err
		}
		return s.CreateAccount(ctx, partner.ID)
	})
	if err != nil {
		writeDomainError(w, "Failed to create partner", err)
		return
	}

	created, err := h.Store.GetPartner(ctx, partner.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load partner", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPartnerDTO(*created))
}

// GetPartner returns a partner together with its loyalty account.
// GET /api/partners/{id}
func (h *Handler) GetPartner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := loyalty.PartnerID(chi.URLParam(r, "id"))

	partner, err := h.Store.GetPartner(ctx, id)
	if err != nil {
		writeDomainError(w, "Failed to get partner", err)
		return
	}
	account, err := h.Store.GetAccount(ctx, id)
	if err != nil {
		writeDomainError(w, "Failed to get account", err)
		return
	}

	writeJSON(w, http.StatusOK, PartnerDetailDTO{
		Partner: toPartnerDTO(*partner),
		Account: toAccountDTO(*account),
	})
}

// GetTransactions returns a partner's earning history in insertion order.
// GET /api/partners/{id}/transactions
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := loyalty.PartnerID(chi.URLParam(r, "id"))

	if _, err := h.Store.GetPartner(ctx, id); err != nil {
		writeDomainError(w, "Failed to get partner", err)
		return
	}

	txs, err := h.Store.TransactionsByPartner(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get transactions", err)
		return
	}

	dtos := make([]TransactionDTO, 0, len(txs))
	for _, tx := range txs {
		dtos = append(dtos, toTransactionDTO(tx))
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": dtos})
}

// RecordEarning records a qualifying purchase and awards points.
// POST /api/partners/{id}/earnings
func (h *Handler) RecordEarning(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := loyalty.PartnerID(chi.URLParam(r, "id"))

	var req RecordEarningRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive", nil)
		return
	}

	kind := loyalty.TransactionKind(req.Kind)
	if req.Kind == "" {
		kind = loyalty.KindPurchase
	}

	tx, err := h.Recorder.Record(ctx, id, req.Amount, kind, req.Description, req.IdempotencyKey)
	if err != nil {
		writeDomainError(w, "Failed to record earning", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(*tx))
}

// GetPayouts returns a partner's distribution history.
// GET /api/partners/{id}/payouts
func (h *Handler) GetPayouts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := loyalty.PartnerID(chi.URLParam(r, "id"))

	if _, err := h.Store.GetPartner(ctx, id); err != nil {
		writeDomainError(w, "Failed to get partner", err)
		return
	}

	payouts, err := h.Store.PayoutsByPartner(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get payouts", err)
		return
	}

	dtos := make([]PayoutDTO, 0, len(payouts))
	for _, p := range payouts {
		dtos = append(dtos, toPayoutDTO(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"payouts": dtos})
}

// =============================================================================
// REWARD ENDPOINTS
// =============================================================================

// ListRewards returns catalog entries, optionally active only.
// GET /api/rewards?active=true
func (h *Handler) ListRewards(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	rewards, err := h.Store.ListRewards(r.Context(), activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rewards", err)
		return
	}

	dtos := make([]RewardDTO, 0, len(rewards))
	for _, rw := range rewards {
		dtos = append(dtos, toRewardDTO(rw))
	}
	writeJSON(w, http.StatusOK, map[string]any{"rewards": dtos})
}

// CreateReward adds a catalog entry.
// POST /api/rewards
func (h *Handler) CreateReward(w http.ResponseWriter, r *http.Request) {
	var req SaveRewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	reward, ok := rewardFromRequest(w, req, loyalty.Reward{})
	if !ok {
		return
	}

	created, err := h.Catalog.CreateReward(r.Context(), reward)
	if err != nil {
		writeDomainError(w, "Failed to create reward", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRewardDTO(*created))
}

// UpdateReward updates a catalog entry in place. Stock and activation
// changes take effect for subsequent claims only.
// PUT /api/rewards/{id}
func (h *Handler) UpdateReward(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := loyalty.RewardID(chi.URLParam(r, "id"))

	existing, err := h.Store.GetReward(ctx, id)
	if err != nil {
		writeDomainError(w, "Failed to get reward", err)
		return
	}

	var req SaveRewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	reward, ok := rewardFromRequest(w, req, *existing)
	if !ok {
		return
	}
	reward.ID = id

	updated, err := h.Catalog.UpdateReward(ctx, reward)
	if err != nil {
		writeDomainError(w, "Failed to update reward", err)
		return
	}
	writeJSON(w, http.StatusOK, toRewardDTO(*updated))
}

func rewardFromRequest(w http.ResponseWriter, req SaveRewardRequest, base loyalty.Reward) (loyalty.Reward, bool) {
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return base, false
	}
	if req.PointsRequired <= 0 {
		writeError(w, http.StatusBadRequest, "points_required must be positive", nil)
		return base, false
	}

	base.Name = req.Name
	base.Description = req.Description
	base.PointsRequired = req.PointsRequired
	base.Category = loyalty.RewardCategory(req.Category)
	base.Available = req.Available
	base.MaxClaims = req.MaxClaims
	if req.IsActive != nil {
		base.IsActive = *req.IsActive
	} else if base.ID == "" {
		base.IsActive = true
	}

	var ok bool
	if base.ValidFrom, ok = parseOptionalTime(w, "valid_from", req.ValidFrom, base.ValidFrom); !ok {
		return base, false
	}
	if base.ValidUntil, ok = parseOptionalTime(w, "valid_until", req.ValidUntil, base.ValidUntil); !ok {
		return base, false
	}
	return base, true
}

// =============================================================================
// CLAIM ENDPOINTS
// =============================================================================

// ClaimReward redeems a reward for a partner.
// POST /api/partners/{id}/claims
func (h *Handler) ClaimReward(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	partnerID := loyalty.PartnerID(chi.URLParam(r, "id"))

	var req ClaimRewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.RewardID == "" {
		writeError(w, http.StatusBadRequest, "reward_id is required", nil)
		return
	}

	claim, err := h.Catalog.Claim(ctx, partnerID, loyalty.RewardID(req.RewardID), req.IdempotencyKey)
	if err != nil {
		writeDomainError(w, "Failed to claim reward", err)
		return
	}
	writeJSON(w, http.StatusCreated, toClaimDTO(*claim))
}

// ListClaims returns a partner's redemption claims.
// GET /api/partners/{id}/claims
func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := loyalty.PartnerID(chi.URLParam(r, "id"))

	if _, err := h.Store.GetPartner(ctx, id); err != nil {
		writeDomainError(w, "Failed to get partner", err)
		return
	}

	claims, err := h.Store.ClaimsByPartner(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get claims", err)
		return
	}

	dtos := make([]ClaimDTO, 0, len(claims))
	for _, c := range claims {
		dtos = append(dtos, toClaimDTO(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"claims": dtos})
}

// SetClaimStatus advances a claim through its lifecycle.
// POST /api/claims/{id}/status
func (h *Handler) SetClaimStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := loyalty.ClaimID(chi.URLParam(r, "id"))

	var req SetClaimStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required", nil)
		return
	}

	claim, err := h.Catalog.SetClaimStatus(ctx, id, loyalty.ClaimStatus(req.Status), req.Notes)
	if err != nil {
		writeDomainError(w, "Failed to update claim", err)
		return
	}
	writeJSON(w, http.StatusOK, toClaimDTO(*claim))
}

// =============================================================================
// COMMISSION ENDPOINTS
// =============================================================================

// GetCommission returns a partner's commission ledger entry.
// GET /api/commissions/{id}
func (h *Handler) GetCommission(w http.ResponseWriter, r *http.Request) {
	ledger, err := h.Store.GetCommission(r.Context(), loyalty.PartnerID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get commission ledger", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommissionDTO(*ledger))
}

// Distribute moves one partner's pending commission into a payout.
// POST /api/commissions/{id}/distribute
func (h *Handler) Distribute(w http.ResponseWriter, r *http.Request) {
	payout, err := h.Commission.Distribute(r.Context(), loyalty.PartnerID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to distribute", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayoutDTO(*payout))
}

// BatchDistribute distributes to many partners, reporting each outcome.
// POST /api/commissions/distribute
func (h *Handler) BatchDistribute(w http.ResponseWriter, r *http.Request) {
	var req BatchDistributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.PartnerIDs) == 0 {
		writeError(w, http.StatusBadRequest, "partner_ids is required", nil)
		return
	}

	ids := make([]loyalty.PartnerID, 0, len(req.PartnerIDs))
	for _, id := range req.PartnerIDs {
		ids = append(ids, loyalty.PartnerID(id))
	}

	results := h.Commission.BatchDistribute(r.Context(), ids)
	dtos := make([]DistributionResultDTO, 0, len(results))
	for _, res := range results {
		dto := DistributionResultDTO{PartnerID: string(res.PartnerID)}
		if res.Payout != nil {
			payout := toPayoutDTO(*res.Payout)
			dto.Payout = &payout
		}
		if res.Err != nil {
			dto.Error = res.Err.Error()
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": dtos})
}

// =============================================================================
// PLATFORM ENDPOINTS
// =============================================================================

// GetPlatform returns the platform fee account.
// GET /api/platform
func (h *Handler) GetPlatform(w http.ResponseWriter, r *http.Request) {
	platform, err := h.Store.GetPlatform(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get platform account", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlatformDTO(*platform))
}

// WithdrawPlatformFee withdraws accumulated platform fees.
// POST /api/platform/withdraw
func (h *Handler) WithdrawPlatformFee(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive", nil)
		return
	}

	if err := h.Commission.WithdrawPlatformFee(r.Context(), req.Amount); err != nil {
		writeDomainError(w, "Failed to withdraw", err)
		return
	}

	platform, err := h.Store.GetPlatform(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get platform account", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlatformDTO(*platform))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case loyalty.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, loyalty.ErrDuplicateIdempotencyKey),
		errors.Is(err, loyalty.ErrPartnerExists),
		errors.Is(err, loyalty.ErrInsufficientPoints),
		errors.Is(err, loyalty.ErrRewardOutOfStock),
		errors.Is(err, loyalty.ErrInvalidTransition):
		writeError(w, http.StatusConflict, message, err)
	case loyalty.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func parseOptionalTime(w http.ResponseWriter, field, value string, fallback *time.Time) (*time.Time, bool) {
	if value == "" {
		return fallback, true
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		writeError(w, http.StatusBadRequest, field+" must be RFC3339", err)
		return nil, false
	}
	return &t, true
}
