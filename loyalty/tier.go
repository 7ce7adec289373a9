/*
tier.go - Tier progression and point multipliers

PURPOSE:
  Pure functions mapping lifetime-earned totals to tiers and transaction
  amounts to earned points. No storage access here; the recorder persists
  the results.

MULTIPLIERS:
  Bronze 1.0x, Silver 1.5x, Gold 2.0x. Computed with decimal arithmetic and
  truncated at each step, matching the historical earning behavior exactly:
  points = trunc(trunc(amount) * multiplier).

UPGRADES:
  >= 50,000 lifetime points -> Gold (Bronze jumps directly, no forced pass
  through Silver); >= 10,000 and currently Bronze -> Silver. Tiers never
  downgrade automatically.

SEE ALSO:
  - ledger.go: Uses ComputePoints when recording earnings
  - commission/: Tier-gated commission rates
*/
package loyalty

import "github.com/shopspring/decimal"

// Upgrade thresholds in lifetime-earned points.
const (
	SilverThreshold int64 = 10000
	GoldThreshold   int64 = 50000
)

var multipliers = map[Tier]decimal.Decimal{
	TierBronze: decimal.NewFromInt(1),
	TierSilver: decimal.RequireFromString("1.5"),
	TierGold:   decimal.NewFromInt(2),
}

// Multiplier returns the earning multiplier for a tier.
// Unknown tiers fall back to Bronze.
func Multiplier(tier Tier) decimal.Decimal {
	if m, ok := multipliers[tier]; ok {
		return m
	}
	return multipliers[TierBronze]
}

// ComputePoints converts a transaction amount to earned points for a tier.
// Amounts are already integers in the smallest unit; the product is truncated
// toward zero, never rounded. Negative amounts earn nothing.
func ComputePoints(amount int64, tier Tier) int64 {
	if amount <= 0 {
		return 0
	}
	return decimal.NewFromInt(amount).Mul(Multiplier(tier)).IntPart()
}

// EvaluateUpgrade returns the tier a partner should hold given its lifetime
// earned total, and whether that is a change. Never downgrades.
func EvaluateUpgrade(lifetimeEarned int64, current Tier) (Tier, bool) {
	switch {
	case lifetimeEarned >= GoldThreshold && current != TierGold:
		return TierGold, true
	case lifetimeEarned >= SilverThreshold && current == TierBronze:
		return TierSilver, true
	default:
		return current, false
	}
}
