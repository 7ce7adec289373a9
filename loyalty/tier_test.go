package loyalty_test

import (
	"testing"

	"github.com/warp/loyalty-engine/loyalty"
)

// =============================================================================
// POINT COMPUTATION TESTS
// =============================================================================

func TestComputePoints_TierMultipliers(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		tier   loyalty.Tier
		want   int64
	}{
		{"bronze 1x", 1000, loyalty.TierBronze, 1000},
		{"silver 1.5x", 1000, loyalty.TierSilver, 1500},
		{"gold 2x", 1000, loyalty.TierGold, 2000},
		{"silver truncates fraction", 3, loyalty.TierSilver, 4},   // 4.5 -> 4
		{"silver odd amount", 333, loyalty.TierSilver, 499},       // 499.5 -> 499
		{"zero amount", 0, loyalty.TierGold, 0},
		{"negative amount", -500, loyalty.TierBronze, 0},
		{"unknown tier falls back to 1x", 1000, loyalty.Tier("platinum"), 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := loyalty.ComputePoints(tt.amount, tt.tier); got != tt.want {
				t.Errorf("ComputePoints(%d, %s) = %d, want %d", tt.amount, tt.tier, got, tt.want)
			}
		})
	}
}

func TestComputePoints_MonotonicInTier(t *testing.T) {
	// A higher tier never earns fewer points for the same amount.
	amounts := []int64{1, 7, 99, 1000, 123456}
	for _, amount := range amounts {
		bronze := loyalty.ComputePoints(amount, loyalty.TierBronze)
		silver := loyalty.ComputePoints(amount, loyalty.TierSilver)
		gold := loyalty.ComputePoints(amount, loyalty.TierGold)
		if silver < bronze || gold < silver {
			t.Errorf("amount %d: points not monotonic: bronze=%d silver=%d gold=%d",
				amount, bronze, silver, gold)
		}
	}
}

// =============================================================================
// TIER UPGRADE TESTS
// =============================================================================

func TestEvaluateUpgrade_Thresholds(t *testing.T) {
	tests := []struct {
		name        string
		lifetime    int64
		current     loyalty.Tier
		want        loyalty.Tier
		wantChanged bool
	}{
		{"below silver threshold", 9999, loyalty.TierBronze, loyalty.TierBronze, false},
		{"exactly silver threshold", 10000, loyalty.TierBronze, loyalty.TierSilver, true},
		{"between thresholds", 49999, loyalty.TierBronze, loyalty.TierSilver, true},
		{"exactly gold threshold", 50000, loyalty.TierSilver, loyalty.TierGold, true},
		{"direct bronze to gold", 50000, loyalty.TierBronze, loyalty.TierGold, true},
		{"silver stays silver", 20000, loyalty.TierSilver, loyalty.TierSilver, false},
		{"gold stays gold", 100000, loyalty.TierGold, loyalty.TierGold, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := loyalty.EvaluateUpgrade(tt.lifetime, tt.current)
			if got != tt.want || changed != tt.wantChanged {
				t.Errorf("EvaluateUpgrade(%d, %s) = (%s, %v), want (%s, %v)",
					tt.lifetime, tt.current, got, changed, tt.want, tt.wantChanged)
			}
		})
	}
}

func TestEvaluateUpgrade_NeverDowngrades(t *testing.T) {
	// Tiers ratchet: even a lifetime total below the current tier's
	// threshold never moves a partner down.
	got, changed := loyalty.EvaluateUpgrade(0, loyalty.TierGold)
	if changed || got != loyalty.TierGold {
		t.Errorf("expected gold to stay gold at lifetime 0, got (%s, %v)", got, changed)
	}
	got, changed = loyalty.EvaluateUpgrade(500, loyalty.TierSilver)
	if changed || got != loyalty.TierSilver {
		t.Errorf("expected silver to stay silver at lifetime 500, got (%s, %v)", got, changed)
	}
}
