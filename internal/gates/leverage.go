package gates

import (
	"math"

	"github.com/perpgate/perpgate/internal/domain"
)

// LeverageBand is the advisory (copy-only) leverage range attached to a
// winning candidate. It never changes gating.
type LeverageBand struct {
	Low  int `json:"low"`
	High int `json:"high"`
}

// AdvisoryLeverage sizes a leverage band from the distance to the structural
// invalidation level (1h lo for longs, 1h hi for shorts), scaled down for OI
// instability and funding magnitude, capped by MaxCap. ok is false when no
// sensible band exists (zero distance, neutral bias, degenerate levels).
func (c Config) AdvisoryLeverage(bias domain.Lean, price float64, lv domain.LevelsRecord, d5, d15 domain.DeltaRecord) (LeverageBand, bool) {
	if !c.Leverage.Enabled || price <= 0 {
		return LeverageBand{}, false
	}

	var invalidation float64
	switch bias {
	case domain.LeanLong:
		invalidation = lv.Lo
	case domain.LeanShort:
		invalidation = lv.Hi
	default:
		return LeverageBand{}, false
	}

	distPct := math.Abs(price-invalidation) / price * 100
	if distPct <= 0 {
		return LeverageBand{}, false
	}

	adj := math.Floor(c.Leverage.RiskBudgetPct / distPct)

	instability := 0.0
	if d5.OIChangePct != nil {
		instability = math.Abs(*d5.OIChangePct)
	}
	if d15.OIChangePct != nil {
		instability = math.Max(instability, math.Abs(*d15.OIChangePct))
	}
	adj = math.Floor(adj * c.tierMult(instability, c.Leverage.InstabilityTier1, c.Leverage.InstabilityTier2))

	funding := 0.0
	if d15.FundingChange != nil {
		funding = math.Abs(*d15.FundingChange)
	}
	adj = math.Floor(adj * c.tierMult(funding, c.Leverage.FundingTier1, c.Leverage.FundingTier2))

	if adj > float64(c.Leverage.MaxCap) {
		adj = float64(c.Leverage.MaxCap)
	}
	if adj < 1 {
		return LeverageBand{}, false
	}

	return LeverageBand{Low: int(adj) / 2, High: int(adj)}, true
}

// tierMult returns the two-tier downscale multiplier for a magnitude.
func (c Config) tierMult(v, tier1, tier2 float64) float64 {
	switch {
	case v >= tier2:
		return c.Leverage.Tier2Mult
	case v >= tier1:
		return c.Leverage.Tier1Mult
	default:
		return 1.0
	}
}
