package gates

import "time"

// Config carries every tunable threshold of the gating pipeline. Defaults
// follow the production values; all of them are overridable through the
// application configuration.
type Config struct {
	Cooldown           time.Duration `yaml:"cooldown"`
	DefaultModes       []Mode        `yaml:"default_modes"`
	DefaultRiskProfile string        `yaml:"default_risk_profile"`

	// Detection gate.
	MomentumMin   float64 `yaml:"momentum_min"`    // |5m priceΔ%| trigger
	ShockOIMin    float64 `yaml:"shock_oi_min"`    // oiΔ% shock trigger, also scalp OI confirm
	ShockPriceMin float64 `yaml:"shock_price_min"` // |priceΔ%| shock trigger

	// Structural edge (B1).
	EdgePct1h float64 `yaml:"edge_pct_1h"`

	// Swing/build entry.
	SwingMinOIPct      float64 `yaml:"swing_min_oi_pct"`      // 15m oiΔ% floor (negative)
	SwingReversalMin5m float64 `yaml:"swing_reversal_min_5m"` // 5m micro-confirm

	// Scalp entry.
	ScalpSweepLookback int `yaml:"scalp_sweep_lookback"`

	// force=1 bypasses detection and cooldown always; the warmup bypass is
	// opt-out because forced evaluations on cold series are a debug tool.
	ForceBypassWarmup bool `yaml:"force_bypass_warmup"`

	Macro    MacroConfig    `yaml:"macro"`
	Regime   RegimeConfig   `yaml:"regime"`
	Leverage LeverageConfig `yaml:"leverage"`

	HeartbeatKey string        `yaml:"heartbeat_key"`
	HeartbeatTTL time.Duration `yaml:"heartbeat_ttl"`

	DrilldownBaseURL string `yaml:"drilldown_base_url"`
	Workers          int    `yaml:"workers"`
}

// MacroConfig drives the BTC risk gate: when BTC is in 4h bull expansion,
// short candidates on alts are denied.
type MacroConfig struct {
	Enabled     bool    `yaml:"enabled"`
	BTCSymbol   string  `yaml:"btc_symbol"`
	Price4hMin  float64 `yaml:"price_4h_min"`
	OI4hMin     float64 `yaml:"oi_4h_min"`
	BlockShorts bool    `yaml:"block_shorts"`
}

// RegimeConfig drives the optional 4h regime hooks: edge-band widening in
// contraction and B1 strength downgrade against a strong opposite expansion.
type RegimeConfig struct {
	Enabled             bool    `yaml:"enabled"`
	ContractionPriceMax float64 `yaml:"contraction_price_max"` // |4h priceΔ%| at or below
	ContractionOIMax    float64 `yaml:"contraction_oi_max"`    // 4h oiΔ% at or below (negative)
	EdgeWidenMult       float64 `yaml:"edge_widen_mult"`
	ExpansionPriceMin   float64 `yaml:"expansion_price_min"`
	ExpansionOIMin      float64 `yaml:"expansion_oi_min"`
}

// LeverageConfig drives the advisory (copy-only) leverage band.
type LeverageConfig struct {
	Enabled          bool    `yaml:"enabled"`
	RiskBudgetPct    float64 `yaml:"risk_budget_pct"`
	MaxCap           int     `yaml:"max_cap"`
	InstabilityTier1 float64 `yaml:"instability_tier1"` // max(|oi5m|,|oi15m|) soft tier
	InstabilityTier2 float64 `yaml:"instability_tier2"` // hard tier
	FundingTier1     float64 `yaml:"funding_tier1"`     // |funding| soft tier
	FundingTier2     float64 `yaml:"funding_tier2"`     // hard tier
	Tier1Mult        float64 `yaml:"tier1_mult"`
	Tier2Mult        float64 `yaml:"tier2_mult"`
}

// DefaultConfig returns the production gate thresholds.
func DefaultConfig() Config {
	return Config{
		Cooldown:           20 * time.Minute,
		DefaultModes:       []Mode{ModeSwing},
		DefaultRiskProfile: "standard",

		MomentumMin:   0.10,
		ShockOIMin:    0.50,
		ShockPriceMin: 0.20,

		EdgePct1h: 0.15,

		SwingMinOIPct:      -0.50,
		SwingReversalMin5m: 0.05,

		ScalpSweepLookback: 3,
		ForceBypassWarmup:  true,

		Macro: MacroConfig{
			Enabled:     true,
			BTCSymbol:   "BTCUSDT",
			Price4hMin:  2.0,
			OI4hMin:     0.5,
			BlockShorts: true,
		},
		Regime: RegimeConfig{
			Enabled:             true,
			ContractionPriceMax: 0.5,
			ContractionOIMax:    -1.0,
			EdgeWidenMult:       1.5,
			ExpansionPriceMin:   2.0,
			ExpansionOIMin:      0.5,
		},
		Leverage: LeverageConfig{
			Enabled:          true,
			RiskBudgetPct:    12.0,
			MaxCap:           10,
			InstabilityTier1: 0.8,
			InstabilityTier2: 1.5,
			FundingTier1:     0.0005,
			FundingTier2:     0.001,
			Tier1Mult:        0.75,
			Tier2Mult:        0.6,
		},

		HeartbeatKey: "alert:lastRun",
		HeartbeatTTL: 24 * time.Hour,

		DrilldownBaseURL: "https://perpgate.app/drill",
		Workers:          6,
	}
}
