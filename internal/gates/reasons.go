package gates

// Skip reasons classify why a gate denied. They show up in debug payloads,
// the heartbeat and the skip-reason metrics.
const (
	SkipNoPerpetual     = "no_perpetual"
	SkipSnapshotMissing = "snapshot_missing"
	SkipNoDetection     = "no_detection_trigger"
	SkipCooldown        = "cooldown"
	SkipNeutralBias     = "neutral_bias"
	SkipMacroBlock      = "macro_block_btc_bull_expansion"
	SkipWarmup1h        = "warmup_gate_1h"
	SkipMissingLevels   = "missing_levels_or_price"
	SkipOutOfBand       = "b1_out_of_band"
	SkipNoEntryTrigger  = "no_entry_trigger"
	SkipOINotConfirmed  = "oi15m_not_confirmed"
	SkipOICounterTrend  = "oi15m_counter_trend"
	SkipDeriveError     = "derive_error"
)

// Execution reasons name the entry path that validated the candidate. The
// rendered entry line and the confidence grade both key off these.
const (
	ExecLongBreakout         = "long_breakout"
	ExecShortBreakdown       = "short_breakdown"
	ExecLongSweepReclaim     = "long_sweep_reclaim"
	ExecShortSweepReject     = "short_sweep_reject"
	ExecLongReversalConfirm  = "long_reversal_confirm"
	ExecShortReversalConfirm = "short_reversal_confirm"
)

// Detection trigger names, recorded for debug output.
const (
	TriggerSetupFlip        = "setup_flip"
	TriggerMomentumConfirm  = "momentum_confirm"
	TriggerPositioningShock = "positioning_shock"
)
