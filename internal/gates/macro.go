package gates

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/perpgate/perpgate/internal/derive"
	"github.com/perpgate/perpgate/internal/domain"
)

// MacroAnalysis is the per-invocation BTC risk read, computed once and
// shared by every symbol pipeline. It is echoed in debug responses.
type MacroAnalysis struct {
	Enabled         bool        `json:"enabled"`
	BTCInst         string      `json:"btc_inst,omitempty"`
	SnapshotMissing bool        `json:"snapshot_missing,omitempty"`
	Lean4h          domain.Lean `json:"lean_4h,omitempty"`
	PriceChange4h   *float64    `json:"price_change_4h,omitempty"`
	OIChange4h      *float64    `json:"oi_change_4h,omitempty"`
	BullExpansion   bool        `json:"bull_expansion"`
}

// analyzeMacro derives BTC's 4h state. BTC is in bull expansion iff the 4h
// lean is long and both the price and OI 4h changes clear their minimums.
// Any missing input means no expansion (the gate fails open for shorts).
func analyzeMacro(ctx context.Context, cfg MacroConfig, eng *derive.Engine, btcInst string, nowMs int64, persist bool) MacroAnalysis {
	ma := MacroAnalysis{Enabled: cfg.Enabled, BTCInst: btcInst}
	if !cfg.Enabled {
		return ma
	}

	ev, err := eng.Evaluate(ctx, btcInst, nowMs, persist)
	if err != nil {
		log.Warn().Str("inst", btcInst).Err(err).Msg("macro derivation failed")
		return ma
	}
	if ev.SnapshotMissing {
		ma.SnapshotMissing = true
		return ma
	}

	d4 := ev.Deltas[domain.TF4h]
	ma.Lean4h = d4.Lean
	ma.PriceChange4h = d4.PriceChangePct
	ma.OIChange4h = d4.OIChangePct

	if d4.Warmup || d4.PriceChangePct == nil || d4.OIChangePct == nil {
		return ma
	}
	ma.BullExpansion = d4.Lean == domain.LeanLong &&
		*d4.PriceChangePct >= cfg.Price4hMin &&
		*d4.OIChangePct >= cfg.OI4hMin
	return ma
}

// blocks reports whether the macro gate denies this candidate: BTC in bull
// expansion, symbol is not BTC itself, and the evaluated bias is short. The
// inverse (bear expansion blocking longs) is deliberately not implemented.
func (ma MacroAnalysis) blocks(cfg MacroConfig, symbol string, bias domain.Lean) bool {
	if !ma.Enabled || !cfg.BlockShorts || !ma.BullExpansion {
		return false
	}
	if symbol == cfg.BTCSymbol {
		return false
	}
	return bias == domain.LeanShort
}
