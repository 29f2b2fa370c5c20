package gates

import (
	"math"

	"github.com/perpgate/perpgate/internal/derive"
	"github.com/perpgate/perpgate/internal/domain"
)

// detection evaluates the pre-filter triggers on the mode's detection
// timeframe. It returns the fired trigger name (empty when quiet) and the
// current detection state, which the caller must seed regardless of outcome.
func (c Config) detection(mode Mode, ev *derive.Evaluation, stored domain.State, hasStored bool) (trigger string, current domain.State) {
	det := ev.Deltas[DetectionTF(mode)]
	current = det.State

	if hasStored && stored != current {
		return TriggerSetupFlip, current
	}

	if d5, ok := ev.Deltas[domain.TF5m]; ok && d5.PriceChangePct != nil {
		if math.Abs(*d5.PriceChangePct) >= c.MomentumMin {
			return TriggerMomentumConfirm, current
		}
	}

	// Loosened shock: within a timeframe OI and price relate by OR.
	for _, tf := range []domain.Timeframe{domain.TF5m, domain.TF15m} {
		d, ok := ev.Deltas[tf]
		if !ok {
			continue
		}
		if d.OIChangePct != nil && *d.OIChangePct >= c.ShockOIMin {
			return TriggerPositioningShock, current
		}
		if d.PriceChangePct != nil && math.Abs(*d.PriceChangePct) >= c.ShockPriceMin {
			return TriggerPositioningShock, current
		}
	}

	return "", current
}

// edgePct returns the effective B1 band fraction, widened when the symbol's
// 4h regime shows contraction (quiet price, sharply falling OI).
func (c Config) edgePct(ev *derive.Evaluation) float64 {
	pct := c.EdgePct1h
	if !c.Regime.Enabled {
		return pct
	}
	d4, ok := ev.Deltas[domain.TF4h]
	if !ok || d4.Warmup || d4.PriceChangePct == nil || d4.OIChangePct == nil {
		return pct
	}
	if math.Abs(*d4.PriceChangePct) <= c.Regime.ContractionPriceMax && *d4.OIChangePct <= c.Regime.ContractionOIMax {
		pct *= c.Regime.EdgeWidenMult
	}
	return pct
}

// expansionLean returns the direction of a strong 4h expansion on this
// symbol, or neutral when the regime is not a strong expansion.
func (c Config) expansionLean(ev *derive.Evaluation) domain.Lean {
	d4, ok := ev.Deltas[domain.TF4h]
	if !ok || d4.Warmup || d4.PriceChangePct == nil || d4.OIChangePct == nil {
		return domain.LeanNeutral
	}
	if d4.Lean == domain.LeanLong && *d4.PriceChangePct >= c.Regime.ExpansionPriceMin && *d4.OIChangePct >= c.Regime.ExpansionOIMin {
		return domain.LeanLong
	}
	if d4.Lean == domain.LeanShort && *d4.PriceChangePct <= -c.Regime.ExpansionPriceMin && *d4.OIChangePct >= c.Regime.ExpansionOIMin {
		return domain.LeanShort
	}
	return domain.LeanNeutral
}

// entryResult is the outcome of the per-mode entry validity check.
type entryResult struct {
	execReason string
	b1Strong   bool
	skip       string // set when the entry is invalid
}

// entryValidity runs the mode-specific entry rules against the 1h structure.
func (c Config) entryValidity(mode Mode, bias domain.Lean, ev *derive.Evaluation) entryResult {
	lv := ev.Levels["1h"]
	if lv.Hi-lv.Lo <= 0 || ev.Price <= 0 {
		return entryResult{skip: SkipMissingLevels}
	}

	edge := c.edgePct(ev)
	inBand := domain.InBand(bias, ev.Price, lv, edge)

	b1Strong := inBand
	if c.Regime.Enabled && b1Strong {
		if exp := c.expansionLean(ev); exp != domain.LeanNeutral && exp == bias.Opposite() {
			b1Strong = false
		}
	}

	if mode == ModeScalp {
		return c.scalpEntry(bias, ev, lv, inBand, b1Strong)
	}
	return c.swingEntry(bias, ev, lv, inBand, b1Strong)
}

// scalpEntry requires a breakout or sweep price trigger plus strict 15m OI
// confirmation. A breakout engages the structure directly; the sweep path
// additionally requires the price to sit in the B1 band.
func (c Config) scalpEntry(bias domain.Lean, ev *derive.Evaluation, lv domain.LevelsRecord, inBand, b1Strong bool) entryResult {
	var reason string
	// Sweep detection looks at the points before the current bucket; the
	// current price is the reclaim side of the pattern, not the sweep. The
	// reference structure excludes the sweep window itself, otherwise the
	// wick below the low would become the low and never read as a sweep.
	prior := ev.Series[:len(ev.Series)-1]
	recentMin, recentMax, haveRecent := domain.RecentExtremes(prior, c.ScalpSweepLookback)
	ref, haveRef := sweepReference(prior, c.ScalpSweepLookback)
	haveRecent = haveRecent && haveRef

	switch bias {
	case domain.LeanLong:
		if ev.Price > lv.Hi {
			reason = ExecLongBreakout
		} else if haveRecent && recentMin < ref.Lo && ev.Price > ref.Lo {
			reason = ExecLongSweepReclaim
		}
	case domain.LeanShort:
		if ev.Price < lv.Lo {
			reason = ExecShortBreakdown
		} else if haveRecent && recentMax > ref.Hi && ev.Price < ref.Hi {
			reason = ExecShortSweepReject
		}
	}
	if reason == "" {
		if !inBand {
			return entryResult{skip: SkipOutOfBand}
		}
		return entryResult{skip: SkipNoEntryTrigger}
	}
	if (reason == ExecLongSweepReclaim || reason == ExecShortSweepReject) && !inBand {
		return entryResult{skip: SkipOutOfBand}
	}

	d15 := ev.Deltas[domain.TF15m]
	if d15.OIChangePct == nil || *d15.OIChangePct < c.ShockOIMin {
		return entryResult{skip: SkipOINotConfirmed}
	}

	return entryResult{execReason: reason, b1Strong: b1Strong}
}

// sweepReference recomputes the 1h structure without the last n points so a
// fresh sweep wick is measured against the structure it swept.
func sweepReference(prior []domain.SeriesPoint, n int) (domain.LevelsRecord, bool) {
	if len(prior) <= n {
		return domain.LevelsRecord{}, false
	}
	return domain.ComputeLevels(prior[:len(prior)-n], domain.LevelsLookback1h), true
}

// swingEntry validates the swing/build paths: a structural break, or an
// in-band reversal with a 5m micro-confirm. Both paths reject when 15m OI is
// sharply counter-trend.
func (c Config) swingEntry(bias domain.Lean, ev *derive.Evaluation, lv domain.LevelsRecord, inBand, b1Strong bool) entryResult {
	d15 := ev.Deltas[domain.TF15m]
	if d15.OIChangePct != nil && *d15.OIChangePct < c.SwingMinOIPct {
		return entryResult{skip: SkipOICounterTrend}
	}

	switch bias {
	case domain.LeanLong:
		if ev.Price > lv.Hi {
			return entryResult{execReason: ExecLongBreakout, b1Strong: b1Strong}
		}
	case domain.LeanShort:
		if ev.Price < lv.Lo {
			return entryResult{execReason: ExecShortBreakdown, b1Strong: b1Strong}
		}
	}

	if !inBand {
		return entryResult{skip: SkipOutOfBand}
	}

	d5 := ev.Deltas[domain.TF5m]
	if d5.PriceChangePct != nil {
		switch bias {
		case domain.LeanLong:
			if *d5.PriceChangePct >= c.SwingReversalMin5m {
				return entryResult{execReason: ExecLongReversalConfirm, b1Strong: b1Strong}
			}
		case domain.LeanShort:
			if *d5.PriceChangePct <= -c.SwingReversalMin5m {
				return entryResult{execReason: ExecShortReversalConfirm, b1Strong: b1Strong}
			}
		}
	}

	return entryResult{skip: SkipNoEntryTrigger}
}
