package domain

// State is the discrete positioning state derived from the joint sign of the
// price and open-interest deltas on one timeframe.
type State string

const (
	StateLongsOpening  State = "longs_opening"
	StateShortsOpening State = "shorts_opening"
	StateShortsClosing State = "shorts_closing"
	StateLongsClosing  State = "longs_closing"
	StateUnknown       State = "unknown"
)

// Lean is the directional interpretation of a State, used for bias
// aggregation across timeframes.
type Lean string

const (
	LeanLong    Lean = "long"
	LeanShort   Lean = "short"
	LeanNeutral Lean = "neutral"
)

// Classify maps a (priceΔ%, oiΔ%) pair to its positioning state and lean.
//
//	priceΔ > 0, oiΔ > 0  → longs opening   (long)
//	priceΔ < 0, oiΔ > 0  → shorts opening  (short)
//	priceΔ > 0, oiΔ ≤ 0  → shorts closing  (long)
//	priceΔ < 0, oiΔ ≤ 0  → longs closing   (short)
//
// Either delta being nil (data absent) yields unknown/neutral, as does a
// price delta of exactly zero.
func Classify(priceChangePct, oiChangePct *float64) (State, Lean) {
	if priceChangePct == nil || oiChangePct == nil {
		return StateUnknown, LeanNeutral
	}
	pd, od := *priceChangePct, *oiChangePct
	switch {
	case pd > 0 && od > 0:
		return StateLongsOpening, LeanLong
	case pd < 0 && od > 0:
		return StateShortsOpening, LeanShort
	case pd > 0:
		return StateShortsClosing, LeanLong
	case pd < 0:
		return StateLongsClosing, LeanShort
	default:
		return StateUnknown, LeanNeutral
	}
}

// Opposite returns the opposing directional lean. Neutral is its own
// opposite.
func (l Lean) Opposite() Lean {
	switch l {
	case LeanLong:
		return LeanShort
	case LeanShort:
		return LeanLong
	default:
		return LeanNeutral
	}
}
