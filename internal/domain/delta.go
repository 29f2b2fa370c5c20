package domain

// ComputeDelta derives the delta record for one timeframe from the trailing
// series. The record compares the last point with the point k positions
// earlier, where k is the timeframe's step count. A series shorter than k+1
// points yields a warmup record with nil deltas and unknown state.
func ComputeDelta(points []SeriesPoint, tf Timeframe) DeltaRecord {
	k := TimeframeSteps[tf]
	rec := DeltaRecord{Timeframe: tf, State: StateUnknown, Lean: LeanNeutral}

	if len(points) < k+1 {
		rec.Warmup = true
		return rec
	}

	last := points[len(points)-1]
	prev := points[len(points)-1-k]

	if prev.Price != 0 {
		rec.PriceChangePct = Float64Ptr((last.Price - prev.Price) / prev.Price * 100)
	}
	if last.OpenInterest != nil && prev.OpenInterest != nil && *prev.OpenInterest != 0 {
		rec.OIChangePct = Float64Ptr((*last.OpenInterest - *prev.OpenInterest) / *prev.OpenInterest * 100)
	}
	if last.FundingRate != nil && prev.FundingRate != nil {
		rec.FundingChange = Float64Ptr(*last.FundingRate - *prev.FundingRate)
	}

	rec.State, rec.Lean = Classify(rec.PriceChangePct, rec.OIChangePct)
	return rec
}

// ComputeLevels derives structural hi/lo/mid levels over the last lookback
// series points. Warmup is set when fewer than lookback points exist; the
// levels then cover whatever trailing window is available.
func ComputeLevels(points []SeriesPoint, lookback int) LevelsRecord {
	rec := LevelsRecord{Warmup: len(points) < lookback}
	if len(points) == 0 {
		return rec
	}

	start := len(points) - lookback
	if start < 0 {
		start = 0
	}
	window := points[start:]

	rec.Hi, rec.Lo = window[0].Price, window[0].Price
	for _, pt := range window[1:] {
		if pt.Price > rec.Hi {
			rec.Hi = pt.Price
		}
		if pt.Price < rec.Lo {
			rec.Lo = pt.Price
		}
	}
	rec.Mid = (rec.Hi + rec.Lo) / 2
	return rec
}

// RecentExtremes returns the min and max price over the last n series points.
// Used by the scalp sweep triggers. ok is false when the series is empty.
func RecentExtremes(points []SeriesPoint, n int) (min, max float64, ok bool) {
	if len(points) == 0 || n <= 0 {
		return 0, 0, false
	}
	start := len(points) - n
	if start < 0 {
		start = 0
	}
	window := points[start:]
	min, max = window[0].Price, window[0].Price
	for _, pt := range window[1:] {
		if pt.Price < min {
			min = pt.Price
		}
		if pt.Price > max {
			max = pt.Price
		}
	}
	return min, max, true
}

// InBand reports whether price sits inside the structural edge band of the
// 1h range for the given direction. The band width is edgePct of the range:
// long is in-band at or below lo+edge, short at or above hi-edge. Both
// directions are in-band when hi == lo+edge.
func InBand(lean Lean, price float64, levels LevelsRecord, edgePct float64) bool {
	edge := edgePct * (levels.Hi - levels.Lo)
	switch lean {
	case LeanLong:
		return price <= levels.Lo+edge
	case LeanShort:
		return price >= levels.Hi-edge
	default:
		return false
	}
}
