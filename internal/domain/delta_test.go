package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildSeries produces n consecutive points with a linear price ramp and a
// constant OI slope so every timeframe has a deterministic delta.
func buildSeries(n int, startPrice, priceStep, startOI, oiStep float64) []SeriesPoint {
	pts := make([]SeriesPoint, 0, n)
	for i := 0; i < n; i++ {
		pts = append(pts, SeriesPoint{
			Bucket:       int64(1000 + i),
			TS:           BucketStartMs(int64(1000 + i)),
			Price:        startPrice + float64(i)*priceStep,
			OpenInterest: Float64Ptr(startOI + float64(i)*oiStep),
		})
	}
	return pts
}

func TestComputeDeltaWarmup(t *testing.T) {
	pts := buildSeries(9, 100, 1, 5000, 10)

	for _, tf := range []Timeframe{TF1h, TF4h} {
		rec := ComputeDelta(pts, tf)
		assert.True(t, rec.Warmup, "tf %s", tf)
		assert.Nil(t, rec.PriceChangePct)
		assert.Equal(t, StateUnknown, rec.State)
	}

	// 9 points are enough for 5m (k=1), 15m (k=3) and 30m (k=6).
	for _, tf := range []Timeframe{TF5m, TF15m, TF30m} {
		rec := ComputeDelta(pts, tf)
		assert.False(t, rec.Warmup, "tf %s", tf)
		require.NotNil(t, rec.PriceChangePct)
		assert.Positive(t, *rec.PriceChangePct)
	}
}

func TestComputeDeltaValues(t *testing.T) {
	pts := buildSeries(49, 100, 0.5, 10000, -5)

	rec := ComputeDelta(pts, TF1h)
	require.NotNil(t, rec.PriceChangePct)
	require.NotNil(t, rec.OIChangePct)

	// 12 steps back: price 118 -> 124, oi 9940 -> 9880.
	assert.InDelta(t, (124.0-118.0)/118.0*100, *rec.PriceChangePct, 1e-9)
	assert.Negative(t, *rec.OIChangePct)
	assert.Equal(t, StateShortsClosing, rec.State)
	assert.Equal(t, LeanLong, rec.Lean)
}

func TestComputeDeltaMissingOI(t *testing.T) {
	pts := buildSeries(5, 100, 1, 5000, 10)
	pts[len(pts)-1].OpenInterest = nil

	rec := ComputeDelta(pts, TF5m)
	assert.False(t, rec.Warmup)
	require.NotNil(t, rec.PriceChangePct)
	assert.Nil(t, rec.OIChangePct)
	assert.Equal(t, StateUnknown, rec.State)
	assert.Equal(t, LeanNeutral, rec.Lean)
}

func TestComputeLevels(t *testing.T) {
	pts := buildSeries(48, 1900, 2, 0, 0) // prices 1900..1994

	lv := ComputeLevels(pts, LevelsLookback1h)
	assert.False(t, lv.Warmup)
	assert.Equal(t, 1994.0, lv.Hi)
	assert.Equal(t, 1972.0, lv.Lo) // last 12 points start at index 36
	assert.Equal(t, (1994.0+1972.0)/2, lv.Mid)

	short := ComputeLevels(pts[:9], LevelsLookback1h)
	assert.True(t, short.Warmup)
	assert.Equal(t, 1916.0, short.Hi)
	assert.Equal(t, 1900.0, short.Lo)

	empty := ComputeLevels(nil, LevelsLookback1h)
	assert.True(t, empty.Warmup)
	assert.Zero(t, empty.Hi)
}

func TestInBandSymmetry(t *testing.T) {
	lv := LevelsRecord{Hi: 2000, Lo: 1940}
	const edgePct = 0.15
	edge := edgePct * (lv.Hi - lv.Lo) // 9.0

	assert.True(t, InBand(LeanLong, lv.Lo, lv, edgePct))
	assert.True(t, InBand(LeanShort, lv.Hi, lv, edgePct))
	assert.True(t, InBand(LeanLong, lv.Lo+edge, lv, edgePct))
	assert.False(t, InBand(LeanLong, lv.Lo+edge+0.01, lv, edgePct))
	assert.False(t, InBand(LeanNeutral, lv.Lo, lv, edgePct))

	// Degenerate range where hi == lo+edge: both directions in-band.
	deg := LevelsRecord{Hi: 100, Lo: 100}
	assert.True(t, InBand(LeanLong, 100, deg, edgePct))
	assert.True(t, InBand(LeanShort, 100, deg, edgePct))
}

func TestRecentExtremes(t *testing.T) {
	pts := buildSeries(10, 100, 1, 0, 0)
	min, max, ok := RecentExtremes(pts, 3)
	assert.True(t, ok)
	assert.Equal(t, 107.0, min)
	assert.Equal(t, 109.0, max)

	_, _, ok = RecentExtremes(nil, 3)
	assert.False(t, ok)
}
