package domain

// Timeframe identifies one of the supported delta horizons. All timeframes
// are multiples of the 5-minute base bucket.
type Timeframe string

const (
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
)

// Timeframes lists all supported timeframes in ascending order.
var Timeframes = []Timeframe{TF5m, TF15m, TF30m, TF1h, TF4h}

// TimeframeSteps maps a timeframe to its step count k in 5-minute buckets.
// A delta for timeframe tf compares the last series point with the point k
// positions earlier.
var TimeframeSteps = map[Timeframe]int{
	TF5m:  1,
	TF15m: 3,
	TF30m: 6,
	TF1h:  12,
	TF4h:  48,
}

const (
	// BucketMs is the width of one time bucket in milliseconds.
	BucketMs int64 = 300_000

	// SeriesMaxPoints caps the rolling series at 24 hours of 5-minute points.
	SeriesMaxPoints = 288

	// LevelsLookback1h and LevelsLookback4h are the series windows used for
	// structural hi/lo/mid levels.
	LevelsLookback1h = 12
	LevelsLookback4h = 48
)

// SnapshotPoint is one ingested observation, written once per instrument per
// bucket. FundingRate and OpenInterest are nil when the upstream field was
// absent or failed to parse.
type SnapshotPoint struct {
	TS           int64    `json:"ts"`
	Price        float64  `json:"price"`
	FundingRate  *float64 `json:"funding_rate,omitempty"`
	OpenInterest *float64 `json:"open_interest_contracts,omitempty"`
}

// SeriesPoint is one entry of the rolling 24h series. Field names are kept
// short because the whole series is serialized on every append.
type SeriesPoint struct {
	Bucket       int64    `json:"b"`
	TS           int64    `json:"ts"`
	Price        float64  `json:"p"`
	FundingRate  *float64 `json:"fr,omitempty"`
	OpenInterest *float64 `json:"oi,omitempty"`
}

// DeltaRecord carries the derived change between the last series point and
// the point k buckets earlier. Percentage fields are nil when either endpoint
// is missing the underlying value. Warmup is true when the series is shorter
// than k+1 points.
type DeltaRecord struct {
	Timeframe      Timeframe `json:"tf"`
	PriceChangePct *float64  `json:"price_change_pct,omitempty"`
	OIChangePct    *float64  `json:"oi_change_pct,omitempty"`
	FundingChange  *float64  `json:"funding_change,omitempty"`
	State          State     `json:"state"`
	Lean           Lean      `json:"lean"`
	Warmup         bool      `json:"warmup"`
}

// LevelsRecord holds structural levels over a trailing window of the series.
// When Warmup is true the window was shorter than the requested lookback and
// Hi/Lo/Mid cover only the points that exist (possibly zero).
type LevelsRecord struct {
	Warmup bool    `json:"warmup"`
	Hi     float64 `json:"hi"`
	Lo     float64 `json:"lo"`
	Mid    float64 `json:"mid"`
}

// Float64Ptr returns a pointer to v. Convenience for optional numeric fields.
func Float64Ptr(v float64) *float64 { return &v }
