package domain

import (
	"fmt"
	"strconv"
)

// Bucket returns the 5-minute bucket index for a UTC-millisecond timestamp.
// Two timestamps with the same bucket index are the same 5-minute cell.
func Bucket(tsMs int64) int64 {
	return tsMs / BucketMs
}

// BucketStartMs returns the timestamp of the bucket's left edge.
func BucketStartMs(bucket int64) int64 {
	return bucket * BucketMs
}

// FormatPrice renders a price with tiered precision: 2 decimals at or above
// 1000, 3 decimals at or above 1, 4 decimals below.
func FormatPrice(p float64) string {
	switch {
	case p >= 1000:
		return strconv.FormatFloat(p, 'f', 2, 64)
	case p >= 1:
		return strconv.FormatFloat(p, 'f', 3, 64)
	default:
		return strconv.FormatFloat(p, 'f', 4, 64)
	}
}

// FormatPct renders a signed percentage with two decimals, e.g. "+0.12%".
func FormatPct(v float64) string {
	return fmt.Sprintf("%+.2f%%", v)
}
