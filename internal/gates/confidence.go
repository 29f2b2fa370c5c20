package gates

import (
	"math"
	"strings"

	"github.com/perpgate/perpgate/internal/domain"
)

// Confidence grades are mechanical, rule-based classes derived from the
// execution reason and the 15m/1h alignment with the bias. They are
// informational only and never gate.
const (
	GradeA = "A"
	GradeB = "B"
	GradeC = "C"
)

// Grade classifies a winning candidate.
//
//	A: strong B1, reversal-confirmed entry, 15m OI aligned, 1h aligned.
//	B: strong B1, reversal-confirmed entry, 15m OI neutral.
//	C: everything else.
func (c Config) Grade(execReason string, b1Strong bool, bias domain.Lean, d15, d1h domain.DeltaRecord) string {
	reversalConfirmed := strings.Contains(execReason, "reversal") || strings.Contains(execReason, "sweep")

	oiAligned := d15.Lean == bias
	oiNeutral := d15.Lean == domain.LeanNeutral ||
		(d15.OIChangePct != nil && math.Abs(*d15.OIChangePct) < c.ShockOIMin)
	oneHourAligned := d1h.Lean == bias

	switch {
	case b1Strong && reversalConfirmed && oiAligned && oneHourAligned:
		return GradeA
	case b1Strong && reversalConfirmed && oiNeutral:
		return GradeB
	default:
		return GradeC
	}
}
