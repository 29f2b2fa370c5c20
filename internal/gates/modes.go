package gates

import (
	"github.com/perpgate/perpgate/internal/domain"
)

// Mode is a trading mode. Modes differ in detection timeframe, bias source
// and entry validity rules; when several are enabled the priority order
// scalp > swing > build decides the winner.
type Mode string

const (
	ModeScalp Mode = "scalp"
	ModeSwing Mode = "swing"
	ModeBuild Mode = "build"
)

// modePriority lists modes in winner-selection order.
var modePriority = []Mode{ModeScalp, ModeSwing, ModeBuild}

// ParseMode validates a mode string. ok is false for unknown modes.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeScalp, ModeSwing, ModeBuild:
		return Mode(s), true
	}
	return "", false
}

// OrderModes returns the requested modes in priority order, dropping
// duplicates and unknowns.
func OrderModes(modes []Mode) []Mode {
	requested := make(map[Mode]bool, len(modes))
	for _, m := range modes {
		requested[m] = true
	}
	out := make([]Mode, 0, len(requested))
	for _, m := range modePriority {
		if requested[m] {
			out = append(out, m)
		}
	}
	return out
}

// DetectionTF is the timeframe whose state drives the detection gate:
// 5m for scalp, 15m for swing and build.
func DetectionTF(m Mode) domain.Timeframe {
	if m == ModeScalp {
		return domain.TF5m
	}
	return domain.TF15m
}

// biasFallbacks lists, per mode, the timeframes consulted for bias in order.
// The first non-neutral lean wins.
var biasFallbacks = map[Mode][]domain.Timeframe{
	ModeScalp: {domain.TF5m},
	ModeSwing: {domain.TF1h, domain.TF15m, domain.TF5m},
	ModeBuild: {domain.TF4h, domain.TF1h, domain.TF15m, domain.TF5m},
}

// BiasFor aggregates the mode's directional bias from the delta leans.
func BiasFor(m Mode, deltas map[domain.Timeframe]domain.DeltaRecord) domain.Lean {
	for _, tf := range biasFallbacks[m] {
		if d, ok := deltas[tf]; ok && d.Lean != domain.LeanNeutral {
			return d.Lean
		}
	}
	return domain.LeanNeutral
}
