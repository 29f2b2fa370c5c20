// Package render turns winning candidates into the outbound notification
// text. Rendering is pure; the evaluator decides whether anything is sent.
package render

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/perpgate/perpgate/internal/domain"
	"github.com/perpgate/perpgate/internal/gates"
)

// MaxMessageLen is the transport ceiling; Telegram truncates above ~4096 and
// the contract reserves headroom for the drilldown line.
const MaxMessageLen = 3900

// Options carries the invocation-level flags echoed in the header.
type Options struct {
	DriverTF         domain.Timeframe
	Force            bool
	Dry              bool
	DrilldownBaseURL string
	NowMs            int64
}

// Message renders the multi-line notification for the triggered candidates.
// One header, one block per symbol, one drilldown line scoped to the alerted
// symbols plus BTC.
func Message(cands []gates.Candidate, opts Options) string {
	var b strings.Builder

	header := fmt.Sprintf("⚡ PerpGate %s", opts.DriverTF)
	if opts.Force {
		header += " [FORCE]"
	}
	if opts.Dry {
		header += " [DRY]"
	}
	b.WriteString(header)
	b.WriteByte('\n')
	b.WriteString(time.UnixMilli(opts.NowMs).UTC().Format(time.RFC3339))
	b.WriteByte('\n')

	for _, c := range cands {
		b.WriteByte('\n')
		b.WriteString(symbolBlock(c))
	}

	b.WriteByte('\n')
	b.WriteString(drilldownURL(opts.DrilldownBaseURL, cands))

	msg := b.String()
	if len(msg) > MaxMessageLen {
		msg = truncate(msg, MaxMessageLen-len("…")) + "…"
	}
	return msg
}

// truncate cuts the string to at most n bytes on a rune boundary, so the
// arrows and header glyphs never ship as split UTF-8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func symbolBlock(c gates.Candidate) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s %s @ %s | 1h %s / %s\n",
		biasArrow(c.Bias), c.Symbol, strings.ToUpper(string(c.Mode)),
		c.PriceFormatted,
		domain.FormatPrice(c.Levels1h.Hi), domain.FormatPrice(c.Levels1h.Lo))

	fmt.Fprintf(&b, "Entry: %s\n", entryLine(c))

	if c.Grade != "" {
		fmt.Fprintf(&b, "Confidence: %s\n", c.Grade)
	}
	if c.Leverage != nil {
		fmt.Fprintf(&b, "Leverage (advisory): %dx–%dx\n", c.Leverage.Low, c.Leverage.High)
	}

	if zone, stop, target, ok := planLevels(c); ok {
		fmt.Fprintf(&b, "Zone %s–%s | SL %s | TP %s\n",
			domain.FormatPrice(zone[0]), domain.FormatPrice(zone[1]),
			domain.FormatPrice(stop), domain.FormatPrice(target))
	}
	return b.String()
}

// entryLine names the execution path with the explicit structural level it
// references.
func entryLine(c gates.Candidate) string {
	hi := domain.FormatPrice(c.Levels1h.Hi)
	lo := domain.FormatPrice(c.Levels1h.Lo)

	switch c.ExecReason {
	case gates.ExecLongBreakout:
		return fmt.Sprintf("long breakout above 1h high %s", hi)
	case gates.ExecShortBreakdown:
		return fmt.Sprintf("short breakdown below 1h low %s", lo)
	case gates.ExecLongSweepReclaim:
		return fmt.Sprintf("long sweep-and-reclaim of 1h low %s", lo)
	case gates.ExecShortSweepReject:
		return fmt.Sprintf("short sweep-and-reject of 1h high %s", hi)
	case gates.ExecLongReversalConfirm:
		return fmt.Sprintf("long reversal at 1h low band %s", lo)
	case gates.ExecShortReversalConfirm:
		return fmt.Sprintf("short reversal at 1h high band %s", hi)
	default:
		return c.ExecReason
	}
}

// planLevels derives the copy-only entry zone, stop and target from the 1h
// structure. Degenerate ranges render no plan.
func planLevels(c gates.Candidate) (zone [2]float64, stop, target float64, ok bool) {
	hi, lo := c.Levels1h.Hi, c.Levels1h.Lo
	if hi-lo <= 0 {
		return zone, 0, 0, false
	}
	edge := 0.15 * (hi - lo)
	switch c.Bias {
	case domain.LeanLong:
		return [2]float64{lo, lo + edge}, lo - edge/2, c.Levels1h.Mid, true
	case domain.LeanShort:
		return [2]float64{hi - edge, hi}, hi + edge/2, c.Levels1h.Mid, true
	}
	return zone, 0, 0, false
}

func biasArrow(l domain.Lean) string {
	switch l {
	case domain.LeanLong:
		return "🟢"
	case domain.LeanShort:
		return "🔴"
	default:
		return "⚪"
	}
}

// drilldownURL scopes the dashboard link to the alerted symbols plus BTC.
func drilldownURL(base string, cands []gates.Candidate) string {
	seen := map[string]bool{"BTCUSDT": true}
	symbols := []string{"BTCUSDT"}
	for _, c := range cands {
		if !seen[c.Symbol] {
			seen[c.Symbol] = true
			symbols = append(symbols, c.Symbol)
		}
	}
	return fmt.Sprintf("%s?symbols=%s", base, strings.Join(symbols, ","))
}
