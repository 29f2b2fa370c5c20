// Package market is the only component allowed to talk to the upstream
// exchange. Everything downstream of the ingestor works from KV snapshots.
package market

import (
	"context"
	"errors"
	"strings"
)

// Quote is one observation for a perpetual instrument. FundingRate and
// OpenInterestContracts are nil when the upstream field was absent or did
// not parse; a missing price is an error, not a zero.
type Quote struct {
	InstID                string
	TS                    int64
	Price                 float64
	FundingRate           *float64
	OpenInterestContracts *float64
}

// Instrument is one entry of the SWAP instrument listing.
type Instrument struct {
	InstID string `json:"instId"`
	State  string `json:"state"`
}

// Source fetches market data for one instrument at a time.
type Source interface {
	Quote(ctx context.Context, instID string) (*Quote, error)
	Instruments(ctx context.Context) ([]Instrument, error)
}

// ErrNoPerpetual is returned when a base symbol has no USDT perpetual market.
var ErrNoPerpetual = errors.New("no perpetual market for symbol")

// BaseOf extracts the base asset from an external {BASE}USDT symbol.
// ok is false for symbols not quoted in USDT.
func BaseOf(symbol string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if !strings.HasSuffix(s, "USDT") || len(s) <= len("USDT") {
		return "", false
	}
	return strings.TrimSuffix(s, "USDT"), true
}

// CanonicalInstID maps a base asset to the canonical perpetual instrument id.
func CanonicalInstID(base string) string {
	return strings.ToUpper(base) + "-USDT-SWAP"
}
