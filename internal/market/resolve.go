package market

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/perpgate/perpgate/internal/kv"
)

const (
	instMapTTL  = 24 * time.Hour
	instListTTL = 12 * time.Hour
)

// Resolver maps external {BASE}USDT symbols to canonical perpetual
// instrument ids, memoizing results in the KV store. Negative results are
// memoized as the __NONE__ sentinel to prevent refetch storms.
type Resolver struct {
	store  kv.Store
	source Source
}

func NewResolver(store kv.Store, source Source) *Resolver {
	return &Resolver{store: store, source: source}
}

// Resolve returns the instrument id for an external symbol. On first sight
// of a base the SWAP listing is fetched (cached 12h) and scanned for the
// canonical id; a hit is memoized for 24h, a miss as __NONE__ for 24h. If
// the listing fetch fails the canonical guess is used but not memoized.
func (r *Resolver) Resolve(ctx context.Context, symbol string) (string, error) {
	base, ok := BaseOf(symbol)
	if !ok {
		return "", fmt.Errorf("symbol %q: not a USDT perpetual symbol", symbol)
	}

	key := kv.InstMapKey(base)
	if v, found, err := r.store.Get(ctx, key); err == nil && found {
		if string(v) == kv.NoneSentinel {
			return "", fmt.Errorf("symbol %q: %w", symbol, ErrNoPerpetual)
		}
		return string(v), nil
	}

	guess := CanonicalInstID(base)
	listing, err := r.listing(ctx)
	if err != nil {
		log.Warn().Str("base", base).Err(err).Msg("instrument listing unavailable, using canonical guess")
		return guess, nil
	}

	for _, inst := range listing {
		if inst.InstID == guess {
			if err := r.store.Set(ctx, key, []byte(guess), instMapTTL); err != nil {
				log.Warn().Str("base", base).Err(err).Msg("instrument memoization failed")
			}
			return guess, nil
		}
	}

	if err := r.store.Set(ctx, key, []byte(kv.NoneSentinel), instMapTTL); err != nil {
		log.Warn().Str("base", base).Err(err).Msg("sentinel memoization failed")
	}
	return "", fmt.Errorf("symbol %q: %w", symbol, ErrNoPerpetual)
}

// ResolveCached resolves without ever touching the market source: the memo
// is consulted, and on a cold cache the canonical guess is returned. The
// evaluator uses this path so evaluation stays snapshot-only.
func (r *Resolver) ResolveCached(ctx context.Context, symbol string) (string, error) {
	base, ok := BaseOf(symbol)
	if !ok {
		return "", fmt.Errorf("symbol %q: not a USDT perpetual symbol", symbol)
	}
	if v, found, err := r.store.Get(ctx, kv.InstMapKey(base)); err == nil && found {
		if string(v) == kv.NoneSentinel {
			return "", fmt.Errorf("symbol %q: %w", symbol, ErrNoPerpetual)
		}
		return string(v), nil
	}
	return CanonicalInstID(base), nil
}

func (r *Resolver) listing(ctx context.Context) ([]Instrument, error) {
	if v, found, err := r.store.Get(ctx, kv.InstrumentListKey); err == nil && found {
		var cached []Instrument
		if json.Unmarshal(v, &cached) == nil {
			return cached, nil
		}
	}

	listing, err := r.source.Instruments(ctx)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(listing); err == nil {
		if err := r.store.Set(ctx, kv.InstrumentListKey, b, instListTTL); err != nil {
			log.Warn().Err(err).Msg("instrument listing cache write failed")
		}
	}
	return listing, nil
}
