package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perpgate/perpgate/internal/domain"
	"github.com/perpgate/perpgate/internal/kv"
	"github.com/perpgate/perpgate/internal/market"
	"github.com/perpgate/perpgate/internal/telemetry"
)

type fakeSource struct {
	prices      map[string]float64
	instruments []market.Instrument
}

func (f *fakeSource) Quote(_ context.Context, instID string) (*market.Quote, error) {
	p, ok := f.prices[instID]
	if !ok {
		return nil, errors.New("ticker unavailable")
	}
	return &market.Quote{
		InstID:                instID,
		Price:                 p,
		TS:                    1_700_000_100_000,
		FundingRate:           domain.Float64Ptr(0.0001),
		OpenInterestContracts: domain.Float64Ptr(5000),
	}, nil
}

func (f *fakeSource) Instruments(context.Context) ([]market.Instrument, error) {
	return f.instruments, nil
}

func newTestIngestor(src *fakeSource) (*Ingestor, *kv.Memory) {
	store := kv.NewMemory()
	resolver := market.NewResolver(store, src)
	return New(store, src, resolver, telemetry.NewUnregistered()), store
}

func TestIngestWritesSnapshotOncePerBucket(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{
		prices:      map[string]float64{"ETH-USDT-SWAP": 1988.0},
		instruments: []market.Instrument{{InstID: "ETH-USDT-SWAP"}},
	}
	ing, store := newTestIngestor(src)

	now := int64(1_700_000_100_000)
	res := ing.Run(ctx, []string{"ETHUSDT"}, now)
	require.Len(t, res.Results, 1)
	require.True(t, res.Results[0].OK, res.Results[0].Error)
	assert.True(t, res.Results[0].Written)

	bucket := domain.Bucket(now)
	raw, found, _ := store.Get(ctx, kv.SnapKey("ETH-USDT-SWAP", bucket))
	require.True(t, found)

	var snap domain.SnapshotPoint
	require.NoError(t, json.Unmarshal(raw, &snap))
	assert.Equal(t, 1988.0, snap.Price)

	// Second run in the same bucket: the first observation stays fixed.
	src.prices["ETH-USDT-SWAP"] = 2100.0
	res = ing.Run(ctx, []string{"ETHUSDT"}, now+60_000)
	require.True(t, res.Results[0].OK)
	assert.False(t, res.Results[0].Written)

	raw, _, _ = store.Get(ctx, kv.SnapKey("ETH-USDT-SWAP", bucket))
	require.NoError(t, json.Unmarshal(raw, &snap))
	assert.Equal(t, 1988.0, snap.Price, "reanchor within a bucket must be idempotent")
}

func TestIngestPerSymbolErrorIsolation(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{
		prices: map[string]float64{"ETH-USDT-SWAP": 1988.0},
		instruments: []market.Instrument{
			{InstID: "ETH-USDT-SWAP"},
			{InstID: "SOL-USDT-SWAP"},
		},
	}
	ing, store := newTestIngestor(src)

	now := int64(1_700_000_100_000)
	res := ing.Run(ctx, []string{"SOLUSDT", "ETHUSDT", "NOPEUSDT"}, now)
	require.Len(t, res.Results, 3)

	assert.False(t, res.Results[0].OK, "SOL quote fails")
	assert.NotEmpty(t, res.Results[0].Error)
	assert.True(t, res.Results[1].OK, "ETH unaffected by SOL failure")
	assert.False(t, res.Results[2].OK, "unknown base resolves to __NONE__")

	_, found, _ := store.Get(ctx, kv.SnapKey("ETH-USDT-SWAP", domain.Bucket(now)))
	assert.True(t, found)
}

func TestIngestNeverTouchesAlertState(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{
		prices:      map[string]float64{"ETH-USDT-SWAP": 1988.0},
		instruments: []market.Instrument{{InstID: "ETH-USDT-SWAP"}},
	}
	ing, store := newTestIngestor(src)

	ing.Run(ctx, []string{"ETHUSDT"}, 1_700_000_100_000)
	assert.Empty(t, store.KeysWithPrefix("alert:"))
	assert.Empty(t, store.KeysWithPrefix("series5m:"))
}
