// Package ingest is the sole caller of the market source. It writes one
// snapshot per instrument per 5-minute bucket; everything downstream reads
// only the KV store.
package ingest

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/perpgate/perpgate/internal/domain"
	"github.com/perpgate/perpgate/internal/kv"
	"github.com/perpgate/perpgate/internal/market"
	"github.com/perpgate/perpgate/internal/telemetry"
)

const (
	snapshotTTL = 24 * time.Hour
	callTimeout = 8 * time.Second
)

// SymbolResult is the per-symbol outcome of one ingest batch. Either the
// snapshot fields are populated or Error is set; failures never abort the
// batch.
type SymbolResult struct {
	OK       bool                  `json:"ok"`
	Symbol   string                `json:"symbol"`
	InstID   string                `json:"inst,omitempty"`
	Bucket   int64                 `json:"bucket,omitempty"`
	Written  bool                  `json:"written,omitempty"`
	Snapshot *domain.SnapshotPoint `json:"snapshot,omitempty"`
	Error    string                `json:"error,omitempty"`
}

// BatchResult is the response of one scheduled ingest invocation.
type BatchResult struct {
	OK      bool           `json:"ok"`
	TS      int64          `json:"ts"`
	Symbols []string       `json:"symbols"`
	Results []SymbolResult `json:"results"`
}

// Ingestor resolves symbols and writes first-observation-wins snapshots.
// It never emits notifications and never touches alert state.
type Ingestor struct {
	store    kv.Store
	source   market.Source
	resolver *market.Resolver
	metrics  *telemetry.Metrics
	workers  int
}

func New(store kv.Store, source market.Source, resolver *market.Resolver, metrics *telemetry.Metrics) *Ingestor {
	return &Ingestor{
		store:    store,
		source:   source,
		resolver: resolver,
		metrics:  metrics,
		workers:  6,
	}
}

// Run ingests a batch of symbols at nowMs. Symbols are fetched with bounded
// parallelism; each result slot is owned by exactly one worker.
func (ing *Ingestor) Run(ctx context.Context, symbols []string, nowMs int64) BatchResult {
	res := BatchResult{OK: true, TS: nowMs, Symbols: symbols, Results: make([]SymbolResult, len(symbols))}

	sem := make(chan struct{}, ing.workers)
	var wg sync.WaitGroup
	for i, sym := range symbols {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, sym string) {
			defer wg.Done()
			defer func() { <-sem }()
			res.Results[i] = ing.one(ctx, sym, nowMs)
		}(i, sym)
	}
	wg.Wait()

	return res
}

func (ing *Ingestor) one(ctx context.Context, symbol string, nowMs int64) SymbolResult {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	inst, err := ing.resolver.Resolve(ctx, symbol)
	if err != nil {
		ing.metrics.IngestErrors.Inc()
		return SymbolResult{Symbol: symbol, Error: err.Error()}
	}

	ing.metrics.MarketCalls.WithLabelValues("ingest").Inc()
	quote, err := ing.source.Quote(ctx, inst)
	if err != nil {
		ing.metrics.IngestErrors.Inc()
		return SymbolResult{Symbol: symbol, InstID: inst, Error: err.Error()}
	}

	point := domain.SnapshotPoint{
		TS:           nowMs,
		Price:        quote.Price,
		FundingRate:  quote.FundingRate,
		OpenInterest: quote.OpenInterestContracts,
	}
	payload, err := json.Marshal(point)
	if err != nil {
		ing.metrics.IngestErrors.Inc()
		return SymbolResult{Symbol: symbol, InstID: inst, Error: err.Error()}
	}

	bucket := domain.Bucket(nowMs)
	created, err := ing.store.SetNX(ctx, kv.SnapKey(inst, bucket), payload, snapshotTTL)
	if err != nil {
		ing.metrics.IngestErrors.Inc()
		return SymbolResult{Symbol: symbol, InstID: inst, Bucket: bucket, Error: err.Error()}
	}
	if created {
		ing.metrics.IngestWrites.Inc()
	} else {
		log.Debug().Str("inst", inst).Int64("bucket", bucket).Msg("snapshot already present, keeping first observation")
	}

	return SymbolResult{
		OK:       true,
		Symbol:   symbol,
		InstID:   inst,
		Bucket:   bucket,
		Written:  created,
		Snapshot: &point,
	}
}
