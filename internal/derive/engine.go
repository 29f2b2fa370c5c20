// Package derive maintains the 24h rolling series per instrument and derives
// the multi-timeframe delta records and structural levels the evaluator
// consumes. The engine works strictly from KV snapshots: it has no handle on
// the market source at all, which is the snapshot-only guarantee.
package derive

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/perpgate/perpgate/internal/domain"
	"github.com/perpgate/perpgate/internal/kv"
	"github.com/perpgate/perpgate/internal/telemetry"
)

const seriesTTL = 48 * time.Hour

// Evaluation is the derived view of one instrument at one bucket. When
// SnapshotMissing is set nothing else is populated and the evaluator must
// classify the symbol as skipped.
type Evaluation struct {
	InstID          string                                  `json:"inst"`
	Bucket          int64                                   `json:"bucket"`
	Price           float64                                 `json:"price"`
	PriceFormatted  string                                  `json:"price_formatted"`
	Deltas          map[domain.Timeframe]domain.DeltaRecord `json:"deltas"`
	Levels          map[string]domain.LevelsRecord          `json:"levels"`
	Series          []domain.SeriesPoint                    `json:"-"`
	SnapshotMissing bool                                    `json:"snapshot_missing,omitempty"`
}

// Engine derives evaluations from snapshots. The only writes it performs are
// the series append and the lastBucket advance, both gated so each bucket is
// appended at most once.
type Engine struct {
	store   kv.Store
	metrics *telemetry.Metrics
}

func New(store kv.Store, metrics *telemetry.Metrics) *Engine {
	return &Engine{store: store, metrics: metrics}
}

// Evaluate derives the current view for one instrument. nowMs selects the
// bucket whose snapshot is required. With persist false (dry-run) the
// bucket's point is still appended to the in-memory series for delta
// computation, but neither the series nor lastBucket is written back.
func (e *Engine) Evaluate(ctx context.Context, instID string, nowMs int64, persist bool) (*Evaluation, error) {
	bucket := domain.Bucket(nowMs)

	raw, found, err := e.store.Get(ctx, kv.SnapKey(instID, bucket))
	if err != nil {
		return nil, fmt.Errorf("snapshot read %s: %w", instID, err)
	}
	if !found {
		e.metrics.SnapshotMisses.Inc()
		return &Evaluation{InstID: instID, Bucket: bucket, SnapshotMissing: true}, nil
	}
	e.metrics.SnapshotHits.Inc()

	var snap domain.SnapshotPoint
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("snapshot decode %s: %w", instID, err)
	}

	series, err := e.appendOnce(ctx, instID, bucket, snap, persist)
	if err != nil {
		return nil, err
	}

	ev := &Evaluation{
		InstID:         instID,
		Bucket:         bucket,
		Price:          snap.Price,
		PriceFormatted: domain.FormatPrice(snap.Price),
		Deltas:         make(map[domain.Timeframe]domain.DeltaRecord, len(domain.Timeframes)),
		Levels:         make(map[string]domain.LevelsRecord, 2),
		Series:         series,
	}
	for _, tf := range domain.Timeframes {
		ev.Deltas[tf] = domain.ComputeDelta(series, tf)
	}

	// Levels describe the structure the current price is tested against, so
	// the current bucket's own point is excluded. Otherwise a breakout above
	// the 1h high could never exceed it.
	prior := series[:len(series)-1]
	ev.Levels["1h"] = domain.ComputeLevels(prior, domain.LevelsLookback1h)
	ev.Levels["4h"] = domain.ComputeLevels(prior, domain.LevelsLookback4h)

	return ev, nil
}

// appendOnce appends the bucket's point to the series unless lastBucket shows
// it was already appended, trims to the retention cap and extends both TTLs.
// With persist false no key is touched.
func (e *Engine) appendOnce(ctx context.Context, instID string, bucket int64, snap domain.SnapshotPoint, persist bool) ([]domain.SeriesPoint, error) {
	seriesKey := kv.SeriesKey(instID)
	lastKey := kv.LastBucketKey(instID)

	series, err := e.loadSeries(ctx, seriesKey)
	if err != nil {
		return nil, err
	}

	lastBucket := int64(-1)
	if raw, found, err := e.store.Get(ctx, lastKey); err == nil && found {
		if v, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
			lastBucket = v
		}
	}

	// Already-appended is trusted only when the series actually ends with
	// this bucket's point. A corrupt or evicted series can leave lastBucket
	// pointing at the current bucket with nothing behind it; that case
	// restarts the retention window from the current snapshot instead.
	if lastBucket == bucket && len(series) > 0 && series[len(series)-1].Bucket == bucket {
		if persist {
			if err := e.store.Expire(ctx, seriesKey, seriesTTL); err != nil {
				log.Warn().Str("inst", instID).Err(err).Msg("series TTL refresh failed")
			}
		}
		return series, nil
	}

	series = append(series, domain.SeriesPoint{
		Bucket:       bucket,
		TS:           snap.TS,
		Price:        snap.Price,
		FundingRate:  snap.FundingRate,
		OpenInterest: snap.OpenInterest,
	})
	if start := len(series) - domain.SeriesMaxPoints; start > 0 {
		series = series[start:]
	}
	if !persist {
		return series, nil
	}

	payload, err := json.Marshal(series)
	if err != nil {
		return nil, fmt.Errorf("series encode %s: %w", instID, err)
	}
	if err := e.store.Set(ctx, seriesKey, payload, seriesTTL); err != nil {
		return nil, fmt.Errorf("series write %s: %w", instID, err)
	}
	if err := e.store.Set(ctx, lastKey, []byte(strconv.FormatInt(bucket, 10)), seriesTTL); err != nil {
		return nil, fmt.Errorf("lastBucket write %s: %w", instID, err)
	}

	return series, nil
}

func (e *Engine) loadSeries(ctx context.Context, key string) ([]domain.SeriesPoint, error) {
	raw, found, err := e.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("series read: %w", err)
	}
	if !found {
		return nil, nil
	}
	var series []domain.SeriesPoint
	if err := json.Unmarshal(raw, &series); err != nil {
		// A corrupt series is rebuilt from scratch rather than poisoning
		// every later tick.
		log.Error().Str("key", key).Err(err).Msg("series corrupt, restarting retention window")
		return nil, nil
	}
	return series, nil
}
