package application

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perpgate/perpgate/internal/derive"
	"github.com/perpgate/perpgate/internal/domain"
	"github.com/perpgate/perpgate/internal/gates"
	"github.com/perpgate/perpgate/internal/kv"
	"github.com/perpgate/perpgate/internal/market"
	"github.com/perpgate/perpgate/internal/persistence"
	"github.com/perpgate/perpgate/internal/telemetry"
)

const ethInst = "ETH-USDT-SWAP"

type recordingNotifier struct {
	sent []string
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, text string) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, text)
	return nil
}

type recordingArchive struct {
	inserted []persistence.AlertRecord
}

func (a *recordingArchive) Insert(_ context.Context, rec persistence.AlertRecord) error {
	a.inserted = append(a.inserted, rec)
	return nil
}

func (a *recordingArchive) Recent(context.Context, int) ([]persistence.AlertRecord, error) {
	return a.inserted, nil
}

func newTestAlerter(t *testing.T, store *kv.Memory, notifier *recordingNotifier, archive persistence.AlertsRepo) *Alerter {
	t.Helper()
	metrics := telemetry.NewUnregistered()
	cfg := gates.DefaultConfig()
	cfg.Macro.Enabled = false
	cfg.Workers = 2
	pipeline := gates.NewPipeline(cfg, store, derive.New(store, metrics), market.NewResolver(store, nil), metrics)
	return NewAlerter(pipeline, store, notifier, archive, metrics)
}

// seedBreakout writes a prior series and current snapshot producing a scalp
// long breakout above the 1h high.
func seedBreakout(t *testing.T, store *kv.Memory, bucket int64) {
	t.Helper()
	ctx := context.Background()
	prices := []float64{1945, 1940.00, 1950, 1960, 1970, 1987.56, 1980, 1975, 1970, 1965, 1972, 1980, 1985.62}

	series := make([]domain.SeriesPoint, 0, len(prices))
	for i, p := range prices {
		b := bucket - int64(len(prices)) + int64(i)
		oi := 5000.0
		if i == len(prices)-1 {
			oi = 5010
		}
		series = append(series, domain.SeriesPoint{
			Bucket:       b,
			TS:           domain.BucketStartMs(b),
			Price:        p,
			FundingRate:  domain.Float64Ptr(0.0001),
			OpenInterest: domain.Float64Ptr(oi),
		})
	}
	raw, err := json.Marshal(series)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, kv.SeriesKey(ethInst), raw, 0))
	require.NoError(t, store.Set(ctx, kv.LastBucketKey(ethInst), []byte(strconv.FormatInt(bucket-1, 10)), 0))

	snap := domain.SnapshotPoint{
		TS:           domain.BucketStartMs(bucket),
		Price:        1988.00,
		FundingRate:  domain.Float64Ptr(0.0001),
		OpenInterest: domain.Float64Ptr(5026),
	}
	raw, err = json.Marshal(snap)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, kv.SnapKey(ethInst, bucket), raw, 0))
}

func breakoutRequest(bucket int64) gates.Request {
	return gates.Request{
		Symbols: []string{"ETHUSDT"},
		Modes:   []gates.Mode{gates.ModeScalp},
		NowMs:   domain.BucketStartMs(bucket),
	}
}

func TestAlerterSendsAndArchives(t *testing.T) {
	store := kv.NewMemory()
	bucket := int64(5_700_000)
	seedBreakout(t, store, bucket)

	notifier := &recordingNotifier{}
	archive := &recordingArchive{}
	alerter := newTestAlerter(t, store, notifier, archive)

	res, err := alerter.Run(context.Background(), breakoutRequest(bucket), false)
	require.NoError(t, err)
	require.Len(t, res.Triggered, 1)
	assert.True(t, res.Sent)
	assert.NotEmpty(t, res.RunID)

	require.Len(t, notifier.sent, 1)
	assert.Contains(t, notifier.sent[0], "ETH")

	require.Len(t, archive.inserted, 1)
	assert.Equal(t, ethInst, archive.inserted[0].InstID)
	assert.Equal(t, "scalp", archive.inserted[0].Mode)

	require.NotNil(t, res.Heartbeat)
	assert.Equal(t, 1, res.Heartbeat.TriggeredCount)
	assert.True(t, res.Heartbeat.Sent)
	assert.False(t, res.Heartbeat.TelegramFailed)
}

func TestAlerterNotifyFailureStillAdvancesCooldown(t *testing.T) {
	store := kv.NewMemory()
	bucket := int64(5_700_000)
	seedBreakout(t, store, bucket)

	notifier := &recordingNotifier{err: errors.New("telegram down")}
	alerter := newTestAlerter(t, store, notifier, nil)

	res, err := alerter.Run(context.Background(), breakoutRequest(bucket), false)
	require.Error(t, err)
	assert.False(t, res.Sent)

	// lastSentAt was written before the transport call, so a retry inside
	// the window hits cooldown instead of double-firing.
	_, found, gerr := store.Get(context.Background(), kv.LastSentAtKey(ethInst))
	require.NoError(t, gerr)
	assert.True(t, found)

	require.NotNil(t, res.Heartbeat)
	assert.True(t, res.Heartbeat.TelegramFailed)
}

func TestAlerterDryRunRendersWithoutSideEffects(t *testing.T) {
	store := kv.NewMemory()
	bucket := int64(5_700_000)
	seedBreakout(t, store, bucket)
	writes := store.WriteCount()

	notifier := &recordingNotifier{}
	archive := &recordingArchive{}
	alerter := newTestAlerter(t, store, notifier, archive)

	req := breakoutRequest(bucket)
	req.Dry = true
	res, err := alerter.Run(context.Background(), req, false)
	require.NoError(t, err)

	require.Len(t, res.Triggered, 1)
	assert.NotEmpty(t, res.Message)
	assert.False(t, res.Sent)
	assert.Empty(t, notifier.sent)
	assert.Empty(t, archive.inserted)
	assert.Equal(t, writes, store.WriteCount())
}

func TestAlerterDefaultsFromConfig(t *testing.T) {
	store := kv.NewMemory()
	alerter := newTestAlerter(t, store, &recordingNotifier{}, nil)

	res, err := alerter.Run(context.Background(), gates.Request{Symbols: []string{"ETHUSDT"}}, true)
	require.NoError(t, err)

	// Empty-store evaluation skips but still heartbeats with the default mode.
	require.NotNil(t, res.Heartbeat)
	assert.Equal(t, []gates.Mode{gates.ModeSwing}, res.Heartbeat.Modes)
	assert.Equal(t, 0, res.Heartbeat.TriggeredCount)
}
