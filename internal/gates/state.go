package gates

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/perpgate/perpgate/internal/domain"
	"github.com/perpgate/perpgate/internal/kv"
)

// StateWriter is the write-capability handle for alert state. When dry is
// set every write is a no-op, so no exit path can leak a state write.
type StateWriter struct {
	store kv.Store
	dry   bool
}

func NewStateWriter(store kv.Store, dry bool) *StateWriter {
	return &StateWriter{store: store, dry: dry}
}

// Dry reports whether this handle suppresses writes.
func (w *StateWriter) Dry() bool { return w.dry }

// SeedLastState records the current detection-timeframe state for flip
// detection, mirroring to the legacy 15m key for non-scalp modes.
func (w *StateWriter) SeedLastState(ctx context.Context, mode Mode, inst string, state domain.State) {
	if w.dry {
		return
	}
	if err := w.store.Set(ctx, kv.LastStateKey(string(mode), inst), []byte(state), 0); err != nil {
		log.Warn().Str("inst", inst).Str("mode", string(mode)).Err(err).Msg("lastState write failed")
	}
	if mode != ModeScalp {
		if err := w.store.Set(ctx, kv.LastState15mKey(inst), []byte(state), 0); err != nil {
			log.Warn().Str("inst", inst).Err(err).Msg("lastState15m mirror failed")
		}
	}
}

// SetLastSentAt advances the per-instrument notification clock. The value is
// monotonically non-decreasing even if invocations race.
func (w *StateWriter) SetLastSentAt(ctx context.Context, inst string, nowMs int64) {
	if w.dry {
		return
	}
	if prev, ok := LastSentAt(ctx, w.store, inst); ok && prev >= nowMs {
		return
	}
	if err := w.store.Set(ctx, kv.LastSentAtKey(inst), []byte(strconv.FormatInt(nowMs, 10)), 0); err != nil {
		log.Warn().Str("inst", inst).Err(err).Msg("lastSentAt write failed")
	}
}

// WriteHeartbeat stores the last-run diagnostic blob with a TTL.
func (w *StateWriter) WriteHeartbeat(ctx context.Context, key string, hb Heartbeat, ttl time.Duration) {
	if w.dry {
		return
	}
	b, err := json.Marshal(hb)
	if err != nil {
		log.Error().Err(err).Msg("heartbeat encode failed")
		return
	}
	if err := w.store.Set(ctx, key, b, ttl); err != nil {
		log.Warn().Err(err).Msg("heartbeat write failed")
	}
}

// Heartbeat is the evaluator's last-run diagnostic record. It proves the
// scheduler fired even when nothing was sent.
type Heartbeat struct {
	RunID          string            `json:"run_id"`
	TS             int64             `json:"ts"`
	Symbols        []string          `json:"symbols"`
	Modes          []Mode            `json:"modes"`
	TriggeredCount int               `json:"triggered_count"`
	Sent           bool              `json:"sent"`
	TelegramFailed bool              `json:"telegram_failed,omitempty"`
	Skips          map[string]string `json:"skips,omitempty"`
	DurationMs     int64             `json:"duration_ms"`
}

// LastSentAt reads the per-instrument notification clock.
func LastSentAt(ctx context.Context, store kv.Store, inst string) (int64, bool) {
	raw, found, err := store.Get(ctx, kv.LastSentAtKey(inst))
	if err != nil || !found {
		return 0, false
	}
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// LastState reads the stored detection state for a mode, empty when unset.
func LastState(ctx context.Context, store kv.Store, mode Mode, inst string) (domain.State, bool) {
	raw, found, err := store.Get(ctx, kv.LastStateKey(string(mode), inst))
	if err != nil || !found {
		return "", false
	}
	return domain.State(raw), true
}
