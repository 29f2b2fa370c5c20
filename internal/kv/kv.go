// Package kv provides the key-value store port shared by the ingestor,
// derivation engine and evaluator. The production implementation is Redis;
// an in-memory store backs tests and single-node dry deployments.
package kv

import (
	"context"
	"fmt"
	"time"
)

// Store is the minimal KV contract the pipeline needs: expiring writes,
// conditional first-writer-wins writes and TTL extension.
type Store interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set writes the value with a TTL; ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error

	// SetNX writes only if the key is absent. Returns true when this call
	// created the key.
	SetNX(ctx context.Context, key string, val []byte, ttl time.Duration) (bool, error)

	// Expire refreshes the TTL on an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Del removes a key. Missing keys are not an error.
	Del(ctx context.Context, key string) error

	// Ping verifies connectivity for health reporting.
	Ping(ctx context.Context) error
}

// Key builders. Every key written by the system is produced here so the
// layout stays greppable in one place.

const (
	// NoneSentinel marks a base symbol with no perpetual market so failed
	// lookups are not refetched on every tick.
	NoneSentinel = "__NONE__"

	// InstrumentListKey caches the full SWAP instrument listing.
	InstrumentListKey = "okx:instruments:swap:list:v1"

	// DefaultHeartbeatKey stores the evaluator's last-run diagnostic blob.
	DefaultHeartbeatKey = "alert:lastRun"
)

func SnapKey(inst string, bucket int64) string {
	return fmt.Sprintf("snap5m:%s:%d", inst, bucket)
}

func SeriesKey(inst string) string { return "series5m:" + inst }

func LastBucketKey(inst string) string { return "lastBucket:" + inst }

func InstMapKey(base string) string { return "instmap:swap:" + base }

func LastStateKey(mode, inst string) string {
	return fmt.Sprintf("alert:lastState:%s:%s", mode, inst)
}

// LastState15mKey is the legacy mirror kept for non-scalp modes.
func LastState15mKey(inst string) string { return "alert:lastState15m:" + inst }

func LastSentAtKey(inst string) string { return "alert:lastSentAt:" + inst }
