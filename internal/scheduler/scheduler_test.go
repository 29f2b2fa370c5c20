package scheduler

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
jobs:
  - name: ingest
    type: ingest
    enabled: true
    offset_seconds: 60
    config:
      symbols: [BTCUSDT, ETHUSDT]
  - name: evaluate
    type: evaluate
    enabled: true
    offset_seconds: 120
    config:
      symbols: [BTCUSDT, ETHUSDT]
      modes: [scalp, swing]
      driver_tf: 15m
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Jobs, 2)
	assert.Equal(t, "ingest", cfg.Jobs[0].Type)
	assert.Equal(t, []string{"scalp", "swing"}, cfg.Jobs[1].Config.Modes)
}

func TestLoadConfigRejectsBadJobs(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "badtype.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jobs:\n  - {name: x, type: scan, enabled: true}\n"), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)

	path = filepath.Join(dir, "badoffset.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jobs:\n  - {name: x, type: ingest, enabled: true, offset_seconds: 400}\n"), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestFiringsOrderIngestBeforeEvaluate(t *testing.T) {
	cfg := DefaultConfig([]string{"BTCUSDT"})
	s := New(cfg, nil, nil)

	bucketStart := time.UnixMilli(1_700_000_100_000).Truncate(5 * time.Minute)
	firings := s.firingsFor(bucketStart)
	require.Len(t, firings, 2)
	assert.Equal(t, "ingest", firings[0].job.Type)
	assert.Equal(t, "evaluate", firings[1].job.Type)
	assert.True(t, firings[0].at.Before(firings[1].at))
}

func TestDisabledJobsDoNotFire(t *testing.T) {
	cfg := DefaultConfig([]string{"BTCUSDT"})
	cfg.Jobs[1].Enabled = false
	s := New(cfg, nil, nil)

	firings := s.firingsFor(time.Now())
	require.Len(t, firings, 1)
	assert.Equal(t, "ingest", firings[0].job.Type)
}
