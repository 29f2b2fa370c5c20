package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perpgate/perpgate/internal/application"
	"github.com/perpgate/perpgate/internal/derive"
	"github.com/perpgate/perpgate/internal/gates"
	"github.com/perpgate/perpgate/internal/ingest"
	"github.com/perpgate/perpgate/internal/kv"
	"github.com/perpgate/perpgate/internal/market"
	"github.com/perpgate/perpgate/internal/notify"
	"github.com/perpgate/perpgate/internal/telemetry"
)

type stubSource struct {
	price float64
}

func (s *stubSource) Quote(_ context.Context, instID string) (*market.Quote, error) {
	return &market.Quote{InstID: instID, TS: 1_700_000_000_000, Price: s.price}, nil
}

func (s *stubSource) Instruments(context.Context) ([]market.Instrument, error) {
	return []market.Instrument{{InstID: "ETH-USDT-SWAP", State: "live"}}, nil
}

func newTestServer(t *testing.T, authKey string) (*Server, *kv.Memory) {
	t.Helper()
	store := kv.NewMemory()
	metrics := telemetry.NewUnregistered()
	source := &stubSource{price: 1988}
	resolver := market.NewResolver(store, source)
	engine := derive.New(store, metrics)

	cfg := gates.DefaultConfig()
	cfg.Macro.Enabled = false
	pipeline := gates.NewPipeline(cfg, store, engine, resolver, metrics)
	alerter := application.NewAlerter(pipeline, store, notify.Noop{}, nil, metrics)
	ingestor := ingest.New(store, source, resolver, metrics)

	srv := NewServer(Config{
		Addr:           "127.0.0.1:0",
		AuthKey:        authKey,
		DefaultSymbols: []string{"ETHUSDT"},
	}, ingestor, alerter, store, nil, prometheus.NewRegistry())
	return srv, store
}

func get(t *testing.T, srv *Server, path string, header map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestAlertRequiresAuth(t *testing.T) {
	srv, store := newTestServer(t, "sekrit")
	writes := store.WriteCount()

	rec, body := get(t, srv, "/alert", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, body["ok"])

	// A rejected request performs no state writes and no heartbeat.
	assert.Equal(t, writes, store.WriteCount())
	assert.Empty(t, store.KeysWithPrefix("alert:"))
}

func TestAlertAuthVariants(t *testing.T) {
	srv, _ := newTestServer(t, "sekrit")

	rec, _ := get(t, srv, "/alert?key=sekrit", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = get(t, srv, "/alert", map[string]string{"Authorization": "Bearer sekrit"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = get(t, srv, "/alert?key=wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAlertEmptyStoreSkipsAndWritesHeartbeat(t *testing.T) {
	srv, store := newTestServer(t, "sekrit")

	rec, body := get(t, srv, "/alert?key=sekrit&debug=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, float64(0), body["triggered_count"])
	assert.Equal(t, false, body["sent"])

	outcomes, ok := body["outcomes"].([]any)
	require.True(t, ok)
	first := outcomes[0].(map[string]any)
	assert.Equal(t, gates.SkipSnapshotMissing, first["skip_reason"])

	// Non-dry runs always leave a heartbeat.
	raw, found, err := store.Get(context.Background(), kv.DefaultHeartbeatKey)
	require.NoError(t, err)
	require.True(t, found)
	var hb gates.Heartbeat
	require.NoError(t, json.Unmarshal(raw, &hb))
	assert.Equal(t, 0, hb.TriggeredCount)
}

func TestAlertDryRunWritesNothing(t *testing.T) {
	srv, store := newTestServer(t, "sekrit")
	writes := store.WriteCount()

	rec, _ := get(t, srv, "/alert?key=sekrit&dry=1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, writes, store.WriteCount())
}

func TestAlertRejectsUnknownMode(t *testing.T) {
	srv, _ := newTestServer(t, "")
	rec, _ := get(t, srv, "/alert?mode=yolo", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = get(t, srv, "/alert?driver_tf=2m", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSnapshotIngestsDefaultSymbols(t *testing.T) {
	srv, store := newTestServer(t, "")

	rec, body := get(t, srv, "/snapshot", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])

	results := body["results"].([]any)
	require.Len(t, results, 1)
	first := results[0].(map[string]any)
	assert.Equal(t, true, first["ok"])
	assert.Equal(t, "ETH-USDT-SWAP", first["inst"])

	assert.NotEmpty(t, store.KeysWithPrefix("snap5m:ETH-USDT-SWAP:"))
}

func TestHealthEchoesHeartbeat(t *testing.T) {
	srv, store := newTestServer(t, "")
	require.NoError(t, store.Set(context.Background(),
		kv.DefaultHeartbeatKey, []byte(`{"run_id":"abc"}`), 0))

	rec, body := get(t, srv, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])
	hb := body["heartbeat"].(map[string]any)
	assert.Equal(t, "abc", hb["run_id"])
}

func TestNotFound(t *testing.T) {
	srv, _ := newTestServer(t, "")
	rec, body := get(t, srv, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["ok"])
}
