package http

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/perpgate/perpgate/internal/domain"
	"github.com/perpgate/perpgate/internal/gates"
)

// handleSnapshot runs one ingest batch. It is the scheduled tick endpoint
// and deliberately carries no auth: it only writes first-observation
// snapshots and leaks nothing.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	symbols := s.symbolsParam(r)
	if len(symbols) == 0 {
		writeError(w, http.StatusBadRequest, "no symbols configured or provided")
		return
	}

	res := s.ingestor.Run(r.Context(), symbols, time.Now().UnixMilli())
	writeJSON(w, http.StatusOK, res)
}

// alertResponse is the evaluator's wire response. Debug fields are only
// populated with debug=1.
type alertResponse struct {
	OK             bool                 `json:"ok"`
	RunID          string               `json:"run_id"`
	Sent           bool                 `json:"sent"`
	TriggeredCount int                  `json:"triggered_count"`
	Dry            bool                 `json:"dry"`
	Triggered      []gates.Candidate    `json:"triggered,omitempty"`
	Error          string               `json:"error,omitempty"`
	Message        string               `json:"message,omitempty"`
	Outcomes       []gates.Outcome      `json:"outcomes,omitempty"`
	Macro          *gates.MacroAnalysis `json:"macro,omitempty"`
	Heartbeat      *gates.Heartbeat     `json:"heartbeat,omitempty"`
}

// handleAlert runs one evaluator invocation. Auth happens before anything
// else: an unauthorized request performs no KV reads or writes at all.
func (s *Server) handleAlert(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	q := r.URL.Query()
	req := gates.Request{
		Symbols:     s.symbolsParam(r),
		RiskProfile: q.Get("risk_profile"),
		Force:       q.Get("force") == "1",
		Dry:         q.Get("dry") == "1",
		NowMs:       time.Now().UnixMilli(),
	}
	if len(req.Symbols) == 0 {
		writeError(w, http.StatusBadRequest, "no symbols configured or provided")
		return
	}

	if raw := q.Get("mode"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			m, ok := gates.ParseMode(strings.TrimSpace(part))
			if !ok {
				writeError(w, http.StatusBadRequest, "unknown mode "+part)
				return
			}
			req.Modes = append(req.Modes, m)
		}
	}

	req.DriverTF = domain.TF5m
	if raw := q.Get("driver_tf"); raw != "" {
		tf, ok := parseTimeframe(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown driver_tf "+raw)
			return
		}
		req.DriverTF = tf
	}

	debug := q.Get("debug") == "1"
	res, err := s.alerter.Run(r.Context(), req, debug)

	resp := alertResponse{
		OK:             err == nil,
		RunID:          res.RunID,
		Sent:           res.Sent,
		TriggeredCount: len(res.Triggered),
		Dry:            res.Dry,
	}
	if debug {
		resp.Triggered = res.Triggered
		resp.Message = res.Message
		resp.Outcomes = res.Outcomes
		resp.Macro = res.Macro
		resp.Heartbeat = res.Heartbeat
	}

	status := http.StatusOK
	if err != nil {
		// The run completed; only the notification transport failed.
		resp.Error = err.Error()
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	type health struct {
		OK        bool            `json:"ok"`
		KV        string          `json:"kv"`
		Heartbeat json.RawMessage `json:"heartbeat,omitempty"`
		TS        int64           `json:"ts"`
	}

	h := health{OK: true, KV: "ok", TS: time.Now().UnixMilli()}
	if err := s.store.Ping(r.Context()); err != nil {
		h.OK = false
		h.KV = err.Error()
	}
	if raw, found, err := s.store.Get(r.Context(), s.cfg.HeartbeatKey); err == nil && found {
		h.Heartbeat = json.RawMessage(raw)
	}

	status := http.StatusOK
	if !h.OK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

func (s *Server) handleRecentAlerts(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}
	recs, err := s.archive.Recent(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("alert archive query failed")
		writeError(w, http.StatusInternalServerError, "archive unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "alerts": recs})
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

// authorized accepts the shared secret via ?key= or a bearer token.
func (s *Server) authorized(r *http.Request) bool {
	if s.cfg.AuthKey == "" {
		return true
	}
	presented := r.URL.Query().Get("key")
	if presented == "" {
		auth := r.Header.Get("Authorization")
		presented = strings.TrimPrefix(auth, "Bearer ")
		if presented == auth {
			presented = ""
		}
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(s.cfg.AuthKey)) == 1
}

func (s *Server) symbolsParam(r *http.Request) []string {
	raw := r.URL.Query().Get("symbols")
	if raw == "" {
		return s.cfg.DefaultSymbols
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if sym := strings.ToUpper(strings.TrimSpace(part)); sym != "" {
			out = append(out, sym)
		}
	}
	return out
}

func parseTimeframe(s string) (domain.Timeframe, bool) {
	for _, tf := range domain.Timeframes {
		if string(tf) == s {
			return tf, true
		}
	}
	return "", false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("response encode failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}
