package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/perpgate/perpgate/internal/gates"
	"github.com/perpgate/perpgate/internal/kv"
	"github.com/perpgate/perpgate/internal/notify"
	"github.com/perpgate/perpgate/internal/persistence"
	"github.com/perpgate/perpgate/internal/render"
	"github.com/perpgate/perpgate/internal/telemetry"
)

// Alerter runs the full alert invocation: gate evaluation, winner side
// effects, message rendering, notification, heartbeat and the optional
// archive. It is the only component that sequences cross-cutting effects;
// the pipeline itself stays pure.
type Alerter struct {
	pipeline *gates.Pipeline
	store    kv.Store
	notifier notify.Notifier
	archive  persistence.AlertsRepo // nil when the archive is disabled
	metrics  *telemetry.Metrics
}

func NewAlerter(pipeline *gates.Pipeline, store kv.Store, notifier notify.Notifier, archive persistence.AlertsRepo, metrics *telemetry.Metrics) *Alerter {
	return &Alerter{
		pipeline: pipeline,
		store:    store,
		notifier: notifier,
		archive:  archive,
		metrics:  metrics,
	}
}

// AlertResult is the invocation summary returned to the HTTP caller.
type AlertResult struct {
	RunID     string               `json:"run_id"`
	Triggered []gates.Candidate    `json:"triggered"`
	Outcomes  []gates.Outcome      `json:"outcomes,omitempty"`
	Macro     *gates.MacroAnalysis `json:"macro,omitempty"`
	Message   string               `json:"message,omitempty"`
	Sent      bool                 `json:"sent"`
	Dry       bool                 `json:"dry"`
	Heartbeat *gates.Heartbeat     `json:"heartbeat,omitempty"`
}

// Run executes one alert invocation. A notification transport failure is
// returned as an error after the heartbeat records it, so the caller can
// surface a server error while the run itself stays accounted for.
func (a *Alerter) Run(ctx context.Context, req gates.Request, debug bool) (*AlertResult, error) {
	start := time.Now()
	runID := uuid.NewString()
	if req.NowMs == 0 {
		req.NowMs = start.UnixMilli()
	}
	cfg := a.pipeline.Config()
	if len(req.Modes) == 0 {
		req.Modes = cfg.DefaultModes
	}
	if req.RiskProfile == "" {
		req.RiskProfile = cfg.DefaultRiskProfile
	}

	inv := a.pipeline.Evaluate(ctx, req)
	writer := gates.NewStateWriter(a.store, req.Dry)

	var winners []gates.Candidate
	skips := make(map[string]string)
	for _, o := range inv.Outcomes {
		if o.Triggered && o.Candidate != nil {
			winners = append(winners, *o.Candidate)
		} else if o.SkipReason != "" {
			skips[o.Symbol] = o.SkipReason
		}
	}

	res := &AlertResult{
		RunID:     runID,
		Triggered: winners,
		Dry:       req.Dry,
	}
	if debug {
		res.Outcomes = inv.Outcomes
		res.Macro = &inv.Macro
	}

	var notifyErr error
	if len(winners) > 0 {
		// The cooldown clock advances before the transport call so a
		// transport retry cannot double-fire within the window.
		for _, c := range winners {
			writer.SetLastSentAt(ctx, c.InstID, req.NowMs)
		}

		res.Message = render.Message(winners, render.Options{
			DriverTF:         req.DriverTF,
			Force:            req.Force,
			Dry:              req.Dry,
			DrilldownBaseURL: cfg.DrilldownBaseURL,
			NowMs:            req.NowMs,
		})

		if !req.Dry {
			if notifyErr = a.notifier.Send(ctx, res.Message); notifyErr != nil {
				a.metrics.NotifyFail.Inc()
				log.Error().Err(notifyErr).Int("winners", len(winners)).Msg("notification failed")
			} else {
				res.Sent = true
				a.metrics.AlertsSent.Add(float64(len(winners)))
			}
		}

		a.archiveWinners(ctx, winners, req, res.Message)
	}

	hb := gates.Heartbeat{
		RunID:          runID,
		TS:             req.NowMs,
		Symbols:        req.Symbols,
		Modes:          req.Modes,
		TriggeredCount: len(winners),
		Sent:           res.Sent,
		TelegramFailed: notifyErr != nil,
		Skips:          skips,
		DurationMs:     time.Since(start).Milliseconds(),
	}
	writer.WriteHeartbeat(ctx, cfg.HeartbeatKey, hb, cfg.HeartbeatTTL)
	res.Heartbeat = &hb

	if notifyErr != nil {
		return res, fmt.Errorf("notify: %w", notifyErr)
	}
	return res, nil
}

// archiveWinners stores emitted alerts in the archive. Failures never gate
// the notification; they are logged and dropped.
func (a *Alerter) archiveWinners(ctx context.Context, winners []gates.Candidate, req gates.Request, message string) {
	if a.archive == nil || req.Dry {
		return
	}
	ts := time.UnixMilli(req.NowMs).UTC()
	for _, c := range winners {
		rec := persistence.AlertRecord{
			Timestamp:  ts,
			Symbol:     c.Symbol,
			InstID:     c.InstID,
			Mode:       string(c.Mode),
			Bias:       string(c.Bias),
			ExecReason: c.ExecReason,
			Grade:      c.Grade,
			Price:      c.Price,
			Hi1h:       c.Levels1h.Hi,
			Lo1h:       c.Levels1h.Lo,
			Forced:     req.Force,
			Message:    message,
		}
		if err := a.archive.Insert(ctx, rec); err != nil {
			log.Warn().Str("inst", c.InstID).Err(err).Msg("alert archive insert failed")
		}
	}
}
