package gates

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/perpgate/perpgate/internal/derive"
	"github.com/perpgate/perpgate/internal/domain"
	"github.com/perpgate/perpgate/internal/kv"
	"github.com/perpgate/perpgate/internal/market"
	"github.com/perpgate/perpgate/internal/telemetry"
)

// Request describes one evaluator invocation. Force bypasses the detection
// and cooldown gates only; Dry suppresses every state write and side effect.
type Request struct {
	Symbols     []string
	Modes       []Mode
	DriverTF    domain.Timeframe
	RiskProfile string
	Force       bool
	Dry         bool
	NowMs       int64
}

// Candidate is a fully validated entry for one symbol under one mode.
type Candidate struct {
	Symbol         string                                  `json:"symbol"`
	InstID         string                                  `json:"inst"`
	Mode           Mode                                    `json:"mode"`
	Bias           domain.Lean                             `json:"bias"`
	Trigger        string                                  `json:"trigger"`
	ExecReason     string                                  `json:"exec_reason"`
	B1Strong       bool                                    `json:"b1_strong"`
	Grade          string                                  `json:"grade"`
	Price          float64                                 `json:"price"`
	PriceFormatted string                                  `json:"price_formatted"`
	Levels1h       domain.LevelsRecord                     `json:"levels_1h"`
	Deltas         map[domain.Timeframe]domain.DeltaRecord `json:"deltas"`
	Leverage       *LeverageBand                           `json:"leverage,omitempty"`
}

// Outcome is the per-symbol result: a winning candidate or a classified
// skip. ModeSkips records why each evaluated mode denied, for debug output.
type Outcome struct {
	Symbol     string          `json:"symbol"`
	InstID     string          `json:"inst,omitempty"`
	Triggered  bool            `json:"triggered"`
	SkipReason string          `json:"skip_reason,omitempty"`
	ModeSkips  map[Mode]string `json:"mode_skips,omitempty"`
	Candidate  *Candidate      `json:"candidate,omitempty"`
}

// InvocationResult aggregates one invocation across all symbols.
type InvocationResult struct {
	Outcomes []Outcome     `json:"outcomes"`
	Macro    MacroAnalysis `json:"macro"`
}

// Pipeline runs the gating sequence. It owns no notification or rendering
// concerns; the application layer consumes its candidates.
type Pipeline struct {
	cfg      Config
	store    kv.Store
	engine   *derive.Engine
	resolver *market.Resolver
	metrics  *telemetry.Metrics
}

func NewPipeline(cfg Config, store kv.Store, engine *derive.Engine, resolver *market.Resolver, metrics *telemetry.Metrics) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Pipeline{cfg: cfg, store: store, engine: engine, resolver: resolver, metrics: metrics}
}

// Config exposes the pipeline's effective configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Evaluate runs all requested symbols with bounded parallelism. Per-symbol
// state is disjoint, so symbols never contend beyond the KV store itself.
func (p *Pipeline) Evaluate(ctx context.Context, req Request) *InvocationResult {
	writer := NewStateWriter(p.store, req.Dry)

	macro := MacroAnalysis{Enabled: false}
	if p.cfg.Macro.Enabled {
		if btcInst, err := p.resolver.ResolveCached(ctx, p.cfg.Macro.BTCSymbol); err == nil {
			macro = analyzeMacro(ctx, p.cfg.Macro, p.engine, btcInst, req.NowMs, !req.Dry)
		} else {
			log.Warn().Err(err).Msg("macro BTC symbol unresolvable, macro gate disabled for this run")
		}
	}

	res := &InvocationResult{
		Outcomes: make([]Outcome, len(req.Symbols)),
		Macro:    macro,
	}

	sem := make(chan struct{}, p.cfg.Workers)
	var wg sync.WaitGroup
	for i, sym := range req.Symbols {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, sym string) {
			defer wg.Done()
			defer func() { <-sem }()
			res.Outcomes[i] = p.evaluateSymbol(ctx, sym, req, macro, writer)
		}(i, sym)
	}
	wg.Wait()

	for _, o := range res.Outcomes {
		if !o.Triggered && o.SkipReason != "" {
			p.metrics.EvalSkips.WithLabelValues(o.SkipReason).Inc()
		}
	}
	return res
}

func (p *Pipeline) evaluateSymbol(ctx context.Context, symbol string, req Request, macro MacroAnalysis, writer *StateWriter) Outcome {
	out := Outcome{Symbol: symbol, ModeSkips: make(map[Mode]string)}

	inst, err := p.resolver.ResolveCached(ctx, symbol)
	if err != nil {
		out.SkipReason = SkipNoPerpetual
		return out
	}
	out.InstID = inst

	ev, err := p.engine.Evaluate(ctx, inst, req.NowMs, !req.Dry)
	if err != nil {
		log.Error().Str("symbol", symbol).Err(err).Msg("derivation failed")
		out.SkipReason = SkipDeriveError
		return out
	}
	if ev.SnapshotMissing {
		out.SkipReason = SkipSnapshotMissing
		return out
	}

	for _, mode := range OrderModes(req.Modes) {
		cand, skip := p.evaluateMode(ctx, mode, symbol, inst, ev, req, macro, writer)
		if cand != nil {
			out.Triggered = true
			out.Candidate = cand
			return out
		}
		out.ModeSkips[mode] = skip
		if out.SkipReason == "" {
			out.SkipReason = skip
		}
	}
	return out
}

// evaluateMode runs the strict gate sequence for one mode. The detection
// state is seeded on every evaluation regardless of which later gate denies,
// so genuine flips are detectable in quiet regimes.
func (p *Pipeline) evaluateMode(ctx context.Context, mode Mode, symbol, inst string, ev *derive.Evaluation, req Request, macro MacroAnalysis, writer *StateWriter) (*Candidate, string) {
	stored, hasStored := LastState(ctx, p.store, mode, inst)
	trigger, current := p.cfg.detection(mode, ev, stored, hasStored)
	writer.SeedLastState(ctx, mode, inst, current)

	if trigger == "" && !req.Force {
		return nil, SkipNoDetection
	}

	if !req.Force {
		if sentAt, ok := LastSentAt(ctx, p.store, inst); ok && req.NowMs-sentAt < p.cfg.Cooldown.Milliseconds() {
			return nil, SkipCooldown
		}
	}

	bias := BiasFor(mode, ev.Deltas)
	if bias == domain.LeanNeutral {
		return nil, SkipNeutralBias
	}

	if macro.blocks(p.cfg.Macro, symbol, bias) {
		return nil, SkipMacroBlock
	}

	if ev.Levels["1h"].Warmup && !(req.Force && p.cfg.ForceBypassWarmup) {
		return nil, SkipWarmup1h
	}

	res := p.cfg.entryValidity(mode, bias, ev)
	if res.skip != "" {
		return nil, res.skip
	}

	d5 := ev.Deltas[domain.TF5m]
	d15 := ev.Deltas[domain.TF15m]
	d1h := ev.Deltas[domain.TF1h]

	cand := &Candidate{
		Symbol:         symbol,
		InstID:         inst,
		Mode:           mode,
		Bias:           bias,
		Trigger:        trigger,
		ExecReason:     res.execReason,
		B1Strong:       res.b1Strong,
		Grade:          p.cfg.Grade(res.execReason, res.b1Strong, bias, d15, d1h),
		Price:          ev.Price,
		PriceFormatted: ev.PriceFormatted,
		Levels1h:       ev.Levels["1h"],
		Deltas:         ev.Deltas,
	}
	if band, ok := p.cfg.AdvisoryLeverage(bias, ev.Price, cand.Levels1h, d5, d15); ok {
		cand.Leverage = &band
	}
	return cand, ""
}
