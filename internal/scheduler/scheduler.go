// Package scheduler is the optional in-process driver for deployments that
// have no external cron. It fires jobs at fixed offsets inside each 5-minute
// bucket; the offsets order the ingest tick before the evaluate tick so the
// evaluator always finds the bucket's snapshots.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/perpgate/perpgate/internal/application"
	"github.com/perpgate/perpgate/internal/domain"
	"github.com/perpgate/perpgate/internal/gates"
	"github.com/perpgate/perpgate/internal/ingest"
)

// Job is one scheduled tick inside the bucket.
type Job struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"` // "ingest" or "evaluate"
	Enabled bool   `yaml:"enabled"`

	// OffsetSeconds positions the tick after the bucket boundary.
	OffsetSeconds int `yaml:"offset_seconds"`

	Config JobConfig `yaml:"config"`
}

// JobConfig carries the per-job request parameters.
type JobConfig struct {
	Symbols  []string `yaml:"symbols"`
	Modes    []string `yaml:"modes"`
	DriverTF string   `yaml:"driver_tf"`
	Dry      bool     `yaml:"dry"`
}

// Config is the jobs file layout.
type Config struct {
	Jobs []Job `yaml:"jobs"`
}

// DefaultConfig schedules one ingest at +60s and one evaluate at +120s.
func DefaultConfig(symbols []string) Config {
	return Config{Jobs: []Job{
		{Name: "ingest", Type: "ingest", Enabled: true, OffsetSeconds: 60,
			Config: JobConfig{Symbols: symbols}},
		{Name: "evaluate", Type: "evaluate", Enabled: true, OffsetSeconds: 120,
			Config: JobConfig{Symbols: symbols, DriverTF: "5m"}},
	}}
}

// LoadConfig reads the jobs file and validates it.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read jobs file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse jobs file: %w", err)
	}
	for _, j := range cfg.Jobs {
		if j.Type != "ingest" && j.Type != "evaluate" {
			return cfg, fmt.Errorf("job %q: unknown type %q", j.Name, j.Type)
		}
		if j.OffsetSeconds < 0 || int64(j.OffsetSeconds)*1000 >= domain.BucketMs {
			return cfg, fmt.Errorf("job %q: offset must be within one bucket", j.Name)
		}
	}
	return cfg, nil
}

// Scheduler drives the ingestor and alerter on the bucket clock.
type Scheduler struct {
	cfg      Config
	ingestor *ingest.Ingestor
	alerter  *application.Alerter
	now      func() time.Time
}

func New(cfg Config, ingestor *ingest.Ingestor, alerter *application.Alerter) *Scheduler {
	return &Scheduler{cfg: cfg, ingestor: ingestor, alerter: alerter, now: time.Now}
}

// firing is one concrete job occurrence inside a bucket.
type firing struct {
	at  time.Time
	job Job
}

// firingsFor lists the bucket's enabled jobs in offset order.
func (s *Scheduler) firingsFor(bucketStart time.Time) []firing {
	out := make([]firing, 0, len(s.cfg.Jobs))
	for _, j := range s.cfg.Jobs {
		if !j.Enabled {
			continue
		}
		out = append(out, firing{at: bucketStart.Add(time.Duration(j.OffsetSeconds) * time.Second), job: j})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].at.Before(out[k].at) })
	return out
}

// Start runs the loop until the context ends. Jobs whose offset already
// passed in the current bucket are skipped, not run late: a late evaluate
// would race the next bucket's ingest.
func (s *Scheduler) Start(ctx context.Context) error {
	log.Info().Int("jobs", len(s.cfg.Jobs)).Msg("scheduler starting")

	for {
		nowMs := s.now().UnixMilli()
		bucketStart := time.UnixMilli(domain.BucketStartMs(domain.Bucket(nowMs)))

		fired := false
		for _, f := range s.firingsFor(bucketStart) {
			wait := time.Until(f.at)
			if wait < 0 {
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			s.runJob(ctx, f.job, bucketStart.UnixMilli())
			fired = true
		}

		next := bucketStart.Add(time.Duration(domain.BucketMs) * time.Millisecond)
		if !fired && time.Until(next) <= 0 {
			next = next.Add(time.Duration(domain.BucketMs) * time.Millisecond)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(next)):
		}
	}
}

// RunJob fires one configured job immediately, for CLI-driven runs.
func (s *Scheduler) RunJob(ctx context.Context, name string) error {
	for _, j := range s.cfg.Jobs {
		if j.Name == name {
			s.runJob(ctx, j, s.now().UnixMilli())
			return nil
		}
	}
	return fmt.Errorf("job not found: %s", name)
}

func (s *Scheduler) runJob(ctx context.Context, j Job, nowMs int64) {
	start := time.Now()
	switch j.Type {
	case "ingest":
		res := s.ingestor.Run(ctx, j.Config.Symbols, nowMs)
		ok := 0
		for _, r := range res.Results {
			if r.OK {
				ok++
			}
		}
		log.Info().Str("job", j.Name).Int("ok", ok).Int("total", len(res.Results)).
			Dur("duration", time.Since(start)).Msg("ingest tick")

	case "evaluate":
		req := gates.Request{Symbols: j.Config.Symbols, Dry: j.Config.Dry, NowMs: nowMs}
		for _, m := range j.Config.Modes {
			if mode, ok := gates.ParseMode(m); ok {
				req.Modes = append(req.Modes, mode)
			}
		}
		req.DriverTF = domain.TF5m
		for _, tf := range domain.Timeframes {
			if string(tf) == j.Config.DriverTF {
				req.DriverTF = tf
			}
		}
		res, err := s.alerter.Run(ctx, req, false)
		if err != nil {
			log.Error().Str("job", j.Name).Err(err).Msg("evaluate tick failed")
			return
		}
		log.Info().Str("job", j.Name).Int("triggered", len(res.Triggered)).Bool("sent", res.Sent).
			Dur("duration", time.Since(start)).Msg("evaluate tick")
	}
}
