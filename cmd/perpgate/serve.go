package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/perpgate/perpgate/internal/application"
	httpiface "github.com/perpgate/perpgate/internal/interfaces/http"
	"github.com/perpgate/perpgate/internal/scheduler"
)

func serveCmd() *cobra.Command {
	var jobsPath string
	var withScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway, optionally with the in-process scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := application.Load(configPath)
			if err != nil {
				return err
			}
			app, err := application.NewApp(cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			srv := httpiface.NewServer(httpiface.Config{
				Addr:           cfg.ListenAddr,
				AuthKey:        cfg.AuthKey,
				DefaultSymbols: cfg.Symbols,
				HeartbeatKey:   cfg.Gates.HeartbeatKey,
			}, app.Ingestor, app.Alerter, app.Store, app.Archive, app.Registry)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()
			log.Info().Str("addr", cfg.ListenAddr).Msg("gateway listening")

			if withScheduler {
				schedCfg := scheduler.DefaultConfig(cfg.Symbols)
				if jobsPath != "" {
					schedCfg, err = scheduler.LoadConfig(jobsPath)
					if err != nil {
						return err
					}
				}
				sched := scheduler.New(schedCfg, app.Ingestor, app.Alerter)
				go func() {
					if err := sched.Start(ctx); err != nil && ctx.Err() == nil {
						log.Error().Err(err).Msg("scheduler stopped")
					}
				}()
			}

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			log.Info().Msg("shutting down")
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().BoolVar(&withScheduler, "scheduler", false, "Run the in-process job scheduler")
	cmd.Flags().StringVar(&jobsPath, "jobs", "", "Path to scheduler jobs file (YAML)")
	return cmd
}
