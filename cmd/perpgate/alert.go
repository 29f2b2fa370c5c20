package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/perpgate/perpgate/internal/application"
	"github.com/perpgate/perpgate/internal/domain"
	"github.com/perpgate/perpgate/internal/gates"
)

func alertCmd() *cobra.Command {
	var (
		symbols     []string
		modes       []string
		riskProfile string
		driverTF    string
		force       bool
		dry         bool
		debug       bool
	)

	cmd := &cobra.Command{
		Use:   "alert",
		Short: "Run one evaluation pass and exit",
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

			req := gates.Request{
				Symbols:     cfg.Symbols,
				RiskProfile: riskProfile,
				Force:       force,
				Dry:         dry,
				DriverTF:    domain.TF5m,
				NowMs:       time.Now().UnixMilli(),
			}
			if len(symbols) > 0 {
				req.Symbols = symbols
			}
			for _, raw := range modes {
				m, ok := gates.ParseMode(raw)
				if !ok {
					return fmt.Errorf("unknown mode %q", raw)
				}
				req.Modes = append(req.Modes, m)
			}
			if driverTF != "" {
				found := false
				for _, tf := range domain.Timeframes {
					if string(tf) == driverTF {
						req.DriverTF = tf
						found = true
					}
				}
				if !found {
					return fmt.Errorf("unknown driver_tf %q", driverTF)
				}
			}

			res, runErr := app.Alerter.Run(cmd.Context(), req, debug)
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			return runErr
		},
	}
	cmd.Flags().StringSliceVar(&symbols, "symbols", nil, "Symbols to evaluate (default: configured symbols)")
	cmd.Flags().StringSliceVar(&modes, "mode", nil, "Modes to evaluate (scalp, swing, build)")
	cmd.Flags().StringVar(&riskProfile, "risk-profile", "", "Risk profile (conservative, standard, aggressive)")
	cmd.Flags().StringVar(&driverTF, "driver-tf", "", "Driver timeframe (5m, 15m, 30m, 1h, 4h)")
	cmd.Flags().BoolVar(&force, "force", false, "Bypass cooldown and optionally warmup")
	cmd.Flags().BoolVar(&dry, "dry", false, "Evaluate without writing state or notifying")
	cmd.Flags().BoolVar(&debug, "debug", false, "Include per-gate outcomes in the output")
	return cmd
}
