package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/perpgate/perpgate/internal/application"
)

func snapshotCmd() *cobra.Command {
	var symbols []string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Ingest one batch of 5-minute snapshots and exit",
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

			syms := cfg.Symbols
			if len(symbols) > 0 {
				syms = symbols
			}
			res := app.Ingestor.Run(cmd.Context(), syms, time.Now().UnixMilli())

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringSliceVar(&symbols, "symbols", nil, "Symbols to ingest (default: configured symbols)")
	return cmd
}
