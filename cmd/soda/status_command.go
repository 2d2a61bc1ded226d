package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"sodareplay/internal/api"
	"sodareplay/internal/config"
	"sodareplay/internal/ledger"
	"sodareplay/internal/preflight"
)

const statusProbeTimeout = 2 * time.Second

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, ledger, and preflight status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			status, remote, err := fetchStatus(cmd.Context(), ctx.apiClient(), cfg)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}
			renderStatus(cmd.OutOrStdout(), status, remote)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print status as JSON")
	return cmd
}

// fetchStatus asks the daemon first and assembles a local report when it is
// unreachable. An authentication failure is surfaced rather than masked.
func fetchStatus(ctx context.Context, client *api.Client, cfg *config.Config) (api.DaemonStatus, bool, error) {
	if client != nil {
		probeCtx, cancel := context.WithTimeout(ctx, statusProbeTimeout)
		status, err := client.Status(probeCtx)
		cancel()
		if err == nil {
			return *status, true, nil
		}
		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			return api.DaemonStatus{}, false, err
		}
	}
	status, err := localStatus(ctx, cfg)
	return status, false, err
}

func localStatus(ctx context.Context, cfg *config.Config) (api.DaemonStatus, error) {
	status := api.DaemonStatus{
		LedgerPath:  cfg.LedgerPath(),
		ExportDir:   cfg.Paths.ExportDir,
		CapturePath: cfg.CapturePath(),
		Checks:      api.FromChecks(preflight.RunAll(ctx, cfg)),
	}
	store, err := ledger.Open(cfg)
	if err != nil {
		return status, err
	}
	defer store.Close()

	stats, err := store.Stats(ctx)
	if err != nil {
		return status, err
	}
	status.Ledger = api.FromStats(stats)
	if latest, err := store.LatestCapture(ctx); err == nil {
		status.LatestCapture = api.FromCapture(latest)
	}
	return status, nil
}
