package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sodareplay/internal/api"
	"sodareplay/internal/ledger"
	"sodareplay/internal/manifest"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var remote bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "resolve [manifest.json|-]",
		Short: "Resolve an asset manifest into the local store",
		Long: "Resolve reads a manifest (from a file or stdin) and downloads every referenced asset\n" +
			"into export_dir. With --remote the manifest is submitted to the running daemon instead.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			var resp *api.AssetsResponse
			if remote {
				client := ctx.apiClient()
				if client == nil {
					return fmt.Errorf("no daemon address configured")
				}
				resp, err = client.SubmitManifest(cmd.Context(), data)
				if err != nil {
					return fmt.Errorf("submit manifest: %w", err)
				}
			} else {
				resp, err = resolveLocally(cmd, ctx, data)
				if err != nil {
					return err
				}
			}

			if jsonOutput {
				if err := writeJSON(cmd, resp); err != nil {
					return err
				}
			} else {
				renderAssets(cmd.OutOrStdout(), resp)
			}
			return assetsError(resp)
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Submit to the running daemon")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the response as JSON")
	return cmd
}

func resolveLocally(cmd *cobra.Command, ctx *commandContext, data []byte) (*api.AssetsResponse, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	m, err := manifest.Decode(data)
	if err != nil {
		return nil, err
	}
	store, err := ledger.Open(cfg)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	report, err := localResolver(cfg, store, ctx.cliLogger()).Resolve(cmd.Context(), m)
	if err != nil {
		return nil, err
	}
	resp := api.FromReport(report)
	return &resp, nil
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", args[0], err)
	}
	return data, nil
}

// assetsError turns a partial resolution into a non-zero exit.
func assetsError(resp *api.AssetsResponse) error {
	if resp == nil || resp.Status == api.StatusOK {
		return nil
	}
	s := resp.Summary
	return fmt.Errorf("%d of %d references did not resolve (run %s)", s.Failed+s.Invalid+s.Cancelled, s.Total, resp.RunID)
}
