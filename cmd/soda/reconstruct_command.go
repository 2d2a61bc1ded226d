package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sodareplay/internal/api"
	"sodareplay/internal/assetref"
	"sodareplay/internal/capture"
	"sodareplay/internal/fileutil"
	"sodareplay/internal/manifest"
	"sodareplay/internal/scene"
)

func newReconstructCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	var jsonOutput bool
	var rosterPolicy string

	cmd := &cobra.Command{
		Use:   "reconstruct [capture]",
		Short: "Rebuild the scene from a capture and the local asset store",
		Long: "Reconstruct parses a capture (default: export_dir/capture_file), indexes the assets\n" +
			"already in export_dir, and builds the scene description.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.CapturePath()
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				path = args[0]
			}
			policyName := cfg.Replay.RosterPolicy
			if strings.TrimSpace(rosterPolicy) != "" {
				policyName = rosterPolicy
			}
			policy, err := scene.ParseRosterPolicy(policyName)
			if err != nil {
				return err
			}

			timeline, err := capture.ReadFile(path)
			if err != nil {
				return err
			}
			assets, err := manifest.ScanAssets(assetref.NewLayout(cfg.Paths.ExportDir))
			if err != nil {
				return err
			}
			sc, err := scene.Reconstruct(cmd.Context(), timeline, assets,
				scene.WithRosterPolicy(policy),
				scene.WithLogger(ctx.cliLogger()),
			)
			if err != nil {
				return err
			}

			if outputPath != "" {
				data, err := json.MarshalIndent(sc, "", "  ")
				if err != nil {
					return fmt.Errorf("encode scene: %w", err)
				}
				if err := fileutil.WriteAtomic(outputPath, append(data, '\n'), 0o644); err != nil {
					return fmt.Errorf("write scene: %w", err)
				}
			}
			if jsonOutput {
				return writeJSON(cmd, sc)
			}
			renderScene(cmd.OutOrStdout(), api.SummarizeScene(sc, time.Now(), nil))
			if outputPath != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Scene written to %s\n", outputPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the scene description to this file")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the scene description as JSON")
	cmd.Flags().StringVar(&rosterPolicy, "roster-policy", "", "Override replay.roster_policy (strict, ignore_extra, freeze_missing)")
	return cmd
}
