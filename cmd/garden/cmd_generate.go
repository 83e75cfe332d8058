package main

import (
	"errors"
	"fmt"
	"strings"

	"gardenloop/internal/feedbacklog"
	"gardenloop/internal/generation"
	"gardenloop/internal/workspace"

	"github.com/spf13/cobra"
)

var (
	generateZone  string
	generateCount int
)

// generateCmd produces designs without verifying them
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate designs for a zone without verification",
	Long: `Generates --count independent designs for a zone. Nothing is verified
and no feedback is carried between them.

Example:
  garden generate --zone plants --count 3`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&generateZone, "zone", "z", "", "Zone to design ("+zoneList()+")")
	generateCmd.Flags().IntVarP(&generateCount, "count", "n", 1, "Number of designs")
	_ = generateCmd.MarkFlagRequired("zone")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	zone, err := workspace.ParseZone(generateZone)
	if err != nil {
		return err
	}
	if generateCount < 1 {
		return fmt.Errorf("--count must be at least 1, got %d", generateCount)
	}

	model, err := modelFactory(ctx, cfg)
	if err != nil {
		return err
	}
	defer reportUsage(model)

	layout := workspace.NewLayout(cfg)
	gen := generation.NewGenerator(cfg, layout, model, feedbacklog.New(layout.Feedback))
	paths, err := gen.GenerateN(ctx, zone, generateCount)
	for _, p := range paths {
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", p)
	}
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("no designs generated")
	}
	return nil
}

func zoneList() string {
	return strings.Join(workspace.ZoneNames(), ", ")
}
