package main

import (
	"fmt"
	"io"
	"path/filepath"

	"gardenloop/internal/annotation"
	"gardenloop/internal/feedbacklog"
	"gardenloop/internal/generation"
	"gardenloop/internal/logging"
	"gardenloop/internal/pipeline"
	"gardenloop/internal/verdict"
	"gardenloop/internal/verification"
	"gardenloop/internal/workspace"

	"github.com/spf13/cobra"
)

var (
	pipelineZone         string
	pipelineMaxRetries   int
	pipelineSkipAnnotate bool
	pipelineDryRun       bool
)

// pipelineCmd runs the generate/verify loop for one zone
var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Generate and verify designs for a zone until one passes",
	Long: `Runs the self-correcting loop for one zone:
  1. Annotate space photos (unless already done or --skip-annotate)
  2. Generate a design
  3. Verify it against the space photos
  4. On a miss, feed the verdict into the next attempt

Stops on a PASS, when the last three scores stop improving, or after
--max-retries attempts. The best design is reported either way.

Example:
  garden pipeline --zone shade --max-retries 5`,
	RunE: runPipeline,
}

func init() {
	pipelineCmd.Flags().StringVarP(&pipelineZone, "zone", "z", "", "Zone to design ("+zoneList()+")")
	pipelineCmd.Flags().IntVar(&pipelineMaxRetries, "max-retries", 0, "Total attempts (default: pipeline.max_retries)")
	pipelineCmd.Flags().BoolVar(&pipelineSkipAnnotate, "skip-annotate", false, "Skip the annotation pre-step")
	pipelineCmd.Flags().BoolVar(&pipelineDryRun, "dry-run", false, "Show the first request without calling the model")
	_ = pipelineCmd.MarkFlagRequired("zone")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	zone, err := workspace.ParseZone(pipelineZone)
	if err != nil {
		return err
	}
	opts := pipeline.Options{
		Zone:         zone,
		MaxAttempts:  pipelineMaxRetries,
		SkipAnnotate: pipelineSkipAnnotate,
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = cfg.Pipeline.MaxRetries
	}

	layout := workspace.NewLayout(cfg)
	flog := feedbacklog.New(layout.Feedback)

	if pipelineDryRun {
		gen := generation.NewGenerator(cfg, layout, nil, flog)
		orch := pipeline.NewOrchestrator(gen, nil, annotation.NewAnnotator(cfg, layout, nil), cfg.GetRetryDelay())
		plan, err := orch.DryRun(ctx, gen, opts)
		if err != nil {
			return err
		}
		printPlan(out, plan, opts)
		return nil
	}

	model, err := modelFactory(ctx, cfg)
	if err != nil {
		return err
	}
	defer reportUsage(model)

	orch := pipeline.NewOrchestrator(
		generation.NewGenerator(cfg, layout, model, flog),
		verification.NewVerifier(cfg, layout, model, flog),
		annotation.NewAnnotator(cfg, layout, model),
		cfg.GetRetryDelay(),
	)
	orch.OnTransition = func(run *pipeline.Run, t pipeline.Transition) {
		logging.Get(logging.CategoryPipeline).With("run", run.ID).Debug("%s -> %s (attempt %d)", t.From, t.To, t.Attempt)
	}

	run, err := orch.Run(ctx, opts)
	if run != nil {
		printRun(out, run)
	}
	if err != nil {
		return err
	}
	if run.Best == nil {
		return run.Err()
	}
	return nil
}

func printPlan(w io.Writer, plan *pipeline.Plan, opts pipeline.Options) {
	in := plan.Inputs
	fmt.Fprintf(w, "Dry run for zone %s (max %d attempts)\n", plan.Zone, opts.MaxAttempts)
	if plan.WouldAnnotate {
		fmt.Fprintln(w, "  Annotation:    would annotate space photos first")
	}
	label := "raw"
	if in.Annotated {
		label = "annotated"
	}
	fmt.Fprintf(w, "  Space photos:  %d (%s)\n", len(in.SpacePhotos), label)
	fmt.Fprintf(w, "  Inspiration:   %d\n", len(in.Inspiration))
	fmt.Fprintf(w, "  Layouts:       %d\n", len(in.Layouts))
	fmt.Fprintf(w, "  Notes:         %d\n", in.Notes)
	fmt.Fprintf(w, "  Request:       %d image(s), %d bytes, prompt %d chars\n\n", plan.Images, plan.ImageBytes, len(plan.Prompt))
	fmt.Fprintln(w, plan.Prompt)
}

func printRun(w io.Writer, run *pipeline.Run) {
	fmt.Fprintf(w, "Run %s for %s: %s after %d attempt(s)\n", run.ID, run.Zone, run.State, len(run.Attempts))
	for _, a := range run.Attempts {
		if !a.HasArtifact() {
			fmt.Fprintf(w, "  #%d  generation failed: %v\n", a.Number, a.Err)
			continue
		}
		fmt.Fprintf(w, "  #%d  %-20s %2d/%d %s\n", a.Number, filepath.Base(a.Artifact), a.Verdict.Score, verdict.MaxScore, a.Verdict.Category)
	}
	if run.Best == nil {
		fmt.Fprintln(w, "No design was produced.")
		return
	}
	fmt.Fprintf(w, "Best: %s (%d/%d %s)\n", run.Best.Artifact, run.Best.Verdict.Score, verdict.MaxScore, run.Best.Verdict.Category)
}
