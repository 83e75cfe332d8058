// Package pipeline drives the self-correcting design loop for one zone:
// generate a design, verify it against the real garden, feed the verdict
// back into the next attempt, and stop on a pass, on converging scores, or
// when attempts run out.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gardenloop/internal/annotation"
	"gardenloop/internal/generation"
	"gardenloop/internal/logging"
	"gardenloop/internal/perception"
	"gardenloop/internal/verdict"
	"gardenloop/internal/verification"
	"gardenloop/internal/workspace"

	"github.com/google/uuid"
)

// Generator produces one design per call.
type Generator interface {
	Generate(ctx context.Context, zone workspace.Zone, feedback string) (string, error)
}

// Preparer assembles a design request without sending it.
type Preparer interface {
	Prepare(ctx context.Context, zone workspace.Zone, feedback string) (perception.Request, generation.Inputs, error)
}

// Verifier grades and files one design.
type Verifier interface {
	VerifyAndHandle(ctx context.Context, imagePath string) (verification.Result, error)
}

// Annotator runs the annotation pre-step.
type Annotator interface {
	HasAnnotations() bool
	AnnotateAll(ctx context.Context) ([]annotation.Output, error)
}

// Options configure one run.
type Options struct {
	Zone         workspace.Zone
	MaxAttempts  int // total generate/verify rounds
	SkipAnnotate bool
}

// Orchestrator runs the generate/verify loop. Calls are strictly sequential.
type Orchestrator struct {
	gen   Generator
	ver   Verifier
	ann   Annotator
	delay time.Duration

	// Sleep waits between attempts; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	// NewID names runs.
	NewID func() string
	// OnTransition, when set, observes every state change.
	OnTransition func(run *Run, t Transition)
}

// NewOrchestrator wires the loop. ann may be nil to disable the pre-step.
func NewOrchestrator(gen Generator, ver Verifier, ann Annotator, retryDelay time.Duration) *Orchestrator {
	return &Orchestrator{
		gen:   gen,
		ver:   ver,
		ann:   ann,
		delay: retryDelay,
		Sleep: sleepContext,
		NewID: uuid.NewString,
	}
}

// =============================================================================
// RUN
// =============================================================================

// Run executes the loop until a terminal state. A non-passing terminal state
// is not an error; see Run.Err. The only errors returned are invalid options
// and context cancellation, in which case the partial run is returned too.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Run, error) {
	zone, err := workspace.ParseZone(string(opts.Zone))
	if err != nil {
		return nil, err
	}
	if opts.MaxAttempts < 1 {
		return nil, fmt.Errorf("max retries must be at least 1, got %d", opts.MaxAttempts)
	}

	run := &Run{
		ID:          o.NewID(),
		Zone:        zone,
		MaxAttempts: opts.MaxAttempts,
		State:       StateInit,
		Started:     time.Now(),
	}
	ctx = logging.WithRunID(ctx, run.ID)
	log := logging.For(ctx, logging.CategoryPipeline)
	log.Info("Pipeline started for %s (max %d attempts)", zone, opts.MaxAttempts)

	defer func() {
		run.Finished = time.Now()
		run.Best = SelectBest(run.Attempts)
	}()

	if run.Annotated, err = o.annotate(ctx, opts.SkipAnnotate); err != nil {
		return run, err
	}

	feedback := ""
	for n := 1; ; n++ {
		o.transition(run, StateGenerating, n)
		log.Info("Generate (attempt %d/%d)", n, opts.MaxAttempts)

		path, err := o.gen.Generate(ctx, zone, feedback)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return run, ctxErr
		}
		if err != nil {
			log.Error("Generation failed on attempt %d: %v", n, err)
			run.Attempts = append(run.Attempts, Attempt{Number: n, Err: err})
			if !o.retryOrExhaust(ctx, run, n) {
				return run, ctx.Err()
			}
			if run.State.Terminal() {
				return run, nil
			}
			continue
		}

		o.transition(run, StateVerifying, n)
		res, err := o.ver.VerifyAndHandle(ctx, path)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return run, ctxErr
		}
		attempt := attemptFrom(n, path, res, err)
		run.Attempts = append(run.Attempts, attempt)
		v := attempt.Verdict

		if v.Passed() {
			o.transition(run, StatePassed, n)
			log.Info("Pipeline complete: %s scored %d/%d", attempt.Artifact, v.Score, verdict.MaxScore)
			return run, nil
		}
		if v.Graded() && Converged(run.Scores()) {
			o.transition(run, StateConverged, n)
			log.Warn("Scores converged at %v, stopping", run.Scores())
			return run, nil
		}

		switch v.Category {
		case verdict.CategoryMarginal:
			log.Warn("Marginal result (%d/%d), keeping it and trying for better", v.Score, verdict.MaxScore)
		case verdict.CategoryReject:
			log.Warn("Rejected (%d/%d)", v.Score, verdict.MaxScore)
		default:
			log.Warn("Verdict unknown for attempt %d", n)
		}
		if v.Graded() {
			feedback = v.BuildFeedback()
		}

		if !o.retryOrExhaust(ctx, run, n) {
			return run, ctx.Err()
		}
		if run.State.Terminal() {
			return run, nil
		}
	}
}

// retryOrExhaust moves the run to RETRYING and waits, or to EXHAUSTED when
// no attempts remain. It returns false if ctx ended during the wait.
func (o *Orchestrator) retryOrExhaust(ctx context.Context, run *Run, n int) bool {
	log := logging.For(ctx, logging.CategoryPipeline)
	if n >= run.MaxAttempts {
		o.transition(run, StateExhausted, n)
		log.Warn("All %d attempts used without a pass", run.MaxAttempts)
		return true
	}
	o.transition(run, StateRetrying, n)
	log.Info("Retrying (%d/%d) in %v", n+1, run.MaxAttempts, o.delay)
	return o.Sleep(ctx, o.delay) == nil
}

func (o *Orchestrator) transition(run *Run, to State, attempt int) {
	t := Transition{From: run.State, To: to, Attempt: attempt}
	run.State = to
	run.Transitions = append(run.Transitions, t)
	if o.OnTransition != nil {
		o.OnTransition(run, t)
	}
}

// attemptFrom records a verified design. A verifier error without a verdict
// still counts as an UNKNOWN attempt.
func attemptFrom(n int, path string, res verification.Result, err error) Attempt {
	a := Attempt{Number: n, Artifact: res.FinalPath, Verdict: res.Verdict, Err: err}
	if a.Artifact == "" {
		a.Artifact = path
	}
	if a.Verdict.Category == "" {
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		a.Verdict = verdict.Unknown("", msg)
	}
	return a
}

// =============================================================================
// ANNOTATION PRE-STEP
// =============================================================================

// annotate runs the annotation step unless skipped or already done. Missing
// annotations are a warning, not a failure.
func (o *Orchestrator) annotate(ctx context.Context, skip bool) (int, error) {
	log := logging.For(ctx, logging.CategoryPipeline)
	switch {
	case o.ann == nil:
		return 0, nil
	case skip:
		log.Info("Skipping annotation (--skip-annotate)")
		return 0, nil
	case o.ann.HasAnnotations():
		log.Info("Annotated photos already exist, skipping annotation")
		return 0, nil
	}

	log.Info("Annotating space photos")
	outputs, err := o.ann.AnnotateAll(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return len(outputs), ctxErr
	}
	switch {
	case err != nil:
		log.Warn("Annotation failed: %v. Continuing with raw photos", err)
	case len(outputs) == 0:
		log.Warn("No photos annotated. Continuing with raw photos")
	}
	return len(outputs), nil
}

// =============================================================================
// DRY RUN
// =============================================================================

// Plan describes the first request of a run without sending it.
type Plan struct {
	Zone          workspace.Zone
	Inputs        generation.Inputs
	Images        int
	ImageBytes    int
	Prompt        string
	WouldAnnotate bool
}

// DryRun assembles the first generation request and reports what it holds.
// No remote call is made.
func (o *Orchestrator) DryRun(ctx context.Context, p Preparer, opts Options) (*Plan, error) {
	if p == nil {
		return nil, errors.New("dry run needs a request preparer")
	}
	req, in, err := p.Prepare(ctx, opts.Zone, "")
	if err != nil {
		return nil, err
	}
	plan := &Plan{
		Zone:          in.Zone,
		Inputs:        in,
		Images:        len(req.Images),
		Prompt:        req.Prompt,
		WouldAnnotate: o.ann != nil && !opts.SkipAnnotate && !o.ann.HasAnnotations(),
	}
	for _, part := range req.Images {
		plan.ImageBytes += len(part.Data)
	}
	logging.For(ctx, logging.CategoryPipeline).Info("Dry run for %s: %d image(s), %d bytes, prompt %d chars",
		plan.Zone, plan.Images, plan.ImageBytes, len(plan.Prompt))
	return plan, nil
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
