package pipeline

import (
	"errors"
	"time"

	"gardenloop/internal/verdict"
	"gardenloop/internal/workspace"
)

// ErrRetriesExhausted reports a run that used every attempt without a pass.
var ErrRetriesExhausted = errors.New("max retries exceeded without a passing design")

// ErrConverged reports a run stopped because scores stopped improving.
var ErrConverged = errors.New("scores converged without a passing design")

// State is a step of the generate/verify loop.
type State string

const (
	StateInit       State = "INIT"
	StateGenerating State = "GENERATING"
	StateVerifying  State = "VERIFYING"
	StateRetrying   State = "RETRYING"
	StatePassed     State = "PASSED"
	StateExhausted  State = "EXHAUSTED"
	StateConverged  State = "CONVERGED"
)

// Terminal reports whether the loop stops in s.
func (s State) Terminal() bool {
	switch s {
	case StatePassed, StateExhausted, StateConverged:
		return true
	}
	return false
}

// Transition is one recorded state change.
type Transition struct {
	From    State
	To      State
	Attempt int
}

// Attempt is one generate/verify round.
type Attempt struct {
	Number   int
	Artifact string // final location of the design; empty when generation failed
	Verdict  verdict.Verdict
	Err      error // generation or verification failure, if any
}

// HasArtifact reports whether the attempt produced an image.
func (a Attempt) HasArtifact() bool {
	return a.Artifact != ""
}

// Run is the record of one pipeline run for a zone.
type Run struct {
	ID          string
	Zone        workspace.Zone
	MaxAttempts int
	State       State
	Attempts    []Attempt
	Transitions []Transition
	Annotated   int // annotations produced by the pre-step
	Started     time.Time
	Finished    time.Time

	// Best is the passing attempt, or the highest-scoring one when the run
	// ended without a pass. Nil when no attempt produced an image.
	Best *Attempt
}

// Err maps a finished run to an error: nil for PASSED, a sentinel otherwise.
func (r *Run) Err() error {
	switch r.State {
	case StatePassed:
		return nil
	case StateConverged:
		return ErrConverged
	default:
		return ErrRetriesExhausted
	}
}

// Scores returns the scores of graded attempts in order.
func (r *Run) Scores() []int {
	var scores []int
	for _, a := range r.Attempts {
		if a.HasArtifact() && a.Verdict.Graded() {
			scores = append(scores, a.Verdict.Score)
		}
	}
	return scores
}

// Converged reports whether the latest score fails to beat either of the two
// before it. Fewer than three scores never converge.
func Converged(scores []int) bool {
	n := len(scores)
	if n < 3 {
		return false
	}
	cur := scores[n-1]
	return cur <= scores[n-2] && cur <= scores[n-3]
}

// SelectBest picks the passing attempt if there is one, else the attempt
// with the highest score, the earliest winning ties. Attempts without an
// artifact are never chosen.
func SelectBest(attempts []Attempt) *Attempt {
	var best *Attempt
	for i := range attempts {
		a := &attempts[i]
		if !a.HasArtifact() {
			continue
		}
		if a.Verdict.Passed() {
			return a
		}
		if best == nil || a.Verdict.Score > best.Verdict.Score {
			best = a
		}
	}
	return best
}
