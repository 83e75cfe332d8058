// Package verdict turns free-form verification output from the model into a
// structured Verdict: a 0-50 score, a category, and the issues and prompt
// adjustments the model wants applied to the next attempt.
package verdict

import (
	"strings"
)

// MaxScore is the top of the verification scale.
const MaxScore = 50

// Score thresholds. Anything above zero and below MarginalThreshold is a reject.
const (
	PassThreshold     = 40
	MarginalThreshold = 30
)

// Category is the pass/marginal/reject classification of a verified image.
type Category string

const (
	CategoryPass     Category = "PASS"
	CategoryMarginal Category = "MARGINAL"
	CategoryReject   Category = "REJECT"
	CategoryUnknown  Category = "UNKNOWN"
)

// ParseCategory recognizes an explicit category word, ignoring case and
// surrounding whitespace. UNKNOWN is never returned as recognized.
func ParseCategory(s string) (Category, bool) {
	switch Category(strings.ToUpper(strings.TrimSpace(s))) {
	case CategoryPass:
		return CategoryPass, true
	case CategoryMarginal:
		return CategoryMarginal, true
	case CategoryReject:
		return CategoryReject, true
	}
	return CategoryUnknown, false
}

// CategoryFor derives a category from a score using the fixed thresholds.
// A zero score carries no information and stays UNKNOWN.
func CategoryFor(score int) Category {
	switch {
	case score >= PassThreshold:
		return CategoryPass
	case score >= MarginalThreshold:
		return CategoryMarginal
	case score > 0:
		return CategoryReject
	default:
		return CategoryUnknown
	}
}

// Source records which stage of the parse chain produced a verdict.
type Source string

const (
	SourceJSON    Source = "json"
	SourceMarkers Source = "markers"
	SourceNone    Source = "none"
	SourceAuto    Source = "auto" // synthesized without a model call
)

// Verdict is the structured outcome of comparing a generated image with the
// reference photos of the garden.
type Verdict struct {
	Score       int      `json:"total"`
	Category    Category `json:"verdict"`
	Issues      []string `json:"issues,omitempty"`
	Adjustments []string `json:"prompt_adjustments,omitempty"`
	Feedback    string   `json:"feedback,omitempty"`
	Raw         string   `json:"-"`
	Source      Source   `json:"-"`
}

// Passed reports whether the verdict clears the pass threshold.
func (v Verdict) Passed() bool {
	return v.Category == CategoryPass
}

// Graded reports whether the model actually scored the image.
func (v Verdict) Graded() bool {
	return v.Category != CategoryUnknown
}

// AutoPass is the verdict used when there is nothing to verify against.
func AutoPass(reason string) Verdict {
	return Verdict{
		Score:    MaxScore,
		Category: CategoryPass,
		Feedback: reason,
		Source:   SourceAuto,
	}
}

// Unknown is the verdict for a response that could not be obtained or graded.
func Unknown(raw, feedback string) Verdict {
	return Verdict{
		Category: CategoryUnknown,
		Feedback: feedback,
		Raw:      raw,
		Source:   SourceNone,
	}
}

// BuildFeedback renders the feedback handed to the next generation attempt.
// Issues come first, then adjustments; with neither, the free-text feedback
// from the response is used.
func (v Verdict) BuildFeedback() string {
	if s := joinFeedback(v.Issues, v.Adjustments); s != "" {
		return s
	}
	return strings.TrimSpace(v.Feedback)
}

func joinFeedback(issues, adjustments []string) string {
	var parts []string
	if len(issues) > 0 {
		parts = append(parts, "Issues: "+strings.Join(issues, "; "))
	}
	if len(adjustments) > 0 {
		parts = append(parts, "Adjustments: "+strings.Join(adjustments, "; "))
	}
	return strings.Join(parts, " | ")
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxScore {
		return MaxScore
	}
	return n
}
