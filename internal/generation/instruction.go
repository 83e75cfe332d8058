package generation

import "strings"

// Section headers of the generation instruction, in the order they appear.
const (
	SectionRules       = "=== GARDEN RULES ==="
	SectionAnnotations = "=== SPACE ANNOTATIONS ==="
	SectionFeedback    = "=== PREVIOUS ATTEMPT FEEDBACK ==="
	SectionTask        = "=== GENERATION TASK ==="

	sectionSeparator = "\n\n"
	notesSeparator   = "\n---\n"
)

// Instruction is the text part of a generation request. Empty sections are
// left out; the task is always present.
type Instruction struct {
	Rules    string   // prompts/system_prompt.md
	Notes    []string // annotation notes
	Feedback string   // verifier feedback on the previous attempt
	Task     string   // prompts/<zone>.md
}

// Assemble renders the sections in fixed order.
func (in Instruction) Assemble() string {
	var sections []string
	if strings.TrimSpace(in.Rules) != "" {
		sections = append(sections, SectionRules+"\n"+in.Rules)
	}
	if len(in.Notes) > 0 {
		sections = append(sections, SectionAnnotations+"\n"+strings.Join(in.Notes, notesSeparator))
	}
	if fb := strings.TrimSpace(in.Feedback); fb != "" {
		sections = append(sections, SectionFeedback+"\n"+fb)
	}
	sections = append(sections, SectionTask+"\n"+in.Task)
	return strings.Join(sections, sectionSeparator)
}
