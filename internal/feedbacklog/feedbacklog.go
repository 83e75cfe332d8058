// Package feedbacklog writes the two append-only Markdown logs of a garden
// project, generation_log.md and verify_log.md, and reads the verify log
// back for status reporting.
package feedbacklog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gardenloop/internal/verdict"
)

const (
	GenerationLogFile = "generation_log.md"
	VerifyLogFile     = "verify_log.md"

	// rawExcerpt caps how much of the model's raw answer lands in the verify log.
	rawExcerpt = 500
)

// fileLocks serializes appends per log file across every Log in the process.
var fileLocks sync.Map // path -> *sync.Mutex

func lockFor(path string) *sync.Mutex {
	m, _ := fileLocks.LoadOrStore(path, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// Log appends records under one feedback directory.
type Log struct {
	dir string

	// Now stamps generation records; tests pin it.
	Now func() time.Time
}

// New returns a Log writing into dir.
func New(dir string) *Log {
	return &Log{dir: dir, Now: time.Now}
}

// Dir is the feedback directory.
func (l *Log) Dir() string { return l.dir }

// GenerationPath is the path of generation_log.md.
func (l *Log) GenerationPath() string { return filepath.Join(l.dir, GenerationLogFile) }

// VerifyPath is the path of verify_log.md.
func (l *Log) VerifyPath() string { return filepath.Join(l.dir, VerifyLogFile) }

// GenerationRecord describes one saved design.
type GenerationRecord struct {
	Name        string // e.g. shade_v3
	Zone        string
	RunID       string
	SpacePhotos int
	Inspiration int
	Layouts     int
	Feedback    string
}

// AppendGeneration adds a record to generation_log.md.
func (l *Log) AppendGeneration(rec GenerationRecord) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\n## %s - %s\n", rec.Name, l.Now().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Zone: %s\n", rec.Zone)
	if rec.RunID != "" {
		fmt.Fprintf(&b, "- Run: %s\n", rec.RunID)
	}
	fmt.Fprintf(&b, "- Space photos: %d\n", rec.SpacePhotos)
	fmt.Fprintf(&b, "- Inspiration refs: %d\n", rec.Inspiration)
	fmt.Fprintf(&b, "- Layout drawings: %d\n", rec.Layouts)
	if rec.Feedback != "" {
		fmt.Fprintf(&b, "- Feedback applied: %s\n", oneLine(rec.Feedback))
	}
	return l.append(l.GenerationPath(), b.String())
}

// AppendVerify adds the verdict for one image to verify_log.md.
func (l *Log) AppendVerify(imageName string, v verdict.Verdict) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\n## %s - %s\n", imageName, v.Category)
	fmt.Fprintf(&b, "- Score: %d/%d\n", v.Score, verdict.MaxScore)
	if len(v.Issues) > 0 {
		fmt.Fprintf(&b, "- Issues: %s\n", oneLine(strings.Join(v.Issues, ", ")))
	}
	if len(v.Adjustments) > 0 {
		fmt.Fprintf(&b, "- Adjustments: %s\n", oneLine(strings.Join(v.Adjustments, ", ")))
	}
	if v.Feedback != "" {
		fmt.Fprintf(&b, "- Feedback: %s\n", oneLine(v.Feedback))
	}
	fmt.Fprintf(&b, "- Raw:\n```\n%s\n```\n", indent(truncate(v.Raw, rawExcerpt)))
	return l.append(l.VerifyPath(), b.String())
}

func (l *Log) append(path, record string) error {
	mu := lockFor(path)
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	if _, err := f.WriteString(record); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to %s: %w", path, err)
	}
	return f.Close()
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// indent prefixes every line of model text so none can start a record
// header or close the fence.
func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
