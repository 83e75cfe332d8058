// Package status reports what a garden project has on disk: reference
// photos, per-zone inspiration and designs, best verified scores, and what
// is still missing before generation can start.
package status

import (
	"fmt"
	"os"
	"path/filepath"

	"gardenloop/internal/feedbacklog"
	"gardenloop/internal/logging"
	"gardenloop/internal/usage"
	"gardenloop/internal/verdict"
	"gardenloop/internal/workspace"

	"github.com/charmbracelet/glamour"
)

// ZoneStatus is one row of the zone table.
type ZoneStatus struct {
	Zone        workspace.Zone
	Inspiration int
	Generated   int
	Rejected    int
	Best        *feedbacklog.VerifyEntry // nil when nothing was verified
}

// BestScore renders the best score as "n/50", or "-".
func (z ZoneStatus) BestScore() string {
	if z.Best == nil {
		return "-"
	}
	return fmt.Sprintf("%d/%d", z.Best.Score, verdict.MaxScore)
}

// Report is a snapshot of the project.
type Report struct {
	SpacePhotos int
	Annotated   int
	Layouts     int
	Zones       []ZoneStatus
	Issues      []string
	Usage       *usage.AggregatedStats // nil before the first model call
}

// Ready reports whether nothing blocks generation.
func (r Report) Ready() bool {
	return len(r.Issues) == 0
}

// Collect scans the project. The full zone's inspiration count is the sum
// over every other zone.
func Collect(layout *workspace.Layout, log *feedbacklog.Log) (Report, error) {
	r := Report{
		SpacePhotos: workspace.CountImages(layout.Space),
		Annotated:   workspace.CountImages(layout.Annotated),
		Layouts:     workspace.CountImages(layout.Layouts),
	}

	if _, err := os.Stat(filepath.Join(layout.Feedback, usage.FileName)); err == nil {
		stats := usage.NewTracker(layout.Feedback).Stats()
		r.Usage = &stats
	}

	entries, err := log.ReadVerifyLog()
	if err != nil {
		return Report{}, fmt.Errorf("failed to read verify log: %w", err)
	}
	best := feedbacklog.BestByZone(entries)

	inspiration := make(map[workspace.Zone]int)
	totalInspiration := 0
	for _, z := range workspace.Zones {
		if z == workspace.ZoneFull {
			continue
		}
		inspiration[z] = workspace.CountImages(filepath.Join(layout.Inspiration, string(z)))
		totalInspiration += inspiration[z]
	}
	inspiration[workspace.ZoneFull] = totalInspiration

	for _, z := range workspace.Zones {
		generated, err := workspace.ZoneImages(layout.Visuals, z)
		if err != nil {
			return Report{}, err
		}
		rejected, err := workspace.ZoneImages(layout.Rejected, z)
		if err != nil {
			return Report{}, err
		}
		zs := ZoneStatus{
			Zone:        z,
			Inspiration: inspiration[z],
			Generated:   len(generated),
			Rejected:    len(rejected),
		}
		if e, ok := best[z]; ok {
			zs.Best = &e
		}
		r.Zones = append(r.Zones, zs)
	}

	if r.SpacePhotos == 0 {
		r.Issues = append(r.Issues, "No space photos in ref/space/")
	}
	if r.Annotated == 0 && r.SpacePhotos > 0 {
		r.Issues = append(r.Issues, "Space photos not annotated yet (run: garden annotate)")
	}
	if totalInspiration == 0 {
		r.Issues = append(r.Issues, "No inspiration images in ref/inspiration/")
	}

	logging.Get(logging.CategoryStatus).Debug("status: space=%d annotated=%d layouts=%d issues=%d",
		r.SpacePhotos, r.Annotated, r.Layouts, len(r.Issues))
	return r, nil
}

// RenderLog renders verify_log.md as terminal Markdown. style is a glamour
// standard style name ("dark", "light", "notty", ...) or "auto".
func RenderLog(log *feedbacklog.Log, style string, width int) (string, error) {
	data, err := os.ReadFile(log.VerifyPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "No verifications logged yet.\n", nil
		}
		return "", err
	}

	styleOpt := glamour.WithStandardStyle(style)
	if style == "" || style == "auto" {
		styleOpt = glamour.WithAutoStyle()
	}
	renderer, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return renderer.Render("# Verify log\n" + string(data))
}
