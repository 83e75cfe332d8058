// Package workspace owns the on-disk layout of a garden project: reference
// photos, inspiration folders, layout drawings, prompts, and the generated
// outputs with their per-zone version numbers.
package workspace

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gardenloop/internal/config"
	"gardenloop/internal/logging"
)

// ErrMissingPrompt is returned when a required prompt file does not exist.
var ErrMissingPrompt = errors.New("prompt not found")

// imageExts are the reference formats the pipeline can decode.
var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// Layout resolves every project directory once so components never build
// paths on their own.
type Layout struct {
	Root        string
	Space       string
	Inspiration string
	Layouts     string
	Annotated   string
	Visuals     string
	Rejected    string
	Feedback    string
	Prompts     string

	// Rand drives inspiration sampling; nil uses the global source.
	Rand *rand.Rand
}

// NewLayout resolves the configured paths against the project root.
func NewLayout(cfg *config.Config) *Layout {
	return &Layout{
		Root:        cfg.Root,
		Space:       cfg.Path(cfg.Paths.Space),
		Inspiration: cfg.Path(cfg.Paths.Inspiration),
		Layouts:     cfg.Path(cfg.Paths.Layouts),
		Annotated:   cfg.Path(cfg.Paths.Annotated),
		Visuals:     cfg.Path(cfg.Paths.Visuals),
		Rejected:    cfg.Path(cfg.Paths.Rejected),
		Feedback:    cfg.Path(cfg.Paths.Feedback),
		Prompts:     cfg.Path(cfg.Paths.Prompts),
	}
}

// IsImage reports whether a path has a supported image extension.
func IsImage(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}

// ListImages returns up to max image paths from dir in name order. A missing
// directory is empty, not an error. max <= 0 means no limit.
func ListImages(dir string, max int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var images []string
	for _, e := range entries {
		if e.IsDir() || !IsImage(e.Name()) {
			continue
		}
		images = append(images, filepath.Join(dir, e.Name()))
	}
	sort.Strings(images)
	if max > 0 && len(images) > max {
		images = images[:max]
	}
	return images, nil
}

// CountImages counts the images directly inside dir.
func CountImages(dir string) int {
	images, err := ListImages(dir, 0)
	if err != nil {
		logging.WorkspaceDebug("count %s: %v", dir, err)
		return 0
	}
	return len(images)
}

// SampleImages picks up to max images at random when dir holds more, and
// returns them in name order.
func (l *Layout) SampleImages(dir string, max int) ([]string, error) {
	images, err := ListImages(dir, 0)
	if err != nil {
		return nil, err
	}
	if max <= 0 || len(images) <= max {
		return images, nil
	}

	shuffle := rand.Shuffle
	if l.Rand != nil {
		shuffle = l.Rand.Shuffle
	}
	shuffle(len(images), func(i, j int) { images[i], images[j] = images[j], images[i] })
	images = images[:max]
	sort.Strings(images)
	return images, nil
}

// SpacePhotos returns annotated space photos when any exist, otherwise the
// raw ones. annotated tells the caller which set it got.
func (l *Layout) SpacePhotos(max int) (photos []string, annotated bool, err error) {
	photos, err = ListImages(l.Annotated, max)
	if err != nil {
		return nil, false, err
	}
	if len(photos) > 0 {
		return photos, true, nil
	}
	photos, err = ListImages(l.Space, max)
	return photos, false, err
}

// InspirationImages samples up to max references for a zone. The full
// garden takes one image from every inspiration subfolder, capped at maxFull.
func (l *Layout) InspirationImages(zone Zone, max, maxFull int) ([]string, error) {
	if zone != ZoneFull {
		return l.SampleImages(filepath.Join(l.Inspiration, string(zone)), max)
	}

	entries, err := os.ReadDir(l.Inspiration)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", l.Inspiration, err)
	}

	var all []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		picked, err := l.SampleImages(filepath.Join(l.Inspiration, e.Name()), 1)
		if err != nil {
			return nil, err
		}
		all = append(all, picked...)
	}
	if maxFull > 0 && len(all) > maxFull {
		all = all[:maxFull]
	}
	return all, nil
}

// LayoutDrawings returns up to max top-down layout drawings.
func (l *Layout) LayoutDrawings(max int) ([]string, error) {
	return l.SampleImages(l.Layouts, max)
}

// LoadPrompt reads prompts/<name>.md. A missing prompt returns ErrMissingPrompt.
func (l *Layout) LoadPrompt(name string) (string, error) {
	path := filepath.Join(l.Prompts, name+".md")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrMissingPrompt, path)
		}
		return "", fmt.Errorf("failed to read prompt %s: %w", path, err)
	}
	return string(data), nil
}

// OptionalPrompt is LoadPrompt that treats a missing file as empty.
func (l *Layout) OptionalPrompt(name string) (string, error) {
	s, err := l.LoadPrompt(name)
	if errors.Is(err, ErrMissingPrompt) {
		return "", nil
	}
	return s, err
}

// AnnotationNotes returns the text notes written by the annotation step, in
// name order.
func (l *Layout) AnnotationNotes() ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(l.Annotated, "*_notes.md"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	notes := make([]string, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read notes %s: %w", p, err)
		}
		notes = append(notes, string(data))
	}
	return notes, nil
}

// HasAnnotations reports whether the annotation step has produced anything.
func (l *Layout) HasAnnotations() bool {
	for _, pattern := range []string{"*_annotated.jpg", "*_notes.md"} {
		matches, _ := filepath.Glob(filepath.Join(l.Annotated, pattern))
		if len(matches) > 0 {
			return true
		}
	}
	return false
}

// =============================================================================
// VERSIONING
// =============================================================================

// ZoneImages returns the versioned images of a zone in dir, in name order.
func ZoneImages(dir string, zone Zone) ([]string, error) {
	images, err := ListImages(dir, 0)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, p := range images {
		if _, ok := versionOf(zone, p); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// versionOf reads N from "<zone>_v<N>.<ext>".
func versionOf(zone Zone, path string) (int, bool) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	digits, ok := strings.CutPrefix(stem, string(zone)+"_v")
	if !ok || digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// NextVersion returns one more than the highest version of zone found among
// the generated and rejected images, or 1 when there are none. Rejected
// images are counted so a version number is never reused.
func (l *Layout) NextVersion(zone Zone) (int, error) {
	highest := 0
	for _, dir := range []string{l.Visuals, l.Rejected} {
		images, err := ZoneImages(dir, zone)
		if err != nil {
			return 0, err
		}
		for _, p := range images {
			if n, ok := versionOf(zone, p); ok && n > highest {
				highest = n
			}
		}
	}
	return highest + 1, nil
}

// VersionPath is where version n of a zone's design is written.
func (l *Layout) VersionPath(zone Zone, n int) string {
	return filepath.Join(l.Visuals, fmt.Sprintf("%s_v%d.jpg", zone, n))
}

// =============================================================================
// REJECTED IMAGES
// =============================================================================

// MoveToRejected relocates an image into the rejected folder and returns its
// new path.
func (l *Layout) MoveToRejected(path string) (string, error) {
	if err := os.MkdirAll(l.Rejected, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", l.Rejected, err)
	}
	dest := filepath.Join(l.Rejected, filepath.Base(path))
	if err := os.Rename(path, dest); err == nil {
		return dest, nil
	}

	// Rename fails across filesystems; copy then remove.
	if err := copyFile(path, dest); err != nil {
		return "", fmt.Errorf("failed to move %s to rejected: %w", path, err)
	}
	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("failed to remove %s after copy: %w", path, err)
	}
	return dest, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
