// Package generation turns reference photos, inspiration images and zone
// prompts into a new design image for one garden zone.
package generation

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gardenloop/internal/config"
	"gardenloop/internal/feedbacklog"
	"gardenloop/internal/imaging"
	"gardenloop/internal/logging"
	"gardenloop/internal/perception"
	"gardenloop/internal/workspace"
)

// ErrNoImage is returned when the model answers without an image part.
var ErrNoImage = errors.New("model returned no image")

// SystemPromptName is the optional prompt holding the garden rules.
const SystemPromptName = "system_prompt"

// Inputs lists the files that went into one generation request.
type Inputs struct {
	Zone        workspace.Zone
	SpacePhotos []string
	Annotated   bool // SpacePhotos came from the annotated folder
	Inspiration []string
	Layouts     []string
	Notes       int // annotation notes included
	Feedback    string
}

// ImageCount is the number of image parts in the request.
func (in Inputs) ImageCount() int {
	return len(in.SpacePhotos) + len(in.Inspiration) + len(in.Layouts)
}

// Generator builds and sends design requests.
type Generator struct {
	cfg    *config.Config
	layout *workspace.Layout
	model  perception.ImageModel
	log    *feedbacklog.Log
}

// NewGenerator creates a generator. model may be nil when only Prepare is used.
func NewGenerator(cfg *config.Config, layout *workspace.Layout, model perception.ImageModel, log *feedbacklog.Log) *Generator {
	return &Generator{cfg: cfg, layout: layout, model: model, log: log}
}

// =============================================================================
// REQUEST ASSEMBLY
// =============================================================================

// Prepare assembles the request for zone without calling the model. Parts
// are ordered space photos, inspiration, layout drawings, then the
// instruction text.
func (g *Generator) Prepare(ctx context.Context, zone workspace.Zone, feedback string) (perception.Request, Inputs, error) {
	log := logging.For(ctx, logging.CategoryGenerate)

	zone, err := workspace.ParseZone(string(zone))
	if err != nil {
		return perception.Request{}, Inputs{}, err
	}
	task, err := g.layout.LoadPrompt(string(zone))
	if err != nil {
		return perception.Request{}, Inputs{}, err
	}
	rules, err := g.layout.OptionalPrompt(SystemPromptName)
	if err != nil {
		return perception.Request{}, Inputs{}, err
	}
	notes, err := g.layout.AnnotationNotes()
	if err != nil {
		return perception.Request{}, Inputs{}, err
	}

	in := Inputs{Zone: zone, Notes: len(notes), Feedback: feedback}
	p := g.cfg.Pipeline

	in.SpacePhotos, in.Annotated, err = g.layout.SpacePhotos(p.MaxSpacePhotos)
	if err != nil {
		return perception.Request{}, Inputs{}, fmt.Errorf("failed to list space photos: %w", err)
	}
	switch {
	case len(in.SpacePhotos) == 0:
		log.Warn("No space photos at all, the design may not match the garden")
	case !in.Annotated:
		log.Warn("No annotated photos found, using raw space photos")
	}

	in.Inspiration, err = g.layout.InspirationImages(zone, p.MaxInspiration, p.MaxInspirationFull)
	if err != nil {
		return perception.Request{}, Inputs{}, fmt.Errorf("failed to list inspiration: %w", err)
	}
	if len(in.Inspiration) == 0 {
		log.Warn("No inspiration images for %s", zone)
	}

	in.Layouts, err = g.layout.LayoutDrawings(p.MaxLayouts)
	if err != nil {
		return perception.Request{}, Inputs{}, fmt.Errorf("failed to list layout drawings: %w", err)
	}

	llm := g.cfg.LLM
	specs := make([]imaging.Spec, 0, in.ImageCount())
	for _, path := range in.SpacePhotos {
		specs = append(specs, imaging.Spec{Path: path, MaxEdge: llm.SpaceMaxEdge})
	}
	for _, path := range in.Inspiration {
		specs = append(specs, imaging.Spec{Path: path, MaxEdge: llm.InspirationMaxEdge})
	}
	for _, path := range in.Layouts {
		specs = append(specs, imaging.Spec{Path: path, MaxEdge: llm.SpaceMaxEdge})
	}
	if len(specs) == 0 {
		log.Warn("No images being sent, results will be generic")
	}

	encoded, err := imaging.PrepareAll(ctx, specs, llm.RequestQuality, p.PrepareParallelism)
	if err != nil {
		return perception.Request{}, Inputs{}, err
	}
	parts := make([]perception.Part, len(encoded))
	for i, data := range encoded {
		parts[i] = perception.Part{Data: data, MIMEType: imaging.MIMEJPEG}
	}

	prompt := Instruction{Rules: rules, Notes: notes, Feedback: feedback, Task: task}.Assemble()
	log.Debug("%s request: space=%d inspiration=%d layouts=%d notes=%d prompt=%d chars",
		zone, len(in.SpacePhotos), len(in.Inspiration), len(in.Layouts), in.Notes, len(prompt))

	return perception.Request{
		Images:      parts,
		Prompt:      prompt,
		Modalities:  []perception.Modality{perception.ModalityText, perception.ModalityImage},
		Temperature: llm.GenerateTemperature,
		Label:       "generate",
	}, in, nil
}

// =============================================================================
// GENERATE
// =============================================================================

// Generate sends one design request for zone and saves the returned image
// as the zone's next version. It returns the saved path.
func (g *Generator) Generate(ctx context.Context, zone workspace.Zone, feedback string) (string, error) {
	log := logging.For(ctx, logging.CategoryGenerate)

	req, in, err := g.Prepare(ctx, zone, feedback)
	if err != nil {
		return "", err
	}

	log.Info("Generating %s design from %d image(s)", in.Zone, len(req.Images))
	resp, err := g.model.Generate(ctx, req)
	if err != nil {
		if !errors.Is(err, perception.ErrExternalCall) {
			err = fmt.Errorf("%w: %w", perception.ErrExternalCall, err)
		}
		return "", fmt.Errorf("failed to generate %s: %w", in.Zone, err)
	}

	img, ok := resp.FirstImage()
	if !ok {
		if text := resp.Text(); text != "" {
			log.Info("No image returned. Text response: %s", truncate(text, 500))
		}
		return "", fmt.Errorf("%w for %s", ErrNoImage, in.Zone)
	}

	version, err := g.layout.NextVersion(in.Zone)
	if err != nil {
		return "", err
	}
	dest := g.layout.VersionPath(in.Zone, version)
	if err := imaging.SaveJPEG(img.Data, dest, g.cfg.LLM.OutputQuality); err != nil {
		return "", err
	}
	name := strings.TrimSuffix(filepath.Base(dest), filepath.Ext(dest))
	log.Info("Saved %s", filepath.Base(dest))

	if err := g.log.AppendGeneration(feedbacklog.GenerationRecord{
		Name:        name,
		Zone:        string(in.Zone),
		RunID:       logging.RunID(ctx),
		SpacePhotos: len(in.SpacePhotos),
		Inspiration: len(in.Inspiration),
		Layouts:     len(in.Layouts),
		Feedback:    in.Feedback,
	}); err != nil {
		log.Warn("Failed to log generation of %s: %v", name, err)
	}
	return dest, nil
}

// GenerateN runs count independent generations and returns the saved paths.
// A failed generation is logged and skipped; the last error is returned when
// nothing was saved.
func (g *Generator) GenerateN(ctx context.Context, zone workspace.Zone, count int) ([]string, error) {
	log := logging.For(ctx, logging.CategoryGenerate)

	var (
		paths   []string
		lastErr error
	)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		if count > 1 {
			log.Info("Variation %d/%d", i+1, count)
		}
		path, err := g.Generate(ctx, zone, "")
		if err != nil {
			if errors.Is(err, workspace.ErrUnknownZone) || errors.Is(err, workspace.ErrMissingPrompt) {
				return paths, err
			}
			log.Error("Variation %d failed: %v", i+1, err)
			lastErr = err
			continue
		}
		paths = append(paths, path)
	}
	if len(paths) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return paths, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
