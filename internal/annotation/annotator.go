// Package annotation asks the model to mark up the raw photos of the garden
// space. The marked-up photos (or, failing that, text notes) ground every
// later design request.
package annotation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gardenloop/internal/config"
	"gardenloop/internal/imaging"
	"gardenloop/internal/logging"
	"gardenloop/internal/perception"
	"gardenloop/internal/workspace"
)

// PromptName is the required annotation prompt.
const PromptName = "annotate_prompt"

// ErrNoPhotos is returned by AnnotateAll when ref/space holds no photos.
var ErrNoPhotos = errors.New("no photos in ref/space")

// ErrNoOutput is returned when the model answers with neither an image nor text.
var ErrNoOutput = errors.New("model returned nothing to save")

// Kind is what an annotation produced.
type Kind string

const (
	KindImage Kind = "image"
	KindNotes Kind = "notes"
)

// Output is one saved annotation.
type Output struct {
	Photo string
	Path  string
	Kind  Kind
}

// Annotator annotates space photos one at a time.
type Annotator struct {
	cfg    *config.Config
	layout *workspace.Layout
	model  perception.ImageModel

	// Now stamps text notes; tests pin it.
	Now func() time.Time
}

// NewAnnotator creates an annotator.
func NewAnnotator(cfg *config.Config, layout *workspace.Layout, model perception.ImageModel) *Annotator {
	return &Annotator{cfg: cfg, layout: layout, model: model, Now: time.Now}
}

// HasAnnotations reports whether annotated photos or notes already exist.
func (a *Annotator) HasAnnotations() bool {
	return a.layout.HasAnnotations()
}

// Annotate sends one photo with the annotation prompt. An image answer is
// saved as <stem>_annotated.jpg; a text-only answer as <stem>_notes.md.
func (a *Annotator) Annotate(ctx context.Context, photoPath string) (Output, error) {
	log := logging.For(ctx, logging.CategoryAnnotate)
	name := filepath.Base(photoPath)

	prompt, err := a.layout.LoadPrompt(PromptName)
	if err != nil {
		return Output{}, err
	}
	data, err := imaging.Prepare(photoPath, a.cfg.LLM.AnnotateMaxEdge, a.cfg.LLM.RequestQuality)
	if err != nil {
		return Output{}, err
	}

	log.Info("Annotating %s", name)
	resp, err := a.model.Generate(ctx, perception.Request{
		Images:      []perception.Part{{Data: data, MIMEType: imaging.MIMEJPEG}},
		Prompt:      prompt,
		Modalities:  []perception.Modality{perception.ModalityText, perception.ModalityImage},
		Temperature: a.cfg.LLM.AnnotateTemperature,
		Label:       "annotate",
	})
	if err != nil {
		if !errors.Is(err, perception.ErrExternalCall) {
			err = fmt.Errorf("%w: %w", perception.ErrExternalCall, err)
		}
		return Output{}, fmt.Errorf("failed to annotate %s: %w", name, err)
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if img, ok := resp.FirstImage(); ok {
		dest := filepath.Join(a.layout.Annotated, stem+"_annotated.jpg")
		if err := imaging.SaveJPEG(img.Data, dest, a.cfg.LLM.OutputQuality); err != nil {
			return Output{}, err
		}
		log.Info("Saved annotated image %s", filepath.Base(dest))
		return Output{Photo: photoPath, Path: dest, Kind: KindImage}, nil
	}

	texts := resp.Texts()
	if len(texts) == 0 {
		return Output{}, fmt.Errorf("%w for %s", ErrNoOutput, name)
	}
	dest := filepath.Join(a.layout.Annotated, stem+"_notes.md")
	if err := os.MkdirAll(a.layout.Annotated, 0755); err != nil {
		return Output{}, fmt.Errorf("failed to create %s: %w", a.layout.Annotated, err)
	}
	body := fmt.Sprintf("# Annotation Notes: %s\n\nGenerated: %s\n\n%s",
		name, a.Now().Format(time.RFC3339), strings.Join(texts, "\n"))
	if err := os.WriteFile(dest, []byte(body), 0644); err != nil {
		return Output{}, fmt.Errorf("failed to write %s: %w", dest, err)
	}
	log.Info("No image returned, saved text notes %s", filepath.Base(dest))
	return Output{Photo: photoPath, Path: dest, Kind: KindNotes}, nil
}

// AnnotateAll annotates every space photo in name order. A failed photo is
// logged and skipped; a missing annotation prompt stops the sweep.
func (a *Annotator) AnnotateAll(ctx context.Context) ([]Output, error) {
	log := logging.For(ctx, logging.CategoryAnnotate)

	photos, err := workspace.ListImages(a.layout.Space, 0)
	if err != nil {
		return nil, err
	}
	if len(photos) == 0 {
		return nil, ErrNoPhotos
	}

	log.Info("Found %d space photo(s) to annotate", len(photos))
	var outputs []Output
	for _, photo := range photos {
		if err := ctx.Err(); err != nil {
			return outputs, err
		}
		out, err := a.Annotate(ctx, photo)
		if err != nil {
			if errors.Is(err, workspace.ErrMissingPrompt) {
				return outputs, err
			}
			log.Error("%s: %v", filepath.Base(photo), err)
			continue
		}
		outputs = append(outputs, out)
	}
	log.Info("Annotated %d/%d photos", len(outputs), len(photos))
	return outputs, nil
}
