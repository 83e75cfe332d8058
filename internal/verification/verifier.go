// Package verification grades generated garden designs against photos of
// the real space and files each verdict: every result is logged, rejected
// designs are moved out of the visuals folder.
package verification

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"gardenloop/internal/config"
	"gardenloop/internal/feedbacklog"
	"gardenloop/internal/imaging"
	"gardenloop/internal/logging"
	"gardenloop/internal/perception"
	"gardenloop/internal/verdict"
	"gardenloop/internal/workspace"
)

// ErrNoImages is returned by VerifyAll when the visuals folder is empty.
var ErrNoImages = errors.New("no images in generated visuals")

const (
	// PromptName is the optional rubric appended to the instruction.
	PromptName = "verify_prompt"

	// NoReferenceFeedback explains an automatic pass.
	NoReferenceFeedback = "No reference to verify against"

	instructionPreface = "The first image(s) are PHOTOS of the actual garden space. " +
		"The last image is a GENERATED design for this garden. " +
		"Compare them and evaluate:\n\n"
)

// Verifier compares one generated image at a time with the reference photos.
type Verifier struct {
	cfg    *config.Config
	layout *workspace.Layout
	model  perception.ImageModel
	log    *feedbacklog.Log
}

// NewVerifier creates a verifier. The model is only called from Verify.
func NewVerifier(cfg *config.Config, layout *workspace.Layout, model perception.ImageModel, log *feedbacklog.Log) *Verifier {
	return &Verifier{cfg: cfg, layout: layout, model: model, log: log}
}

// Result is one verified and filed image.
type Result struct {
	Image     string // path that was verified
	FinalPath string // where the image lives after Handle
	Verdict   verdict.Verdict
}

// =============================================================================
// VERIFY
// =============================================================================

// References returns the photos a design is checked against: annotated
// space photos when any exist, the raw ones otherwise.
func (v *Verifier) References() ([]string, error) {
	refs, _, err := v.layout.SpacePhotos(v.cfg.Pipeline.MaxVerifyReferences)
	return refs, err
}

// Verify asks the model to grade imagePath against the reference photos.
// Without references the image passes automatically. When the model call
// fails the returned verdict is UNKNOWN, carries the error text as feedback,
// and the error wraps perception.ErrExternalCall.
func (v *Verifier) Verify(ctx context.Context, imagePath string) (verdict.Verdict, error) {
	log := logging.For(ctx, logging.CategoryVerify)
	name := filepath.Base(imagePath)

	refs, err := v.References()
	if err != nil {
		return verdict.Verdict{}, fmt.Errorf("failed to list reference photos: %w", err)
	}
	if len(refs) == 0 {
		log.Warn("No space photos to verify %s against, passing it", name)
		return verdict.AutoPass(NoReferenceFeedback), nil
	}

	rubric, err := v.layout.OptionalPrompt(PromptName)
	if err != nil {
		return verdict.Verdict{}, err
	}

	specs := make([]imaging.Spec, 0, len(refs)+1)
	for _, ref := range refs {
		specs = append(specs, imaging.Spec{Path: ref, MaxEdge: v.cfg.LLM.SpaceMaxEdge})
		log.Debug("reference %s", filepath.Base(ref))
	}
	specs = append(specs, imaging.Spec{Path: imagePath, MaxEdge: v.cfg.LLM.SpaceMaxEdge})

	encoded, err := imaging.PrepareAll(ctx, specs, v.cfg.LLM.RequestQuality, v.cfg.Pipeline.PrepareParallelism)
	if err != nil {
		return verdict.Verdict{}, fmt.Errorf("failed to prepare images for %s: %w", name, err)
	}
	parts := make([]perception.Part, len(encoded))
	for i, data := range encoded {
		parts[i] = perception.Part{Data: data, MIMEType: imaging.MIMEJPEG}
	}

	log.Info("Verifying %s against %d reference photo(s)", name, len(refs))
	resp, err := v.model.Generate(ctx, perception.Request{
		Images:      parts,
		Prompt:      instructionPreface + rubric,
		Modalities:  []perception.Modality{perception.ModalityText},
		Temperature: v.cfg.LLM.VerifyTemperature,
		Label:       "verify",
	})
	if err != nil {
		if !errors.Is(err, perception.ErrExternalCall) {
			err = fmt.Errorf("%w: %w", perception.ErrExternalCall, err)
		}
		log.Error("Verification of %s failed: %v", name, err)
		return verdict.Unknown("", err.Error()), fmt.Errorf("failed to verify %s: %w", name, err)
	}

	result := verdict.Parse(resp.Text())
	log.Info("%s scored %d/%d - %s (%s)", name, result.Score, verdict.MaxScore, result.Category, result.Source)
	if fb := result.BuildFeedback(); fb != "" {
		log.Debug("feedback: %s", fb)
	}
	return result, nil
}

// =============================================================================
// HANDLE
// =============================================================================

// Handle files a verdict: the record goes to verify_log.md and a rejected
// image is moved to the rejected folder. It returns the image's final path.
func (v *Verifier) Handle(imagePath string, result verdict.Verdict) (string, error) {
	name := filepath.Base(imagePath)
	if err := v.log.AppendVerify(name, result); err != nil {
		return imagePath, fmt.Errorf("failed to log verdict for %s: %w", name, err)
	}
	if result.Category != verdict.CategoryReject {
		return imagePath, nil
	}

	dest, err := v.layout.MoveToRejected(imagePath)
	if err != nil {
		return imagePath, err
	}
	logging.Get(logging.CategoryVerify).Info("Moved %s to rejected", name)
	return dest, nil
}

// VerifyAndHandle runs Verify and files whatever verdict it produced, so a
// failed call is still logged as UNKNOWN. The Verify error is returned
// alongside the filed result.
func (v *Verifier) VerifyAndHandle(ctx context.Context, imagePath string) (Result, error) {
	result, verr := v.Verify(ctx, imagePath)
	if verr != nil && (result.Category == "" || ctx.Err() != nil) {
		return Result{Image: imagePath, FinalPath: imagePath}, verr
	}

	final, herr := v.Handle(imagePath, result)
	return Result{Image: imagePath, FinalPath: final, Verdict: result}, errors.Join(verr, herr)
}

// =============================================================================
// VERIFY ALL
// =============================================================================

// Tally counts verdicts by category.
type Tally map[verdict.Category]int

// Total is the number of images counted.
func (t Tally) Total() int {
	n := 0
	for _, c := range t {
		n += c
	}
	return n
}

// VerifyAll verifies and files every image in the visuals folder, up to the
// configured cap, in name order. Per-image failures are counted as UNKNOWN
// and do not stop the sweep.
func (v *Verifier) VerifyAll(ctx context.Context) (Tally, error) {
	log := logging.For(ctx, logging.CategoryVerify)

	images, err := workspace.ListImages(v.layout.Visuals, v.cfg.Pipeline.MaxVerifyAll)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, ErrNoImages
	}

	tally := make(Tally)
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return tally, err
		}
		res, err := v.VerifyAndHandle(ctx, img)
		if err != nil {
			log.Warn("%s: %v", filepath.Base(img), err)
		}
		category := res.Verdict.Category
		if category == "" {
			category = verdict.CategoryUnknown
		}
		tally[category]++
	}

	log.Info("Verification complete: %d image(s), %d pass, %d marginal, %d reject, %d unknown",
		tally.Total(), tally[verdict.CategoryPass], tally[verdict.CategoryMarginal],
		tally[verdict.CategoryReject], tally[verdict.CategoryUnknown])
	return tally, nil
}
