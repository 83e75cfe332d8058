// Package perception is the boundary to the generative image model. Callers
// build a Request of ordered image parts plus a trailing instruction and get
// back the ordered parts of the first candidate.
package perception

import (
	"context"
	"errors"
	"strings"
)

// ErrExternalCall wraps every failure of the remote model call.
var ErrExternalCall = errors.New("model call failed")

// ErrEmptyResponse is returned when the model answers without any candidate parts.
var ErrEmptyResponse = errors.New("model returned no candidates")

// Modality is an output kind the model is asked to produce.
type Modality string

const (
	ModalityText  Modality = "TEXT"
	ModalityImage Modality = "IMAGE"
)

// ImageModel is a generative model that accepts images and text.
type ImageModel interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Part is one element of a request or response: inline image data or text.
type Part struct {
	Data     []byte
	MIMEType string
	Text     string
}

// IsImage reports whether the part carries inline image data.
func (p Part) IsImage() bool {
	return len(p.Data) > 0 && strings.HasPrefix(p.MIMEType, "image/")
}

// Request is one model call. Images are sent in order, followed by Prompt.
type Request struct {
	Images      []Part
	Prompt      string
	Modalities  []Modality
	Temperature float32

	// Label names the call site in logs (generate, verify, annotate).
	Label string
}

// Response holds the parts of the first candidate, in order.
type Response struct {
	Parts []Part
}

// FirstImage returns the first inline image part.
func (r *Response) FirstImage() (Part, bool) {
	if r == nil {
		return Part{}, false
	}
	for _, p := range r.Parts {
		if p.IsImage() {
			return p, true
		}
	}
	return Part{}, false
}

// Texts returns the text parts in order.
func (r *Response) Texts() []string {
	if r == nil {
		return nil
	}
	var out []string
	for _, p := range r.Parts {
		if p.Text != "" {
			out = append(out, p.Text)
		}
	}
	return out
}

// Text concatenates all text parts.
func (r *Response) Text() string {
	return strings.Join(r.Texts(), "")
}
