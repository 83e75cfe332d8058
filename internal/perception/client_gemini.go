package perception

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultGeminiModel is the image-capable model the pipeline was tuned on.
const DefaultGeminiModel = "nano-banana-pro-preview"

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// GeminiClient implements ImageModel on the Google GenAI SDK.
type GeminiClient struct {
	models generator
	model  string
}

// generator is the slice of *genai.Models the client uses.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// NewGeminiClient creates a Gemini client for the Gemini API backend.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{models: client.Models, model: model}, nil
}

// Model returns the model name requests are sent to.
func (c *GeminiClient) Model() string {
	return c.model
}

// Generate sends one request and returns the parts of the first candidate.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (*Response, error) {
	resp, err := c.models.GenerateContent(ctx, c.model, buildContents(req), buildConfig(req))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExternalCall, err)
	}
	return convertResponse(resp)
}

// buildContents packs images then prompt into a single user turn.
func buildContents(req Request) []*genai.Content {
	parts := make([]*genai.Part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	if req.Prompt != "" {
		parts = append(parts, genai.NewPartFromText(req.Prompt))
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

func buildConfig(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	for _, m := range req.Modalities {
		cfg.ResponseModalities = append(cfg.ResponseModalities, string(m))
	}
	return cfg
}

func convertResponse(resp *genai.GenerateContentResponse) (*Response, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		reason := ""
		if resp != nil && resp.PromptFeedback != nil {
			reason = string(resp.PromptFeedback.BlockReason)
		}
		if reason != "" {
			return nil, fmt.Errorf("%w: %w (blocked: %s)", ErrExternalCall, ErrEmptyResponse, reason)
		}
		return nil, fmt.Errorf("%w: %w", ErrExternalCall, ErrEmptyResponse)
	}

	out := &Response{}
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		switch {
		case p.InlineData != nil:
			out.Parts = append(out.Parts, Part{Data: p.InlineData.Data, MIMEType: p.InlineData.MIMEType})
		case p.Text != "":
			out.Parts = append(out.Parts, Part{Text: p.Text})
		}
	}
	return out, nil
}
