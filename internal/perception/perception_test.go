package perception

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// =============================================================================
// MOCK IMPLEMENTATIONS
// =============================================================================

type fakeModels struct {
	gotModel    string
	gotContents []*genai.Content
	gotConfig   *genai.GenerateContentConfig
	resp        *genai.GenerateContentResponse
	err         error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel = model
	f.gotContents = contents
	f.gotConfig = config
	return f.resp, f.err
}

type stubModel struct {
	resp *Response
	err  error
}

func (s stubModel) Generate(context.Context, Request) (*Response, error) {
	return s.resp, s.err
}

func candidate(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: genai.RoleModel, Parts: parts}}},
	}
}

// =============================================================================
// GEMINI CLIENT
// =============================================================================

func TestGeminiClient_RequestShape(t *testing.T) {
	fake := &fakeModels{resp: candidate(genai.NewPartFromText("TOTAL: 40/50"))}
	c := &GeminiClient{models: fake, model: "test-model"}

	_, err := c.Generate(context.Background(), Request{
		Images: []Part{
			{Data: []byte{1}, MIMEType: "image/jpeg"},
			{Data: []byte{2}, MIMEType: "image/jpeg"},
		},
		Prompt:      "compare",
		Modalities:  []Modality{ModalityText, ModalityImage},
		Temperature: 0.3,
	})
	require.NoError(t, err)

	assert.Equal(t, "test-model", fake.gotModel)
	require.Len(t, fake.gotContents, 1)
	parts := fake.gotContents[0].Parts
	require.Len(t, parts, 3)
	assert.Equal(t, []byte{1}, parts[0].InlineData.Data)
	assert.Equal(t, []byte{2}, parts[1].InlineData.Data)
	assert.Equal(t, "compare", parts[2].Text)
	assert.Equal(t, []string{"TEXT", "IMAGE"}, fake.gotConfig.ResponseModalities)
	require.NotNil(t, fake.gotConfig.Temperature)
	assert.InDelta(t, 0.3, *fake.gotConfig.Temperature, 1e-6)
}

func TestGeminiClient_ConvertsParts(t *testing.T) {
	thought := genai.NewPartFromText("thinking...")
	thought.Thought = true
	fake := &fakeModels{resp: candidate(
		thought,
		genai.NewPartFromText("here you go"),
		genai.NewPartFromBytes([]byte{0xff, 0xd8}, "image/jpeg"),
	)}
	c := &GeminiClient{models: fake, model: "m"}

	resp, err := c.Generate(context.Background(), Request{Prompt: "design"})
	require.NoError(t, err)
	require.Len(t, resp.Parts, 2)
	assert.Equal(t, "here you go", resp.Text())

	img, ok := resp.FirstImage()
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", img.MIMEType)
}

func TestGeminiClient_WrapsErrors(t *testing.T) {
	c := &GeminiClient{models: &fakeModels{err: errors.New("quota exceeded")}, model: "m"}
	_, err := c.Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrExternalCall)
	assert.Contains(t, err.Error(), "quota exceeded")

	c = &GeminiClient{models: &fakeModels{resp: &genai.GenerateContentResponse{}}, model: "m"}
	_, err = c.Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrExternalCall)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestNewGeminiClient_RequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), GeminiConfig{})
	assert.Error(t, err)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func TestResponse_Helpers(t *testing.T) {
	var nilResp *Response
	_, ok := nilResp.FirstImage()
	assert.False(t, ok)
	assert.Empty(t, nilResp.Text())

	resp := &Response{Parts: []Part{{Text: "a"}, {Data: []byte{1}, MIMEType: "text/plain"}, {Text: "b"}}}
	_, ok = resp.FirstImage()
	assert.False(t, ok)
	assert.Equal(t, []string{"a", "b"}, resp.Texts())
}

// =============================================================================
// TRACING CLIENT
// =============================================================================

func TestTracingClient_Usage(t *testing.T) {
	ok := NewTracingClient(stubModel{resp: &Response{Parts: []Part{{Data: []byte{1}, MIMEType: "image/png"}}}})
	_, err := ok.Generate(context.Background(), Request{Label: "generate"})
	require.NoError(t, err)

	failing := NewTracingClient(stubModel{err: ErrExternalCall})
	_, err = failing.Generate(context.Background(), Request{Label: "verify"})
	require.ErrorIs(t, err, ErrExternalCall)

	assert.Equal(t, 1, ok.Usage().Calls)
	assert.Equal(t, 1, ok.Usage().Images)
	assert.Equal(t, 0, ok.Usage().Failures)
	assert.Equal(t, 1, failing.Usage().Failures)
}

type recordedCall struct {
	model, operation string
	images           int
	failed           bool
}

type recorderFunc func(recordedCall)

func (f recorderFunc) Track(_ context.Context, model, operation string, images int, _ time.Duration, err error) {
	f(recordedCall{model: model, operation: operation, images: images, failed: err != nil})
}

func TestTracingClient_Recorder(t *testing.T) {
	var calls []recordedCall
	rec := recorderFunc(func(c recordedCall) { calls = append(calls, c) })

	tc := NewTracingClient(stubModel{err: errors.New("boom")}).WithRecorder(rec)
	_, err := tc.Generate(context.Background(), Request{Label: "annotate"})
	require.Error(t, err)

	require.Len(t, calls, 1)
	assert.Equal(t, recordedCall{model: "unknown", operation: "annotate", failed: true}, calls[0])

	gc := &GeminiClient{models: &fakeModels{}, model: "nano-banana-pro-preview"}
	assert.Equal(t, "nano-banana-pro-preview", NewTracingClient(gc).Model())
}
