package perception

import (
	"context"
	"sync"
	"time"

	"gardenloop/internal/logging"
)

// Usage summarizes the calls that went through a TracingClient.
type Usage struct {
	Calls    int
	Failures int
	Images   int // image parts returned
	Duration time.Duration
}

// Recorder persists per-call usage.
type Recorder interface {
	Track(ctx context.Context, model, operation string, images int, d time.Duration, err error)
}

// TracingClient wraps any ImageModel and logs every call with its size,
// duration and outcome.
type TracingClient struct {
	underlying ImageModel
	recorder   Recorder

	mu    sync.Mutex
	usage Usage
}

// NewTracingClient creates a tracing wrapper around an existing model.
func NewTracingClient(underlying ImageModel) *TracingClient {
	return &TracingClient{underlying: underlying}
}

// WithRecorder forwards every call to r as well.
func (tc *TracingClient) WithRecorder(r Recorder) *TracingClient {
	tc.recorder = r
	return tc
}

// Model names the wrapped model when it reports one.
func (tc *TracingClient) Model() string {
	if m, ok := tc.underlying.(interface{ Model() string }); ok {
		return m.Model()
	}
	return "unknown"
}

// Generate implements ImageModel with tracing.
func (tc *TracingClient) Generate(ctx context.Context, req Request) (*Response, error) {
	inBytes := 0
	for _, p := range req.Images {
		inBytes += len(p.Data)
	}
	logging.API("%s call started: images=%d bytes=%d prompt_len=%d", req.Label, len(req.Images), inBytes, len(req.Prompt))

	start := time.Now()
	resp, err := tc.underlying.Generate(ctx, req)
	duration := time.Since(start)

	images := 0
	if resp != nil {
		for _, p := range resp.Parts {
			if p.IsImage() {
				images++
			}
		}
	}

	tc.mu.Lock()
	tc.usage.Calls++
	tc.usage.Duration += duration
	tc.usage.Images += images
	if err != nil {
		tc.usage.Failures++
	}
	tc.mu.Unlock()
	if tc.recorder != nil {
		tc.recorder.Track(ctx, tc.Model(), req.Label, images, duration, err)
	}

	if err != nil {
		logging.Get(logging.CategoryAPI).Warn("%s call failed: duration=%v error=%v", req.Label, duration, err)
		return nil, err
	}
	logging.API("%s call completed: duration=%v parts=%d images=%d", req.Label, duration, len(resp.Parts), images)
	return resp, nil
}

// Usage returns a snapshot of the call counters.
func (tc *TracingClient) Usage() Usage {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.usage
}
