// Package usage keeps running totals of model calls per project in
// generated/feedback/usage.json.
package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gardenloop/internal/logging"
)

// FileName is the usage file inside the feedback directory.
const FileName = "usage.json"

// Tracker records model calls and persists the totals.
type Tracker struct {
	mu       sync.Mutex
	data     UsageData
	filePath string
	dirty    bool
}

// NewTracker creates a tracker persisting into dir, loading earlier totals.
// A corrupt file is logged and replaced by fresh totals on the next Save.
func NewTracker(dir string) *Tracker {
	t := &Tracker{
		filePath: filepath.Join(dir, FileName),
		data:     UsageData{Version: "1.0"},
	}
	t.data.Aggregate.ensureMaps()

	if err := t.Load(); err != nil {
		logging.Get(logging.CategoryAPI).Warn("ignoring unreadable %s: %v", t.filePath, err)
		t.data = UsageData{Version: "1.0"}
		t.data.Aggregate.ensureMaps()
	}
	return t
}

// Path is the usage file location.
func (t *Tracker) Path() string { return t.filePath }

// Load reads the usage data from disk. A missing file is not an error.
func (t *Tracker) Load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := os.ReadFile(t.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &t.data); err != nil {
		return err
	}
	t.data.Aggregate.ensureMaps()
	return nil
}

// Save writes the usage data when anything changed since the last save.
func (t *Tracker) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.dirty {
		return nil
	}

	data, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(t.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(t.filePath), err)
	}
	if err := os.WriteFile(t.filePath, data, 0644); err != nil {
		return err
	}
	t.dirty = false
	return nil
}

// Track records one model call. The run ID comes from ctx.
func (t *Tracker) Track(ctx context.Context, model, operation string, images int, d time.Duration, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ms := d.Milliseconds()
	failed := err != nil
	agg := &t.data.Aggregate
	agg.TotalProject.Add(images, ms, failed)
	addToMap(agg.ByModel, model, images, ms, failed)
	addToMap(agg.ByOperation, operation, images, ms, failed)
	if run := logging.RunID(ctx); run != "" {
		addToMap(agg.ByRun, run, images, ms, failed)
	}
	t.dirty = true
}

// Stats returns a copy of the aggregated stats.
func (t *Tracker) Stats() AggregatedStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	stats := t.data.Aggregate
	stats.ByModel = copyCountsMap(stats.ByModel)
	stats.ByOperation = copyCountsMap(stats.ByOperation)
	stats.ByRun = copyCountsMap(stats.ByRun)
	return stats
}

func (s *AggregatedStats) ensureMaps() {
	if s.ByModel == nil {
		s.ByModel = make(map[string]CallCounts)
	}
	if s.ByOperation == nil {
		s.ByOperation = make(map[string]CallCounts)
	}
	if s.ByRun == nil {
		s.ByRun = make(map[string]CallCounts)
	}
}

func copyCountsMap(src map[string]CallCounts) map[string]CallCounts {
	dst := make(map[string]CallCounts, len(src))
	for key, counts := range src {
		dst[key] = counts
	}
	return dst
}

func addToMap(m map[string]CallCounts, key string, images int, ms int64, failed bool) {
	if key == "" {
		key = "unknown"
	}
	entry := m[key]
	entry.Add(images, ms, failed)
	m[key] = entry
}
