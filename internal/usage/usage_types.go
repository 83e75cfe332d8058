package usage

// UsageData is the root structure stored in usage.json.
type UsageData struct {
	Version   string          `json:"version"`
	Aggregate AggregatedStats `json:"aggregate"`
}

// AggregatedStats holds call counters broken down by dimension.
type AggregatedStats struct {
	TotalProject CallCounts            `json:"total_project"`
	ByModel      map[string]CallCounts `json:"by_model"`
	ByOperation  map[string]CallCounts `json:"by_operation"` // generate, verify, annotate
	ByRun        map[string]CallCounts `json:"by_run"`
}

// CallCounts sums model calls.
type CallCounts struct {
	Calls      int64 `json:"calls"`
	Failures   int64 `json:"failures"`
	Images     int64 `json:"images"` // image parts returned
	DurationMS int64 `json:"duration_ms"`
}

// Add records one call.
func (c *CallCounts) Add(images int, durationMS int64, failed bool) {
	c.Calls++
	c.Images += int64(images)
	c.DurationMS += durationMS
	if failed {
		c.Failures++
	}
}
