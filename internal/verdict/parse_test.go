package verdict

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// THRESHOLDS
// =============================================================================

func TestCategoryFor(t *testing.T) {
	tests := []struct {
		score int
		want  Category
	}{
		{0, CategoryUnknown},
		{1, CategoryReject},
		{29, CategoryReject},
		{30, CategoryMarginal},
		{39, CategoryMarginal},
		{40, CategoryPass},
		{50, CategoryPass},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CategoryFor(tt.score), "score %d", tt.score)
	}
}

func TestParseCategory(t *testing.T) {
	c, ok := ParseCategory("  marginal ")
	assert.True(t, ok)
	assert.Equal(t, CategoryMarginal, c)

	c, ok = ParseCategory("unknown")
	assert.False(t, ok)
	assert.Equal(t, CategoryUnknown, c)
}

// =============================================================================
// JSON STAGE
// =============================================================================

func TestParse_JSONBlockInNoise(t *testing.T) {
	text := "Sure! Here is my evaluation.\n```json\n" +
		`{"total":45,"verdict":"PASS","issues":[],"prompt_adjustments":[]}` +
		"\n```\nLet me know if you need anything else."

	v := Parse(text)
	assert.Equal(t, 45, v.Score)
	assert.Equal(t, CategoryPass, v.Category)
	assert.Equal(t, SourceJSON, v.Source)
	assert.Empty(t, v.Issues)
	assert.Equal(t, text, v.Raw)
}

func TestParse_JSONAmongStrayBraces(t *testing.T) {
	object := `{"total":45,"verdict":"PASS","issues":["gate {left} side"],"prompt_adjustments":[]}`
	tests := []struct {
		name string
		text string
	}{
		{"brace before", "I scored each {criterion} below.\n" + object},
		{"brace after", object + "\nNote: see {appendix}."},
		{"object without total first", `{"criteria": 5}` + "\n" + object},
		{"nested under wrapper", `{"result": ` + object + `}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Parse(tt.text)
			assert.Equal(t, 45, v.Score)
			assert.Equal(t, CategoryPass, v.Category)
			assert.Equal(t, SourceJSON, v.Source)
			assert.Equal(t, []string{"gate {left} side"}, v.Issues)
		})
	}
}

func TestParse_JSONDerivesCategoryWhenAbsent(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Category
	}{
		{"missing", `{"total": 33}`, CategoryMarginal},
		{"unrecognized", `{"total": 12, "verdict": "MEH"}`, CategoryReject},
		{"lowercase explicit", `{"total": 12, "verdict": "pass"}`, CategoryPass},
		{"zero", `{"total": 0}`, CategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.text).Category)
		})
	}
}

func TestParse_JSONIssuesAndAdjustments(t *testing.T) {
	v := Parse(`{"total": "28", "verdict": "REJECT",
		"issues": ["fence moved", "shed missing"],
		"prompt_adjustments": ["keep the shed on the left", 3]}`)

	want := Verdict{
		Score:       28,
		Category:    CategoryReject,
		Issues:      []string{"fence moved", "shed missing"},
		Adjustments: []string{"keep the shed on the left", "3"},
		Feedback:    "Issues: fence moved; shed missing | Adjustments: keep the shed on the left; 3",
		Source:      SourceJSON,
	}
	if diff := cmp.Diff(want, v, cmpopts.IgnoreFields(Verdict{}, "Raw")); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_MalformedJSONFallsBackToMarkers(t *testing.T) {
	text := `{"total": 45, "verdict": PASS oops}
TOTAL: 31/50
VERDICT: MARGINAL`

	v := Parse(text)
	assert.Equal(t, SourceMarkers, v.Source)
	assert.Equal(t, 31, v.Score)
	assert.Equal(t, CategoryMarginal, v.Category)
}

func TestParse_ClampsScore(t *testing.T) {
	assert.Equal(t, MaxScore, Parse(`{"total": 75}`).Score)
	assert.Equal(t, 0, Parse(`{"total": -4}`).Score)
}

// =============================================================================
// MARKER STAGE
// =============================================================================

func TestParse_Markers(t *testing.T) {
	v := Parse("Scale: 4/10\nTOTAL: 22/50\nVERDICT: REJECT\n")
	assert.Equal(t, 22, v.Score)
	assert.Equal(t, CategoryReject, v.Category)
	assert.Equal(t, SourceMarkers, v.Source)
}

func TestParse_MarkersDeriveCategory(t *testing.T) {
	assert.Equal(t, CategoryPass, Parse("TOTAL: 44/50").Category)
	assert.Equal(t, CategoryMarginal, Parse("TOTAL: 30/50").Category)
	assert.Equal(t, CategoryReject, Parse("TOTAL: 5/50").Category)
}

func TestParse_MarkerVerdictCaseInsensitive(t *testing.T) {
	v := Parse("TOTAL: 41/50\nverdict: marginal")
	assert.Equal(t, CategoryMarginal, v.Category)
	assert.Equal(t, 41, v.Score)
}

func TestParse_FeedbackMarkerSpansLines(t *testing.T) {
	v := Parse("TOTAL: 25/50\nVERDICT: REJECT\nFEEDBACK: The pergola is too big.\nMove it left.\n")
	require.Equal(t, CategoryReject, v.Category)
	assert.Equal(t, "The pergola is too big.\nMove it left.", v.Feedback)
	assert.Equal(t, v.Feedback, v.BuildFeedback())
}

// =============================================================================
// NOTHING TO PARSE
// =============================================================================

func TestParse_Unparseable(t *testing.T) {
	v := Parse("I'm sorry, I can't compare these images.")
	assert.Equal(t, CategoryUnknown, v.Category)
	assert.Equal(t, 0, v.Score)
	assert.Equal(t, SourceNone, v.Source)
	assert.False(t, v.Graded())
}

func TestParse_Empty(t *testing.T) {
	v := Parse("")
	assert.Equal(t, CategoryUnknown, v.Category)
	assert.Equal(t, 0, v.Score)
}
