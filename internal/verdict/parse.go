package verdict

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	totalPattern    = regexp.MustCompile(`TOTAL:\s*(\d+)/50`)
	verdictPattern  = regexp.MustCompile(`(?i)VERDICT:\s*(PASS|MARGINAL|REJECT)`)
	feedbackPattern = regexp.MustCompile(`(?s)FEEDBACK:\s*(.+)`)
)

// stage is one step of the parse chain. ok=false hands the text to the next stage.
type stage func(text string) (v Verdict, ok bool)

// chain is tried in order; the first stage that succeeds wins.
var chain = []stage{parseJSON, parseMarkers}

// Parse extracts a Verdict from model output. It prefers an embedded JSON
// object carrying a "total" field and falls back to the TOTAL/VERDICT/FEEDBACK
// markers. Text with neither yields an UNKNOWN verdict with score 0; that is a
// valid result, not an error.
func Parse(text string) Verdict {
	for _, st := range chain {
		if v, ok := st(text); ok {
			v.Raw = text
			return v
		}
	}
	return Unknown(text, "")
}

// jsonVerdict mirrors the object the verify prompt asks for. Fields are loose
// because models emit numbers as strings and sometimes non-string list items.
type jsonVerdict struct {
	Total       json.RawMessage `json:"total"`
	Verdict     any             `json:"verdict"`
	Issues      []any           `json:"issues"`
	Adjustments []any           `json:"prompt_adjustments"`
}

// extractVerdictObject returns the first JSON object in text that carries a
// "total" key. Every '{' is tried as a start, so braces in surrounding prose
// do not hide a later object.
func extractVerdictObject(text string) json.RawMessage {
	for i := strings.IndexByte(text, '{'); i >= 0; {
		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(text[i:])).Decode(&raw); err == nil {
			var keys map[string]json.RawMessage
			if json.Unmarshal(raw, &keys) == nil {
				if _, ok := keys["total"]; ok {
					return raw
				}
			}
		}
		next := strings.IndexByte(text[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return nil
}

func parseJSON(text string) (Verdict, bool) {
	block := extractVerdictObject(text)
	if block == nil {
		return Verdict{}, false
	}

	var data jsonVerdict
	if err := json.Unmarshal(block, &data); err != nil {
		return Verdict{}, false
	}
	total, err := decodeTotal(data.Total)
	if err != nil {
		return Verdict{}, false
	}

	v := Verdict{
		Score:       clampScore(total),
		Issues:      stringList(data.Issues),
		Adjustments: stringList(data.Adjustments),
		Source:      SourceJSON,
	}
	v.Feedback = joinFeedback(v.Issues, v.Adjustments)

	word, _ := data.Verdict.(string)
	if c, ok := ParseCategory(word); ok {
		v.Category = c
	} else {
		v.Category = CategoryFor(v.Score)
	}
	return v, true
}

func parseMarkers(text string) (Verdict, bool) {
	v := Verdict{Category: CategoryUnknown, Source: SourceMarkers}
	found := false

	if m := totalPattern.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			v.Score = clampScore(n)
			found = true
		}
	}

	if m := verdictPattern.FindStringSubmatch(text); m != nil {
		v.Category, _ = ParseCategory(m[1])
		found = true
	} else {
		v.Category = CategoryFor(v.Score)
	}

	if m := feedbackPattern.FindStringSubmatch(text); m != nil {
		v.Feedback = strings.TrimSpace(m[1])
		found = true
	}

	return v, found
}

// decodeTotal accepts 42, 42.0 and "42". A missing total counts as zero.
func decodeTotal(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int(math.Trunc(f)), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("total is neither number nor string: %s", raw)
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("total %q is not an integer: %w", s, err)
	}
	return n, nil
}

func stringList(items []any) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch x := it.(type) {
		case nil:
			continue
		case string:
			if s := strings.TrimSpace(x); s != "" {
				out = append(out, s)
			}
		default:
			out = append(out, fmt.Sprint(x))
		}
	}
	return out
}
