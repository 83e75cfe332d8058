package feedbacklog

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gardenloop/internal/verdict"
	"gardenloop/internal/workspace"
)

var (
	headerPattern = regexp.MustCompile(`^(\S+)\s*-\s*(PASS|MARGINAL|REJECT|UNKNOWN)`)
	scorePattern  = regexp.MustCompile(`Score:\s*(\d+)/50`)
)

// VerifyEntry is one parsed record of verify_log.md.
type VerifyEntry struct {
	Filename string
	Zone     workspace.Zone
	Category verdict.Category
	Score    int
}

// ReadVerifyLog parses verify_log.md. Records whose file name does not
// belong to a known zone are skipped. A missing log yields no entries.
func (l *Log) ReadVerifyLog() ([]VerifyEntry, error) {
	data, err := os.ReadFile(l.VerifyPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return ParseVerifyLog(string(data)), nil
}

// ParseVerifyLog parses the text of a verify log.
func ParseVerifyLog(text string) []VerifyEntry {
	blocks := strings.Split(text, "\n## ")
	if len(blocks) < 2 {
		return nil
	}

	var entries []VerifyEntry
	for _, block := range blocks[1:] {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		m := headerPattern.FindStringSubmatch(lines[0])
		if m == nil {
			continue
		}
		zone, ok := workspace.ZoneOf(m[1])
		if !ok {
			continue
		}

		score := 0
		for _, line := range lines[1:] {
			if sm := scorePattern.FindStringSubmatch(line); sm != nil {
				score, _ = strconv.Atoi(sm[1])
				break
			}
		}

		entries = append(entries, VerifyEntry{
			Filename: m[1],
			Zone:     zone,
			Category: verdict.Category(m[2]),
			Score:    score,
		})
	}
	return entries
}

// BestByZone returns the highest-scoring entry per zone; ties keep the
// earliest record.
func BestByZone(entries []VerifyEntry) map[workspace.Zone]VerifyEntry {
	best := make(map[workspace.Zone]VerifyEntry)
	for _, e := range entries {
		if cur, ok := best[e.Zone]; !ok || e.Score > cur.Score {
			best[e.Zone] = e
		}
	}
	return best
}
