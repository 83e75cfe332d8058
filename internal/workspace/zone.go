package workspace

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownZone is returned for a zone outside the fixed set.
var ErrUnknownZone = errors.New("unknown zone")

// Zone is a garden area; it selects the inspiration folder and the
// generation prompt.
type Zone string

const (
	ZoneShade    Zone = "shade"
	ZoneSeating  Zone = "seating"
	ZonePlants   Zone = "plants"
	ZonePlayArea Zone = "play-area"
	ZoneFull     Zone = "full" // whole garden, draws inspiration from every zone
)

// Zones lists every zone in display order.
var Zones = []Zone{ZoneShade, ZoneSeating, ZonePlants, ZonePlayArea, ZoneFull}

// ZoneNames returns the zone names, for flag help and errors.
func ZoneNames() []string {
	names := make([]string, len(Zones))
	for i, z := range Zones {
		names[i] = string(z)
	}
	return names
}

// ParseZone validates a zone name.
func ParseZone(s string) (Zone, error) {
	z := Zone(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Zones {
		if z == known {
			return z, nil
		}
	}
	return "", fmt.Errorf("%w: %q (choose from: %s)", ErrUnknownZone, s, strings.Join(ZoneNames(), ", "))
}

// ZoneOf returns the zone a generated file name belongs to, e.g.
// "play-area_v2.jpg" -> play-area.
func ZoneOf(filename string) (Zone, bool) {
	for _, z := range Zones {
		if strings.HasPrefix(filename, string(z)+"_") {
			return z, true
		}
	}
	return "", false
}
