package workspace

import (
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"gardenloop/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// HELPERS
// =============================================================================

func newTestLayout(t *testing.T) *Layout {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Root = t.TempDir()
	l := NewLayout(cfg)
	l.Rand = rand.New(rand.NewPCG(1, 2))
	return l
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func names(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	return out
}

// =============================================================================
// LISTING
// =============================================================================

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"b.png", "a.jpg", "c.JPEG", "notes.md", "d.gif"} {
		touch(t, filepath.Join(dir, n))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.jpg"), 0755))

	images, err := ListImages(dir, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "b.png", "c.JPEG"}, names(images))

	images, err = ListImages(dir, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "b.png"}, names(images))
}

func TestListImages_MissingDir(t *testing.T) {
	images, err := ListImages(filepath.Join(t.TempDir(), "nope"), 3)
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestSampleImages_CapsAndSorts(t *testing.T) {
	l := newTestLayout(t)
	dir := filepath.Join(l.Inspiration, "shade")
	for _, n := range []string{"1.jpg", "2.jpg", "3.jpg", "4.jpg", "5.jpg"} {
		touch(t, filepath.Join(dir, n))
	}

	picked, err := l.SampleImages(dir, 3)
	require.NoError(t, err)
	require.Len(t, picked, 3)
	assert.IsIncreasing(t, picked)
}

func TestSpacePhotos_PrefersAnnotated(t *testing.T) {
	l := newTestLayout(t)
	touch(t, filepath.Join(l.Space, "north.jpg"))

	photos, annotated, err := l.SpacePhotos(3)
	require.NoError(t, err)
	assert.False(t, annotated)
	assert.Equal(t, []string{"north.jpg"}, names(photos))

	touch(t, filepath.Join(l.Annotated, "north_annotated.jpg"))
	photos, annotated, err = l.SpacePhotos(3)
	require.NoError(t, err)
	assert.True(t, annotated)
	assert.Equal(t, []string{"north_annotated.jpg"}, names(photos))
}

func TestInspirationImages_Full(t *testing.T) {
	l := newTestLayout(t)
	for _, z := range []string{"shade", "seating", "plants", "play-area", "extra"} {
		touch(t, filepath.Join(l.Inspiration, z, "a.jpg"))
		touch(t, filepath.Join(l.Inspiration, z, "b.jpg"))
	}

	picked, err := l.InspirationImages(ZoneFull, 3, 4)
	require.NoError(t, err)
	assert.Len(t, picked, 4)

	picked, err = l.InspirationImages(ZoneShade, 1, 4)
	require.NoError(t, err)
	assert.Len(t, picked, 1)
	assert.Equal(t, "shade", filepath.Base(filepath.Dir(picked[0])))
}

// =============================================================================
// PROMPTS AND NOTES
// =============================================================================

func TestLoadPrompt(t *testing.T) {
	l := newTestLayout(t)

	_, err := l.LoadPrompt("shade")
	assert.True(t, errors.Is(err, ErrMissingPrompt))

	s, err := l.OptionalPrompt("system_prompt")
	require.NoError(t, err)
	assert.Empty(t, s)

	require.NoError(t, os.MkdirAll(l.Prompts, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(l.Prompts, "shade.md"), []byte("pergola"), 0644))
	s, err = l.LoadPrompt("shade")
	require.NoError(t, err)
	assert.Equal(t, "pergola", s)
}

func TestAnnotationNotesAndHasAnnotations(t *testing.T) {
	l := newTestLayout(t)
	assert.False(t, l.HasAnnotations())

	require.NoError(t, os.MkdirAll(l.Annotated, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(l.Annotated, "b_notes.md"), []byte("second"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(l.Annotated, "a_notes.md"), []byte("first"), 0644))

	notes, err := l.AnnotationNotes()
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, notes)
	assert.True(t, l.HasAnnotations())
}

// =============================================================================
// VERSIONING
// =============================================================================

func TestNextVersion(t *testing.T) {
	l := newTestLayout(t)

	n, err := l.NextVersion(ZoneShade)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	touch(t, filepath.Join(l.Visuals, "shade_v1.jpg"))
	touch(t, filepath.Join(l.Visuals, "shade_v3.jpg"))
	touch(t, filepath.Join(l.Visuals, "seating_v9.jpg"))

	n, err = l.NextVersion(ZoneShade)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, filepath.Join(l.Visuals, "shade_v4.jpg"), l.VersionPath(ZoneShade, n))
}

func TestNextVersion_CountsRejected(t *testing.T) {
	l := newTestLayout(t)
	touch(t, filepath.Join(l.Visuals, "plants_v2.jpg"))
	touch(t, filepath.Join(l.Rejected, "plants_v5.jpg"))

	n, err := l.NextVersion(ZonePlants)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}

func TestNextVersion_ZonePrefixIsExact(t *testing.T) {
	l := newTestLayout(t)
	touch(t, filepath.Join(l.Visuals, "play-area_v7.jpg"))
	touch(t, filepath.Join(l.Visuals, "full_v2.jpg"))
	touch(t, filepath.Join(l.Visuals, "full_v2_old.jpg"))

	n, err := l.NextVersion(ZoneFull)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestVersionOf(t *testing.T) {
	tests := []struct {
		path string
		want int
		ok   bool
	}{
		{"/v/shade_v12.jpg", 12, true},
		{"shade_v0.png", 0, true},
		{"shade_v.jpg", 0, false},
		{"shade_v+3.jpg", 0, false},
		{"shade_v-1.jpg", 0, false},
		{"shade_v2_old.jpg", 0, false},
		{"seating_v2.jpg", 0, false},
		{"xshade_v2.jpg", 0, false},
	}
	for _, tt := range tests {
		n, ok := versionOf(ZoneShade, tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.want, n, tt.path)
	}
}

func TestMoveToRejected(t *testing.T) {
	l := newTestLayout(t)
	src := filepath.Join(l.Visuals, "shade_v2.jpg")
	touch(t, src)

	dest, err := l.MoveToRejected(src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(l.Rejected, "shade_v2.jpg"), dest)
	assert.NoFileExists(t, src)
	assert.FileExists(t, dest)
}

// =============================================================================
// ZONES
// =============================================================================

func TestParseZone(t *testing.T) {
	z, err := ParseZone(" Play-Area ")
	require.NoError(t, err)
	assert.Equal(t, ZonePlayArea, z)

	_, err = ParseZone("pond")
	assert.True(t, errors.Is(err, ErrUnknownZone))
}

func TestZoneOf(t *testing.T) {
	z, ok := ZoneOf("play-area_v2.jpg")
	assert.True(t, ok)
	assert.Equal(t, ZonePlayArea, z)

	_, ok = ZoneOf("pond_v1.jpg")
	assert.False(t, ok)
}
