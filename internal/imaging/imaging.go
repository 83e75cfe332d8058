// Package imaging loads reference photos, shrinks them to the size the model
// needs, and writes returned images back to disk as JPEG.
package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// MIMEJPEG is the MIME type of every image part this package produces.
const MIMEJPEG = "image/jpeg"

// Load decodes an image file (JPEG, PNG or WebP).
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// Fit scales img down so its longest edge is at most maxEdge. Smaller
// images are returned unchanged.
func Fit(img image.Image, maxEdge int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := max(w, h)
	if maxEdge <= 0 || longest <= maxEdge {
		return img
	}

	ratio := float64(maxEdge) / float64(longest)
	nw := max(1, int(float64(w)*ratio))
	nh := max(1, int(float64(h)*ratio))

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// EncodeJPEG encodes img at the given quality (1-100).
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Prepare loads an image, fits it to maxEdge and encodes it as JPEG.
func Prepare(path string, maxEdge, quality int) ([]byte, error) {
	img, err := Load(path)
	if err != nil {
		return nil, err
	}
	return EncodeJPEG(Fit(img, maxEdge), quality)
}

// Spec describes one image to prepare.
type Spec struct {
	Path    string
	MaxEdge int
}

// PrepareAll prepares every spec with up to limit decoders running at once.
// Results keep the order of specs; the first failure cancels the rest.
func PrepareAll(ctx context.Context, specs []Spec, quality, limit int) ([][]byte, error) {
	out := make([][]byte, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, s := range specs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := Prepare(s.Path, s.MaxEdge, quality)
			if err != nil {
				return err
			}
			out[i] = data
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveJPEG decodes image bytes returned by the model and writes them to dest
// as JPEG, creating the parent directory.
func SaveJPEG(data []byte, dest string, quality int) error {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to decode returned image: %w", err)
	}
	encoded, err := EncodeJPEG(img, quality)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(dest), err)
	}
	if err := os.WriteFile(dest, encoded, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return nil
}
