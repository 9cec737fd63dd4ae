package framesource

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/nfnt/resize"
)

// FrameStore writes a session's frames to an on-disk scratch directory in
// sequentially numbered form, and removes that directory on Close
// (spec.md §2).
type FrameStore struct {
	baseDir string
}

// NewFrameStore returns a FrameStore rooted at baseDir (e.g. os.TempDir()).
func NewFrameStore(baseDir string) *FrameStore {
	return &FrameStore{baseDir: baseDir}
}

// Materialize downscales frames (if needed, aspect-preserving, to fit within
// maxDimension) and writes them as sequentially-numbered JPEGs at the given
// quality into a fresh scratch directory under sessionID. It returns the
// directory path and the working (possibly downscaled) dimensions.
//
// Downscaling happens here, exactly once, because spec.md §4.1 requires
// working dimensions to be stable for a session's entire life and this is
// the only place frames are resized.
func (s *FrameStore) Materialize(sessionID string, frames []image.Image, maxDimension, jpegQuality int) (dir string, width, height int, err error) {
	if len(frames) == 0 {
		return "", 0, 0, fmt.Errorf("no frames to materialize")
	}

	origW := frames[0].Bounds().Dx()
	origH := frames[0].Bounds().Dy()
	width, height = downscaleDimensions(origW, origH, maxDimension)

	dir = filepath.Join(s.baseDir, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, 0, fmt.Errorf("failed to create frame store directory: %w", err)
	}

	for i, frame := range frames {
		out := frame
		if width != origW || height != origH {
			out = resize.Resize(uint(width), uint(height), frame, resize.Bilinear)
		}

		path := filepath.Join(dir, fmt.Sprintf("frame_%08d.jpg", i))
		f, ferr := os.Create(path)
		if ferr != nil {
			os.RemoveAll(dir)
			return "", 0, 0, fmt.Errorf("failed to create frame file %s: %w", path, ferr)
		}
		ferr = jpeg.Encode(f, out, &jpeg.Options{Quality: jpegQuality})
		f.Close()
		if ferr != nil {
			os.RemoveAll(dir)
			return "", 0, 0, fmt.Errorf("failed to encode frame %d: %w", i, ferr)
		}
	}

	return dir, width, height, nil
}

// Remove deletes a session's scratch directory. It is a no-op if the
// directory does not exist, matching Close's idempotence contract
// (spec.md §4.1).
func (s *FrameStore) Remove(dir string) error {
	if dir == "" {
		return nil
	}
	return os.RemoveAll(dir)
}

// downscaleDimensions returns (width, height) unchanged if both are already
// within maxDimension, otherwise scales them down uniformly so the larger
// side equals maxDimension, preserving aspect ratio (spec.md §4.1).
func downscaleDimensions(width, height, maxDimension int) (int, int) {
	if width <= maxDimension && height <= maxDimension {
		return width, height
	}
	if width >= height {
		scaled := height * maxDimension / width
		return maxDimension, scaled
	}
	scaled := width * maxDimension / height
	return scaled, maxDimension
}
